package session

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/binary"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/muurk/aalink/internal/channel"
	"github.com/muurk/aalink/internal/cryptor"
	"github.com/muurk/aalink/internal/errcode"
	"github.com/muurk/aalink/internal/messenger"
	"github.com/muurk/aalink/internal/protocol"
	"github.com/muurk/aalink/internal/transport"
)

var (
	phoneCredsOnce sync.Once
	phoneCreds     *cryptor.Credentials
	phoneCredsErr  error
)

func phoneTLSConfig(t *testing.T) *tls.Config {
	t.Helper()
	phoneCredsOnce.Do(func() {
		params := cryptor.DefaultCertParams()
		params.CommonName = "phone"
		phoneCreds, phoneCredsErr = cryptor.GenerateCredentials(params)
	})
	if phoneCredsErr != nil {
		t.Fatalf("GenerateCredentials() error = %v", phoneCredsErr)
	}

	cert, err := tls.X509KeyPair(phoneCreds.CertificatePEM, phoneCreds.PrivateKeyPEM)
	if err != nil {
		t.Fatalf("X509KeyPair() error = %v", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.RequireAnyClientCert,
		MinVersion:   tls.VersionTLS12,
		MaxVersion:   tls.VersionTLS12,
	}
}

// fakePhone speaks the bootstrap sequence from the phone side on a pipe.
type fakePhone struct {
	t             *testing.T
	conn          net.Conn
	tlsRaw        net.Conn
	server        *tls.Conn
	fromTLS       chan []byte
	versionStatus channel.VersionStatus
	silent        bool

	authComplete  chan struct{}
	pingResponses chan int64
}

func startPhone(t *testing.T, status channel.VersionStatus, silent bool) (*fakePhone, transport.Endpoint) {
	t.Helper()

	headUnitSide, phoneSide := net.Pipe()
	tlsRaw, tlsSide := net.Pipe()

	p := &fakePhone{
		t:             t,
		conn:          phoneSide,
		tlsRaw:        tlsRaw,
		server:        tls.Server(tlsSide, phoneTLSConfig(t)),
		fromTLS:       make(chan []byte, 16),
		versionStatus: status,
		silent:        silent,
		authComplete:  make(chan struct{}),
		pingResponses: make(chan int64, 4),
	}

	go func() {
		for {
			buf := make([]byte, 32*1024)
			n, err := tlsRaw.Read(buf)
			if n > 0 {
				p.fromTLS <- buf[:n]
			}
			if err != nil {
				return
			}
		}
	}()
	go func() { _ = p.server.Handshake() }()
	go p.run()

	t.Cleanup(func() {
		_ = p.server.Close()
		_ = tlsRaw.Close()
		_ = phoneSide.Close()
	})
	return p, transport.NewTCPEndpoint(headUnitSide)
}

func (p *fakePhone) run() {
	for {
		frame, err := protocol.ReadFrame(p.conn)
		if err != nil {
			return
		}
		if p.silent || frame.Header.ChannelID != protocol.ChannelControl {
			continue
		}

		id, err := protocol.ParseMessageID(frame.Payload)
		if err != nil {
			continue
		}
		body := frame.Payload[protocol.MessageIDSize:]

		switch id {
		case protocol.MessageVersionRequest:
			resp := []byte{0, 1, 0, 1}
			resp = binary.BigEndian.AppendUint16(resp, uint16(p.versionStatus))
			p.write(protocol.ChannelControl, protocol.MessageVersionResponse, resp)
		case protocol.MessageSSLHandshake:
			if _, err := p.tlsRaw.Write(body); err != nil {
				return
			}
			select {
			case answer := <-p.fromTLS:
				p.write(protocol.ChannelControl, protocol.MessageSSLHandshake, answer)
			case <-time.After(5 * time.Second):
				return
			}
		case protocol.MessageAuthComplete:
			close(p.authComplete)
		case protocol.MessagePingRequest:
			p.write(protocol.ChannelControl, protocol.MessagePingResponse, body)
		case protocol.MessagePingResponse:
			ts, err := channel.ParsePing(body)
			if err == nil {
				p.pingResponses <- ts
			}
		}
	}
}

func (p *fakePhone) write(ch protocol.ChannelID, id protocol.MessageID, body []byte) {
	frame, err := protocol.BuildFrame(protocol.FrameHeader{
		ChannelID: ch,
		FrameType: protocol.FrameTypeBulk,
	}, append(id.Bytes(), body...), 0)
	if err != nil {
		return
	}
	_, _ = p.conn.Write(frame)
}

// writeEncrypted sends one encrypted single-frame message.
func (p *fakePhone) writeEncrypted(t *testing.T, ch protocol.ChannelID, payload []byte) {
	t.Helper()
	if _, err := p.server.Write(payload); err != nil {
		t.Fatalf("server Write() error = %v", err)
	}

	var ciphertext []byte
	select {
	case ciphertext = <-p.fromTLS:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for ciphertext")
	}

	frame, err := protocol.BuildFrame(protocol.FrameHeader{
		ChannelID:      ch,
		FrameType:      protocol.FrameTypeBulk,
		EncryptionType: protocol.EncryptionEncrypted,
	}, ciphertext, 0)
	if err != nil {
		t.Fatalf("BuildFrame() error = %v", err)
	}
	if _, err := p.conn.Write(frame); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func newTestSession(t *testing.T, endpoint transport.Endpoint, config Config) *Session {
	t.Helper()
	s, err := New(endpoint, config)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSessionHandshake(t *testing.T) {
	phone, endpoint := startPhone(t, channel.VersionMatch, false)
	s := newTestSession(t, endpoint, DefaultConfig())

	if err := s.Handshake(context.Background()); err != nil {
		t.Fatalf("Handshake() error = %v", err)
	}

	select {
	case <-phone.authComplete:
	case <-time.After(5 * time.Second):
		t.Fatal("phone never saw AUTH_COMPLETE")
	}

	stats := s.Stats()
	if !stats.Active {
		t.Error("Stats().Active = false after handshake")
	}
	if stats.Version.Status != channel.VersionMatch {
		t.Errorf("Stats().Version.Status = %s, want MATCH", stats.Version.Status)
	}
	if stats.Transport.BytesSent == 0 || stats.Transport.BytesReceived == 0 {
		t.Errorf("Stats().Transport = %+v, want traffic both ways", stats.Transport)
	}
	if stats.Channels[protocol.ChannelControl].MessagesSent < 3 {
		t.Errorf("control MessagesSent = %d, want at least 3", stats.Channels[protocol.ChannelControl].MessagesSent)
	}
}

func TestSessionVersionMismatch(t *testing.T) {
	_, endpoint := startPhone(t, channel.VersionMismatch, false)
	s := newTestSession(t, endpoint, DefaultConfig())

	err := s.Handshake(context.Background())
	if !errors.Is(err, ErrVersionMismatch) {
		t.Errorf("Handshake() error = %v, want %v", err, ErrVersionMismatch)
	}
}

func TestSessionHandshakeTimeout(t *testing.T) {
	_, endpoint := startPhone(t, channel.VersionMatch, true)
	config := DefaultConfig()
	config.HandshakeTimeout = 100 * time.Millisecond
	s := newTestSession(t, endpoint, config)

	err := s.Handshake(context.Background())
	if !errcode.HasCode(err, errcode.OperationAborted) {
		t.Errorf("Handshake() error = %v, want OPERATION_ABORTED", err)
	}
}

func TestSessionServe(t *testing.T) {
	phone, endpoint := startPhone(t, channel.VersionMatch, false)
	s := newTestSession(t, endpoint, DefaultConfig())

	if err := s.Handshake(context.Background()); err != nil {
		t.Fatalf("Handshake() error = %v", err)
	}

	received := make(chan *messenger.Message, 4)
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() {
		served <- s.Serve(ctx, func(msg *messenger.Message) { received <- msg })
	}()

	// encrypted media is decrypted before it reaches the handler
	media := append(protocol.MessageAVMedia.Bytes(), []byte("h264 access unit")...)
	phone.writeEncrypted(t, protocol.ChannelVideo, media)

	select {
	case msg := <-received:
		if msg.ChannelID != protocol.ChannelVideo {
			t.Errorf("handler got channel %s, want VIDEO", msg.ChannelID)
		}
		if !bytes.Equal(msg.Payload, media) {
			t.Errorf("handler got payload %q, want %q", msg.Payload, media)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for video message")
	}

	// pings from the phone are answered without reaching the handler
	phone.write(protocol.ChannelControl, protocol.MessagePingRequest, []byte{0x08, 0x4d})
	select {
	case ts := <-phone.pingResponses:
		if ts != 77 {
			t.Errorf("ping response timestamp = %d, want 77", ts)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for ping response")
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if _, err := s.Ping(pingCtx); err != nil {
		t.Errorf("Ping() error = %v", err)
	}

	select {
	case msg := <-received:
		t.Errorf("handler got unexpected %s", msg)
	default:
	}

	cancel()
	select {
	case err := <-served:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v, want %v", err, context.Canceled)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}

func TestSessionServeEndsOnStreamFailure(t *testing.T) {
	phone, endpoint := startPhone(t, channel.VersionMatch, false)
	s := newTestSession(t, endpoint, DefaultConfig())

	served := make(chan error, 1)
	go func() {
		served <- s.Serve(context.Background(), nil)
	}()

	// give the receive loops a moment to register before the phone hangs up
	time.Sleep(50 * time.Millisecond)
	_ = phone.conn.Close()

	select {
	case err := <-served:
		if err == nil {
			t.Error("Serve() error = nil after hang-up")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after hang-up")
	}
}

func TestSessionCloseIdempotent(t *testing.T) {
	_, endpoint := startPhone(t, channel.VersionMatch, true)
	s, err := New(endpoint, Config{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if s.ID() == "" {
		t.Error("ID() is empty")
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestNewRejectsBadCredentials(t *testing.T) {
	_, endpoint := startPhone(t, channel.VersionMatch, true)
	config := DefaultConfig()
	config.Cryptor.Credentials = &cryptor.Credentials{CertificatePEM: []byte("junk"), PrivateKeyPEM: []byte("junk")}

	if _, err := New(endpoint, config); !errcode.HasCode(err, errcode.SSLReadCertificate) {
		t.Errorf("New() error = %v, want SSL_READ_CERTIFICATE", err)
	}
}
