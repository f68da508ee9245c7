package server

import (
	"bytes"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muurk/aalink/internal/protocol"
	"github.com/muurk/aalink/internal/session"
)

func startServer(t *testing.T, config Config) (*Server, context.CancelFunc, <-chan error) {
	t.Helper()

	srv, err := New(config)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ctx)
	}()
	t.Cleanup(cancel)
	return srv, cancel, done
}

// expectVersionRequest checks that data starts with the session's first
// frame: a plain VERSION_REQUEST on the control channel.
func expectVersionRequest(t *testing.T, data []byte) {
	t.Helper()

	frame, err := protocol.ReadFrame(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if frame.Header.ChannelID != protocol.ChannelControl || frame.Header.FrameType != protocol.FrameTypeBulk {
		t.Errorf("first frame header = %s, want CONTROL BULK", frame.Header)
	}

	id, err := protocol.ParseMessageID(frame.Payload)
	if err != nil {
		t.Fatalf("ParseMessageID() error = %v", err)
	}
	if id != protocol.MessageVersionRequest {
		t.Errorf("first message id = %s, want VERSION_REQUEST", id)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestNewRequiresAddress(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New() with no address error = nil")
	}
}

func TestServerTCPStartsBootstrap(t *testing.T) {
	srv, _, _ := startServer(t, Config{
		TCPAddress: "127.0.0.1:0",
		Session:    session.Config{HandshakeTimeout: time.Second},
	})

	conn, err := net.Dial("tcp", srv.TCPAddr().String())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	buf := make([]byte, 64)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	expectVersionRequest(t, buf[:n])

	waitFor(t, func() bool { return len(srv.ActiveSessions()) == 1 })

	// the phone never answers: the handshake times out and the session goes
	waitFor(t, func() bool { return len(srv.ActiveSessions()) == 0 })
}

func TestServerWebSocketStartsBootstrap(t *testing.T) {
	srv, _, _ := startServer(t, Config{
		WebSocketAddress: "127.0.0.1:0",
		Session:          session.Config{HandshakeTimeout: 200 * time.Millisecond},
	})

	url := "ws://" + srv.WebSocketAddr().String() + DefaultWebSocketPath
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial(%s) error = %v", url, err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	msgType, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if msgType != websocket.BinaryMessage {
		t.Errorf("message type = %d, want binary", msgType)
	}
	expectVersionRequest(t, data)
}

func TestServerShutdownClosesSessions(t *testing.T) {
	srv, cancel, done := startServer(t, Config{
		TCPAddress: "127.0.0.1:0",
		Session:    session.Config{HandshakeTimeout: time.Minute},
	})

	conn, err := net.Dial("tcp", srv.TCPAddr().String())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	waitFor(t, func() bool { return len(srv.ActiveSessions()) == 1 })

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}

	if got := len(srv.ActiveSessions()); got != 0 {
		t.Errorf("ActiveSessions() = %d after shutdown, want 0", got)
	}

	// the phone side sees the connection go away
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	buf := make([]byte, 256)
	for {
		if _, err := conn.Read(buf); err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				t.Fatal("connection still open after shutdown")
			}
			break
		}
	}

	if _, err := net.DialTimeout("tcp", srv.TCPAddr().String(), time.Second); err == nil {
		t.Error("listener still accepting after shutdown")
	}
}
