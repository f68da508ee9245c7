package cryptor

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"reflect"
	"sync"

	"github.com/muurk/aalink/internal/errcode"
	"github.com/muurk/aalink/internal/logging"
	"go.uber.org/zap"
)

// Config configures a Cryptor. The zero value uses the compiled-in
// accessory credentials and TLS 1.2.
type Config struct {
	// Credentials replace the compiled-in accessory certificate and key.
	Credentials *Credentials

	// MinVersion and MaxVersion bound the negotiated TLS version.
	MinVersion uint16
	MaxVersion uint16

	// ServerName is sent in the SNI extension when set.
	ServerName string
}

// Cryptor performs the TLS handshake with the phone and protects payloads
// of encrypted channels afterwards.
type Cryptor struct {
	config Config

	mu       sync.Mutex
	conn     *memConn
	tlsConn  *tls.Conn
	started  bool
	isActive bool
}

// New creates an uninitialized cryptor.
func New(config Config) *Cryptor {
	return &Cryptor{config: config}
}

// Init loads the credentials and builds the TLS client. Each failing step
// reports its own error code.
func (c *Cryptor) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	creds := c.config.Credentials
	if creds == nil {
		creds = DefaultCredentials()
	}

	if _, err := parseCertificate(creds.CertificatePEM); err != nil {
		return err
	}
	if _, err := parsePrivateKey(creds.PrivateKeyPEM); err != nil {
		return err
	}

	minVersion, maxVersion := c.config.MinVersion, c.config.MaxVersion
	if minVersion == 0 {
		minVersion = tls.VersionTLS12
	}
	if maxVersion == 0 {
		maxVersion = tls.VersionTLS12
	}
	if minVersion > maxVersion || minVersion < tls.VersionTLS10 || maxVersion > tls.VersionTLS13 {
		return errcode.Wrap(errcode.SSLMethod,
			fmt.Errorf("invalid TLS version range 0x%04x-0x%04x", minVersion, maxVersion))
	}

	cert, err := tls.X509KeyPair(creds.CertificatePEM, creds.PrivateKeyPEM)
	if err != nil {
		return errcode.Wrap(errcode.SSLUsePrivateKey, err)
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   minVersion,
		MaxVersion:   maxVersion,
		ServerName:   c.config.ServerName,
		// the phone presents a certificate no public root signs
		InsecureSkipVerify:          true, //nolint:gosec
		DynamicRecordSizingDisabled: true,
	}

	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = newMemConn()
	c.tlsConn = tls.Client(c.conn, tlsConfig)
	c.started = false
	c.isActive = false

	logging.Debug("Cryptor initialized",
		zap.String("min_version", tls.VersionName(minVersion)),
		zap.String("max_version", tls.VersionName(maxVersion)),
	)
	return nil
}

// Deinit releases the TLS client. The cryptor may be initialized again.
func (c *Cryptor) Deinit() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = nil
	c.tlsConn = nil
	c.started = false
	c.isActive = false
}

// DoHandshake advances the handshake with whatever ciphertext has been
// written so far. It returns false while the phone still has to answer and
// true once the session is active.
func (c *Cryptor) DoHandshake() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tlsConn == nil {
		return false, errcode.Wrap(errcode.SSLHandshake, errors.New("cryptor not initialized"))
	}
	if c.isActive {
		return true, nil
	}

	if !c.started {
		c.started = true
		tlsConn, conn := c.tlsConn, c.conn
		go func() {
			conn.finishHandshake(tlsConn.Handshake())
		}()
	}

	done, err := c.conn.awaitHandshakeStep()
	if !done {
		return false, nil
	}
	if err != nil {
		return false, engineError(errcode.SSLHandshake, err)
	}

	c.isActive = true
	logging.LogTLSHandshake("phone", c.tlsConn.ConnectionState())
	return true, nil
}

// Encrypt returns the ciphertext records for plaintext.
func (c *Cryptor) Encrypt(plaintext []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isActive {
		return nil, errcode.Wrap(errcode.SSLWrite, errors.New("handshake not complete"))
	}

	if _, err := c.tlsConn.Write(plaintext); err != nil {
		return nil, engineError(errcode.SSLWrite, err)
	}
	return c.conn.drain(), nil
}

// Decrypt feeds ciphertext to the engine and returns every plaintext byte
// it can produce. Bytes of an incomplete trailing record are kept for the
// next call.
func (c *Cryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isActive {
		return nil, errcode.Wrap(errcode.SSLRead, errors.New("handshake not complete"))
	}

	c.conn.feed(ciphertext)

	var plaintext []byte
	buf := make([]byte, 16*1024)
	for {
		n, err := c.tlsConn.Read(buf)
		plaintext = append(plaintext, buf[:n]...)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return plaintext, nil
			}
			return plaintext, engineError(errcode.SSLRead, err)
		}
	}
}

// ReadHandshakeBuffer returns the handshake ciphertext to send to the phone.
func (c *Cryptor) ReadHandshakeBuffer() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, errcode.Wrap(errcode.SSLBIORead, errors.New("cryptor not initialized"))
	}
	return c.conn.drain(), nil
}

// WriteHandshakeBuffer feeds handshake ciphertext received from the phone.
func (c *Cryptor) WriteHandshakeBuffer(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return errcode.Wrap(errcode.SSLBIOWrite, errors.New("cryptor not initialized"))
	}
	c.conn.feed(data)
	return nil
}

// IsActive reports whether the handshake has completed.
func (c *Cryptor) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isActive
}

// engineError wraps a TLS failure. Alerts sent by the phone are reported as
// the native code so they can be told apart from local failures.
func engineError(code errcode.Code, err error) *errcode.Error {
	e := errcode.Wrap(code, err)
	if alert, ok := peerAlert(err); ok {
		e.Native = int(alert)
	}
	return e
}

// peerAlert extracts the alert number of a TLS alert received from the peer.
func peerAlert(err error) (uint8, bool) {
	var alertErr tls.AlertError
	if errors.As(err, &alertErr) {
		return uint8(alertErr), true
	}

	// crypto/tls reports received alerts as a "remote error" OpError around
	// its unexported uint8 alert type
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "remote error" && opErr.Err != nil {
		if v := reflect.ValueOf(opErr.Err); v.Kind() == reflect.Uint8 {
			return uint8(v.Uint()), true
		}
	}
	return 0, false
}
