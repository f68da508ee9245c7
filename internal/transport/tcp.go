package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/muurk/aalink/internal/errcode"
	"github.com/muurk/aalink/internal/logging"
	"go.uber.org/zap"
)

// TCPEndpoint performs reads and writes on a stream socket.
type TCPEndpoint struct {
	conn net.Conn
}

// NewTCPEndpoint wraps an established connection.
func NewTCPEndpoint(conn net.Conn) *TCPEndpoint {
	return &TCPEndpoint{conn: conn}
}

// DialTCP connects to a phone listening at address.
func DialTCP(ctx context.Context, address string, timeout time.Duration) (*TCPEndpoint, error) {
	dialer := net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}

	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", address, errcode.Wrap(errcode.TCPTransfer, err))
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}

	logging.LogConnection(conn.RemoteAddr().String(), "tcp_connected")
	return NewTCPEndpoint(conn), nil
}

// Read reads at most len(buf) bytes.
func (e *TCPEndpoint) Read(ctx context.Context, buf []byte) (int, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = e.conn.SetReadDeadline(time.Unix(1, 0))
	})
	defer stop()

	n, err := e.conn.Read(buf)
	if err != nil {
		return n, abortedOr(ctx, tcpError(err))
	}
	return n, nil
}

// Write writes data, possibly partially.
func (e *TCPEndpoint) Write(ctx context.Context, data []byte) (int, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = e.conn.SetWriteDeadline(time.Unix(1, 0))
	})
	defer stop()

	n, err := e.conn.Write(data)
	if err != nil {
		return n, abortedOr(ctx, tcpError(err))
	}
	return n, nil
}

// Close closes the socket.
func (e *TCPEndpoint) Close() error {
	logging.LogConnection(e.RemoteAddr(), "tcp_closed")
	return e.conn.Close()
}

// RemoteAddr returns the peer address.
func (e *TCPEndpoint) RemoteAddr() string {
	return e.conn.RemoteAddr().String()
}

// tcpError wraps a socket failure, keeping the errno as native code when
// there is one.
func tcpError(err error) error {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		e := errcode.WithNative(errcode.TCPTransfer, int(errno))
		e.Err = err
		return e
	}

	logging.Debug("TCP transfer failed", zap.Error(err))
	return errcode.Wrap(errcode.TCPTransfer, err)
}
