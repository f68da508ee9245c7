package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muurk/aalink/internal/errcode"
	"github.com/muurk/aalink/internal/logging"
	"go.uber.org/zap"
)

// Time allowed to write one message to the peer.
const writeWait = 10 * time.Second

// WebSocketEndpoint carries the byte stream in binary WebSocket messages.
// Message boundaries carry no meaning; a read may span several messages
// and a message may be split across several reads.
type WebSocketEndpoint struct {
	conn    *websocket.Conn
	pending io.Reader
}

// NewWebSocketEndpoint wraps an established WebSocket connection.
func NewWebSocketEndpoint(conn *websocket.Conn) *WebSocketEndpoint {
	return &WebSocketEndpoint{conn: conn}
}

// DialWebSocket connects to a WebSocket bridge at url.
func DialWebSocket(ctx context.Context, url string, header http.Header) (*WebSocketEndpoint, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to dial %s (status %d): %w", url, resp.StatusCode, errcode.Wrap(errcode.TCPTransfer, err))
		}
		return nil, fmt.Errorf("failed to dial %s: %w", url, errcode.Wrap(errcode.TCPTransfer, err))
	}

	logging.LogConnection(conn.RemoteAddr().String(), "websocket_connected")
	return NewWebSocketEndpoint(conn), nil
}

// Read returns bytes from the current binary message, advancing to the
// next message when it is exhausted. Text messages are skipped.
func (e *WebSocketEndpoint) Read(ctx context.Context, buf []byte) (int, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = e.conn.SetReadDeadline(time.Unix(1, 0))
	})
	defer stop()

	for {
		if e.pending == nil {
			messageType, r, err := e.conn.NextReader()
			if err != nil {
				return 0, abortedOr(ctx, errcode.Wrap(errcode.TCPTransfer, err))
			}
			if messageType != websocket.BinaryMessage {
				logging.Debug("Skipping non-binary WebSocket message",
					zap.Int("message_type", messageType),
				)
				continue
			}
			e.pending = r
		}

		n, err := e.pending.Read(buf)
		if errors.Is(err, io.EOF) {
			e.pending = nil
			err = nil
		}
		if err != nil {
			e.pending = nil
			return n, abortedOr(ctx, errcode.Wrap(errcode.TCPTransfer, err))
		}
		if n > 0 || len(buf) == 0 {
			return n, nil
		}
	}
}

// Write sends data as one binary message.
func (e *WebSocketEndpoint) Write(ctx context.Context, data []byte) (int, error) {
	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = e.conn.SetWriteDeadline(deadline)

	stop := context.AfterFunc(ctx, func() {
		_ = e.conn.SetWriteDeadline(time.Unix(1, 0))
	})
	defer stop()

	if err := e.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return 0, abortedOr(ctx, errcode.Wrap(errcode.TCPTransfer, err))
	}
	return len(data), nil
}

// Close sends a close frame and closes the connection.
func (e *WebSocketEndpoint) Close() error {
	_ = e.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	logging.LogConnection(e.conn.RemoteAddr().String(), "websocket_closed")
	return e.conn.Close()
}
