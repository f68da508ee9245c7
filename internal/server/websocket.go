package server

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/muurk/aalink/internal/logging"
	"github.com/muurk/aalink/internal/transport"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  32 * 1024,
	WriteBufferSize: 32 * 1024,
	// bridges are not browsers
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleWebSocket upgrades a bridge connection and runs a session over it.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	logging.Debug("WebSocket upgrade request",
		zap.String("remote_addr", r.RemoteAddr),
		zap.String("path", r.URL.Path),
		zap.String("user_agent", r.UserAgent()),
	)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}
	logging.LogConnection(r.RemoteAddr, "websocket_upgraded")

	if !s.track() {
		_ = conn.Close()
		return
	}
	defer s.wg.Done()
	s.handleEndpoint(r.RemoteAddr, transport.NewWebSocketEndpoint(conn))
}
