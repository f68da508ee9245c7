package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/muurk/aalink/internal/logging"
	"github.com/muurk/aalink/internal/messenger"
	"github.com/muurk/aalink/internal/session"
	"github.com/muurk/aalink/internal/transport"
	"go.uber.org/zap"
)

// DefaultWebSocketPath is where the bridge endpoint is mounted.
const DefaultWebSocketPath = "/aa"

// shutdownGrace bounds how long Shutdown waits for handlers.
const shutdownGrace = 10 * time.Second

// SessionHandler runs an established session until it ends.
type SessionHandler func(ctx context.Context, s *session.Session) error

// Config holds the server configuration
type Config struct {
	TCPAddress       string // empty disables the TCP listener
	WebSocketAddress string // empty disables the WebSocket listener
	WebSocketPath    string
	Session          session.Config
	Handler          SessionHandler
}

// Server accepts phones and runs one session per connection.
type Server struct {
	config Config

	tcpListener net.Listener
	wsListener  net.Listener
	httpServer  *http.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	sessions map[string]*session.Session
}

// New creates a server. At least one listen address must be set.
func New(config Config) (*Server, error) {
	if config.TCPAddress == "" && config.WebSocketAddress == "" {
		return nil, errors.New("no listen address configured")
	}
	if config.WebSocketPath == "" {
		config.WebSocketPath = DefaultWebSocketPath
	}
	if config.Handler == nil {
		config.Handler = LogMessages
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		config:   config,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*session.Session),
	}, nil
}

// Listen binds the configured listeners.
func (s *Server) Listen() error {
	if s.config.TCPAddress != "" {
		l, err := net.Listen("tcp", s.config.TCPAddress)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", s.config.TCPAddress, err)
		}
		s.tcpListener = l
	}

	if s.config.WebSocketAddress != "" {
		l, err := net.Listen("tcp", s.config.WebSocketAddress)
		if err != nil {
			if s.tcpListener != nil {
				_ = s.tcpListener.Close()
			}
			return fmt.Errorf("failed to listen on %s: %w", s.config.WebSocketAddress, err)
		}
		s.wsListener = l

		mux := http.NewServeMux()
		mux.HandleFunc(s.config.WebSocketPath, s.handleWebSocket)
		s.httpServer = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	}
	return nil
}

// TCPAddr returns the bound TCP address, or nil.
func (s *Server) TCPAddr() net.Addr {
	if s.tcpListener == nil {
		return nil
	}
	return s.tcpListener.Addr()
}

// WebSocketAddr returns the bound WebSocket address, or nil.
func (s *Server) WebSocketAddr() net.Addr {
	if s.wsListener == nil {
		return nil
	}
	return s.wsListener.Addr()
}

// Serve accepts connections until ctx ends, then shuts down.
func (s *Server) Serve(ctx context.Context) error {
	if s.tcpListener == nil && s.wsListener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	errChan := make(chan error, 2)
	if s.tcpListener != nil {
		logging.Info("Listening for phones", zap.String("tcp", s.tcpListener.Addr().String()))
		go func() {
			errChan <- s.acceptConnections()
		}()
	}
	if s.wsListener != nil {
		logging.Info("Listening for WebSocket bridges",
			zap.String("addr", s.wsListener.Addr().String()),
			zap.String("path", s.config.WebSocketPath),
		)
		go func() {
			err := s.httpServer.Serve(s.wsListener)
			if errors.Is(err, http.ErrServerClosed) {
				err = nil
			}
			errChan <- err
		}()
	}

	select {
	case <-ctx.Done():
		logging.Info("Stopping server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errChan:
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
		return err
	}
}

// acceptConnections accepts TCP phones until the listener closes.
func (s *Server) acceptConnections() error {
	for {
		conn, err := s.tcpListener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			logging.Error("Failed to accept connection", zap.Error(err))
			continue
		}

		if tcpConn, ok := conn.(*net.TCPConn); ok {
			_ = tcpConn.SetNoDelay(true)
		}

		if !s.track() {
			_ = conn.Close()
			return nil
		}
		go func() {
			defer s.wg.Done()
			s.handleEndpoint(conn.RemoteAddr().String(), transport.NewTCPEndpoint(conn))
		}()
	}
}

// track registers a connection handler unless the server is shutting down.
func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	s.wg.Add(1)
	return true
}

// handleEndpoint runs one session over endpoint until it ends.
func (s *Server) handleEndpoint(remoteAddr string, endpoint transport.Endpoint) {
	logging.LogConnection(remoteAddr, "connection_accepted")

	sess, err := session.New(endpoint, s.config.Session)
	if err != nil {
		logging.Error("Failed to create session",
			zap.String("remote_addr", remoteAddr),
			zap.Error(err),
		)
		_ = endpoint.Close()
		return
	}

	s.mu.Lock()
	s.sessions[remoteAddr] = sess
	s.mu.Unlock()

	defer func() {
		_ = sess.Close()
		s.mu.Lock()
		delete(s.sessions, remoteAddr)
		s.mu.Unlock()
		logging.LogConnection(remoteAddr, "connection_closed")
	}()

	if err := sess.Handshake(s.ctx); err != nil {
		logging.Error("Handshake failed",
			zap.String("remote_addr", remoteAddr),
			zap.String("session", sess.ID()),
			zap.Error(err),
		)
		return
	}

	if err := s.config.Handler(s.ctx, sess); err != nil && s.ctx.Err() == nil {
		logging.Warn("Session ended",
			zap.String("remote_addr", remoteAddr),
			zap.String("session", sess.ID()),
			zap.Error(err),
		)
	}
}

// Shutdown stops accepting, closes every active session and waits for
// their handlers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()

	if s.tcpListener != nil {
		if err := s.tcpListener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			logging.Error("Error closing listener", zap.Error(err))
		}
	}
	if s.httpServer != nil {
		// hijacked WebSocket connections are not tracked by http.Server
		_ = s.httpServer.Close()
	}

	s.mu.Lock()
	for addr, sess := range s.sessions {
		logging.Info("Closing active session",
			zap.String("remote_addr", addr),
			zap.String("session", sess.ID()),
		)
		_ = sess.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("All sessions closed")
		return nil
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, abandoning sessions")
		return ctx.Err()
	}
}

// ActiveSessions returns a snapshot of every running session, ordered by id.
func (s *Server) ActiveSessions() []session.Stats {
	s.mu.Lock()
	stats := make([]session.Stats, 0, len(s.sessions))
	for _, sess := range s.sessions {
		stats = append(stats, sess.Stats())
	}
	s.mu.Unlock()

	sort.Slice(stats, func(i, j int) bool { return stats[i].ID < stats[j].ID })
	return stats
}

// LogMessages is the default handler: it serves the session and logs each
// message at debug level.
func LogMessages(ctx context.Context, s *session.Session) error {
	return s.Serve(ctx, func(msg *messenger.Message) {
		logging.Debug("Message received",
			zap.String("session", s.ID()),
			zap.Stringer("message", msg),
		)
	})
}
