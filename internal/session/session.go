package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/muurk/aalink/internal/channel"
	"github.com/muurk/aalink/internal/cryptor"
	"github.com/muurk/aalink/internal/errcode"
	"github.com/muurk/aalink/internal/logging"
	"github.com/muurk/aalink/internal/messenger"
	"github.com/muurk/aalink/internal/promise"
	"github.com/muurk/aalink/internal/protocol"
	"github.com/muurk/aalink/internal/transport"
	"go.uber.org/zap"
)

// Protocol version announced in VERSION_REQUEST.
const (
	DefaultVersionMajor = 1
	DefaultVersionMinor = 1
)

// DefaultHandshakeTimeout bounds the whole bootstrap sequence.
const DefaultHandshakeTimeout = 10 * time.Second

// ErrVersionMismatch is returned when the phone rejects our protocol version.
var ErrVersionMismatch = errors.New("phone rejected protocol version")

// Config configures a Session.
type Config struct {
	Cryptor          cryptor.Config
	VersionMajor     uint16
	VersionMinor     uint16
	HandshakeTimeout time.Duration
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		VersionMajor:     DefaultVersionMajor,
		VersionMinor:     DefaultVersionMinor,
		HandshakeTimeout: DefaultHandshakeTimeout,
	}
}

// Stats is a snapshot of a session's traffic.
type Stats struct {
	ID        string
	Uptime    time.Duration
	Active    bool
	Version   channel.VersionResponse
	Transport transport.Stats
	Channels  map[protocol.ChannelID]messenger.ChannelStats
}

// Session is the protocol stack of one connected phone.
type Session struct {
	id      uuid.UUID
	config  Config
	started time.Time
	strand  *promise.Strand

	transport *transport.Transport
	cryptor   *cryptor.Cryptor
	messenger *messenger.Messenger
	control   *channel.ControlChannel

	mu      sync.Mutex
	version channel.VersionResponse
	pings   map[int64]chan time.Time
	closed  bool
}

// New builds the stack over endpoint. The cryptor is initialized here so
// credential problems surface before any byte is exchanged.
func New(endpoint transport.Endpoint, config Config) (*Session, error) {
	if config.VersionMajor == 0 && config.VersionMinor == 0 {
		config.VersionMajor, config.VersionMinor = DefaultVersionMajor, DefaultVersionMinor
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = DefaultHandshakeTimeout
	}

	c := cryptor.New(config.Cryptor)
	if err := c.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize cryptor: %w", err)
	}

	t := transport.New(endpoint)
	m := messenger.New(messenger.NewInStream(t, c), messenger.NewOutStream(t, c))

	s := &Session{
		id:        uuid.New(),
		config:    config,
		started:   time.Now(),
		strand:    promise.NewStrand(),
		transport: t,
		cryptor:   c,
		messenger: m,
		control:   channel.NewControl(m),
		pings:     make(map[int64]chan time.Time),
	}
	s.logDebug("Session created")
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id.String()
}

// Messenger returns the session's messenger.
func (s *Session) Messenger() *messenger.Messenger {
	return s.messenger
}

// Control returns the control channel.
func (s *Session) Control() *channel.ControlChannel {
	return s.control
}

// Channel returns a channel bound to id on this session's messenger.
func (s *Session) Channel(id protocol.ChannelID) *channel.Channel {
	return channel.New(id, s.messenger)
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	version := s.version
	s.mu.Unlock()

	return Stats{
		ID:        s.ID(),
		Uptime:    time.Since(s.started),
		Active:    s.cryptor.IsActive(),
		Version:   version,
		Transport: s.transport.Stats(),
		Channels:  s.messenger.Stats(),
	}
}

// Close stops all I/O and releases the endpoint and the TLS engine.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.messenger.Stop()
	err := s.transport.Close()
	s.cryptor.Deinit()
	s.logDebug("Session closed")
	return err
}

func (s *Session) logDebug(msg string, fields ...zap.Field) {
	logging.Debug(msg, append([]zap.Field{zap.String("session", s.ID())}, fields...)...)
}

func (s *Session) logInfo(msg string, fields ...zap.Field) {
	logging.Info(msg, append([]zap.Field{zap.String("session", s.ID())}, fields...)...)
}

func (s *Session) logWarn(msg string, fields ...zap.Field) {
	logging.Warn(msg, append([]zap.Field{zap.String("session", s.ID())}, fields...)...)
}

// await issues a promise-based request and blocks until it settles or ctx
// ends. A cancelled request is aborted on our side only; a late settlement
// is dropped by the promise.
func await[T any](ctx context.Context, strand *promise.Strand, start func(p *promise.Promise[T])) (T, error) {
	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)

	p := promise.New[T](strand)
	p.Then(func(v T) {
		done <- result{value: v}
	}, func(err error) {
		done <- result{err: err}
	})
	start(p)

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		p.Cancel()
		var zero T
		return zero, errcode.Wrap(errcode.OperationAborted, ctx.Err())
	}
}

func (s *Session) send(ctx context.Context, start func(p *messenger.SendPromise)) error {
	_, err := await(ctx, s.strand, start)
	return err
}

func (s *Session) receive(ctx context.Context, ch protocol.ChannelID) (*messenger.Message, error) {
	return await(ctx, s.strand, func(p *messenger.MessagePromise) {
		s.messenger.EnqueueReceive(ch, p)
	})
}
