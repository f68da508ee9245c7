package session

import (
	"context"
	"fmt"
	"time"

	"github.com/muurk/aalink/internal/channel"
	"github.com/muurk/aalink/internal/messenger"
	"github.com/muurk/aalink/internal/promise"
	"github.com/muurk/aalink/internal/protocol"
	"go.uber.org/zap"
)

// Handler receives every message Serve does not consume itself. It is
// called from one goroutine per channel and must be safe for concurrent use.
type Handler func(*messenger.Message)

// Serve keeps one receive outstanding on every channel until ctx ends or
// the message stream fails. Control pings are handled here; everything
// else goes to handle.
func (s *Session) Serve(ctx context.Context, handle Handler) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	channels := protocol.Channels()
	errs := make(chan error, len(channels))
	for _, ch := range channels {
		go s.receiveLoop(ctx, ch, handle, errs)
	}

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) receiveLoop(ctx context.Context, ch protocol.ChannelID, handle Handler, errs chan<- error) {
	for {
		msg, err := s.receive(ctx, ch)
		if err != nil {
			errs <- fmt.Errorf("receive on %s failed: %w", ch, err)
			return
		}

		if ch == protocol.ChannelControl {
			if id, body, err := channel.Split(msg); err == nil && s.handleControl(id, body) {
				continue
			}
		}
		if handle != nil {
			handle(msg)
		}
	}
}

// handleControl consumes the control messages the session answers itself.
func (s *Session) handleControl(id protocol.MessageID, body []byte) bool {
	switch id {
	case protocol.MessagePingRequest:
		ts, err := channel.ParsePing(body)
		if err != nil {
			s.logWarn("Malformed ping request", zap.Error(err))
			return true
		}
		p := promise.NewVoid(s.strand)
		p.Then(nil, func(err error) {
			s.logWarn("Failed to answer ping", zap.Error(err))
		})
		s.control.SendPingResponse(ts, p)
		return true

	case protocol.MessagePingResponse:
		ts, err := channel.ParsePing(body)
		if err != nil {
			s.logWarn("Malformed ping response", zap.Error(err))
			return true
		}
		s.mu.Lock()
		waiter, ok := s.pings[ts]
		delete(s.pings, ts)
		s.mu.Unlock()

		if ok {
			waiter <- time.Now()
		} else {
			s.logDebug("Unsolicited ping response", zap.Int64("timestamp", ts))
		}
		return true
	}
	return false
}

// Ping sends a PING_REQUEST and waits for the matching response. The
// response is picked up by Serve, which must be running.
func (s *Session) Ping(ctx context.Context) (time.Duration, error) {
	sent := time.Now()
	ts := sent.UnixMicro()
	waiter := make(chan time.Time, 1)

	s.mu.Lock()
	s.pings[ts] = waiter
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pings, ts)
		s.mu.Unlock()
	}()

	err := s.send(ctx, func(p *messenger.SendPromise) {
		s.control.SendPingRequest(ts, p)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to send ping: %w", err)
	}

	select {
	case received := <-waiter:
		rtt := received.Sub(sent)
		s.logDebug("Ping answered", zap.Duration("rtt", rtt))
		return rtt, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
