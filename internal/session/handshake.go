package session

import (
	"context"
	"fmt"

	"github.com/muurk/aalink/internal/channel"
	"github.com/muurk/aalink/internal/messenger"
	"github.com/muurk/aalink/internal/protocol"
	"go.uber.org/zap"
)

// maxHandshakeRounds bounds the SSL_HANDSHAKE exchange. A TLS 1.2 handshake
// with client authentication takes two rounds.
const maxHandshakeRounds = 16

// Handshake runs the bootstrap sequence: version exchange, TLS handshake
// and AUTH_COMPLETE. It returns once encrypted channels are usable.
func (s *Session) Handshake(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.HandshakeTimeout)
	defer cancel()

	if err := s.exchangeVersion(ctx); err != nil {
		return err
	}
	if err := s.exchangeTLS(ctx); err != nil {
		return err
	}

	err := s.send(ctx, func(p *messenger.SendPromise) {
		s.control.SendAuthComplete(channel.AuthOK, p)
	})
	if err != nil {
		return fmt.Errorf("failed to send auth complete: %w", err)
	}

	s.logInfo("Session established")
	return nil
}

func (s *Session) exchangeVersion(ctx context.Context) error {
	err := s.send(ctx, func(p *messenger.SendPromise) {
		s.control.SendVersionRequest(s.config.VersionMajor, s.config.VersionMinor, p)
	})
	if err != nil {
		return fmt.Errorf("failed to send version request: %w", err)
	}

	body, err := s.expectControl(ctx, protocol.MessageVersionResponse)
	if err != nil {
		return fmt.Errorf("failed to receive version response: %w", err)
	}

	resp := channel.ParseVersionResponse(body)
	s.mu.Lock()
	s.version = resp
	s.mu.Unlock()

	s.logDebug("Version response received",
		zap.Uint16("major", resp.Major),
		zap.Uint16("minor", resp.Minor),
		zap.Stringer("status", resp.Status),
	)
	if resp.Status != channel.VersionMatch {
		return fmt.Errorf("%w: phone speaks %d.%d", ErrVersionMismatch, resp.Major, resp.Minor)
	}
	return nil
}

func (s *Session) exchangeTLS(ctx context.Context) error {
	for round := 0; round < maxHandshakeRounds; round++ {
		done, err := s.cryptor.DoHandshake()
		if err != nil {
			return fmt.Errorf("TLS handshake failed: %w", err)
		}

		out, err := s.cryptor.ReadHandshakeBuffer()
		if err != nil {
			return fmt.Errorf("TLS handshake failed: %w", err)
		}
		if len(out) > 0 {
			err := s.send(ctx, func(p *messenger.SendPromise) {
				s.control.SendHandshake(out, p)
			})
			if err != nil {
				return fmt.Errorf("failed to send handshake data: %w", err)
			}
		}
		if done {
			return nil
		}

		in, err := s.expectControl(ctx, protocol.MessageSSLHandshake)
		if err != nil {
			return fmt.Errorf("failed to receive handshake data: %w", err)
		}
		s.logDebug("Handshake data received", zap.Int("round", round), zap.Int("bytes", len(in)))

		if err := s.cryptor.WriteHandshakeBuffer(in); err != nil {
			return fmt.Errorf("TLS handshake failed: %w", err)
		}
	}
	return fmt.Errorf("TLS handshake did not finish after %d rounds", maxHandshakeRounds)
}

// expectControl waits for a control message with the given id. Pings that
// arrive meanwhile are answered; anything else is logged and skipped.
func (s *Session) expectControl(ctx context.Context, want protocol.MessageID) ([]byte, error) {
	for {
		msg, err := s.receive(ctx, protocol.ChannelControl)
		if err != nil {
			return nil, err
		}

		id, body, err := channel.Split(msg)
		if err != nil {
			return nil, err
		}
		if id == want {
			return body, nil
		}
		if s.handleControl(id, body) {
			continue
		}
		s.logWarn("Unexpected control message during bootstrap",
			zap.Stringer("id", id),
			zap.Stringer("want", want),
		)
	}
}
