package messenger

import (
	"errors"

	"github.com/muurk/aalink/internal/errcode"
	"github.com/muurk/aalink/internal/logging"
	"github.com/muurk/aalink/internal/promise"
	"github.com/muurk/aalink/internal/protocol"
	"go.uber.org/zap"
)

// OutStream splits messages into frames and writes them to a Transport.
type OutStream struct {
	strand    *promise.Strand
	transport Transport
	cryptor   Cryptor

	// owned by strand
	promise *SendPromise
	message *Message
	chunks  []protocol.Chunk
	next    int
}

// NewOutStream creates an idle out-stream. cryptor may be nil when no
// encrypted message is sent.
func NewOutStream(t Transport, c Cryptor) *OutStream {
	return &OutStream{
		strand:    promise.NewStrand(),
		transport: t,
		cryptor:   c,
	}
}

// Stream writes all frames of m, each after the previous one completed.
// It rejects with OPERATION_IN_PROGRESS while another message is streaming.
func (s *OutStream) Stream(m *Message, p *SendPromise) {
	s.strand.Post(func() {
		if s.promise != nil {
			p.Reject(errcode.New(errcode.OperationInProgress))
			return
		}

		s.promise = p
		s.message = m
		s.chunks = protocol.SplitPayload(m.Payload)
		s.next = 0
		s.streamChunk()
	})
}

func (s *OutStream) streamChunk() {
	chunk := s.chunks[s.next]

	frame, err := s.compoundFrame(chunk)
	if err != nil {
		s.fail(err)
		return
	}

	p := promise.NewVoid(s.strand)
	p.Then(func(promise.Void) {
		s.next++
		if chunk.Type.Final() {
			done := s.promise
			s.reset()
			done.Resolve(promise.Void{})
			return
		}
		s.streamChunk()
	}, s.fail)
	s.transport.Send(frame, p)
}

func (s *OutStream) compoundFrame(chunk protocol.Chunk) ([]byte, error) {
	payload := chunk.Data
	encrypted := s.message.EncryptionType == protocol.EncryptionEncrypted

	if encrypted {
		if s.cryptor == nil {
			return nil, errcode.Wrap(errcode.SSLWrite, errors.New("encrypted message without cryptor"))
		}
		ciphertext, err := s.cryptor.Encrypt(chunk.Data)
		if err != nil {
			return nil, err
		}
		payload = ciphertext
	}

	header := protocol.FrameHeader{
		ChannelID:      s.message.ChannelID,
		FrameType:      chunk.Type,
		EncryptionType: s.message.EncryptionType,
		MessageType:    s.message.MessageType,
	}

	logging.LogFrame("out", header.ChannelID.String(), header.FrameType.String(), encrypted, len(payload))
	return protocol.BuildFrame(header, payload, uint32(len(s.message.Payload)))
}

func (s *OutStream) fail(err error) {
	p := s.promise
	logging.Debug("Message stream failed",
		zap.Int("frame", s.next),
		zap.Int("frames", len(s.chunks)),
		zap.Error(err),
	)
	s.reset()
	if p != nil {
		p.Reject(err)
	}
}

func (s *OutStream) reset() {
	s.promise = nil
	s.message = nil
	s.chunks = nil
	s.next = 0
}
