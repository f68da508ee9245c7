package messenger

import (
	"errors"

	"github.com/muurk/aalink/internal/errcode"
	"github.com/muurk/aalink/internal/logging"
	"github.com/muurk/aalink/internal/promise"
	"github.com/muurk/aalink/internal/protocol"
	"go.uber.org/zap"
)

// maxPreallocation caps the payload capacity reserved from the total size
// announced by a FIRST frame.
const maxPreallocation = 4 << 20

type inStreamState int

const (
	inStreamIdle inStreamState = iota
	inStreamAwaitingFrameHeader
	inStreamAwaitingFrameSize
	inStreamAwaitingFramePayload
)

func (s inStreamState) String() string {
	switch s {
	case inStreamIdle:
		return "idle"
	case inStreamAwaitingFrameHeader:
		return "awaiting_frame_header"
	case inStreamAwaitingFrameSize:
		return "awaiting_frame_size"
	case inStreamAwaitingFramePayload:
		return "awaiting_frame_payload"
	default:
		return "unknown"
	}
}

// InStream reassembles frames read from a Transport into messages.
type InStream struct {
	strand    *promise.Strand
	transport Transport
	cryptor   Cryptor

	// owned by strand
	state   inStreamState
	promise *MessagePromise
	message *Message
	header  protocol.FrameHeader
}

// NewInStream creates an idle in-stream. cryptor may be nil when no
// encrypted message is expected.
func NewInStream(t Transport, c Cryptor) *InStream {
	return &InStream{
		strand:    promise.NewStrand(),
		transport: t,
		cryptor:   c,
	}
}

// StartReceive reads the next complete message. It rejects with
// OPERATION_IN_PROGRESS while another receive is outstanding.
func (s *InStream) StartReceive(p *MessagePromise) {
	s.strand.Post(func() {
		if s.promise != nil {
			p.Reject(errcode.New(errcode.OperationInProgress))
			return
		}

		s.promise = p
		s.receiveFrameHeader()
	})
}

func (s *InStream) receiveFrameHeader() {
	s.state = inStreamAwaitingFrameHeader

	p := promise.New[[]byte](s.strand)
	p.Then(s.receiveFrameHeaderHandler, s.fail)
	s.transport.Receive(protocol.FrameHeaderSize, p)
}

func (s *InStream) receiveFrameHeaderHandler(data []byte) {
	header, err := protocol.ParseFrameHeader(data)
	if err != nil {
		s.fail(errcode.Wrap(errcode.ParsePayload, err))
		return
	}

	if s.message == nil {
		s.message = NewMessage(header.ChannelID, header.EncryptionType, header.MessageType)
	} else if s.message.ChannelID != header.ChannelID {
		logging.Warn("Frame interleaved into another channel's message",
			zap.Stringer("in_progress", s.message.ChannelID),
			zap.Stringer("received", header.ChannelID),
		)
		s.fail(errcode.New(errcode.MessengerIntertwinedChannel))
		return
	}

	s.header = header
	s.state = inStreamAwaitingFrameSize

	p := promise.New[[]byte](s.strand)
	p.Then(s.receiveFrameSizeHandler, s.fail)
	s.transport.Receive(header.SizeType().Len(), p)
}

func (s *InStream) receiveFrameSizeHandler(data []byte) {
	size, err := protocol.ParseFrameSize(data, s.header.SizeType())
	if err != nil {
		s.fail(errcode.Wrap(errcode.ParsePayload, err))
		return
	}

	if size.Type == protocol.FrameSizeExtended && len(s.message.Payload) == 0 {
		reserve := int(size.TotalSize)
		if reserve > maxPreallocation {
			reserve = maxPreallocation
		}
		s.message.Payload = make([]byte, 0, reserve)
	}

	s.state = inStreamAwaitingFramePayload

	p := promise.New[[]byte](s.strand)
	p.Then(s.receiveFramePayloadHandler, s.fail)
	s.transport.Receive(int(size.FrameSize), p)
}

func (s *InStream) receiveFramePayloadHandler(data []byte) {
	logging.LogFrame("in", s.header.ChannelID.String(), s.header.FrameType.String(),
		s.message.EncryptionType == protocol.EncryptionEncrypted, len(data))

	if s.message.EncryptionType == protocol.EncryptionEncrypted {
		if s.cryptor == nil {
			s.fail(errcode.Wrap(errcode.SSLRead, errors.New("encrypted frame without cryptor")))
			return
		}
		plaintext, err := s.cryptor.Decrypt(data)
		if err != nil {
			s.fail(err)
			return
		}
		s.message.InsertPayload(plaintext)
	} else {
		s.message.InsertPayload(data)
	}

	if !s.header.FrameType.Final() {
		s.receiveFrameHeader()
		return
	}

	p, m := s.promise, s.message
	s.reset()
	p.Resolve(m)
}

// fail rejects the outstanding receive and discards the partial message.
func (s *InStream) fail(err error) {
	p := s.promise
	logging.Debug("Message receive failed",
		zap.Stringer("state", s.state),
		zap.Error(err),
	)
	s.reset()
	if p != nil {
		p.Reject(err)
	}
}

func (s *InStream) reset() {
	s.state = inStreamIdle
	s.promise = nil
	s.message = nil
	s.header = protocol.FrameHeader{}
}
