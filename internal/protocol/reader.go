package protocol

import (
	"fmt"
	"io"
)

// Frame is a decoded frame as it appeared on the wire.
type Frame struct {
	Header  FrameHeader
	Size    FrameSize
	Payload []byte
}

// ReadFrame reads one complete frame from r. It is used by diagnostics and
// tests; the message streams decode frames incrementally instead.
func ReadFrame(r io.Reader) (*Frame, error) {
	headerBuf := make([]byte, FrameHeaderSize)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return nil, fmt.Errorf("failed to read frame header: %w", err)
	}
	header, err := ParseFrameHeader(headerBuf)
	if err != nil {
		return nil, err
	}

	sizeBuf := make([]byte, header.SizeType().Len())
	if _, err := io.ReadFull(r, sizeBuf); err != nil {
		return nil, fmt.Errorf("failed to read frame size: %w", err)
	}
	size, err := ParseFrameSize(sizeBuf, header.SizeType())
	if err != nil {
		return nil, err
	}

	payload := make([]byte, size.FrameSize)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("failed to read frame payload: %w", err)
	}

	return &Frame{Header: header, Size: size, Payload: payload}, nil
}

func (f *Frame) String() string {
	return fmt.Sprintf("Frame{%s size=%s}", f.Header, f.Size)
}
