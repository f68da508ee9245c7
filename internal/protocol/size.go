package protocol

import (
	"encoding/binary"
	"fmt"
)

// FrameSizeType selects the encoding of the frame size field.
type FrameSizeType int

// Frame size forms
const (
	FrameSizeShort FrameSizeType = iota
	FrameSizeExtended
)

// Encoded lengths of the frame size field.
const (
	ShortFrameSizeLen    = 2
	ExtendedFrameSizeLen = 6
)

// Len returns the encoded length of this size form.
func (t FrameSizeType) Len() int {
	if t == FrameSizeExtended {
		return ExtendedFrameSizeLen
	}
	return ShortFrameSizeLen
}

func (t FrameSizeType) String() string {
	if t == FrameSizeExtended {
		return "EXTENDED"
	}
	return "SHORT"
}

// FrameSize is the size field following a frame header. TotalSize is only
// encoded for the extended form.
type FrameSize struct {
	Type      FrameSizeType
	FrameSize uint16
	TotalSize uint32
}

// AppendTo appends the encoded size field to b.
func (s FrameSize) AppendTo(b []byte) []byte {
	b = binary.BigEndian.AppendUint16(b, s.FrameSize)
	if s.Type == FrameSizeExtended {
		b = binary.BigEndian.AppendUint32(b, s.TotalSize)
	}
	return b
}

// Bytes returns the encoded size field.
func (s FrameSize) Bytes() []byte {
	return s.AppendTo(make([]byte, 0, s.Type.Len()))
}

func (s FrameSize) String() string {
	if s.Type == FrameSizeExtended {
		return fmt.Sprintf("%d/%d", s.FrameSize, s.TotalSize)
	}
	return fmt.Sprintf("%d", s.FrameSize)
}
