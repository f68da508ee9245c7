package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrShortBuffer is returned when a buffer is too small for the structure
// being decoded.
var ErrShortBuffer = errors.New("protocol: short buffer")

// ParseFrameHeader decodes a frame header from the first two bytes of data.
// Flag bits are masked into range; unknown combinations are not rejected.
func ParseFrameHeader(data []byte) (FrameHeader, error) {
	if len(data) < FrameHeaderSize {
		return FrameHeader{}, fmt.Errorf("frame header needs %d bytes, got %d: %w",
			FrameHeaderSize, len(data), ErrShortBuffer)
	}

	flags := data[1]
	return FrameHeader{
		ChannelID:      ChannelID(data[0]),
		FrameType:      FrameType(flags & frameTypeMask),
		EncryptionType: EncryptionType(flags & encryptionMask),
		MessageType:    MessageType(flags & messageTypeMask),
	}, nil
}

// ParseFrameSize decodes a frame size field of the given form.
func ParseFrameSize(data []byte, sizeType FrameSizeType) (FrameSize, error) {
	if len(data) < sizeType.Len() {
		return FrameSize{}, fmt.Errorf("%s frame size needs %d bytes, got %d: %w",
			sizeType, sizeType.Len(), len(data), ErrShortBuffer)
	}

	size := FrameSize{
		Type:      sizeType,
		FrameSize: binary.BigEndian.Uint16(data[0:2]),
	}
	if sizeType == FrameSizeExtended {
		size.TotalSize = binary.BigEndian.Uint32(data[2:6])
	}
	return size, nil
}

// ParseMessageID decodes the message id at the start of a message payload.
func ParseMessageID(data []byte) (MessageID, error) {
	if len(data) < MessageIDSize {
		return 0, fmt.Errorf("message id needs %d bytes, got %d: %w",
			MessageIDSize, len(data), ErrShortBuffer)
	}
	return MessageID(binary.BigEndian.Uint16(data)), nil
}

// ParseTimestamp decodes an 8-byte timestamp.
func ParseTimestamp(data []byte) (Timestamp, error) {
	if len(data) < TimestampSize {
		return 0, fmt.Errorf("timestamp needs %d bytes, got %d: %w",
			TimestampSize, len(data), ErrShortBuffer)
	}
	return Timestamp(binary.BigEndian.Uint64(data)), nil
}
