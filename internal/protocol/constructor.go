package protocol

import (
	"fmt"
	"math"
)

// BuildFrame compounds a complete frame: header, size field and payload.
// totalSize is only encoded for FIRST frames, where it carries the size of
// the whole message.
//
// The payload may exceed MaxFramePayloadSize when it is ciphertext of a
// full-size chunk; it must still fit the 16-bit size field.
func BuildFrame(header FrameHeader, payload []byte, totalSize uint32) ([]byte, error) {
	if len(payload) > math.MaxUint16 {
		return nil, fmt.Errorf("frame payload too large: %d bytes (max %d)", len(payload), math.MaxUint16)
	}

	sizeType := header.SizeType()
	size := FrameSize{
		Type:      sizeType,
		FrameSize: uint16(len(payload)),
		TotalSize: totalSize,
	}

	frame := make([]byte, 0, FrameHeaderSize+sizeType.Len()+len(payload))
	frame = header.AppendTo(frame)
	frame = size.AppendTo(frame)
	frame = append(frame, payload...)
	return frame, nil
}

// SplitPayload cuts a message payload into frame-sized chunks and assigns
// each its frame type. A payload shorter than MaxFramePayloadSize yields one
// BULK chunk. Longer payloads yield FIRST, zero or more MIDDLE and a final
// LAST chunk; a payload of exactly MaxFramePayloadSize bytes ends with an
// empty LAST chunk.
func SplitPayload(payload []byte) []Chunk {
	if len(payload) < MaxFramePayloadSize {
		return []Chunk{{Type: FrameTypeBulk, Data: payload}}
	}

	var chunks []Chunk
	offset := 0
	for {
		end := offset + MaxFramePayloadSize
		if end > len(payload) {
			end = len(payload)
		}

		frameType := FrameTypeMiddle
		switch {
		case offset == 0:
			frameType = FrameTypeFirst
		case end == len(payload):
			frameType = FrameTypeLast
		}

		chunks = append(chunks, Chunk{Type: frameType, Data: payload[offset:end]})
		if frameType == FrameTypeLast {
			return chunks
		}
		offset = end
	}
}

// Chunk is one frame's share of a message payload.
type Chunk struct {
	Type FrameType
	Data []byte
}
