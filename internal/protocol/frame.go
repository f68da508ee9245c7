package protocol

import "fmt"

// MaxFramePayloadSize is the largest payload a single frame may carry.
const MaxFramePayloadSize = 0x4000

// FrameHeaderSize is the encoded size of a FrameHeader.
const FrameHeaderSize = 2

// ChannelID identifies a logical channel multiplexed over the transport.
type ChannelID uint8

// Channel identifiers
const (
	ChannelControl     ChannelID = 0
	ChannelInput       ChannelID = 1
	ChannelSensor      ChannelID = 2
	ChannelVideo       ChannelID = 3
	ChannelMediaAudio  ChannelID = 4
	ChannelSpeechAudio ChannelID = 5
	ChannelSystemAudio ChannelID = 6
	ChannelAVInput     ChannelID = 7
	ChannelBluetooth   ChannelID = 8
	ChannelNone        ChannelID = 255
)

var channelNames = map[ChannelID]string{
	ChannelControl:     "CONTROL",
	ChannelInput:       "INPUT",
	ChannelSensor:      "SENSOR",
	ChannelVideo:       "VIDEO",
	ChannelMediaAudio:  "MEDIA_AUDIO",
	ChannelSpeechAudio: "SPEECH_AUDIO",
	ChannelSystemAudio: "SYSTEM_AUDIO",
	ChannelAVInput:     "AV_INPUT",
	ChannelBluetooth:   "BLUETOOTH",
	ChannelNone:        "NONE",
}

// String returns the channel name, or "CHANNEL(n)" for unknown ids.
func (c ChannelID) String() string {
	if name, ok := channelNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CHANNEL(%d)", uint8(c))
}

// Channels lists every known data channel, excluding ChannelNone.
func Channels() []ChannelID {
	return []ChannelID{
		ChannelControl, ChannelInput, ChannelSensor, ChannelVideo,
		ChannelMediaAudio, ChannelSpeechAudio, ChannelSystemAudio,
		ChannelAVInput, ChannelBluetooth,
	}
}

// FrameType is the position of a frame within its message.
type FrameType uint8

// Frame types
const (
	FrameTypeMiddle FrameType = 0
	FrameTypeFirst  FrameType = 1
	FrameTypeLast   FrameType = 2
	FrameTypeBulk   FrameType = 3
)

const frameTypeMask = 0x03

func (t FrameType) String() string {
	switch t {
	case FrameTypeMiddle:
		return "MIDDLE"
	case FrameTypeFirst:
		return "FIRST"
	case FrameTypeLast:
		return "LAST"
	case FrameTypeBulk:
		return "BULK"
	default:
		return fmt.Sprintf("FRAME_TYPE(%d)", uint8(t))
	}
}

// Final reports whether a frame of this type completes a message.
func (t FrameType) Final() bool {
	return t == FrameTypeLast || t == FrameTypeBulk
}

// EncryptionType tells whether a frame payload is TLS-protected.
type EncryptionType uint8

// Encryption types
const (
	EncryptionPlain     EncryptionType = 0
	EncryptionEncrypted EncryptionType = 1 << 3
)

const encryptionMask = 1 << 3

func (e EncryptionType) String() string {
	if e == EncryptionEncrypted {
		return "ENCRYPTED"
	}
	return "PLAIN"
}

// MessageType separates channel-generic control messages from
// channel-specific ones.
type MessageType uint8

// Message types
const (
	MessageTypeSpecific MessageType = 0
	MessageTypeControl  MessageType = 1 << 2
)

const messageTypeMask = 1 << 2

func (m MessageType) String() string {
	if m == MessageTypeControl {
		return "CONTROL"
	}
	return "SPECIFIC"
}

// FrameHeader is the 2-byte prefix of every frame.
type FrameHeader struct {
	ChannelID      ChannelID
	FrameType      FrameType
	EncryptionType EncryptionType
	MessageType    MessageType
}

// Flags returns the packed flags byte.
func (h FrameHeader) Flags() byte {
	return byte(h.FrameType&frameTypeMask) |
		byte(h.EncryptionType&encryptionMask) |
		byte(h.MessageType&messageTypeMask)
}

// AppendTo appends the encoded header to b.
func (h FrameHeader) AppendTo(b []byte) []byte {
	return append(b, byte(h.ChannelID), h.Flags())
}

// Bytes returns the encoded header.
func (h FrameHeader) Bytes() []byte {
	return h.AppendTo(make([]byte, 0, FrameHeaderSize))
}

// SizeType returns the frame size form that follows this header.
func (h FrameHeader) SizeType() FrameSizeType {
	if h.FrameType == FrameTypeFirst {
		return FrameSizeExtended
	}
	return FrameSizeShort
}

func (h FrameHeader) String() string {
	return fmt.Sprintf("channel=%s type=%s enc=%s msg=%s",
		h.ChannelID, h.FrameType, h.EncryptionType, h.MessageType)
}
