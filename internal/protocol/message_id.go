package protocol

import (
	"encoding/binary"
	"fmt"
)

// MessageIDSize is the encoded size of a MessageID.
const MessageIDSize = 2

// TimestampSize is the encoded size of a Timestamp.
const TimestampSize = 8

// MessageID identifies the schema of a message body within its channel and
// message type.
type MessageID uint16

// Control message ids used while bringing a session up.
const (
	MessageVersionRequest  MessageID = 0x0001
	MessageVersionResponse MessageID = 0x0002
	MessageSSLHandshake    MessageID = 0x0003
	MessageAuthComplete    MessageID = 0x0004
	MessagePingRequest     MessageID = 0x000b
	MessagePingResponse    MessageID = 0x000c
)

// AV channel media ids.
const (
	MessageAVMediaWithTimestamp MessageID = 0x0000
	MessageAVMedia              MessageID = 0x0001
)

// AppendTo appends the encoded id to b.
func (id MessageID) AppendTo(b []byte) []byte {
	return binary.BigEndian.AppendUint16(b, uint16(id))
}

// Bytes returns the encoded id.
func (id MessageID) Bytes() []byte {
	return id.AppendTo(make([]byte, 0, MessageIDSize))
}

func (id MessageID) String() string {
	return fmt.Sprintf("0x%04x", uint16(id))
}

// Timestamp is a presentation timestamp carried ahead of AV media.
type Timestamp uint64

// AppendTo appends the encoded timestamp to b.
func (ts Timestamp) AppendTo(b []byte) []byte {
	return binary.BigEndian.AppendUint64(b, uint64(ts))
}

// Bytes returns the encoded timestamp.
func (ts Timestamp) Bytes() []byte {
	return ts.AppendTo(make([]byte, 0, TimestampSize))
}
