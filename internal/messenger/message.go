package messenger

import (
	"fmt"

	"github.com/muurk/aalink/internal/errcode"
	"github.com/muurk/aalink/internal/promise"
	"github.com/muurk/aalink/internal/protocol"
	"google.golang.org/protobuf/proto"
)

// Message is one logical payload exchanged on one channel. A message is
// owned by exactly one component at a time; it is built by its producer
// and handed over whole.
type Message struct {
	ChannelID      protocol.ChannelID
	EncryptionType protocol.EncryptionType
	MessageType    protocol.MessageType
	Payload        []byte
}

// MessagePromise is resolved with a received message.
type MessagePromise = promise.Promise[*Message]

// SendPromise is resolved once a message has been fully streamed.
type SendPromise = promise.Promise[promise.Void]

// NewMessage creates an empty message.
func NewMessage(channelID protocol.ChannelID, encryptionType protocol.EncryptionType, messageType protocol.MessageType) *Message {
	return &Message{
		ChannelID:      channelID,
		EncryptionType: encryptionType,
		MessageType:    messageType,
	}
}

// InsertPayload appends data to the payload.
func (m *Message) InsertPayload(data []byte) {
	m.Payload = append(m.Payload, data...)
}

// InsertMessageID appends an encoded message id.
func (m *Message) InsertMessageID(id protocol.MessageID) {
	m.Payload = id.AppendTo(m.Payload)
}

// InsertTimestamp appends an encoded timestamp.
func (m *Message) InsertTimestamp(ts protocol.Timestamp) {
	m.Payload = ts.AppendTo(m.Payload)
}

// InsertProto appends the wire encoding of body.
func (m *Message) InsertProto(body proto.Message) error {
	out, err := proto.MarshalOptions{}.MarshalAppend(m.Payload, body)
	if err != nil {
		return errcode.Wrap(errcode.ParsePayload, err)
	}
	m.Payload = out
	return nil
}

func (m *Message) String() string {
	return fmt.Sprintf("Message{channel=%s enc=%s type=%s size=%d}",
		m.ChannelID, m.EncryptionType, m.MessageType, len(m.Payload))
}
