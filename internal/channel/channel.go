package channel

import (
	"github.com/muurk/aalink/internal/messenger"
	"github.com/muurk/aalink/internal/promise"
	"github.com/muurk/aalink/internal/protocol"
	"google.golang.org/protobuf/proto"
)

// Messenger is the part of *messenger.Messenger a channel uses.
type Messenger interface {
	EnqueueReceive(ch protocol.ChannelID, p *messenger.MessagePromise)
	EnqueueSend(msg *messenger.Message, p *messenger.SendPromise)
}

// Channel sends and receives messages for one channel id.
type Channel struct {
	id        protocol.ChannelID
	messenger Messenger
	strand    *promise.Strand
}

// New creates a channel bound to id.
func New(id protocol.ChannelID, m Messenger) *Channel {
	return &Channel{
		id:        id,
		messenger: m,
		strand:    promise.NewStrand(),
	}
}

// ID returns the channel id.
func (c *Channel) ID() protocol.ChannelID {
	return c.id
}

// Receive asks for the next message on this channel.
func (c *Channel) Receive(p *messenger.MessagePromise) {
	c.messenger.EnqueueReceive(c.id, p)
}

// SendRaw sends id followed by payload.
func (c *Channel) SendRaw(id protocol.MessageID, payload []byte, enc protocol.EncryptionType, mt protocol.MessageType, p *messenger.SendPromise) {
	msg := messenger.NewMessage(c.id, enc, mt)
	msg.InsertMessageID(id)
	msg.InsertPayload(payload)
	c.send(msg, p)
}

// Send sends id followed by the wire encoding of body. An encoding failure
// rejects p with PARSE_PAYLOAD without touching the messenger.
func (c *Channel) Send(id protocol.MessageID, body proto.Message, enc protocol.EncryptionType, mt protocol.MessageType, p *messenger.SendPromise) {
	msg := messenger.NewMessage(c.id, enc, mt)
	msg.InsertMessageID(id)
	if err := msg.InsertProto(body); err != nil {
		p.Reject(err)
		return
	}
	c.send(msg, p)
}

// SendAVMedia sends one encrypted media buffer stamped with ts.
func (c *Channel) SendAVMedia(ts protocol.Timestamp, data []byte, p *messenger.SendPromise) {
	msg := messenger.NewMessage(c.id, protocol.EncryptionEncrypted, protocol.MessageTypeSpecific)
	msg.InsertMessageID(protocol.MessageAVMediaWithTimestamp)
	msg.InsertTimestamp(ts)
	msg.InsertPayload(data)
	c.send(msg, p)
}

// send hands msg to the messenger through a promise owned by this channel,
// so the caller's handlers never run on the messenger's strands.
func (c *Channel) send(msg *messenger.Message, p *messenger.SendPromise) {
	c.messenger.EnqueueSend(msg, promise.Chain(c.strand, p))
}
