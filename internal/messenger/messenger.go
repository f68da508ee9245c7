package messenger

import (
	"sync"

	"github.com/muurk/aalink/internal/logging"
	"github.com/muurk/aalink/internal/promise"
	"github.com/muurk/aalink/internal/protocol"
	"go.uber.org/zap"
)

// ChannelStats counts traffic on one channel.
type ChannelStats struct {
	MessagesReceived uint64
	MessagesSent     uint64
	BytesReceived    uint64
	BytesSent        uint64
	SendFailures     uint64
}

type sendEntry struct {
	message *Message
	promise *SendPromise
}

// Messenger multiplexes per-channel receives and sends onto one in-stream
// and one out-stream.
type Messenger struct {
	receiveStrand *promise.Strand
	sendStrand    *promise.Strand
	inStream      MessageReceiver
	outStream     MessageSender

	// owned by receiveStrand
	receivePromises  *receivePromiseQueue
	receivedMessages *receiveMessageQueue
	receiving        bool

	// owned by sendStrand
	sendQueue []sendEntry

	statsMu sync.Mutex
	stats   map[protocol.ChannelID]*ChannelStats
}

// New creates a messenger over the given streams.
func New(in MessageReceiver, out MessageSender) *Messenger {
	return &Messenger{
		receiveStrand:    promise.NewStrand(),
		sendStrand:       promise.NewStrand(),
		inStream:         in,
		outStream:        out,
		receivePromises:  newReceivePromiseQueue(),
		receivedMessages: newReceiveMessageQueue(),
		stats:            make(map[protocol.ChannelID]*ChannelStats),
	}
}

// EnqueueReceive asks for the next message on channel ch. A message that
// already arrived for ch is delivered without touching the stream.
func (m *Messenger) EnqueueReceive(ch protocol.ChannelID, p *MessagePromise) {
	m.receiveStrand.Post(func() {
		if !m.receivedMessages.empty(ch) {
			if p.TryResolve(m.receivedMessages.peek(ch)) {
				m.receivedMessages.pop(ch)
			}
			return
		}
		if p.Cancelled() {
			return
		}

		m.receivePromises.push(ch, p)
		if !m.receiving {
			m.startReceive()
		}
	})
}

// EnqueueSend queues msg behind every previously enqueued message.
func (m *Messenger) EnqueueSend(msg *Message, p *SendPromise) {
	m.sendStrand.Post(func() {
		m.sendQueue = append(m.sendQueue, sendEntry{message: msg, promise: p})
		if len(m.sendQueue) == 1 {
			m.doSend()
		}
	})
}

// Stop drops buffered messages nobody asked for. Outstanding receives and
// sends are not affected.
func (m *Messenger) Stop() {
	m.receiveStrand.Post(func() {
		if n := m.receivedMessages.clear(); n > 0 {
			logging.Debug("Dropped buffered messages on stop", zap.Int("count", n))
		}
	})
}

// Stats returns a copy of the per-channel counters.
func (m *Messenger) Stats() map[protocol.ChannelID]ChannelStats {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()

	out := make(map[protocol.ChannelID]ChannelStats, len(m.stats))
	for ch, s := range m.stats {
		out[ch] = *s
	}
	return out
}

func (m *Messenger) startReceive() {
	m.receiving = true

	p := promise.New[*Message](m.receiveStrand)
	p.Then(m.inStreamMessageHandler, m.rejectReceivePromises)
	m.inStream.StartReceive(p)
}

func (m *Messenger) inStreamMessageHandler(msg *Message) {
	m.receiving = false
	m.record(msg.ChannelID, func(s *ChannelStats) {
		s.MessagesReceived++
		s.BytesReceived += uint64(len(msg.Payload))
	})
	logging.LogMessage("in", msg.ChannelID.String(),
		msg.EncryptionType == protocol.EncryptionEncrypted, msg.Payload)

	m.deliver(msg)

	if !m.receivePromises.empty() {
		m.startReceive()
	}
}

// deliver hands msg to the oldest live receive on its channel, or buffers it
// when there is none. A receive cancelled after the queue was pruned
// refuses the message and the next one is tried.
func (m *Messenger) deliver(msg *Message) {
	for m.receivePromises.isPending(msg.ChannelID) {
		if m.receivePromises.pop(msg.ChannelID).TryResolve(msg) {
			return
		}
	}
	m.receivedMessages.push(msg)
}

// rejectReceivePromises fails every waiting receive on every channel: the
// stream position is unknown after an in-stream failure.
func (m *Messenger) rejectReceivePromises(err error) {
	m.receiving = false
	n := m.receivePromises.rejectAll(err)
	logging.Warn("Message stream failed, rejected pending receives",
		zap.Int("count", n),
		zap.Error(err),
	)
}

func (m *Messenger) doSend() {
	entry := m.sendQueue[0]

	p := promise.NewVoid(m.sendStrand)
	p.Then(func(promise.Void) {
		m.record(entry.message.ChannelID, func(s *ChannelStats) {
			s.MessagesSent++
			s.BytesSent += uint64(len(entry.message.Payload))
		})
		m.finishSend()
		entry.promise.Resolve(promise.Void{})
	}, func(err error) {
		m.record(entry.message.ChannelID, func(s *ChannelStats) {
			s.SendFailures++
		})
		logging.Debug("Message send failed",
			zap.Stringer("channel", entry.message.ChannelID),
			zap.Error(err),
		)
		m.finishSend()
		entry.promise.Reject(err)
	})

	logging.LogMessage("out", entry.message.ChannelID.String(),
		entry.message.EncryptionType == protocol.EncryptionEncrypted, entry.message.Payload)
	m.outStream.Stream(entry.message, p)
}

func (m *Messenger) finishSend() {
	m.sendQueue[0] = sendEntry{}
	m.sendQueue = m.sendQueue[1:]
	if len(m.sendQueue) > 0 {
		m.doSend()
	}
}

func (m *Messenger) record(ch protocol.ChannelID, update func(*ChannelStats)) {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()

	s, ok := m.stats[ch]
	if !ok {
		s = &ChannelStats{}
		m.stats[ch] = s
	}
	update(s)
}
