package messenger

import "github.com/muurk/aalink/internal/protocol"

// receivePromiseQueue holds pending receive requests per channel.
type receivePromiseQueue struct {
	queues map[protocol.ChannelID][]*MessagePromise
	size   int
}

func newReceivePromiseQueue() *receivePromiseQueue {
	return &receivePromiseQueue{queues: make(map[protocol.ChannelID][]*MessagePromise)}
}

func (q *receivePromiseQueue) push(ch protocol.ChannelID, p *MessagePromise) {
	q.queues[ch] = append(q.queues[ch], p)
	q.size++
}

// prune drops cancelled requests on ch. A cancelled request must never take
// a message from a live one.
func (q *receivePromiseQueue) prune(ch protocol.ChannelID) {
	pending := q.queues[ch]
	live := pending[:0]
	for _, p := range pending {
		if !p.Cancelled() {
			live = append(live, p)
		}
	}
	for i := len(live); i < len(pending); i++ {
		pending[i] = nil
	}
	q.size -= len(pending) - len(live)
	if len(live) == 0 {
		delete(q.queues, ch)
		return
	}
	q.queues[ch] = live
}

func (q *receivePromiseQueue) isPending(ch protocol.ChannelID) bool {
	q.prune(ch)
	return len(q.queues[ch]) > 0
}

func (q *receivePromiseQueue) pop(ch protocol.ChannelID) *MessagePromise {
	q.prune(ch)
	pending := q.queues[ch]
	if len(pending) == 0 {
		return nil
	}

	p := pending[0]
	if len(pending) == 1 {
		delete(q.queues, ch)
	} else {
		pending[0] = nil
		q.queues[ch] = pending[1:]
	}
	q.size--
	return p
}

func (q *receivePromiseQueue) empty() bool {
	for ch := range q.queues {
		q.prune(ch)
	}
	return q.size == 0
}

// rejectAll rejects every pending request and clears the queue.
func (q *receivePromiseQueue) rejectAll(err error) int {
	n := 0
	for _, pending := range q.queues {
		for _, p := range pending {
			if !p.Cancelled() {
				p.Reject(err)
				n++
			}
		}
	}
	q.queues = make(map[protocol.ChannelID][]*MessagePromise)
	q.size = 0
	return n
}

// receiveMessageQueue buffers messages that arrived before anyone asked
// for them.
type receiveMessageQueue struct {
	queues map[protocol.ChannelID][]*Message
}

func newReceiveMessageQueue() *receiveMessageQueue {
	return &receiveMessageQueue{queues: make(map[protocol.ChannelID][]*Message)}
}

func (q *receiveMessageQueue) push(m *Message) {
	q.queues[m.ChannelID] = append(q.queues[m.ChannelID], m)
}

func (q *receiveMessageQueue) empty(ch protocol.ChannelID) bool {
	return len(q.queues[ch]) == 0
}

func (q *receiveMessageQueue) peek(ch protocol.ChannelID) *Message {
	if buffered := q.queues[ch]; len(buffered) > 0 {
		return buffered[0]
	}
	return nil
}

func (q *receiveMessageQueue) pop(ch protocol.ChannelID) *Message {
	buffered := q.queues[ch]
	if len(buffered) == 0 {
		return nil
	}

	m := buffered[0]
	if len(buffered) == 1 {
		delete(q.queues, ch)
	} else {
		buffered[0] = nil
		q.queues[ch] = buffered[1:]
	}
	return m
}

func (q *receiveMessageQueue) clear() int {
	n := 0
	for _, buffered := range q.queues {
		n += len(buffered)
	}
	q.queues = make(map[protocol.ChannelID][]*Message)
	return n
}
