package transport

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/muurk/aalink/internal/errcode"
	"github.com/muurk/aalink/internal/logging"
	"github.com/muurk/aalink/internal/promise"
	"go.uber.org/zap"
)

// ReceivePromise is resolved with exactly the requested number of bytes.
type ReceivePromise = promise.Promise[[]byte]

// SendPromise is resolved once the whole buffer has been written.
type SendPromise = promise.Promise[promise.Void]

type receiveRequest struct {
	size    int
	promise *ReceivePromise
}

type sendRequest struct {
	data    []byte
	promise *SendPromise
}

// Stats counts bytes moved by a Transport.
type Stats struct {
	BytesReceived uint64
	BytesSent     uint64
	ReadFailures  uint64
	WriteFailures uint64
}

// Transport serializes receive and send requests onto an Endpoint.
type Transport struct {
	endpoint Endpoint
	ctx      context.Context
	cancel   context.CancelFunc

	receiveStrand *promise.Strand
	sendStrand    *promise.Strand

	// owned by receiveStrand
	sink         *DataSink
	receiveQueue []receiveRequest
	reading      bool

	// owned by sendStrand
	sendQueue []sendRequest

	bytesReceived atomic.Uint64
	bytesSent     atomic.Uint64
	readFailures  atomic.Uint64
	writeFailures atomic.Uint64
}

// New creates a transport over endpoint.
func New(endpoint Endpoint) *Transport {
	ctx, cancel := context.WithCancel(context.Background())
	return &Transport{
		endpoint:      endpoint,
		ctx:           ctx,
		cancel:        cancel,
		receiveStrand: promise.NewStrand(),
		sendStrand:    promise.NewStrand(),
		sink:          NewDataSink(),
	}
}

// Receive queues a request for exactly size bytes.
func (t *Transport) Receive(size int, p *ReceivePromise) {
	t.receiveStrand.Post(func() {
		t.receiveQueue = append(t.receiveQueue, receiveRequest{size: size, promise: p})
		if len(t.receiveQueue) == 1 {
			t.distributeReceivedData()
		}
	})
}

// Send queues data to be written after every previously queued send.
func (t *Transport) Send(data []byte, p *SendPromise) {
	t.sendStrand.Post(func() {
		t.sendQueue = append(t.sendQueue, sendRequest{data: data, promise: p})
		if len(t.sendQueue) == 1 {
			t.doSend()
		}
	})
}

// Stop aborts outstanding I/O. Pending and later requests are rejected
// with OPERATION_ABORTED.
func (t *Transport) Stop() {
	t.cancel()
}

// Close stops the transport and releases the endpoint.
func (t *Transport) Close() error {
	t.Stop()
	return t.endpoint.Close()
}

// Stats returns a snapshot of the byte counters.
func (t *Transport) Stats() Stats {
	return Stats{
		BytesReceived: t.bytesReceived.Load(),
		BytesSent:     t.bytesSent.Load(),
		ReadFailures:  t.readFailures.Load(),
		WriteFailures: t.writeFailures.Load(),
	}
}

// distributeReceivedData serves queued receives from the sink in order and
// starts a device read when the head of the queue cannot be satisfied.
func (t *Transport) distributeReceivedData() {
	for len(t.receiveQueue) > 0 {
		req := t.receiveQueue[0]

		if t.sink.AvailableSize() < req.size {
			if !t.reading {
				t.startRead()
			}
			return
		}

		data, err := t.sink.Consume(req.size)
		if err != nil {
			t.rejectReceivePromises(err)
			return
		}

		t.receiveQueue[0] = receiveRequest{}
		t.receiveQueue = t.receiveQueue[1:]
		req.promise.Resolve(data)
	}
}

func (t *Transport) startRead() {
	if err := t.ctx.Err(); err != nil {
		t.rejectReceivePromises(errcode.Wrap(errcode.OperationAborted, err))
		return
	}

	t.reading = true
	buf := t.sink.Fill()

	go func() {
		n, err := t.endpoint.Read(t.ctx, buf)
		t.receiveStrand.Post(func() {
			t.receiveHandler(n, err)
		})
	}()
}

func (t *Transport) receiveHandler(n int, err error) {
	t.reading = false

	if err != nil {
		// drop the uncommitted chunk so later receives never see it
		_ = t.sink.Commit(0)
		t.readFailures.Add(1)
		t.rejectReceivePromises(abortedOr(t.ctx, err))
		return
	}

	if err := t.sink.Commit(n); err != nil {
		t.rejectReceivePromises(err)
		return
	}
	t.bytesReceived.Add(uint64(n))
	t.distributeReceivedData()
}

func (t *Transport) rejectReceivePromises(err error) {
	logging.Debug("Rejecting queued receives",
		zap.Int("count", len(t.receiveQueue)),
		zap.Error(err),
	)

	for _, req := range t.receiveQueue {
		req.promise.Reject(err)
	}
	t.receiveQueue = nil
}

func (t *Transport) doSend() {
	req := t.sendQueue[0]

	go func() {
		err := t.writeAll(req.data)
		t.sendStrand.Post(func() {
			t.sendHandler(err)
		})
	}()
}

// writeAll loops over partial writes until data is fully written.
func (t *Transport) writeAll(data []byte) error {
	if err := t.ctx.Err(); err != nil {
		return errcode.Wrap(errcode.OperationAborted, err)
	}

	offset := 0
	for offset < len(data) {
		n, err := t.endpoint.Write(t.ctx, data[offset:])
		if n > 0 {
			t.bytesSent.Add(uint64(n))
		}
		if err != nil {
			return abortedOr(t.ctx, err)
		}
		if n == 0 {
			return fmt.Errorf("endpoint accepted no bytes at offset %d of %d: %w", offset, len(data), io.ErrShortWrite)
		}
		offset += n
	}
	return nil
}

func (t *Transport) sendHandler(err error) {
	req := t.sendQueue[0]
	t.sendQueue[0] = sendRequest{}
	t.sendQueue = t.sendQueue[1:]

	if err != nil {
		t.writeFailures.Add(1)
		logging.Debug("Send failed", zap.Int("size", len(req.data)), zap.Error(err))
		req.promise.Reject(err)
	} else {
		req.promise.Resolve(promise.Void{})
	}

	if len(t.sendQueue) > 0 {
		t.doSend()
	}
}
