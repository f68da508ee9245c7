package messenger

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/muurk/aalink/internal/promise"
	"github.com/muurk/aalink/internal/transport"
)

// loopEndpoint returns everything written to it from Read.
type loopEndpoint struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    bytes.Buffer
	closed bool
}

func newLoopEndpoint() *loopEndpoint {
	e := &loopEndpoint{}
	e.cond = sync.NewCond(&e.mu)
	return e
}

func (e *loopEndpoint) Read(ctx context.Context, b []byte) (int, error) {
	stop := context.AfterFunc(ctx, func() {
		e.mu.Lock()
		e.closed = true
		e.cond.Broadcast()
		e.mu.Unlock()
	})
	defer stop()

	e.mu.Lock()
	defer e.mu.Unlock()
	for e.buf.Len() == 0 {
		if e.closed {
			return 0, ctx.Err()
		}
		e.cond.Wait()
	}
	return e.buf.Read(b)
}

func (e *loopEndpoint) Write(ctx context.Context, b []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.buf.Write(b)
	e.cond.Broadcast()
	return len(b), nil
}

func (e *loopEndpoint) Close() error { return nil }

// recordingTransport captures sent bytes and serves receives from data
// pushed by the test.
type recordingTransport struct {
	*transport.Transport
	endpoint *loopEndpoint
}

func newLoopTransport(t *testing.T) *recordingTransport {
	t.Helper()
	ep := newLoopEndpoint()
	tr := transport.New(ep)
	t.Cleanup(tr.Stop)
	return &recordingTransport{Transport: tr, endpoint: ep}
}

func (r *recordingTransport) inject(data []byte) {
	_, _ = r.endpoint.Write(context.Background(), data)
}

// xorCryptor stands in for TLS: it prefixes a marker and flips bits, so
// ciphertext differs from plaintext in both size and content.
type xorCryptor struct {
	failEncrypt bool
}

var errBadRecord = errors.New("bad record")

func (c *xorCryptor) Encrypt(plaintext []byte) ([]byte, error) {
	if c.failEncrypt {
		return nil, errors.New("encrypt failed")
	}
	out := []byte{0xc0, 0xde}
	for _, b := range plaintext {
		out = append(out, b^0x5a)
	}
	return out, nil
}

func (c *xorCryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < 2 || ciphertext[0] != 0xc0 || ciphertext[1] != 0xde {
		return nil, errBadRecord
	}
	out := make([]byte, 0, len(ciphertext)-2)
	for _, b := range ciphertext[2:] {
		out = append(out, b^0x5a)
	}
	return out, nil
}

type outcome[T any] struct {
	value T
	err   error
}

func watch[T any](p *promise.Promise[T]) <-chan outcome[T] {
	ch := make(chan outcome[T], 1)
	p.Then(func(v T) { ch <- outcome[T]{value: v} }, func(err error) { ch <- outcome[T]{err: err} })
	return ch
}

func wait[T any](t *testing.T, ch <-chan outcome[T]) outcome[T] {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for promise")
	}
	return outcome[T]{}
}

func expectNothing[T any](t *testing.T, ch <-chan outcome[T]) {
	t.Helper()
	select {
	case o := <-ch:
		t.Fatalf("unexpected settlement: %+v", o)
	case <-time.After(50 * time.Millisecond):
	}
}

func newMessagePromise() (*MessagePromise, <-chan outcome[*Message]) {
	p := promise.New[*Message](promise.NewStrand())
	return p, watch(p)
}

func newSendPromise() (*SendPromise, <-chan outcome[promise.Void]) {
	p := promise.NewVoid(promise.NewStrand())
	return p, watch(p)
}

func patterned(size int) []byte {
	b := make([]byte, size)
	for i := range b {
		b[i] = byte(i*31 + i>>8)
	}
	return b
}
