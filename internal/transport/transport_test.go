package transport

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/muurk/aalink/internal/errcode"
	"github.com/muurk/aalink/internal/promise"
)

type readResult struct {
	data []byte
	err  error
}

type fakeEndpoint struct {
	reads chan readResult

	mu        sync.Mutex
	writes    []byte
	calls     int
	maxWrite  int
	failWrite map[int]error
	closed    bool
}

func newFakeEndpoint() *fakeEndpoint {
	return &fakeEndpoint{
		reads:     make(chan readResult, 16),
		failWrite: make(map[int]error),
	}
}

func (f *fakeEndpoint) Read(ctx context.Context, buf []byte) (int, error) {
	select {
	case r := <-f.reads:
		return copy(buf, r.data), r.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (f *fakeEndpoint) Write(ctx context.Context, data []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	call := f.calls
	f.calls++
	if err, ok := f.failWrite[call]; ok {
		return 0, err
	}

	n := len(data)
	if f.maxWrite > 0 && n > f.maxWrite {
		n = f.maxWrite
	}
	f.writes = append(f.writes, data[:n]...)
	return n, nil
}

func (f *fakeEndpoint) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeEndpoint) written() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.writes...)
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
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for promise")
	}
	return outcome[T]{}
}

func receive(tr *Transport, size int) <-chan outcome[[]byte] {
	p := promise.New[[]byte](promise.NewStrand())
	ch := watch(p)
	tr.Receive(size, p)
	return ch
}

func send(tr *Transport, data []byte) <-chan outcome[promise.Void] {
	p := promise.NewVoid(promise.NewStrand())
	ch := watch(p)
	tr.Send(data, p)
	return ch
}

func TestTransportReceiveSlicesChunks(t *testing.T) {
	ep := newFakeEndpoint()
	tr := New(ep)
	defer tr.Stop()

	first := receive(tr, 5)
	second := receive(tr, 6)
	ep.reads <- readResult{data: []byte("hello world")}

	if o := wait(t, first); o.err != nil || string(o.value) != "hello" {
		t.Errorf("first receive = %q, %v; want %q", o.value, o.err, "hello")
	}
	if o := wait(t, second); o.err != nil || string(o.value) != " world" {
		t.Errorf("second receive = %q, %v; want %q", o.value, o.err, " world")
	}
}

func TestTransportReceiveSpansReads(t *testing.T) {
	ep := newFakeEndpoint()
	tr := New(ep)
	defer tr.Stop()

	got := receive(tr, 10)
	ep.reads <- readResult{data: []byte("0123")}
	ep.reads <- readResult{data: []byte("456789")}

	if o := wait(t, got); o.err != nil || string(o.value) != "0123456789" {
		t.Errorf("receive = %q, %v; want %q", o.value, o.err, "0123456789")
	}
}

func TestTransportReadFailureRejectsAll(t *testing.T) {
	ep := newFakeEndpoint()
	tr := New(ep)
	defer tr.Stop()

	readErr := errcode.Wrap(errcode.USBTransfer, errors.New("pipe stalled"))
	a := receive(tr, 4)
	b := receive(tr, 4)
	ep.reads <- readResult{data: []byte("xx"), err: readErr}

	for i, ch := range []<-chan outcome[[]byte]{a, b} {
		o := wait(t, ch)
		if !errcode.HasCode(o.err, errcode.USBTransfer) {
			t.Errorf("receive %d error = %v, want USB_TRANSFER", i, o.err)
		}
	}

	// the failed read's bytes must not leak into later receives
	c := receive(tr, 2)
	ep.reads <- readResult{data: []byte("ok")}
	if o := wait(t, c); o.err != nil || string(o.value) != "ok" {
		t.Errorf("receive after failure = %q, %v; want %q", o.value, o.err, "ok")
	}
}

func TestTransportStopAborts(t *testing.T) {
	ep := newFakeEndpoint()
	tr := New(ep)

	got := receive(tr, 1)
	tr.Stop()

	o := wait(t, got)
	if !errcode.HasCode(o.err, errcode.OperationAborted) {
		t.Errorf("receive error = %v, want OPERATION_ABORTED", o.err)
	}

	s := send(tr, []byte("late"))
	if o := wait(t, s); !errcode.HasCode(o.err, errcode.OperationAborted) {
		t.Errorf("send error = %v, want OPERATION_ABORTED", o.err)
	}
}

func TestTransportSendOrderAndPartialWrites(t *testing.T) {
	ep := newFakeEndpoint()
	ep.maxWrite = 3
	tr := New(ep)
	defer tr.Stop()

	s1 := send(tr, []byte("abcdefg"))
	s2 := send(tr, []byte("hij"))
	s3 := send(tr, []byte("klmnopqrstu"))

	for i, ch := range []<-chan outcome[promise.Void]{s1, s2, s3} {
		if o := wait(t, ch); o.err != nil {
			t.Errorf("send %d error = %v", i+1, o.err)
		}
	}

	if got := ep.written(); !bytes.Equal(got, []byte("abcdefghijklmnopqrstu")) {
		t.Errorf("written = %q, want %q", got, "abcdefghijklmnopqrstu")
	}
	if st := tr.Stats(); st.BytesSent != 21 {
		t.Errorf("BytesSent = %d, want 21", st.BytesSent)
	}
}

func TestTransportSendFailureIsLocal(t *testing.T) {
	ep := newFakeEndpoint()
	ep.failWrite[0] = errcode.Wrap(errcode.TCPTransfer, errors.New("reset"))
	tr := New(ep)
	defer tr.Stop()

	s1 := send(tr, []byte("first"))
	s2 := send(tr, []byte("second"))

	if o := wait(t, s1); !errcode.HasCode(o.err, errcode.TCPTransfer) {
		t.Errorf("send 1 error = %v, want TCP_TRANSFER", o.err)
	}
	if o := wait(t, s2); o.err != nil {
		t.Errorf("send 2 error = %v, want nil", o.err)
	}
	if got := string(ep.written()); got != "second" {
		t.Errorf("written = %q, want %q", got, "second")
	}
	if st := tr.Stats(); st.WriteFailures != 1 {
		t.Errorf("WriteFailures = %d, want 1", st.WriteFailures)
	}
}

func TestTransportClose(t *testing.T) {
	ep := newFakeEndpoint()
	tr := New(ep)

	if err := tr.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !ep.closed {
		t.Error("endpoint not closed")
	}
}
