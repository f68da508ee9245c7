package promise

import (
	"errors"
	"testing"
	"time"
)

func waitFor[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for promise handler")
	}
	var zero T
	return zero
}

func TestPromiseResolve(t *testing.T) {
	s := NewStrand()
	p := New[int](s)

	got := make(chan int, 1)
	p.Then(func(v int) { got <- v }, func(err error) { t.Errorf("unexpected reject: %v", err) })
	p.Resolve(42)

	if v := waitFor(t, got); v != 42 {
		t.Errorf("resolved value = %d, want 42", v)
	}
}

func TestPromiseReject(t *testing.T) {
	s := NewStrand()
	p := NewVoid(s)

	want := errors.New("boom")
	got := make(chan error, 1)
	p.Then(func(Void) { t.Error("unexpected resolve") }, func(err error) { got <- err })
	p.Reject(want)

	if err := waitFor(t, got); !errors.Is(err, want) {
		t.Errorf("rejected with %v, want %v", err, want)
	}
}

func TestPromiseSettlesOnce(t *testing.T) {
	s := NewStrand()
	p := New[string](s)

	calls := make(chan string, 4)
	p.Then(func(v string) { calls <- v }, func(err error) { calls <- "reject" })
	p.Resolve("first")
	p.Resolve("second")
	p.Reject(errors.New("late"))

	if v := waitFor(t, calls); v != "first" {
		t.Errorf("first call = %q, want %q", v, "first")
	}
	s.Sync(func() {})

	select {
	case v := <-calls:
		t.Errorf("unexpected extra call %q", v)
	default:
	}
	if !p.Settled() {
		t.Error("Settled() = false, want true")
	}
}

func TestPromiseHandlerNeverInline(t *testing.T) {
	s := NewStrand()
	p := New[int](s)

	ran := false
	s.Sync(func() {
		p.Then(func(int) { ran = true }, nil)
		p.Resolve(1)
		if ran {
			t.Error("handler ran inline inside Resolve")
		}
	})
	s.Sync(func() {})

	if !ran {
		t.Error("handler did not run")
	}
}

func TestPromiseRetainsSettlementUntilThen(t *testing.T) {
	s := NewStrand()
	p := New[int](s)

	p.Resolve(7)

	got := make(chan int, 1)
	p.Then(func(v int) { got <- v }, nil)

	if v := waitFor(t, got); v != 7 {
		t.Errorf("resolved value = %d, want 7", v)
	}
}

func TestPromiseThenReplacesHandlers(t *testing.T) {
	s := NewStrand()
	p := New[int](s)

	got := make(chan string, 2)
	p.Then(func(int) { got <- "old" }, nil)
	p.Then(func(int) { got <- "new" }, nil)
	p.Resolve(1)

	if v := waitFor(t, got); v != "new" {
		t.Errorf("handler = %q, want %q", v, "new")
	}
}

func TestPromiseCancelDropsSettlement(t *testing.T) {
	s := NewStrand()
	p := New[int](s)

	got := make(chan int, 1)
	p.Then(func(v int) { got <- v }, nil)
	p.Cancel()
	p.Resolve(3)
	s.Sync(func() {})

	select {
	case v := <-got:
		t.Errorf("handler ran after cancel with %d", v)
	default:
	}
	if p.Settled() {
		t.Error("Settled() = true after cancel, want false")
	}
}

func TestForward(t *testing.T) {
	a := NewStrand()
	b := NewStrand()

	dst := New[int](b)
	got := make(chan int, 1)
	dst.Then(func(v int) { got <- v }, nil)

	src := Chain(a, dst)
	src.Resolve(9)

	if v := waitFor(t, got); v != 9 {
		t.Errorf("forwarded value = %d, want 9", v)
	}
}

func TestForwardReject(t *testing.T) {
	s := NewStrand()

	dst := NewVoid(s)
	got := make(chan error, 1)
	dst.Then(nil, func(err error) { got <- err })

	src := NewVoid(s)
	Forward(src, dst)
	want := errors.New("fail")
	src.Reject(want)

	if err := waitFor(t, got); err != want {
		t.Errorf("forwarded error = %v, want %v", err, want)
	}
}

func TestPromiseTryResolve(t *testing.T) {
	s := NewStrand()

	p := New[int](s)
	got := make(chan int, 1)
	p.Then(func(v int) { got <- v }, nil)
	if !p.TryResolve(4) {
		t.Fatal("TryResolve() = false on a pending promise")
	}
	if v := waitFor(t, got); v != 4 {
		t.Errorf("resolved value = %d, want 4", v)
	}
	if p.TryResolve(5) {
		t.Error("TryResolve() = true on a settled promise")
	}

	cancelled := New[int](s)
	cancelled.Cancel()
	if !cancelled.Cancelled() {
		t.Error("Cancelled() = false after Cancel")
	}
	if cancelled.TryResolve(6) {
		t.Error("TryResolve() = true after Cancel")
	}
	if p.Cancelled() {
		t.Error("Cancelled() = true on a resolved promise")
	}
}
