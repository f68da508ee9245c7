package promise

import (
	"sync"

	"github.com/muurk/aalink/internal/logging"
	"go.uber.org/zap"
)

// Void is the value type of promises that only signal completion.
type Void = struct{}

type state int

const (
	statePending state = iota
	stateResolved
	stateRejected
	stateDelivered
	stateCancelled
)

// Promise is a single-assignment future whose handlers run on a Strand.
type Promise[T any] struct {
	strand *Strand

	mu        sync.Mutex
	state     state
	value     T
	err       error
	onResolve func(T)
	onReject  func(error)
}

// New creates a pending promise bound to strand.
func New[T any](strand *Strand) *Promise[T] {
	return &Promise[T]{strand: strand}
}

// NewVoid creates a completion-only promise bound to strand.
func NewVoid(strand *Strand) *Promise[Void] {
	return New[Void](strand)
}

// Then attaches handlers, replacing any previous attachment. Either handler
// may be nil. If the promise already settled, the matching handler is posted
// immediately.
func (p *Promise[T]) Then(onResolve func(T), onReject func(error)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.onResolve = onResolve
	p.onReject = onReject

	if p.state == stateResolved || p.state == stateRejected {
		p.deliverLocked()
	}
}

// Resolve settles the promise with v. Only the first settlement counts.
func (p *Promise[T]) Resolve(v T) {
	p.TryResolve(v)
}

// TryResolve settles the promise with v and reports whether it took the
// value. It returns false when the promise was cancelled or already settled,
// so the caller still owns v.
func (p *Promise[T]) TryResolve(v T) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.settleLocked("resolve") {
		return false
	}
	p.state = stateResolved
	p.value = v
	p.deliverLocked()
	return true
}

// Reject settles the promise with err. Only the first settlement counts.
func (p *Promise[T]) Reject(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.settleLocked("reject") {
		return
	}
	p.state = stateRejected
	p.err = err
	p.deliverLocked()
}

// Cancel makes the promise inert. Handlers are released and any later
// settlement is dropped.
func (p *Promise[T]) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == statePending || p.state == stateResolved || p.state == stateRejected {
		p.state = stateCancelled
	}
	p.onResolve = nil
	p.onReject = nil
}

// Cancelled reports whether Cancel has been called.
func (p *Promise[T]) Cancelled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == stateCancelled
}

// Settled reports whether Resolve or Reject has been called.
func (p *Promise[T]) Settled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == stateResolved || p.state == stateRejected || p.state == stateDelivered
}

func (p *Promise[T]) settleLocked(op string) bool {
	switch p.state {
	case statePending:
		return true
	case stateCancelled:
		logging.Warn("Promise settlement dropped after cancel", zap.String("op", op))
		return false
	default:
		logging.Debug("Promise already settled", zap.String("op", op))
		return false
	}
}

// deliverLocked posts the attached handler for the current settlement. The
// settlement stays retained until a handler for it is attached.
func (p *Promise[T]) deliverLocked() {
	switch p.state {
	case stateResolved:
		if p.onResolve == nil {
			if p.onReject != nil {
				// rejection-only attachment: nothing listens for the value
				p.release()
			}
			return
		}
		fn, v := p.onResolve, p.value
		p.strand.Post(func() { fn(v) })
		p.release()
	case stateRejected:
		if p.onReject == nil {
			if p.onResolve != nil {
				logging.Warn("Promise rejected without a reject handler", zap.Error(p.err))
				p.release()
			}
			return
		}
		fn, err := p.onReject, p.err
		p.strand.Post(func() { fn(err) })
		p.release()
	}
}

func (p *Promise[T]) release() {
	var zero T
	p.state = stateDelivered
	p.value = zero
	p.onResolve = nil
	p.onReject = nil
}

// Forward settles dst with the outcome of src. Both promises may be bound to
// different strands; dst handlers still run on dst's strand.
func Forward[T any](src, dst *Promise[T]) {
	src.Then(dst.Resolve, dst.Reject)
}

// Chain returns a promise on strand whose outcome is forwarded to dst.
func Chain[T any](strand *Strand, dst *Promise[T]) *Promise[T] {
	p := New[T](strand)
	Forward(p, dst)
	return p
}
