package promise

import "sync"

// Strand runs posted functions one at a time in the order they were posted.
// The zero value is ready to use.
//
// A strand holds no goroutine while idle; a worker is started when work is
// posted to an empty strand and exits once the queue drains.
type Strand struct {
	mu      sync.Mutex
	queue   []func()
	running bool
}

// NewStrand creates an empty strand.
func NewStrand() *Strand {
	return &Strand{}
}

// Post queues fn for execution on the strand. Post never runs fn inline,
// even when called from a function already running on the same strand.
func (s *Strand) Post(fn func()) {
	s.mu.Lock()
	s.queue = append(s.queue, fn)
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	go s.run()
}

func (s *Strand) run() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.running = false
			s.mu.Unlock()
			return
		}
		fn := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		fn()
	}
}

// Sync posts fn and waits for it to complete. It must not be called from a
// function running on the same strand.
func (s *Strand) Sync(fn func()) {
	done := make(chan struct{})
	s.Post(func() {
		defer close(done)
		fn()
	})
	<-done
}
