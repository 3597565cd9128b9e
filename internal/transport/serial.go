package transport

import "sync"

// Serializer runs callbacks one at a time, in submission order, on a single
// goroutine. Transport implementations use it to honour the callback contract
// without ever invoking a handler from inside Connect, Disconnect or Send.
//
// Post never blocks; the backlog is unbounded.
type Serializer struct {
	mu      sync.Mutex
	events  []func()
	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewSerializer starts the callback goroutine. Call Close when done.
func NewSerializer() *Serializer {
	s := &Serializer{
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go s.loop()
	return s
}

// Post queues fn.
func (s *Serializer) Post(fn func()) {
	s.mu.Lock()
	s.events = append(s.events, fn)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Flush blocks until every callback posted before the call has run, or the
// serializer is closed.
func (s *Serializer) Flush() {
	done := make(chan struct{})
	s.Post(func() { close(done) })
	select {
	case <-done:
	case <-s.stopped:
	}
}

// Close stops the goroutine. Callbacks not yet started are discarded.
func (s *Serializer) Close() {
	s.once.Do(func() {
		close(s.done)
		<-s.stopped
	})
}

func (s *Serializer) loop() {
	defer close(s.stopped)
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}

		for {
			s.mu.Lock()
			if len(s.events) == 0 {
				s.mu.Unlock()
				break
			}
			fn := s.events[0]
			s.events[0] = nil
			s.events = s.events[1:]
			s.mu.Unlock()

			fn()

			select {
			case <-s.done:
				return
			default:
			}
		}
	}
}
