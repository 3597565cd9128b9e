package dispatch

import (
	"context"
	"sync"
)

type loopKey struct{}

// OnLoop reports whether ctx belongs to a task running on a Loop.
func OnLoop(ctx context.Context) bool {
	l, _ := ctx.Value(loopKey{}).(*Loop)
	return l != nil
}

// Loop is a single-threaded FIFO task queue: the main context.
//
// The host runs it on one goroutine (typically the process main goroutine)
// with Run. Tasks receive a context for which OnLoop returns true.
//
// Thread Safety:
//   - Post and Close may be called from any goroutine.
//   - Run and RunPending must not be called concurrently.
type Loop struct {
	mu     sync.Mutex
	tasks  []func(context.Context)
	closed bool
	wake   chan struct{}
	done   chan struct{}
	once   sync.Once
}

// NewLoop creates an idle loop.
func NewLoop() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Post queues fn to run on the loop. It returns false once the loop is closed.
func (l *Loop) Post(fn func(ctx context.Context)) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Run executes posted tasks in order until Close is called or ctx ends.
// After Close, tasks already posted are run before Run returns nil.
// If ctx ends first, pending tasks are dropped and ctx.Err() is returned.
func (l *Loop) Run(ctx context.Context) error {
	defer l.once.Do(func() { close(l.done) })
	loopCtx := context.WithValue(ctx, loopKey{}, l)

	for {
		l.RunPending(loopCtx)

		l.mu.Lock()
		closed := l.closed && len(l.tasks) == 0
		l.mu.Unlock()
		if closed {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// RunPending runs the tasks queued at the time of the call on the calling
// goroutine and returns how many ran. Hosts that own their own event loop can
// call it instead of Run.
func (l *Loop) RunPending(ctx context.Context) int {
	if !OnLoop(ctx) {
		ctx = context.WithValue(ctx, loopKey{}, l)
	}

	l.mu.Lock()
	tasks := l.tasks
	l.tasks = nil
	l.mu.Unlock()

	for _, fn := range tasks {
		fn(ctx)
	}
	return len(tasks)
}

// Len returns the number of queued tasks.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks)
}

// Close stops accepting tasks and lets Run return once the queue is empty.
func (l *Loop) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
