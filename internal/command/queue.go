package command

import "sync"

// Queue is a FIFO of commands waiting for a connection.
//
// Enqueue may be called from any goroutine. Drain removes and returns the
// whole backlog in one step, so a command enqueued after a Drain began is left
// for the next Drain rather than being appended to the snapshot in flight.
type Queue struct {
	mu    sync.Mutex
	items []Command
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue appends cmd to the tail.
func (q *Queue) Enqueue(cmd Command) {
	q.mu.Lock()
	q.items = append(q.items, cmd)
	q.mu.Unlock()
}

// Drain removes every queued command and returns them in insertion order.
func (q *Queue) Drain() []Command {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()
	return items
}

// Clear discards every queued command and returns how many were dropped.
func (q *Queue) Clear() int {
	q.mu.Lock()
	n := len(q.items)
	q.items = nil
	q.mu.Unlock()
	return n
}

// Len returns the number of queued commands.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
