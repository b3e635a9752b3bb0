package run

import (
	"sync"

	"github.com/licdata/licmerge/internal/source"
)

// eventQueue is the thread-safe FIFO that delivers source-adapter events
// onto the loop's single mutation timeline. Adapters emit from their own
// goroutines; only the loop dequeues.
//
// Unbounded: a roster page can emit hundreds of records at once and
// adapters must never block on the loop. A buffered signal channel
// (size 1) coalesces wake-ups; it closes when the queue closes.
type eventQueue struct {
	mu     sync.Mutex
	events []source.Event
	closed bool
	signal chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]source.Event, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Emit implements source.Emitter. Events emitted after Close are dropped;
// by then the run has already completed and nothing reads them.
func (q *eventQueue) Emit(e source.Event) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.events = append(q.events, e)

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// TryDequeue attempts to dequeue without blocking.
func (q *eventQueue) TryDequeue() (source.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return source.Event{}, false
	}

	e := q.events[0]

	// Nil out the slot so the backing array does not retain record maps.
	q.events[0] = source.Event{}
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Wait returns a channel that signals when events may be available.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close stops accepting events and wakes all waiters.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
