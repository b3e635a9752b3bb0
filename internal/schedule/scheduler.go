package schedule

import (
	"context"
	"log/slog"
	"time"

	"github.com/juju/clock"
)

// Scheduler accepts zero-argument deferred tasks. A task is expected to
// initiate (not synchronously complete) some asynchronous operation; the
// scheduler never observes or reacts to the task's outcome - a task that
// fails reports through its own error signaling.
//
// There is no priority, no per-task timeout, no cancellation and no retry:
// once scheduled, a task will eventually be dispatched as long as the
// scheduler keeps running.
type Scheduler interface {
	Schedule(task func())
}

// Immediate invokes each task synchronously with no delay and no queue.
// Schedule returns only after the task has run exactly once.
type Immediate struct{}

// Schedule implements Scheduler.
func (Immediate) Schedule(task func()) {
	task()
}

// Dispatcher is the rate-limited scheduler: an unbounded FIFO worked by a
// single runner that enforces a minimum delay between successive dispatch
// starts. See the package doc for the dispatch-only limiting contract.
type Dispatcher struct {
	queue *taskQueue
	clk   clock.Clock
	delay time.Duration
}

// NewDispatcher creates a rate-limited dispatcher with the given minimum
// inter-dispatch delay. The clock is injectable for tests; production code
// passes clock.WallClock.
func NewDispatcher(clk clock.Clock, delay time.Duration) *Dispatcher {
	return &Dispatcher{
		queue: newTaskQueue(),
		clk:   clk,
		delay: delay,
	}
}

// Schedule appends a task to the dispatch queue.
// Thread-safe: may be called from any goroutine. Tasks scheduled after
// Stop are dropped.
func (d *Dispatcher) Schedule(task func()) {
	if !d.queue.Enqueue(task) {
		slog.Warn("task scheduled after dispatcher stop, dropped")
	}
}

// Run starts the dispatch loop. Blocks until the context is cancelled or
// Stop is called with the queue drained.
//
// Must be called from exactly one goroutine. Each iteration pops the next
// task, invokes it, then waits the fixed delay before the next dispatch,
// regardless of whether the async work the task started has completed.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		task, ok := d.queue.TryDequeue()
		if ok {
			task()

			// Inter-dispatch spacing. The task's async work is not awaited.
			select {
			case <-ctx.Done():
				d.queue.Close()
				return ctx.Err()
			case <-d.clk.After(d.delay):
			}
			continue
		}

		select {
		case <-ctx.Done():
			d.queue.Close()
			return ctx.Err()

		case <-d.queue.Wait():
			// A task arrived or the queue closed. The signal is
			// coalesced, so a stale token can wake us with nothing to
			// do; only a closed and drained queue ends the run.
			if d.queue.Closed() && d.queue.Len() == 0 {
				return nil
			}
		}
	}
}

// Stop closes the queue. Run returns once remaining tasks have been
// dispatched.
func (d *Dispatcher) Stop() {
	d.queue.Close()
}

// Len returns the number of tasks waiting for dispatch.
func (d *Dispatcher) Len() int {
	return d.queue.Len()
}
