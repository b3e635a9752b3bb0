// Package run drives one harvest: it owns the single-writer event loop
// that drains source events into the correlation engine, reacts to engine
// progress by scheduling dependent fetches, forwards merged rows to the
// sink, and hands the finished run to the completion monitor.
//
// All engine and monitor mutation happens inside Run's goroutine. Adapters
// and fetch goroutines only touch the loop through the event queue, which
// is what keeps the key→record maps single-writer without locks.
package run

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/licdata/licmerge/internal/archive"
	"github.com/licdata/licmerge/internal/engine"
	"github.com/licdata/licmerge/internal/monitor"
	"github.com/licdata/licmerge/internal/record"
	"github.com/licdata/licmerge/internal/schedule"
	"github.com/licdata/licmerge/internal/sink"
	"github.com/licdata/licmerge/internal/source"
)

// Options wires a Loop. Engine, Monitor, Scheduler, Sink, Base and Roster
// are required; the rest are optional.
type Options struct {
	Engine    *engine.Engine
	Monitor   *monitor.Monitor
	Scheduler schedule.Scheduler
	Sink      *sink.CSV
	Base      string // base primary source: streamed in bulk, triggers dependent fetches

	Roster    source.Adapter   // base source origin (live or archive)
	Secondary []source.Adapter // zones and friends; streamed, never joined
	Fetchers  []source.Fetcher // dependent primary origins, one per non-base primary

	// When set, failed fetches are journaled for the audit trail. The
	// client journals successes itself; failures only surface here, as
	// error events.
	Archive *archive.Archive
	RunID   string
}

// Loop is the run orchestrator. Construct with New, drive with Run.
type Loop struct {
	opts        Options
	queue       *eventQueue
	ctx         context.Context
	scheduled   map[string]struct{} // keys whose dependent fetches were dispatched
	dependent   map[string]struct{} // sources fetched per key
	secondaries []string            // secondary source names, for row enrichment
}

// New creates a Loop over the given components.
func New(opts Options) *Loop {
	l := &Loop{
		opts:      opts,
		queue:     newEventQueue(),
		scheduled: make(map[string]struct{}),
		dependent: make(map[string]struct{}, len(opts.Fetchers)),
	}
	for _, f := range opts.Fetchers {
		l.dependent[f.Source()] = struct{}{}
	}
	for _, a := range opts.Secondary {
		l.secondaries = append(l.secondaries, a.Source())
	}
	return l
}

// Queue exposes the loop's emitter for tests that inject events directly.
func (l *Loop) Queue() source.Emitter {
	return l.queue
}

// OnUpdate implements engine.Observer. The first base-source record for a
// key makes the key eligible for a full join: its dependent fetches are
// scheduled and the monitor starts expecting it.
func (l *Loop) OnUpdate(e engine.UpdateEvent) {
	if e.Source != l.opts.Base {
		return
	}
	if _, done := l.scheduled[e.Key]; done {
		return
	}
	l.scheduled[e.Key] = struct{}{}

	l.opts.Monitor.Expect(e.Key)
	for _, f := range l.opts.Fetchers {
		l.opts.Scheduler.Schedule(f.FetchTask(l.ctx, e.Key, l.queue))
	}
	slog.Debug("dependent fetches scheduled", "key", e.Key, "fetchers", len(l.opts.Fetchers))
}

// OnMerged implements engine.Observer. Merged rows are enriched with
// whatever the secondary stores hold for the key at merge time, then go
// straight to the sink, on the loop timeline, in completion order. Primary
// fields win over secondary ones on collision.
func (l *Loop) OnMerged(e engine.MergedEvent) {
	row := e.Record
	for _, name := range l.secondaries {
		if extra, ok := l.opts.Engine.Get(name, e.Key); ok {
			row = record.Merge(extra, row)
		}
	}
	if err := l.opts.Sink.WriteRow(row); err != nil {
		// Log and continue: one unwritable row must not stop the run,
		// and the deferred CSV error resurfaces at flush.
		slog.Error("sink write failed", "key", e.Key, "error", err)
		l.opts.Monitor.NoteError()
	}
}

// Run executes the harvest to completion. Blocks until the run is complete
// or the context is cancelled; returns the reconciled run stats.
//
// Must be called from exactly one goroutine. All event processing, engine
// mutation and sink writes happen here.
func (l *Loop) Run(ctx context.Context) (monitor.Stats, error) {
	l.ctx = ctx
	defer l.queue.Close()

	slog.Info("run starting", "base", l.opts.Base)

	for _, adapter := range l.opts.Secondary {
		go adapter.Run(ctx, l.queue)
	}
	go l.opts.Roster.Run(ctx, l.queue)

	for {
		event, ok := l.queue.TryDequeue()
		if ok {
			if err := l.process(ctx, event); err != nil {
				return monitor.Stats{}, err
			}
			if l.opts.Monitor.Complete() {
				slog.Info("run complete, reconciling leftovers")
				return l.opts.Monitor.Reconcile(l.opts.Sink)
			}
			continue
		}

		select {
		case <-ctx.Done():
			return monitor.Stats{}, ctx.Err()
		case <-l.queue.Wait():
			// Loop back to TryDequeue.
		}
	}
}

// process applies one source event to the engine and monitor.
// Called only from the Run goroutine.
func (l *Loop) process(ctx context.Context, e source.Event) error {
	switch e.Kind {
	case source.KindRecord:
		// Update fires OnUpdate/OnMerged synchronously before returning.
		if err := l.opts.Engine.Update(e.Source, e.Key, e.Record); err != nil {
			// Unknown source is miswired plumbing; fail loudly.
			return fmt.Errorf("apply record %s/%s: %w", e.Source, e.Key, err)
		}

	case source.KindEOF:
		if err := l.opts.Engine.SetExhausted(e.Source); err != nil {
			return fmt.Errorf("exhaust %s: %w", e.Source, err)
		}
		if e.Source == l.opts.Base {
			l.opts.Monitor.SetExhausted()
		}
		slog.Debug("source exhausted", "source", e.Source)

	case source.KindError:
		l.opts.Monitor.NoteError()
		slog.Error("source error", "source", e.Source, "key", e.Key, "error", e.Err)

		// A failed dependent fetch means the key can never merge.
		if _, isDep := l.dependent[e.Source]; isDep && e.Key != "" {
			l.opts.Monitor.FetchFailed(e.Key)
		}

		if l.opts.Archive != nil && e.Err != nil {
			if err := l.opts.Archive.RecordError(ctx, l.opts.RunID, e.Source, e.Key, e.Err); err != nil {
				slog.Warn("journal error row failed", "source", e.Source, "key", e.Key, "error", err)
			}
		}

	default:
		return fmt.Errorf("unknown event kind: %d", e.Kind)
	}

	return nil
}
