// Package monitor decides when a run is finished and reconciles records
// whose join will never complete.
//
// Completion is evaluated from two externally observed facts: the base
// streaming source has reached end-of-stream, and every key that ever became
// eligible for a full join (a dependent fetch was scheduled for it) has been
// accounted for - either merged or failed. Reconciliation is intentionally a
// single pass executed once, after exhaustion, never per update: flushing
// per update could emit a record whose join would still have completed later.
package monitor

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/juju/clock"

	"github.com/licdata/licmerge/internal/engine"
	"github.com/licdata/licmerge/internal/record"
)

// RowWriter receives reconciled rows. Satisfied by the CSV sink.
type RowWriter interface {
	WriteRow(record.Fields) error
}

// Stats summarizes a finished run.
type Stats struct {
	Elapsed   time.Duration
	Expected  int
	Merged    int
	Failed    int
	Leftovers int
	HadErrors bool
}

// Monitor tracks run progress over the engine's read API.
//
// Not safe for concurrent use; like the engine, it lives on the run loop's
// single timeline.
type Monitor struct {
	eng  *engine.Engine
	base string // base primary source whose raw records are flushed
	clk  clock.Clock

	started    time.Time
	expected   map[string]struct{}
	failed     map[string]struct{}
	exhausted  bool
	hadErrors  bool
	reconciled bool
}

// New creates a Monitor over eng. base names the primary source whose
// records are forwarded unmodified when their join never completes.
func New(eng *engine.Engine, base string, clk clock.Clock) *Monitor {
	return &Monitor{
		eng:      eng,
		base:     base,
		clk:      clk,
		started:  clk.Now(),
		expected: make(map[string]struct{}),
		failed:   make(map[string]struct{}),
	}
}

// Expect records that key became eligible for a full join (its dependent
// fetches were scheduled). Idempotent per key.
func (m *Monitor) Expect(key string) {
	m.expected[key] = struct{}{}
}

// FetchFailed records that a dependent fetch for key errored, so the key
// can never merge. Idempotent per key. Without this accounting a single
// failed fetch would hold the run open forever.
func (m *Monitor) FetchFailed(key string) {
	m.failed[key] = struct{}{}
}

// NoteError marks the run as having had a source error. The flag only
// affects final process exit status; in-flight work continues.
func (m *Monitor) NoteError() {
	m.hadErrors = true
}

// HadErrors reports whether any source error was recorded during the run.
func (m *Monitor) HadErrors() bool {
	return m.hadErrors
}

// SetExhausted records that the base streaming source reached end-of-stream.
func (m *Monitor) SetExhausted() {
	m.exhausted = true
}

// Complete reports whether the run is finished: the base source is
// exhausted and every expected key has either merged or failed.
func (m *Monitor) Complete() bool {
	return m.exhausted && m.eng.MergedCount()+len(m.failed) >= len(m.expected)
}

// Reconcile forwards the raw base record of every key that never reached
// merged status to w, exactly once, and returns the run stats. Calling it
// again is a no-op returning zero stats and an error.
//
// Keys are flushed in sorted order so output is deterministic.
func (m *Monitor) Reconcile(w RowWriter) (Stats, error) {
	if m.reconciled {
		return Stats{}, fmt.Errorf("reconcile already ran")
	}
	m.reconciled = true

	keys := m.eng.IDs(m.base)
	slices.Sort(keys)

	leftovers := 0
	for _, key := range keys {
		if m.eng.Merged(key) {
			continue
		}
		rec, ok := m.eng.Get(m.base, key)
		if !ok {
			continue
		}
		if err := w.WriteRow(rec); err != nil {
			return Stats{}, fmt.Errorf("flush leftover %s: %w", key, err)
		}
		slog.Warn("unreconciled record flushed", "source", m.base, "key", key)
		leftovers++
	}

	stats := Stats{
		Elapsed:   m.clk.Now().Sub(m.started),
		Expected:  len(m.expected),
		Merged:    m.eng.MergedCount(),
		Failed:    len(m.failed),
		Leftovers: leftovers,
		HadErrors: m.hadErrors,
	}

	slog.Info("run complete",
		"elapsed", stats.Elapsed,
		"expected", stats.Expected,
		"merged", stats.Merged,
		"failed", stats.Failed,
		"leftovers", stats.Leftovers,
		"had_errors", stats.HadErrors,
	)

	return stats, nil
}
