package engine

import (
	"log/slog"

	"github.com/licdata/licmerge/internal/record"
)

// Role distinguishes sources that are required for join completion from
// sources that are merely stored.
type Role int

const (
	// RolePrimary marks a source whose record is required, for every key,
	// before that key's join is considered complete.
	RolePrimary Role = iota + 1
	// RoleSecondary marks a source that is stored and queryable but never
	// evaluated for join completion.
	RoleSecondary
)

// sourceState is the engine-owned state for one configured source.
type sourceState struct {
	role      Role
	records   map[string]record.Fields
	exhausted bool
}

// Engine is the correlation core. Construct one per run with New; it is an
// explicit object, not ambient state, so multiple runs and tests can hold
// independent engines.
//
// INVARIANTS:
//   - primary slice order NEVER changes after construction; it fixes the
//     merge override order.
//   - A key transitions to merged at most once; MergedCount is monotonic.
//   - All mutation happens on the caller's single timeline (see package doc).
type Engine struct {
	primary  []string // declaration order, fixes merge override direction
	sources  map[string]*sourceState
	hits     map[string]int      // distinct primary sources per key, maintained incrementally
	merged   map[string]struct{} // keys that completed their join
	mergedN  int
	clock    *Clock
	observer Observer
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithObserver registers the observer receiving update and merged events.
// Defaults to NopObserver.
func WithObserver(obs Observer) Option {
	return func(e *Engine) {
		e.observer = obs
	}
}

// New creates an Engine with the given ordered primary and secondary source
// names. The primary slice is copied to protect the override-order invariant
// from external mutation.
func New(primary, secondary []string, opts ...Option) *Engine {
	e := &Engine{
		primary:  append([]string(nil), primary...),
		sources:  make(map[string]*sourceState, len(primary)+len(secondary)),
		hits:     make(map[string]int),
		merged:   make(map[string]struct{}),
		clock:    NewClock(),
		observer: NopObserver{},
	}
	for _, name := range e.primary {
		e.sources[name] = &sourceState{role: RolePrimary, records: make(map[string]record.Fields)}
	}
	for _, name := range secondary {
		e.sources[name] = &sourceState{role: RoleSecondary, records: make(map[string]record.Fields)}
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RegisterObserver replaces the engine's observer. Used when the consumer
// (the run loop) is constructed after the engine it observes. Passing nil
// restores the NopObserver.
func (e *Engine) RegisterObserver(obs Observer) {
	if obs == nil {
		e.observer = NopObserver{}
		return
	}
	e.observer = obs
}

// Update stores rec under (source, key), overwriting any prior value
// (last write wins). For a primary source it maintains the key's hit count
// incrementally and emits an update event for every store; if the count has
// just reached the number of configured primary sources and the key has not
// previously merged, the key is marked merged, MergedCount is incremented,
// and a merged event carrying the combined record is emitted.
//
// Event order within a single call: update first, merged second. Both are
// delivered before Update returns.
//
// Returns *UnknownSourceError if source was never configured. Secondary
// stores evaluate no count or merge logic.
func (e *Engine) Update(source, key string, rec record.Fields) error {
	src, ok := e.sources[source]
	if !ok {
		return &UnknownSourceError{Source: source, Known: e.SourceNames()}
	}

	_, seen := src.records[key]
	src.records[key] = rec

	if src.role != RolePrimary {
		return nil
	}

	if !seen {
		e.hits[key]++
	}
	hits := e.hits[key]

	e.observer.OnUpdate(UpdateEvent{
		Source: source,
		Key:    key,
		Record: rec,
		Hits:   hits,
		Seq:    e.clock.Next(),
	})

	if hits == len(e.primary) {
		if _, done := e.merged[key]; !done {
			e.merged[key] = struct{}{}
			e.mergedN++
			combined := e.combine(key)
			slog.Debug("key merged", "key", key, "merged_count", e.mergedN)
			e.observer.OnMerged(MergedEvent{
				Key:    key,
				Record: combined,
				Seq:    e.clock.Next(),
			})
		}
	}

	return nil
}

// combine unions the primary records for key in declaration order; later
// sources override earlier ones on field-name collision.
func (e *Engine) combine(key string) record.Fields {
	parts := make([]record.Fields, 0, len(e.primary))
	for _, name := range e.primary {
		if rec, ok := e.sources[name].records[key]; ok {
			parts = append(parts, rec)
		}
	}
	return record.Merge(parts...)
}

// Get returns the stored record for (source, key). The second return is
// false when the source is unknown or holds no record for key; Get never
// errors.
func (e *Engine) Get(source, key string) (record.Fields, bool) {
	src, ok := e.sources[source]
	if !ok {
		return nil, false
	}
	rec, ok := src.records[key]
	return rec, ok
}

// Has reports whether (source, key) holds a record.
func (e *Engine) Has(source, key string) bool {
	_, ok := e.Get(source, key)
	return ok
}

// IDs returns a snapshot of all keys currently stored for source. The slice
// is a defensive copy: callers may keep iterating it while the engine is
// mutated by later timeline events. Unknown sources yield nil.
func (e *Engine) IDs(source string) []string {
	src, ok := e.sources[source]
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(src.records))
	for k := range src.records {
		keys = append(keys, k)
	}
	return keys
}

// SetExhausted records that source will produce no more data. Idempotent.
// Does not itself trigger merge evaluation.
func (e *Engine) SetExhausted(source string) error {
	src, ok := e.sources[source]
	if !ok {
		return &UnknownSourceError{Source: source, Known: e.SourceNames()}
	}
	src.exhausted = true
	return nil
}

// Exhausted reports whether SetExhausted was called for source.
func (e *Engine) Exhausted(source string) bool {
	src, ok := e.sources[source]
	return ok && src.exhausted
}

// Merged reports whether key has completed its primary join.
func (e *Engine) Merged(key string) bool {
	_, ok := e.merged[key]
	return ok
}

// MergedCount returns the number of distinct keys that completed their
// primary join. Monotonic.
func (e *Engine) MergedCount() int {
	return e.mergedN
}

// PrimarySources returns the configured primary source names in declaration
// order. The returned slice is a copy.
func (e *Engine) PrimarySources() []string {
	return append([]string(nil), e.primary...)
}

// SourceNames returns all configured source names, primaries first in
// declaration order, then secondaries in map order.
func (e *Engine) SourceNames() []string {
	names := append([]string(nil), e.primary...)
	for name, src := range e.sources {
		if src.role == RoleSecondary {
			names = append(names, name)
		}
	}
	return names
}
