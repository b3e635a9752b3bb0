package engine

import "github.com/licdata/licmerge/internal/record"

// UpdateEvent is emitted for every primary-source store, whether or not it
// completes the key's join. Hits is the number of distinct primary sources
// holding a record for Key after this store; consumers use it to react to
// partial progress (e.g. "2 of 3 primaries present, schedule the 3rd").
type UpdateEvent struct {
	Source string
	Key    string
	Record record.Fields
	Hits   int
	Seq    int64
}

// MergedEvent is emitted at most once per key, the instant the key first
// holds a record from every configured primary source. Record is the union
// of the primary records in source declaration order; later sources override
// earlier ones on field-name collision.
type MergedEvent struct {
	Key    string
	Record record.Fields
	Seq    int64
}

// Observer receives engine events. Both callbacks are invoked synchronously
// inside Update, on the engine's single timeline, so for a completing store
// OnUpdate is always called before the OnMerged it triggered and observers
// never run concurrently with each other.
type Observer interface {
	OnUpdate(UpdateEvent)
	OnMerged(MergedEvent)
}

// NopObserver is an Observer that ignores all events. Useful as a default
// and in tests that only exercise storage semantics.
type NopObserver struct{}

// OnUpdate implements Observer.
func (NopObserver) OnUpdate(UpdateEvent) {}

// OnMerged implements Observer.
func (NopObserver) OnMerged(MergedEvent) {}
