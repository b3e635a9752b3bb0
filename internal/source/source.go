// Package source produces the record streams the correlation engine
// consumes. An adapter emits a lazy, finite sequence of records for one
// named source, then at most one end-of-stream event; fetch or parse
// failures are contained here and surfaced as a single error event per
// fetch, never as a panic or an unwound error through the engine.
//
// Each adapter supports two origins selected by run configuration - the
// live registry service (with credentials and raw-response capture) or a
// previously archived run - and the two are interchangeable from the
// engine's point of view: same record shape, same end and error semantics.
package source

import (
	"errors"
	"fmt"

	"github.com/licdata/licmerge/internal/record"
)

// Kind discriminates adapter events.
type Kind int

const (
	// KindRecord carries one record for one entity key.
	KindRecord Kind = iota + 1
	// KindEOF signals end-of-stream for the source. At most one per source.
	KindEOF
	// KindError reports a failed fetch. Fatal to the run's exit status,
	// not to other in-flight work.
	KindError
)

// Event is one item of a source's output sequence.
type Event struct {
	Source string
	Kind   Kind
	Key    string
	Record record.Fields
	Err    error
}

// Emitter receives adapter events. Implemented by the run loop's event
// queue, which serializes delivery onto the single mutation timeline.
type Emitter interface {
	Emit(Event)
}

// FetchError reports that a source adapter could not produce data: network
// failure, unexpected status, malformed response, or a missing archive
// capture. It is recorded and logged; it does not stop the run.
type FetchError struct {
	Source string
	Key    string // entity key or page name
	Err    error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s/%s: %v", e.Source, e.Key, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsFetchError returns true if the error is a FetchError.
// Uses errors.As to handle wrapped errors.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
