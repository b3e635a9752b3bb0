package engine

import (
	"errors"
	"fmt"
)

// UnknownSourceError reports an Update or SetExhausted call naming a source
// that was never configured. This is a programmer error: source names are
// fixed at construction, so an unknown name means miswired plumbing. It is
// returned immediately and must never be silently ignored.
type UnknownSourceError struct {
	// Source is the unregistered name that was passed in.
	Source string

	// Known lists the configured source names, for the error message.
	Known []string
}

// Error implements the error interface.
func (e *UnknownSourceError) Error() string {
	return fmt.Sprintf("unknown source %q (configured sources: %v)", e.Source, e.Known)
}

// IsUnknownSource returns true if the error is an UnknownSourceError.
// Uses errors.As to handle wrapped errors.
func IsUnknownSource(err error) bool {
	var use *UnknownSourceError
	return errors.As(err, &use)
}
