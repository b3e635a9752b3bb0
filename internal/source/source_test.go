package source

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const testTimeout = 5 * time.Second

// captureEmitter collects events for assertions. Thread-safe because live
// adapters emit from their own goroutines.
type captureEmitter struct {
	mu     sync.Mutex
	events []Event
}

func (c *captureEmitter) Emit(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *captureEmitter) snapshot() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

func (c *captureEmitter) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

// records filters the captured events down to record events.
func (c *captureEmitter) records() []Event {
	var out []Event
	for _, e := range c.snapshot() {
		if e.Kind == KindRecord {
			out = append(out, e)
		}
	}
	return out
}

func TestFetchError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &FetchError{Source: "profile", Key: "L1", Err: cause}

	assert.Contains(t, err.Error(), "profile/L1")
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsFetchError(err))
	assert.False(t, IsFetchError(cause))
}
