package run

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/licdata/licmerge/internal/source"
)

func TestEventQueue_FIFO(t *testing.T) {
	q := newEventQueue()

	q.Emit(source.Event{Source: "cdc", Kind: source.KindRecord, Key: "a"})
	q.Emit(source.Event{Source: "cdc", Kind: source.KindRecord, Key: "b"})
	q.Emit(source.Event{Source: "cdc", Kind: source.KindEOF})

	e, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, "a", e.Key)

	e, ok = q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, "b", e.Key)

	e, ok = q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, source.KindEOF, e.Kind)

	_, ok = q.TryDequeue()
	assert.False(t, ok)
}

func TestEventQueue_SignalCoalesces(t *testing.T) {
	q := newEventQueue()

	q.Emit(source.Event{Source: "cdc", Kind: source.KindRecord, Key: "a"})
	q.Emit(source.Event{Source: "cdc", Kind: source.KindRecord, Key: "b"})

	// Two emits, one pending signal; the consumer drains via TryDequeue.
	<-q.Wait()
	assert.Equal(t, 2, q.Len())

	select {
	case <-q.Wait():
		t.Fatal("signal was not coalesced")
	default:
	}
}

func TestEventQueue_DropsAfterClose(t *testing.T) {
	q := newEventQueue()
	q.Close()

	q.Emit(source.Event{Source: "cdc", Kind: source.KindRecord, Key: "a"})
	assert.Equal(t, 0, q.Len())

	// Wait is closed, so consumers never block on a dead queue.
	_, open := <-q.Wait()
	assert.False(t, open)

	// Close is idempotent.
	q.Close()
}
