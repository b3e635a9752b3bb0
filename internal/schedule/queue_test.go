package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskQueue_FIFO(t *testing.T) {
	q := newTaskQueue()

	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		require.True(t, q.Enqueue(func() { order = append(order, i) }))
	}
	assert.Equal(t, 3, q.Len())

	for i := 0; i < 3; i++ {
		task, ok := q.TryDequeue()
		require.True(t, ok)
		task()
	}
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.Equal(t, 0, q.Len())
}

func TestTaskQueue_TryDequeueEmpty(t *testing.T) {
	q := newTaskQueue()
	task, ok := q.TryDequeue()
	assert.Nil(t, task)
	assert.False(t, ok)
}

func TestTaskQueue_EnqueueSignals(t *testing.T) {
	q := newTaskQueue()
	require.True(t, q.Enqueue(func() {}))

	select {
	case <-q.Wait():
	default:
		t.Fatal("expected signal after enqueue")
	}
}

func TestTaskQueue_CloseRejectsEnqueue(t *testing.T) {
	q := newTaskQueue()
	q.Close()
	q.Close() // idempotent

	assert.False(t, q.Enqueue(func() {}))

	// Closed signal channel wakes all waiters.
	select {
	case <-q.Wait():
	default:
		t.Fatal("expected closed signal channel")
	}
}

func TestTaskQueue_DrainAfterClose(t *testing.T) {
	q := newTaskQueue()
	called := false
	require.True(t, q.Enqueue(func() { called = true }))
	q.Close()

	task, ok := q.TryDequeue()
	require.True(t, ok)
	task()
	assert.True(t, called)
}
