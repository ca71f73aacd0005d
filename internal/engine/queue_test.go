package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scocto/scoctoloc/internal/model"
)

func TestIntakeQueue_FIFO(t *testing.T) {
	q := newIntakeQueue()
	for _, id := range []string{"A", "B", "C"} {
		require.True(t, q.Enqueue(model.Pick{ID: id}))
	}
	assert.Equal(t, 3, q.Len())

	for _, want := range []string{"A", "B", "C"} {
		p, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, p.ID)
	}

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestIntakeQueue_SignalCoalesces(t *testing.T) {
	q := newIntakeQueue()
	q.Enqueue(model.Pick{ID: "A"})
	q.Enqueue(model.Pick{ID: "B"})

	select {
	case <-q.Wait():
	case <-time.After(time.Second):
		t.Fatal("expected signal")
	}

	select {
	case <-q.Wait():
		t.Fatal("second signal should have been coalesced")
	default:
	}
	assert.Equal(t, 2, q.Len())
}

func TestIntakeQueue_Close(t *testing.T) {
	q := newIntakeQueue()
	q.Enqueue(model.Pick{ID: "A"})
	q.Close()
	q.Close() // idempotent

	assert.True(t, q.Closed())
	assert.False(t, q.Enqueue(model.Pick{ID: "B"}), "enqueue after close should fail")

	p, ok := q.TryDequeue()
	require.True(t, ok, "queued picks survive close")
	assert.Equal(t, "A", p.ID)

	// The signal buffered by the first Enqueue is delivered before the
	// channel reports closed.
	deadline := time.After(time.Second)
	for {
		select {
		case _, open := <-q.Wait():
			if !open {
				return
			}
		case <-deadline:
			t.Fatal("closed queue should wake waiters")
		}
	}
}
