package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventQueue_FIFO(t *testing.T) {
	q := newEventQueue()

	for _, id := range []string{"A", "B", "C"} {
		require.True(t, q.Enqueue(Event{Type: EventFireTrigger, TriggerID: id}))
	}

	for _, want := range []string{"A", "B", "C"} {
		got, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, got.TriggerID)
	}
}

func TestEventQueue_TryDequeue_Empty(t *testing.T) {
	q := newEventQueue()

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestEventQueue_WaitSignals(t *testing.T) {
	q := newEventQueue()

	done := make(chan struct{})
	go func() {
		<-q.Wait()
		close(done)
	}()

	q.Enqueue(Event{Type: EventStart})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("wait did not signal")
	}
}

func TestEventQueue_Close(t *testing.T) {
	q := newEventQueue()
	q.Close()
	q.Close()

	assert.True(t, q.Closed())
	assert.False(t, q.Enqueue(Event{Type: EventStart}), "enqueue after close should return false")

	select {
	case <-q.Wait():
	default:
		t.Fatal("closed queue must wake waiters")
	}
}

func TestEventQueue_Len(t *testing.T) {
	q := newEventQueue()
	assert.Equal(t, 0, q.Len())

	q.Enqueue(Event{Type: EventStart})
	q.Enqueue(Event{Type: EventStart})
	assert.Equal(t, 2, q.Len())

	q.TryDequeue()
	assert.Equal(t, 1, q.Len())
}

func TestEventQueue_ThreadSafe(t *testing.T) {
	q := newEventQueue()

	const producers, perProducer = 10, 100

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perProducer {
				q.Enqueue(Event{Type: EventTimer, Epoch: uint64(p)})
			}
		}()
	}
	wg.Wait()

	received := 0
	for {
		if _, ok := q.TryDequeue(); !ok {
			break
		}
		received++
	}
	assert.Equal(t, producers*perProducer, received)
}

func TestEventQueue_DrainAfterClose(t *testing.T) {
	q := newEventQueue()
	q.Enqueue(Event{Type: EventKey})
	q.Close()

	e, ok := q.TryDequeue()
	require.True(t, ok, "events queued before Close stay readable")
	assert.Equal(t, EventKey, e.Type)
	_, ok = q.TryDequeue()
	assert.False(t, ok)
}

func TestEventQueue_Interleaved(t *testing.T) {
	q := newEventQueue()
	next := 0
	for round := range 5 {
		for i := range round + 1 {
			q.Enqueue(Event{Type: EventTimer, Epoch: uint64(next + i)})
		}
		for i := range round + 1 {
			e, ok := q.TryDequeue()
			require.True(t, ok)
			assert.Equal(t, uint64(next+i), e.Epoch)
		}
		next += round + 1
		assert.Zero(t, q.Len())
	}
}
