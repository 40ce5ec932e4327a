package clock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeq_StartsAtZero(t *testing.T) {
	assert.Equal(t, int64(0), NewSeq().Current())
	assert.Equal(t, int64(100), NewSeqAt(100).Current())
}

func TestSeq_NextIncrements(t *testing.T) {
	s := NewSeq()
	assert.Equal(t, int64(1), s.Next())
	assert.Equal(t, int64(2), s.Next())
	assert.Equal(t, int64(2), s.Current())
}

func TestSeq_ThreadSafe(t *testing.T) {
	s := NewSeq()
	const goroutines = 50
	const calls = 100

	var mu sync.Mutex
	seen := make(map[int64]bool)
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < calls; j++ {
				v := s.Next()
				mu.Lock()
				seen[v] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, goroutines*calls)
	assert.Equal(t, int64(goroutines*calls), s.Current())
}
