package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequentialIDs_Order(t *testing.T) {
	g := NewSequentialIDs("step")
	assert.Equal(t, "step-1", g.Generate())
	assert.Equal(t, "step-2", g.Generate())
	assert.Equal(t, 2, g.Count())
}

func TestSequentialIDs_DefaultPrefix(t *testing.T) {
	assert.Equal(t, "id-1", NewSequentialIDs("").Generate())
}

func TestSequentialIDs_Reset(t *testing.T) {
	g := NewSequentialIDs("x")
	g.Generate()
	g.Generate()
	g.Reset()
	assert.Equal(t, 0, g.Count())
	assert.Equal(t, "x-1", g.Generate())
}

func TestSequentialIDs_ConcurrentUnique(t *testing.T) {
	g := NewSequentialIDs("c")
	const n = 100

	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := g.Generate()
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, seen, n)
	assert.Equal(t, n, g.Count())
}
