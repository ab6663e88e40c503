package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceGenerator_Sequence(t *testing.T) {
	g := NewSequenceGenerator("res")

	assert.Equal(t, "res-0001", g.Generate())
	assert.Equal(t, "res-0002", g.Generate())

	g.Reset()
	assert.Equal(t, "res-0001", g.Generate())
}

func TestSequenceGenerator_DefaultPrefix(t *testing.T) {
	g := NewSequenceGenerator("")
	assert.Equal(t, "id-0001", g.Generate())
}

func TestSequenceGenerator_ThreadSafe(t *testing.T) {
	g := NewSequenceGenerator("x")
	const numGoroutines = 100

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]bool)
	)
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			id := g.Generate()
			mu.Lock()
			defer mu.Unlock()
			seen[id] = true
		}()
	}
	wg.Wait()

	require.Len(t, seen, numGoroutines, "every ID is unique")
}
