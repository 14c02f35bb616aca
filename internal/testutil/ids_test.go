package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/nsaga/internal/task"
)

var _ task.IDGenerator = (*SequentialIDs)(nil)

func TestSequentialIDs(t *testing.T) {
	g := NewSequentialIDs("t")
	assert.Equal(t, "t-1", g.Generate())
	assert.Equal(t, "t-2", g.Generate())

	g.Reset()
	assert.Equal(t, "t-1", g.Generate())
}

func TestSequentialIDs_DefaultPrefix(t *testing.T) {
	assert.Equal(t, "task-1", NewSequentialIDs("").Generate())
}

func TestSequentialIDs_Concurrent(t *testing.T) {
	g := NewSequentialIDs("t")
	var wg sync.WaitGroup
	ids := make(chan string, 100)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				ids <- g.Generate()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, 100)
}

func TestDiscardLogger(t *testing.T) {
	assert.NotPanics(t, func() { DiscardLogger().Info("dropped", "k", "v") })
}
