// Package testutil holds deterministic stand-ins used by the harness and tests.
package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs generates "<prefix>-1", "<prefix>-2", ... task ids.
//
// The same scenario run with a fresh SequentialIDs produces identical task ids,
// which keeps golden traces byte-identical across runs.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDs creates a generator. An empty prefix defaults to "task".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "task"
	}
	return &SequentialIDs{prefix: prefix}
}

// Generate returns the next id. Implements task.IDGenerator.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// Reset restarts numbering at 1.
func (g *SequentialIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
