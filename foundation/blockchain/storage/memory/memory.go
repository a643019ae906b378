// Package memory implements the ability to read and write the chain to memory
// using a slice.
package memory

import (
	"sync"

	"github.com/ardanlabs/moon/foundation/blockchain/database"
)

// Memory represents the serialization implementation for reading and storing
// the chain in memory using a slice. This implements the database.Storage
// interface.
type Memory struct {
	mu     sync.RWMutex
	blocks []database.Block
	saves  int
	err    error
}

// New constructs a Memory value for use.
func New() *Memory {
	return &Memory{}
}

// Close in this implementation has nothing to do since everything
// is in memory.
func (m *Memory) Close() error {
	return nil
}

// Save replaces the stored chain with a copy of the specified chain.
func (m *Memory) Save(blocks []database.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}

	m.blocks = make([]database.Block, len(blocks))
	copy(m.blocks, blocks)
	m.saves++

	return nil
}

// Load returns a copy of the stored chain.
func (m *Memory) Load() ([]database.Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	blocks := make([]database.Block, len(m.blocks))
	copy(blocks, m.blocks)

	return blocks, nil
}

// Saves returns the number of successful saves.
func (m *Memory) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.saves
}

// FailSaves makes every following save return the specified error. Passing
// nil restores normal behavior.
func (m *Memory) FailSaves(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.err = err
}
