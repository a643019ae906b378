// Package mempool maintains the transactions waiting to be mined.
package mempool

import (
	"errors"
	"sync"

	"github.com/ardanlabs/moon/foundation/blockchain/database"
)

// ErrFull is returned when the pool is at capacity.
var ErrFull = errors.New("mempool is full")

// Mempool represents a bounded cache of transactions keyed by transaction
// hash. Transactions are handed to the miner in the order they arrived.
type Mempool struct {
	mu       sync.RWMutex
	capacity int
	pool     map[string]database.Tx
	order    []string
}

// New constructs a new mempool that holds at most capacity transactions.
func New(capacity int) (*Mempool, error) {
	if capacity <= 0 {
		return nil, errors.New("capacity must be greater than zero")
	}

	mp := Mempool{
		capacity: capacity,
		pool:     make(map[string]database.Tx),
	}

	return &mp, nil
}

// Count returns the current number of transaction in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Upsert adds or replaces a transaction in the mempool. A replaced
// transaction keeps its place in line.
func (mp *Mempool) Upsert(tx database.Tx) (int, error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	key := tx.Hash()

	if _, exists := mp.pool[key]; !exists {
		if len(mp.pool) >= mp.capacity {
			return len(mp.pool), ErrFull
		}
		mp.order = append(mp.order, key)
	}

	mp.pool[key] = tx

	return len(mp.pool), nil
}

// Delete removes a transaction from the mempool.
func (mp *Mempool) Delete(tx database.Tx) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	key := tx.Hash()
	if _, exists := mp.pool[key]; !exists {
		return
	}

	delete(mp.pool, key)

	for i, k := range mp.order {
		if k == key {
			mp.order = append(mp.order[:i], mp.order[i+1:]...)
			break
		}
	}
}

// PickAll returns every transaction in the order they arrived. The
// transactions stay in the pool until they are deleted.
func (mp *Mempool) PickAll() []database.Tx {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	txs := make([]database.Tx, 0, len(mp.order))
	for _, key := range mp.order {
		txs = append(txs, mp.pool[key])
	}

	return txs
}
