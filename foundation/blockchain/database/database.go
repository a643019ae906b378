// Package database handles all the lower level support for maintaining the
// blockchain in memory and persisting it through a storage implementation.
package database

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ardanlabs/moon/foundation/blockchain/genesis"
)

// Storage interface represents the behavior required to be implemented by any
// package providing support for storing and reading the blockchain. The full
// chain is always written, there is no append.
type Storage interface {
	Load() ([]Block, error)
	Save(blocks []Block) error
	Close() error
}

// =============================================================================

// Database owns the authoritative copy of the chain. The miner is the only
// writer, everyone else works from a copy.
type Database struct {
	mu sync.RWMutex

	genesis   genesis.Genesis
	blocks    []Block
	storage   Storage
	evHandler func(v string, args ...any)
}

// New constructs a new database and loads the chain from storage. Missing,
// undecodable or invalid data is treated as no chain. When there is no chain the genesis
// block is mined, paying the coinbase to the specified beneficiary.
func New(gen genesis.Genesis, beneficiaryID AccountID, storage Storage, evHandler func(v string, args ...any)) (*Database, error) {
	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	db := Database{
		genesis:   gen,
		storage:   storage,
		evHandler: ev,
	}

	blocks, err := storage.Load()
	if err != nil {
		ev("database: New: load: WARNING: treating chain as empty: %s", err)
		blocks = nil
	}

	if err := ValidateChain(blocks, ev); err != nil {
		ev("database: New: validate: WARNING: treating chain as empty: %s", err)
		blocks = nil
	}
	db.blocks = blocks

	if len(db.blocks) > 0 {
		ev("database: New: loaded blocks[%d]: latestBlk[%s]", len(db.blocks), db.blocks[len(db.blocks)-1].Hash)
		return &db, nil
	}

	ev("database: New: creating genesis block")

	block, err := POW(context.Background(), POWArgs{
		BeneficiaryID: beneficiaryID,
		Difficulty:    gen.Difficulty,
		MiningReward:  gen.Reward(0),
		TimeStamp:     gen.TimeStamp(),
		EvHandler:     ev,
	})
	if err != nil {
		return nil, fmt.Errorf("mining genesis block: %w", err)
	}

	if err := db.Append(block); err != nil {
		return nil, fmt.Errorf("adding genesis block: %w", err)
	}

	return &db, nil
}

// Close closes the underlying storage.
func (db *Database) Close() error {
	return db.storage.Close()
}

// Append validates the block is the next block in the chain, adds it to the
// chain and persists the full chain. Storage failures are only reported as
// an event since the chain in memory has already moved forward.
func (db *Database) Append(block Block) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	switch l := len(db.blocks); l {
	case 0:
		if err := block.ValidateGenesis(db.evHandler); err != nil {
			return err
		}

	default:
		if err := block.ValidateBlock(db.blocks[l-1], db.evHandler); err != nil {
			return err
		}
	}

	db.blocks = append(db.blocks, block)

	db.evHandler("database: Append: write to storage: blk[%d]", block.Height)

	if err := db.storage.Save(db.blocks); err != nil {
		db.evHandler("database: Append: save: WARNING: %s", err)
	}

	return nil
}

// Copy returns a snapshot of the chain. Blocks are never changed once they
// are added so only the slice needs to be copied.
func (db *Database) Copy() []Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	blocks := make([]Block, len(db.blocks))
	copy(blocks, db.blocks)
	return blocks
}

// LatestBlock returns the latest block.
func (db *Database) LatestBlock() Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if len(db.blocks) == 0 {
		return Block{}
	}
	return db.blocks[len(db.blocks)-1]
}

// Count returns the number of blocks in the chain.
func (db *Database) Count() uint64 {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return uint64(len(db.blocks))
}

// GetBlock returns the block at the specified height.
func (db *Database) GetBlock(height uint64) (Block, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if height >= uint64(len(db.blocks)) {
		return Block{}, errors.New("block does not exist")
	}

	return db.blocks[height], nil
}
