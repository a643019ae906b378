// Package boltdb implements the ability to read and write the chain to a
// bolt database file.
package boltdb

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ardanlabs/moon/foundation/blockchain/database"
	"github.com/boltdb/bolt"
)

// Bucket and keys used inside the bolt file.
var (
	chainBucket = []byte("chain")
	primaryKey  = []byte("primary")
	backupKey   = []byte("backup")
)

// ErrNoChain is returned by Load when nothing has been saved yet.
var ErrNoChain = errors.New("no chain stored")

// BoltDB represents the serialization implementation for reading and storing
// the chain in a bolt database. The whole chain is rewritten on every save
// under a primary and a backup key. This implements the database.Storage
// interface.
type BoltDB struct {
	db *bolt.DB
}

// New opens or creates the bolt database at the specified path.
func New(path string) (*BoltDB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt file %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(chainBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// Close closes the bolt database.
func (b *BoltDB) Close() error {
	return b.db.Close()
}

// Save writes the full chain under the primary and backup keys.
func (b *BoltDB) Save(blocks []database.Block) error {
	data, err := database.Encode(blocks)
	if err != nil {
		return err
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(chainBucket)

		if err := bucket.Put(primaryKey, data); err != nil {
			return fmt.Errorf("writing primary: %w", err)
		}

		if err := bucket.Put(backupKey, data); err != nil {
			return fmt.Errorf("writing backup: %w", err)
		}

		return nil
	})
}

// Load reads the chain under the primary key. If the primary value is missing
// or can't be decoded, the backup value is used.
func (b *BoltDB) Load() ([]database.Block, error) {
	var blocks []database.Block

	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(chainBucket)

		var perr error
		blocks, perr = decode(bucket.Get(primaryKey))
		if perr == nil {
			return nil
		}

		var berr error
		blocks, berr = decode(bucket.Get(backupKey))
		if berr == nil {
			return nil
		}

		return errors.Join(perr, berr)
	})

	if err != nil {
		return nil, err
	}

	return blocks, nil
}

// =============================================================================

// decode copies the value out of the bolt page before decoding since the
// memory is only valid inside the transaction.
func decode(value []byte) ([]database.Block, error) {
	if value == nil {
		return nil, ErrNoChain
	}

	data := make([]byte, len(value))
	copy(data, value)

	return database.Decode(data)
}
