// Package disk implements the ability to read and write the chain to disk
// using a primary file and a backup copy.
package disk

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ardanlabs/moon/foundation/blockchain/database"
)

// backupExt is appended to the primary file name to form the backup file.
const backupExt = ".safe"

// Disk represents the serialization implementation for reading and storing
// the chain in a file on disk. The whole chain is rewritten on every save.
// This implements the database.Storage interface.
type Disk struct {
	primary string
	backup  string
}

// New constructs a Disk value for use. The folder for the files is created
// if it doesn't exist.
func New(path string) (*Disk, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	d := Disk{
		primary: path,
		backup:  path + backupExt,
	}

	return &d, nil
}

// Close in this implementation has nothing to do since the files are opened
// and closed on every save.
func (d *Disk) Close() error {
	return nil
}

// Save writes the full chain to the primary file and then to the backup.
func (d *Disk) Save(blocks []database.Block) error {
	data, err := database.Encode(blocks)
	if err != nil {
		return err
	}

	if err := os.WriteFile(d.primary, data, 0600); err != nil {
		return fmt.Errorf("writing primary: %w", err)
	}

	if err := os.WriteFile(d.backup, data, 0600); err != nil {
		return fmt.Errorf("writing backup: %w", err)
	}

	return nil
}

// Load reads the chain from the primary file. If the primary file is missing
// or can't be decoded, the backup file is used.
func (d *Disk) Load() ([]database.Block, error) {
	blocks, perr := read(d.primary)
	if perr == nil {
		return blocks, nil
	}

	blocks, berr := read(d.backup)
	if berr == nil {
		return blocks, nil
	}

	return nil, errors.Join(perr, berr)
}

// Paths returns the location of the primary and backup files.
func (d *Disk) Paths() (primary string, backup string) {
	return d.primary, d.backup
}

// =============================================================================

func read(path string) ([]database.Block, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	blocks, err := database.DecodeFrom(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return blocks, nil
}
