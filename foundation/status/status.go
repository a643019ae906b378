// Package status writes plain text files describing the node for external
// dashboards to display.
package status

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// File names written into the status folder.
const (
	BalanceFile   = "balance.txt"
	LastBlockFile = "last_block.txt"
)

// Status writes the status files into a folder.
type Status struct {
	folder string
}

// New constructs a Status that writes into the specified folder. The folder
// is created if it doesn't exist.
func New(folder string) (*Status, error) {
	if err := os.MkdirAll(folder, 0755); err != nil {
		return nil, fmt.Errorf("creating status folder: %w", err)
	}

	return &Status{folder: folder}, nil
}

// Write replaces the balance and last block files.
func (s *Status) Write(balance uint64, height uint64) error {
	if err := s.write(BalanceFile, balance); err != nil {
		return err
	}

	return s.write(LastBlockFile, height)
}

// Read returns the values currently stored in the status files.
func (s *Status) Read() (balance uint64, height uint64, err error) {
	if balance, err = s.read(BalanceFile); err != nil {
		return 0, 0, err
	}

	if height, err = s.read(LastBlockFile); err != nil {
		return 0, 0, err
	}

	return balance, height, nil
}

// =============================================================================

func (s *Status) write(name string, value uint64) error {
	path := filepath.Join(s.folder, name)
	if err := os.WriteFile(path, []byte(strconv.FormatUint(value, 10)), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}

	return nil
}

func (s *Status) read(name string) (uint64, error) {
	data, err := os.ReadFile(filepath.Join(s.folder, name))
	if err != nil {
		return 0, err
	}

	return strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
}
