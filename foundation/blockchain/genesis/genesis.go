// Package genesis maintains access to the genesis file and the consensus
// parameters it defines.
package genesis

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
)

// Genesis represents the genesis file.
type Genesis struct {
	Date            time.Time `json:"date"`             // Fixed timestamp of the genesis block.
	Difficulty      uint      `json:"difficulty"`       // Difficulty of the genesis block and of the first window.
	MinDifficulty   uint      `json:"min_difficulty"`   // Difficulty will never be retargeted below this value.
	BaseReward      uint64    `json:"base_reward"`      // Reward for mining a block before any halving.
	HalvingInterval uint64    `json:"halving_interval"` // Number of blocks between reward halvings.
	BlockTime       uint64    `json:"block_time"`       // Target seconds between blocks.
	RetargetWindow  uint64    `json:"retarget_window"`  // Number of blocks in a difficulty window.
	FasterDivisor   uint64    `json:"faster_divisor"`   // Difficulty goes up when a window takes less than expected / divisor.
	SlowerMultiple  uint64    `json:"slower_multiple"`  // Difficulty goes down when a window takes more than expected * multiple.
}

// Default returns the consensus parameters the moon network was started with.
func Default() Genesis {
	return Genesis{
		Date:            time.Unix(1764614400, 0).UTC(),
		Difficulty:      4,
		MinDifficulty:   1,
		BaseReward:      50,
		HalvingInterval: 210_000,
		BlockTime:       60,
		RetargetWindow:  2016,
		FasterDivisor:   2,
		SlowerMultiple:  2,
	}
}

// =============================================================================

// Load opens and consumes the genesis file. When the file does not exist the
// default parameters are returned. Values missing from the file are taken
// from the defaults.
func Load(path string) (Genesis, error) {
	gen := Default()

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return gen, nil
		}
		return Genesis{}, err
	}

	if err := json.Unmarshal(content, &gen); err != nil {
		return Genesis{}, fmt.Errorf("decoding genesis: %w", err)
	}

	if err := gen.Validate(); err != nil {
		return Genesis{}, err
	}

	return gen, nil
}

// Validate checks the parameters can drive the consensus rules.
func (g Genesis) Validate() error {
	switch {
	case g.HalvingInterval == 0:
		return errors.New("halving interval must be greater than zero")
	case g.RetargetWindow == 0:
		return errors.New("retarget window must be greater than zero")
	case g.FasterDivisor == 0:
		return errors.New("faster divisor must be greater than zero")
	case g.MinDifficulty > g.Difficulty:
		return fmt.Errorf("min difficulty %d is greater than difficulty %d", g.MinDifficulty, g.Difficulty)
	case g.Difficulty > 64:
		return fmt.Errorf("difficulty %d is larger than the hash", g.Difficulty)
	}

	return nil
}

// TimeStamp returns the genesis date in unix seconds.
func (g Genesis) TimeStamp() uint64 {
	return uint64(g.Date.Unix())
}

// Reward returns the coinbase amount for a block at the specified height.
// Shifting a uint64 by 64 or more yields zero, which caps the total supply.
func (g Genesis) Reward(height uint64) uint64 {
	return g.BaseReward >> (height / g.HalvingInterval)
}
