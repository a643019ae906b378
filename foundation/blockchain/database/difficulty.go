package database

import (
	"github.com/ardanlabs/moon/foundation/blockchain/genesis"
	"github.com/ardanlabs/moon/foundation/blockchain/signature"
)

// maxDifficulty is the number of hex characters in a hash. A higher
// difficulty could never be solved.
const maxDifficulty = uint(len(signature.ZeroHash))

// NextDifficulty returns the difficulty the next block in the chain must be
// mined at. Difficulty is only reconsidered when the chain length lands on a
// retarget window boundary, otherwise the latest difficulty carries forward.
// The result only depends on the timestamps of the window boundary blocks.
func NextDifficulty(gen genesis.Genesis, blocks []Block) uint {
	l := uint64(len(blocks))
	if l == 0 {
		return gen.Difficulty
	}

	last := blocks[l-1]
	if l%gen.RetargetWindow != 0 {
		return last.Difficulty
	}

	first := blocks[l-gen.RetargetWindow]

	expected := gen.RetargetWindow * gen.BlockTime

	var actual uint64
	if last.TimeStamp > first.TimeStamp {
		actual = last.TimeStamp - first.TimeStamp
	}

	switch {
	case actual < expected/gen.FasterDivisor && last.Difficulty < maxDifficulty:
		return last.Difficulty + 1

	case actual > expected*gen.SlowerMultiple && last.Difficulty > gen.MinDifficulty:
		return last.Difficulty - 1

	default:
		return last.Difficulty
	}
}
