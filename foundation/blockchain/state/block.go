package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ardanlabs/moon/foundation/blockchain/database"
	"github.com/ardanlabs/moon/foundation/blockchain/utxo"
)

// ErrSupplyExhausted is returned when the reward for the next block is zero.
// No more blocks are mined once this happens.
var ErrSupplyExhausted = errors.New("supply exhausted")

// =============================================================================

// MineNewBlock retargets the difficulty, bundles every pending transaction
// with the coinbase and performs the work to find a block that can become
// the next block in the chain.
func (s *State) MineNewBlock(ctx context.Context) (database.Block, error) {
	chain := s.db.Copy()
	latest := chain[len(chain)-1]
	height := latest.Height + 1

	s.evHandler("state: MineNewBlock: MINING: check reward: blk[%d]", height)

	reward := s.genesis.Reward(height)
	if reward == 0 {
		return database.Block{}, ErrSupplyExhausted
	}

	s.evHandler("state: MineNewBlock: MINING: retarget")

	difficulty := database.NextDifficulty(s.genesis, chain)
	if difficulty != latest.Difficulty {
		s.evHandler("state: MineNewBlock: MINING: retarget: difficulty[%d] -> difficulty[%d]", latest.Difficulty, difficulty)
	}

	s.evHandler("state: MineNewBlock: MINING: perform POW")

	// Attempt to create a new block by solving the POW puzzle. This can be cancelled.
	trans := s.mempool.PickAll()
	block, err := database.POW(ctx, database.POWArgs{
		BeneficiaryID: s.beneficiaryID,
		Difficulty:    difficulty,
		MiningReward:  reward,
		PrevBlock:     &latest,
		TimeStamp:     uint64(time.Now().Unix()),
		Trans:         trans,
		EvHandler:     s.evHandler,
	})
	if err != nil {
		return database.Block{}, err
	}

	// Just check one more time we were not cancelled.
	if ctx.Err() != nil {
		return database.Block{}, ctx.Err()
	}

	s.evHandler("state: MineNewBlock: MINING: update database")

	if err := s.updateDatabase(block); err != nil {
		return database.Block{}, err
	}

	return block, nil
}

// =============================================================================

// updateDatabase appends the block to the chain, removes the mined
// transactions from the mempool and reports the new state of the node.
func (s *State) updateDatabase(block database.Block) error {
	s.evHandler("state: updateDatabase: append block")

	if err := s.db.Append(block); err != nil {
		return err
	}

	s.evHandler("state: updateDatabase: remove from mempool")

	for _, tx := range block.Trans {
		s.evHandler("state: updateDatabase: tx[%s] remove", tx)
		s.mempool.Delete(tx)
	}

	s.writeStatus(block)

	// Send an event about this new block.
	s.blockEvent(block)

	return nil
}

// writeStatus rewrites the status files. Failures are only reported.
func (s *State) writeStatus(block database.Block) {
	if s.status == nil {
		return
	}

	balance := utxo.Balance(s.db.Copy(), s.beneficiaryID)

	if err := s.status.Write(balance, block.Height); err != nil {
		s.evHandler("state: writeStatus: WARNING: %s", err)
	}
}

// blockEvent provides a specific event about a new block in the chain for
// application specific support.
func (s *State) blockEvent(block database.Block) {
	blockJSON, err := json.Marshal(block)
	if err != nil {
		blockJSON = []byte(fmt.Sprintf("%q", err.Error()))
	}

	s.evHandler(`viewer: block: {"hash":%q,"height":%d,"reward":%d,"block":%s}`, block.Hash, block.Height, block.Coinbase.Value, string(blockJSON))
}
