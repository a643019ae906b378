package state

import (
	"github.com/ardanlabs/moon/foundation/blockchain/database"
	"github.com/ardanlabs/moon/foundation/blockchain/genesis"
)

// RetrieveGenesis returns a copy of the genesis information.
func (s *State) RetrieveGenesis() genesis.Genesis {
	return s.genesis
}

// RetrieveBeneficiary returns the account receiving the mining rewards.
func (s *State) RetrieveBeneficiary() database.AccountID {
	return s.beneficiaryID
}

// RetrieveLatestBlock returns a copy the current latest block.
func (s *State) RetrieveLatestBlock() database.Block {
	return s.db.LatestBlock()
}

// RetrieveChain returns a snapshot of the full chain.
func (s *State) RetrieveChain() []database.Block {
	return s.db.Copy()
}

// RetrieveBlock returns the block at the specified height.
func (s *State) RetrieveBlock(height uint64) (database.Block, error) {
	return s.db.GetBlock(height)
}

// RetrieveMempool returns a copy of the mempool in the order the
// transactions will be mined.
func (s *State) RetrieveMempool() []database.Tx {
	return s.mempool.PickAll()
}
