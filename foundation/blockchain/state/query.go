package state

import (
	"github.com/ardanlabs/moon/foundation/blockchain/database"
	"github.com/ardanlabs/moon/foundation/blockchain/utxo"
)

// QueryMempoolLength returns the current length of the mempool.
func (s *State) QueryMempoolLength() int {
	return s.mempool.Count()
}

// QueryBalance returns the spendable balance of the account.
func (s *State) QueryBalance(account database.AccountID) uint64 {
	return utxo.Balance(s.db.Copy(), account)
}

// QueryUTXOs returns the unspent outputs of the account in key order.
func (s *State) QueryUTXOs(account database.AccountID) []utxo.UTXO {
	return utxo.Sorted(utxo.ForAccount(s.db.Copy(), account))
}

// QueryNextDifficulty returns the difficulty the next block will be
// mined at.
func (s *State) QueryNextDifficulty() uint {
	return database.NextDifficulty(s.genesis, s.db.Copy())
}

// QueryBlocksByAccount returns the set of blocks by account. If the account
// is empty, all blocks are returned. A block belongs to an account when it
// pays the account or holds a transaction signed by the account.
func (s *State) QueryBlocksByAccount(accountID database.AccountID) []database.Block {
	blocks := s.db.Copy()
	if accountID == "" {
		return blocks
	}

	var out []database.Block
	for _, block := range blocks {
		if involves(block, accountID) {
			out = append(out, block)
		}
	}

	return out
}

// =============================================================================

func involves(block database.Block, accountID database.AccountID) bool {
	if block.Coinbase.To == accountID {
		return true
	}

	for _, tx := range block.Trans {
		for _, out := range tx.Outputs {
			if out.To == accountID {
				return true
			}
		}

		fromID, err := tx.FromAccount()
		if err == nil && fromID == accountID {
			return true
		}
	}

	return false
}
