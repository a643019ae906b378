// Package utxo derives the unspent outputs of an account by replaying the
// chain. Nothing is indexed, every call is a full scan of the chain.
package utxo

import (
	"sort"

	"github.com/ardanlabs/moon/foundation/blockchain/database"
)

// UTXO is an unspent output along with the key needed to spend it.
type UTXO struct {
	database.OutPoint
	database.TxOut
}

// ForAccount walks the chain from genesis and returns the outputs paid to the
// account that no input in the chain has spent. An input spends its key no
// matter who owns the output.
func ForAccount(blocks []database.Block, account database.AccountID) map[database.OutPoint]database.TxOut {
	unspent := make(map[database.OutPoint]database.TxOut)
	spent := make(map[database.OutPoint]struct{})

	for _, block := range blocks {
		if block.Coinbase.To == account {
			unspent[database.OutPoint{TxHash: block.Hash, Index: 0}] = block.Coinbase
		}

		for _, tx := range block.Trans {
			txHash := tx.Hash()

			for i, out := range tx.Outputs {
				if out.To == account {
					unspent[database.OutPoint{TxHash: txHash, Index: uint64(i)}] = out
				}
			}

			for _, in := range tx.Inputs {
				spent[in.OutPoint()] = struct{}{}
			}
		}
	}

	for op := range spent {
		delete(unspent, op)
	}

	return unspent
}

// Balance returns the sum of the unspent outputs of the account.
func Balance(blocks []database.Block, account database.AccountID) uint64 {
	var balance uint64
	for _, out := range ForAccount(blocks, account) {
		balance += out.Value
	}

	return balance
}

// Sorted returns the set ordered by transaction hash and then index so
// callers selecting outputs always see them in the same order.
func Sorted(set map[database.OutPoint]database.TxOut) []UTXO {
	utxos := make([]UTXO, 0, len(set))
	for op, out := range set {
		utxos = append(utxos, UTXO{OutPoint: op, TxOut: out})
	}

	sort.Slice(utxos, func(i, j int) bool {
		return utxos[i].OutPoint.Less(utxos[j].OutPoint)
	})

	return utxos
}
