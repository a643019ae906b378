// Package wallet builds and signs transactions that spend the unspent
// outputs of an account.
package wallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ardanlabs/moon/foundation/blockchain/database"
	"github.com/ardanlabs/moon/foundation/blockchain/utxo"
)

// ErrInsufficientFunds is returned when the account doesn't own enough
// unspent value to cover the amount.
var ErrInsufficientFunds = errors.New("insufficient funds")

// BuildSpend selects unspent outputs of the from account in key order until
// they cover the amount and returns a signed transaction paying the amount to
// the recipient. Any excess is returned to the from account as change. The
// accounts may be given in any hex case.
func BuildSpend(blocks []database.Block, from database.AccountID, privateKey *ecdsa.PrivateKey, to database.AccountID, amount uint64) (database.Tx, error) {
	if amount == 0 {
		return database.Tx{}, errors.New("amount must be greater than zero")
	}

	// Outputs are only found by their checksum form.
	from, err := database.ToAccountID(string(from))
	if err != nil {
		return database.Tx{}, fmt.Errorf("from account: %w", err)
	}

	to, err = database.ToAccountID(string(to))
	if err != nil {
		return database.Tx{}, fmt.Errorf("to account: %w", err)
	}

	utxos := utxo.Sorted(utxo.ForAccount(blocks, from))

	var tx database.Tx
	var total uint64
	for _, u := range utxos {
		if total >= amount {
			break
		}

		tx.Inputs = append(tx.Inputs, database.TxIn{TxHash: u.TxHash, Index: u.Index})
		total += u.Value
	}

	if total < amount {
		return database.Tx{}, fmt.Errorf("%w: balance %d, amount %d", ErrInsufficientFunds, total, amount)
	}

	tx.Outputs = append(tx.Outputs, database.TxOut{To: to, Value: amount})
	if total > amount {
		tx.Outputs = append(tx.Outputs, database.TxOut{To: from, Value: total - amount})
	}

	signed, err := tx.Sign(privateKey)
	if err != nil {
		return database.Tx{}, fmt.Errorf("signing transaction: %w", err)
	}

	return signed, nil
}

// Verify checks every input of the transaction carries a valid signature
// from the same account and returns that account. The node never calls this,
// it exists so a client can check what it's about to submit.
func Verify(tx database.Tx) (database.AccountID, error) {
	return tx.FromAccount()
}
