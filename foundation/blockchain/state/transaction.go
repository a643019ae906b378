package state

import (
	"errors"

	"github.com/ardanlabs/moon/foundation/blockchain/database"
)

// SubmitTransaction accepts a transaction from a wallet for inclusion in the
// next block. Only the shape of the transaction is checked, signatures and
// the outputs being spent are not.
func (s *State) SubmitTransaction(tx database.Tx) error {
	if len(tx.Inputs) == 0 {
		return errors.New("transaction has no inputs")
	}

	if len(tx.Outputs) == 0 {
		return errors.New("transaction has no outputs")
	}

	n, err := s.mempool.Upsert(tx)
	if err != nil {
		return err
	}

	s.evHandler("state: SubmitTransaction: tx[%s]: mempool[%d]", tx, n)

	return nil
}
