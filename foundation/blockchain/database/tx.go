package database

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ardanlabs/moon/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// OutPoint identifies a spendable output. Outputs of a transaction are keyed
// by the transaction hash and the position of the output. The coinbase of a
// block is keyed by the block hash and index 0.
type OutPoint struct {
	TxHash string `json:"tx_hash"`
	Index  uint64 `json:"index"`
}

// Less orders out points by hash and then by index.
func (op OutPoint) Less(other OutPoint) bool {
	if op.TxHash != other.TxHash {
		return op.TxHash < other.TxHash
	}
	return op.Index < other.Index
}

// String implements the fmt.Stringer interface for logging.
func (op OutPoint) String() string {
	return fmt.Sprintf("%s:%d", op.TxHash, op.Index)
}

// =============================================================================

// TxIn references a previous output being spent and carries the signature
// of the account that owns it.
type TxIn struct {
	TxHash    string        `json:"tx_hash"`
	Index     uint64        `json:"index"`
	Signature hexutil.Bytes `json:"sig"`
}

// OutPoint returns the key of the output this input spends.
func (in TxIn) OutPoint() OutPoint {
	return OutPoint{TxHash: in.TxHash, Index: in.Index}
}

// TxOut pays an amount to an account.
type TxOut struct {
	To    AccountID `json:"to"`
	Value uint64    `json:"value"`
}

// =============================================================================

// Tx moves value from a set of previous outputs to a set of new outputs.
// A transaction doesn't carry its own hash, it's computed on demand.
type Tx struct {
	Inputs  []TxIn  `json:"inputs"`
	Outputs []TxOut `json:"outputs"`
}

// Hash returns the digest of the serialized transaction, signatures included.
func (tx Tx) Hash() string {
	return signature.HashValue(tx)
}

// Sign uses the specified private key to sign the inputs and outputs of the
// transaction. The same signature is attached to every input.
func (tx Tx) Sign(privateKey *ecdsa.PrivateKey) (Tx, error) {
	if len(tx.Inputs) == 0 {
		return Tx{}, errors.New("transaction has no inputs to sign")
	}

	sig, err := signature.Sign(tx.signingData(), privateKey)
	if err != nil {
		return Tx{}, err
	}

	signed := Tx{
		Inputs:  make([]TxIn, len(tx.Inputs)),
		Outputs: make([]TxOut, len(tx.Outputs)),
	}
	copy(signed.Outputs, tx.Outputs)

	for i, in := range tx.Inputs {
		in.Signature = sig
		signed.Inputs[i] = in
	}

	return signed, nil
}

// FromAccount extracts the account id that signed the transaction. Every
// input is expected to carry the same signature.
func (tx Tx) FromAccount() (AccountID, error) {
	if len(tx.Inputs) == 0 {
		return "", errors.New("transaction has no inputs")
	}

	data := tx.signingData()

	var from string
	for i, in := range tx.Inputs {
		addr, err := signature.FromAddress(data, in.Signature)
		if err != nil {
			return "", fmt.Errorf("input %d: %w", i, err)
		}

		if i > 0 && addr != from {
			return "", fmt.Errorf("input %d signed by %s, exp %s", i, addr, from)
		}
		from = addr
	}

	return AccountID(from), nil
}

// TotalOutput returns the sum of all output values.
func (tx Tx) TotalOutput() uint64 {
	var total uint64
	for _, out := range tx.Outputs {
		total += out.Value
	}
	return total
}

// String implements the fmt.Stringer interface for logging.
func (tx Tx) String() string {
	return fmt.Sprintf("%s:in[%d]:out[%d]", tx.Hash(), len(tx.Inputs), len(tx.Outputs))
}

// signingData is the part of the transaction covered by the signature.
type signingData struct {
	Inputs  []OutPoint
	Outputs []TxOut
}

// signingData returns the inputs without their signatures and the outputs.
func (tx Tx) signingData() signingData {
	sd := signingData{
		Inputs:  make([]OutPoint, len(tx.Inputs)),
		Outputs: tx.Outputs,
	}

	for i, in := range tx.Inputs {
		sd.Inputs[i] = in.OutPoint()
	}

	return sd
}
