package public

import (
	"fmt"

	"github.com/ardanlabs/moon/foundation/blockchain/database"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

type status struct {
	Height         uint64             `json:"height"`
	LatestHash     string             `json:"latest_hash"`
	Difficulty     uint               `json:"difficulty"`
	NextDifficulty uint               `json:"next_difficulty"`
	NextReward     uint64             `json:"next_reward"`
	Beneficiary    database.AccountID `json:"beneficiary"`
	Uncommitted    int                `json:"uncommitted"`
}

type account struct {
	Account database.AccountID `json:"account"`
	Name    string             `json:"name"`
	Balance uint64             `json:"balance"`
	UTXOs   int                `json:"utxos"`
}

type utxo struct {
	TxHash string             `json:"tx_hash"`
	Index  uint64             `json:"index"`
	To     database.AccountID `json:"to"`
	Value  uint64             `json:"value"`
}

type txIn struct {
	TxHash    string        `json:"tx_hash" validate:"required,len=64,hexadecimal"`
	Index     uint64        `json:"index"`
	Signature hexutil.Bytes `json:"sig"`
}

type txOut struct {
	To     database.AccountID `json:"to" validate:"required,account"`
	ToName string             `json:"to_name,omitempty"`
	Value  uint64             `json:"value" validate:"gt=0"`
}

type tx struct {
	Hash     string             `json:"hash,omitempty"`
	From     database.AccountID `json:"from,omitempty"`
	FromName string             `json:"from_name,omitempty"`
	Inputs   []txIn             `json:"inputs" validate:"required,min=1,dive"`
	Outputs  []txOut            `json:"outputs" validate:"required,min=1,dive"`
}

type block struct {
	Height          uint64             `json:"height"`
	TimeStamp       uint64             `json:"timestamp"`
	PrevBlockHash   string             `json:"prev_block_hash"`
	Hash            string             `json:"hash"`
	Nonce           uint64             `json:"nonce"`
	Difficulty      uint               `json:"difficulty"`
	Beneficiary     database.AccountID `json:"beneficiary"`
	BeneficiaryName string             `json:"beneficiary_name"`
	Reward          uint64             `json:"reward"`
	Trans           []tx               `json:"trans"`
}

// toDatabaseTx converts the submitted transaction into the form stored
// in a block. Accounts are stored in their checksum form since that is the
// form every query compares against.
func toDatabaseTx(t tx) (database.Tx, error) {
	dbTx := database.Tx{
		Inputs:  make([]database.TxIn, len(t.Inputs)),
		Outputs: make([]database.TxOut, len(t.Outputs)),
	}

	for i, in := range t.Inputs {
		dbTx.Inputs[i] = database.TxIn{TxHash: in.TxHash, Index: in.Index, Signature: in.Signature}
	}

	for i, out := range t.Outputs {
		to, err := database.ToAccountID(string(out.To))
		if err != nil {
			return database.Tx{}, fmt.Errorf("output %d: %w", i, err)
		}
		dbTx.Outputs[i] = database.TxOut{To: to, Value: out.Value}
	}

	return dbTx, nil
}
