package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/ardanlabs/moon/foundation/blockchain/signature"
)

// ErrInvalidBlock is returned when a block can't be the next block
// in the chain.
var ErrInvalidBlock = errors.New("invalid block")

// =============================================================================

// Block represents a group of transactions batched together with the
// coinbase output that pays the miner.
type Block struct {
	Height        uint64 `json:"height"`          // Bitcoin: Position of the block in the chain, zero for genesis.
	TimeStamp     uint64 `json:"timestamp"`       // Bitcoin: Time the block was mined.
	PrevBlockHash string `json:"prev_block_hash"` // Bitcoin: Hash of the previous block in the chain.
	Hash          string `json:"hash"`            // Bitcoin: Hash of this block, solves the POW puzzle.
	Nonce         uint64 `json:"nonce"`           // Bitcoin: Value identified to solve the hash solution.
	Difficulty    uint   `json:"difficulty"`      // Ethereum: Number of 0's needed to solve the hash solution.
	Trans         []Tx   `json:"trans"`           // Transactions included in this block.
	Coinbase      TxOut  `json:"coinbase"`        // Newly issued value paid to the miner.
}

// POWArgs represents the set of arguments required to run POW.
type POWArgs struct {
	BeneficiaryID AccountID
	Difficulty    uint
	MiningReward  uint64
	PrevBlock     *Block // Nil when mining the genesis block.
	TimeStamp     uint64
	Trans         []Tx
	EvHandler     func(v string, args ...any)
}

// POW constructs a new Block and performs the work to find a nonce that
// solves the cryptographic POW puzzle.
func POW(ctx context.Context, args POWArgs) (Block, error) {
	ev := args.EvHandler
	if ev == nil {
		ev = func(string, ...any) {}
	}

	// When mining the first block, the previous block's hash will be zero.
	var height uint64
	prevBlockHash := signature.ZeroHash
	if args.PrevBlock != nil {
		height = args.PrevBlock.Height + 1
		prevBlockHash = args.PrevBlock.Hash
	}

	// Construct the block to be mined.
	nb := Block{
		Height:        height,
		TimeStamp:     args.TimeStamp,
		PrevBlockHash: prevBlockHash,
		Nonce:         0, // Will be identified by the POW algorithm.
		Difficulty:    args.Difficulty,
		Trans:         args.Trans,
		Coinbase: TxOut{
			To:    args.BeneficiaryID,
			Value: args.MiningReward,
		},
	}

	// Perform the proof of work mining operation.
	if err := nb.performPOW(ctx, ev); err != nil {
		return Block{}, err
	}

	return nb, nil
}

// performPOW does the work of mining to find a valid hash for a specified
// block. Pointer semantics are being used since a nonce is being discovered.
func (b *Block) performPOW(ctx context.Context, ev func(v string, args ...any)) error {
	ev("database: PerformPOW: MINING: started: blk[%d]: difficulty[%d]", b.Height, b.Difficulty)
	defer ev("database: PerformPOW: MINING: completed: blk[%d]", b.Height)

	// Log the transactions that are a part of this potential block.
	for _, tx := range b.Trans {
		ev("database: PerformPOW: MINING: tx[%s]", tx)
	}

	// The search starts at zero and only moves forward by one. It only
	// ends when a solution is found or the node is shutting down.
	var attempts uint64
	for {
		attempts++
		if attempts%1_000_000 == 0 {
			ev("database: PerformPOW: MINING: attempts[%d]", attempts)
		}

		// Did we get asked to stop.
		if attempts%1024 == 0 && ctx.Err() != nil {
			ev("database: PerformPOW: MINING: CANCELLED")
			return ctx.Err()
		}

		// Hash the block and check if we have solved the puzzle.
		hash := b.CalculateHash()
		if !IsHashSolved(b.Difficulty, hash) {
			b.Nonce++
			continue
		}

		b.Hash = hash

		ev("database: PerformPOW: MINING: SOLVED: prevBlk[%s]: newBlk[%s]", b.PrevBlockHash, b.Hash)
		ev("database: PerformPOW: MINING: attempts[%d]", attempts)

		return nil
	}
}

// CalculateHash returns the hash of the block header fields. Transactions
// and the coinbase are not part of the hash.
func (b Block) CalculateHash() string {
	return BlockHash(b.Height, b.PrevBlockHash, b.TimeStamp, b.Nonce, b.Difficulty)
}

// ValidateBlock takes a block and validates it can be the next block
// after the previous block.
func (b Block) ValidateBlock(previousBlock Block, evHandler func(v string, args ...any)) error {
	evHandler("database: ValidateBlock: validate: blk[%d]: check: block number is the next number", b.Height)

	nextNumber := previousBlock.Height + 1
	if b.Height != nextNumber {
		return fmt.Errorf("%w: this block is not the next number, got %d, exp %d", ErrInvalidBlock, b.Height, nextNumber)
	}

	evHandler("database: ValidateBlock: validate: blk[%d]: check: parent hash does match parent block", b.Height)

	if b.PrevBlockHash != previousBlock.Hash {
		return fmt.Errorf("%w: parent block hash doesn't match our known parent, got %s, exp %s", ErrInvalidBlock, b.PrevBlockHash, previousBlock.Hash)
	}

	return b.validateHash(evHandler)
}

// ValidateGenesis validates the block can be the first block in the chain.
func (b Block) ValidateGenesis(evHandler func(v string, args ...any)) error {
	evHandler("database: ValidateGenesis: validate: blk[%d]: check: block is the genesis block", b.Height)

	if b.Height != 0 {
		return fmt.Errorf("%w: genesis block number is %d", ErrInvalidBlock, b.Height)
	}

	if b.PrevBlockHash != signature.ZeroHash {
		return fmt.Errorf("%w: genesis parent hash is %s", ErrInvalidBlock, b.PrevBlockHash)
	}

	return b.validateHash(evHandler)
}

// validateHash checks the stored hash belongs to the block and solves
// the POW puzzle at the block's difficulty.
func (b Block) validateHash(evHandler func(v string, args ...any)) error {
	evHandler("database: ValidateBlock: validate: blk[%d]: check: block hash has been solved", b.Height)

	hash := b.CalculateHash()
	if hash != b.Hash {
		return fmt.Errorf("%w: block hash doesn't match block, got %s, exp %s", ErrInvalidBlock, b.Hash, hash)
	}

	if !IsHashSolved(b.Difficulty, hash) {
		return fmt.Errorf("%w: %s invalid block hash", ErrInvalidBlock, hash)
	}

	return nil
}

// =============================================================================

// BlockHash returns the digest for the specified header values. The preimage
// is the plain text concatenation of the values so any implementation can
// reproduce it.
func BlockHash(height uint64, prevBlockHash string, timeStamp uint64, nonce uint64, difficulty uint) string {
	data := fmt.Sprintf("%d%s%d%d%d", height, prevBlockHash, timeStamp, nonce, difficulty)
	return signature.Hash([]byte(data))
}

// IsHashSolved checks the hash to make sure it complies with
// the POW rules. We need to match a difficulty number of 0's.
func IsHashSolved(difficulty uint, hash string) bool {
	if len(hash) != len(signature.ZeroHash) || difficulty > uint(len(hash)) {
		return false
	}

	return hash[:difficulty] == signature.ZeroHash[:difficulty]
}

// ValidateChain checks the linkage and proof of work of every block
// in the chain.
func ValidateChain(blocks []Block, evHandler func(v string, args ...any)) error {
	if evHandler == nil {
		evHandler = func(string, ...any) {}
	}

	for i, block := range blocks {
		var err error
		switch i {
		case 0:
			err = block.ValidateGenesis(evHandler)
		default:
			err = block.ValidateBlock(blocks[i-1], evHandler)
		}

		if err != nil {
			return err
		}
	}

	return nil
}
