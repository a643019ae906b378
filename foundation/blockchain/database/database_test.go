package database_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ardanlabs/moon/foundation/blockchain/database"
	"github.com/ardanlabs/moon/foundation/blockchain/genesis"
	"github.com/ardanlabs/moon/foundation/blockchain/signature"
	"github.com/ardanlabs/moon/foundation/blockchain/storage/disk"
	"github.com/ardanlabs/moon/foundation/blockchain/storage/memory"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const miner = database.AccountID("0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4")

// =============================================================================

func Test_POW(t *testing.T) {
	t.Log("Given the need to mine blocks.")
	{
		for _, difficulty := range []uint{0, 1, 2, 3} {
			t.Logf("\tTest %d:\tWhen mining at difficulty %d.", difficulty, difficulty)
			{
				block, err := database.POW(context.Background(), database.POWArgs{
					BeneficiaryID: miner,
					Difficulty:    difficulty,
					MiningReward:  50,
					TimeStamp:     1764614400,
				})
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to mine a block: %v", failed, difficulty, err)
				}
				t.Logf("\t%s\tTest %d:\tShould be able to mine a block.", success, difficulty)

				if block.Hash != block.CalculateHash() {
					t.Logf("\t%s\tTest %d:\tgot: %s", failed, difficulty, block.Hash)
					t.Logf("\t%s\tTest %d:\texp: %s", failed, difficulty, block.CalculateHash())
					t.Fatalf("\t%s\tTest %d:\tShould have the hash of the header.", failed, difficulty)
				}
				t.Logf("\t%s\tTest %d:\tShould have the hash of the header.", success, difficulty)

				for i := uint(0); i < difficulty; i++ {
					if block.Hash[i] != '0' {
						t.Fatalf("\t%s\tTest %d:\tShould have %d leading zeros: %s", failed, difficulty, difficulty, block.Hash)
					}
				}
				t.Logf("\t%s\tTest %d:\tShould have %d leading zeros.", success, difficulty, difficulty)

				if err := block.ValidateGenesis(func(string, ...any) {}); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be a valid genesis block: %v", failed, difficulty, err)
				}
				t.Logf("\t%s\tTest %d:\tShould be a valid genesis block.", success, difficulty)
			}
		}
	}
}

func Test_POWCancel(t *testing.T) {
	t.Log("Given the need to stop mining on shutdown.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the context is cancelled.", testID)
		{
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			_, err := database.POW(ctx, database.POWArgs{
				BeneficiaryID: miner,
				Difficulty:    64,
				MiningReward:  50,
			})
			if !errors.Is(err, context.Canceled) {
				t.Fatalf("\t%s\tTest %d:\tShould get a cancelled error: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould get a cancelled error.", success, testID)
		}
	}
}

func Test_IsHashSolved(t *testing.T) {
	type table struct {
		name       string
		difficulty uint
		hash       string
		solved     bool
	}

	tt := []table{
		{name: "zero", difficulty: 0, hash: "f" + signature.ZeroHash[1:], solved: true},
		{name: "four", difficulty: 4, hash: "0000" + signature.ZeroHash[4:60] + "abcd", solved: true},
		{name: "three", difficulty: 4, hash: "000a" + signature.ZeroHash[4:], solved: false},
		{name: "short", difficulty: 1, hash: "00", solved: false},
		{name: "toohard", difficulty: 65, hash: signature.ZeroHash, solved: false},
	}

	t.Log("Given the need to check hashes against the difficulty.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen checking a %s hash.", testID, tst.name)
				{
					got := database.IsHashSolved(tst.difficulty, tst.hash)
					if got != tst.solved {
						t.Fatalf("\t%s\tTest %d:\tShould get %v, got %v.", failed, testID, tst.solved, got)
					}
					t.Logf("\t%s\tTest %d:\tShould get %v.", success, testID, tst.solved)
				}
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_NextDifficulty(t *testing.T) {
	gen := genesis.Default()

	type table struct {
		name     string
		blocks   int
		spacing  uint64
		current  uint
		expected uint
	}

	tt := []table{
		{name: "empty", blocks: 0, spacing: 60, current: 4, expected: 4},
		{name: "mid-window-fast", blocks: 2015, spacing: 1, current: 4, expected: 4},
		{name: "boundary-fast", blocks: 2016, spacing: 1, current: 4, expected: 5},
		{name: "boundary-ontime", blocks: 2016, spacing: 60, current: 4, expected: 4},
		{name: "boundary-slow", blocks: 2016, spacing: 600, current: 4, expected: 3},
		{name: "boundary-slow-floor", blocks: 2016, spacing: 600, current: 1, expected: 1},
		{name: "second-boundary-fast", blocks: 4032, spacing: 1, current: 6, expected: 7},
		{name: "boundary-fast-ceiling", blocks: 2016, spacing: 1, current: 64, expected: 64},
	}

	t.Log("Given the need to retarget the difficulty.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen the chain has %d blocks spaced %ds.", testID, tst.blocks, tst.spacing)
				{
					blocks := make([]database.Block, tst.blocks)
					for i := range blocks {
						blocks[i] = database.Block{
							Height:     uint64(i),
							TimeStamp:  gen.TimeStamp() + uint64(i)*tst.spacing,
							Difficulty: tst.current,
						}
					}

					got := database.NextDifficulty(gen, blocks)
					if got != tst.expected {
						t.Logf("\t%s\tTest %d:\tgot: %d", failed, testID, got)
						t.Logf("\t%s\tTest %d:\texp: %d", failed, testID, tst.expected)
						t.Fatalf("\t%s\tTest %d:\tShould get the right difficulty.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould get the right difficulty.", success, testID)

					again := database.NextDifficulty(gen, blocks)
					if again != got {
						t.Fatalf("\t%s\tTest %d:\tShould get the same difficulty for the same chain.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould get the same difficulty for the same chain.", success, testID)
				}
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_Genesis(t *testing.T) {
	t.Log("Given the need to start a chain.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen storage is empty.", testID)
		{
			gen := testGenesis()
			storage := memory.New()

			db, err := database.New(gen, miner, storage, nil)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to open database: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to open database.", success, testID)

			if db.Count() != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould have one block, got %d.", failed, testID, db.Count())
			}
			t.Logf("\t%s\tTest %d:\tShould have one block.", success, testID)

			block := db.LatestBlock()
			if block.Height != 0 || block.PrevBlockHash != signature.ZeroHash {
				t.Fatalf("\t%s\tTest %d:\tShould have a genesis header: %d %s", failed, testID, block.Height, block.PrevBlockHash)
			}
			t.Logf("\t%s\tTest %d:\tShould have a genesis header.", success, testID)

			if block.TimeStamp != gen.TimeStamp() || block.Difficulty != gen.Difficulty {
				t.Fatalf("\t%s\tTest %d:\tShould have the fixed timestamp and difficulty: %d %d", failed, testID, block.TimeStamp, block.Difficulty)
			}
			t.Logf("\t%s\tTest %d:\tShould have the fixed timestamp and difficulty.", success, testID)

			if block.Coinbase.To != miner || block.Coinbase.Value != gen.BaseReward {
				t.Fatalf("\t%s\tTest %d:\tShould pay one reward to the miner: %v", failed, testID, block.Coinbase)
			}
			t.Logf("\t%s\tTest %d:\tShould pay one reward to the miner.", success, testID)

			if storage.Saves() != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould have persisted the genesis block.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould have persisted the genesis block.", success, testID)

			other, err := database.New(gen, miner, memory.New(), nil)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to open a second database: %v", failed, testID, err)
			}

			if other.LatestBlock().Hash != block.Hash {
				t.Fatalf("\t%s\tTest %d:\tShould create the same genesis block every time.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould create the same genesis block every time.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen storage has a chain.", testID)
		{
			gen := testGenesis()
			storage := memory.New()

			if _, err := database.New(gen, miner, storage, nil); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to open database: %v", failed, testID, err)
			}

			db, err := database.New(gen, "0xF01813E4B85e178A83e29B8E7bF26BD830a25f32", storage, nil)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to reopen database: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to reopen database.", success, testID)

			if db.LatestBlock().Coinbase.To != miner || storage.Saves() != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould use the stored chain.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould use the stored chain.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen both chain files are corrupt.", testID)
		{
			gen := testGenesis()
			path := filepath.Join(t.TempDir(), "moon.chain")

			for _, name := range []string{path, path + ".safe"} {
				if err := os.WriteFile(name, []byte("not a chain"), 0600); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to write %s: %v", failed, testID, name, err)
				}
			}

			storage, err := disk.New(path)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to construct disk storage: %v", failed, testID, err)
			}

			db, err := database.New(gen, miner, storage, nil)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould treat the chain as empty: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould treat the chain as empty.", success, testID)

			if db.Count() != 1 || db.LatestBlock().Height != 0 || db.LatestBlock().Coinbase.To != miner {
				t.Fatalf("\t%s\tTest %d:\tShould mine a new genesis block.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould mine a new genesis block.", success, testID)

			stored, err := storage.Load()
			if err != nil || len(stored) != 1 || stored[0].Hash != db.LatestBlock().Hash {
				t.Fatalf("\t%s\tTest %d:\tShould persist the new genesis block: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould persist the new genesis block.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the stored chain decodes but is not valid.", testID)
		{
			gen := testGenesis()
			storage := memory.New()

			blocks := chain(t, 3)
			blocks[1].Nonce++
			if err := storage.Save(blocks); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to store the chain: %v", failed, testID, err)
			}

			db, err := database.New(gen, miner, storage, nil)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould treat the chain as empty: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould treat the chain as empty.", success, testID)

			if db.Count() != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould start over from a genesis block, got %d blocks.", failed, testID, db.Count())
			}
			t.Logf("\t%s\tTest %d:\tShould start over from a genesis block.", success, testID)

			if stored, _ := storage.Load(); len(stored) != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould replace the stored chain, got %d blocks.", failed, testID, len(stored))
			}
			t.Logf("\t%s\tTest %d:\tShould replace the stored chain.", success, testID)
		}
	}
}

func Test_Append(t *testing.T) {
	t.Log("Given the need to add blocks to the chain.")
	{
		gen := testGenesis()
		storage := memory.New()

		db, err := database.New(gen, miner, storage, nil)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to open database: %v", failed, err)
		}

		testID := 0
		t.Logf("\tTest %d:\tWhen the block is the next block.", testID)
		{
			prev := db.LatestBlock()
			block := mine(t, gen, &prev, gen.TimeStamp()+60)

			if err := db.Append(block); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to append block: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to append block.", success, testID)

			if db.Count() != 2 || storage.Saves() != 2 {
				t.Fatalf("\t%s\tTest %d:\tShould have persisted two blocks.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould have persisted two blocks.", success, testID)

			got, err := db.GetBlock(1)
			if err != nil || got.Hash != block.Hash {
				t.Fatalf("\t%s\tTest %d:\tShould be able to get the block by height: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to get the block by height.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the block doesn't link to the chain.", testID)
		{
			genesisBlock, _ := db.GetBlock(0)
			block := mine(t, gen, &genesisBlock, gen.TimeStamp()+120)

			err := db.Append(block)
			if !errors.Is(err, database.ErrInvalidBlock) {
				t.Fatalf("\t%s\tTest %d:\tShould reject the block: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould reject the block.", success, testID)

			if db.Count() != 2 {
				t.Fatalf("\t%s\tTest %d:\tShould not change the chain.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould not change the chain.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen storage fails.", testID)
		{
			storage.FailSaves(errors.New("disk full"))

			prev := db.LatestBlock()
			block := mine(t, gen, &prev, gen.TimeStamp()+180)

			if err := db.Append(block); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould ignore the storage failure: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould ignore the storage failure.", success, testID)

			if db.Count() != 3 {
				t.Fatalf("\t%s\tTest %d:\tShould still move the chain forward.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould still move the chain forward.", success, testID)
		}
	}
}

func Test_Codec(t *testing.T) {
	t.Log("Given the need to serialize the chain.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen encoding a chain with transactions.", testID)
		{
			blocks := chain(t, 3)

			data, err := database.Encode(blocks)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to encode the chain: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to encode the chain.", success, testID)

			decoded, err := database.Decode(data)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to decode the chain: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to decode the chain.", success, testID)

			again, err := database.Encode(decoded)
			if err != nil || !bytes.Equal(data, again) {
				t.Fatalf("\t%s\tTest %d:\tShould get the same bytes back: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould get the same bytes back.", success, testID)

			for i := range blocks {
				if blocks[i].Hash != decoded[i].Hash || blocks[i].Trans[0].Hash() != decoded[i].Trans[0].Hash() {
					t.Fatalf("\t%s\tTest %d:\tShould get the same block %d back.", failed, testID, i)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould get the same blocks back.", success, testID)

			decoded, err = database.DecodeFrom(bytes.NewReader(data))
			if err != nil || len(decoded) != len(blocks) {
				t.Fatalf("\t%s\tTest %d:\tShould be able to decode from a reader: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to decode from a reader.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen decoding garbage.", testID)
		{
			if _, err := database.Decode([]byte("not a chain")); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould fail to decode.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould fail to decode.", success, testID)
		}
	}
}

func Test_ValidateChain(t *testing.T) {
	t.Log("Given the need to validate a chain.")
	{
		blocks := chain(t, 3)

		testID := 0
		t.Logf("\tTest %d:\tWhen the chain is untouched.", testID)
		{
			if err := database.ValidateChain(blocks, nil); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be a valid chain: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be a valid chain.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen a block was tampered with.", testID)
		{
			tampered := make([]database.Block, len(blocks))
			copy(tampered, blocks)
			tampered[1].TimeStamp++

			if err := database.ValidateChain(tampered, nil); !errors.Is(err, database.ErrInvalidBlock) {
				t.Fatalf("\t%s\tTest %d:\tShould be an invalid chain: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be an invalid chain.", success, testID)
		}
	}
}

func Test_TxSign(t *testing.T) {
	t.Log("Given the need to sign transactions.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen signing a transaction with two inputs.", testID)
		{
			pk, err := crypto.HexToECDSA("fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959")
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to load the private key: %v", failed, testID, err)
			}

			tx := database.Tx{
				Inputs: []database.TxIn{
					{TxHash: signature.ZeroHash, Index: 0},
					{TxHash: signature.ZeroHash, Index: 1},
				},
				Outputs: []database.TxOut{
					{To: "0xF01813E4B85e178A83e29B8E7bF26BD830a25f32", Value: 10},
				},
			}

			signed, err := tx.Sign(pk)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to sign: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to sign.", success, testID)

			if len(tx.Inputs[0].Signature) != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould not change the original transaction.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould not change the original transaction.", success, testID)

			if !bytes.Equal(signed.Inputs[0].Signature, signed.Inputs[1].Signature) {
				t.Fatalf("\t%s\tTest %d:\tShould have the same signature on every input.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould have the same signature on every input.", success, testID)

			from, err := signed.FromAccount()
			if err != nil || from != miner {
				t.Fatalf("\t%s\tTest %d:\tShould recover the signer, got %s: %v", failed, testID, from, err)
			}
			t.Logf("\t%s\tTest %d:\tShould recover the signer.", success, testID)

			if signed.Hash() == tx.Hash() {
				t.Fatalf("\t%s\tTest %d:\tShould include the signatures in the hash.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould include the signatures in the hash.", success, testID)
		}
	}
}

// =============================================================================

func testGenesis() genesis.Genesis {
	gen := genesis.Default()
	gen.Difficulty = 1
	gen.MinDifficulty = 1
	return gen
}

func mine(t *testing.T, gen genesis.Genesis, prev *database.Block, timeStamp uint64) database.Block {
	var height uint64
	if prev != nil {
		height = prev.Height + 1
	}

	block, err := database.POW(context.Background(), database.POWArgs{
		BeneficiaryID: miner,
		Difficulty:    gen.Difficulty,
		MiningReward:  gen.Reward(height),
		PrevBlock:     prev,
		TimeStamp:     timeStamp,
		Trans: []database.Tx{
			{
				Inputs:  []database.TxIn{{TxHash: signature.ZeroHash, Index: height}},
				Outputs: []database.TxOut{{To: miner, Value: height}},
			},
		},
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to mine block %d: %v", failed, height, err)
	}

	return block
}

func chain(t *testing.T, n int) []database.Block {
	gen := testGenesis()

	var blocks []database.Block
	for i := 0; i < n; i++ {
		var prev *database.Block
		if i > 0 {
			prev = &blocks[i-1]
		}
		blocks = append(blocks, mine(t, gen, prev, gen.TimeStamp()+uint64(i)*60))
	}

	return blocks
}
