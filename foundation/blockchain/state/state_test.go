package state_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ardanlabs/moon/foundation/blockchain/database"
	"github.com/ardanlabs/moon/foundation/blockchain/genesis"
	"github.com/ardanlabs/moon/foundation/blockchain/mempool"
	"github.com/ardanlabs/moon/foundation/blockchain/state"
	"github.com/ardanlabs/moon/foundation/blockchain/storage/memory"
	"github.com/ardanlabs/moon/foundation/blockchain/wallet"
	"github.com/ardanlabs/moon/foundation/events"
	"github.com/ardanlabs/moon/foundation/status"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap/zaptest"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const (
	minerECDSA = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	to         = database.AccountID("0xF01813E4B85e178A83e29B8E7bF26BD830a25f32")
)

// =============================================================================

func Test_MineAndSpend(t *testing.T) {
	log := zaptest.NewLogger(t).Sugar()

	key, err := crypto.HexToECDSA(minerECDSA)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to load the miner key: %v", failed, err)
	}
	miner := database.PublicKeyToAccountID(key.PublicKey)

	evts := events.New()
	defer evts.Shutdown()

	ev := func(v string, args ...any) {
		const websocketPrefix = "viewer:"

		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		if strings.HasPrefix(s, websocketPrefix) {
			evts.Send(s)
		}
	}

	id, ch := evts.Acquire()
	defer evts.Release(id)

	gen := genesis.Default()
	gen.Difficulty = 1

	folder := filepath.Join(t.TempDir(), "zblock")
	stat, err := status.New(folder)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct status: %v", failed, err)
	}

	st, err := state.New(state.Config{
		BeneficiaryID: miner,
		Genesis:       gen,
		Storage:       memory.New(),
		MempoolSize:   1,
		Status:        stat,
		EvHandler:     ev,
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the state: %v", failed, err)
	}
	defer st.Shutdown()

	t.Log("Given the need to mine blocks and spend the rewards.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the node starts on an empty chain.", testID)
		{
			if n := len(st.RetrieveChain()); n != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould have the genesis block, got %d blocks.", failed, testID, n)
			}
			t.Logf("\t%s\tTest %d:\tShould have the genesis block.", success, testID)

			if balance := st.QueryBalance(miner); balance != gen.Reward(0) {
				t.Fatalf("\t%s\tTest %d:\tShould have one reward, got %d.", failed, testID, balance)
			}
			t.Logf("\t%s\tTest %d:\tShould have one reward.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen mining the next block.", testID)
		{
			block, err := st.MineNewBlock(context.Background())
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to mine a block: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to mine a block.", success, testID)

			if block.Height != 1 || block.PrevBlockHash != st.RetrieveChain()[0].Hash {
				t.Fatalf("\t%s\tTest %d:\tShould link to the genesis block.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould link to the genesis block.", success, testID)

			if balance := st.QueryBalance(miner); balance != 2*gen.BaseReward {
				t.Fatalf("\t%s\tTest %d:\tShould have two rewards, got %d.", failed, testID, balance)
			}
			t.Logf("\t%s\tTest %d:\tShould have two rewards.", success, testID)

			balance, height, err := stat.Read()
			if err != nil || balance != 2*gen.BaseReward || height != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould have written the status files: %d %d %v", failed, testID, balance, height, err)
			}
			t.Logf("\t%s\tTest %d:\tShould have written the status files.", success, testID)

			msg := <-ch
			if !strings.HasPrefix(msg, "viewer: block:") || !strings.Contains(msg, block.Hash) {
				t.Fatalf("\t%s\tTest %d:\tShould have sent a block event: %s", failed, testID, msg)
			}
			t.Logf("\t%s\tTest %d:\tShould have sent a block event.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen spending more than the balance.", testID)
		{
			_, err := wallet.BuildSpend(st.RetrieveChain(), miner, key, to, 1000)
			if !errors.Is(err, wallet.ErrInsufficientFunds) {
				t.Fatalf("\t%s\tTest %d:\tShould get insufficient funds: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould get insufficient funds.", success, testID)

			if st.QueryMempoolLength() != 0 || len(st.RetrieveChain()) != 2 {
				t.Fatalf("\t%s\tTest %d:\tShould not change the chain or the mempool.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould not change the chain or the mempool.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen submitting a spend.", testID)
		{
			tx, err := wallet.BuildSpend(st.RetrieveChain(), miner, key, to, 70)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to build the spend: %v", failed, testID, err)
			}

			if err := st.SubmitTransaction(tx); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to submit the spend: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to submit the spend.", success, testID)

			other, err := wallet.BuildSpend(st.RetrieveChain(), miner, key, to, 10)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to build a second spend: %v", failed, testID, err)
			}

			if err := st.SubmitTransaction(other); !errors.Is(err, mempool.ErrFull) {
				t.Fatalf("\t%s\tTest %d:\tShould reject a spend when the mempool is full: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould reject a spend when the mempool is full.", success, testID)

			block, err := st.MineNewBlock(context.Background())
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to mine a block: %v", failed, testID, err)
			}
			<-ch

			if len(block.Trans) != 1 || block.Trans[0].Hash() != tx.Hash() {
				t.Fatalf("\t%s\tTest %d:\tShould include the spend in the block.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould include the spend in the block.", success, testID)

			if st.QueryMempoolLength() != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould remove the spend from the mempool.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould remove the spend from the mempool.", success, testID)

			if balance := st.QueryBalance(to); balance != 70 {
				t.Fatalf("\t%s\tTest %d:\tShould have paid the recipient, got %d.", failed, testID, balance)
			}
			t.Logf("\t%s\tTest %d:\tShould have paid the recipient.", success, testID)

			if balance := st.QueryBalance(miner); balance != 3*gen.BaseReward-70 {
				t.Fatalf("\t%s\tTest %d:\tShould have the change and the new reward, got %d.", failed, testID, balance)
			}
			t.Logf("\t%s\tTest %d:\tShould have the change and the new reward.", success, testID)

			if blocks := st.QueryBlocksByAccount(to); len(blocks) != 1 || blocks[0].Height != 2 {
				t.Fatalf("\t%s\tTest %d:\tShould find the block paying the recipient.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould find the block paying the recipient.", success, testID)
		}
	}
}

func Test_SupplyExhausted(t *testing.T) {
	t.Log("Given the need to stop issuing once the reward is zero.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the next reward is zero.", testID)
		{
			gen := genesis.Default()
			gen.Difficulty = 1
			gen.BaseReward = 1
			gen.HalvingInterval = 1

			st, err := state.New(state.Config{
				BeneficiaryID: "0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4",
				Genesis:       gen,
				Storage:       memory.New(),
				MempoolSize:   10,
			})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to construct the state: %v", failed, testID, err)
			}

			if _, err := st.MineNewBlock(context.Background()); !errors.Is(err, state.ErrSupplyExhausted) {
				t.Fatalf("\t%s\tTest %d:\tShould get supply exhausted: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould get supply exhausted.", success, testID)

			if n := len(st.RetrieveChain()); n != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould not add a block, got %d blocks.", failed, testID, n)
			}
			t.Logf("\t%s\tTest %d:\tShould not add a block.", success, testID)
		}
	}
}
