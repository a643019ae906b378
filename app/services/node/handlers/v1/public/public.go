// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ardanlabs/moon/business/web/errs"
	"github.com/ardanlabs/moon/foundation/blockchain/database"
	"github.com/ardanlabs/moon/foundation/blockchain/state"
	"github.com/ardanlabs/moon/foundation/events"
	"github.com/ardanlabs/moon/foundation/nameservice"
	"github.com/ardanlabs/moon/foundation/validate"
	"github.com/ardanlabs/moon/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	id, ch := h.Evts.Acquire()
	defer h.Evts.Release(id)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return nil
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Genesis returns the genesis information.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	gen := h.State.RetrieveGenesis()
	return web.Respond(ctx, w, gen, http.StatusOK)
}

// Status returns the current state of the chain.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	latest := h.State.RetrieveLatestBlock()

	st := status{
		Height:         latest.Height,
		LatestHash:     latest.Hash,
		Difficulty:     latest.Difficulty,
		NextDifficulty: h.State.QueryNextDifficulty(),
		NextReward:     h.State.RetrieveGenesis().Reward(latest.Height + 1),
		Beneficiary:    h.State.RetrieveBeneficiary(),
		Uncommitted:    h.State.QueryMempoolLength(),
	}

	return web.Respond(ctx, w, st, http.StatusOK)
}

// Accounts returns the balance for the specified account.
func (h Handlers) Accounts(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	accountID, err := h.NS.Resolve(web.Param(r, "account"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	act := account{
		Account: accountID,
		Name:    h.NS.Lookup(accountID),
		Balance: h.State.QueryBalance(accountID),
		UTXOs:   len(h.State.QueryUTXOs(accountID)),
	}

	return web.Respond(ctx, w, act, http.StatusOK)
}

// UTXOs returns the unspent outputs for the specified account in the order
// a wallet selects them.
func (h Handlers) UTXOs(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	accountID, err := h.NS.Resolve(web.Param(r, "account"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	dbUTXOs := h.State.QueryUTXOs(accountID)

	utxos := make([]utxo, len(dbUTXOs))
	for i, u := range dbUTXOs {
		utxos[i] = utxo{
			TxHash: u.TxHash,
			Index:  u.Index,
			To:     u.To,
			Value:  u.Value,
		}
	}

	return web.Respond(ctx, w, utxos, http.StatusOK)
}

// BlocksByAccount returns all the blocks and their details.
func (h Handlers) BlocksByAccount(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var accountID database.AccountID
	if param := web.Param(r, "account"); param != "" {
		var err error
		accountID, err = h.NS.Resolve(param)
		if err != nil {
			return errs.NewTrusted(err, http.StatusBadRequest)
		}
	}

	dbBlocks := h.State.QueryBlocksByAccount(accountID)
	if len(dbBlocks) == 0 {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}

	blocks := make([]block, len(dbBlocks))
	for i, blk := range dbBlocks {
		blocks[i] = h.toBlock(blk)
	}

	return web.Respond(ctx, w, blocks, http.StatusOK)
}

// BlockByHeight returns the block at the specified height.
func (h Handlers) BlockByHeight(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	height, err := strconv.ParseUint(web.Param(r, "height"), 10, 64)
	if err != nil {
		return errs.NewTrusted(fmt.Errorf("invalid height: %w", err), http.StatusBadRequest)
	}

	blk, err := h.State.RetrieveBlock(height)
	if err != nil {
		return errs.NewTrusted(err, http.StatusNotFound)
	}

	return web.Respond(ctx, w, h.toBlock(blk), http.StatusOK)
}

// Mempool returns the set of uncommitted transactions.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	trans := h.toTxs(h.State.RetrieveMempool())
	return web.Respond(ctx, w, trans, http.StatusOK)
}

// SubmitTransaction adds a signed transaction to the mempool. The
// transaction is mined in the next block.
func (h Handlers) SubmitTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var t tx
	if err := web.Decode(r, &t); err != nil {
		if validate.IsFieldErrors(err) {
			return err
		}
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	dbTx, err := toDatabaseTx(t)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	h.Log.Infow("submit tran", "traceid", web.GetTraceID(ctx), "tx", dbTx, "inputs", len(dbTx.Inputs), "outputs", len(dbTx.Outputs))

	if err := h.State.SubmitTransaction(dbTx); err != nil {
		if err := errs.FromBlockchain(err); errs.IsTrusted(err) {
			return err
		}
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	resp := struct {
		Status string `json:"status"`
		Hash   string `json:"hash"`
	}{
		Status: "transaction added to mempool",
		Hash:   dbTx.Hash(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// =============================================================================

func (h Handlers) toBlock(blk database.Block) block {
	return block{
		Height:          blk.Height,
		TimeStamp:       blk.TimeStamp,
		PrevBlockHash:   blk.PrevBlockHash,
		Hash:            blk.Hash,
		Nonce:           blk.Nonce,
		Difficulty:      blk.Difficulty,
		Beneficiary:     blk.Coinbase.To,
		BeneficiaryName: h.NS.Lookup(blk.Coinbase.To),
		Reward:          blk.Coinbase.Value,
		Trans:           h.toTxs(blk.Trans),
	}
}

func (h Handlers) toTxs(dbTxs []database.Tx) []tx {
	trans := make([]tx, len(dbTxs))
	for i, dbTx := range dbTxs {
		t := tx{
			Hash:    dbTx.Hash(),
			Inputs:  make([]txIn, len(dbTx.Inputs)),
			Outputs: make([]txOut, len(dbTx.Outputs)),
		}

		if from, err := dbTx.FromAccount(); err == nil {
			t.From = from
			t.FromName = h.NS.Lookup(from)
		}

		for j, in := range dbTx.Inputs {
			t.Inputs[j] = txIn{TxHash: in.TxHash, Index: in.Index, Signature: in.Signature}
		}

		for j, out := range dbTx.Outputs {
			t.Outputs[j] = txOut{To: out.To, ToName: h.NS.Lookup(out.To), Value: out.Value}
		}

		trans[i] = t
	}

	return trans
}
