package worker

import (
	"context"
	"errors"
	"time"

	"github.com/ardanlabs/moon/foundation/blockchain/state"
)

// miningOperations handles mining. Mining continues until the node is shut
// down or the reward schedule is exhausted.
func (w *Worker) miningOperations() {
	w.evHandler("worker: miningOperations: G started")
	defer w.evHandler("worker: miningOperations: G completed")

	for {
		if w.isShutdown() {
			w.evHandler("worker: miningOperations: received shut signal")
			return
		}

		if err := w.runMiningOperation(); errors.Is(err, state.ErrSupplyExhausted) {
			w.evHandler("worker: miningOperations: MINING: supply exhausted: mining stopped")
			return
		}

		select {
		case <-time.After(w.interval):
		case <-w.shut:
			w.evHandler("worker: miningOperations: received shut signal")
			return
		}
	}
}

// runMiningOperation takes all the transactions from the mempool and writes a
// new block to the database.
func (w *Worker) runMiningOperation() error {
	w.evHandler("worker: runMiningOperation: MINING: started")
	defer w.evHandler("worker: runMiningOperation: MINING: completed")

	// Create a context so mining can be cancelled.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// This G exists to cancel the mining operation on shutdown.
	done := make(chan struct{})
	go func() {
		defer close(done)

		select {
		case <-w.shut:
			w.evHandler("worker: runMiningOperation: MINING: CANCEL: requested")
			cancel()
		case <-ctx.Done():
		}
	}()

	t := time.Now()
	block, err := w.state.MineNewBlock(ctx)
	duration := time.Since(t)

	// Release the cancel G and wait for it to terminate.
	cancel()
	<-done

	w.evHandler("worker: runMiningOperation: MINING: mining duration[%v]", duration)

	if err != nil {
		switch {
		case errors.Is(err, state.ErrSupplyExhausted):
			w.evHandler("worker: runMiningOperation: MINING: WARNING: reward is zero")
		case errors.Is(err, context.Canceled):
			w.evHandler("worker: runMiningOperation: MINING: CANCEL: complete")
		default:
			w.evHandler("worker: runMiningOperation: MINING: ERROR: %s", err)
		}
		return err
	}

	w.evHandler("worker: runMiningOperation: MINING: blk[%d]: hash[%s]: trans[%d]", block.Height, block.Hash, len(block.Trans))

	return nil
}
