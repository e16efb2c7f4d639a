package vm

import (
	"fmt"
	"math"

	"github.com/charlesC137/nft-smc/core"
	"github.com/charlesC137/nft-smc/events"
)

// Context is passed to every Handler and provides access to the chain state,
// the current block, the triggering transaction, and the event sink.
// Emitter is a per-transaction buffer, not the node's emitter: events a
// handler emits are delivered to subscribers only after the whole
// transaction succeeds, so a reverted transaction leaves no trace in
// listeners that keep their own storage (the indexer).
type Context struct {
	State   core.State
	Block   *core.Block
	Tx      *core.Transaction
	Emitter events.Sink
	ChainID string
}

// txEvents withholds handler emissions until the transaction commits.
type txEvents struct {
	buf []events.Event
}

func (t *txEvents) Emit(ev events.Event) { t.buf = append(t.buf, ev) }

func (t *txEvents) flush(sink events.Sink) {
	for _, ev := range t.buf {
		sink.Emit(ev)
	}
}

// Executor applies transactions to the state using the global Handler registry.
type Executor struct {
	state   core.State
	emitter *events.Emitter
	chainID string
}

// NewExecutor creates an Executor with the given state and event emitter.
// chainID is threaded into every handler context so voucher digests are
// domain-separated per network.
func NewExecutor(state core.State, emitter *events.Emitter, chainID string) *Executor {
	return &Executor{state: state, emitter: emitter, chainID: chainID}
}

// ExecuteBlock applies all transactions in block sequentially.
// A failing transaction causes the whole block to be rejected.
// EventBlockCommit is emitted by the caller (consensus) after signing so
// the event carries the correct block hash.
func (e *Executor) ExecuteBlock(block *core.Block) error {
	for _, tx := range block.Transactions {
		if err := e.ExecuteTx(block, tx); err != nil {
			return fmt.Errorf("tx %s failed: %w", tx.ID, err)
		}
	}
	return nil
}

// ExecuteTx verifies and executes a single transaction with snapshot/rollback.
// A handler error reverts every state write the transaction made, including
// replay-guard marks and escrow debits: failed operations leave no partial
// effect. Handler events are buffered and delivered only on success, so a
// revert also discards anything the handler emitted along the way.
func (e *Executor) ExecuteTx(block *core.Block, tx *core.Transaction) error {
	if err := tx.Verify(); err != nil {
		return fmt.Errorf("signature: %w", err)
	}

	snapID, err := e.state.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	var pending *txEvents
	var sink events.Sink
	if e.emitter != nil {
		pending = &txEvents{}
		sink = pending
	}

	if err := e.applyTx(block, tx, sink); err != nil {
		if revertErr := e.state.RevertToSnapshot(snapID); revertErr != nil {
			return fmt.Errorf("revert snapshot after tx failure: %w (revert: %v)", err, revertErr)
		}
		return err
	}

	if e.emitter != nil {
		pending.flush(e.emitter)
		e.emitter.Emit(events.Event{
			Type:        events.EventTxExecuted,
			TxID:        tx.ID,
			BlockHeight: block.Header.Height,
			Data:        map[string]any{"type": string(tx.Type), "from": tx.From},
		})
	}
	return nil
}

// applyTx deducts the fee, increments the nonce, then dispatches to the handler.
func (e *Executor) applyTx(block *core.Block, tx *core.Transaction, sink events.Sink) error {
	acc, err := e.state.GetAccount(tx.From)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}
	if acc.Nonce != tx.Nonce {
		return fmt.Errorf("invalid nonce: expected %d got %d", acc.Nonce, tx.Nonce)
	}
	if acc.Balance < tx.Fee {
		return fmt.Errorf("insufficient balance for fee: have %d need %d", acc.Balance, tx.Fee)
	}
	if acc.Nonce == math.MaxUint64 {
		return fmt.Errorf("nonce overflow for account %s", tx.From)
	}
	acc.Balance -= tx.Fee
	acc.Nonce++
	if err := e.state.SetAccount(acc); err != nil {
		return err
	}

	ctx := &Context{
		State:   e.state,
		Block:   block,
		Tx:      tx,
		Emitter: sink,
		ChainID: e.chainID,
	}
	return globalRegistry.Execute(tx.Type, ctx, tx.Payload)
}
