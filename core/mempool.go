package core

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	mempoolCap = 10_000
	// Stale or far-future timestamps are rejected up front so a voucher
	// redemption cannot sit in the pool past its market relevance.
	txMaxAge    = int64(time.Hour)
	txMaxFuture = int64(5 * time.Minute)
)

// Mempool holds signed transactions waiting for the next block. Iteration
// order is insertion order, so block inclusion is first-come first-served.
type Mempool struct {
	mu    sync.RWMutex
	byID  map[string]*Transaction
	order []string
}

func NewMempool() *Mempool {
	return &Mempool{byID: make(map[string]*Transaction)}
}

// Add verifies and enqueues tx. Duplicates, bad signatures, out-of-window
// timestamps, and a full pool are all rejected.
func (m *Mempool) Add(tx *Transaction) error {
	if err := tx.Verify(); err != nil {
		return fmt.Errorf("invalid tx signature: %w", err)
	}
	now := time.Now().UnixNano()
	if now-tx.Timestamp > txMaxAge {
		return errors.New("transaction expired")
	}
	if tx.Timestamp-now > txMaxFuture {
		return errors.New("transaction timestamp too far in the future")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.byID) >= mempoolCap {
		return errors.New("mempool full")
	}
	if _, dup := m.byID[tx.ID]; dup {
		return errors.New("tx already in pool")
	}
	m.byID[tx.ID] = tx
	m.order = append(m.order, tx.ID)
	return nil
}

// Get looks up a pending transaction by ID.
func (m *Mempool) Get(id string) (*Transaction, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tx, ok := m.byID[id]
	return tx, ok
}

// Pending returns up to n transactions in arrival order.
func (m *Mempool) Pending(n int) []*Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Transaction, 0, n)
	for _, id := range m.order {
		tx, ok := m.byID[id]
		if !ok {
			continue
		}
		out = append(out, tx)
		if len(out) >= n {
			break
		}
	}
	return out
}

// Remove drops the given IDs after they were committed in a block.
func (m *Mempool) Remove(ids []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dropped := make(map[string]bool, len(ids))
	for _, id := range ids {
		delete(m.byID, id)
		dropped[id] = true
	}
	kept := m.order[:0]
	for _, id := range m.order {
		if !dropped[id] {
			kept = append(kept, id)
		}
	}
	m.order = kept
}

// Size is the number of transactions waiting.
func (m *Mempool) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}
