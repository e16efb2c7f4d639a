package core_test

import (
	"testing"

	"github.com/charlesC137/nft-smc/core"
	"github.com/charlesC137/nft-smc/crypto"
	"github.com/charlesC137/nft-smc/wallet"
)

// TestTransactionSignVerify ensures transaction signing and verification work.
func TestTransactionSignVerify(t *testing.T) {
	w, err := wallet.Generate()
	if err != nil {
		t.Fatal(err)
	}

	tx, err := w.NewTx("test-chain", core.TxTransfer, 0, 0, core.TransferPayload{
		To:     "deadbeef",
		Amount: 100,
	})
	if err != nil {
		t.Fatalf("NewTx: %v", err)
	}
	if tx.ID == "" {
		t.Error("tx ID should be set after signing")
	}
	if err := tx.Verify(); err != nil {
		t.Errorf("Verify failed: %v", err)
	}

	// Tamper with the fee to check that verification catches it.
	tx.Fee = 999
	if err := tx.Verify(); err == nil {
		t.Error("tampered tx should fail verification")
	}
}

// TestTransactionChainIDInHash ensures the chain ID is covered by the
// signature: the same tx on two networks hashes differently.
func TestTransactionChainIDInHash(t *testing.T) {
	w, _ := wallet.Generate()
	tx, _ := w.NewTx("chain-a", core.TxTransfer, 0, 0, core.TransferPayload{To: "aa", Amount: 1})

	moved := *tx
	moved.ChainID = "chain-b"
	if tx.Hash() == moved.Hash() {
		t.Error("changing the chain ID must change the tx hash")
	}
	if err := moved.Verify(); err == nil {
		t.Error("tx replayed on another chain should fail verification")
	}
}

// TestBlockHash ensures that hashing a block is deterministic.
func TestBlockHash(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	block := core.NewBlock(1, "0000", pub.Hex(), nil)
	block.Sign(priv)

	if block.Hash == "" {
		t.Error("hash should be set after signing")
	}
	if block.ComputeHash() != block.Hash {
		t.Error("ComputeHash() does not match stored hash")
	}
	if err := block.Verify(pub); err != nil {
		t.Errorf("block verify: %v", err)
	}
}

// TestMempool verifies add/remove/pending operations.
func TestMempool(t *testing.T) {
	mp := core.NewMempool()
	w, _ := wallet.Generate()

	tx, _ := w.NewTx("test-chain", core.TxTransfer, 0, 0, core.TransferPayload{To: "aa", Amount: 1})
	if err := mp.Add(tx); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if mp.Size() != 1 {
		t.Errorf("size: got %d want 1", mp.Size())
	}
	// Duplicate should fail
	if err := mp.Add(tx); err == nil {
		t.Error("adding duplicate tx should fail")
	}

	pending := mp.Pending(10)
	if len(pending) != 1 {
		t.Errorf("pending: got %d want 1", len(pending))
	}

	mp.Remove([]string{tx.ID})
	if mp.Size() != 0 {
		t.Error("pool should be empty after remove")
	}
}

// TestMempoolOrdering verifies pending iteration preserves insertion order.
func TestMempoolOrdering(t *testing.T) {
	mp := core.NewMempool()
	w, _ := wallet.Generate()

	var ids []string
	for i := uint64(0); i < 5; i++ {
		tx, _ := w.NewTx("test-chain", core.TxTransfer, i, 0, core.TransferPayload{To: "aa", Amount: 1})
		if err := mp.Add(tx); err != nil {
			t.Fatalf("Add: %v", err)
		}
		ids = append(ids, tx.ID)
	}

	pending := mp.Pending(10)
	for i, tx := range pending {
		if tx.ID != ids[i] {
			t.Fatalf("pending[%d]: got %s want %s", i, tx.ID, ids[i])
		}
	}
}
