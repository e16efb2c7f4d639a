package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charlesC137/nft-smc/crypto"
)

// TxType identifies the kind of operation a transaction performs.
type TxType string

const (
	TxTransfer    TxType = "transfer"
	TxLazyMint    TxType = "lazy_mint"
	TxListNFT     TxType = "list_nft"
	TxUnlistNFT   TxType = "unlist_nft"
	TxTransferNFT TxType = "transfer_nft"
	TxApproveNFT  TxType = "approve_nft"
	TxBuyNFT      TxType = "buy_nft"
	TxWithdraw    TxType = "withdraw"
)

// Transaction is the atomic unit of work on the chain.
// From holds the sender's full hex-encoded ed25519 public key (64 chars).
// Signature covers all fields except Signature itself.
type Transaction struct {
	ID        string          `json:"id"`
	ChainID   string          `json:"chain_id"`
	Type      TxType          `json:"type"`
	From      string          `json:"from"` // hex-encoded ed25519 public key
	Nonce     uint64          `json:"nonce"`
	Fee       uint64          `json:"fee"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
	Signature string          `json:"signature"`
}

// signingBody holds the fields that are covered by the signature.
type signingBody struct {
	ChainID   string          `json:"chain_id"`
	Type      TxType          `json:"type"`
	From      string          `json:"from"`
	Nonce     uint64          `json:"nonce"`
	Fee       uint64          `json:"fee"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Hash returns a deterministic hash of the transaction (sans Signature).
// Returns an empty string if marshalling fails (which cannot happen in practice).
func (tx *Transaction) Hash() string {
	body := signingBody{
		ChainID:   tx.ChainID,
		Type:      tx.Type,
		From:      tx.From,
		Nonce:     tx.Nonce,
		Fee:       tx.Fee,
		Timestamp: tx.Timestamp,
		Payload:   tx.Payload,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return ""
	}
	return crypto.Hash(data)
}

// Sign computes the signature and sets ID.
func (tx *Transaction) Sign(priv crypto.PrivateKey) {
	hash := tx.Hash()
	tx.Signature = crypto.Sign(priv, []byte(hash))
	tx.ID = hash
}

// Verify checks the signature and that From is a valid public key.
func (tx *Transaction) Verify() error {
	if tx.From == "" {
		return errors.New("missing from field")
	}
	pub, err := crypto.PubKeyFromHex(tx.From)
	if err != nil {
		return fmt.Errorf("invalid from (must be ed25519 pubkey hex): %w", err)
	}
	return crypto.Verify(pub, []byte(tx.Hash()), tx.Signature)
}

// NewTransaction creates an unsigned transaction with the current timestamp.
func NewTransaction(chainID string, typ TxType, from string, nonce, fee uint64, payload any) (*Transaction, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Transaction{
		ChainID:   chainID,
		Type:      typ,
		From:      from,
		Nonce:     nonce,
		Fee:       fee,
		Timestamp: time.Now().UnixNano(),
		Payload:   raw,
	}, nil
}

// ---- Payload types ----

// TransferPayload moves native tokens. Sending to TreasuryAddress is the
// plain "fund the marketplace" path: accepted unconditionally, no side
// effects beyond the balance increase.
type TransferPayload struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

// LazyMintPayload materializes a token from a creator-signed voucher.
// Payment is the amount the submitter attaches; it is ignored when the
// submitter is the creator.
type LazyMintPayload struct {
	Voucher   MintVoucher `json:"voucher"`
	Signature string      `json:"signature"` // hex, creator's voucher signature
	Payment   uint64      `json:"payment"`
}

// ListNFTPayload puts an owned token up for sale.
type ListNFTPayload struct {
	ID    uint64 `json:"id"`
	Price uint64 `json:"price"`
}

// UnlistNFTPayload takes a token off sale.
type UnlistNFTPayload struct {
	ID uint64 `json:"id"`
}

// TransferNFTPayload moves a token to a new owner outside of a sale.
type TransferNFTPayload struct {
	ID uint64 `json:"id"`
	To string `json:"to"` // recipient pubkey hex
}

// ApproveNFTPayload grants a delegate transfer rights over one token.
// An empty To clears the approval.
type ApproveNFTPayload struct {
	ID uint64 `json:"id"`
	To string `json:"to"`
}

// BuyNFTPayload purchases a listed token. Payment above the listed price is
// refunded during settlement.
type BuyNFTPayload struct {
	ID      uint64 `json:"id"`
	Payment uint64 `json:"payment"`
}

// WithdrawPayload sweeps the treasury to the platform owner. No arguments.
type WithdrawPayload struct{}
