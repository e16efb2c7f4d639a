package core

import "github.com/charlesC137/nft-smc/crypto"

// Account holds a participant's native token balance and replay-protection
// nonce. Address is the hex-encoded ed25519 public key.
type Account struct {
	Address string `json:"address"` // pubkey hex
	Balance uint64 `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

// NFT is the marketplace record for one materialized token. IDs are assigned
// sequentially starting at 1; id 0 is the sentinel for "does not exist".
//
// CurrentOwner is a denormalized cache of the last known holder, refreshed on
// every listing action and sale. The authoritative ownership ledger is the
// separate owner mapping maintained through State.SetOwner.
type NFT struct {
	ID           uint64 `json:"id"`
	Creator      string `json:"creator"`       // royalty beneficiary, immutable
	CurrentOwner string `json:"current_owner"` // cached holder
	Price        uint64 `json:"price"`         // meaningful only while listed
	IsListed     bool   `json:"is_listed"`
	CreatedAt    int64  `json:"created_at"` // unix nanos, immutable
	URI          string `json:"uri"`        // metadata pointer, immutable
}

// NFTView is an NFT with its owner re-resolved from the authoritative
// ownership ledger at read time. Returned by the inventory scan.
type NFTView struct {
	NFT
	Owner string `json:"owner"`
}

// MarketInfo holds the marketplace parameters fixed at genesis.
// RoyaltyRate and PlatformFee are whole percentages of the sale price.
type MarketInfo struct {
	PlatformOwner string `json:"platform_owner"` // pubkey hex
	RoyaltyRate   uint64 `json:"royalty_rate"`
	PlatformFee   uint64 `json:"platform_fee"`
}

// TreasuryAddress is the account that accumulates platform fees and any
// funds sent to the marketplace directly. Only the platform owner can sweep
// it via a withdraw transaction.
var TreasuryAddress = crypto.Hash([]byte("nft-market/treasury"))[:40]

// EscrowAddress holds payment attached to a purchase for the duration of
// settlement. Every settlement leg disburses from here; a completed
// settlement leaves the escrow exactly empty.
var EscrowAddress = crypto.Hash([]byte("nft-market/escrow"))[:40]

// State is the full chain state interface. Implementations must be
// snapshot-able so the executor can roll back failed transactions.
type State interface {
	// Accounts
	GetAccount(address string) (*Account, error)
	SetAccount(account *Account) error

	// NFT registry. GetNFT returns ErrNotFound for unassigned ids.
	GetNFT(id uint64) (*NFT, error)
	SetNFT(n *NFT) error
	// NFTSeq returns the highest id issued so far (0 for a fresh chain).
	NFTSeq() (uint64, error)
	// NextNFTID assigns and returns the next sequential id. IDs are never
	// reused.
	NextNFTID() (uint64, error)

	// Authoritative ownership ledger (the base token layer).
	GetOwner(id uint64) (string, error)
	SetOwner(id uint64, owner string) error

	// Per-token approved delegate. Cleared on every transfer.
	GetApproved(id uint64) (string, error)
	SetApproved(id uint64, addr string) error

	// Replay guard over consumed voucher signatures. Append-only.
	SigUsed(digest string) (bool, error)
	MarkSigUsed(digest string) error

	// Marketplace parameters written at genesis.
	MarketInfo() (*MarketInfo, error)
	SetMarketInfo(info *MarketInfo) error

	// Snapshot / rollback / commit
	Snapshot() (int, error)
	RevertToSnapshot(id int) error
	// ComputeRoot returns the deterministic state root from the current write
	// buffer without flushing. Call this before signing a block.
	ComputeRoot() string
	// Commit flushes the write buffer to the underlying DB and clears it.
	// Always call ComputeRoot() first to obtain the root for the block header.
	Commit() error
}
