package wallet

import (
	"github.com/charlesC137/nft-smc/core"
	"github.com/charlesC137/nft-smc/crypto"
)

// Wallet holds a key pair and provides transaction-building helpers.
type Wallet struct {
	priv crypto.PrivateKey
	pub  crypto.PublicKey
}

// New creates a Wallet from an existing private key.
func New(priv crypto.PrivateKey) *Wallet {
	return &Wallet{priv: priv, pub: priv.Public()}
}

// Generate creates a Wallet with a freshly generated key pair.
func Generate() (*Wallet, error) {
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return New(priv), nil
}

// PrivKey returns the raw private key (handle with care).
func (w *Wallet) PrivKey() crypto.PrivateKey {
	return w.priv
}

// PubKey returns the hex-encoded ed25519 public key (used as "from" address).
func (w *Wallet) PubKey() string {
	return w.pub.Hex()
}

// Address returns the short human-readable address (first 20 bytes of SHA-256(pubkey)).
func (w *Wallet) Address() string {
	return w.pub.Address()
}

// NewTx creates a signed transaction. chainID must match the target network.
// nonce should match the account's current nonce.
func (w *Wallet) NewTx(chainID string, typ core.TxType, nonce, fee uint64, payload any) (*core.Transaction, error) {
	tx, err := core.NewTransaction(chainID, typ, w.pub.Hex(), nonce, fee, payload)
	if err != nil {
		return nil, err
	}
	tx.Sign(w.priv)
	return tx, nil
}

// Transfer creates a signed native-token transfer transaction.
func (w *Wallet) Transfer(chainID, to string, amount, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxTransfer, nonce, fee, core.TransferPayload{
		To:     to,
		Amount: amount,
	})
}

// SignVoucher signs the mint voucher's digest with this wallet's key.
// The wallet address must match the voucher's Creator field or the chain
// will reject the resulting lazy-mint transaction.
func (w *Wallet) SignVoucher(chainID string, v core.MintVoucher) string {
	digest := v.Digest(chainID)
	return crypto.Sign(w.priv, []byte(digest))
}

// LazyMint creates a signed lazy-mint transaction redeeming the voucher.
// payment is the amount attached for a buyer-initiated mint; creators
// redeeming their own vouchers should pass 0.
func (w *Wallet) LazyMint(chainID string, v core.MintVoucher, voucherSig string, payment, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxLazyMint, nonce, fee, core.LazyMintPayload{
		Voucher:   v,
		Signature: voucherSig,
		Payment:   payment,
	})
}

// ListNFT creates a signed transaction putting the NFT up for sale at price.
func (w *Wallet) ListNFT(chainID string, id, price, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxListNFT, nonce, fee, core.ListNFTPayload{ID: id, Price: price})
}

// UnlistNFT creates a signed transaction taking the NFT off the market.
func (w *Wallet) UnlistNFT(chainID string, id, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxUnlistNFT, nonce, fee, core.UnlistNFTPayload{ID: id})
}

// TransferNFT creates a signed transaction giving the NFT to another address.
func (w *Wallet) TransferNFT(chainID string, id uint64, to string, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxTransferNFT, nonce, fee, core.TransferNFTPayload{ID: id, To: to})
}

// ApproveNFT creates a signed transaction approving another address to
// transfer the NFT on this wallet's behalf. Pass an empty to to revoke.
func (w *Wallet) ApproveNFT(chainID string, id uint64, to string, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxApproveNFT, nonce, fee, core.ApproveNFTPayload{ID: id, To: to})
}

// BuyNFT creates a signed transaction purchasing the listed NFT.
// payment must be at least the listed price; any overpayment is refunded.
func (w *Wallet) BuyNFT(chainID string, id, payment, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxBuyNFT, nonce, fee, core.BuyNFTPayload{ID: id, Payment: payment})
}

// Withdraw creates a signed transaction sweeping accumulated platform fees
// and royalties to this wallet. Only the platform owner may submit it.
func (w *Wallet) Withdraw(chainID string, nonce, fee uint64) (*core.Transaction, error) {
	return w.NewTx(chainID, core.TxWithdraw, nonce, fee, core.WithdrawPayload{})
}
