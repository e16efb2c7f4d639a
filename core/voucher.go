package core

import (
	"fmt"

	"github.com/charlesC137/nft-smc/crypto"
)

// Voucher domain-separator constants. Bumping the version invalidates every
// previously signed voucher.
const (
	VoucherDomainName    = "nft-market"
	VoucherDomainVersion = "1"
)

// MintVoucher is a creator's off-chain, signed declaration of intent to sell
// a not-yet-minted token under fixed terms. It is never persisted; only the
// digest of its accompanying signature is recorded once consumed.
type MintVoucher struct {
	Creator  string `json:"creator"` // pubkey hex, royalty beneficiary
	URI      string `json:"uri"`
	Price    uint64 `json:"price"`
	Expiry   int64  `json:"expiry"`    // unix nanos
	ListItem bool   `json:"list_item"` // keep listed after a creator-submitted mint
}

// Digest returns the domain-separated digest the creator signs. The domain
// binds the voucher to this market and chain; the tuple binds it to the exact
// field values, so mutating any of price, uri or expiry invalidates the
// signature.
func (v *MintVoucher) Digest(chainID string) string {
	domain := crypto.HashTuple(
		[]byte(VoucherDomainName),
		[]byte(VoucherDomainVersion),
		[]byte(chainID),
	)
	listed := byte(0)
	if v.ListItem {
		listed = 1
	}
	return crypto.HashTuple(
		[]byte(domain),
		[]byte(v.Creator),
		[]byte(crypto.Hash([]byte(v.URI))),
		[]byte(fmt.Sprintf("%d", v.Price)),
		[]byte(fmt.Sprintf("%d", v.Expiry)),
		[]byte{listed},
	)
}

// VerifySignature checks that sigHex is a valid signature over the voucher
// digest by the claimed creator key.
func (v *MintVoucher) VerifySignature(chainID, sigHex string) error {
	pub, err := crypto.PubKeyFromHex(v.Creator)
	if err != nil {
		return fmt.Errorf("invalid creator pubkey: %w", err)
	}
	return crypto.Verify(pub, []byte(v.Digest(chainID)), sigHex)
}
