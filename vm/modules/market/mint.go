// Package market implements the NFT marketplace transaction handlers:
// voucher-based lazy minting, listing management, atomic sale settlement
// with fee/royalty splitting, and the treasury withdraw.
package market

import (
	"encoding/json"
	"fmt"

	"github.com/charlesC137/nft-smc/core"
	"github.com/charlesC137/nft-smc/crypto"
	"github.com/charlesC137/nft-smc/events"
	"github.com/charlesC137/nft-smc/vm"
)

func init() {
	vm.Register(core.TxLazyMint, handleLazyMint)
}

// handleLazyMint materializes a token from a creator-signed voucher.
//
// When the submitter is not the creator the mint is treated as an immediate
// purchase: the token is first minted under the creator's ownership and then
// resold to the submitter through the settlement path within the same
// transaction. The intermediate ownership step is deliberate; it shows up in
// the transferred-event history.
func handleLazyMint(ctx *vm.Context, payload json.RawMessage) error {
	var p core.LazyMintPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode lazy_mint payload: %w", err)
	}
	v := p.Voucher

	sigDigest, err := crypto.SigDigest(p.Signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	used, err := ctx.State.SigUsed(sigDigest)
	if err != nil {
		return fmt.Errorf("replay guard: %w", err)
	}
	if used {
		return ErrSignatureUsed
	}
	if ctx.Block.Header.Timestamp > v.Expiry {
		return ErrVoucherExpired
	}
	if v.URI == "" {
		return ErrURIRequired
	}
	if err := v.VerifySignature(ctx.ChainID, p.Signature); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	// Consume the signature before any fund movement. The mark rolls back
	// with the rest of the tx if a later step fails.
	if err := ctx.State.MarkSigUsed(sigDigest); err != nil {
		return err
	}

	id, err := ctx.State.NextNFTID()
	if err != nil {
		return err
	}

	buyerInitiated := ctx.Tx.From != v.Creator
	listed := buyerInitiated || v.ListItem
	if listed && v.Price == 0 {
		return ErrZeroPrice
	}

	nft := &core.NFT{
		ID:           id,
		Creator:      v.Creator,
		CurrentOwner: v.Creator,
		Price:        v.Price,
		IsListed:     listed,
		CreatedAt:    ctx.Block.Header.Timestamp,
		URI:          v.URI,
	}
	if err := ctx.State.SetOwner(id, v.Creator); err != nil {
		return err
	}
	if err := ctx.State.SetNFT(nft); err != nil {
		return err
	}

	if ctx.Emitter != nil {
		ctx.Emitter.Emit(events.Event{
			Type:        events.EventNFTMinted,
			TxID:        ctx.Tx.ID,
			BlockHeight: ctx.Block.Header.Height,
			Data: map[string]any{
				"id":         id,
				"creator":    v.Creator,
				"owner":      v.Creator,
				"uri":        v.URI,
				"price":      v.Price,
				"listed":     listed,
				"created_at": nft.CreatedAt,
			},
		})
	}

	if !buyerInitiated {
		return nil
	}

	if p.Payment < v.Price {
		return ErrInsufficientPayment
	}
	// Attach the payment: escrow it for the nested settlement.
	if err := ledger.Transfer(ctx.State, ctx.Tx.From, core.EscrowAddress, p.Payment); err != nil {
		return fmt.Errorf("attach payment: %w", err)
	}
	return settle(ctx, nft, ctx.Tx.From, p.Payment)
}
