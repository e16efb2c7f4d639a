package market

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/charlesC137/nft-smc/core"
	"github.com/charlesC137/nft-smc/crypto"
	"github.com/charlesC137/nft-smc/events"
	"github.com/charlesC137/nft-smc/vm"
)

func init() {
	vm.Register(core.TxListNFT, handleListNFT)
	vm.Register(core.TxUnlistNFT, handleUnlistNFT)
	vm.Register(core.TxTransferNFT, handleTransferNFT)
	vm.Register(core.TxApproveNFT, handleApproveNFT)
}

func handleListNFT(ctx *vm.Context, payload json.RawMessage) error {
	var p core.ListNFTPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode list_nft payload: %w", err)
	}
	if p.Price == 0 {
		return ErrZeroPrice
	}

	nft, err := ctx.State.GetNFT(p.ID)
	if err != nil {
		return fmt.Errorf("NFT %d: %w", p.ID, err)
	}
	owner, err := ctx.State.GetOwner(p.ID)
	if err != nil {
		return err
	}
	if owner != ctx.Tx.From {
		return ErrNotOwner
	}
	if nft.IsListed {
		return ErrAlreadyListed
	}

	nft.IsListed = true
	nft.Price = p.Price
	nft.CurrentOwner = owner
	if err := ctx.State.SetNFT(nft); err != nil {
		return err
	}

	if ctx.Emitter != nil {
		ctx.Emitter.Emit(events.Event{
			Type:        events.EventNFTListed,
			TxID:        ctx.Tx.ID,
			BlockHeight: ctx.Block.Header.Height,
			Data:        map[string]any{"id": p.ID, "owner": owner, "price": p.Price},
		})
	}
	return nil
}

func handleUnlistNFT(ctx *vm.Context, payload json.RawMessage) error {
	var p core.UnlistNFTPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode unlist_nft payload: %w", err)
	}

	nft, err := ctx.State.GetNFT(p.ID)
	if err != nil {
		return fmt.Errorf("NFT %d: %w", p.ID, err)
	}
	owner, err := ctx.State.GetOwner(p.ID)
	if err != nil {
		return err
	}
	if owner != ctx.Tx.From {
		return ErrNotOwner
	}
	if !nft.IsListed {
		return ErrNotListed
	}

	nft.IsListed = false
	if err := ctx.State.SetNFT(nft); err != nil {
		return err
	}

	if ctx.Emitter != nil {
		ctx.Emitter.Emit(events.Event{
			Type:        events.EventNFTUnlisted,
			TxID:        ctx.Tx.ID,
			BlockHeight: ctx.Block.Header.Height,
			Data:        map[string]any{"id": p.ID, "owner": owner},
		})
	}
	return nil
}

// handleTransferNFT performs a direct ownership transfer outside of a sale.
// A transfer invalidates any pending sale, so the listing flag is forced off.
func handleTransferNFT(ctx *vm.Context, payload json.RawMessage) error {
	var p core.TransferNFTPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode transfer_nft payload: %w", err)
	}
	if p.To == "" {
		return errors.New("to address required")
	}
	if _, err := crypto.PubKeyFromHex(p.To); err != nil {
		return fmt.Errorf("invalid to pubkey: %w", err)
	}

	nft, err := ctx.State.GetNFT(p.ID)
	if err != nil {
		return fmt.Errorf("NFT %d: %w", p.ID, err)
	}
	owner, err := ctx.State.GetOwner(p.ID)
	if err != nil {
		return err
	}
	approved, err := ctx.State.GetApproved(p.ID)
	if err != nil {
		return err
	}
	if ctx.Tx.From != owner && ctx.Tx.From != approved {
		return ErrNotAuthorized
	}

	if err := ctx.State.SetOwner(p.ID, p.To); err != nil {
		return err
	}
	if err := ctx.State.SetApproved(p.ID, ""); err != nil {
		return err
	}
	nft.IsListed = false
	nft.CurrentOwner = p.To
	if err := ctx.State.SetNFT(nft); err != nil {
		return err
	}

	if ctx.Emitter != nil {
		ctx.Emitter.Emit(events.Event{
			Type:        events.EventNFTTransferred,
			TxID:        ctx.Tx.ID,
			BlockHeight: ctx.Block.Header.Height,
			Data:        map[string]any{"id": p.ID, "from": owner, "to": p.To},
		})
	}
	return nil
}

func handleApproveNFT(ctx *vm.Context, payload json.RawMessage) error {
	var p core.ApproveNFTPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode approve_nft payload: %w", err)
	}
	if p.To != "" {
		if _, err := crypto.PubKeyFromHex(p.To); err != nil {
			return fmt.Errorf("invalid delegate pubkey: %w", err)
		}
	}

	if _, err := ctx.State.GetNFT(p.ID); err != nil {
		return fmt.Errorf("NFT %d: %w", p.ID, err)
	}
	owner, err := ctx.State.GetOwner(p.ID)
	if err != nil {
		return err
	}
	if owner != ctx.Tx.From {
		return ErrNotOwner
	}
	return ctx.State.SetApproved(p.ID, p.To)
}
