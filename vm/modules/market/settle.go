package market

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/charlesC137/nft-smc/core"
	"github.com/charlesC137/nft-smc/events"
	"github.com/charlesC137/nft-smc/vm"
)

func init() {
	vm.Register(core.TxBuyNFT, handleBuyNFT)
	vm.Register(core.TxWithdraw, handleWithdraw)
}

// settleInProgress is the process-wide latch for the settlement path. Set on
// entry, cleared on every exit path. A nested re-entry (a fund leg calling
// back into a sale) fails outright instead of corrupting state.
var settleInProgress bool

func enterSettle() error {
	if settleInProgress {
		return ErrReentrantCall
	}
	settleInProgress = true
	return nil
}

func exitSettle() { settleInProgress = false }

func handleBuyNFT(ctx *vm.Context, payload json.RawMessage) error {
	var p core.BuyNFTPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode buy_nft payload: %w", err)
	}

	nft, err := ctx.State.GetNFT(p.ID)
	if err != nil {
		return fmt.Errorf("NFT %d: %w", p.ID, err)
	}
	if !nft.IsListed {
		return ErrNotForSale
	}
	owner, err := ctx.State.GetOwner(p.ID)
	if err != nil {
		return err
	}
	if owner == ctx.Tx.From {
		return ErrAlreadyOwner
	}
	if p.Payment < nft.Price {
		return ErrIncorrectAmount
	}

	if err := ledger.Transfer(ctx.State, ctx.Tx.From, core.EscrowAddress, p.Payment); err != nil {
		return fmt.Errorf("attach payment: %w", err)
	}
	return settle(ctx, nft, ctx.Tx.From, p.Payment)
}

// settle executes the purchase of nft by buyer. The attached payment must
// already sit in the escrow account; settle disburses all of it: seller
// proceeds, platform fee to the treasury, royalty to the creator when the
// creator is not the seller, and the excess over the price back to the buyer.
//
// Ownership moves before any fund leg, and every leg is checked: a rejected
// transfer aborts the sale, and the executor's snapshot revert guarantees no
// partial effect survives.
func settle(ctx *vm.Context, nft *core.NFT, buyer string, payment uint64) error {
	if err := enterSettle(); err != nil {
		return err
	}
	defer exitSettle()

	info, err := ctx.State.MarketInfo()
	if err != nil {
		return fmt.Errorf("market info: %w", err)
	}
	seller, err := ctx.State.GetOwner(nft.ID)
	if err != nil {
		return err
	}

	// Rates are whole percentages, so the split multiplies by the rate
	// before dividing. A price large enough to wrap uint64 would settle
	// with an understated royalty and fee; abort instead.
	price := nft.Price
	maxRate := info.RoyaltyRate
	if info.PlatformFee > maxRate {
		maxRate = info.PlatformFee
	}
	if maxRate > 0 && price > math.MaxUint64/maxRate {
		return ErrPriceOverflow
	}
	royalty := price * info.RoyaltyRate / 100
	fee := price * info.PlatformFee / 100

	if err := ctx.State.SetOwner(nft.ID, buyer); err != nil {
		return err
	}
	if err := ctx.State.SetApproved(nft.ID, ""); err != nil {
		return err
	}

	// A creator reselling their own token does not pay themselves a
	// royalty: the royalty leg is skipped and stays with the seller.
	proceeds := price - royalty - fee
	if seller == nft.Creator {
		proceeds = price - fee
	}

	if err := ledger.Transfer(ctx.State, core.EscrowAddress, seller, proceeds); err != nil {
		return fmt.Errorf("%w: %v", ErrSellerPayment, err)
	}
	if err := ledger.Transfer(ctx.State, core.EscrowAddress, core.TreasuryAddress, fee); err != nil {
		return fmt.Errorf("%w: %v", ErrContractPayment, err)
	}
	if seller != nft.Creator {
		if err := ledger.Transfer(ctx.State, core.EscrowAddress, nft.Creator, royalty); err != nil {
			return fmt.Errorf("%w: %v", ErrRoyaltyPayment, err)
		}
	}
	if payment > price {
		if err := ledger.Transfer(ctx.State, core.EscrowAddress, buyer, payment-price); err != nil {
			return fmt.Errorf("%w: %v", ErrRefund, err)
		}
	}

	nft.IsListed = false
	nft.CurrentOwner = buyer
	if err := ctx.State.SetNFT(nft); err != nil {
		return err
	}

	if ctx.Emitter != nil {
		ctx.Emitter.Emit(events.Event{
			Type:        events.EventNFTTransferred,
			TxID:        ctx.Tx.ID,
			BlockHeight: ctx.Block.Header.Height,
			Data:        map[string]any{"id": nft.ID, "from": seller, "to": buyer},
		})
		ctx.Emitter.Emit(events.Event{
			Type:        events.EventNFTSold,
			TxID:        ctx.Tx.ID,
			BlockHeight: ctx.Block.Header.Height,
			Data: map[string]any{
				"id":      nft.ID,
				"seller":  seller,
				"buyer":   buyer,
				"price":   price,
				"fee":     fee,
				"royalty": royalty,
			},
		})
	}
	return nil
}

func handleWithdraw(ctx *vm.Context, payload json.RawMessage) error {
	var p core.WithdrawPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode withdraw payload: %w", err)
	}

	info, err := ctx.State.MarketInfo()
	if err != nil {
		return fmt.Errorf("market info: %w", err)
	}
	if ctx.Tx.From != info.PlatformOwner {
		return ErrNotPlatformOwner
	}

	treasury, err := ctx.State.GetAccount(core.TreasuryAddress)
	if err != nil {
		return err
	}
	amount := treasury.Balance
	if err := ledger.Transfer(ctx.State, core.TreasuryAddress, info.PlatformOwner, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrWithdrawFailed, err)
	}

	if ctx.Emitter != nil {
		ctx.Emitter.Emit(events.Event{
			Type:        events.EventWithdraw,
			TxID:        ctx.Tx.ID,
			BlockHeight: ctx.Block.Header.Height,
			Data:        map[string]any{"to": info.PlatformOwner, "amount": amount},
		})
	}
	return nil
}
