package market

import "errors"

// Named precondition failures. Every one aborts the whole transaction with
// no partial state change; the executor reverts to the pre-tx snapshot.
var (
	ErrSignatureUsed       = errors.New("signature already used")
	ErrVoucherExpired      = errors.New("voucher expired")
	ErrURIRequired         = errors.New("URI required")
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrInsufficientPayment = errors.New("insufficient payment")
	ErrNotForSale          = errors.New("NFT is not for sale")
	ErrAlreadyOwner        = errors.New("you already own this NFT")
	ErrIncorrectAmount     = errors.New("incorrect amount sent")
	ErrSellerPayment       = errors.New("seller payment transfer failed")
	ErrContractPayment     = errors.New("contract payment transfer failed")
	ErrRoyaltyPayment      = errors.New("royalties transfer failed")
	ErrRefund              = errors.New("refund failed")
	ErrWithdrawFailed      = errors.New("withdraw failed")
	ErrReentrantCall       = errors.New("reentrant settlement call")
	ErrNotOwner            = errors.New("caller is not the owner")
	ErrNotAuthorized       = errors.New("caller is not owner or approved")
	ErrAlreadyListed       = errors.New("NFT already listed")
	ErrNotListed           = errors.New("NFT is not listed")
	ErrZeroPrice           = errors.New("price must be greater than zero")
	ErrPriceOverflow       = errors.New("price too large to settle")
	ErrNotPlatformOwner    = errors.New("only the platform owner can withdraw")
)
