package market_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesC137/nft-smc/core"
	"github.com/charlesC137/nft-smc/events"
	"github.com/charlesC137/nft-smc/indexer"
	"github.com/charlesC137/nft-smc/internal/testutil"
	"github.com/charlesC137/nft-smc/vm/modules/market"
	"github.com/charlesC137/nft-smc/wallet"
)

func TestLazyMintByCreator(t *testing.T) {
	e := newEnv(t)
	creator, _ := wallet.Generate()

	v, sig := voucher(creator, "ipfs://art-1", 100, false)
	tx, err := creator.LazyMint(testChainID, v, sig, 0, 0, 0)
	require.NoError(t, err)
	e.mustRun(tx)

	nft, err := e.state.GetNFT(1)
	require.NoError(t, err)
	require.Equal(t, creator.PubKey(), nft.Creator)
	require.Equal(t, "ipfs://art-1", nft.URI)
	require.False(t, nft.IsListed, "ListItem=false keeps a creator mint off the market")

	owner, err := e.state.GetOwner(1)
	require.NoError(t, err)
	require.Equal(t, creator.PubKey(), owner)
}

func TestLazyMintListItem(t *testing.T) {
	e := newEnv(t)
	creator, _ := wallet.Generate()

	id := e.mintListed(creator, "ipfs://art-2", 250)
	nft, err := e.state.GetNFT(id)
	require.NoError(t, err)
	require.True(t, nft.IsListed)
	require.Equal(t, uint64(250), nft.Price)
}

func TestLazyMintIDsAreSequential(t *testing.T) {
	e := newEnv(t)
	creator, _ := wallet.Generate()

	require.Equal(t, uint64(1), e.mintListed(creator, "ipfs://a", 10))
	require.Equal(t, uint64(2), e.mintListed(creator, "ipfs://b", 10))
	require.Equal(t, uint64(3), e.mintListed(creator, "ipfs://c", 10))
}

func TestLazyMintZeroPriceListed(t *testing.T) {
	e := newEnv(t)
	creator, _ := wallet.Generate()

	v, sig := voucher(creator, "ipfs://free", 0, true)
	tx, err := creator.LazyMint(testChainID, v, sig, 0, 0, 0)
	require.NoError(t, err)
	require.ErrorIs(t, e.run(tx), market.ErrZeroPrice)

	// Unlisted zero-price mints are fine.
	v2, sig2 := voucher(creator, "ipfs://free", 0, false)
	tx2, err := creator.LazyMint(testChainID, v2, sig2, 0, 0, 0)
	require.NoError(t, err)
	e.mustRun(tx2)
}

func TestLazyMintEmptyURI(t *testing.T) {
	e := newEnv(t)
	creator, _ := wallet.Generate()

	v, sig := voucher(creator, "", 100, false)
	tx, err := creator.LazyMint(testChainID, v, sig, 0, 0, 0)
	require.NoError(t, err)

	err = e.run(tx)
	require.ErrorIs(t, err, market.ErrURIRequired)
	require.EqualError(t, market.ErrURIRequired, "URI required")
}

func TestLazyMintExpiredVoucher(t *testing.T) {
	e := newEnv(t)
	creator, _ := wallet.Generate()

	v := core.MintVoucher{
		Creator: creator.PubKey(),
		URI:     "ipfs://old",
		Price:   100,
		Expiry:  time.Now().Add(-time.Minute).UnixNano(),
	}
	sig := creator.SignVoucher(testChainID, v)
	tx, err := creator.LazyMint(testChainID, v, sig, 0, 0, 0)
	require.NoError(t, err)
	require.ErrorIs(t, e.run(tx), market.ErrVoucherExpired)
}

func TestLazyMintTamperedVoucher(t *testing.T) {
	e := newEnv(t)
	creator, _ := wallet.Generate()

	v, sig := voucher(creator, "ipfs://art", 100, false)
	v.Price = 1 // mutate after signing
	tx, err := creator.LazyMint(testChainID, v, sig, 0, 0, 0)
	require.NoError(t, err)
	require.ErrorIs(t, e.run(tx), market.ErrInvalidSignature)
}

func TestLazyMintForgedCreator(t *testing.T) {
	e := newEnv(t)
	creator, _ := wallet.Generate()
	imposter, _ := wallet.Generate()

	// Voucher claims creator but is signed by someone else.
	v := core.MintVoucher{
		Creator: creator.PubKey(),
		URI:     "ipfs://forged",
		Price:   100,
		Expiry:  time.Now().Add(time.Hour).UnixNano(),
	}
	sig := imposter.SignVoucher(testChainID, v)
	tx, err := imposter.LazyMint(testChainID, v, sig, 200, 0, 0)
	require.NoError(t, err)
	e.fund(imposter.PubKey(), 200)
	require.ErrorIs(t, e.run(tx), market.ErrInvalidSignature)
}

func TestLazyMintReplay(t *testing.T) {
	e := newEnv(t)
	creator, _ := wallet.Generate()

	v, sig := voucher(creator, "ipfs://once", 100, false)
	tx1, err := creator.LazyMint(testChainID, v, sig, 0, 0, 0)
	require.NoError(t, err)
	e.mustRun(tx1)

	tx2, err := creator.LazyMint(testChainID, v, sig, 0, 1, 0)
	require.NoError(t, err)
	err = e.run(tx2)
	require.ErrorIs(t, err, market.ErrSignatureUsed)
	require.EqualError(t, market.ErrSignatureUsed, "signature already used")

	// Only one token exists.
	seq, err := e.state.NFTSeq()
	require.NoError(t, err)
	require.Equal(t, uint64(1), seq)
}

// A buyer redeeming someone else's voucher mints and purchases in one step:
// the token passes through the creator and lands with the buyer, with the
// full price split between creator proceeds and platform fee.
func TestLazyMintBuyerInitiated(t *testing.T) {
	e := newEnv(t)
	creator, _ := wallet.Generate()
	buyer, _ := wallet.Generate()
	e.fund(buyer.PubKey(), 1_000)

	v, sig := voucher(creator, "ipfs://drop", 100, false)
	tx, err := buyer.LazyMint(testChainID, v, sig, 100, 0, 0)
	require.NoError(t, err)
	e.mustRun(tx)

	owner, err := e.state.GetOwner(1)
	require.NoError(t, err)
	require.Equal(t, buyer.PubKey(), owner)

	nft, err := e.state.GetNFT(1)
	require.NoError(t, err)
	require.False(t, nft.IsListed, "sold tokens come off the market")
	require.Equal(t, buyer.PubKey(), nft.CurrentOwner)

	// 5% royalty is skipped when the seller is the creator: creator keeps
	// price minus the 5% platform fee.
	require.Equal(t, uint64(95), e.balance(creator.PubKey()))
	require.Equal(t, uint64(5), e.balance(core.TreasuryAddress))
	require.Equal(t, uint64(900), e.balance(buyer.PubKey()))
	require.Equal(t, uint64(0), e.balance(core.EscrowAddress), "escrow fully disbursed")
}

func TestLazyMintBuyerOverpaymentRefund(t *testing.T) {
	e := newEnv(t)
	creator, _ := wallet.Generate()
	buyer, _ := wallet.Generate()
	e.fund(buyer.PubKey(), 1_000)

	v, sig := voucher(creator, "ipfs://drop", 100, false)
	tx, err := buyer.LazyMint(testChainID, v, sig, 150, 0, 0)
	require.NoError(t, err)
	e.mustRun(tx)

	// The 50 above the price comes straight back.
	require.Equal(t, uint64(900), e.balance(buyer.PubKey()))
	require.Equal(t, uint64(95), e.balance(creator.PubKey()))
	require.Equal(t, uint64(5), e.balance(core.TreasuryAddress))
	require.Equal(t, uint64(0), e.balance(core.EscrowAddress))
}

// A reverted buyer redemption must be invisible everywhere, including to
// event subscribers: the owner index keeps its own storage outside the
// state snapshot, so a minted event delivered before the revert would leave
// a phantom entry behind.
func TestLazyMintFailedBuyEmitsNothing(t *testing.T) {
	e := newEnv(t)
	creator, _ := wallet.Generate()
	buyer, _ := wallet.Generate()
	e.fund(buyer.PubKey(), 1_000)

	var minted []events.Event
	e.emitter.Subscribe(events.EventNFTMinted, func(ev events.Event) { minted = append(minted, ev) })
	idx := indexer.New(testutil.NewMemDB(), e.emitter, nil)

	v, sig := voucher(creator, "ipfs://drop", 100, false)
	tx, err := buyer.LazyMint(testChainID, v, sig, 99, 0, 0)
	require.NoError(t, err)
	require.ErrorIs(t, e.run(tx), market.ErrInsufficientPayment)

	require.Empty(t, minted, "reverted mint must not reach subscribers")
	ids, err := idx.GetNFTsByOwner(creator.PubKey())
	require.NoError(t, err)
	require.Empty(t, ids, "owner index must not record the reverted mint")

	// The successful redemption delivers the withheld event exactly once and
	// the index lands on the buyer.
	tx2, err := buyer.LazyMint(testChainID, v, sig, 100, 0, 0)
	require.NoError(t, err)
	e.mustRun(tx2)

	require.Len(t, minted, 1)
	ids, err = idx.GetNFTsByOwner(buyer.PubKey())
	require.NoError(t, err)
	require.Equal(t, []uint64{1}, ids)
	ids, err = idx.GetNFTsByOwner(creator.PubKey())
	require.NoError(t, err)
	require.Empty(t, ids, "the pass-through creator ownership nets out")
}

func TestLazyMintBuyerInsufficientPayment(t *testing.T) {
	e := newEnv(t)
	creator, _ := wallet.Generate()
	buyer, _ := wallet.Generate()
	e.fund(buyer.PubKey(), 1_000)

	v, sig := voucher(creator, "ipfs://drop", 100, false)
	tx, err := buyer.LazyMint(testChainID, v, sig, 99, 0, 0)
	require.NoError(t, err)
	require.ErrorIs(t, e.run(tx), market.ErrInsufficientPayment)

	// Nothing survives the revert: no token, no consumed signature, no funds moved.
	seq, err := e.state.NFTSeq()
	require.NoError(t, err)
	require.Equal(t, uint64(0), seq)
	require.Equal(t, uint64(1_000), e.balance(buyer.PubKey()))

	// The same voucher still redeems fine afterwards.
	tx2, err := buyer.LazyMint(testChainID, v, sig, 100, 0, 0)
	require.NoError(t, err)
	e.mustRun(tx2)
}
