package market_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesC137/nft-smc/core"
	"github.com/charlesC137/nft-smc/events"
	"github.com/charlesC137/nft-smc/internal/testutil"
	"github.com/charlesC137/nft-smc/vm"
	"github.com/charlesC137/nft-smc/wallet"

	_ "github.com/charlesC137/nft-smc/vm/modules/economy"
)

const testChainID = "nftmarket-test"

var (
	genesisPrev = strings.Repeat("0", 64)
	errRejected = errors.New("transfer rejected")
)

// env bundles an in-memory state, an executor and the platform owner wallet
// with 5% royalty / 5% platform fee, the production defaults.
type env struct {
	t        *testing.T
	state    core.State
	exec     *vm.Executor
	emitter  *events.Emitter
	platform *wallet.Wallet
	height   int64
}

func newEnv(t *testing.T) *env {
	t.Helper()
	platform, err := wallet.Generate()
	require.NoError(t, err)

	state := testutil.NewStateDB()
	require.NoError(t, state.SetMarketInfo(&core.MarketInfo{
		PlatformOwner: platform.PubKey(),
		RoyaltyRate:   5,
		PlatformFee:   5,
	}))

	emitter := events.NewEmitter(nil)
	return &env{
		t:        t,
		state:    state,
		exec:     vm.NewExecutor(state, emitter, testChainID),
		emitter:  emitter,
		platform: platform,
	}
}

func (e *env) fund(pubKey string, amount uint64) {
	e.t.Helper()
	acc, err := e.state.GetAccount(pubKey)
	require.NoError(e.t, err)
	acc.Balance += amount
	require.NoError(e.t, e.state.SetAccount(acc))
}

func (e *env) balance(pubKey string) uint64 {
	e.t.Helper()
	acc, err := e.state.GetAccount(pubKey)
	require.NoError(e.t, err)
	return acc.Balance
}

func (e *env) nonce(pubKey string) uint64 {
	e.t.Helper()
	acc, err := e.state.GetAccount(pubKey)
	require.NoError(e.t, err)
	return acc.Nonce
}

// run executes tx inside a fresh single-tx block.
func (e *env) run(tx *core.Transaction) error {
	e.t.Helper()
	e.height++
	block := core.NewBlock(e.height, genesisPrev, e.platform.PubKey(), []*core.Transaction{tx})
	return e.exec.ExecuteTx(block, tx)
}

func (e *env) mustRun(tx *core.Transaction) {
	e.t.Helper()
	require.NoError(e.t, e.run(tx))
}

// voucher builds a mint voucher valid for one hour and the creator's
// signature over its digest.
func voucher(creator *wallet.Wallet, uri string, price uint64, listItem bool) (core.MintVoucher, string) {
	v := core.MintVoucher{
		Creator:  creator.PubKey(),
		URI:      uri,
		Price:    price,
		Expiry:   time.Now().Add(time.Hour).UnixNano(),
		ListItem: listItem,
	}
	return v, creator.SignVoucher(testChainID, v)
}

// mintListed mints a listed token owned by creator and returns its id.
func (e *env) mintListed(creator *wallet.Wallet, uri string, price uint64) uint64 {
	e.t.Helper()
	v, sig := voucher(creator, uri, price, true)
	tx, err := creator.LazyMint(testChainID, v, sig, 0, e.nonce(creator.PubKey()), 0)
	require.NoError(e.t, err)
	e.mustRun(tx)
	seq, err := e.state.NFTSeq()
	require.NoError(e.t, err)
	return seq
}

// moveFunds is the plain balance move used by test ledgers that need to let
// unhooked legs through.
func moveFunds(st core.State, from, to string, amount uint64) error {
	src, err := st.GetAccount(from)
	if err != nil {
		return err
	}
	if src.Balance < amount {
		return fmt.Errorf("insufficient balance: have %d need %d", src.Balance, amount)
	}
	src.Balance -= amount
	if err := st.SetAccount(src); err != nil {
		return err
	}
	dst, err := st.GetAccount(to)
	if err != nil {
		return err
	}
	dst.Balance += amount
	return st.SetAccount(dst)
}

// hookLedger counts Transfer calls and lets the hook inspect or fail a
// specific leg. A nil hook error falls through to a real balance move.
type hookLedger struct {
	calls int
	hook  func(call int, st core.State, from, to string, amount uint64) error
}

func (l *hookLedger) Transfer(st core.State, from, to string, amount uint64) error {
	l.calls++
	if l.hook != nil {
		if err := l.hook(l.calls, st, from, to, amount); err != nil {
			return err
		}
	}
	return moveFunds(st, from, to, amount)
}
