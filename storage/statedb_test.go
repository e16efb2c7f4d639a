package storage_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesC137/nft-smc/core"
	"github.com/charlesC137/nft-smc/internal/testutil"
	"github.com/charlesC137/nft-smc/storage"
)

func newState(t *testing.T) *storage.StateDB {
	t.Helper()
	return storage.NewStateDB(testutil.NewMemDB())
}

func TestAccountRoundtrip(t *testing.T) {
	st := newState(t)

	// Unknown accounts read as zero-value, not as an error.
	acc, err := st.GetAccount("abcd")
	require.NoError(t, err)
	require.Equal(t, uint64(0), acc.Balance)

	acc.Balance = 500
	acc.Nonce = 3
	require.NoError(t, st.SetAccount(acc))

	got, err := st.GetAccount("abcd")
	require.NoError(t, err)
	require.Equal(t, uint64(500), got.Balance)
	require.Equal(t, uint64(3), got.Nonce)
}

func TestNFTRoundtrip(t *testing.T) {
	st := newState(t)

	_, err := st.GetNFT(0)
	require.ErrorIs(t, err, core.ErrNotFound, "id 0 is the absent sentinel")
	_, err = st.GetNFT(1)
	require.ErrorIs(t, err, core.ErrNotFound)

	require.Error(t, st.SetNFT(&core.NFT{ID: 0}))

	n := &core.NFT{ID: 1, Creator: "c", CurrentOwner: "c", Price: 10, IsListed: true, URI: "u"}
	require.NoError(t, st.SetNFT(n))
	got, err := st.GetNFT(1)
	require.NoError(t, err)
	require.Equal(t, n, got)
}

func TestNextNFTIDMonotonic(t *testing.T) {
	st := newState(t)

	seq, err := st.NFTSeq()
	require.NoError(t, err)
	require.Equal(t, uint64(0), seq)

	for want := uint64(1); want <= 5; want++ {
		id, err := st.NextNFTID()
		require.NoError(t, err)
		require.Equal(t, want, id)
	}

	// The counter survives a commit.
	require.NoError(t, st.Commit())
	id, err := st.NextNFTID()
	require.NoError(t, err)
	require.Equal(t, uint64(6), id)
}

func TestOwnerAndApproval(t *testing.T) {
	st := newState(t)

	_, err := st.GetOwner(1)
	require.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, st.SetOwner(1, "alice"))
	owner, err := st.GetOwner(1)
	require.NoError(t, err)
	require.Equal(t, "alice", owner)

	// No approval reads as empty, not as an error.
	approved, err := st.GetApproved(1)
	require.NoError(t, err)
	require.Empty(t, approved)

	require.NoError(t, st.SetApproved(1, "bob"))
	approved, err = st.GetApproved(1)
	require.NoError(t, err)
	require.Equal(t, "bob", approved)
}

func TestSigGuard(t *testing.T) {
	st := newState(t)

	used, err := st.SigUsed("digest-1")
	require.NoError(t, err)
	require.False(t, used)

	require.NoError(t, st.MarkSigUsed("digest-1"))
	used, err = st.SigUsed("digest-1")
	require.NoError(t, err)
	require.True(t, used)

	// Marks survive commit.
	require.NoError(t, st.Commit())
	used, err = st.SigUsed("digest-1")
	require.NoError(t, err)
	require.True(t, used)
}

func TestMarketInfoRoundtrip(t *testing.T) {
	st := newState(t)

	_, err := st.MarketInfo()
	require.ErrorIs(t, err, core.ErrNotFound)

	info := &core.MarketInfo{PlatformOwner: "owner", RoyaltyRate: 5, PlatformFee: 5}
	require.NoError(t, st.SetMarketInfo(info))
	got, err := st.MarketInfo()
	require.NoError(t, err)
	require.Equal(t, info, got)
}

func TestSnapshotRevert(t *testing.T) {
	st := newState(t)
	require.NoError(t, st.SetAccount(&core.Account{Address: "a", Balance: 100}))

	snap, err := st.Snapshot()
	require.NoError(t, err)

	require.NoError(t, st.SetAccount(&core.Account{Address: "a", Balance: 1}))
	require.NoError(t, st.MarkSigUsed("d"))
	_, err = st.NextNFTID()
	require.NoError(t, err)

	require.NoError(t, st.RevertToSnapshot(snap))

	acc, err := st.GetAccount("a")
	require.NoError(t, err)
	require.Equal(t, uint64(100), acc.Balance)

	used, err := st.SigUsed("d")
	require.NoError(t, err)
	require.False(t, used)

	seq, err := st.NFTSeq()
	require.NoError(t, err)
	require.Equal(t, uint64(0), seq)

	require.Error(t, st.RevertToSnapshot(99), "unknown snapshot id")
}

func TestComputeRootDeterministic(t *testing.T) {
	build := func() *storage.StateDB {
		st := newState(t)
		require.NoError(t, st.SetAccount(&core.Account{Address: "a", Balance: 1}))
		require.NoError(t, st.SetAccount(&core.Account{Address: "b", Balance: 2}))
		require.NoError(t, st.SetNFT(&core.NFT{ID: 1, Creator: "a", URI: "u"}))
		return st
	}

	r1 := build().ComputeRoot()
	r2 := build().ComputeRoot()
	require.Equal(t, r1, r2)

	// The root is stable across a commit: flushing the buffer must not
	// change the world state it reports.
	st := build()
	before := st.ComputeRoot()
	require.NoError(t, st.Commit())
	require.Equal(t, before, st.ComputeRoot())

	// And any write changes it.
	require.NoError(t, st.SetAccount(&core.Account{Address: "a", Balance: 99}))
	require.NotEqual(t, before, st.ComputeRoot())
}

func TestCommitPersists(t *testing.T) {
	db := testutil.NewMemDB()
	st := storage.NewStateDB(db)
	require.NoError(t, st.SetAccount(&core.Account{Address: "a", Balance: 7}))
	require.NoError(t, st.Commit())

	// A fresh StateDB over the same DB sees the committed data.
	st2 := storage.NewStateDB(db)
	acc, err := st2.GetAccount("a")
	require.NoError(t, err)
	require.Equal(t, uint64(7), acc.Balance)
}
