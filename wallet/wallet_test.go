package wallet_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesC137/nft-smc/core"
	"github.com/charlesC137/nft-smc/wallet"
)

const testChainID = "test-chain"

func TestKeystoreRoundtrip(t *testing.T) {
	w, err := wallet.Generate()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "validator.key")
	require.NoError(t, wallet.SaveKey(path, "hunter2", w.PrivKey()))

	priv, err := wallet.LoadKey(path, "hunter2")
	require.NoError(t, err)
	require.Equal(t, w.PubKey(), priv.Public().Hex())

	_, err = wallet.LoadKey(path, "wrong")
	require.EqualError(t, err, "wrong password or corrupted keystore")

	_, err = wallet.LoadKey(filepath.Join(t.TempDir(), "missing.key"), "hunter2")
	require.Error(t, err)
}

func TestTxBuildersSign(t *testing.T) {
	w, err := wallet.Generate()
	require.NoError(t, err)

	v := core.MintVoucher{Creator: w.PubKey(), URI: "ipfs://x", Price: 10, Expiry: 1}
	sig := w.SignVoucher(testChainID, v)
	require.NoError(t, v.VerifySignature(testChainID, sig))

	builders := []func() (*core.Transaction, error){
		func() (*core.Transaction, error) { return w.Transfer(testChainID, "aa", 1, 0, 0) },
		func() (*core.Transaction, error) { return w.LazyMint(testChainID, v, sig, 0, 0, 0) },
		func() (*core.Transaction, error) { return w.ListNFT(testChainID, 1, 10, 0, 0) },
		func() (*core.Transaction, error) { return w.UnlistNFT(testChainID, 1, 0, 0) },
		func() (*core.Transaction, error) { return w.TransferNFT(testChainID, 1, "aa", 0, 0) },
		func() (*core.Transaction, error) { return w.ApproveNFT(testChainID, 1, "aa", 0, 0) },
		func() (*core.Transaction, error) { return w.BuyNFT(testChainID, 1, 10, 0, 0) },
		func() (*core.Transaction, error) { return w.Withdraw(testChainID, 0, 0) },
	}
	for _, build := range builders {
		tx, err := build()
		require.NoError(t, err)
		require.Equal(t, testChainID, tx.ChainID)
		require.Equal(t, w.PubKey(), tx.From)
		require.NotEmpty(t, tx.ID)
		require.NoError(t, tx.Verify())
	}
}

func TestVoucherSignatureIsChainBound(t *testing.T) {
	w, err := wallet.Generate()
	require.NoError(t, err)

	v := core.MintVoucher{Creator: w.PubKey(), URI: "ipfs://x", Price: 10, Expiry: 1}
	sig := w.SignVoucher("chain-a", v)
	require.NoError(t, v.VerifySignature("chain-a", sig))
	require.Error(t, v.VerifySignature("chain-b", sig))
}
