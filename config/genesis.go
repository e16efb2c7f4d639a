package config

import (
	"fmt"
	"strings"

	"github.com/charlesC137/nft-smc/core"
	"github.com/charlesC137/nft-smc/crypto"
)

// GenesisHash is a canonical all-zeros previous hash for the genesis block.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// CreateGenesisBlock builds and signs block #0 from the config's Alloc map
// and marketplace parameters. It also writes initial account balances and
// MarketInfo into state and commits.
func CreateGenesisBlock(cfg *Config, state core.State, proposerPriv crypto.PrivateKey) (*core.Block, error) {
	proposerPub := proposerPriv.Public()

	// Credit all alloc accounts
	for pubkeyHex, balance := range cfg.Genesis.Alloc {
		acc := &core.Account{
			Address: pubkeyHex,
			Balance: balance,
			Nonce:   0,
		}
		if err := state.SetAccount(acc); err != nil {
			return nil, err
		}
	}

	// Marketplace parameters are fixed at genesis; the platform owner
	// defaults to the genesis proposer when not configured.
	market := cfg.Genesis.Market
	if market.RoyaltyRate+market.PlatformFee > 100 {
		return nil, fmt.Errorf("royalty rate %d%% + platform fee %d%% exceeds 100%%",
			market.RoyaltyRate, market.PlatformFee)
	}
	owner := market.PlatformOwner
	if owner == "" {
		owner = proposerPub.Hex()
	}
	if err := state.SetMarketInfo(&core.MarketInfo{
		PlatformOwner: owner,
		RoyaltyRate:   market.RoyaltyRate,
		PlatformFee:   market.PlatformFee,
	}); err != nil {
		return nil, err
	}

	stateRoot := state.ComputeRoot()
	if err := state.Commit(); err != nil {
		return nil, err
	}

	block := core.NewBlock(0, GenesisHash, proposerPub.Hex(), nil)
	block.Header.StateRoot = stateRoot
	// Embed chain ID via TxRoot for network identification
	block.Header.TxRoot = crypto.Hash([]byte(cfg.Genesis.ChainID))
	block.Sign(proposerPriv)
	return block, nil
}

// IsGenesisHash returns true if the hash is the canonical genesis prev-hash.
func IsGenesisHash(h string) bool {
	return strings.Count(h, "0") == len(h) && len(h) == 64
}
