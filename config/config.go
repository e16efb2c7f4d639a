// Package config defines node configuration and genesis handling.
package config

import (
	"encoding/json"
	"os"
)

// MarketGenesis describes the marketplace parameters baked into genesis.
// Rates are whole percentages of the sale price.
type MarketGenesis struct {
	PlatformOwner string `json:"platform_owner"` // pubkey hex receiving withdrawals; defaults to the genesis proposer
	RoyaltyRate   uint64 `json:"royalty_rate"`   // percent paid to the creator on secondary sales
	PlatformFee   uint64 `json:"platform_fee"`   // percent retained by the platform on every sale
}

// GenesisConfig describes the chain's initial state.
type GenesisConfig struct {
	ChainID string            `json:"chain_id"`
	Alloc   map[string]uint64 `json:"alloc"` // pubkey hex → initial balance
	Market  MarketGenesis     `json:"market"`
}

// SeedPeer identifies a peer to connect to on startup.
type SeedPeer struct {
	ID   string `json:"id"`
	Addr string `json:"addr"`
}

// TLSConfig holds PEM paths for optional P2P mTLS.
type TLSConfig struct {
	CACert   string `json:"ca_cert"`
	NodeCert string `json:"node_cert"`
	NodeKey  string `json:"node_key"`
}

// Config holds all node configuration.
type Config struct {
	NodeID       string        `json:"node_id"`
	DataDir      string        `json:"data_dir"`
	RPCPort      int           `json:"rpc_port"`
	P2PPort      int           `json:"p2p_port"`
	MaxBlockTxs  int           `json:"max_block_txs"` // max transactions per block; 0 → 500
	Validators   []string      `json:"validators"`    // authorised proposer pubkey hexes
	SeedPeers    []SeedPeer    `json:"seed_peers"`
	RPCAuthToken string        `json:"rpc_auth_token"` // empty → RPC auth disabled
	TLS          *TLSConfig    `json:"tls"`            // nil → plain TCP P2P
	Genesis      GenesisConfig `json:"genesis"`
}

// DefaultConfig returns a single-node development configuration.
func DefaultConfig() *Config {
	return &Config{
		NodeID:      "node0",
		DataDir:     "./data",
		RPCPort:     8545,
		P2PPort:     30303,
		MaxBlockTxs: 500,
		Genesis: GenesisConfig{
			ChainID: "nftmarket-dev",
			Alloc:   map[string]uint64{},
			Market: MarketGenesis{
				RoyaltyRate: 5,
				PlatformFee: 5,
			},
		},
	}
}

// Load reads a JSON config file from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to path as formatted JSON.
func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
