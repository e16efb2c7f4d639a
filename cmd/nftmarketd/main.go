// Command nftmarketd runs an NFT marketplace chain node.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/charlesC137/nft-smc/config"
	"github.com/charlesC137/nft-smc/consensus"
	"github.com/charlesC137/nft-smc/core"
	"github.com/charlesC137/nft-smc/crypto/certgen"
	"github.com/charlesC137/nft-smc/events"
	"github.com/charlesC137/nft-smc/indexer"
	"github.com/charlesC137/nft-smc/network"
	"github.com/charlesC137/nft-smc/rpc"
	"github.com/charlesC137/nft-smc/storage"
	"github.com/charlesC137/nft-smc/vm"
	"github.com/charlesC137/nft-smc/wallet"

	// Import VM modules to trigger their init() self-registration.
	_ "github.com/charlesC137/nft-smc/vm/modules/economy"
	_ "github.com/charlesC137/nft-smc/vm/modules/market"
)

var (
	cfgPath string
	keyPath string
)

func main() {
	root := &cobra.Command{
		Use:           "nftmarketd",
		Short:         "NFT marketplace chain node",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "config.json", "path to config file")
	root.PersistentFlags().StringVar(&keyPath, "key", "validator.key", "path to keystore file")

	root.AddCommand(startCmd(), genKeyCmd(), genCertsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// keystorePassword reads the keystore password from the environment rather
// than CLI flags, which leak via ps.
func keystorePassword(log *zap.Logger) string {
	password := os.Getenv("NFTM_PASSWORD")
	if password == "" && log != nil {
		log.Warn("NFTM_PASSWORD not set, keystore will use an empty password")
	}
	return password
}

func loadConfig(log *zap.Logger) (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info("config file not found, using defaults", zap.String("path", cfgPath))
			return config.DefaultConfig(), nil
		}
		return nil, err
	}
	return cfg, nil
}

func genKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "genkey",
		Short: "Generate a new validator key and save it to the keystore",
		RunE: func(cmd *cobra.Command, _ []string) error {
			w, err := wallet.Generate()
			if err != nil {
				return err
			}
			if err := wallet.SaveKey(keyPath, keystorePassword(nil), w.PrivKey()); err != nil {
				return err
			}
			fmt.Printf("Generated key. Public key (validator address): %s\n", w.PubKey())
			fmt.Printf("Saved to: %s\n", keyPath)
			return nil
		},
	}
}

func genCertsCmd() *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "gencerts",
		Short: "Generate CA and node TLS certificates for P2P mTLS",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer log.Sync()
			cfg, err := loadConfig(log)
			if err != nil {
				return err
			}
			if err := certgen.GenerateAll(outDir, cfg.NodeID, nil); err != nil {
				return err
			}
			fmt.Printf("Certificates generated in %s for node %q\n", outDir, cfg.NodeID)
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "./certs", "output directory for PEM files")
	return cmd
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the node",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer log.Sync()
			return runNode(log)
		},
	}
}

func runNode(log *zap.Logger) error {
	cfg, err := loadConfig(log)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	privKey, err := wallet.LoadKey(keyPath, keystorePassword(log))
	if err != nil {
		return fmt.Errorf("load key: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("mkdir data dir: %w", err)
	}
	db, err := storage.NewLevelDB(cfg.DataDir + "/chain")
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	blockStore := storage.NewLevelBlockStore(db)
	state := storage.NewStateDB(db)

	bc := core.NewBlockchain(blockStore)
	if err := bc.Init(); err != nil {
		return fmt.Errorf("blockchain init: %w", err)
	}

	// ---- genesis block (if fresh chain) ----
	if bc.Tip() == nil {
		genesisBlock, err := config.CreateGenesisBlock(cfg, state, privKey)
		if err != nil {
			return fmt.Errorf("genesis: %w", err)
		}
		if err := bc.AddBlock(genesisBlock); err != nil {
			return fmt.Errorf("add genesis: %w", err)
		}
		log.Info("genesis block committed", zap.String("hash", genesisBlock.Hash))
	}

	emitter := events.NewEmitter(log)
	idx := indexer.New(db, emitter, log)

	mempool := core.NewMempool()
	exec := vm.NewExecutor(state, emitter, cfg.Genesis.ChainID)
	poa := consensus.New(cfg, bc, state, mempool, exec, emitter, privKey, log)

	tlsCfg, err := config.LoadTLSConfig(cfg.TLS)
	if err != nil {
		return fmt.Errorf("tls: %w", err)
	}
	if tlsCfg != nil {
		log.Info("mTLS enabled for P2P")
	}

	// ---- network ----
	p2pAddr := fmt.Sprintf(":%d", cfg.P2PPort)
	node := network.NewNode(cfg.NodeID, p2pAddr, mempool, tlsCfg, log)
	syncer := network.NewSyncer(node, bc, poa, exec, state, log)
	if err := node.Start(); err != nil {
		return fmt.Errorf("p2p start: %w", err)
	}
	defer node.Stop()
	log.Info("P2P listening", zap.String("addr", p2pAddr))

	for _, sp := range cfg.SeedPeers {
		if err := node.AddPeer(sp.ID, sp.Addr); err != nil {
			log.Warn("seed peer connect failed",
				zap.String("id", sp.ID), zap.String("addr", sp.Addr), zap.Error(err))
			continue
		}
		if peer := node.Peer(sp.ID); peer != nil {
			syncer.SyncWithPeer(peer)
		}
		log.Info("connected to seed peer", zap.String("id", sp.ID), zap.String("addr", sp.Addr))
	}

	// ---- RPC ----
	rpcAddr := fmt.Sprintf(":%d", cfg.RPCPort)
	rpcHandler := rpc.NewHandler(bc, mempool, state, idx, cfg.Genesis.ChainID)
	rpcServer := rpc.NewServer(rpcAddr, rpcHandler, cfg.RPCAuthToken, log)
	if err := rpcServer.Start(); err != nil {
		return fmt.Errorf("rpc start: %w", err)
	}
	defer rpcServer.Stop()
	log.Info("RPC listening", zap.String("addr", rpcAddr))
	if cfg.RPCAuthToken != "" {
		log.Info("RPC Bearer token authentication enabled")
	}

	// ---- consensus loop ----
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		poa.Run(2*time.Second, done)
	}()
	log.Info("consensus running", zap.String("validator", privKey.Public().Hex()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")

	// Stop consensus first so no new blocks are written, then let the
	// deferred calls run in LIFO: rpcServer.Stop → node.Stop → db.Close.
	close(done)
	wg.Wait()

	log.Info("shutdown complete")
	return nil
}
