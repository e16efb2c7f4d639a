// Package indexer maintains secondary indexes over committed blocks so
// clients can query NFTs by owner without scanning full state.
package indexer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/charlesC137/nft-smc/core"
	"github.com/charlesC137/nft-smc/events"
	"github.com/charlesC137/nft-smc/storage"
)

const prefixOwnerNFTs = "idx:owner:nft:"

// Indexer subscribes to chain events and updates secondary lookup tables.
// Mint and transfer events cover every ownership change, sales included.
type Indexer struct {
	db  storage.DB
	log *zap.Logger
}

// New creates an Indexer backed by db and subscribes to relevant events.
func New(db storage.DB, emitter *events.Emitter, log *zap.Logger) *Indexer {
	if log == nil {
		log = zap.NewNop()
	}
	idx := &Indexer{db: db, log: log}
	emitter.Subscribe(events.EventNFTMinted, idx.onMinted)
	emitter.Subscribe(events.EventNFTTransferred, idx.onTransferred)
	return idx
}

// GetNFTsByOwner returns all NFT ids held by the given pubkey.
func (idx *Indexer) GetNFTsByOwner(owner string) ([]uint64, error) {
	return idx.getList(prefixOwnerNFTs + owner)
}

// ---- event handlers ----

func (idx *Indexer) onMinted(ev events.Event) {
	owner, _ := ev.Data["owner"].(string)
	id := eventNFTID(ev)
	if owner == "" || id == 0 {
		return
	}
	if err := idx.addToList(prefixOwnerNFTs+owner, id); err != nil {
		idx.log.Error("index mint", zap.Uint64("id", id), zap.Error(err))
	}
}

func (idx *Indexer) onTransferred(ev events.Event) {
	from, _ := ev.Data["from"].(string)
	to, _ := ev.Data["to"].(string)
	id := eventNFTID(ev)
	if id == 0 || from == "" || to == "" {
		return
	}
	if err := idx.removeFromList(prefixOwnerNFTs+from, id); err != nil {
		idx.log.Error("index transfer", zap.Uint64("id", id), zap.Error(err))
		return
	}
	if err := idx.addToList(prefixOwnerNFTs+to, id); err != nil {
		idx.log.Error("index transfer", zap.Uint64("id", id), zap.Error(err))
	}
}

// eventNFTID extracts the NFT id from an event payload. In-process events
// carry uint64; events rehydrated from JSON carry float64.
func eventNFTID(ev events.Event) uint64 {
	switch v := ev.Data["id"].(type) {
	case uint64:
		return v
	case float64:
		return uint64(v)
	case string:
		n, _ := strconv.ParseUint(v, 10, 64)
		return n
	default:
		return 0
	}
}

// ---- list helpers ----

func (idx *Indexer) getList(key string) ([]uint64, error) {
	data, err := idx.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, nil // empty list
		}
		return nil, err
	}
	var ids []uint64
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("indexer unmarshal: %w", err)
	}
	return ids, nil
}

func (idx *Indexer) addToList(key string, value uint64) error {
	ids, _ := idx.getList(key)
	ids = append(ids, value)
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return idx.db.Set([]byte(key), data)
}

func (idx *Indexer) removeFromList(key string, value uint64) error {
	ids, _ := idx.getList(key)
	filtered := ids[:0]
	for _, id := range ids {
		if id != value {
			filtered = append(filtered, id)
		}
	}
	data, err := json.Marshal(filtered)
	if err != nil {
		return err
	}
	return idx.db.Set([]byte(key), data)
}
