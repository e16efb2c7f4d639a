package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/charlesC137/nft-smc/core"
	"github.com/charlesC137/nft-smc/crypto"
)

// registerPrefix records a state-key prefix into statePrefixes so that
// ComputeRoot() always covers it. All prefix constants must be declared
// via this function; manually editing statePrefixes is not required.
func registerPrefix(p string) string {
	statePrefixes = append(statePrefixes, p)
	return p
}

// statePrefixes is populated automatically by registerPrefix() below.
// ComputeRoot() iterates these prefixes to build the full world-state view.
var statePrefixes []string

var (
	prefixAccount  = registerPrefix("acct:")
	prefixNFT      = registerPrefix("nft:")
	prefixOwner    = registerPrefix("own:")
	prefixApproved = registerPrefix("apr:")
	prefixSig      = registerPrefix("sig:")
	prefixMarket   = registerPrefix("mkt:")
)

// keyNFTSeq holds the highest issued NFT id. It lives under the market
// prefix so the state root covers it.
const keyNFTSeq = "mkt:seq"

// keyMarketInfo holds the genesis marketplace parameters.
const keyMarketInfo = "mkt:info"

// nftKey renders an NFT state key with zero-padded ids so lexicographic
// iteration matches numeric order.
func nftKey(prefix string, id uint64) string {
	return fmt.Sprintf("%s%020d", prefix, id)
}

type stateSnapshot struct {
	dirty   map[string][]byte
	deleted map[string]bool
}

// StateDB implements core.State on top of a DB with in-memory write buffer,
// snapshot/rollback, and deterministic state-root computation.
type StateDB struct {
	db        DB
	dirty     map[string][]byte
	deleted   map[string]bool
	snapshots []stateSnapshot
}

// NewStateDB creates a StateDB backed by db.
func NewStateDB(db DB) *StateDB {
	return &StateDB{
		db:      db,
		dirty:   make(map[string][]byte),
		deleted: make(map[string]bool),
	}
}

// ---- internal helpers ----

func (s *StateDB) get(key string) ([]byte, error) {
	if s.deleted[key] {
		return nil, core.ErrNotFound
	}
	if v, ok := s.dirty[key]; ok {
		return v, nil
	}
	return s.db.Get([]byte(key))
}

func (s *StateDB) set(key string, val []byte) {
	delete(s.deleted, key)
	s.dirty[key] = val
}

// ---- Account ----

func (s *StateDB) GetAccount(address string) (*core.Account, error) {
	data, err := s.get(prefixAccount + address)
	if errors.Is(err, core.ErrNotFound) {
		return &core.Account{Address: address}, nil // zero-value account
	}
	if err != nil {
		return nil, err
	}
	var acc core.Account
	if err := json.Unmarshal(data, &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

func (s *StateDB) SetAccount(acc *core.Account) error {
	data, err := json.Marshal(acc)
	if err != nil {
		return err
	}
	s.set(prefixAccount+acc.Address, data)
	return nil
}

// ---- NFT registry ----

func (s *StateDB) GetNFT(id uint64) (*core.NFT, error) {
	if id == 0 {
		return nil, core.ErrNotFound // 0 is the absent sentinel
	}
	data, err := s.get(nftKey(prefixNFT, id))
	if err != nil {
		return nil, err
	}
	var n core.NFT
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *StateDB) SetNFT(n *core.NFT) error {
	if n.ID == 0 {
		return errors.New("nft id 0 is reserved")
	}
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	s.set(nftKey(prefixNFT, n.ID), data)
	return nil
}

func (s *StateDB) NFTSeq() (uint64, error) {
	data, err := s.get(keyNFTSeq)
	if errors.Is(err, core.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(string(data), 10, 64)
}

func (s *StateDB) NextNFTID() (uint64, error) {
	seq, err := s.NFTSeq()
	if err != nil {
		return 0, err
	}
	seq++
	s.set(keyNFTSeq, []byte(strconv.FormatUint(seq, 10)))
	return seq, nil
}

// ---- Ownership ledger ----

func (s *StateDB) GetOwner(id uint64) (string, error) {
	data, err := s.get(nftKey(prefixOwner, id))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *StateDB) SetOwner(id uint64, owner string) error {
	s.set(nftKey(prefixOwner, id), []byte(owner))
	return nil
}

// ---- Approvals ----

func (s *StateDB) GetApproved(id uint64) (string, error) {
	data, err := s.get(nftKey(prefixApproved, id))
	if errors.Is(err, core.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *StateDB) SetApproved(id uint64, addr string) error {
	s.set(nftKey(prefixApproved, id), []byte(addr))
	return nil
}

// ---- Replay guard ----

func (s *StateDB) SigUsed(digest string) (bool, error) {
	_, err := s.get(prefixSig + digest)
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *StateDB) MarkSigUsed(digest string) error {
	s.set(prefixSig+digest, []byte{1})
	return nil
}

// ---- Market info ----

func (s *StateDB) MarketInfo() (*core.MarketInfo, error) {
	data, err := s.get(keyMarketInfo)
	if err != nil {
		return nil, err
	}
	var info core.MarketInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (s *StateDB) SetMarketInfo(info *core.MarketInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	s.set(keyMarketInfo, data)
	return nil
}

// ---- Snapshot / Rollback / Commit ----

// Snapshot saves the current write buffer and returns a snapshot ID.
func (s *StateDB) Snapshot() (int, error) {
	snap := stateSnapshot{
		dirty:   make(map[string][]byte, len(s.dirty)),
		deleted: make(map[string]bool, len(s.deleted)),
	}
	for k, v := range s.dirty {
		cp := make([]byte, len(v))
		copy(cp, v)
		snap.dirty[k] = cp
	}
	for k, v := range s.deleted {
		snap.deleted[k] = v
	}
	s.snapshots = append(s.snapshots, snap)
	return len(s.snapshots) - 1, nil
}

// RevertToSnapshot restores the write buffer to a previously saved snapshot.
// The snapshot maps are deep-copied so that subsequent writes cannot corrupt them.
func (s *StateDB) RevertToSnapshot(id int) error {
	if id < 0 || id >= len(s.snapshots) {
		return fmt.Errorf("invalid snapshot id %d", id)
	}
	snap := s.snapshots[id]

	dirty := make(map[string][]byte, len(snap.dirty))
	for k, v := range snap.dirty {
		cp := make([]byte, len(v))
		copy(cp, v)
		dirty[k] = cp
	}
	deleted := make(map[string]bool, len(snap.deleted))
	for k, v := range snap.deleted {
		deleted[k] = v
	}

	s.dirty = dirty
	s.deleted = deleted
	s.snapshots = s.snapshots[:id]
	return nil
}

// ComputeRoot returns the deterministic hash of the complete world state.
// It merges all persisted state entries (scanned from DB by the known state
// prefixes) with the current write buffer, then hashes the sorted key-value
// pairs using length-prefix encoding. It does NOT flush or modify state,
// so it is safe to call before signing a block.
func (s *StateDB) ComputeRoot() string {
	merged := make(map[string][]byte)
	for _, prefix := range statePrefixes {
		it := s.db.NewIterator([]byte(prefix))
		for it.Next() {
			k := string(it.Key())
			v := make([]byte, len(it.Value()))
			copy(v, it.Value())
			merged[k] = v
		}
		it.Release()
	}

	for k, v := range s.dirty {
		merged[k] = v
	}
	for k := range s.deleted {
		delete(merged, k)
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	var lenBuf [4]byte
	for _, k := range keys {
		v := merged[k]
		kb := []byte(k)
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(kb)))
		buf.Write(lenBuf[:])
		buf.Write(kb)
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(v)))
		buf.Write(lenBuf[:])
		buf.Write(v)
	}
	return crypto.Hash(buf.Bytes())
}

// Commit atomically flushes the write buffer to the underlying DB via a
// WriteBatch and then clears it. Call ComputeRoot() before signing the block,
// then call Commit() after the block is safely stored.
func (s *StateDB) Commit() error {
	batch := s.db.NewBatch()
	for k, v := range s.dirty {
		batch.Set([]byte(k), v)
	}
	for k := range s.deleted {
		batch.Delete([]byte(k))
	}
	if err := batch.Write(); err != nil {
		return err
	}
	s.dirty = make(map[string][]byte)
	s.deleted = make(map[string]bool)
	s.snapshots = nil
	return nil
}
