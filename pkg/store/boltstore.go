package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cuemby/chainkv/pkg/chain"
	"github.com/cuemby/chainkv/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var bucketChains = []byte("chains")

// bucketState is one in-memory bucket: its live chain plus the mutex
// that makes GetAndAppend linearizable for that KeyHash. Buckets for
// different hashes never share a lock (spec §5 "per-bucket mutual
// exclusion").
type bucketState struct {
	mu    sync.Mutex
	chain chain.Chain
}

// BoltStore is the durable Store implementation: buckets live in memory
// for hot-path reads/appends and are persisted to a BoltDB file so an
// entity restart doesn't lose chain history. Adapted from
// pkg/storage.BoltStore's single-file, single-top-level-bucket layout.
type BoltStore struct {
	db *bolt.DB

	mu      sync.RWMutex // guards buckets map membership only
	buckets map[types.KeyHash]*bucketState
}

// NewBoltStore opens (or creates) the BoltDB file at path and loads any
// persisted buckets into memory.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketChains)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create chains bucket: %w", err)
	}

	s := &BoltStore{db: db, buckets: make(map[types.KeyHash]*bucketState)}
	if err := s.loadAll(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *BoltStore) loadAll() error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketChains)
		return b.ForEach(func(k, v []byte) error {
			h := types.KeyHash(binary.BigEndian.Uint64(k))
			var blobs [][]byte
			if err := json.Unmarshal(v, &blobs); err != nil {
				return fmt.Errorf("store: decode bucket %d: %w", h, err)
			}
			s.buckets[h] = &bucketState{chain: chain.New(blobs)}
			return nil
		})
	})
}

func (s *BoltStore) bucket(h types.KeyHash) *bucketState {
	s.mu.RLock()
	b, ok := s.buckets[h]
	s.mu.RUnlock()
	if ok {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.buckets[h]; ok {
		return b
	}
	b = &bucketState{}
	s.buckets[h] = b
	return b
}

func (s *BoltStore) persist(h types.KeyHash, c chain.Chain) error {
	data, err := json.Marshal(c.Blobs())
	if err != nil {
		return fmt.Errorf("store: encode bucket %d: %w", h, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketChains)
		var key [8]byte
		binary.BigEndian.PutUint64(key[:], uint64(h))
		return b.Put(key[:], data)
	})
}

// Get implements Store.
func (s *BoltStore) Get(h types.KeyHash) (chain.Chain, error) {
	b := s.bucket(h)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.chain, nil
}

// GetAndAppend implements Store. The bucket's lock is held across both
// the in-memory append and the durable persist, so a reader that
// acquires the lock afterward always sees state consistent with what
// was last durably written.
func (s *BoltStore) GetAndAppend(h types.KeyHash, blob []byte) (chain.Chain, error) {
	b := s.bucket(h)
	b.mu.Lock()
	defer b.mu.Unlock()

	pre := b.chain
	next := pre.Append(blob)
	if err := s.persist(h, next); err != nil {
		return chain.Chain{}, err
	}
	b.chain = next
	return pre, nil
}

// ReplaceAtHead implements Store.
func (s *BoltStore) ReplaceAtHead(h types.KeyHash, expectedPrefix, replacement chain.Chain) (bool, error) {
	b := s.bucket(h)
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.chain.HasPrefix(expectedPrefix) {
		return false, nil
	}
	next := b.chain.ReplacePrefix(expectedPrefix.Len(), replacement)
	if err := s.persist(h, next); err != nil {
		return false, err
	}
	b.chain = next
	return true, nil
}

// Clear implements Store.
func (s *BoltStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buckets = make(map[types.KeyHash]*bucketState)
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketChains); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketChains)
		return err
	})
}

// Close implements Store.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Buckets returns the key hashes of the buckets currently held, for
// metrics and compaction scanning.
func (s *BoltStore) Buckets() []types.KeyHash {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.KeyHash, 0, len(s.buckets))
	for h := range s.buckets {
		out = append(out, h)
	}
	return out
}
