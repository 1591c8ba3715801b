package store

import (
	"sync"

	"github.com/cuemby/chainkv/pkg/chain"
	"github.com/cuemby/chainkv/pkg/types"
)

// MemStore is a non-durable Store, used in tests. It implements the same per-bucket linearizability
// as BoltStore without a disk-backed log.
type MemStore struct {
	mu      sync.RWMutex
	buckets map[types.KeyHash]*bucketState
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{buckets: make(map[types.KeyHash]*bucketState)}
}

func (s *MemStore) bucket(h types.KeyHash) *bucketState {
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

// Get implements Store.
func (s *MemStore) Get(h types.KeyHash) (chain.Chain, error) {
	b := s.bucket(h)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.chain, nil
}

// GetAndAppend implements Store.
func (s *MemStore) GetAndAppend(h types.KeyHash, blob []byte) (chain.Chain, error) {
	b := s.bucket(h)
	b.mu.Lock()
	defer b.mu.Unlock()

	pre := b.chain
	b.chain = pre.Append(blob)
	return pre, nil
}

// ReplaceAtHead implements Store.
func (s *MemStore) ReplaceAtHead(h types.KeyHash, expectedPrefix, replacement chain.Chain) (bool, error) {
	b := s.bucket(h)
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.chain.HasPrefix(expectedPrefix) {
		return false, nil
	}
	b.chain = b.chain.ReplacePrefix(expectedPrefix.Len(), replacement)
	return true, nil
}

// Clear implements Store.
func (s *MemStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets = make(map[types.KeyHash]*bucketState)
	return nil
}

// Close implements Store.
func (s *MemStore) Close() error { return nil }

// Buckets returns the set of hashes with at least one bucket entry.
func (s *MemStore) Buckets() []types.KeyHash {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.KeyHash, 0, len(s.buckets))
	for h := range s.buckets {
		out = append(out, h)
	}
	return out
}
