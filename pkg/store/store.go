// Package store implements the server-side, per-entity bucket map: one
// Chain per KeyHash, with the single atomic primitive the whole
// clustered-store design rests on (spec §4.7).
package store

import (
	"github.com/cuemby/chainkv/pkg/chain"
	"github.com/cuemby/chainkv/pkg/types"
)

// Store is the per-alias hash-to-chain table an entity server exposes
// over pkg/transport. Every method is linearizable per-bucket;
// operations on different buckets carry no ordering guarantee relative
// to each other (spec §5).
type Store interface {
	// Get returns a snapshot of the current chain for h. An empty
	// chain (Len()==0) means the bucket has never been appended to.
	Get(h types.KeyHash) (chain.Chain, error)

	// GetAndAppend atomically appends blob to h's chain and returns the
	// chain as it was immediately before the append (spec §4.6's "key
	// contract"). The proxy uses only that pre-append chain, plus the
	// blob it just sent, to compute the caller's answer.
	GetAndAppend(h types.KeyHash, blob []byte) (chain.Chain, error)

	// ReplaceAtHead applies a compaction proposal: if expectedPrefix is
	// an exact prefix of h's current chain, that prefix is replaced by
	// replacement and the method returns true. Otherwise it is a no-op
	// that returns false — never an error — so that compaction stays
	// lock-free and correctness-neutral (spec §4.6).
	ReplaceAtHead(h types.KeyHash, expectedPrefix, replacement chain.Chain) (bool, error)

	// Clear removes every bucket.
	Clear() error

	// Close releases any resources (durable backing, etc).
	Close() error
}
