// Package resolver implements the deterministic fold that reconstructs
// a key's current value from a Chain (spec §4.4), and the canonical
// compaction that shrinks a chain without changing any key's resolved
// value (spec §4.4 "Compaction").
package resolver

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/cuemby/chainkv/pkg/chain"
	"github.com/cuemby/chainkv/pkg/codec"
	"github.com/cuemby/chainkv/pkg/types"
)

// Resolve folds c for key, oldest blob first, and returns the
// resulting value and whether it is present. Only blobs whose key
// equals the target (byte equality on the serialized key) influence
// the result — the fold's locality property.
//
// Resolve stops and returns types.ErrMalformedOperation if it encounters
// a blob it cannot decode; the caller decides whether to fail the
// enclosing operation or to resolve against the chain up to that point
// (spec §7 default policy is "fail the enclosing operation").
func Resolve(c chain.Chain, key []byte) ([]byte, bool, error) {
	var value []byte
	present := false
	for i, blob := range c.Blobs() {
		op, err := codec.Decode(blob)
		if err != nil {
			return nil, false, fmt.Errorf("resolver: blob %d: %w", i, err)
		}
		if !bytes.Equal(op.Key, key) {
			continue
		}
		value, present = op.Apply(value, present)
	}
	return value, present, nil
}

// Compact computes the canonical compaction of c (spec §4.4): for every
// key that appears in c, in order of that key's last occurrence, it
// emits exactly one PUT carrying the resolved value, or nothing if the
// resolved value is absent. Compact preserves Resolve's answer for
// every key that was in c; it is a server-side optimization applied
// out-of-band, never required for correctness.
type compactEntry struct {
	key        []byte
	lastSeenAt int
	value      []byte
	present    bool
}

func Compact(c chain.Chain) (chain.Chain, error) {
	order := make([]string, 0)
	byKey := make(map[string]*compactEntry)

	for i, blob := range c.Blobs() {
		op, err := codec.Decode(blob)
		if err != nil {
			return chain.Chain{}, fmt.Errorf("resolver: compact: blob %d: %w", i, err)
		}
		k := string(op.Key)
		e, ok := byKey[k]
		if !ok {
			e = &compactEntry{key: op.Key}
			byKey[k] = e
			order = append(order, k)
		}
		e.value, e.present = op.Apply(e.value, e.present)
		e.lastSeenAt = i
	}

	// Emission order follows each key's last occurrence, so a key
	// mutated again late in the chain compacts to a blob placed where
	// its latest mutation was, not where it first appeared.
	keys := make([]string, len(order))
	copy(keys, order)
	sort.SliceStable(keys, func(i, j int) bool {
		return byKey[keys[i]].lastSeenAt < byKey[keys[j]].lastSeenAt
	})

	blobs := make([][]byte, 0, len(keys))
	for _, k := range keys {
		e := byKey[k]
		if !e.present {
			continue
		}
		blobs = append(blobs, codec.Encode(types.Put(e.key, e.value, 0)))
	}
	return chain.New(blobs), nil
}
