// Package chain implements the ordered, immutable sequence of operation
// blobs the entity server returns for a bucket (spec §3 Chain, §4.3).
package chain

import (
	"bytes"
	"fmt"

	"github.com/cuemby/chainkv/pkg/codec"
	"github.com/cuemby/chainkv/pkg/types"
)

// Chain is the server's commit order for one KeyHash bucket, oldest
// blob first. A Chain never mutates in place: compaction produces a new
// Chain value with the same resolved state for every key it contains.
type Chain struct {
	blobs [][]byte
}

// New wraps an ordered slice of blobs as a Chain. The slice is copied so
// that the caller's backing array can't alias into the Chain afterward.
func New(blobs [][]byte) Chain {
	cp := make([][]byte, len(blobs))
	copy(cp, blobs)
	return Chain{blobs: cp}
}

// Empty is the zero-length chain, the initial state of a bucket that
// has never been appended to.
var Empty = Chain{}

// Len returns the number of blobs in the chain.
func (c Chain) Len() int { return len(c.blobs) }

// Blobs returns the chain's blobs, oldest first. The returned slice must
// not be mutated by the caller.
func (c Chain) Blobs() [][]byte { return c.blobs }

// Append returns a new Chain with blob appended after the receiver's
// blobs. Used client-side to reason about "the chain as it will look
// after my append lands" (e.g. when building a replaceAtHead proposal);
// never used to mutate server state directly.
func (c Chain) Append(blob []byte) Chain {
	out := make([][]byte, len(c.blobs)+1)
	copy(out, c.blobs)
	out[len(c.blobs)] = blob
	return Chain{blobs: out}
}

// HasPrefix reports whether prefix's blobs are byte-for-byte equal to
// the receiver's first len(prefix) blobs. The entity server uses this
// (or an equivalent) to decide whether a replaceAtHead proposal still
// applies (spec §4.6).
func (c Chain) HasPrefix(prefix Chain) bool {
	if len(prefix.blobs) > len(c.blobs) {
		return false
	}
	for i, b := range prefix.blobs {
		if !bytes.Equal(b, c.blobs[i]) {
			return false
		}
	}
	return true
}

// ReplacePrefix returns a new chain with the receiver's first
// len(prefix) blobs replaced by replacement's blobs, keeping the
// remaining (newer) suffix untouched. The caller must have already
// checked HasPrefix.
func (c Chain) ReplacePrefix(prefixLen int, replacement Chain) Chain {
	suffix := c.blobs[prefixLen:]
	out := make([][]byte, 0, len(replacement.blobs)+len(suffix))
	out = append(out, replacement.blobs...)
	out = append(out, suffix...)
	return Chain{blobs: out}
}

// DecodedOp pairs a decoded Operation with its position in the chain,
// for diagnostics when decoding stops early.
type DecodedOp struct {
	Index int
	Op    types.Operation
}

// Decode decodes every blob in the chain, oldest first, stopping at the
// first malformed blob. It returns the operations decoded so far along
// with the error that stopped it (nil if the whole chain decoded).
func (c Chain) Decode() ([]DecodedOp, error) {
	out := make([]DecodedOp, 0, len(c.blobs))
	for i, b := range c.blobs {
		op, err := codec.Decode(b)
		if err != nil {
			return out, fmt.Errorf("chain: blob %d: %w", i, err)
		}
		out = append(out, DecodedOp{Index: i, Op: op})
	}
	return out, nil
}
