package resolver_test

import (
	"testing"

	"github.com/cuemby/chainkv/pkg/chain"
	"github.com/cuemby/chainkv/pkg/codec"
	"github.com/cuemby/chainkv/pkg/resolver"
	"github.com/cuemby/chainkv/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blobsFor(ops ...types.Operation) [][]byte {
	out := make([][]byte, len(ops))
	for i, op := range ops {
		out[i] = codec.Encode(op)
	}
	return out
}

// S6 — compaction invariance.
func TestCompactionInvariance(t *testing.T) {
	key := []byte("a")
	c := chain.New(blobsFor(
		types.Put(key, []byte("0"), 1),
		types.Put(key, []byte("1"), 2),
		types.Remove(key, 3),
		types.Put(key, []byte("2"), 4),
	))

	value, present, err := resolver.Resolve(c, key)
	require.NoError(t, err)
	require.True(t, present)
	assert.Equal(t, []byte("2"), value)

	compacted, err := resolver.Compact(c)
	require.NoError(t, err)
	assert.Equal(t, 1, compacted.Len())

	value2, present2, err := resolver.Resolve(compacted, key)
	require.NoError(t, err)
	require.True(t, present2)
	assert.Equal(t, value, value2)
}

func TestCompactionDropsRemovedKeys(t *testing.T) {
	a, b := []byte("a"), []byte("b")
	c := chain.New(blobsFor(
		types.Put(a, []byte("1"), 1),
		types.Put(b, []byte("2"), 2),
		types.Remove(a, 3),
	))

	compacted, err := resolver.Compact(c)
	require.NoError(t, err)
	require.Equal(t, 1, compacted.Len())

	_, present, err := resolver.Resolve(compacted, a)
	require.NoError(t, err)
	assert.False(t, present)

	value, present, err := resolver.Resolve(compacted, b)
	require.NoError(t, err)
	require.True(t, present)
	assert.Equal(t, []byte("2"), value)
}

// Fold locality: operations on a different key never influence the
// target key's resolved value.
func TestFoldLocality(t *testing.T) {
	k, other := []byte("k"), []byte("other")
	c := chain.New(blobsFor(
		types.Put(k, []byte("1"), 1),
		types.Put(other, []byte("zzz"), 2),
		types.Remove(other, 3),
		types.PutIfAbsent(other, []byte("yyy"), 4),
	))

	value, present, err := resolver.Resolve(c, k)
	require.NoError(t, err)
	require.True(t, present)
	assert.Equal(t, []byte("1"), value)
}

// Hash-collision safety: two distinct keys sharing a bucket resolve
// independently regardless of interleaving.
func TestHashCollisionSafety(t *testing.T) {
	k1, k2 := []byte("k1"), []byte("k2")
	c := chain.New(blobsFor(
		types.Put(k1, []byte("a0"), 1),
		types.Put(k2, []byte("b0"), 2),
		types.Remove(k1, 3),
		types.Put(k2, []byte("b1"), 4),
		types.PutIfAbsent(k1, []byte("a1"), 5),
	))

	v1, p1, err := resolver.Resolve(c, k1)
	require.NoError(t, err)
	require.True(t, p1)
	assert.Equal(t, []byte("a1"), v1)

	v2, p2, err := resolver.Resolve(c, k2)
	require.NoError(t, err)
	require.True(t, p2)
	assert.Equal(t, []byte("b1"), v2)
}

func TestResolveStopsAtMalformedBlob(t *testing.T) {
	c := chain.New([][]byte{codec.Encode(types.Put([]byte("k"), []byte("0"), 1)), {0xFF}})
	_, _, err := resolver.Resolve(c, []byte("k"))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrUnsupportedOpcode)
}

func TestResolveEmptyChain(t *testing.T) {
	_, present, err := resolver.Resolve(chain.Empty, []byte("k"))
	require.NoError(t, err)
	assert.False(t, present)
}
