package chain_test

import (
	"testing"

	"github.com/cuemby/chainkv/pkg/chain"
	"github.com/cuemby/chainkv/pkg/codec"
	"github.com/cuemby/chainkv/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendDoesNotMutateReceiver(t *testing.T) {
	c := chain.New([][]byte{[]byte("a")})
	c2 := c.Append([]byte("b"))

	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 2, c2.Len())
}

func TestHasPrefixAndReplacePrefix(t *testing.T) {
	b0 := codec.Encode(types.Put([]byte("k"), []byte("0"), 1))
	b1 := codec.Encode(types.Put([]byte("k"), []byte("1"), 2))
	b2 := codec.Encode(types.Remove([]byte("k"), 3))
	full := chain.New([][]byte{b0, b1, b2})

	prefix := chain.New([][]byte{b0, b1})
	assert.True(t, full.HasPrefix(prefix))

	wrongPrefix := chain.New([][]byte{b1})
	assert.False(t, full.HasPrefix(wrongPrefix))

	compacted := chain.New([][]byte{codec.Encode(types.Put([]byte("k"), []byte("1"), 2))})
	replaced := full.ReplacePrefix(prefix.Len(), compacted)
	assert.Equal(t, 2, replaced.Len())
}

func TestDecodeStopsAtFirstMalformedBlob(t *testing.T) {
	good := codec.Encode(types.Put([]byte("k"), []byte("0"), 1))
	bad := []byte{42}
	c := chain.New([][]byte{good, bad})

	ops, err := c.Decode()
	require.Error(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, types.OpPut, ops[0].Op.Code)
}
