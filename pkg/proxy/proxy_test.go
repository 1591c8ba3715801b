package proxy

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/chainkv/pkg/chain"
	"github.com/cuemby/chainkv/pkg/store"
	"github.com/cuemby/chainkv/pkg/types"
)

// localEntity adapts a single store.Store (bypassing pkg/transport
// entirely) so the proxy's fold logic can be exercised without a real
// network connection.
type localEntity struct {
	s store.Store
}

func (l *localEntity) Get(alias string, hash types.KeyHash) (chain.Chain, error) {
	return l.s.Get(hash)
}

func (l *localEntity) GetAndAppend(alias string, hash types.KeyHash, blob []byte) (chain.Chain, error) {
	return l.s.GetAndAppend(hash, blob)
}

func (l *localEntity) ReplaceAtHead(alias string, hash types.KeyHash, prefix, replacement chain.Chain) (bool, error) {
	return l.s.ReplaceAtHead(hash, prefix, replacement)
}

func (l *localEntity) Clear(alias string) error {
	return l.s.Clear()
}

func newTestProxy() *ServerStoreProxy {
	return NewServerStoreProxy("sessions", &localEntity{s: store.NewMemStore()})
}

func TestProxyPutGet(t *testing.T) {
	p := newTestProxy()
	require.NoError(t, p.Put([]byte("user:1"), []byte("alice")))

	value, present, err := p.Get([]byte("user:1"))
	require.NoError(t, err)
	require.True(t, present)
	require.Equal(t, []byte("alice"), value)
}

func TestProxyRemove(t *testing.T) {
	p := newTestProxy()
	require.NoError(t, p.Put([]byte("user:1"), []byte("alice")))
	require.NoError(t, p.Remove([]byte("user:1")))

	_, present, err := p.Get([]byte("user:1"))
	require.NoError(t, err)
	require.False(t, present)
}

func TestProxyPutIfAbsent(t *testing.T) {
	p := newTestProxy()

	prev, present, err := p.PutIfAbsent([]byte("k"), []byte("v1"))
	require.NoError(t, err)
	require.False(t, present)
	require.Nil(t, prev)

	prev, present, err = p.PutIfAbsent([]byte("k"), []byte("v2"))
	require.NoError(t, err)
	require.True(t, present)
	require.Equal(t, []byte("v1"), prev)

	value, _, _ := p.Get([]byte("k"))
	require.Equal(t, []byte("v1"), value, "second install must not have taken effect")
}

func TestProxyReplace(t *testing.T) {
	p := newTestProxy()

	_, present, err := p.Replace([]byte("k"), []byte("v1"))
	require.NoError(t, err)
	require.False(t, present, "replace on an absent key is a no-op")

	_, present, _ = p.Get([]byte("k"))
	require.False(t, present, "absent replace must not install a value")

	require.NoError(t, p.Put([]byte("k"), []byte("v1")))
	prev, present, err := p.Replace([]byte("k"), []byte("v2"))
	require.NoError(t, err)
	require.True(t, present)
	require.Equal(t, []byte("v1"), prev)

	value, _, _ := p.Get([]byte("k"))
	require.Equal(t, []byte("v2"), value)
}

func TestProxyReplaceConditional(t *testing.T) {
	p := newTestProxy()
	require.NoError(t, p.Put([]byte("k"), []byte("v1")))

	applied, err := p.ReplaceConditional([]byte("k"), []byte("wrong"), []byte("v2"))
	require.NoError(t, err)
	require.False(t, applied)

	applied, err = p.ReplaceConditional([]byte("k"), []byte("v1"), []byte("v2"))
	require.NoError(t, err)
	require.True(t, applied)

	value, _, _ := p.Get([]byte("k"))
	require.Equal(t, []byte("v2"), value)
}

func TestProxyBulkCompute(t *testing.T) {
	p := newTestProxy()
	keys := [][]byte{[]byte("a"), []byte("b")}

	results, err := p.BulkCompute(keys, func(key []byte) types.Operation {
		return types.Put(key, []byte("v-"+string(key)), timestamp())
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.False(t, results["a"].Present)

	value, present, err := p.Get([]byte("a"))
	require.NoError(t, err)
	require.True(t, present)
	require.Equal(t, []byte("v-a"), value)
}
