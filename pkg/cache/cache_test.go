package cache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/chainkv/pkg/chain"
	"github.com/cuemby/chainkv/pkg/events"
	"github.com/cuemby/chainkv/pkg/proxy"
	"github.com/cuemby/chainkv/pkg/store"
	"github.com/cuemby/chainkv/pkg/types"
)

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

func newTestCache(t *testing.T, heapSize int, withDisk bool) *Cache {
	t.Helper()
	p := proxy.NewServerStoreProxy("sessions", &localEntity{s: store.NewMemStore()})

	cfg := Config{Alias: "sessions", HeapSize: heapSize, Proxy: p, EventBroker: events.NewBroker()}
	cfg.EventBroker.Start()
	t.Cleanup(cfg.EventBroker.Stop)

	if withDisk {
		cfg.DiskPath = filepath.Join(t.TempDir(), "disk.db")
	}

	c, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCachePutGetThroughHeap(t *testing.T) {
	c := newTestCache(t, 16, false)

	require.NoError(t, c.Put([]byte("k"), []byte("v1")))

	value, present, err := c.Get([]byte("k"))
	require.NoError(t, err)
	require.True(t, present)
	require.Equal(t, []byte("v1"), value)
}

func TestCacheGetPopulatesHeapFromClustered(t *testing.T) {
	c := newTestCache(t, 16, false)
	require.NoError(t, c.proxy.Put([]byte("k"), []byte("server-value")))

	value, present, err := c.Get([]byte("k"))
	require.NoError(t, err)
	require.True(t, present)
	require.Equal(t, []byte("server-value"), value)

	cached, ok := c.heap.get("k")
	require.True(t, ok)
	require.Equal(t, []byte("server-value"), cached)
}

func TestCacheRemoveInvalidatesLocalTiers(t *testing.T) {
	c := newTestCache(t, 16, true)
	require.NoError(t, c.Put([]byte("k"), []byte("v1")))
	require.NoError(t, c.Remove([]byte("k")))

	_, present, err := c.Get([]byte("k"))
	require.NoError(t, err)
	require.False(t, present)
}

func TestCachePutIfAbsent(t *testing.T) {
	c := newTestCache(t, 16, false)

	prev, present, err := c.PutIfAbsent([]byte("k"), []byte("v1"))
	require.NoError(t, err)
	require.False(t, present)
	require.Nil(t, prev)

	prev, present, err = c.PutIfAbsent([]byte("k"), []byte("v2"))
	require.NoError(t, err)
	require.True(t, present)
	require.Equal(t, []byte("v1"), prev)
}

func TestCacheBulkCompute(t *testing.T) {
	c := newTestCache(t, 16, false)
	keys := [][]byte{[]byte("a"), []byte("b")}

	_, err := c.BulkCompute(keys, func(key []byte) types.Operation {
		return types.Put(key, []byte("v"), 1)
	})
	require.NoError(t, err)

	value, present, err := c.Get([]byte("a"))
	require.NoError(t, err)
	require.True(t, present)
	require.Equal(t, []byte("v"), value)
}
