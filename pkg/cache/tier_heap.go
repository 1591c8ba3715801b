package cache

import (
	lru "github.com/hashicorp/golang-lru"
)

// heapTier is the in-process bounded LRU in front of the clustered
// store (SPEC_FULL Part C.3): the fastest of the three tiers, and the
// first one every Get checks.
type heapTier struct {
	c *lru.Cache
}

func newHeapTier(size int) (*heapTier, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &heapTier{c: c}, nil
}

func (h *heapTier) get(key string) ([]byte, bool) {
	v, ok := h.c.Get(key)
	if !ok {
		return nil, false
	}
	return v.([]byte), true
}

func (h *heapTier) put(key string, value []byte) {
	h.c.Add(key, value)
}

func (h *heapTier) remove(key string) {
	h.c.Remove(key)
}

func (h *heapTier) purge() {
	h.c.Purge()
}
