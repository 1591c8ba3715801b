// Package cache implements the named logical cache facade that the
// clustered operation pipeline serves (SPEC_FULL Part D): a tiered
// local store (heap LRU, then disk bbolt) in front of the clustered
// tier (pkg/proxy), the same three-tier shape spec.md §1 describes at
// the interface level while leaving the tiers themselves out of scope.
package cache

import (
	"fmt"

	"github.com/cuemby/chainkv/pkg/events"
	"github.com/cuemby/chainkv/pkg/metrics"
	"github.com/cuemby/chainkv/pkg/proxy"
	"github.com/cuemby/chainkv/pkg/types"
)

const (
	tierHeap      = "heap"
	tierDisk      = "disk"
	tierClustered = "clustered"
)

// Config configures a Cache's local tiers.
type Config struct {
	Alias       string
	HeapSize    int    // number of entries the heap tier holds; 0 disables it
	DiskPath    string // bbolt file path for the disk tier; "" disables it
	Proxy       *proxy.ServerStoreProxy
	EventBroker *events.Broker
}

// Cache is one named logical cache: heap tier -> disk tier -> clustered
// tier, with a server-confirmed mutation invalidating (updating) the
// local tiers rather than leaving them stale.
type Cache struct {
	alias  string
	heap   *heapTier
	disk   *diskTier
	proxy  *proxy.ServerStoreProxy
	broker *events.Broker
}

// New builds a Cache from cfg. Either local tier may be nil'd out by
// leaving its size/path zero.
func New(cfg Config) (*Cache, error) {
	c := &Cache{alias: cfg.Alias, proxy: cfg.Proxy, broker: cfg.EventBroker}

	if cfg.HeapSize > 0 {
		h, err := newHeapTier(cfg.HeapSize)
		if err != nil {
			return nil, fmt.Errorf("cache: %s: heap tier: %w", cfg.Alias, err)
		}
		c.heap = h
	}
	if cfg.DiskPath != "" {
		d, err := newDiskTier(cfg.DiskPath)
		if err != nil {
			return nil, fmt.Errorf("cache: %s: disk tier: %w", cfg.Alias, err)
		}
		c.disk = d
	}
	return c, nil
}

// Get resolves key's value, checking the heap tier, then the disk
// tier, then the clustered tier, populating faster tiers on a hit
// from a slower one.
func (c *Cache) Get(key []byte) ([]byte, bool, error) {
	sk := string(key)

	if c.heap != nil {
		if v, ok := c.heap.get(sk); ok {
			metrics.TierHitsTotal.WithLabelValues(c.alias, tierHeap).Inc()
			return v, true, nil
		}
		metrics.TierMissesTotal.WithLabelValues(c.alias, tierHeap).Inc()
	}

	if c.disk != nil {
		v, ok, err := c.disk.get(key)
		if err != nil {
			return nil, false, fmt.Errorf("cache: %s: disk get: %w", c.alias, err)
		}
		if ok {
			metrics.TierHitsTotal.WithLabelValues(c.alias, tierDisk).Inc()
			c.populateFaster(tierDisk, sk, key, v)
			return v, true, nil
		}
		metrics.TierMissesTotal.WithLabelValues(c.alias, tierDisk).Inc()
	}

	v, present, err := c.proxy.Get(key)
	if err != nil {
		return nil, false, fmt.Errorf("cache: %s: clustered get: %w", c.alias, err)
	}
	if present {
		metrics.TierHitsTotal.WithLabelValues(c.alias, tierClustered).Inc()
		c.populateFaster(tierClustered, sk, key, v)
		return v, true, nil
	}
	metrics.TierMissesTotal.WithLabelValues(c.alias, tierClustered).Inc()
	return nil, false, nil
}

// populateFaster writes a value found at foundAt into every tier
// faster than it.
func (c *Cache) populateFaster(foundAt, sk string, key, value []byte) {
	if foundAt == tierClustered && c.disk != nil {
		_ = c.disk.put(key, value)
	}
	if c.heap != nil {
		c.heap.put(sk, value)
	}
}

func (c *Cache) setLocal(key, value []byte) {
	sk := string(key)
	if c.heap != nil {
		c.heap.put(sk, value)
	}
	if c.disk != nil {
		_ = c.disk.put(key, value)
	}
}

func (c *Cache) clearLocal(key []byte) {
	sk := string(key)
	if c.heap != nil {
		c.heap.remove(sk)
	}
	if c.disk != nil {
		_ = c.disk.remove(key)
	}
}

func (c *Cache) publish(evType events.EventType, tier string, key []byte) {
	if c.broker == nil {
		return
	}
	c.broker.Publish(&events.Event{Type: evType, Alias: c.alias, Tier: tier, Key: key})
}

// Put unconditionally installs value for key, clustered-tier first,
// then brings the local tiers up to date.
func (c *Cache) Put(key, value []byte) error {
	if err := c.proxy.Put(key, value); err != nil {
		return fmt.Errorf("cache: %s: put: %w", c.alias, err)
	}
	c.setLocal(key, value)
	c.publish(events.EventMappingUpdated, tierClustered, key)
	return nil
}

// Remove unconditionally removes key's mapping everywhere.
func (c *Cache) Remove(key []byte) error {
	if err := c.proxy.Remove(key); err != nil {
		return fmt.Errorf("cache: %s: remove: %w", c.alias, err)
	}
	c.clearLocal(key)
	c.publish(events.EventMappingRemoved, tierClustered, key)
	return nil
}

// PutIfAbsent installs value for key only if currently absent. The
// local tiers always end up holding whatever value is now current
// (the caller's, if the install succeeded; the one already there,
// otherwise).
func (c *Cache) PutIfAbsent(key, value []byte) (prev []byte, present bool, err error) {
	prev, present, err = c.proxy.PutIfAbsent(key, value)
	if err != nil {
		return nil, false, fmt.Errorf("cache: %s: put-if-absent: %w", c.alias, err)
	}
	if !present {
		c.setLocal(key, value)
		c.publish(events.EventMappingCreated, tierClustered, key)
		return nil, false, nil
	}
	c.setLocal(key, prev)
	return prev, true, nil
}

// Replace installs value for key only if a mapping is currently
// present, returning the value that was there before the call.
func (c *Cache) Replace(key, value []byte) (prev []byte, present bool, err error) {
	prev, present, err = c.proxy.Replace(key, value)
	if err != nil {
		return nil, false, fmt.Errorf("cache: %s: replace: %w", c.alias, err)
	}
	if present {
		c.setLocal(key, value)
		c.publish(events.EventMappingUpdated, tierClustered, key)
	}
	return prev, present, nil
}

// ReplaceConditional installs newValue for key only if its current
// value equals oldValue.
func (c *Cache) ReplaceConditional(key, oldValue, newValue []byte) (applied bool, err error) {
	applied, err = c.proxy.ReplaceConditional(key, oldValue, newValue)
	if err != nil {
		return false, fmt.Errorf("cache: %s: replace-conditional: %w", c.alias, err)
	}
	if applied {
		c.setLocal(key, newValue)
		c.publish(events.EventMappingUpdated, tierClustered, key)
	}
	return applied, nil
}

// BulkCompute applies fn(key)'s operation to each key independently,
// then invalidates the local tiers for every key touched so the next
// Get re-populates them from the clustered tier's now-current state.
func (c *Cache) BulkCompute(keys [][]byte, fn func(key []byte) types.Operation) (map[string]proxy.ComputeResult, error) {
	results, err := c.proxy.BulkCompute(keys, fn)
	if err != nil {
		return nil, fmt.Errorf("cache: %s: bulk compute: %w", c.alias, err)
	}
	for _, key := range keys {
		c.clearLocal(key)
	}
	return results, nil
}

// Close releases the local tiers' resources.
func (c *Cache) Close() error {
	if c.disk != nil {
		return c.disk.close()
	}
	return nil
}
