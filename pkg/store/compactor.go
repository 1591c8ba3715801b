package store

import (
	"time"

	"github.com/cuemby/chainkv/pkg/log"
	"github.com/cuemby/chainkv/pkg/resolver"
	"github.com/cuemby/chainkv/pkg/types"
	"github.com/rs/zerolog"
)

// BucketLister is implemented by both BoltStore and MemStore; it lets
// the compactor enumerate candidate buckets without widening the Store
// interface with a method every future Store implementation would have
// to carry.
type BucketLister interface {
	Buckets() []types.KeyHash
}

// Compactor periodically proposes replaceAtHead (spec §4.6) for buckets
// whose chain has grown past Threshold blobs. It never blocks a
// foreground append: a proposal that loses the race against a
// concurrent append is silently ignored by Store.ReplaceAtHead, and the
// compactor just retries next tick.
type Compactor struct {
	Store     Store
	Lister    BucketLister
	Threshold int
	Interval  time.Duration

	stopCh chan struct{}
	logger zerolog.Logger
}

// NewCompactor builds a Compactor with the given thresholds. Call Start
// to begin the background loop.
func NewCompactor(s Store, lister BucketLister, threshold int, interval time.Duration) *Compactor {
	return &Compactor{
		Store:     s,
		Lister:    lister,
		Threshold: threshold,
		Interval:  interval,
		stopCh:    make(chan struct{}),
		logger:    log.WithComponent("compactor"),
	}
}

// Start begins the compaction loop in a new goroutine.
func (c *Compactor) Start() {
	ticker := time.NewTicker(c.Interval)
	go func() {
		for {
			select {
			case <-ticker.C:
				c.runOnce()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop ends the compaction loop.
func (c *Compactor) Stop() {
	close(c.stopCh)
}

func (c *Compactor) runOnce() {
	for _, h := range c.Lister.Buckets() {
		if err := c.compactOne(h); err != nil {
			c.logger.Warn().Uint64("bucket", uint64(h)).Err(err).Msg("compaction attempt failed")
		}
	}
}

func (c *Compactor) compactOne(h types.KeyHash) error {
	current, err := c.Store.Get(h)
	if err != nil {
		return err
	}
	if current.Len() <= c.Threshold {
		return nil
	}

	compacted, err := resolver.Compact(current)
	if err != nil {
		return err
	}
	if compacted.Len() >= current.Len() {
		return nil // compaction wouldn't shrink this chain; nothing to propose
	}

	applied, err := c.Store.ReplaceAtHead(h, current, compacted)
	if err != nil {
		return err
	}
	if applied {
		c.logger.Debug().
			Uint64("bucket", uint64(h)).
			Int("before", current.Len()).
			Int("after", compacted.Len()).
			Msg("bucket compacted")
	}
	return nil
}
