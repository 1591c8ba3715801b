package manager

import (
	"strconv"
	"time"

	"github.com/cuemby/chainkv/pkg/metrics"
)

// MetricsCollector periodically samples the manager's cluster state
// into the package-level Prometheus metrics.
type MetricsCollector struct {
	manager *Manager
	stopCh  chan struct{}
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(mgr *Manager) *MetricsCollector {
	return &MetricsCollector{
		manager: mgr,
		stopCh:  make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *MetricsCollector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *MetricsCollector) Stop() {
	close(c.stopCh)
}

func (c *MetricsCollector) collect() {
	c.collectCacheMetrics()
	c.collectRaftMetrics()
}

func (c *MetricsCollector) collectCacheMetrics() {
	caches, err := c.manager.assignments.ListCaches()
	if err != nil {
		return
	}
	metrics.CachesTotal.Set(float64(len(caches)))

	assignments, err := c.manager.assignments.ListAssignments()
	if err != nil {
		return
	}
	for _, a := range assignments {
		metrics.BucketsTotal.WithLabelValues(a.Alias).Set(1)
	}
}

func (c *MetricsCollector) collectRaftMetrics() {
	if c.manager.IsLeader() {
		metrics.RaftLeader.Set(1)
	} else {
		metrics.RaftLeader.Set(0)
	}

	if c.manager.raft == nil {
		return
	}

	stats := c.manager.raft.Stats()
	if v, ok := stats["last_log_index"]; ok {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			metrics.RaftLogIndex.Set(float64(n))
		}
	}
	if v, ok := stats["applied_index"]; ok {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			metrics.RaftAppliedIndex.Set(float64(n))
		}
	}
	if v, ok := stats["num_peers"]; ok {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			// num_peers excludes the local node.
			metrics.RaftPeers.Set(float64(n) + 1)
		}
	}
}
