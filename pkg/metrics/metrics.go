package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cluster metrics
	CachesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chainkv_caches_total",
			Help: "Total number of registered named caches",
		},
	)

	BucketsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chainkv_buckets_total",
			Help: "Bucket-ownership assignments recorded per cache alias (1 once the alias has an owning node)",
		},
		[]string{"alias"},
	)

	ChainLength = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chainkv_chain_length",
			Help:    "Number of operations in a bucket's chain when observed",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128},
		},
		[]string{"alias"},
	)

	// Raft metrics
	RaftLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chainkv_raft_is_leader",
			Help: "Whether this node is the Raft leader (1 = leader, 0 = follower)",
		},
	)

	RaftPeers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chainkv_raft_peers_total",
			Help: "Total number of Raft peers in the cluster",
		},
	)

	RaftLogIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chainkv_raft_log_index",
			Help: "Current Raft log index",
		},
	)

	RaftAppliedIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chainkv_raft_applied_index",
			Help: "Last applied Raft log index",
		},
	)

	RaftApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chainkv_raft_apply_duration_seconds",
			Help:    "Time taken to apply a Raft log entry in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Entity/transport metrics
	EntityRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainkv_entity_requests_total",
			Help: "Total number of entity requests by command and status",
		},
		[]string{"command", "status"},
	)

	EntityRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chainkv_entity_request_duration_seconds",
			Help:    "Entity request round-trip duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)

	AppendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainkv_appends_total",
			Help: "Total number of getAndAppend calls by cache alias",
		},
		[]string{"alias"},
	)

	// Compaction metrics
	CompactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainkv_compactions_total",
			Help: "Total number of bucket compactions attempted, by outcome",
		},
		[]string{"alias", "outcome"},
	)

	CompactionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chainkv_compaction_duration_seconds",
			Help:    "Time taken for a single bucket compaction pass in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Local cache tier metrics
	TierHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainkv_tier_hits_total",
			Help: "Total number of Get calls satisfied by a given local tier",
		},
		[]string{"alias", "tier"},
	)

	TierMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chainkv_tier_misses_total",
			Help: "Total number of Get calls that missed a given local tier",
		},
		[]string{"alias", "tier"},
	)
)

func init() {
	prometheus.MustRegister(CachesTotal)
	prometheus.MustRegister(BucketsTotal)
	prometheus.MustRegister(ChainLength)
	prometheus.MustRegister(RaftLeader)
	prometheus.MustRegister(RaftPeers)
	prometheus.MustRegister(RaftLogIndex)
	prometheus.MustRegister(RaftAppliedIndex)
	prometheus.MustRegister(RaftApplyDuration)
	prometheus.MustRegister(EntityRequestsTotal)
	prometheus.MustRegister(EntityRequestDuration)
	prometheus.MustRegister(AppendsTotal)
	prometheus.MustRegister(CompactionsTotal)
	prometheus.MustRegister(CompactionDuration)
	prometheus.MustRegister(TierHitsTotal)
	prometheus.MustRegister(TierMissesTotal)
}

// Handler returns the Prometheus HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer times an in-flight operation for later observation into a
// histogram.
type Timer struct {
	start time.Time
}

// NewTimer starts a Timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time into histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time into a label-scoped
// histogram vector.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the Timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
