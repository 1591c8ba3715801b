/*
Package metrics defines and registers the cluster's Prometheus
metrics, and exposes the /health, /ready, and /live HTTP handlers.

# Metrics

Cache state:

	chainkv_caches_total
	chainkv_buckets_total{alias}
	chainkv_chain_length{alias}

Raft:

	chainkv_raft_is_leader
	chainkv_raft_peers_total
	chainkv_raft_log_index
	chainkv_raft_applied_index
	chainkv_raft_apply_duration_seconds

Entity transport:

	chainkv_entity_requests_total{command, status}
	chainkv_entity_request_duration_seconds{command}
	chainkv_appends_total{alias}

Compaction and local tiers:

	chainkv_compactions_total{alias, outcome}
	chainkv_compaction_duration_seconds
	chainkv_tier_hits_total{alias, tier}
	chainkv_tier_misses_total{alias, tier}

# Usage

	import "github.com/cuemby/chainkv/pkg/metrics"

	timer := metrics.NewTimer()
	// ... do work ...
	timer.ObserveDurationVec(metrics.EntityRequestDuration, "get")

	http.Handle("/metrics", metrics.Handler())
	http.HandleFunc("/health", metrics.HealthHandler())
	http.HandleFunc("/ready", metrics.ReadyHandler())
	http.HandleFunc("/live", metrics.LivenessHandler())

# Health and readiness

RegisterComponent/UpdateComponent track named components ("raft",
"entity_store", ...). /ready reports not_ready until every critical
component has been registered healthy.
*/
package metrics
