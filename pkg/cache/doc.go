/*
Package cache provides Cache, the named logical cache a caller
actually holds: Get/Put/Remove/PutIfAbsent/Replace/ReplaceConditional/
BulkCompute over three tiers, fastest first.

	heap (hashicorp/golang-lru)  ->  disk (bbolt)  ->  clustered (pkg/proxy)

A confirmed clustered-tier mutation updates (or invalidates) the faster
tiers rather than leaving them stale; a read populates faster tiers on
a hit from a slower one. Both local tiers are optional: a zero
Config.HeapSize or empty Config.DiskPath disables the corresponding
tier, falling straight through to the next one.
*/
package cache
