/*
Package chain holds the Chain type: an immutable, ordered sequence of
operation blobs for one KeyHash bucket (spec §3, §4.3).

A Chain never mutates in place. The entity server may return a new
Chain after compaction; pkg/resolver's compaction-equivalence property
guarantees that resolving any key through the old or the new chain gives
the same answer. Chain itself knows nothing about resolution — that
fold lives in pkg/resolver — it only orders, appends, and decodes blobs.
*/
package chain
