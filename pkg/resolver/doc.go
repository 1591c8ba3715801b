/*
Package resolver is the fold at the heart of the clustered store: it
turns a Chain plus a key into that key's current value (spec §4.4).

	value, present, err := resolver.Resolve(c, key)

Resolve never throws for any reason other than a malformed blob; its
result is otherwise a pure function of the chain's bytes and the key.
Compact computes the equivalence-preserving shrink a bucket compactor
applies out-of-band — resolving any key against a chain or its
compaction must give the same answer (spec §8 property 3).
*/
package resolver
