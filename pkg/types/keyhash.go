package types

import "github.com/cespare/xxhash/v2"

// HashKey computes the §6.3 KeyHash for a serialized key. xxhash is
// used unchanged by clients and the entity server; changing it is a wire
// break, so it is the one hash function this package exposes.
func HashKey(keyBytes []byte) KeyHash {
	return KeyHash(xxhash.Sum64(keyBytes))
}
