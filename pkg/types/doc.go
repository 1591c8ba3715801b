/*
Package types defines the closed Operation sum type, the KeyHash function,
and the error taxonomy that every other chainkv package builds on.

# Operation model

An Operation is a tagged variant: Code selects PUT, REMOVE,
PUT_IF_ABSENT, REPLACE, or REPLACE_CONDITIONAL, and the remaining fields
carry that variant's payload. Operation.Apply implements the fold step
used by pkg/resolver:

	op := types.Put(key, value, ts)
	next, present := op.Apply(prev, prevPresent)

Apply is pure, total, and deterministic — every observer that folds the
same chain for the same key reaches the same answer, which is what lets
conditional operations (PUT_IF_ABSENT, REPLACE, REPLACE_CONDITIONAL) be
correct without any server-side interpretation of the blob.

# KeyHash

HashKey derives the 64-bit bucket index a key maps to. Clients and the
entity server must agree on it bit-for-bit; it is implemented once, here,
on top of xxhash so that agreement is structural rather than by
convention.

# Errors

The five sentinel errors mirror spec §7's error kinds. pkg/codec returns
ErrMalformedOperation, pkg/transport returns ErrEntityUnavailable and
ErrTimeout, and callers of pkg/proxy are expected to errors.Is against
these rather than match on string content.
*/
package types
