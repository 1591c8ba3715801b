package types

import "errors"

// Error taxonomy for the clustered store pipeline (spec §7). These are
// sentinel values rather than a package hierarchy, matched with
// errors.Is by callers that need to distinguish outcome-unknown
// (ErrTimeout) from fatal errors.
var (
	// ErrMalformedOperation is returned by the codec when a blob cannot
	// be decoded: unknown opcode, truncated payload, or an over-length
	// prefix. The codec treats keys and values as opaque bytes and runs
	// no key/value serializer.
	ErrMalformedOperation = errors.New("chainkv: malformed operation")

	// ErrSerialization is surfaced untranslated from a caller-supplied
	// key/value serializer.
	ErrSerialization = errors.New("chainkv: serialization error")

	// ErrTimeout means the round trip exceeded its deadline. For a
	// mutating call the outcome is unknown: the blob may have reached
	// the server and been appended. Callers MUST treat at-most-once as
	// violated until a subsequent Get clarifies.
	ErrTimeout = errors.New("chainkv: operation timed out")

	// ErrEntityUnavailable means the endpoint is closed or the store
	// alias is unknown to it. Fatal for the call.
	ErrEntityUnavailable = errors.New("chainkv: entity unavailable")

	// ErrUnsupportedOpcode is returned when an older server receives an
	// opcode it doesn't understand (status 2 in the §6.2 response).
	ErrUnsupportedOpcode = errors.New("chainkv: unsupported opcode")
)
