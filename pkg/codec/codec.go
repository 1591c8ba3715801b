// Package codec implements the bidirectional mapping between an
// Operation and its length-prefixed binary blob (spec §4.2, §6.1).
package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/cuemby/chainkv/pkg/types"
)

// decoder turns a payload (the bytes after the opcode byte) into an
// Operation. Dispatch is table-driven on the opcode so that adding a
// variant never requires touching pkg/chain or pkg/resolver.
type decoder func(payload []byte) (types.Operation, error)

var decoders = map[types.Opcode]decoder{
	types.OpPut:               decodePut,
	types.OpRemove:            decodeRemove,
	types.OpPutIfAbsent:       decodePutIfAbsent,
	types.OpReplace:           decodeReplace,
	types.OpReplaceConditional: decodeReplaceConditional,
}

// Encode renders op as opcode:u8 followed by its opcode-specific
// payload. Encode is total: it never fails for a well-formed Operation
// value (one built through types.Put/Remove/... or decoded by Decode).
func Encode(op types.Operation) []byte {
	switch op.Code {
	case types.OpRemove:
		buf := make([]byte, 0, 1+8+4+len(op.Key))
		buf = append(buf, byte(op.Code))
		buf = appendU64(buf, op.Timestamp)
		buf = appendBytes(buf, op.Key)
		return buf
	case types.OpReplaceConditional:
		buf := make([]byte, 0, 1+8+4+len(op.Key)+4+len(op.OldValue)+4+len(op.Value))
		buf = append(buf, byte(op.Code))
		buf = appendU64(buf, op.Timestamp)
		buf = appendBytes(buf, op.Key)
		buf = appendBytes(buf, op.OldValue)
		buf = appendBytes(buf, op.Value)
		return buf
	default: // PUT, PUT_IF_ABSENT, REPLACE share a layout
		buf := make([]byte, 0, 1+8+4+len(op.Key)+4+len(op.Value))
		buf = append(buf, byte(op.Code))
		buf = appendU64(buf, op.Timestamp)
		buf = appendBytes(buf, op.Key)
		buf = appendBytes(buf, op.Value)
		return buf
	}
}

// Decode parses a single blob back into an Operation. It fails with
// types.ErrMalformedOperation for an unknown opcode, a truncated
// payload, or a length prefix that exceeds the remaining bytes; the
// error for an unknown opcode also matches types.ErrUnsupportedOpcode.
func Decode(blob []byte) (types.Operation, error) {
	if len(blob) < 1 {
		return types.Operation{}, fmt.Errorf("%w: empty blob", types.ErrMalformedOperation)
	}
	code := types.Opcode(blob[0])
	dec, ok := decoders[code]
	if !ok {
		return types.Operation{}, fmt.Errorf("%w: %w: opcode %d", types.ErrMalformedOperation, types.ErrUnsupportedOpcode, code)
	}
	op, err := dec(blob[1:])
	if err != nil {
		return types.Operation{}, err
	}
	op.Code = code
	return op, nil
}

func decodePut(p []byte) (types.Operation, error) {
	ts, rest, err := readU64(p)
	if err != nil {
		return types.Operation{}, err
	}
	key, rest, err := readBytes(rest)
	if err != nil {
		return types.Operation{}, err
	}
	val, _, err := readBytes(rest)
	if err != nil {
		return types.Operation{}, err
	}
	return types.Operation{Key: key, Value: val, Timestamp: ts}, nil
}

var decodePutIfAbsent = decodePut
var decodeReplace = decodePut

func decodeRemove(p []byte) (types.Operation, error) {
	ts, rest, err := readU64(p)
	if err != nil {
		return types.Operation{}, err
	}
	key, _, err := readBytes(rest)
	if err != nil {
		return types.Operation{}, err
	}
	return types.Operation{Key: key, Timestamp: ts}, nil
}

func decodeReplaceConditional(p []byte) (types.Operation, error) {
	ts, rest, err := readU64(p)
	if err != nil {
		return types.Operation{}, err
	}
	key, rest, err := readBytes(rest)
	if err != nil {
		return types.Operation{}, err
	}
	oldVal, rest, err := readBytes(rest)
	if err != nil {
		return types.Operation{}, err
	}
	newVal, _, err := readBytes(rest)
	if err != nil {
		return types.Operation{}, err
	}
	return types.Operation{Key: key, OldValue: oldVal, Value: newVal, Timestamp: ts}, nil
}

func appendU64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendBytes(buf []byte, b []byte) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(len(b)))
	buf = append(buf, tmp[:]...)
	return append(buf, b...)
}

func readU64(p []byte) (uint64, []byte, error) {
	if len(p) < 8 {
		return 0, nil, fmt.Errorf("%w: truncated timestamp", types.ErrMalformedOperation)
	}
	return binary.BigEndian.Uint64(p), p[8:], nil
}

func readBytes(p []byte) ([]byte, []byte, error) {
	if len(p) < 4 {
		return nil, nil, fmt.Errorf("%w: truncated length prefix", types.ErrMalformedOperation)
	}
	n := binary.BigEndian.Uint32(p)
	p = p[4:]
	if uint64(n) > uint64(len(p)) {
		return nil, nil, fmt.Errorf("%w: length prefix %d exceeds remaining %d bytes", types.ErrMalformedOperation, n, len(p))
	}
	out := make([]byte, n)
	copy(out, p[:n])
	return out, p[n:], nil
}
