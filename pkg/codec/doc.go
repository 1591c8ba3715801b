/*
Package codec implements the §6.1 wire format for operation blobs.

	blob := opcode:u8 payload

PUT, PUT_IF_ABSENT, and REPLACE share one payload layout
(ts:u64 keyLen:u32 key valLen:u32 val); REMOVE drops the value; and
REPLACE_CONDITIONAL adds a second length-prefixed value. Dispatch on
decode is a map keyed by opcode, not a type switch, so that a future
opcode is a registry entry rather than a change to every caller.

decode(encode(op)) == op for every value encode can produce; decode
fails with types.ErrMalformedOperation for anything truncated or
over-length and for an opcode byte the registry doesn't recognize; in
that last case the error also matches types.ErrUnsupportedOpcode.
*/
package codec
