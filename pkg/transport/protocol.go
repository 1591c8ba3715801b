// Package transport implements the entity message framing of spec §4.5
// and §6.2: the wire format client and entity server exchange to drive
// a Store (spec C7), plus a TCP client/server built on it. Framing
// style (one command byte, length-prefixed body, a pooled TCP
// connection per peer) follows hashicorp/raft's NetworkTransport, the
// one custom wire transport already in this module's dependency graph.
package transport

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/cuemby/chainkv/pkg/chain"
	"github.com/cuemby/chainkv/pkg/types"
)

// Command selects which Store primitive a request invokes. It is
// distinct from types.Opcode: Opcode discriminates an Operation inside
// an append payload, Command discriminates the RPC itself.
type Command uint8

const (
	CmdGet Command = iota + 1
	CmdGetAndAppend
	CmdReplaceAtHead
	CmdClear
)

// Status is the entity server's response status (spec §6.2).
type Status uint8

const (
	StatusOK                Status = 0
	StatusUnsupportedOpcode Status = 2
	StatusMalformed         Status = 1
	StatusUnavailable       Status = 3
)

// Request is one client→entity message: request := aliasLen:u16
// alias:utf8 command:u8 payload.
type Request struct {
	Alias   string
	Command Command
	Hash    types.KeyHash // CmdGet, CmdGetAndAppend, CmdReplaceAtHead
	Blob    []byte        // CmdGetAndAppend
	Prefix  chain.Chain   // CmdReplaceAtHead
	Replace chain.Chain   // CmdReplaceAtHead
}

// Response is one entity→client message: response := status:u8 [
// chainLen:u32 (blobLen:u32 blob:bytes)* | errLen:u32 err:utf8 ], with
// a trailing applied:u8 on every OK response (it carries
// CmdReplaceAtHead's boolean result and is 0 for the other commands).
type Response struct {
	Status  Status
	Chain   chain.Chain
	Applied bool
	Err     string
}

// WriteRequest encodes req to w.
func WriteRequest(w io.Writer, req Request) error {
	buf := make([]byte, 0, 64+len(req.Blob))
	buf = appendU16Str(buf, req.Alias)
	buf = append(buf, byte(req.Command))

	switch req.Command {
	case CmdGet:
		buf = appendU64(buf, uint64(req.Hash))
	case CmdGetAndAppend:
		buf = appendU64(buf, uint64(req.Hash))
		buf = appendU32Bytes(buf, req.Blob)
	case CmdReplaceAtHead:
		buf = appendU64(buf, uint64(req.Hash))
		buf = appendChain(buf, req.Prefix)
		buf = appendChain(buf, req.Replace)
	case CmdClear:
		// no payload
	default:
		return fmt.Errorf("transport: unknown command %d", req.Command)
	}

	return writeFrame(w, buf)
}

// ReadRequest decodes a Request previously written by WriteRequest.
func ReadRequest(r io.Reader) (Request, error) {
	buf, err := readFrame(r)
	if err != nil {
		return Request{}, err
	}

	alias, rest, err := readU16Str(buf)
	if err != nil {
		return Request{}, err
	}
	if len(rest) < 1 {
		return Request{}, fmt.Errorf("transport: truncated command byte")
	}
	cmd := Command(rest[0])
	rest = rest[1:]

	req := Request{Alias: alias, Command: cmd}
	switch cmd {
	case CmdGet:
		h, _, err := readU64(rest)
		if err != nil {
			return Request{}, err
		}
		req.Hash = types.KeyHash(h)
	case CmdGetAndAppend:
		h, rest, err := readU64(rest)
		if err != nil {
			return Request{}, err
		}
		blob, _, err := readU32Bytes(rest)
		if err != nil {
			return Request{}, err
		}
		req.Hash, req.Blob = types.KeyHash(h), blob
	case CmdReplaceAtHead:
		h, rest, err := readU64(rest)
		if err != nil {
			return Request{}, err
		}
		prefix, rest, err := readChain(rest)
		if err != nil {
			return Request{}, err
		}
		replace, _, err := readChain(rest)
		if err != nil {
			return Request{}, err
		}
		req.Hash, req.Prefix, req.Replace = types.KeyHash(h), prefix, replace
	case CmdClear:
		// no payload
	default:
		return Request{}, fmt.Errorf("transport: unknown command %d", cmd)
	}
	return req, nil
}

// WriteResponse encodes resp to w.
func WriteResponse(w io.Writer, resp Response) error {
	buf := []byte{byte(resp.Status)}
	if resp.Status != StatusOK {
		buf = appendU32Str(buf, resp.Err)
		return writeFrame(w, buf)
	}
	buf = appendChain(buf, resp.Chain)
	if resp.Applied {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	return writeFrame(w, buf)
}

// ReadResponse decodes a Response previously written by WriteResponse.
func ReadResponse(r io.Reader) (Response, error) {
	buf, err := readFrame(r)
	if err != nil {
		return Response{}, err
	}
	if len(buf) < 1 {
		return Response{}, fmt.Errorf("transport: empty response frame")
	}
	status := Status(buf[0])
	rest := buf[1:]

	if status != StatusOK {
		errStr, _, err := readU32Str(rest)
		if err != nil {
			return Response{}, err
		}
		return Response{Status: status, Err: errStr}, nil
	}

	c, rest, err := readChain(rest)
	if err != nil {
		return Response{}, err
	}
	applied := len(rest) > 0 && rest[0] == 1
	return Response{Status: status, Chain: c, Applied: applied}, nil
}

// --- framing primitives ---

func writeFrame(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("transport: write frame length: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("transport: write frame body: %w", err)
	}
	return nil
}

func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("transport: read frame length: %w", err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("transport: read frame body: %w", err)
	}
	return buf, nil
}

func appendU16Str(buf []byte, s string) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], uint16(len(s)))
	buf = append(buf, tmp[:]...)
	return append(buf, s...)
}

func readU16Str(buf []byte) (string, []byte, error) {
	if len(buf) < 2 {
		return "", nil, fmt.Errorf("transport: truncated alias length")
	}
	n := binary.BigEndian.Uint16(buf)
	buf = buf[2:]
	if int(n) > len(buf) {
		return "", nil, fmt.Errorf("transport: alias length %d exceeds remaining bytes", n)
	}
	return string(buf[:n]), buf[n:], nil
}

func appendU32Str(buf []byte, s string) []byte {
	return appendU32Bytes(buf, []byte(s))
}

func readU32Str(buf []byte) (string, []byte, error) {
	b, rest, err := readU32Bytes(buf)
	return string(b), rest, err
}

func appendU32Bytes(buf []byte, b []byte) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(len(b)))
	buf = append(buf, tmp[:]...)
	return append(buf, b...)
}

func readU32Bytes(buf []byte) ([]byte, []byte, error) {
	if len(buf) < 4 {
		return nil, nil, fmt.Errorf("transport: truncated length prefix")
	}
	n := binary.BigEndian.Uint32(buf)
	buf = buf[4:]
	if uint64(n) > uint64(len(buf)) {
		return nil, nil, fmt.Errorf("transport: length prefix %d exceeds remaining %d bytes", n, len(buf))
	}
	out := make([]byte, n)
	copy(out, buf[:n])
	return out, buf[n:], nil
}

func appendU64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func readU64(buf []byte) (uint64, []byte, error) {
	if len(buf) < 8 {
		return 0, nil, fmt.Errorf("transport: truncated u64")
	}
	return binary.BigEndian.Uint64(buf), buf[8:], nil
}

func appendChain(buf []byte, c chain.Chain) []byte {
	var tmp [4]byte
	blobs := c.Blobs()
	binary.BigEndian.PutUint32(tmp[:], uint32(len(blobs)))
	buf = append(buf, tmp[:]...)
	for _, b := range blobs {
		buf = appendU32Bytes(buf, b)
	}
	return buf
}

func readChain(buf []byte) (chain.Chain, []byte, error) {
	if len(buf) < 4 {
		return chain.Chain{}, nil, fmt.Errorf("transport: truncated chain length")
	}
	n := binary.BigEndian.Uint32(buf)
	buf = buf[4:]
	blobs := make([][]byte, 0, n)
	for i := uint32(0); i < n; i++ {
		b, rest, err := readU32Bytes(buf)
		if err != nil {
			return chain.Chain{}, nil, err
		}
		blobs = append(blobs, b)
		buf = rest
	}
	return chain.New(blobs), buf, nil
}
