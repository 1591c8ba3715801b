package transport

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cuemby/chainkv/pkg/chain"
	"github.com/cuemby/chainkv/pkg/security"
	"github.com/cuemby/chainkv/pkg/types"
)

// Client is a pooled mTLS connection to one entity server. Requests
// for every alias owned by that entity share the same connection
// pool, serialized one in flight at a time per connection, following
// hashicorp/raft's NetworkTransport connection-pool pattern rather
// than the one-request-per-dial style of a naive client.
type Client struct {
	addr    string
	tlsCfg  *tls.Config
	timeout time.Duration

	mu   sync.Mutex
	pool []net.Conn
}

// NewClient prepares a client for addr using the mTLS identity found in
// certDir: load the caller's certificate, load the CA to verify the
// server, require TLS 1.3. It does not dial; a connection is opened on
// the first request that finds the pool empty.
func NewClient(addr, certDir string) (*Client, error) {
	cert, err := security.LoadCertFromFile(certDir)
	if err != nil {
		return nil, fmt.Errorf("transport: load client certificate: %w", err)
	}

	caCert, err := security.LoadCACertFromFile(certDir)
	if err != nil {
		return nil, fmt.Errorf("transport: load ca certificate: %w", err)
	}

	pool := x509.NewCertPool()
	pool.AddCert(caCert)

	return &Client{
		addr: addr,
		tlsCfg: &tls.Config{
			Certificates: []tls.Certificate{*cert},
			RootCAs:      pool,
			MinVersion:   tls.VersionTLS13,
		},
		timeout: 10 * time.Second,
	}, nil
}

func (c *Client) getConn() (net.Conn, error) {
	c.mu.Lock()
	if n := len(c.pool); n > 0 {
		conn := c.pool[n-1]
		c.pool = c.pool[:n-1]
		c.mu.Unlock()
		return conn, nil
	}
	c.mu.Unlock()

	dialer := &net.Dialer{Timeout: c.timeout}
	conn, err := tls.DialWithDialer(dialer, "tcp", c.addr, c.tlsCfg)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", c.addr, err)
	}
	return conn, nil
}

func (c *Client) putConn(conn net.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pool = append(c.pool, conn)
}

func (c *Client) roundTrip(req Request) (Response, error) {
	conn, err := c.getConn()
	if err != nil {
		return Response{}, err
	}

	conn.SetDeadline(time.Now().Add(c.timeout))
	if err := WriteRequest(conn, req); err != nil {
		conn.Close()
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return Response{}, fmt.Errorf("%w: write request: %v", types.ErrTimeout, err)
		}
		return Response{}, fmt.Errorf("transport: write request: %w", err)
	}
	resp, err := ReadResponse(conn)
	if err != nil {
		conn.Close()
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return Response{}, fmt.Errorf("%w: read response: %v", types.ErrTimeout, err)
		}
		return Response{}, fmt.Errorf("transport: read response: %w", err)
	}
	conn.SetDeadline(time.Time{})
	c.putConn(conn)

	if resp.Status != StatusOK {
		return resp, statusError(resp.Status, resp.Err)
	}
	return resp, nil
}

func statusError(status Status, msg string) error {
	switch status {
	case StatusUnsupportedOpcode:
		return fmt.Errorf("%w: %s", types.ErrUnsupportedOpcode, msg)
	case StatusMalformed:
		return fmt.Errorf("%w: %s", types.ErrMalformedOperation, msg)
	default:
		return fmt.Errorf("%w: %s", types.ErrEntityUnavailable, msg)
	}
}

// Get fetches the current chain for hash in the named cache.
func (c *Client) Get(alias string, hash types.KeyHash) (chain.Chain, error) {
	resp, err := c.roundTrip(Request{Alias: alias, Command: CmdGet, Hash: hash})
	return resp.Chain, err
}

// GetAndAppend atomically appends blob to hash's chain and returns the
// chain as it was before the append (spec §4.7's single mutating
// primitive).
func (c *Client) GetAndAppend(alias string, hash types.KeyHash, blob []byte) (chain.Chain, error) {
	resp, err := c.roundTrip(Request{Alias: alias, Command: CmdGetAndAppend, Hash: hash, Blob: blob})
	return resp.Chain, err
}

// ReplaceAtHead performs a CAS-style chain compaction: replace prefix
// with replacement only if the chain still begins with prefix.
func (c *Client) ReplaceAtHead(alias string, hash types.KeyHash, prefix, replacement chain.Chain) (bool, error) {
	resp, err := c.roundTrip(Request{Alias: alias, Command: CmdReplaceAtHead, Hash: hash, Prefix: prefix, Replace: replacement})
	return resp.Applied, err
}

// Clear removes every chain in the named cache.
func (c *Client) Clear(alias string) error {
	_, err := c.roundTrip(Request{Alias: alias, Command: CmdClear})
	return err
}

// Close closes every pooled connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, conn := range c.pool {
		conn.Close()
	}
	c.pool = nil
	return nil
}
