package proxy

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/chainkv/pkg/chain"
	"github.com/cuemby/chainkv/pkg/codec"
	"github.com/cuemby/chainkv/pkg/log"
	"github.com/cuemby/chainkv/pkg/metrics"
	"github.com/cuemby/chainkv/pkg/resolver"
	"github.com/cuemby/chainkv/pkg/types"
)

// EntityClient is the subset of transport.Client the proxy depends on.
// Declaring it here, rather than importing *transport.Client directly,
// lets tests exercise the proxy's fold logic against an in-memory
// entity without a real mTLS connection.
type EntityClient interface {
	Get(alias string, hash types.KeyHash) (chain.Chain, error)
	GetAndAppend(alias string, hash types.KeyHash, blob []byte) (chain.Chain, error)
	ReplaceAtHead(alias string, hash types.KeyHash, prefix, replacement chain.Chain) (bool, error)
	Clear(alias string) error
}

// ServerStoreProxy is the client-side facade for one named cache's
// clustered tier (spec §4.6, component C5).
type ServerStoreProxy struct {
	alias  string
	client EntityClient
}

// NewServerStoreProxy builds a proxy for alias over client.
func NewServerStoreProxy(alias string, client EntityClient) *ServerStoreProxy {
	return &ServerStoreProxy{alias: alias, client: client}
}

func timestamp() uint64 {
	return uint64(time.Now().UnixNano())
}

// Get returns the resolved value for key, or present=false if absent.
func (p *ServerStoreProxy) Get(key []byte) (value []byte, present bool, err error) {
	hash := types.HashKey(key)
	reqID := uuid.NewString()
	reqLog := log.WithBucket(uint64(hash))
	timer := metrics.NewTimer()

	c, err := p.client.Get(p.alias, hash)
	defer func() {
		timer.ObserveDurationVec(metrics.EntityRequestDuration, "get")
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.EntityRequestsTotal.WithLabelValues("get", status).Inc()
	}()
	if err != nil {
		reqLog.Error().Str("request_id", reqID).Err(err).Msg("get failed")
		return nil, false, fmt.Errorf("proxy: get %s: %w", p.alias, err)
	}

	value, present, err = resolver.Resolve(c, key)
	if err != nil {
		return nil, false, fmt.Errorf("proxy: resolve %s: %w", p.alias, err)
	}
	return value, present, nil
}

// Put unconditionally installs value for key.
func (p *ServerStoreProxy) Put(key, value []byte) error {
	op := types.Put(key, value, timestamp())
	_, err := p.append(op)
	return err
}

// Remove unconditionally removes key's mapping.
func (p *ServerStoreProxy) Remove(key []byte) error {
	op := types.Remove(key, timestamp())
	_, err := p.append(op)
	return err
}

// PutIfAbsent installs value for key only if it is currently absent.
// It returns the value already present, if any; a nil, false result
// means the install took effect.
func (p *ServerStoreProxy) PutIfAbsent(key, value []byte) (prev []byte, present bool, err error) {
	op := types.PutIfAbsent(key, value, timestamp())
	preChain, err := p.append(op)
	if err != nil {
		return nil, false, err
	}
	return resolver.Resolve(preChain, key)
}

// Replace installs value for key only if a mapping is currently
// present, and returns the value that was there before the call.
func (p *ServerStoreProxy) Replace(key, value []byte) (prev []byte, present bool, err error) {
	op := types.Replace(key, value, timestamp())
	preChain, err := p.append(op)
	if err != nil {
		return nil, false, err
	}
	return resolver.Resolve(preChain, key)
}

// ReplaceConditional installs newValue for key only if key's current
// value equals oldValue, and reports whether the install took effect.
func (p *ServerStoreProxy) ReplaceConditional(key, oldValue, newValue []byte) (applied bool, err error) {
	op := types.ReplaceConditional(key, oldValue, newValue, timestamp())
	preChain, err := p.append(op)
	if err != nil {
		return false, err
	}
	prev, present, err := resolver.Resolve(preChain, key)
	if err != nil {
		return false, err
	}
	return present && string(prev) == string(oldValue), nil
}

// ComputeResult is one key's outcome from BulkCompute.
type ComputeResult struct {
	Value   []byte
	Present bool
}

// BulkCompute applies fn(key)'s returned operation to each key in
// keys, independently, and collects each key's pre-operation resolved
// value keyed by the key's string form.
func (p *ServerStoreProxy) BulkCompute(keys [][]byte, fn func(key []byte) types.Operation) (map[string]ComputeResult, error) {
	out := make(map[string]ComputeResult, len(keys))
	for _, key := range keys {
		op := fn(key)
		preChain, err := p.append(op)
		if err != nil {
			return nil, fmt.Errorf("proxy: bulk compute %q: %w", key, err)
		}
		value, present, err := resolver.Resolve(preChain, key)
		if err != nil {
			return nil, fmt.Errorf("proxy: bulk compute %q: %w", key, err)
		}
		out[string(key)] = ComputeResult{Value: value, Present: present}
	}
	return out, nil
}

// ReplaceAtHead sends a best-effort compaction signal for hash: the
// server applies replacement only if prefix still matches its current
// chain's head (spec §4.6).
func (p *ServerStoreProxy) ReplaceAtHead(hash types.KeyHash, prefix, replacement chain.Chain) (bool, error) {
	return p.client.ReplaceAtHead(p.alias, hash, prefix, replacement)
}

// Clear removes every chain in this cache's clustered tier.
func (p *ServerStoreProxy) Clear() error {
	return p.client.Clear(p.alias)
}

// append encodes op, appends it via getAndAppend, and returns the
// chain that existed immediately beforehand (spec §4.6's contract).
func (p *ServerStoreProxy) append(op types.Operation) (chain.Chain, error) {
	hash := types.HashKey(op.Key)
	blob := codec.Encode(op)

	timer := metrics.NewTimer()
	preChain, err := p.client.GetAndAppend(p.alias, hash, blob)
	timer.ObserveDurationVec(metrics.EntityRequestDuration, op.Code.String())
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.EntityRequestsTotal.WithLabelValues(op.Code.String(), status).Inc()
	metrics.AppendsTotal.WithLabelValues(p.alias).Inc()

	if err != nil {
		return chain.Empty, fmt.Errorf("proxy: append %s to %s: %w", op.Code, p.alias, err)
	}
	return preChain, nil
}
