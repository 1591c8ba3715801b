package manager

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/cuemby/chainkv/pkg/events"
	"github.com/cuemby/chainkv/pkg/log"
	"github.com/cuemby/chainkv/pkg/security"
	"github.com/cuemby/chainkv/pkg/transport"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
)

// Manager runs one cluster node's control plane: Raft-replicated
// bucket ownership and cache-alias registration, the cluster CA, join
// tokens, and (once leader-assigned) the local entity transport.Server
// a client proxy dials into.
type Manager struct {
	nodeID   string
	bindAddr string
	dataDir  string

	raft         *raft.Raft
	fsm          *FSM
	assignments  *AssignmentStore
	tokenManager *TokenManager
	ca           *security.CertAuthority
	caStore      *security.BoltCAStore
	eventBroker  *events.Broker
	entityServer *transport.Server
}

// Config holds the parameters for creating a Manager.
type Config struct {
	NodeID   string
	BindAddr string
	DataDir  string
}

// NewManager creates a Manager instance backed by dataDir. Raft,
// listening, and CA initialization happen in Bootstrap or Join.
func NewManager(cfg *Config) (*Manager, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("manager: create data dir: %w", err)
	}

	assignments, err := NewAssignmentStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("manager: create assignment store: %w", err)
	}

	caStore, err := security.NewBoltCAStore(filepath.Join(cfg.DataDir, "ca.db"))
	if err != nil {
		assignments.Close()
		return nil, fmt.Errorf("manager: create ca store: %w", err)
	}

	clusterKey := security.DeriveKeyFromClusterID(cfg.NodeID)
	if err := security.SetClusterEncryptionKey(clusterKey); err != nil {
		return nil, fmt.Errorf("manager: set cluster encryption key: %w", err)
	}

	broker := events.NewBroker()
	broker.Start()

	return &Manager{
		nodeID:       cfg.NodeID,
		bindAddr:     cfg.BindAddr,
		dataDir:      cfg.DataDir,
		fsm:          NewFSM(assignments),
		assignments:  assignments,
		tokenManager: NewTokenManager(),
		ca:           security.NewCertAuthority(caStore),
		caStore:      caStore,
		eventBroker:  broker,
	}, nil
}

func raftConfig(nodeID string) *raft.Config {
	cfg := raft.DefaultConfig()
	cfg.LocalID = raft.ServerID(nodeID)
	// Tuned for LAN entity clusters rather than Raft's WAN-conservative
	// defaults.
	cfg.HeartbeatTimeout = 500 * time.Millisecond
	cfg.ElectionTimeout = 500 * time.Millisecond
	cfg.LeaderLeaseTimeout = 250 * time.Millisecond
	return cfg
}

func (m *Manager) startRaft() error {
	cfg := raftConfig(m.nodeID)

	addr, err := net.ResolveTCPAddr("tcp", m.bindAddr)
	if err != nil {
		return fmt.Errorf("manager: resolve bind address: %w", err)
	}

	raftTransport, err := raft.NewTCPTransport(m.bindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return fmt.Errorf("manager: create raft transport: %w", err)
	}

	snapshotStore, err := raft.NewFileSnapshotStore(m.dataDir, 2, os.Stderr)
	if err != nil {
		return fmt.Errorf("manager: create snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(m.dataDir, "raft-log.db"))
	if err != nil {
		return fmt.Errorf("manager: create raft log store: %w", err)
	}

	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(m.dataDir, "raft-stable.db"))
	if err != nil {
		return fmt.Errorf("manager: create raft stable store: %w", err)
	}

	r, err := raft.NewRaft(cfg, m.fsm, logStore, stableStore, snapshotStore, raftTransport)
	if err != nil {
		return fmt.Errorf("manager: create raft: %w", err)
	}
	m.raft = r
	return nil
}

// Bootstrap initializes a new single-node cluster: starts Raft as the
// sole voter, waits until this node has been elected leader, then
// initializes the CA.
func (m *Manager) Bootstrap() error {
	if err := m.startRaft(); err != nil {
		return err
	}

	configuration := raft.Configuration{
		Servers: []raft.Server{{ID: raft.ServerID(m.nodeID), Address: raft.ServerAddress(m.bindAddr)}},
	}
	if err := m.raft.BootstrapCluster(configuration).Error(); err != nil {
		return fmt.Errorf("manager: bootstrap cluster: %w", err)
	}

	deadline := time.Now().Add(10 * time.Second)
	for !m.IsLeader() {
		if time.Now().After(deadline) {
			return fmt.Errorf("manager: timed out waiting for leadership after bootstrap")
		}
		time.Sleep(50 * time.Millisecond)
	}

	return m.initializeCA()
}

// Join starts Raft, validates token, then loads the cluster CA from
// this node's CA store. It does not contact leaderAddr, which is only
// logged; the node becomes a voter when AddVoter is called for it on
// the leader.
func (m *Manager) Join(leaderAddr, token string) error {
	if err := m.startRaft(); err != nil {
		return err
	}

	// Joining validates the caller's token locally; the actual Raft
	// membership change (AddVoter) happens on the leader once whatever
	// control-plane RPC layer forwards this node's join request there.
	// That RPC is out of scope for the clustered-store pipeline itself
	// (transport.Client here is the entity data plane: Get/Append/etc
	// against one cache's store, not cluster membership).
	role, err := m.tokenManager.ValidateToken(token)
	if err != nil {
		return fmt.Errorf("manager: validate join token: %w", err)
	}
	log.Logger.Info().Str("role", role).Str("leader", leaderAddr).Msg("joining cluster")

	return m.ca.LoadFromStore()
}

// AddVoter adds nodeID at address as a Raft voter. Must be called on
// the current leader.
func (m *Manager) AddVoter(nodeID, address string) error {
	if m.raft == nil {
		return fmt.Errorf("manager: raft not started")
	}
	if !m.IsLeader() {
		return fmt.Errorf("manager: not leader, current leader is %s", m.LeaderAddr())
	}
	return m.raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(address), 0, 10*time.Second).Error()
}

// RemoveServer removes nodeID from the Raft configuration.
func (m *Manager) RemoveServer(nodeID string) error {
	if m.raft == nil {
		return fmt.Errorf("manager: raft not started")
	}
	if !m.IsLeader() {
		return fmt.Errorf("manager: not leader")
	}
	return m.raft.RemoveServer(raft.ServerID(nodeID), 0, 10*time.Second).Error()
}

// IsLeader reports whether this node currently holds Raft leadership.
func (m *Manager) IsLeader() bool {
	return m.raft != nil && m.raft.State() == raft.Leader
}

// LeaderAddr returns the current Raft leader's bind address, or "" if
// none is known.
func (m *Manager) LeaderAddr() string {
	if m.raft == nil {
		return ""
	}
	return string(m.raft.Leader())
}

// NodeID returns this node's Raft server ID.
func (m *Manager) NodeID() string {
	return m.nodeID
}

// EventBroker returns the manager's cache-event broker.
func (m *Manager) EventBroker() *events.Broker {
	return m.eventBroker
}

// apply marshals cmd and submits it to the Raft log, returning the
// FSM's Apply result if it was an error.
func (m *Manager) apply(cmd Command) error {
	if m.raft == nil {
		return fmt.Errorf("manager: raft not started")
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("manager: marshal command: %w", err)
	}
	future := m.raft.Apply(data, 5*time.Second)
	if err := future.Error(); err != nil {
		return fmt.Errorf("manager: apply command: %w", err)
	}
	if resp := future.Response(); resp != nil {
		if err, ok := resp.(error); ok && err != nil {
			return err
		}
	}
	return nil
}

// CreateCache registers alias cluster-wide and assigns its bucket
// ownership to this node. Must be called on the leader.
func (m *Manager) CreateCache(alias string) error {
	descData, err := json.Marshal(CacheDescriptor{Alias: alias, CreatedAt: time.Now().Unix()})
	if err != nil {
		return err
	}
	if err := m.apply(Command{Op: "register_cache", Data: descData}); err != nil {
		return fmt.Errorf("manager: register cache %s: %w", alias, err)
	}

	assignData, err := json.Marshal(BucketAssignment{Alias: alias, NodeID: m.nodeID})
	if err != nil {
		return err
	}
	return m.apply(Command{Op: "assign_bucket", Data: assignData})
}

// DestroyCache removes alias's cluster-wide registration.
func (m *Manager) DestroyCache(alias string) error {
	data, err := json.Marshal(alias)
	if err != nil {
		return err
	}
	return m.apply(Command{Op: "unregister_cache", Data: data})
}

// LookupCache returns the node ID currently owning alias's entity
// store.
func (m *Manager) LookupCache(alias string) (string, error) {
	return m.assignments.OwnerOf(alias)
}

// AttachEntityServer records the transport.Server this node uses to
// serve caches it owns, so Shutdown can stop it.
func (m *Manager) AttachEntityServer(srv *transport.Server) {
	m.entityServer = srv
}

// initializeCA loads the cluster CA from storage, or creates and
// persists a new one if this is a fresh cluster, then issues this
// node's own entity certificate if it doesn't already have one.
func (m *Manager) initializeCA() error {
	if err := m.ca.LoadFromStore(); err == nil {
		log.Logger.Info().Msg("loaded existing certificate authority")
		return m.ensureNodeCertificate()
	}

	log.Logger.Info().Msg("initializing new certificate authority")
	if err := m.ca.Initialize(); err != nil {
		return fmt.Errorf("manager: initialize ca: %w", err)
	}
	if err := m.ca.SaveToStore(); err != nil {
		return fmt.Errorf("manager: save ca: %w", err)
	}
	return m.ensureNodeCertificate()
}

func (m *Manager) ensureNodeCertificate() error {
	certDir, err := security.GetCertDir("entity", m.nodeID)
	if err != nil {
		return fmt.Errorf("manager: cert dir: %w", err)
	}
	if security.CertExists(certDir) {
		return nil
	}

	host, _, err := net.SplitHostPort(m.bindAddr)
	if err != nil {
		return fmt.Errorf("manager: parse bind address: %w", err)
	}
	var ips []net.IP
	if ip := net.ParseIP(host); ip != nil {
		ips = []net.IP{ip}
	}
	dnsNames := []string{fmt.Sprintf("entity-%s", m.nodeID), "localhost"}

	cert, err := m.ca.IssueNodeCertificate(m.nodeID, "entity", dnsNames, ips)
	if err != nil {
		return fmt.Errorf("manager: issue node certificate: %w", err)
	}
	if err := security.SaveCertToFile(cert, certDir); err != nil {
		return fmt.Errorf("manager: save node certificate: %w", err)
	}
	return security.SaveCACertToFile(m.ca.GetRootCACert(), certDir)
}

// IssueClientCertificate issues a client-auth-only certificate for a
// cache-proxy client, e.g. after a successful join-token validation.
func (m *Manager) IssueClientCertificate(clientID string) (*tls.Certificate, error) {
	if !m.ca.IsInitialized() {
		return nil, fmt.Errorf("manager: ca not initialized")
	}
	return m.ca.IssueClientCertificate(clientID)
}

// GenerateJoinToken creates a new join token for role ("manager" or
// "client"), valid for duration.
func (m *Manager) GenerateJoinToken(role string, duration time.Duration) (*JoinToken, error) {
	return m.tokenManager.GenerateToken(role, duration)
}

// ValidateToken validates token and returns its role.
func (m *Manager) ValidateToken(token string) (string, error) {
	return m.tokenManager.ValidateToken(token)
}

// Shutdown stops the event broker, entity server, and Raft, then
// closes the backing stores.
func (m *Manager) Shutdown() error {
	if m.eventBroker != nil {
		m.eventBroker.Stop()
	}
	if m.entityServer != nil {
		m.entityServer.Stop()
	}
	if m.raft != nil {
		if err := m.raft.Shutdown().Error(); err != nil {
			return fmt.Errorf("manager: shutdown raft: %w", err)
		}
	}
	if err := m.assignments.Close(); err != nil {
		return fmt.Errorf("manager: close assignment store: %w", err)
	}
	return m.caStore.Close()
}
