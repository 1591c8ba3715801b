package manager

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/raft"
)

// Command is a state-change operation in the cluster's Raft log. Raft
// replicates only cluster-wide metadata here — which node owns which
// cache's bucket range, and which cache aliases exist — never the
// chain appends themselves (those are a single-bucket, lock-free
// primitive per spec §4.7, not a replicated log entry).
type Command struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"data"`
}

// FSM implements raft.FSM over an AssignmentStore: the same
// Command{Op,Data} dispatch shape used for any Raft-replicated state
// machine, applying cache-registration and bucket-ownership mutations.
type FSM struct {
	mu    sync.RWMutex
	store *AssignmentStore
}

// NewFSM creates an FSM backed by store.
func NewFSM(store *AssignmentStore) *FSM {
	return &FSM{store: store}
}

// Apply applies one committed Raft log entry.
func (f *FSM) Apply(log *raft.Log) interface{} {
	var cmd Command
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		return fmt.Errorf("manager: unmarshal command: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch cmd.Op {
	case "register_cache":
		var desc CacheDescriptor
		if err := json.Unmarshal(cmd.Data, &desc); err != nil {
			return err
		}
		return f.store.RegisterCache(desc)

	case "unregister_cache":
		var alias string
		if err := json.Unmarshal(cmd.Data, &alias); err != nil {
			return err
		}
		return f.store.UnregisterCache(alias)

	case "assign_bucket":
		var assignment BucketAssignment
		if err := json.Unmarshal(cmd.Data, &assignment); err != nil {
			return err
		}
		return f.store.AssignBucket(assignment)

	default:
		return fmt.Errorf("manager: unknown command %q", cmd.Op)
	}
}

// Snapshot captures the current assignment table for Raft log
// compaction.
func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	caches, err := f.store.ListCaches()
	if err != nil {
		return nil, fmt.Errorf("manager: list caches: %w", err)
	}
	assignments, err := f.store.ListAssignments()
	if err != nil {
		return nil, fmt.Errorf("manager: list assignments: %w", err)
	}

	return &fsmSnapshot{Caches: caches, Assignments: assignments}, nil
}

// Restore replaces the assignment table with a previously persisted
// snapshot, e.g. when a node joins and catches up from the leader.
func (f *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var snap fsmSnapshot
	if err := json.NewDecoder(rc).Decode(&snap); err != nil {
		return fmt.Errorf("manager: decode snapshot: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, desc := range snap.Caches {
		if err := f.store.RegisterCache(desc); err != nil {
			return fmt.Errorf("manager: restore cache %s: %w", desc.Alias, err)
		}
	}
	for _, a := range snap.Assignments {
		if err := f.store.AssignBucket(a); err != nil {
			return fmt.Errorf("manager: restore assignment %s: %w", a.Alias, err)
		}
	}
	return nil
}

// fsmSnapshot is the point-in-time state Raft persists and transfers
// to a joining node.
type fsmSnapshot struct {
	Caches      []CacheDescriptor
	Assignments []BucketAssignment
}

// Persist writes the snapshot to sink.
func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		if err := json.NewEncoder(sink).Encode(s); err != nil {
			return err
		}
		return sink.Close()
	}()
	if err != nil {
		sink.Cancel()
	}
	return err
}

// Release is a no-op; the snapshot holds no external resources.
func (s *fsmSnapshot) Release() {}
