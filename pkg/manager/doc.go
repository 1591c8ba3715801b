/*
Package manager implements a cluster node's control plane: Raft
consensus over cache-alias registration and bucket ownership, the
cluster certificate authority, and join tokens.

# Architecture

Each node runs one Manager. A cluster of 1, 3, or 5 nodes forms a Raft
quorum; the elected leader is the only node that may register a cache
alias or assign its bucket to an owning node. LookupCache reports
which node owns an alias; clients dial that node's entity server
directly, and nodes do not forward cache operations to one another.

	Manager
	  -> FSM (Apply/Snapshot/Restore over register_cache/unregister_cache/assign_bucket)
	  -> AssignmentStore (bbolt: CacheDescriptor + BucketAssignment)
	  -> CertAuthority / BoltCAStore (cluster CA, node and client certs)
	  -> TokenManager (join tokens)
	  -> events.Broker (cache mapping-change notifications)

# Usage

	cfg := &manager.Config{NodeID: "node-1", BindAddr: "10.0.0.1:7400", DataDir: "/var/lib/chainkv/node-1"}
	mgr, err := manager.NewManager(cfg)
	if err != nil {
		log.Fatal(err)
	}
	if err := mgr.Bootstrap(); err != nil {
		log.Fatal(err)
	}
	if err := mgr.CreateCache("sessions"); err != nil {
		log.Fatal(err)
	}

A second node joins with a token generated by the leader:

	token, _ := mgr.GenerateJoinToken("manager", time.Hour)
	// on the joining node:
	joiner.Join("10.0.0.1:7400", token.Token)

# Leadership

Only the leader accepts CreateCache/DestroyCache and AddVoter/
RemoveServer. Followers still serve LookupCache reads against their
locally replicated AssignmentStore.
*/
package manager
