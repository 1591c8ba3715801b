/*
Package security provides the cryptographic services a chainkv cluster
needs: a certificate authority for mutual TLS between entity servers
and clients, certificate lifecycle helpers, and the AES-256-GCM cluster
key used to protect the CA's own private key at rest.

# Cluster Encryption Key

Security is rooted in a 32-byte cluster encryption key, derived from
the cluster ID at bootstrap:

	clusterKey = SHA-256(clusterID)

This key encrypts the CA's root private key before it is written to
the CAStore. It lives only in memory on manager nodes and must be
supplied again when a node rejoins or recovers from backup.

# Certificate Authority

The CA is a self-signed root (RSA 4096, 10-year validity) that issues
short-lived node and client certificates (RSA 2048, 90-day validity)
for entity-server and client-proxy mTLS:

	Root CA (self-signed)
	└── Node/Client Certificates (issued by root)

Root cert and encrypted root key are persisted through the CAStore
interface; pkg/manager supplies a BoltCAStore-backed implementation.

# Usage

	clusterKey := security.DeriveKeyFromClusterID(clusterID)
	if err := security.SetClusterEncryptionKey(clusterKey); err != nil {
		return err
	}

	store, err := security.NewBoltCAStore(caDBPath)
	if err != nil {
		return err
	}
	ca := security.NewCertAuthority(store)
	if err := ca.Initialize(); err != nil {
		return err
	}
	if err := ca.SaveToStore(); err != nil {
		return err
	}

	tlsCert, err := ca.IssueNodeCertificate(nodeID, "entity", dnsNames, ips)
*/
package security
