package transport

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/chainkv/pkg/codec"
	"github.com/cuemby/chainkv/pkg/security"
	"github.com/cuemby/chainkv/pkg/store"
	"github.com/cuemby/chainkv/pkg/types"
	"github.com/stretchr/testify/require"
)

// issueTestCertDir sets up a self-signed CA and writes a node
// certificate plus the CA cert to a temp directory, the same shape
// pkg/security's own tests use, so Server/Client can load them with
// security.LoadCertFromFile/LoadCACertFromFile.
func issueTestCertDir(t *testing.T, cn string) string {
	t.Helper()

	key := security.DeriveKeyFromClusterID("transport-test-cluster")
	require.NoError(t, security.SetClusterEncryptionKey(key))

	dbDir := t.TempDir()
	caStore, err := security.NewBoltCAStore(filepath.Join(dbDir, "ca.db"))
	require.NoError(t, err)
	defer caStore.Close()

	ca := security.NewCertAuthority(caStore)
	require.NoError(t, ca.Initialize())

	cert, err := ca.IssueNodeCertificate(cn, "entity", []string{"localhost"}, []net.IP{net.ParseIP("127.0.0.1")})
	require.NoError(t, err)

	certDir := filepath.Join(t.TempDir(), cn)
	require.NoError(t, os.MkdirAll(certDir, 0700))
	require.NoError(t, security.SaveCertToFile(cert, certDir))
	require.NoError(t, security.SaveCACertToFile(ca.GetRootCACert(), certDir))

	return certDir
}

func TestServerClientRoundTrip(t *testing.T) {
	certDir := issueTestCertDir(t, "entity-1")

	srv, err := NewServer(certDir)
	require.NoError(t, err)

	mem := store.NewMemStore()
	srv.Register("sessions", mem)

	addr := "127.0.0.1:0"
	lisErrCh := make(chan error, 1)

	// Start needs a fixed port since the client dials before Start
	// returns; bind it ourselves and hand a listener address through a
	// free port probe.
	probe, err := net.Listen("tcp", addr)
	require.NoError(t, err)
	realAddr := probe.Addr().String()
	probe.Close()

	go func() { lisErrCh <- srv.Start(realAddr) }()
	defer srv.Stop()

	waitForListener(t, realAddr)

	client, err := NewClient(realAddr, certDir)
	require.NoError(t, err)
	defer client.Close()

	h := types.HashKey([]byte("user:42"))

	empty, err := client.Get("sessions", h)
	require.NoError(t, err)
	require.Equal(t, 0, empty.Len())

	op := types.Put([]byte("user:42"), []byte("v1"), 1)
	blob := codec.Encode(op)

	after, err := client.GetAndAppend("sessions", h, blob)
	require.NoError(t, err)
	require.Equal(t, 0, after.Len()) // pre-append snapshot is still empty

	current, err := client.Get("sessions", h)
	require.NoError(t, err)
	require.Equal(t, 1, current.Len())

	applied, err := client.ReplaceAtHead("sessions", h, current, current)
	require.NoError(t, err)
	require.True(t, applied)

	require.NoError(t, client.Clear("sessions"))
	cleared, err := client.Get("sessions", h)
	require.NoError(t, err)
	require.Equal(t, 0, cleared.Len())
}

func TestServerUnknownAlias(t *testing.T) {
	certDir := issueTestCertDir(t, "entity-2")

	srv, err := NewServer(certDir)
	require.NoError(t, err)

	probe, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	realAddr := probe.Addr().String()
	probe.Close()

	go srv.Start(realAddr)
	defer srv.Stop()
	waitForListener(t, realAddr)

	client, err := NewClient(realAddr, certDir)
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Get("no-such-cache", types.HashKey([]byte("k")))
	require.Error(t, err)
}

func waitForListener(t *testing.T, addr string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("server never started listening on %s", addr)
}
