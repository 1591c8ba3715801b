package transport

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"sync"

	"github.com/cuemby/chainkv/pkg/log"
	"github.com/cuemby/chainkv/pkg/security"
	"github.com/cuemby/chainkv/pkg/store"
)

// Server is the entity-side listener: it accepts mTLS connections,
// reads a Request per frame, dispatches to the Store registered for
// the request's alias, and writes the Response over a raw tls.Listener
// rather than a generated RPC stub, since there is no protobuf service
// definition to serve.
type Server struct {
	mu      sync.RWMutex
	stores  map[string]store.Store
	tlsCfg  *tls.Config
	lis     net.Listener
	closeCh chan struct{}
}

// NewServer builds a Server with mTLS configured from the node's
// certificate directory: load the node cert, load the CA for client
// verification, request (not require) a client cert so per-request
// auth can be layered in later.
func NewServer(certDir string) (*Server, error) {
	if !security.CertExists(certDir) {
		return nil, fmt.Errorf("transport: certificate not found at %s", certDir)
	}

	cert, err := security.LoadCertFromFile(certDir)
	if err != nil {
		return nil, fmt.Errorf("transport: load entity certificate: %w", err)
	}

	caCert, err := security.LoadCACertFromFile(certDir)
	if err != nil {
		return nil, fmt.Errorf("transport: load ca certificate: %w", err)
	}

	pool := x509.NewCertPool()
	pool.AddCert(caCert)

	tlsCfg := &tls.Config{
		ClientAuth:   tls.RequestClientCert,
		Certificates: []tls.Certificate{*cert},
		ClientCAs:    pool,
		MinVersion:   tls.VersionTLS13,
	}

	return &Server{
		stores:  make(map[string]store.Store),
		tlsCfg:  tlsCfg,
		closeCh: make(chan struct{}),
	}, nil
}

// Register binds alias to the Store that serves it. Called by the
// cachectl serve command for each cache alias it serves.
func (s *Server) Register(alias string, st store.Store) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stores[alias] = st
}

// Unregister removes alias, e.g. after its bucket ownership migrates
// to another node.
func (s *Server) Unregister(alias string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stores, alias)
}

func (s *Server) storeFor(alias string) (store.Store, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stores[alias]
	return st, ok
}

// Start listens on addr and serves connections until Stop is called.
func (s *Server) Start(addr string) error {
	lis, err := tls.Listen("tcp", addr, s.tlsCfg)
	if err != nil {
		return fmt.Errorf("transport: listen %s: %w", addr, err)
	}
	s.lis = lis
	log.Logger.Info().Str("addr", addr).Msg("entity server listening")

	for {
		conn, err := lis.Accept()
		if err != nil {
			select {
			case <-s.closeCh:
				return nil
			default:
				return fmt.Errorf("transport: accept: %w", err)
			}
		}
		go s.serveConn(conn)
	}
}

// Stop closes the listener, ending Start's accept loop.
func (s *Server) Stop() {
	close(s.closeCh)
	if s.lis != nil {
		s.lis.Close()
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()
	peerLog := log.WithPeer(conn.RemoteAddr().String())

	for {
		req, err := ReadRequest(conn)
		if err != nil {
			return
		}
		resp := s.handle(req)
		if err := WriteResponse(conn, resp); err != nil {
			peerLog.Error().Err(err).Msg("write response")
			return
		}
	}
}

func (s *Server) handle(req Request) Response {
	st, ok := s.storeFor(req.Alias)
	if !ok {
		return Response{Status: StatusUnavailable, Err: fmt.Sprintf("transport: no store for alias %q", req.Alias)}
	}

	switch req.Command {
	case CmdGet:
		c, err := st.Get(req.Hash)
		if err != nil {
			return errResponse(err)
		}
		return Response{Status: StatusOK, Chain: c}

	case CmdGetAndAppend:
		c, err := st.GetAndAppend(req.Hash, req.Blob)
		if err != nil {
			return errResponse(err)
		}
		return Response{Status: StatusOK, Chain: c}

	case CmdReplaceAtHead:
		applied, err := st.ReplaceAtHead(req.Hash, req.Prefix, req.Replace)
		if err != nil {
			return errResponse(err)
		}
		return Response{Status: StatusOK, Applied: applied}

	case CmdClear:
		if err := st.Clear(); err != nil {
			return errResponse(err)
		}
		return Response{Status: StatusOK}

	default:
		return Response{Status: StatusMalformed, Err: fmt.Sprintf("transport: unknown command %d", req.Command)}
	}
}

func errResponse(err error) Response {
	return Response{Status: StatusUnavailable, Err: err.Error()}
}
