// Package daemon is virshled's REST server: a UNIX-socket-bound
// http.ServeMux exposing the route table from spec.md §4.8. Grounded on the
// teacher's internal/api/server.go (ServeMux route registration, Go 1.22
// method-pattern routing, UnixListener bind idiom) and on
// virshle_core/src/http_api/server.rs in the original implementation
// (route set — the original serves this over axum, the teacher's stdlib
// mux idiom replaces it).
package daemon

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"github.com/virshle/virshle/internal/config"
	"github.com/virshle/virshle/internal/dhcp"
	"github.com/virshle/virshle/internal/image"
	"github.com/virshle/virshle/internal/network"
	"github.com/virshle/virshle/internal/registry"
	"github.com/virshle/virshle/internal/vm"
)

// Server is virshled's REST API server.
type Server struct {
	cfg     *config.Config
	vcfg    *config.VirshleConfig
	db      *registry.DB
	net     *network.Controller
	mgr     *vm.Manager
	dhcp    dhcp.Allocator
	mux     *http.ServeMux
	server  *http.Server
	ln      net.Listener
}

// NewServer wires a Server together. dhcpAllocator may be nil; images may be
// nil if no configured template ever sets Disk.ImageRef.
func NewServer(cfg *config.Config, vcfg *config.VirshleConfig, db *registry.DB, net *network.Controller, dhcpAllocator dhcp.Allocator, images *image.Cache) *Server {
	mgr := vm.NewManager(cfg, db, net, dhcpAllocator, images)
	s := &Server{
		cfg:  cfg,
		vcfg: vcfg,
		db:   db,
		net:  net,
		mgr:  mgr,
		dhcp: dhcpAllocator,
		mux:  http.NewServeMux(),
	}
	s.registerRoutes()
	s.server = &http.Server{Handler: s.mux}
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /node/info", s.handleNodeInfo)
	s.mux.HandleFunc("GET /template/list", s.handleTemplateList)
	s.mux.HandleFunc("POST /template/can-reclaim", s.handleTemplateCanReclaim)
	s.mux.HandleFunc("GET /vm/list", s.handleVmList)
	s.mux.HandleFunc("POST /vm/list", s.handleVmListFiltered)
	s.mux.HandleFunc("PUT /vm/create", s.handleVmCreate)
	s.mux.HandleFunc("PUT /vm/start", s.handleVmStart)
	s.mux.HandleFunc("PUT /vm/stop", s.handleVmStop)
	s.mux.HandleFunc("POST /vm/info", s.handleVmInfo)
	s.mux.HandleFunc("POST /vm/delete", s.handleVmDelete)
}

// Start removes any stale socket, creates the parent directory, binds, and
// sets mode 0o774 (spec.md §4.8).
func (s *Server) Start() error {
	os.Remove(s.cfg.SocketPath)
	if err := os.MkdirAll(filepath.Dir(s.cfg.SocketPath), 0o755); err != nil {
		return err
	}

	ln, err := net.Listen("unix", s.cfg.SocketPath)
	if err != nil {
		return err
	}
	if err := os.Chmod(s.cfg.SocketPath, 0o774); err != nil {
		ln.Close()
		return err
	}
	s.ln = ln

	log.Printf("virshled listening on %s", s.cfg.SocketPath)

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("daemon server error: %v", err)
		}
	}()
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
