package transport

import (
	"net"
	"path/filepath"
	"testing"

	"github.com/virshle/virshle/internal/uri"
)

func TestOpenUnixSuccess(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "test.sock")
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	stream, state, err := Open(t.Context(), uri.Uri{Kind: uri.Local, Path: sockPath})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if state != uri.DaemonUp {
		t.Errorf("state = %v, want DaemonUp", state)
	}
	if err := stream.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
	// Close must be idempotent.
	if err := stream.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

func TestOpenUnixSocketNotFound(t *testing.T) {
	_, state, err := Open(t.Context(), uri.Uri{Kind: uri.Local, Path: filepath.Join(t.TempDir(), "missing.sock")})
	if err == nil {
		t.Fatal("expected error for missing socket")
	}
	if state != uri.SocketNotFound {
		t.Errorf("state = %v, want SocketNotFound", state)
	}
}

func TestOpenTcpSuccess(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	stream, state, err := Open(t.Context(), uri.Uri{Kind: uri.Tcp, Host: "127.0.0.1", Port: addr.Port})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if state != uri.DaemonUp {
		t.Errorf("state = %v, want DaemonUp", state)
	}
	stream.Close()
}

func TestOpenTcpConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close() // nothing listening now

	_, state, err := Open(t.Context(), uri.Uri{Kind: uri.Tcp, Host: "127.0.0.1", Port: addr.Port})
	if err == nil {
		t.Fatal("expected error connecting to a closed port")
	}
	if state != uri.DaemonDown {
		t.Errorf("state = %v, want DaemonDown", state)
	}
}

func TestOpenUnknownKind(t *testing.T) {
	_, state, err := Open(t.Context(), uri.Uri{Kind: uri.Kind(99)})
	if err == nil {
		t.Fatal("expected error for unknown uri kind")
	}
	if state != uri.Unreachable {
		t.Errorf("state = %v, want Unreachable", state)
	}
}
