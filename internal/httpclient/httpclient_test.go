package httpclient

import (
	"encoding/json"
	"net"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/virshle/virshle/internal/uri"
)

func listenUnix(t *testing.T) (net.Listener, uri.Uri) {
	t.Helper()
	sockPath := filepath.Join(t.TempDir(), "test.sock")
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("listen unix: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	return ln, uri.Uri{Kind: uri.Local, Path: sockPath}
}

func TestClientGetSuccess(t *testing.T) {
	ln, target := listenUnix(t)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /node/info", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]int{"cpus": 4})
	})
	go http.Serve(ln, mux)

	c := New(target)
	resp, err := c.Get(t.Context(), "/node/info")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !resp.IsSuccess() {
		t.Fatalf("status = %d, want success", resp.StatusCode)
	}
	var out map[string]int
	if err := resp.JSON(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["cpus"] != 4 {
		t.Errorf("cpus = %d, want 4", out["cpus"])
	}
}

func TestClientPostEncodesBody(t *testing.T) {
	ln, target := listenUnix(t)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /vm/info", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"echo": body["name"]})
	})
	go http.Serve(ln, mux)

	c := New(target)
	resp, err := c.Post(t.Context(), "/vm/info", map[string]string{"name": "web-1"})
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	var out map[string]string
	if err := resp.JSON(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["echo"] != "web-1" {
		t.Errorf("echo = %q, want web-1", out["echo"])
	}
}

func TestClientNonSuccessStatus(t *testing.T) {
	ln, target := listenUnix(t)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /vm/info", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	go http.Serve(ln, mux)

	c := New(target)
	resp, err := c.Get(t.Context(), "/vm/info")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if resp.IsSuccess() {
		t.Error("expected non-success status to report IsSuccess() == false")
	}
}

func TestClientDialFailureReturnsError(t *testing.T) {
	target := uri.Uri{Kind: uri.Local, Path: filepath.Join(t.TempDir(), "no-such.sock")}
	c := New(target)
	if _, err := c.Get(t.Context(), "/node/info"); err == nil {
		t.Fatal("expected error dialing a nonexistent socket")
	}
}
