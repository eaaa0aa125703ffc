package federation

import (
	"encoding/json"
	"net"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/virshle/virshle/internal/config"
	"github.com/virshle/virshle/internal/uri"
)

func serveUnix(t *testing.T, handler http.Handler) string {
	t.Helper()
	sockPath := filepath.Join(t.TempDir(), "node.sock")
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go http.Serve(ln, handler)
	return sockPath
}

func TestQueryAggregatesReachableNodes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /vm/list", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]string{{"name": "vm-1"}})
	})
	sockPath := serveUnix(t, mux)

	nodes := []config.Node{
		{Name: "local", Url: "unix://" + sockPath},
		{Name: "missing", Url: "unix://" + filepath.Join(t.TempDir(), "gone.sock")},
	}

	results := Query(t.Context(), nodes, "/vm/list")
	if len(results) != 2 {
		t.Fatalf("len = %d, want 2", len(results))
	}

	byName := map[string]Result{}
	for _, r := range results {
		byName[r.Node.Name] = r
	}

	if byName["local"].State != uri.DaemonUp || byName["local"].Data == nil {
		t.Errorf("local result = %+v", byName["local"])
	}
	if byName["missing"].State != uri.SocketNotFound || byName["missing"].Data != nil {
		t.Errorf("missing result = %+v, want SocketNotFound with no data", byName["missing"])
	}
}

func TestPostQuerySendsBody(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /vm/list", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		json.NewEncoder(w).Encode([]map[string]string{{"name": body["state"]}})
	})
	sockPath := serveUnix(t, mux)

	nodes := []config.Node{{Name: "local", Url: "unix://" + sockPath}}
	results := PostQuery(t.Context(), nodes, "/vm/list", map[string]string{"state": "Running"})

	if len(results) != 1 || results[0].Data == nil {
		t.Fatalf("results = %+v", results)
	}
	var decoded []map[string]string
	if err := json.Unmarshal(results[0].Data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != 1 || decoded[0]["name"] != "Running" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestQueryDaemonErrorStatusDemotesToDaemonDown(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /vm/list", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "boom"})
	})
	sockPath := serveUnix(t, mux)

	nodes := []config.Node{{Name: "local", Url: "unix://" + sockPath}}
	results := Query(t.Context(), nodes, "/vm/list")

	// client.Get treats a non-2xx status as an error, so callOne demotes it
	// to DaemonDown with no data rather than failing the whole query.
	if len(results) != 1 {
		t.Fatalf("len = %d, want 1", len(results))
	}
	if results[0].State != uri.DaemonDown || results[0].Data != nil {
		t.Errorf("result = %+v, want DaemonDown with no data", results[0])
	}
}
