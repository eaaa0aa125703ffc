package dhcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestKeaAllLeases(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req keaRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Command != "lease4-get-all" {
			t.Errorf("command = %q, want lease4-get-all", req.Command)
		}
		json.NewEncoder(w).Encode([]keaResponse{{
			Result: 0,
			Arguments: struct {
				Leases []KeaLease `json:"leases"`
			}{Leases: []KeaLease{{IpAddress: "10.0.0.5", Hostname: "web-1"}}},
		}})
	}))
	defer srv.Close()

	k := NewKea(srv.URL)
	leases, err := k.AllLeases(context.Background())
	if err != nil {
		t.Fatalf("all leases: %v", err)
	}
	if len(leases) != 1 || leases[0].IpAddress != "10.0.0.5" {
		t.Errorf("leases = %+v", leases)
	}
}

func TestKeaAllocateReturnsExistingLease(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]keaResponse{{
			Arguments: struct {
				Leases []KeaLease `json:"leases"`
			}{Leases: []KeaLease{{IpAddress: "10.0.0.9"}}},
		}})
	}))
	defer srv.Close()

	k := NewKea(srv.URL)
	ip, err := k.Allocate(context.Background(), "eth0", "web-1")
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if ip != "10.0.0.9" {
		t.Errorf("ip = %q, want 10.0.0.9", ip)
	}
}

func TestKeaAllocateNoLease(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]keaResponse{{}})
	}))
	defer srv.Close()

	k := NewKea(srv.URL)
	ip, err := k.Allocate(context.Background(), "eth0", "web-1")
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if ip != "" {
		t.Errorf("ip = %q, want empty when kea has no lease yet", ip)
	}
}

func TestKeaRelease(t *testing.T) {
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req keaRequest
		json.NewDecoder(r.Body).Decode(&req)
		calls = append(calls, req.Command)

		switch req.Command {
		case "lease4-get-by-hostname":
			json.NewEncoder(w).Encode([]keaResponse{{
				Arguments: struct {
					Leases []KeaLease `json:"leases"`
				}{Leases: []KeaLease{{IpAddress: "10.0.0.9"}}},
			}})
		default:
			json.NewEncoder(w).Encode([]keaResponse{{Result: 0}})
		}
	}))
	defer srv.Close()

	k := NewKea(srv.URL)
	if err := k.Release(context.Background(), "web-1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if len(calls) != 2 || calls[0] != "lease4-get-by-hostname" || calls[1] != "lease4-bulk-apply" {
		t.Errorf("calls = %v", calls)
	}
}

func TestKeaReleaseNoLeasesIsNoop(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode([]keaResponse{{}})
	}))
	defer srv.Close()

	k := NewKea(srv.URL)
	if err := k.Release(context.Background(), "web-1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (only the lookup, no bulk-apply)", calls)
	}
}
