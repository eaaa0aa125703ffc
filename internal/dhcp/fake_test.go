package dhcp

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/virshle/virshle/internal/config"
	"github.com/virshle/virshle/internal/registry"
)

func testRegistry(t *testing.T) *registry.DB {
	t.Helper()
	db, err := registry.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open registry: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestFakeAllocateSequential(t *testing.T) {
	db := testRegistry(t)
	if _, err := db.InsertVm("vm-uuid", "web-1", "{}"); err != nil {
		t.Fatalf("insert vm: %v", err)
	}

	f, err := NewFake(db, map[string]config.FakeDhcpPool{
		"eth0": {Subnet: "10.10.0.0/24", Range: "10.10.0.10-10.10.0.12"},
	})
	if err != nil {
		t.Fatalf("new fake: %v", err)
	}

	got, err := f.Allocate(context.Background(), "eth0", "web-1")
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if got != "10.10.0.10/24" {
		t.Errorf("got %q, want 10.10.0.10/24", got)
	}
}

func TestFakeAllocateAvoidsTakenAddresses(t *testing.T) {
	db := testRegistry(t)
	if _, err := db.InsertVm("vm-uuid-1", "web-1", "{}"); err != nil {
		t.Fatalf("insert vm 1: %v", err)
	}
	if _, err := db.InsertVm("vm-uuid-2", "web-2", "{}"); err != nil {
		t.Fatalf("insert vm 2: %v", err)
	}

	f, err := NewFake(db, map[string]config.FakeDhcpPool{
		"eth0": {Subnet: "10.10.0.0/24", Range: "10.10.0.10-10.10.0.12"},
	})
	if err != nil {
		t.Fatalf("new fake: %v", err)
	}

	first, err := f.Allocate(context.Background(), "eth0", "web-1")
	if err != nil {
		t.Fatalf("allocate first: %v", err)
	}
	second, err := f.Allocate(context.Background(), "eth0", "web-2")
	if err != nil {
		t.Fatalf("allocate second: %v", err)
	}
	if first == second {
		t.Errorf("expected distinct addresses, both got %q", first)
	}
}

func TestFakeAllocatePoolExhausted(t *testing.T) {
	db := testRegistry(t)
	if _, err := db.InsertVm("vm-uuid-1", "web-1", "{}"); err != nil {
		t.Fatalf("insert vm 1: %v", err)
	}
	if _, err := db.InsertVm("vm-uuid-2", "web-2", "{}"); err != nil {
		t.Fatalf("insert vm 2: %v", err)
	}

	f, err := NewFake(db, map[string]config.FakeDhcpPool{
		"eth0": {Subnet: "10.10.0.0/24", Range: "10.10.0.10-10.10.0.10"},
	})
	if err != nil {
		t.Fatalf("new fake: %v", err)
	}

	if _, err := f.Allocate(context.Background(), "eth0", "web-1"); err != nil {
		t.Fatalf("allocate first: %v", err)
	}
	if _, err := f.Allocate(context.Background(), "eth0", "web-2"); err == nil {
		t.Fatal("expected pool-exhausted error")
	}
}

func TestFakeAllocateUnknownPool(t *testing.T) {
	db := testRegistry(t)
	if _, err := db.InsertVm("vm-uuid", "web-1", "{}"); err != nil {
		t.Fatalf("insert vm: %v", err)
	}

	f, err := NewFake(db, nil)
	if err != nil {
		t.Fatalf("new fake: %v", err)
	}

	if _, err := f.Allocate(context.Background(), "missing", "web-1"); err == nil {
		t.Fatal("expected error for unconfigured network name")
	}
}

func TestFakeRelease(t *testing.T) {
	db := testRegistry(t)
	vmID, err := db.InsertVm("vm-uuid", "web-1", "{}")
	if err != nil {
		t.Fatalf("insert vm: %v", err)
	}

	f, err := NewFake(db, map[string]config.FakeDhcpPool{
		"eth0": {Subnet: "10.10.0.0/24", Range: "10.10.0.10-10.10.0.12"},
	})
	if err != nil {
		t.Fatalf("new fake: %v", err)
	}

	if _, err := f.Allocate(context.Background(), "eth0", "web-1"); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if err := f.Release(context.Background(), "web-1"); err != nil {
		t.Fatalf("release: %v", err)
	}

	leases, err := db.LeasesForVm(vmID)
	if err != nil {
		t.Fatalf("leases for vm: %v", err)
	}
	if len(leases) != 0 {
		t.Errorf("leases = %v, want none after release", leases)
	}
}

func TestNewFakeInvalidSubnet(t *testing.T) {
	db := testRegistry(t)
	if _, err := NewFake(db, map[string]config.FakeDhcpPool{
		"eth0": {Subnet: "not-a-cidr", Range: "10.10.0.10-10.10.0.12"},
	}); err == nil {
		t.Fatal("expected error for invalid subnet")
	}
}

func TestNewFakeInvalidRange(t *testing.T) {
	db := testRegistry(t)
	if _, err := NewFake(db, map[string]config.FakeDhcpPool{
		"eth0": {Subnet: "10.10.0.0/24", Range: "not-a-range"},
	}); err == nil {
		t.Fatal("expected error for invalid range")
	}
}
