package registry

import "testing"

func TestInsertAndListLeases(t *testing.T) {
	db := testDB(t)

	vmID, err := db.InsertVm("vm-uuid", "web-1", "{}")
	if err != nil {
		t.Fatalf("insert vm: %v", err)
	}

	if err := db.InsertLease(vmID, "10.0.0.5"); err != nil {
		t.Fatalf("insert lease: %v", err)
	}
	if err := db.InsertLease(vmID, "10.0.0.6"); err != nil {
		t.Fatalf("insert second lease: %v", err)
	}

	leases, err := db.LeasesForVm(vmID)
	if err != nil {
		t.Fatalf("leases for vm: %v", err)
	}
	if len(leases) != 2 {
		t.Fatalf("len = %d, want 2", len(leases))
	}
}

func TestDeleteLeasesForVm(t *testing.T) {
	db := testDB(t)

	vmID, err := db.InsertVm("vm-uuid", "web-1", "{}")
	if err != nil {
		t.Fatalf("insert vm: %v", err)
	}
	if err := db.InsertLease(vmID, "10.0.0.5"); err != nil {
		t.Fatalf("insert lease: %v", err)
	}

	if err := db.DeleteLeasesForVm(vmID); err != nil {
		t.Fatalf("delete leases: %v", err)
	}

	leases, err := db.LeasesForVm(vmID)
	if err != nil {
		t.Fatalf("leases for vm: %v", err)
	}
	if len(leases) != 0 {
		t.Errorf("leases = %v, want none after delete", leases)
	}
}
