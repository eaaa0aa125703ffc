package registry

import "testing"

func TestInsertAndGetAccount(t *testing.T) {
	db := testDB(t)

	id, err := db.InsertAccount("acct-uuid-1")
	if err != nil {
		t.Fatalf("insert account: %v", err)
	}

	got, err := db.GetAccountByUuid("acct-uuid-1")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if got.ID != id {
		t.Errorf("id = %d, want %d", got.ID, id)
	}
}

func TestGetAccountNotFound(t *testing.T) {
	db := testDB(t)

	if _, err := db.GetAccountByUuid("missing"); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestLinkAccountVmIsIdempotent(t *testing.T) {
	db := testDB(t)

	vmID, err := db.InsertVm("vm-uuid", "web-1", "{}")
	if err != nil {
		t.Fatalf("insert vm: %v", err)
	}
	acctID, err := db.InsertAccount("acct-uuid")
	if err != nil {
		t.Fatalf("insert account: %v", err)
	}

	if err := db.LinkAccountVm(acctID, vmID); err != nil {
		t.Fatalf("link account vm: %v", err)
	}
	// Relinking the same pair must not error (INSERT OR IGNORE).
	if err := db.LinkAccountVm(acctID, vmID); err != nil {
		t.Fatalf("relink account vm: %v", err)
	}

	owner, err := db.AccountUuidForVm(vmID)
	if err != nil {
		t.Fatalf("account uuid for vm: %v", err)
	}
	if owner != "acct-uuid" {
		t.Errorf("owner = %q, want acct-uuid", owner)
	}
}

func TestAccountUuidForVmUnowned(t *testing.T) {
	db := testDB(t)

	vmID, err := db.InsertVm("vm-uuid", "web-1", "{}")
	if err != nil {
		t.Fatalf("insert vm: %v", err)
	}

	owner, err := db.AccountUuidForVm(vmID)
	if err != nil {
		t.Fatalf("account uuid for vm: %v", err)
	}
	if owner != "" {
		t.Errorf("owner = %q, want empty for unowned vm", owner)
	}
}
