package registry

import (
	"database/sql"
	"errors"

	"github.com/virshle/virshle/internal/virrors"
)

// AccountRow is one row of the account table — just an opaque uuid; account
// metadata (name, quota, ...) lives outside virshle's scope per spec.md.
type AccountRow struct {
	ID   int64
	Uuid string
}

// InsertAccount inserts a new account row and returns its assigned id.
func (d *DB) InsertAccount(uuid string) (int64, error) {
	res, err := d.db.Exec(`INSERT INTO account (uuid) VALUES (?)`, uuid)
	if err != nil {
		return 0, virrors.Wrap(err, "couldn't insert account row", uuid)
	}
	return res.LastInsertId()
}

func (d *DB) GetAccountByUuid(uuid string) (*AccountRow, error) {
	var r AccountRow
	err := d.db.QueryRow(`SELECT id, uuid FROM account WHERE uuid = ?`, uuid).Scan(&r.ID, &r.Uuid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, virrors.Wrap(err, "couldn't read account row", "")
	}
	return &r, nil
}

// LinkAccountVm inserts an account_vm junction row.
func (d *DB) LinkAccountVm(accountID, vmID int64) error {
	_, err := d.db.Exec(`INSERT OR IGNORE INTO account_vm (account_id, vm_id) VALUES (?, ?)`, accountID, vmID)
	if err != nil {
		return virrors.Wrap(err, "couldn't link account to vm", "")
	}
	return nil
}

// AccountUuidForVm returns the uuid of the account owning vmID, or "" if the
// VM has no owner.
func (d *DB) AccountUuidForVm(vmID int64) (string, error) {
	var uuid string
	err := d.db.QueryRow(`
		SELECT account.uuid FROM account
		JOIN account_vm ON account_vm.account_id = account.id
		WHERE account_vm.vm_id = ?
	`, vmID).Scan(&uuid)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", virrors.Wrap(err, "couldn't read vm owner", "")
	}
	return uuid, nil
}
