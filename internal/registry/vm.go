package registry

import (
	"database/sql"
	"errors"

	"github.com/virshle/virshle/internal/virrors"
)

// ErrNotFound is returned by lookup methods when no row matches.
var ErrNotFound = errors.New("not found")

// VmRow is one row of the vm table. Definition is the VM's JSON-encoded
// value (spec.md §4.4 invariant: "definition MUST round-trip a VM value");
// internal/vm owns marshalling/unmarshalling it.
type VmRow struct {
	ID         int64
	Uuid       string
	Name       string
	Definition string
	CreatedAt  string
	UpdatedAt  string
}

// InsertVm inserts a new vm row and returns its assigned id.
func (d *DB) InsertVm(uuid, name, definition string) (int64, error) {
	res, err := d.db.Exec(
		`INSERT INTO vm (uuid, name, definition) VALUES (?, ?, ?)`,
		uuid, name, definition,
	)
	if err != nil {
		return 0, virrors.Wrap(err, "couldn't insert vm row", name)
	}
	return res.LastInsertId()
}

// UpdateVmDefinition overwrites a vm row's definition and bumps updated_at.
func (d *DB) UpdateVmDefinition(id int64, definition string) error {
	_, err := d.db.Exec(
		`UPDATE vm SET definition = ?, updated_at = datetime('now') WHERE id = ?`,
		definition, id,
	)
	if err != nil {
		return virrors.Wrap(err, "couldn't update vm row", "")
	}
	return nil
}

// DeleteVm removes a vm row by id. Cascades to account_vm and lease.
func (d *DB) DeleteVm(id int64) error {
	_, err := d.db.Exec(`DELETE FROM vm WHERE id = ?`, id)
	if err != nil {
		return virrors.Wrap(err, "couldn't delete vm row", "")
	}
	return nil
}

func (d *DB) GetVmByID(id int64) (*VmRow, error) {
	return d.scanVmRow(d.db.QueryRow(`SELECT id, uuid, name, definition, created_at, updated_at FROM vm WHERE id = ?`, id))
}

func (d *DB) GetVmByUuid(uuid string) (*VmRow, error) {
	return d.scanVmRow(d.db.QueryRow(`SELECT id, uuid, name, definition, created_at, updated_at FROM vm WHERE uuid = ?`, uuid))
}

func (d *DB) GetVmByName(name string) (*VmRow, error) {
	return d.scanVmRow(d.db.QueryRow(`SELECT id, uuid, name, definition, created_at, updated_at FROM vm WHERE name = ?`, name))
}

func (d *DB) scanVmRow(row *sql.Row) (*VmRow, error) {
	var r VmRow
	err := row.Scan(&r.ID, &r.Uuid, &r.Name, &r.Definition, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, virrors.Wrap(err, "couldn't read vm row", "")
	}
	return &r, nil
}

// ListVm returns every vm row, ordered by id.
func (d *DB) ListVm() ([]VmRow, error) {
	rows, err := d.db.Query(`SELECT id, uuid, name, definition, created_at, updated_at FROM vm ORDER BY id`)
	if err != nil {
		return nil, virrors.Wrap(err, "couldn't list vm rows", "")
	}
	defer rows.Close()

	var out []VmRow
	for rows.Next() {
		var r VmRow
		if err := rows.Scan(&r.ID, &r.Uuid, &r.Name, &r.Definition, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, virrors.Wrap(err, "couldn't scan vm row", "")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
