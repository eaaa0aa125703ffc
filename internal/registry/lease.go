package registry

import "github.com/virshle/virshle/internal/virrors"

// LeaseRow correlates an externally-issued DHCP lease with a local VM
// (spec.md §4.4).
type LeaseRow struct {
	ID   int64
	VmID int64
	Ip   string
}

// InsertLease records a lease for vmID.
func (d *DB) InsertLease(vmID int64, ip string) error {
	_, err := d.db.Exec(`INSERT INTO lease (vm_id, ip) VALUES (?, ?)`, vmID, ip)
	if err != nil {
		return virrors.Wrap(err, "couldn't insert lease row", ip)
	}
	return nil
}

// LeasesForVm returns every lease recorded for vmID.
func (d *DB) LeasesForVm(vmID int64) ([]LeaseRow, error) {
	rows, err := d.db.Query(`SELECT id, vm_id, ip FROM lease WHERE vm_id = ?`, vmID)
	if err != nil {
		return nil, virrors.Wrap(err, "couldn't list lease rows", "")
	}
	defer rows.Close()

	var out []LeaseRow
	for rows.Next() {
		var r LeaseRow
		if err := rows.Scan(&r.ID, &r.VmID, &r.Ip); err != nil {
			return nil, virrors.Wrap(err, "couldn't scan lease row", "")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteLeasesForVm removes every lease recorded for vmID. Best-effort per
// spec.md §4.5 delete's "best-effort release DHCP leases".
func (d *DB) DeleteLeasesForVm(vmID int64) error {
	_, err := d.db.Exec(`DELETE FROM lease WHERE vm_id = ?`, vmID)
	if err != nil {
		return virrors.Wrap(err, "couldn't delete lease rows", "")
	}
	return nil
}
