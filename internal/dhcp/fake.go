package dhcp

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/virshle/virshle/internal/config"
	"github.com/virshle/virshle/internal/registry"
	"github.com/virshle/virshle/internal/virrors"
)

// Fake is an in-process pool allocator: one subnet + address range per
// network attachment name, handed out sequentially and persisted to the
// lease table so a daemon restart doesn't reuse a live address.
type Fake struct {
	mu    sync.Mutex
	db    *registry.DB
	pools map[string]pool
}

type pool struct {
	subnet *net.IPNet
	start  net.IP
	end    net.IP
}

// NewFake builds a Fake allocator from the configured pools.
func NewFake(db *registry.DB, pools map[string]config.FakeDhcpPool) (*Fake, error) {
	f := &Fake{db: db, pools: make(map[string]pool, len(pools))}
	for netName, p := range pools {
		_, subnet, err := net.ParseCIDR(p.Subnet)
		if err != nil {
			return nil, virrors.Wrap(err, "invalid dhcp pool subnet", p.Subnet)
		}
		start, end, err := parseRange(p.Range)
		if err != nil {
			return nil, err
		}
		f.pools[netName] = pool{subnet: subnet, start: start, end: end}
	}
	return f, nil
}

func parseRange(r string) (net.IP, net.IP, error) {
	startStr, endStr, found := strings.Cut(r, "-")
	if !found {
		return nil, nil, virrors.New("invalid dhcp pool range", r+" (expected start-end)")
	}
	start := net.ParseIP(strings.TrimSpace(startStr))
	end := net.ParseIP(strings.TrimSpace(endStr))
	if start == nil || end == nil {
		return nil, nil, virrors.New("invalid dhcp pool range", r)
	}
	return start, end, nil
}

// Allocate hands out the next free address in netName's pool, records it in
// the lease table against vmName, and returns it as a CIDR string.
func (f *Fake) Allocate(ctx context.Context, netName, vmName string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.pools[netName]
	if !ok {
		return "", virrors.New("no dhcp pool configured", netName)
	}

	row, err := f.db.GetVmByName(vmName)
	if err != nil {
		return "", virrors.Wrap(err, "couldn't resolve vm for lease allocation", vmName)
	}
	rows, err := f.db.ListVm()
	if err != nil {
		return "", err
	}
	taken := make(map[string]bool)
	for _, r := range rows {
		existing, err := f.db.LeasesForVm(r.ID)
		if err != nil {
			return "", err
		}
		for _, l := range existing {
			taken[l.Ip] = true
		}
	}

	ones, bits := p.subnet.Mask.Size()
	for ip := cloneIP(p.start); ipLessOrEqual(ip, p.end); incIP(ip) {
		if taken[ip.String()] {
			continue
		}
		if err := f.db.InsertLease(row.ID, ip.String()); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s/%d", ip.String(), ones), nil
	}
	return "", virrors.New("dhcp pool exhausted", fmt.Sprintf("%s (/%d)", netName, bits))
}

// Release deletes every lease recorded for vmName. Best-effort: a missing
// VM row is not an error.
func (f *Fake) Release(ctx context.Context, vmName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	row, err := f.db.GetVmByName(vmName)
	if err != nil {
		return nil
	}
	return f.db.DeleteLeasesForVm(row.ID)
}

func cloneIP(ip net.IP) net.IP {
	out := make(net.IP, len(ip))
	copy(out, ip)
	return out
}

func incIP(ip net.IP) {
	for i := len(ip) - 1; i >= 0; i-- {
		ip[i]++
		if ip[i] != 0 {
			return
		}
	}
}

func ipLessOrEqual(a, b net.IP) bool {
	a4, b4 := a.To4(), b.To4()
	if a4 != nil && b4 != nil {
		for i := range a4 {
			if a4[i] != b4[i] {
				return a4[i] < b4[i]
			}
		}
		return true
	}
	return false
}
