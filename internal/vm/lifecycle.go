package vm

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/virshle/virshle/internal/config"
	"github.com/virshle/virshle/internal/dhcp"
	"github.com/virshle/virshle/internal/extbin"
	"github.com/virshle/virshle/internal/hypervisor"
	"github.com/virshle/virshle/internal/image"
	"github.com/virshle/virshle/internal/network"
	"github.com/virshle/virshle/internal/registry"
	"github.com/virshle/virshle/internal/virrors"
)

// Manager drives the lifecycle state machine from spec.md §4.5, wiring
// together the persistent store, the network fabric controller, and a
// per-VM hypervisor process.
type Manager struct {
	cfg    *config.Config
	db     *registry.DB
	net    *network.Controller
	dhcp   dhcp.Allocator // nil when no [dhcp] backend is configured
	images *image.Cache   // nil when no template ever sets Disk.ImageRef
}

// NewManager builds a Manager. dhcpAllocator and images may be nil.
func NewManager(cfg *config.Config, db *registry.DB, net *network.Controller, dhcpAllocator dhcp.Allocator, images *image.Cache) *Manager {
	return &Manager{cfg: cfg, db: db, net: net, dhcp: dhcpAllocator, images: images}
}

// Selector identifies a VM by exactly one of Id/Uuid/Name (spec.md §4.8).
type Selector struct {
	Id   int64
	Uuid string
	Name string
}

func (m *Manager) resolve(sel Selector) (*registry.VmRow, error) {
	switch {
	case sel.Uuid != "":
		return m.db.GetVmByUuid(sel.Uuid)
	case sel.Name != "":
		return m.db.GetVmByName(sel.Name)
	case sel.Id != 0:
		return m.db.GetVmByID(sel.Id)
	default:
		return nil, virrors.New("ambiguous selector", "exactly one of id, uuid, or name must be supplied")
	}
}

// Create inserts a new VM from a template: a row, a {disk,net} storage
// tree, and copies of the template's disks (mode 0o766). Returns it in
// state Created (spec.md §4.5 "create").
func (m *Manager) Create(ctx context.Context, tmpl *config.VmTemplate) (*Vm, error) {
	v := &Vm{
		Uuid: uuid.New(),
		Name: tmpl.Name,
		Vcpu: tmpl.Vcpu,
		Vram: tmpl.Vram,
	}
	for _, net := range tmpl.Net {
		v.Net = append(v.Net, network.Net{Name: net.Name, Kind: parseNetKind(net.Kind)})
	}

	root := m.cfg.VmRoot(v.Uuid.String())
	diskDir := filepath.Join(root, "disk")
	netDir := filepath.Join(root, "net")
	if err := os.MkdirAll(diskDir, 0o755); err != nil {
		return nil, virrors.Wrap(err, "couldn't build vm disk directory", diskDir)
	}
	if err := os.MkdirAll(netDir, 0o755); err != nil {
		return nil, virrors.Wrap(err, "couldn't build vm net directory", netDir)
	}

	for _, d := range tmpl.Disk {
		dest := filepath.Join(diskDir, d.Name)
		if d.ImageRef != "" {
			if m.images == nil {
				return nil, virrors.New("disk references an oci image but no image cache is configured", d.ImageRef)
			}
			src, _, err := m.images.GetOrPull(ctx, d.ImageRef)
			if err != nil {
				return nil, virrors.Wrap(err, "couldn't resolve disk image", d.ImageRef)
			}
			if err := copyDisk(src, dest); err != nil {
				return nil, err
			}
		} else {
			if err := copyDisk(d.Path, dest); err != nil {
				return nil, err
			}
		}
		v.Disk = append(v.Disk, Disk{Name: d.Name, Path: dest})
	}

	definition, err := v.Definition()
	if err != nil {
		return nil, virrors.Wrap(err, "couldn't encode vm definition", "")
	}
	id, err := m.db.InsertVm(v.Uuid.String(), v.Name, definition)
	if err != nil {
		return nil, err
	}
	v.Id = id
	v.State = Created
	return v, nil
}

func copyDisk(src, dest string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return virrors.Wrap(err, "couldn't read template disk", src)
	}
	if err := os.WriteFile(dest, data, 0o766); err != nil {
		return virrors.Wrap(err, "couldn't copy template disk", dest)
	}
	return os.Chmod(dest, 0o766)
}

func parseNetKind(s string) network.Kind {
	switch s {
	case "vhost":
		return network.Vhost
	case "macvtap":
		return network.MacVTap
	default:
		return network.Tap
	}
}

// Start builds/refreshes this VM's OVS ports, spawns its hypervisor
// process, optionally writes a first-boot init disk, and boots it
// (spec.md §4.5 "start").
func (m *Manager) Start(ctx context.Context, sel Selector, userData map[string][]byte) (*Vm, error) {
	row, err := m.resolve(sel)
	if err != nil {
		return nil, err
	}
	v, err := ParseDefinition(row.Definition)
	if err != nil {
		return nil, virrors.Wrap(err, "couldn't decode stored vm definition", row.Name)
	}
	v.Id = row.ID

	root := m.cfg.VmRoot(v.Uuid.String())
	apiSocket := filepath.Join(root, "ch.sock")
	vsockSocket := filepath.Join(root, "ch.vsock")

	netConfigs := make([]hypervisor.NetConfig, 0, len(v.Net))
	for i := range v.Net {
		n := &v.Net[i]
		portName, err := m.net.Attach(ctx, v.Name, filepath.Join(root, "net"), *n)
		if err != nil {
			return nil, err
		}
		mac, err := network.UuidToMac(v.Uuid)
		if err != nil {
			return nil, err
		}
		if m.dhcp != nil && n.Kind == network.Tap {
			ip, err := m.dhcp.Allocate(ctx, n.Name, v.Name)
			if err != nil {
				return nil, virrors.Wrap(err, "couldn't allocate dhcp lease", n.Name)
			}
			n.IPv4 = ip
		}
		netConfigs = append(netConfigs, hypervisor.NetConfigFor(*n, portName, mac.String(), filepath.Join(root, "net")))
	}

	// Persist the dhcp-assigned IPv4s so a later get_info/list reflects them,
	// before the userData init disk (never persisted, rebuilt every start)
	// is appended below.
	if definition, err := v.Definition(); err == nil {
		if err := m.db.UpdateVmDefinition(v.Id, definition); err != nil {
			log.Printf("vm %s: couldn't persist post-allocation definition: %v", v.Name, err)
		}
	}

	if _, err := hypervisor.Spawn(ctx, m.cfg.CloudHypervisorBin, apiSocket); err != nil {
		return nil, err
	}

	if len(userData) > 0 {
		initDiskPath := filepath.Join(root, "tmp", "init.vfat")
		if err := extbin.BuildInitDisk(ctx, initDiskPath, 4, userData); err != nil {
			return nil, err
		}
		v.Disk = append(v.Disk, Disk{Name: "init", Path: initDiskPath})
	}

	disks := make([]hypervisor.DiskConfig, 0, len(v.Disk))
	for _, d := range v.Disk {
		disks = append(disks, hypervisor.DiskConfig{Path: d.Path})
	}

	chCfg := &hypervisor.VmConfig{
		Cpus:    hypervisor.VcpusFor(v.Vcpu),
		Memory:  hypervisor.MemoryFor(v.Vram),
		Payload: hypervisor.PayloadDefault(),
		Disks:   disks,
		Net:     netConfigs,
		Vsock:   hypervisor.VsockFor(v.Id, vsockSocket),
		Serial:  hypervisor.ConsoleConfig{Mode: "Tty"},
		Console: hypervisor.ConsoleConfig{Mode: "Off"},
	}

	client := hypervisor.NewClient(apiSocket)
	if err := client.Create(ctx, chCfg); err != nil {
		return nil, err
	}
	if err := client.Boot(ctx); err != nil {
		return nil, err
	}

	v.State = Running
	return v, nil
}

// GetInfo reads the hypervisor-reported state for a VM. Transport errors
// (process not running, socket absent) coalesce to NotCreated rather than
// propagating, per spec.md §4.5 "get_info".
func (m *Manager) GetInfo(ctx context.Context, sel Selector) (*Vm, error) {
	row, err := m.resolve(sel)
	if err != nil {
		return nil, err
	}
	v, err := ParseDefinition(row.Definition)
	if err != nil {
		return nil, virrors.Wrap(err, "couldn't decode stored vm definition", row.Name)
	}
	v.Id = row.ID
	if owner, err := m.db.AccountUuidForVm(v.Id); err == nil && owner != "" {
		v.AccountUuid = owner
	}

	apiSocket := filepath.Join(m.cfg.VmRoot(v.Uuid.String()), "ch.sock")
	info, err := hypervisor.NewClient(apiSocket).Info(ctx)
	if err != nil {
		v.State = NotCreated
		return v, nil
	}
	v.State = ParseState(info.State)
	return v, nil
}

// Shutdown requests a graceful guest halt. A non-success hypervisor
// response is logged, not surfaced (spec.md §4.5 "shutdown").
func (m *Manager) Shutdown(ctx context.Context, sel Selector) (*Vm, error) {
	row, err := m.resolve(sel)
	if err != nil {
		return nil, err
	}
	v, err := ParseDefinition(row.Definition)
	if err != nil {
		return nil, virrors.Wrap(err, "couldn't decode stored vm definition", row.Name)
	}
	v.Id = row.ID

	apiSocket := filepath.Join(m.cfg.VmRoot(v.Uuid.String()), "ch.sock")
	if err := hypervisor.NewClient(apiSocket).Shutdown(ctx); err != nil {
		log.Printf("vm %s: shutdown request did not succeed: %v", v.Name, err)
	}
	v.State = Shutdown
	return v, nil
}

// Delete tears a VM down: kill the hypervisor process, release network
// ports/taps, best-effort release DHCP leases, remove disks, remove the
// storage subtree, then delete the row. This ordering is deliberately
// optimistic — later steps proceed even if earlier ones fail, because row
// removal must succeed so the caller is never left with an undeletable
// phantom (spec.md §4.5 "delete").
func (m *Manager) Delete(ctx context.Context, sel Selector) error {
	row, err := m.resolve(sel)
	if err != nil {
		return err
	}
	v, err := ParseDefinition(row.Definition)
	if err != nil {
		v = &Vm{Uuid: uuid.Nil, Name: row.Name}
	}

	if v.Uuid != uuid.Nil {
		if err := hypervisor.KillByUuid(ctx, v.Uuid.String()); err != nil {
			log.Printf("vm %s: kill failed: %v", v.Name, err)
		}
	}

	root := m.cfg.VmRoot(v.Uuid.String())
	for _, n := range v.Net {
		m.net.Detach(ctx, v.Name, filepath.Join(root, "net"), n)
	}

	if m.dhcp != nil {
		if err := m.dhcp.Release(ctx, v.Name); err != nil {
			log.Printf("vm %s: dhcp lease release failed: %v", v.Name, err)
		}
	}
	if err := m.db.DeleteLeasesForVm(row.ID); err != nil {
		log.Printf("vm %s: local lease cleanup failed: %v", v.Name, err)
	}

	if err := os.RemoveAll(root); err != nil && !isNotExist(err) {
		log.Printf("vm %s: storage cleanup failed: %v", v.Name, err)
	}

	return m.db.DeleteVm(row.ID)
}

func isNotExist(err error) bool {
	return err != nil && os.IsNotExist(err)
}
