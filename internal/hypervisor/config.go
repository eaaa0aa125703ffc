package hypervisor

// VmConfig is the JSON body PUT to /api/v1/vm.create. Shape and defaults
// follow spec.md §4.5 "Configuration generation for the hypervisor".
type VmConfig struct {
	Cpus    CpusConfig     `json:"cpus"`
	Memory  MemoryConfig   `json:"memory"`
	Payload PayloadConfig  `json:"payload"`
	Disks   []DiskConfig   `json:"disks,omitempty"`
	Net     []NetConfig    `json:"net,omitempty"`
	Vsock   *VsockConfig   `json:"vsock,omitempty"`
	Serial  ConsoleConfig  `json:"serial"`
	Console ConsoleConfig  `json:"console"`
}

type CpusConfig struct {
	BootVcpus int `json:"boot_vcpus"`
	MaxVcpus  int `json:"max_vcpus"`
}

type MemoryConfig struct {
	Size    int64          `json:"size"`
	Shared  bool           `json:"shared"`
	Hugepages bool         `json:"hugepages"`
	Balloon *BalloonConfig `json:"balloon,omitempty"`
}

type BalloonConfig struct {
	Size               int64 `json:"size"`
	DeflateOnOom       bool  `json:"deflate_on_oom"`
	FreePageReporting  bool  `json:"free_page_reporting"`
}

// hypervisorFwPath is the fixed kernel payload path spec.md §4.5 names.
const hypervisorFwPath = "/run/cloud-hypervisor/hypervisor-fw"

type PayloadConfig struct {
	Kernel  string `json:"kernel"`
	Cmdline string `json:"cmdline,omitempty"`
}

type DiskConfig struct {
	Path string `json:"path"`
}

type NetConfig struct {
	Id         string `json:"id,omitempty"`
	Mac        string `json:"mac,omitempty"`
	Tap        string `json:"tap,omitempty"`
	Ip         string `json:"ip,omitempty"`
	Mask       string `json:"mask,omitempty"`
	NumQueues  int    `json:"num_queues,omitempty"`
	VhostUser  bool   `json:"vhost_user,omitempty"`
	VhostMode  string `json:"vhost_mode,omitempty"`
	VhostSocket string `json:"vhost_socket,omitempty"`
}

type VsockConfig struct {
	Cid    uint64 `json:"cid"`
	Socket string `json:"socket"`
}

type ConsoleConfig struct {
	Mode string `json:"mode"`
}

// VcpusFor computes {boot_vcpus, max_vcpus} from a requested vCPU count:
// max_vcpus is always 2x boot (spec.md §4.5).
func VcpusFor(vcpu int) CpusConfig {
	return CpusConfig{BootVcpus: vcpu, MaxVcpus: 2 * vcpu}
}

const gib = 1 << 30

// MemoryFor computes the memory+balloon shape from a requested vRAM size in
// gibibytes: shared hugepages enabled, balloon sized to half of vRAM with
// deflate_on_oom and free_page_reporting (spec.md §4.5).
func MemoryFor(vramGiB int) MemoryConfig {
	size := int64(vramGiB) * gib
	return MemoryConfig{
		Size:      size,
		Shared:    true,
		Hugepages: true,
		Balloon: &BalloonConfig{
			Size:              size / 2,
			DeflateOnOom:      true,
			FreePageReporting: true,
		},
	}
}

// PayloadDefault is the canonical payload: the fixed hypervisor-fw path
// with no extra cmdline.
func PayloadDefault() PayloadConfig {
	return PayloadConfig{Kernel: hypervisorFwPath}
}

// VsockFor builds the vsock config when the VM's numeric node-local id is
// known: CID = 10{id} (spec.md §4.5). Returns nil when id is 0 (unknown),
// matching the original's Option<id> behavior.
func VsockFor(id int64, socketPath string) *VsockConfig {
	if id == 0 {
		return nil
	}
	// "10{id}" is string concatenation, not base-10 addition: id=7 -> 107,
	// id=42 -> 1042.
	cid := concatCid(id)
	return &VsockConfig{Cid: cid, Socket: socketPath}
}

func concatCid(id int64) uint64 {
	var out uint64 = 10
	digits := digitsOf(id)
	for _, d := range digits {
		out = out*10 + uint64(d)
	}
	return out
}

func digitsOf(id int64) []int {
	if id == 0 {
		return []int{0}
	}
	var digits []int
	for id > 0 {
		digits = append([]int{int(id % 10)}, digits...)
		id /= 10
	}
	return digits
}
