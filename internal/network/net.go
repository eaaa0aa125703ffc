package network

// Kind tags the three attachment shapes a VM network interface can take,
// mirroring the original's NetType enum (not VmNet's older Tap/Bridge
// shape, which create.rs/delete.rs superseded).
type Kind int

const (
	Tap Kind = iota
	MacVTap
	Vhost
)

func (k Kind) String() string {
	switch k {
	case Tap:
		return "tap"
	case MacVTap:
		return "macvtap"
	case Vhost:
		return "vhost"
	default:
		return "unknown"
	}
}

// Net describes one VM network attachment.
type Net struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`

	// Tap: optional static IPv4 CIDR assigned from a Fake-DHCP pool.
	IPv4 string `json:"ipv4,omitempty"`

	// MacVTap: the uplink interface the macvtap is stacked on.
	Uplink string `json:"uplink,omitempty"`
}
