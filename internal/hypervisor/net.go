package hypervisor

import (
	"github.com/virshle/virshle/internal/network"
)

// NetConfigFor builds the per-NIC hypervisor config shape for one
// attachment, per spec.md §4.5 "Per-attachment NIC shape":
//   Vhost   -> vhost_user=true, vhost_mode=Server, vhost_socket={root}/vm/{uuid}/net/{name}.sock
//   Tap     -> external tap by name unix_name("vm-{vm}--{net}")
//   MacVTap -> external tap by name, queue count 2, no IP
func NetConfigFor(net network.Net, portName, mac, vsockRoot string) NetConfig {
	cfg := NetConfig{Id: net.Name, Mac: mac}

	switch net.Kind {
	case network.Vhost:
		cfg.VhostUser = true
		cfg.VhostMode = "Server"
		cfg.VhostSocket = vsockRoot + "/" + network.UnixName(net.Name) + ".sock"

	case network.Tap:
		cfg.Tap = portName

	case network.MacVTap:
		cfg.Tap = portName
		cfg.NumQueues = 2
	}

	return cfg
}
