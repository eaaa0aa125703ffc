package network

import (
	"context"
	"os"

	"github.com/virshle/virshle/internal/extbin"
	"github.com/virshle/virshle/internal/virrors"
)

// DefaultSwitch is the OVS bridge name hosting every per-VM port unless the
// configuration names a different "VM switch" (spec.md §4.6).
const DefaultSwitch = "vmbr"

// Controller owns the single OVS bridge hosting every VM's ports.
type Controller struct {
	Switch string
}

// New returns a Controller bound to switchName, or DefaultSwitch if empty.
func New(switchName string) *Controller {
	if switchName == "" {
		switchName = DefaultSwitch
	}
	return &Controller{Switch: switchName}
}

// EnsureSwitch creates the VM switch bridge if it does not already exist.
func (c *Controller) EnsureSwitch(ctx context.Context) error {
	return extbin.Bridge(c.Switch).Create(ctx)
}

// Attach creates (or recreates) the port backing a VM network attachment,
// per spec.md §4.6: a stale port of the same name is removed first, then a
// dpdkvhostuserclient/tap/macvtap port is added depending on net.Kind.
func (c *Controller) Attach(ctx context.Context, vmName, vsockRoot string, net Net) (string, error) {
	portName := PortName(vmName, net.Name)

	// Idempotent-by-recreate: drop any stale port before adding.
	extbin.Interface(portName).Delete(ctx)

	switch net.Kind {
	case Vhost:
		socketPath := vsockRoot + "/" + UnixName(net.Name) + ".sock"
		if err := extbin.Interface(portName).
			Bridge(c.Switch).
			Type(extbin.InterfaceDpdkVhostUserClient).
			SocketPath(socketPath).
			Create(ctx); err != nil {
			return "", virrors.Wrap(err, "couldn't create vhost-user port", portName)
		}

	case Tap:
		if err := extbin.TapAdd(ctx, portName); err != nil {
			return "", virrors.Wrap(err, "couldn't create tap device", portName)
		}
		if err := extbin.LinkUp(ctx, portName); err != nil {
			return "", virrors.Wrap(err, "couldn't bring tap device up", portName)
		}
		if net.IPv4 != "" {
			if err := extbin.LinkSetAddress(ctx, portName, net.IPv4); err != nil {
				return "", virrors.Wrap(err, "couldn't assign tap address", portName)
			}
		}
		// A tap lives on an OVS bridge of type "system" (unlike a
		// vhost-user port, which requires a "netdev" bridge).
		if err := extbin.Interface(portName).Bridge(c.Switch).Type(extbin.InterfaceSystem).Create(ctx); err != nil {
			return "", virrors.Wrap(err, "couldn't attach tap device to switch", portName)
		}

	case MacVTap:
		uplink := net.Uplink
		if err := extbin.MacVTapAdd(ctx, portName, uplink); err != nil {
			return "", virrors.Wrap(err, "couldn't create macvtap device", portName)
		}
		if err := extbin.LinkUp(ctx, portName); err != nil {
			return "", virrors.Wrap(err, "couldn't bring macvtap device up", portName)
		}

	default:
		return "", virrors.New("unknown network attachment kind", "")
	}

	return portName, nil
}

// Detach removes a VM network attachment's port, tap/macvtap device, and
// (for Vhost) socket file. Symmetric with Attach and idempotent: missing
// resources are not an error (spec.md §4.6 "Deletion is symmetric and
// idempotent").
func (c *Controller) Detach(ctx context.Context, vmName, vsockRoot string, net Net) {
	portName := PortName(vmName, net.Name)

	extbin.Interface(portName).Delete(ctx)

	switch net.Kind {
	case Vhost:
		socketPath := vsockRoot + "/" + UnixName(net.Name) + ".sock"
		os.Remove(socketPath)
	case Tap, MacVTap:
		extbin.LinkDelete(ctx, portName)
	}
}
