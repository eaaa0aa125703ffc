package extbin

import (
	"context"
	"fmt"
)

// InterfaceType mirrors the original's OvsInterfaceType: the `type=` column
// ovs-vsctl accepts when adding a port's interface.
type InterfaceType int

const (
	InterfaceSystem InterfaceType = iota
	InterfaceInternal
	InterfacePatch
	InterfaceDpdkVhostUserClient
	InterfaceTap
)

func (t InterfaceType) String() string {
	switch t {
	case InterfaceInternal:
		return "internal"
	case InterfacePatch:
		return "patch"
	case InterfaceDpdkVhostUserClient:
		return "dpdkvhostuserclient"
	case InterfaceTap:
		return "tap"
	default:
		return "system"
	}
}

// BridgeBuilder builds and runs `ovs-vsctl` bridge commands, grounded on
// virshle_core/src/network/ovs/request.rs's OvsBridgeBuilder.
type BridgeBuilder struct {
	name string
}

// Bridge starts building a command against the named bridge.
func Bridge(name string) *BridgeBuilder { return &BridgeBuilder{name: name} }

// Create runs `ovs-vsctl -- --may-exist add-br {name}`.
func (b *BridgeBuilder) Create(ctx context.Context) error {
	_, err := Run(ctx, "ovs-vsctl", "--", "--may-exist", "add-br", b.name)
	return err
}

// Delete runs `ovs-vsctl -- --if-exists del-br {name}`.
func (b *BridgeBuilder) Delete(ctx context.Context) error {
	_, err := Run(ctx, "ovs-vsctl", "--", "--if-exists", "del-br", b.name)
	return err
}

// Get runs `ovs-vsctl -f json -- --if-exists list bridge {name}` and
// decodes the result via ToJSON.
func (b *BridgeBuilder) Get(ctx context.Context) ([]map[string]any, error) {
	out, err := Run(ctx, "ovs-vsctl", "-f", "json", "--", "--if-exists", "list", "bridge", b.name)
	if err != nil {
		return nil, err
	}
	return ToJSON([]byte(out))
}

// InterfaceBuilder builds and runs `ovs-vsctl` port/interface commands,
// grounded on the original's OvsInterfaceBuilder.
type InterfaceBuilder struct {
	bridge     string
	name       string
	ifaceType  InterfaceType
	peer       string
	socketPath string
}

// Interface starts building a command for the named port/interface.
func Interface(name string) *InterfaceBuilder { return &InterfaceBuilder{name: name} }

func (i *InterfaceBuilder) Bridge(bridge string) *InterfaceBuilder {
	i.bridge = bridge
	return i
}

func (i *InterfaceBuilder) Type(t InterfaceType) *InterfaceBuilder {
	i.ifaceType = t
	return i
}

// Peer sets the patch-port peer name (only meaningful with InterfacePatch).
func (i *InterfaceBuilder) Peer(peer string) *InterfaceBuilder {
	i.peer = peer
	return i
}

// SocketPath sets the vhost-user socket path (only meaningful with
// InterfaceDpdkVhostUserClient).
func (i *InterfaceBuilder) SocketPath(path string) *InterfaceBuilder {
	i.socketPath = path
	return i
}

// Create runs
//   ovs-vsctl -- --may-exist add-port {bridge} {name} -- set interface {name} type={t} [options:...]
func (i *InterfaceBuilder) Create(ctx context.Context) error {
	args := []string{"--", "--may-exist", "add-port", i.bridge, i.name,
		"--", "set", "interface", i.name, "type=" + i.ifaceType.String()}
	switch i.ifaceType {
	case InterfacePatch:
		args = append(args, fmt.Sprintf("options:peer=%s", i.peer))
	case InterfaceDpdkVhostUserClient:
		args = append(args, fmt.Sprintf("options:vhost-server-path=%s", i.socketPath))
	}
	_, err := Run(ctx, "ovs-vsctl", args...)
	return err
}

// Delete runs `ovs-vsctl -- --if-exists del-port {bridge} {name}`.
func (i *InterfaceBuilder) Delete(ctx context.Context) error {
	args := []string{"--", "--if-exists", "del-port"}
	if i.bridge != "" {
		args = append(args, i.bridge)
	}
	args = append(args, i.name)
	_, err := Run(ctx, "ovs-vsctl", args...)
	return err
}

// Get runs `ovs-vsctl -f json -- --if-exists list port {name}` and decodes
// the result via ToJSON.
func (i *InterfaceBuilder) Get(ctx context.Context) ([]map[string]any, error) {
	out, err := Run(ctx, "ovs-vsctl", "-f", "json", "--", "--if-exists", "list", "port", i.name)
	if err != nil {
		return nil, err
	}
	return ToJSON([]byte(out))
}
