// Package network implements the network fabric controller: OVS bridge and
// port lifecycle, tap/macvtap/vhost-user attachment creation, and the
// deterministic name/MAC derivation helpers. Grounded on
// virshle_core/src/network/{utils,ovs/mod}.rs in the original implementation.
package network

import (
	"fmt"
	"net"
	"strings"

	"github.com/google/uuid"
)

// maxInterfaceName is the kernel IFNAMSIZ limit (minus the trailing NUL),
// per spec.md §4.5 "Name computation".
const maxInterfaceName = 15

// UnixName truncates an interface/port name to 15 bytes, the kernel's
// IFNAMSIZ limit. This is a plain truncation with no character
// substitution — callers MUST NOT assume uniqueness survives truncation
// (spec.md §8 S3: unix_name("vm-sasuke-uchiha--main") == "vm-sasuke-uchih").
func UnixName(name string) string {
	if len(name) <= maxInterfaceName {
		return name
	}
	return name[:maxInterfaceName]
}

// PortName computes the OVS port name for an attachment: unix_name of
// "vm-{vm}--{net}" (spec.md §4.6).
func PortName(vmName, netName string) string {
	return UnixName(fmt.Sprintf("vm-%s--%s", vmName, netName))
}

// UuidToMac deterministically derives a MAC address from a VM uuid: strip
// dashes, take the first 12 hex digits, insert colons every 2 characters,
// then overwrite the second character with 'e' to set the
// locally-administered bit and clear the multicast bit. Verified against
// spec.md §8 S2: c37b3266-9c59-42bb-8ecf-bdd643236a78 -> CE:7B:32:66:9C:59.
func UuidToMac(id uuid.UUID) (net.HardwareAddr, error) {
	hex := strings.ReplaceAll(id.String(), "-", "")
	if len(hex) < 12 {
		return nil, fmt.Errorf("uuid %s too short to derive a mac", id)
	}
	hex = hex[:12]

	var b strings.Builder
	for i := 0; i < 12; i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(hex[i : i+2])
	}
	mac := []byte(b.String())
	mac[1] = 'e'

	return net.ParseMAC(string(mac))
}
