package extbin

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/virshle/virshle/internal/virrors"
)

// Link is one entry of `ip -j a`'s JSON array.
type Link struct {
	IfIndex   int    `json:"ifindex"`
	IfName    string `json:"ifname"`
	Flags     []string `json:"flags"`
	Address   string `json:"address"`
	LinkType  string `json:"link_type"`
}

// Links lists every network interface, mirroring `ip -j a`.
func Links(ctx context.Context) ([]Link, error) {
	out, err := Run(ctx, "ip", "-j", "a")
	if err != nil {
		return nil, err
	}
	var links []Link
	if err := json.Unmarshal([]byte(out), &links); err != nil {
		return nil, virrors.Wrap(err, "couldn't parse `ip -j a` output", "")
	}
	return links, nil
}

// DefaultRouteInterface returns the interface name carrying the default
// route, via `ip -j route show to default`.
func DefaultRouteInterface(ctx context.Context) (string, error) {
	out, err := Run(ctx, "ip", "-j", "route", "show", "to", "default")
	if err != nil {
		return "", err
	}
	var routes []struct {
		Dev string `json:"dev"`
	}
	if err := json.Unmarshal([]byte(out), &routes); err != nil {
		return "", virrors.Wrap(err, "couldn't parse `ip -j route` output", "")
	}
	if len(routes) == 0 || routes[0].Dev == "" {
		return "", virrors.New("no default route found", "is the host connected to a network?")
	}
	return routes[0].Dev, nil
}

// TapAdd creates a kernel tap device via `ip tuntap add dev {name} mode tap`.
func TapAdd(ctx context.Context, name string) error {
	_, err := Run(ctx, "ip", "tuntap", "add", "dev", name, "mode", "tap")
	return err
}

// MacVTapAdd creates a macvtap device stacked on top of the given uplink.
func MacVTapAdd(ctx context.Context, name, uplink string) error {
	_, err := Run(ctx, "ip", "link", "add", "link", uplink, "name", name, "type", "macvtap")
	return err
}

// LinkDelete removes any link (tap or macvtap) by name. Idempotent: an
// already-absent link is not an error.
func LinkDelete(ctx context.Context, name string) error {
	_, err := Run(ctx, "ip", "link", "delete", name)
	if err != nil && strings.Contains(err.Error(), "Cannot find device") {
		return nil
	}
	return err
}

// LinkUp brings the named interface up.
func LinkUp(ctx context.Context, name string) error {
	_, err := Run(ctx, "ip", "link", "set", name, "up")
	return err
}

// LinkSetAddress assigns an IPv4 address (CIDR form, e.g. "10.0.0.2/24") to
// the named interface.
func LinkSetAddress(ctx context.Context, name, cidr string) error {
	_, err := Run(ctx, "ip", "address", "add", cidr, "dev", name)
	return err
}
