// Package dhcp implements the two DHCP backends spec.md §6/§11 names: an
// in-process Fake pool allocator and a Kea REST client. Grounded on
// virshle_core/src/network/dhcp/{fake,kea,lease}.rs in the original
// implementation.
package dhcp

import "context"

// Allocator is the common surface internal/vm's lifecycle state machine
// drives: allocate an address for a new attachment, and best-effort release
// every address held by a VM on delete (spec.md §4.5 "best-effort release
// DHCP leases").
type Allocator interface {
	Allocate(ctx context.Context, netName, vmName string) (string, error)
	Release(ctx context.Context, vmName string) error
}
