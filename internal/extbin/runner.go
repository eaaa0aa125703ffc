// Package extbin wraps the external binaries virshle shells out to: ip,
// ovs-vsctl, and mkfs.vfat/mount for first-boot init disks. Grounded on the
// teacher's internal/vmm/cloudhv.go runCmd/exec.Command idiom and on
// virshle_core/src/network/{ovs,utils}.rs in the original implementation.
package extbin

import (
	"context"
	"os/exec"
	"strings"

	"github.com/virshle/virshle/internal/virrors"
)

// Release is set at build time (via -ldflags) to indicate a release build.
// Matches the original's #[cfg(debug_assertions)] gate on the "sudo" prefix:
// non-release (debug) builds prepend sudo, release builds assume the daemon
// already runs with sufficient privilege.
var Release = false

// Run executes name with args, returning combined-trimmed stdout on success
// or a virrors.Error wrapping stderr on failure.
func Run(ctx context.Context, name string, args ...string) (string, error) {
	if !Release {
		args = append([]string{name}, args...)
		name = "sudo"
	}
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", virrors.Wrap(err, "command failed: "+name+" "+strings.Join(args, " "), strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}
