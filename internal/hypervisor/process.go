package hypervisor

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/virshle/virshle/internal/virrors"
)

// SpawnTimeout bounds how long Spawn waits for the control socket to
// appear after forking the hypervisor binary.
const SpawnTimeout = 5 * time.Second

// Spawn starts a cloud-hypervisor process bound to apiSocket and waits for
// the control socket to appear, mirroring the teacher's
// internal/vmm/cloudhv.go StartVM subprocess-spawn idiom. The process is
// detached (not a child the caller waits on) so it survives the daemon
// restarting.
func Spawn(ctx context.Context, bin, apiSocket string) (*os.Process, error) {
	os.Remove(apiSocket)

	cmd := exec.Command(bin, "--api-socket", apiSocket)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return nil, virrors.Wrap(err, "couldn't spawn cloud-hypervisor", bin)
	}

	if err := WaitForSocket(ctx, apiSocket, SpawnTimeout); err != nil {
		cmd.Process.Kill()
		return nil, err
	}

	return cmd.Process, nil
}

// KillByUuid finds the cloud-hypervisor process owning vmUuid — matched by
// its argv containing both "cloud-hypervisor" and the uuid, per spec.md
// §4.5 — and kills it. Not finding a match is not an error: the process may
// already be gone.
func KillByUuid(ctx context.Context, vmUuid string) error {
	out, err := exec.CommandContext(ctx, "ps", "-eo", "pid,args").Output()
	if err != nil {
		return virrors.Wrap(err, "couldn't list processes", "")
	}

	for _, line := range strings.Split(string(out), "\n") {
		if !strings.Contains(line, "cloud-hypervisor") || !strings.Contains(line, vmUuid) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		proc, err := os.FindProcess(atoiOrZero(fields[0]))
		if err != nil {
			continue
		}
		proc.Kill()
	}
	return nil
}

func atoiOrZero(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}
