package federation

import (
	"context"
	"encoding/json"
	"log"
	"runtime"

	"github.com/dustin/go-humanize"

	"github.com/virshle/virshle/internal/config"
)

// Saturation thresholds a node must stay under to be eligible for new VM
// placement, mirroring the original's MAX_*_RESERVATION constants.
const (
	maxCpuReservation  = 0.90
	maxRamReservation  = 0.90
	maxDiskReservation = 0.85
)

// NodeInfo is the subset of GET /node/info federation's best-node
// selection needs.
type NodeInfo struct {
	Cpus      int     `json:"cpus"`
	CpuUsed   float64 `json:"cpu_used"`
	RamBytes  int64   `json:"ram_bytes"`
	RamUsed   int64   `json:"ram_used"`
	DiskBytes int64   `json:"disk_bytes"`
	DiskUsed  int64   `json:"disk_used"`
}

func (i NodeInfo) cpuSaturated() bool {
	return i.Cpus == 0 || i.CpuUsed/float64(i.Cpus) >= maxCpuReservation
}

func (i NodeInfo) ramSaturated() bool {
	return i.RamBytes == 0 || float64(i.RamUsed)/float64(i.RamBytes) >= maxRamReservation
}

func (i NodeInfo) diskSaturated() bool {
	return i.DiskBytes == 0 || float64(i.DiskUsed)/float64(i.DiskBytes) >= maxDiskReservation
}

// Saturated reports whether the node is too loaded to accept new VMs.
func (i NodeInfo) Saturated() bool {
	return i.cpuSaturated() || i.ramSaturated() || i.diskSaturated()
}

// FreeRam is the headroom Best uses as its ranking weight.
func (i NodeInfo) FreeRam() int64 {
	return i.RamBytes - i.RamUsed
}

// Best queries every node's /node/info and returns the name of the
// least-saturated node with the most free RAM, or "" if every node is
// saturated or unreachable. Grounded on the original's
// config/node/best.rs Node::is_best, generalised from its stub
// (weight-only) form into a live probe across every configured node.
func Best(ctx context.Context, nodes []config.Node) string {
	results := Query(ctx, nodes, "/node/info")

	bestName := ""
	var bestFreeRam int64 = -1
	for _, r := range results {
		if r.Data == nil {
			continue
		}
		var info NodeInfo
		if err := json.Unmarshal(r.Data, &info); err != nil {
			log.Printf("federation: node %s: malformed /node/info: %v", r.Node.Name, err)
			continue
		}
		if info.Saturated() {
			continue
		}
		if free := info.FreeRam(); free > bestFreeRam {
			bestFreeRam = free
			bestName = r.Node.Name
		}
	}
	if bestName != "" {
		log.Printf("federation: best node is %s (%s free)", bestName, humanize.Bytes(uint64(bestFreeRam)))
	}
	return bestName
}

// LocalNodeInfo reports this process's own saturation snapshot. Only Cpus is
// filled in; CPU use, RAM and disk figures are all zero, so Saturated reports
// true for the returned value.
func LocalNodeInfo() NodeInfo {
	return NodeInfo{Cpus: runtime.NumCPU()}
}
