package federation

import "github.com/virshle/virshle/internal/vm"

// Filter narrows an aggregated VM list post-hoc (spec.md §4.7: "Filtering
// happens after aggregation: by node name, by VM state, by owning
// account"). Any zero-valued field is not applied.
type Filter struct {
	NodeName string
	State    *vm.State
	Owner    string
}

// NodeVm pairs a VM with the node it was fetched from.
type NodeVm struct {
	Node string
	Vm   vm.Vm
}

// Apply filters vms in place order, returning the matching subset.
func (f Filter) Apply(vms []NodeVm) []NodeVm {
	out := make([]NodeVm, 0, len(vms))
	for _, nv := range vms {
		if f.NodeName != "" && nv.Node != f.NodeName {
			continue
		}
		if f.State != nil && nv.Vm.State != *f.State {
			continue
		}
		if f.Owner != "" && nv.Vm.AccountUuid != f.Owner {
			continue
		}
		out = append(out, nv)
	}
	return out
}
