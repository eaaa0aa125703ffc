package federation

import (
	"testing"

	"github.com/virshle/virshle/internal/vm"
)

func TestFilterApplyByNodeName(t *testing.T) {
	pairs := []NodeVm{
		{Node: "a", Vm: vm.Vm{Name: "vm-1"}},
		{Node: "b", Vm: vm.Vm{Name: "vm-2"}},
	}

	got := Filter{NodeName: "a"}.Apply(pairs)
	if len(got) != 1 || got[0].Vm.Name != "vm-1" {
		t.Errorf("got %+v", got)
	}
}

func TestFilterApplyByState(t *testing.T) {
	running := vm.Running
	pairs := []NodeVm{
		{Node: "a", Vm: vm.Vm{Name: "vm-1", State: vm.Running}},
		{Node: "a", Vm: vm.Vm{Name: "vm-2", State: vm.NotCreated}},
	}

	got := Filter{State: &running}.Apply(pairs)
	if len(got) != 1 || got[0].Vm.Name != "vm-1" {
		t.Errorf("got %+v", got)
	}
}

func TestFilterApplyByOwner(t *testing.T) {
	pairs := []NodeVm{
		{Node: "a", Vm: vm.Vm{Name: "vm-1", AccountUuid: "acct-1"}},
		{Node: "a", Vm: vm.Vm{Name: "vm-2", AccountUuid: "acct-2"}},
	}

	got := Filter{Owner: "acct-2"}.Apply(pairs)
	if len(got) != 1 || got[0].Vm.Name != "vm-2" {
		t.Errorf("got %+v", got)
	}
}

func TestFilterApplyNoFiltersReturnsAll(t *testing.T) {
	pairs := []NodeVm{
		{Node: "a", Vm: vm.Vm{Name: "vm-1"}},
		{Node: "b", Vm: vm.Vm{Name: "vm-2"}},
	}

	got := Filter{}.Apply(pairs)
	if len(got) != 2 {
		t.Errorf("len = %d, want 2", len(got))
	}
}

func TestFilterApplyCombinesConditions(t *testing.T) {
	running := vm.Running
	pairs := []NodeVm{
		{Node: "a", Vm: vm.Vm{Name: "vm-1", State: vm.Running, AccountUuid: "acct-1"}},
		{Node: "a", Vm: vm.Vm{Name: "vm-2", State: vm.Running, AccountUuid: "acct-2"}},
		{Node: "b", Vm: vm.Vm{Name: "vm-3", State: vm.Running, AccountUuid: "acct-1"}},
	}

	got := Filter{NodeName: "a", State: &running, Owner: "acct-1"}.Apply(pairs)
	if len(got) != 1 || got[0].Vm.Name != "vm-1" {
		t.Errorf("got %+v", got)
	}
}
