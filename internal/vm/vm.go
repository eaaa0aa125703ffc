// Package vm implements the VM aggregate and its lifecycle state machine
// (create/start/get_info/shutdown/delete), per spec.md §4.5. Grounded on
// virshle_core/src/cloud_hypervisor/vm/{mod,crud,create,delete}.rs in the
// original implementation and on the teacher's internal/vmm/cloudhv.go
// process-spawn/PUT-sequence idiom.
package vm

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/virshle/virshle/internal/network"
)

// State is the VM lifecycle state machine from spec.md §4.5.
type State int

const (
	NotCreated State = iota
	Created
	Running
	Shutdown
)

// ParseState maps a hypervisor-reported state string to a State. Unknown
// strings map to NotCreated rather than Running — Open Question (c) in
// spec.md §9/§12, chosen because treating an unrecognised string as
// "already running" risks masking a genuinely absent VM.
func ParseState(s string) State {
	switch s {
	case "Created":
		return Created
	case "Running":
		return Running
	case "Shutdown":
		return Shutdown
	default:
		return NotCreated
	}
}

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Running:
		return "running"
	case Shutdown:
		return "shutdown"
	default:
		return "not_created"
	}
}

// Disk is one disk attached to a VM. Path must resolve beneath
// {managed_root}/vm/{uuid}/disk/ (spec.md §4.1 invariant).
type Disk struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Vm is the VM aggregate (spec.md §4.1): id is node-local and MUST NOT be
// used for cross-node references; uuid is the stable natural key.
type Vm struct {
	Id          int64         `json:"id,omitempty"`
	Uuid        uuid.UUID     `json:"uuid"`
	Name        string        `json:"name"`
	Vcpu        int           `json:"vcpu"`
	Vram        int           `json:"vram"`
	Disk        []Disk        `json:"disk"`
	Net         []network.Net `json:"net,omitempty"`
	AccountUuid string        `json:"account_uuid,omitempty"`

	// State is not persisted — it is read fresh from the hypervisor via
	// GetInfo and is zero-value (NotCreated) on a value decoded straight
	// from its stored `definition`.
	State State `json:"-"`
}

// Definition marshals v to the JSON stored in the vm table's `definition`
// column. Round-tripping through Definition/ParseDefinition MUST yield an
// equivalent Vm (spec.md §4.4 invariant, §8 scenario 6).
func (v *Vm) Definition() (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ParseDefinition decodes a stored vm.definition column back into a Vm.
func ParseDefinition(definition string) (*Vm, error) {
	var v Vm
	if err := json.Unmarshal([]byte(definition), &v); err != nil {
		return nil, err
	}
	return &v, nil
}
