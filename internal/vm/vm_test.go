package vm

import "testing"

func TestDefinitionRoundTrips(t *testing.T) {
	original := &Vm{
		Name: "xs",
		Vcpu: 1,
		Vram: 2,
		Disk: []Disk{{Name: "os", Path: "/var/lib/virshle/vm/x/disk/os"}},
	}
	def, err := original.Definition()
	if err != nil {
		t.Fatalf("Definition: %v", err)
	}
	got, err := ParseDefinition(def)
	if err != nil {
		t.Fatalf("ParseDefinition: %v", err)
	}
	if got.Name != original.Name || got.Vcpu != original.Vcpu || got.Vram != original.Vram {
		t.Errorf("got %+v, want %+v", got, original)
	}
	if len(got.Disk) != 1 || got.Disk[0] != original.Disk[0] {
		t.Errorf("disk = %+v, want %+v", got.Disk, original.Disk)
	}
}

func TestParseStateUnknownIsNotCreated(t *testing.T) {
	if got := ParseState("SomeFutureState"); got != NotCreated {
		t.Errorf("ParseState(unknown) = %v, want NotCreated", got)
	}
}

func TestParseStateKnownValues(t *testing.T) {
	cases := map[string]State{"Created": Created, "Running": Running, "Shutdown": Shutdown}
	for input, want := range cases {
		if got := ParseState(input); got != want {
			t.Errorf("ParseState(%q) = %v, want %v", input, got, want)
		}
	}
}
