package extbin

import "testing"

func TestToJSONUnwrapsSetOfUuids(t *testing.T) {
	raw := []byte(`{
		"headings": ["ports"],
		"data": [[["set", [["uuid","A"],["uuid","B"]]]]]
	}`)
	rows, err := ToJSON(raw)
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	ports, ok := rows[0]["ports"].([]any)
	if !ok || len(ports) != 2 || ports[0] != "A" || ports[1] != "B" {
		t.Fatalf("ports = %#v, want [A B]", rows[0]["ports"])
	}
}

func TestToJSONUnwrapsMap(t *testing.T) {
	raw := []byte(`{
		"headings": ["external_ids"],
		"data": [[["map", [["k","v"]]]]]
	}`)
	rows, err := ToJSON(raw)
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	m, ok := rows[0]["external_ids"].(map[string]any)
	if !ok || m["k"] != "v" {
		t.Fatalf("external_ids = %#v, want {k: v}", rows[0]["external_ids"])
	}
}

func TestToJSONFlattensEmptySetToScalar(t *testing.T) {
	raw := []byte(`{
		"headings": ["mac", "ifindex"],
		"data": [[["set", []], ["set", []]]]
	}`)
	rows, err := ToJSON(raw)
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	if rows[0]["mac"] != "" {
		t.Errorf("mac = %#v, want empty string", rows[0]["mac"])
	}
	if rows[0]["ifindex"] != 0 {
		t.Errorf("ifindex = %#v, want 0", rows[0]["ifindex"])
	}
}

func TestToJSONUnflattensBareScalarPorts(t *testing.T) {
	raw := []byte(`{
		"headings": ["ports"],
		"data": [[["uuid", "A"]]]
	}`)
	rows, err := ToJSON(raw)
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	ports, ok := rows[0]["ports"].([]any)
	if !ok || len(ports) != 1 || ports[0] != "A" {
		t.Fatalf("ports = %#v, want [A]", rows[0]["ports"])
	}
}
