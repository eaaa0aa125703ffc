package extbin

import (
	"encoding/json"

	"github.com/virshle/virshle/internal/virrors"
)

// ovsRawResponse is the shape `ovs-vsctl -f json` emits: a column-oriented
// table where each cell is a 2-element array tagged "uuid"/"set"/"map"/
// (anything else is a bare scalar). Grounded on
// virshle_core/src/network/ovs/convert.rs in the original implementation —
// that file's unflatten/flatten asymmetry MUST be preserved exactly (see
// spec.md §4.3, §8 S5).
type ovsRawResponse struct {
	Headings []string        `json:"headings"`
	Data     [][]json.RawMessage `json:"data"`
}

// arrayFields lists the row fields that ovs-vsctl reports as bare scalars
// when there is exactly one value, but which callers expect as arrays.
var arrayFields = map[string]bool{
	"ports": true,
}

// scalarFields lists the row fields that ovs-vsctl reports as an empty
// "set" (i.e. `["set",[]]`) when unset, but which callers expect as a plain
// scalar (empty string or zero).
var scalarFields = map[string]bool{
	"mac":         true,
	"mac_in_use":  true,
	"admin_state": true,
	"ifindex":     true,
}

// ToJSON decodes raw `ovs-vsctl -f json` output into a slice of ordinary
// JSON objects, one per row, with uuid/set/map cells unwrapped to plain
// identifiers/arrays/objects and the unflatten/flatten normalisations
// applied.
func ToJSON(raw []byte) ([]map[string]any, error) {
	var resp ovsRawResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, virrors.Wrap(err, "couldn't parse ovs-vsctl json output", "")
	}

	rows := make([]map[string]any, 0, len(resp.Data))
	for _, cells := range resp.Data {
		row := make(map[string]any, len(resp.Headings))
		for i, heading := range resp.Headings {
			if i >= len(cells) {
				continue
			}
			value, err := convertCell(cells[i])
			if err != nil {
				return nil, err
			}
			row[heading] = value
		}
		unflatten(row)
		flatten(row)
		rows = append(rows, row)
	}
	return rows, nil
}

// convertCell turns one ovs-vsctl tagged cell into a plain Go value:
//   ["uuid", "<id>"]        -> "<id>"
//   ["set", [<items>...]]   -> []any{...} (each item itself unwrapped)
//   ["map", [[k,v]...]]     -> map[string]any{...}
//   anything else           -> the bare scalar, with an empty string mapped to nil
func convertCell(raw json.RawMessage) (any, error) {
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, virrors.Wrap(err, "couldn't parse ovs-vsctl cell", "")
	}

	tagged, ok := generic.([]any)
	if !ok || len(tagged) != 2 {
		if s, ok := generic.(string); ok && s == "" {
			return nil, nil
		}
		return generic, nil
	}

	tag, ok := tagged[0].(string)
	if !ok {
		return generic, nil
	}

	switch tag {
	case "uuid":
		return tagged[1], nil

	case "set":
		items, _ := tagged[1].([]any)
		out := make([]any, 0, len(items))
		for _, item := range items {
			out = append(out, unwrapTaggedValue(item))
		}
		return out, nil

	case "map":
		pairs, _ := tagged[1].([]any)
		out := make(map[string]any, len(pairs))
		for _, pair := range pairs {
			kv, ok := pair.([]any)
			if !ok || len(kv) != 2 {
				continue
			}
			key, _ := kv[0].(string)
			out[key] = unwrapTaggedValue(kv[1])
		}
		return out, nil

	default:
		return generic, nil
	}
}

// unwrapTaggedValue handles a single element nested inside a "set" or
// "map" cell, which is itself sometimes a ["uuid", id] pair.
func unwrapTaggedValue(v any) any {
	if tagged, ok := v.([]any); ok && len(tagged) == 2 {
		if tag, ok := tagged[0].(string); ok && tag == "uuid" {
			return tagged[1]
		}
	}
	return v
}

// unflatten wraps a bare scalar in a 1-element array for fields that
// callers always expect as arrays (e.g. a bridge with a single port reports
// "ports" as a bare uuid string rather than a 1-element set).
func unflatten(row map[string]any) {
	for field := range arrayFields {
		v, present := row[field]
		if !present {
			continue
		}
		if _, isArray := v.([]any); isArray {
			continue
		}
		row[field] = []any{v}
	}
}

// flatten converts an empty array back to a scalar zero value for fields
// callers always expect as scalars (ovs-vsctl reports "not set" as an empty
// "set" regardless of the field's real type).
func flatten(row map[string]any) {
	for field := range scalarFields {
		v, present := row[field]
		if !present {
			continue
		}
		arr, isArray := v.([]any)
		if !isArray || len(arr) != 0 {
			continue
		}
		if field == "ifindex" {
			row[field] = 0
		} else {
			row[field] = ""
		}
	}
}
