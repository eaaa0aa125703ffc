package image

import "testing"

func TestDigestToDirName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"sha256:abc123def456", "sha256_abc123def456"},
		{"sha512:xyz789", "sha512_xyz789"},
		{"nocolon", "nocolon"},
		{"multi:colon:digest", "multi_colon:digest"}, // only first colon replaced
	}

	for _, tt := range tests {
		got := digestToDirName(tt.input)
		if got != tt.want {
			t.Errorf("digestToDirName(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
