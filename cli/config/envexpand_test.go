package config

import "testing"

func TestExpandEnv(t *testing.T) {
	t.Setenv("ARCA_SET", "value")
	t.Setenv("ARCA_EMPTY", "")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "set variable", in: "x: ${ARCA_SET}", want: "x: value"},
		{name: "unset variable", in: "x: ${ARCA_UNSET_XYZ}", want: "x: "},
		{name: "unset with default", in: "x: ${ARCA_UNSET_XYZ:-fallback}", want: "x: fallback"},
		{name: "empty uses default", in: "x: ${ARCA_EMPTY:-fallback}", want: "x: fallback"},
		{name: "set ignores default", in: "x: ${ARCA_SET:-fallback}", want: "x: value"},
		{name: "no pattern", in: "plain text $NOT_A_PATTERN", want: "plain text $NOT_A_PATTERN"},
		{name: "multiple", in: "${ARCA_SET}/${ARCA_UNSET_XYZ:-d}", want: "value/d"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpandEnv(tt.in); got != tt.want {
				t.Errorf("ExpandEnv(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
