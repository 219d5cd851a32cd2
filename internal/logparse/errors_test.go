package logparse

import (
	"reflect"
	"testing"
)

func TestExtractErrorMessages(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"pattern order then line order", "Error: disk full\nINFO ok\nERROR: disk full", []string{"disk full", "disk full"}},
		{"no markers", "INFO started\nDEBUG tick\nwarn: slow", []string{}},
		{"empty input", "", []string{}},
		{"trimmed", "Failed:   connect to db   \r\n", []string{"connect to db"}},
		{"bracket markers", "[error] one\n[ERROR] two\nfatal: three", []string{"one", "two", "three"}},
		{"case sensitive", "error: lower\nFATAL: upper", []string{}},
		{
			"grouped by pattern",
			"ERROR: b\nError: a\nERROR: c",
			[]string{"a", "b", "c"},
		},
		{
			"one line many markers",
			"java.lang.RuntimeException: Error: boom",
			[]string{"boom", "Error: boom"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ExtractErrorMessages(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractErrorMessages(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestExtractErrorMessages_KeepsDuplicates(t *testing.T) {
	t.Parallel()
	got := ExtractErrorMessages("Error: x\nError: x\nError: x")
	if len(got) != 3 {
		t.Errorf("got %d matches, want 3 (no dedup)", len(got))
	}
}
