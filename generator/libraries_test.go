package generator

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDetectLibraries(t *testing.T) {
	tests := []struct {
		code string
		want []string
	}{
		{"x = 1", nil},
		{"import os\nimport sys\nimport json", nil},
		{"import numpy as np\nfrom Pandas import DataFrame\nimport numpy", []string{"numpy", "pandas"}},
		{"import a\nimport b\nimport c\nimport d\nimport e\nimport f", []string{"a", "b", "c", "d", "e"}},
	}
	for _, tc := range tests {
		if diff := cmp.Diff(tc.want, DetectLibraries(tc.code)); diff != "" {
			t.Errorf("DetectLibraries(%q) (-want +got):\n%s", tc.code, diff)
		}
	}
}
