package env

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadSeccompConfDefault(t *testing.T) {
	f, err := readSeccompConf("")
	if err != nil {
		t.Fatal(err)
	}
	if len(f) == 0 {
		t.Fatal("default policy assembled to empty filter")
	}

	missing, err := readSeccompConf(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(missing) != len(f) {
		t.Fatalf("missing file should use default policy: %d != %d", len(missing), len(f))
	}
}

func TestReadSeccompConfFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "seccomp.yaml")
	conf := `default_action: allow
syscalls:
  - action: errno
    names:
      - connect
`
	if err := os.WriteFile(p, []byte(conf), 0644); err != nil {
		t.Fatal(err)
	}
	f, err := readSeccompConf(p)
	if err != nil {
		t.Fatal(err)
	}
	def, _ := readSeccompConf("")
	if len(f) == 0 || len(f) >= len(def) {
		t.Fatalf("unexpected filter length %d (default %d)", len(f), len(def))
	}
}
