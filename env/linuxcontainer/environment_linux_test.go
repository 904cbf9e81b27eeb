package linuxcontainer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/criyle/go-sandbox/container"
	"github.com/criyle/go-sandbox/pkg/forkexec"
	"github.com/criyle/go-sandbox/pkg/mount"
	"github.com/venkatnarayana7/Python-Debugger/env/pool"
	"github.com/venkatnarayana7/Python-Debugger/envexec"
)

func TestMain(m *testing.M) {
	container.Init()
	os.Exit(m.Run())
}

func newTestEnv(t *testing.T) pool.Environment {
	t.Helper()
	b := NewBuilder(Config{
		Builder: &container.Builder{
			TmpRoot: "truth-engine-test",
			Mounts: mount.NewDefaultBuilder().
				WithBind("/dev/null", "dev/null", false).
				WithTmpfs("w", "").
				WithTmpfs("tmp", "").
				FilterNotExist().Mounts,
			Stderr:     os.Stderr,
			CloneFlags: forkexec.UnshareFlags,
			WorkDir:    "/w",
		},
		WorkDir: "/w",
	})
	e, err := b.Build()
	if err != nil {
		t.Skipf("container unavailable: %v", err)
	}
	t.Cleanup(func() { e.Destroy() })
	return e
}

func TestContainerRun(t *testing.T) {
	e := newTestEnv(t)
	s := envexec.Single{Cmd: &envexec.Cmd{
		Environment: e,
		CopyIn:      map[string][]byte{"in.txt": []byte("hi\n")},
		Args:        []string{"/bin/sh", "-c", "cat in.txt; echo err >&2; exit 3"},
		Env:         []string{"PATH=/usr/bin:/bin"},
		TimeLimit:   5 * time.Second,
		MemoryLimit: 256 << 20,
		OutputLimit: 1 << 20,
	}}
	rt, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rt.Status != envexec.StatusNonzeroExitStatus || rt.ExitStatus != 3 {
		t.Fatalf("status %v exit %d: %s", rt.Status, rt.ExitStatus, rt.Error)
	}
	if string(rt.Stdout) != "hi\n" || string(rt.Stderr) != "err\n" {
		t.Fatalf("output: %q %q", rt.Stdout, rt.Stderr)
	}
}

func TestContainerIsolatedFilesystem(t *testing.T) {
	e := newTestEnv(t)
	outside := t.TempDir()
	s := envexec.Single{Cmd: &envexec.Cmd{
		Environment: e,
		Args: []string{"/bin/sh", "-c",
			"echo ok > own.txt; echo x > " + outside + "/escape.txt; echo x > /escape.txt; cat own.txt"},
		Env:         []string{"PATH=/usr/bin:/bin"},
		TimeLimit:   5 * time.Second,
		OutputLimit: 1 << 20,
	}}
	rt, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if string(rt.Stdout) != "ok\n" {
		t.Fatalf("write to own work dir: %q (stderr %q)", rt.Stdout, rt.Stderr)
	}
	if _, err := os.Stat(filepath.Join(outside, "escape.txt")); !os.IsNotExist(err) {
		t.Fatal("candidate created a file outside its work dir")
	}

	// the work dir is a tmpfs, reset clears it
	if err := e.Reset(); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Open("own.txt", os.O_RDONLY, 0); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("work dir not cleared by reset: %v", err)
	}
}

func TestContainerOpenNoFollow(t *testing.T) {
	e := newTestEnv(t)
	s := envexec.Single{Cmd: &envexec.Cmd{
		Environment: e,
		Args:        []string{"/bin/ln", "-s", "/etc/passwd", "link"},
		Env:         []string{"PATH=/usr/bin:/bin"},
		TimeLimit:   5 * time.Second,
	}}
	if rt, err := s.Run(context.Background()); err != nil || rt.Status != envexec.StatusAccepted {
		t.Skipf("ln unavailable: %v %v", rt.Status, err)
	}
	if f, err := e.Open("link", os.O_WRONLY|os.O_TRUNC, 0); err == nil {
		f.Close()
		t.Fatal("open followed a candidate created symlink")
	}
}
