package envexec

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/criyle/go-sandbox/runner"
)

type fakeProcess struct {
	done chan struct{}
	rt   runner.Result
}

func (p *fakeProcess) Done() <-chan struct{} { return p.done }

func (p *fakeProcess) Result() runner.Result {
	<-p.done
	return p.rt
}

// fakeEnv writes stdout / stderr and optionally blocks until killed
type fakeEnv struct {
	wd     string
	stdout string
	stderr string
	block  bool
	param  ExecveParam
}

func (e *fakeEnv) Open(name string, flags int, perm os.FileMode) (*os.File, error) {
	return OpenInDir(e.wd, name, flags, perm)
}

func (e *fakeEnv) Execve(ctx context.Context, param ExecveParam) (Process, error) {
	e.param = param
	param.Files[1].WriteString(e.stdout)
	param.Files[2].WriteString(e.stderr)
	p := &fakeProcess{done: make(chan struct{})}
	if !e.block {
		p.rt = runner.Result{Status: runner.StatusNormal, Time: time.Millisecond, Memory: 1 << 20}
		close(p.done)
		return p, nil
	}
	go func() {
		defer close(p.done)
		<-ctx.Done()
		p.rt = runner.Result{Status: runner.StatusSignalled, ExitStatus: 9}
	}()
	return p, nil
}

func TestSingleRunCollectsOutput(t *testing.T) {
	env := &fakeEnv{wd: t.TempDir(), stdout: "hello", stderr: "warn"}
	s := &Single{Cmd: &Cmd{
		Environment: env,
		CopyIn:      map[string][]byte{"fix.py": []byte("print(1)")},
		Args:        []string{"python3", "fix.py"},
		MemoryLimit: 64 << 20,
		OutputLimit: 1 << 10,
	}}
	rt, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rt.Status != StatusAccepted {
		t.Fatalf("status: %v %s", rt.Status, rt.Error)
	}
	if string(rt.Stdout) != "hello" || string(rt.Stderr) != "warn" {
		t.Fatalf("output: %q %q", rt.Stdout, rt.Stderr)
	}
	b, err := os.ReadFile(filepath.Join(env.wd, "fix.py"))
	if err != nil || string(b) != "print(1)" {
		t.Fatalf("copyin: %q %v", b, err)
	}
	if env.param.Limit.Memory != 64<<20+defaultExtraMemoryLimit {
		t.Errorf("memory limit: %v", env.param.Limit.Memory)
	}
}

func TestSingleRunOutputLimit(t *testing.T) {
	env := &fakeEnv{wd: t.TempDir(), stdout: "0123456789"}
	s := &Single{Cmd: &Cmd{Environment: env, OutputLimit: 4}}
	rt, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rt.Status != StatusOutputLimitExceeded {
		t.Fatalf("status: %v", rt.Status)
	}
	if string(rt.Stdout) != "0123" {
		t.Fatalf("stdout not truncated: %q", rt.Stdout)
	}
}

func TestSingleRunWaiterTimeLimit(t *testing.T) {
	env := &fakeEnv{wd: t.TempDir(), block: true}
	s := &Single{Cmd: &Cmd{
		Environment: env,
		Waiter: func(ctx context.Context, p Process) bool {
			select {
			case <-ctx.Done():
				return false
			case <-time.After(10 * time.Millisecond):
				return true
			}
		},
	}}
	rt, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rt.Status != StatusTimeLimitExceeded {
		t.Fatalf("status: %v", rt.Status)
	}
}

func TestSingleRunCopyInEscape(t *testing.T) {
	for _, name := range []string{"../evil.py", "/tmp/evil.py", "sub/evil.py", ""} {
		env := &fakeEnv{wd: t.TempDir()}
		s := &Single{Cmd: &Cmd{
			Environment: env,
			CopyIn:      map[string][]byte{name: nil},
		}}
		rt, err := s.Run(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if rt.Status != StatusFileError {
			t.Errorf("%q: status %v", name, rt.Status)
		}
	}
}

func TestOpenInDirSymlinkEscape(t *testing.T) {
	wd, outside := t.TempDir(), t.TempDir()
	if err := os.Symlink(outside, filepath.Join(wd, "link")); err != nil {
		t.Skip(err)
	}
	if _, err := OpenInDir(wd, "link/evil.py", os.O_WRONLY|os.O_CREATE, 0644); err == nil {
		t.Fatal("open followed a symlink out of the work dir")
	}
	if _, err := os.Stat(filepath.Join(outside, "evil.py")); !os.IsNotExist(err) {
		t.Fatalf("file created outside the work dir: %v", err)
	}
}
