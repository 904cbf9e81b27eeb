package sandbox_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/venkatnarayana7/Python-Debugger/classify"
	"github.com/venkatnarayana7/Python-Debugger/env/linuxrlimit"
	"github.com/venkatnarayana7/Python-Debugger/env/pool"
	"github.com/venkatnarayana7/Python-Debugger/sandbox"
	"github.com/venkatnarayana7/Python-Debugger/types"
	"go.uber.org/zap/zaptest"
)

func newPythonExecutor(t *testing.T) sandbox.Executor {
	t.Helper()
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
	p := pool.NewPool(linuxrlimit.NewBuilder(linuxrlimit.Config{Root: t.TempDir()}))
	t.Cleanup(p.Shutdown)
	return sandbox.New(sandbox.Config{
		EnvironmentPool: p,
		OutputLimit:     1 << 20,
		Logger:          zaptest.NewLogger(t),
	})
}

func skipUnavailable(t *testing.T, o types.Outcome) {
	t.Helper()
	if o.Status == types.OutcomeFailed && o.ExitStatus == 0 && o.Stderr == "" && o.Error != "" {
		t.Skipf("sandbox unavailable: %s", o.Error)
	}
}

func TestPythonCandidates(t *testing.T) {
	e := newPythonExecutor(t)
	fault := classify.Classify("", "ZeroDivisionError: division by zero")
	harness := "from fix import avg\nprint(avg([]))\nprint(avg([2, 4]))\n"

	o := e.Execute(context.Background(), sandbox.Job{
		Source:       "def avg(nums):\n    return sum(nums) / len(nums)\n",
		Reproduction: harness,
		Fault:        fault,
		TimeLimit:    5 * time.Second,
	})
	skipUnavailable(t, o)
	if o.Passed || o.Status != types.OutcomeFailed {
		t.Fatalf("broken candidate: %+v", o)
	}

	o = e.Execute(context.Background(), sandbox.Job{
		Source:       "def avg(nums):\n    return sum(nums) / len(nums) if nums else 0\n",
		Reproduction: harness,
		Fault:        fault,
		TimeLimit:    5 * time.Second,
	})
	if !o.Passed {
		t.Fatalf("fixed candidate: %+v", o)
	}
	if o.Stdout != "0\n3.0\n" {
		t.Fatalf("stdout = %q", o.Stdout)
	}
}

func TestPythonTimeout(t *testing.T) {
	e := newPythonExecutor(t)
	start := time.Now()
	o := e.Execute(context.Background(), sandbox.Job{
		Source:    "while True:\n    pass\n",
		TimeLimit: 300 * time.Millisecond,
	})
	skipUnavailable(t, o)
	if !o.TimedOut || o.Status != types.OutcomeTimeout {
		t.Fatalf("outcome: %+v", o)
	}
	if d := time.Since(start); d > 3*time.Second {
		t.Fatalf("time limit not enforced: %v", d)
	}
}

func TestPythonMemoryLimit(t *testing.T) {
	e := newPythonExecutor(t)
	o := e.Execute(context.Background(), sandbox.Job{
		Source:      "x = bytearray(512 * 1024 * 1024)\nprint(len(x))\n",
		TimeLimit:   5 * time.Second,
		MemoryLimit: 64 << 20,
	})
	skipUnavailable(t, o)
	if o.Status != types.OutcomeCrashed || !o.Crashed || o.Passed {
		t.Fatalf("outcome: %+v", o)
	}
}

func TestPythonHostFilesystemReadOnly(t *testing.T) {
	e := newPythonExecutor(t)
	outside := filepath.Join(t.TempDir(), "escaped")
	src := fmt.Sprintf(`import pathlib
p = pathlib.Path(%q)
try:
    p.parent.mkdir(parents=True, exist_ok=True)
    p.write_text("escaped")
except OSError as e:
    print(type(e).__name__)
pathlib.Path("own.txt").write_text("ok")
print(pathlib.Path("own.txt").read_text())
`, outside)

	o := e.Execute(context.Background(), sandbox.Job{
		Source:    src,
		TimeLimit: 5 * time.Second,
	})
	skipUnavailable(t, o)
	if !o.Passed {
		t.Fatalf("outcome: %+v", o)
	}
	if _, err := os.Stat(outside); err == nil {
		t.Fatalf("candidate created %s on the host", outside)
	}
}
