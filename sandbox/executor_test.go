package sandbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/criyle/go-sandbox/runner"
	"github.com/venkatnarayana7/Python-Debugger/classify"
	"github.com/venkatnarayana7/Python-Debugger/envexec"
	"github.com/venkatnarayana7/Python-Debugger/types"
	"go.uber.org/zap/zaptest"
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

// fakeEnv plays back a scripted run
type fakeEnv struct {
	wd     string
	stdout string
	stderr string
	rt     runner.Result
	block  bool

	args  []string
	files []string
}

func (e *fakeEnv) Open(name string, flags int, perm os.FileMode) (*os.File, error) {
	return envexec.OpenInDir(e.wd, name, flags, perm)
}

func (e *fakeEnv) Execve(ctx context.Context, param envexec.ExecveParam) (envexec.Process, error) {
	e.args = param.Args
	entries, _ := os.ReadDir(e.wd)
	for _, en := range entries {
		e.files = append(e.files, en.Name())
	}
	param.Files[1].WriteString(e.stdout)
	param.Files[2].WriteString(e.stderr)

	p := &fakeProcess{done: make(chan struct{})}
	if !e.block {
		p.rt = e.rt
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

type fakePool struct {
	mu   sync.Mutex
	env  *fakeEnv
	err  error
	gets int
	puts int
}

func (p *fakePool) Get() (envexec.Environment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	p.gets++
	return p.env, nil
}

func (p *fakePool) Put(envexec.Environment) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.puts++
}

const zeroDivLog = `Traceback (most recent call last):
  File "main.py", line 1, in avg
ZeroDivisionError: division by zero`

func newTestExecutor(t *testing.T, env *fakeEnv) (Executor, *fakePool) {
	env.wd = t.TempDir()
	p := &fakePool{env: env}
	return New(Config{
		EnvironmentPool: p,
		OutputLimit:     1 << 20,
		Logger:          zaptest.NewLogger(t),
	}), p
}

func TestExecuteOutcome(t *testing.T) {
	fault := classify.Classify("", zeroDivLog)
	tests := []struct {
		name    string
		env     *fakeEnv
		source  string
		status  types.OutcomeStatus
		passed  bool
		timeout bool
		crashed bool
	}{
		{
			name:   "passed",
			env:    &fakeEnv{stdout: "0\n", rt: runner.Result{Status: runner.StatusNormal}},
			status: types.OutcomePassed,
			passed: true,
		},
		{
			name:   "fault reproduced",
			env:    &fakeEnv{stderr: "ZeroDivisionError: division by zero\n", rt: runner.Result{Status: runner.StatusNormal}},
			status: types.OutcomeFailed,
		},
		{
			name:   "nonzero exit",
			env:    &fakeEnv{stderr: "TypeError: bad\n", rt: runner.Result{Status: runner.StatusNonzeroExitStatus, ExitStatus: 1}},
			status: types.OutcomeFailed,
		},
		{
			name:    "memory limit",
			env:     &fakeEnv{rt: runner.Result{Status: runner.StatusMemoryLimitExceeded}},
			status:  types.OutcomeCrashed,
			crashed: true,
		},
		{
			name:    "memory marker",
			env:     &fakeEnv{stderr: "MemoryError\n", rt: runner.Result{Status: runner.StatusNonzeroExitStatus, ExitStatus: 1}},
			status:  types.OutcomeCrashed,
			crashed: true,
		},
		{
			name:    "signalled",
			env:     &fakeEnv{rt: runner.Result{Status: runner.StatusSignalled, ExitStatus: 11}},
			status:  types.OutcomeCrashed,
			crashed: true,
		},
		{
			name:    "disallowed syscall",
			env:     &fakeEnv{rt: runner.Result{Status: runner.StatusDisallowedSyscall}},
			status:  types.OutcomeCrashed,
			crashed: true,
		},
		{
			name:    "timeout",
			env:     &fakeEnv{block: true},
			status:  types.OutcomeTimeout,
			timeout: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e, p := newTestExecutor(t, tc.env)
			source := tc.source
			if source == "" {
				source = "def avg(n):\n    return sum(n) / len(n) if n else 0\n"
			}
			o := e.Execute(context.Background(), Job{
				Source:    source,
				Fault:     fault,
				TimeLimit: 20 * time.Millisecond,
			})
			if o.Status != tc.status {
				t.Fatalf("status: got %v, want %v (%s)", o.Status, tc.status, o.Error)
			}
			if o.Passed != tc.passed || o.TimedOut != tc.timeout || o.Crashed != tc.crashed {
				t.Fatalf("flags: %+v", o)
			}
			if p.gets != 1 || p.puts != 1 {
				t.Fatalf("environment not released: gets=%d puts=%d", p.gets, p.puts)
			}
		})
	}
}

func TestExecuteRejected(t *testing.T) {
	for _, source := range []string{
		"import os\nos.remove('x')",
		"print(eval('1+1'))",
		"data = open('/etc/passwd').read()",
		"   ",
	} {
		e, p := newTestExecutor(t, &fakeEnv{rt: runner.Result{Status: runner.StatusNormal}})
		o := e.Execute(context.Background(), Job{Source: source})
		if o.Status != types.OutcomeRejected || o.Passed {
			t.Errorf("%q: got %v", source, o.Status)
		}
		if p.gets != 0 {
			t.Errorf("%q: rejected source must not acquire an environment", source)
		}
	}
}

func TestExecuteHarness(t *testing.T) {
	env := &fakeEnv{rt: runner.Result{Status: runner.StatusNormal}}
	e, _ := newTestExecutor(t, env)
	o := e.Execute(context.Background(), Job{
		Source:       "def add(a, b):\n    return a + b\n",
		Reproduction: "from fix import add\nassert add(2, 3) == 5\n",
	})
	if !o.Passed {
		t.Fatalf("outcome: %+v", o)
	}
	if got := env.args[len(env.args)-1]; got != "test.py" {
		t.Fatalf("entry = %q, want test.py", got)
	}
	if strings.Join(env.files, ",") != "fix.py,test.py" {
		t.Fatalf("copied files: %v", env.files)
	}
	b, err := os.ReadFile(filepath.Join(env.wd, "fix.py"))
	if err != nil || !strings.Contains(string(b), "return a + b") {
		t.Fatalf("fix.py: %q %v", b, err)
	}
}

func TestExecuteCancelled(t *testing.T) {
	e, p := newTestExecutor(t, &fakeEnv{block: true})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	o := e.Execute(ctx, Job{Source: "while True: pass", TimeLimit: 10 * time.Second})
	if o.Status != types.OutcomeCancelled {
		t.Fatalf("status: %v", o.Status)
	}
	if p.puts != 1 {
		t.Fatal("environment not released after cancel")
	}

	o = e.Execute(ctx, Job{Source: "print(1)"})
	if o.Status != types.OutcomeCancelled || p.gets != 1 {
		t.Fatalf("cancelled context must not start a run: %v gets=%d", o.Status, p.gets)
	}
}

func TestExecuteEnvironmentFailure(t *testing.T) {
	p := &fakePool{err: errors.New("no capacity")}
	e := New(Config{EnvironmentPool: p, Logger: zaptest.NewLogger(t)})
	o := e.Execute(context.Background(), Job{Source: "print(1)"})
	if o.Status != types.OutcomeFailed || o.Passed || o.Error == "" {
		t.Fatalf("outcome: %+v", o)
	}
}
