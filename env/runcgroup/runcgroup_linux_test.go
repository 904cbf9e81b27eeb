package runcgroup

import (
	"errors"
	"testing"
	"time"

	"github.com/criyle/go-sandbox/pkg/cgroup"
	"github.com/criyle/go-sandbox/runner"
	"github.com/venkatnarayana7/Python-Debugger/envexec"
)

// fakeCgroup records the calls the run cgroup makes
type fakeCgroup struct {
	cgroup.Cgroup

	children  []*fakeCgroup
	memory    uint64
	procs     uint64
	added     []int
	destroyed bool
	failLimit bool
}

func (f *fakeCgroup) Random(string) (cgroup.Cgroup, error) {
	c := &fakeCgroup{failLimit: f.failLimit}
	f.children = append(f.children, c)
	return c, nil
}

func (f *fakeCgroup) SetMemoryLimit(m uint64) error {
	if f.failLimit {
		return errors.New("no memory controller")
	}
	f.memory = m
	return nil
}

func (f *fakeCgroup) SetProcLimit(p uint64) error {
	f.procs = p
	return nil
}

func (f *fakeCgroup) AddProc(pid ...int) error {
	f.added = append(f.added, pid...)
	return nil
}

func (f *fakeCgroup) CPUUsage() (uint64, error)       { return uint64(time.Second), nil }
func (f *fakeCgroup) MemoryMaxUsage() (uint64, error) { return 64 << 20, nil }
func (f *fakeCgroup) Processes() ([]int, error)       { return nil, nil }

func (f *fakeCgroup) Destroy() error {
	f.destroyed = true
	return nil
}

func TestRunLimits(t *testing.T) {
	parent := &fakeCgroup{}
	p := New(parent)
	r, err := p.Start(envexec.Limit{Memory: 128 << 20, Proc: 8})
	if err != nil {
		t.Fatal(err)
	}
	if len(parent.children) != 1 {
		t.Fatalf("children: %d", len(parent.children))
	}
	c := parent.children[0]
	if c.memory != 128<<20 || c.procs != 8 {
		t.Fatalf("limits: memory %d procs %d", c.memory, c.procs)
	}
	if err := r.SyncFunc()(42); err != nil || len(c.added) != 1 || c.added[0] != 42 {
		t.Fatalf("add proc: %v %v", err, c.added)
	}

	var rt runner.Result
	r.Collect(&rt)
	if rt.Time != time.Second || rt.Memory != 64<<20 {
		t.Fatalf("usage: %v %v", rt.Time, rt.Memory)
	}
	if err := r.Destroy(); err != nil || !c.destroyed {
		t.Fatalf("destroy: %v %v", err, c.destroyed)
	}
}

func TestRunLimitFailureCleansUp(t *testing.T) {
	parent := &fakeCgroup{failLimit: true}
	if _, err := New(parent).Start(envexec.Limit{Memory: 1 << 20}); err == nil {
		t.Fatal("expected error")
	}
	if !parent.children[0].destroyed {
		t.Fatal("run cgroup leaked")
	}
}

func TestNilParent(t *testing.T) {
	p := New(nil)
	r, err := p.Start(envexec.Limit{Memory: 1 << 20})
	if err != nil || r != nil {
		t.Fatalf("nil parent: %v %v", r, err)
	}
	if r.SyncFunc() != nil {
		t.Fatal("nil run has a sync func")
	}
	rt := runner.Result{Time: time.Millisecond}
	r.Collect(&rt)
	if rt.Time != time.Millisecond {
		t.Fatal("nil run changed the result")
	}
	if err := r.Destroy(); err != nil {
		t.Fatal(err)
	}
}
