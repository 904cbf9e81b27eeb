// Package runcgroup gives every candidate run its own cgroup below the
// delegated candidates cgroup. The run cgroup carries the memory and pids
// ceiling of that run only and is removed, with anything left inside it,
// when the run ends.
package runcgroup

import (
	"fmt"
	"syscall"
	"time"

	"github.com/criyle/go-sandbox/pkg/cgroup"
	"github.com/criyle/go-sandbox/runner"
	"github.com/venkatnarayana7/Python-Debugger/envexec"
)

// Parent creates run cgroups
type Parent struct {
	cg cgroup.Cgroup
}

// New wraps the candidates cgroup, nil yields a nil Parent (rlimit mode)
func New(cg cgroup.Cgroup) *Parent {
	if cg == nil {
		return nil
	}
	return &Parent{cg: cg}
}

// Cgroup returns the candidates cgroup
func (p *Parent) Cgroup() cgroup.Cgroup {
	if p == nil {
		return nil
	}
	return p.cg
}

// Run is the cgroup of one candidate run. A nil Run is valid and does nothing.
type Run struct {
	cg cgroup.Cgroup
}

// Start creates the run cgroup with the memory and pids ceiling of limit
func (p *Parent) Start(limit envexec.Limit) (*Run, error) {
	if p == nil {
		return nil, nil
	}
	cg, err := p.cg.Random("run_")
	if err != nil {
		return nil, fmt.Errorf("runcgroup: create: %w", err)
	}
	r := &Run{cg: cg}
	if limit.Memory > 0 {
		if err := cg.SetMemoryLimit(limit.Memory.Byte()); err != nil {
			r.Destroy()
			return nil, fmt.Errorf("runcgroup: memory limit: %w", err)
		}
	}
	if limit.Proc > 0 {
		if err := cg.SetProcLimit(limit.Proc); err != nil {
			r.Destroy()
			return nil, fmt.Errorf("runcgroup: pids limit: %w", err)
		}
	}
	return r, nil
}

// SyncFunc returns the hook that moves the child into the run cgroup before exec
func (r *Run) SyncFunc() func(int) error {
	if r == nil {
		return nil
	}
	return func(pid int) error {
		return r.cg.AddProc(pid)
	}
}

// Collect replaces rusage based time and memory with the cgroup counters,
// which include every process of the run
func (r *Run) Collect(rt *runner.Result) {
	if r == nil {
		return
	}
	if t, err := r.cg.CPUUsage(); err == nil && t > 0 {
		rt.Time = time.Duration(t)
	}
	if m, err := r.cg.MemoryMaxUsage(); err == nil && m > 0 {
		rt.Memory = runner.Size(m)
	}
}

// Destroy kills what is left of the run and removes the cgroup
func (r *Run) Destroy() error {
	if r == nil {
		return nil
	}
	if pids, err := r.cg.Processes(); err == nil {
		for _, pid := range pids {
			syscall.Kill(pid, syscall.SIGKILL)
		}
	}
	// removal fails until the killed processes are gone
	var err error
	for range 10 {
		if err = r.cg.Destroy(); err == nil {
			return nil
		}
		time.Sleep(5 * time.Millisecond)
	}
	return err
}
