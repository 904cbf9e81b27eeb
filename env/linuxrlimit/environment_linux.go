package linuxrlimit

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/criyle/go-sandbox/pkg/forkexec"
	"github.com/criyle/go-sandbox/pkg/mount"
	"github.com/criyle/go-sandbox/pkg/rlimit"
	"github.com/criyle/go-sandbox/runner"
	"github.com/venkatnarayana7/Python-Debugger/env/pool"
	"github.com/venkatnarayana7/Python-Debugger/env/runcgroup"
	"github.com/venkatnarayana7/Python-Debugger/envexec"
	"golang.org/x/sys/unix"
)

var _ pool.Environment = &environment{}

type environment struct {
	wd         string // host path of the work dir
	pivotRoot  string
	mounts     []mount.SyscallParams
	uidMap     []syscall.SysProcIDMap
	gidMap     []syscall.SysProcIDMap
	seccomp    *syscall.SockFprog
	cloneFlags uintptr
	cgroup     *runcgroup.Parent
}

// Execve starts the process, the process is killed when c is done
func (e *environment) Execve(c context.Context, param envexec.ExecveParam) (envexec.Process, error) {
	sTime := time.Now()
	limit := param.Limit
	if len(param.Args) == 0 {
		return nil, fmt.Errorf("execve: empty args")
	}
	args := append([]string(nil), param.Args...)
	if !filepath.IsAbs(args[0]) {
		p, err := exec.LookPath(args[0])
		if err != nil {
			return nil, fmt.Errorf("execve: %w", err)
		}
		args[0] = p
	}

	rLimits := rlimit.RLimits{
		FileSize:    limit.Output.Byte(),
		Stack:       limit.Stack.Byte(),
		DisableCore: true,
	}
	if limit.Time > 0 {
		rLimits.CPU = uint64(limit.Time.Truncate(time.Second)/time.Second) + 1
	}

	cg, err := e.cgroup.Start(limit)
	if err != nil {
		return nil, fmt.Errorf("execve: %w", err)
	}
	if cg == nil {
		rLimits.Data = limit.Memory.Byte()
	}

	files, closeNull, err := prepareFds(param.Files)
	if err != nil {
		cg.Destroy()
		return nil, err
	}
	defer closeNull()

	ch := &forkexec.Runner{
		Args:        args,
		Env:         param.Env,
		Files:       files,
		WorkDir:     WorkDir,
		RLimits:     rLimits.PrepareRLimit(),
		Seccomp:     e.seccomp,
		NoNewPrivs:  true,
		DropCaps:    true,
		CloneFlags:  e.cloneFlags,
		Mounts:      e.mounts,
		PivotRoot:   e.pivotRoot,
		HostName:    hostName,
		DomainName:  hostName,
		UIDMappings: e.uidMap,
		GIDMappings: e.gidMap,
		Credential: &syscall.Credential{
			Uid:         containerID,
			Gid:         containerID,
			NoSetGroups: true,
		},
		SyncFunc: cg.SyncFunc(),
	}
	pid, err := ch.Start()
	if err != nil {
		cg.Destroy()
		return nil, fmt.Errorf("execve: %w", err)
	}

	p := &process{
		done: make(chan struct{}),
	}
	go func() {
		defer close(p.done)
		defer cg.Destroy()

		mTime := time.Now()

		// handle cancel
		go func() {
			select {
			case <-c.Done():
				killAll(pid)
			case <-p.done:
			}
		}()

		// collect potential zombies
		defer func() {
			killAll(pid)
			collectZombie(pid)
		}()

		p.result = wait(pid, limit)
		p.result.SetUpTime = mTime.Sub(sTime)
		p.result.RunningTime = time.Since(mTime)
		cg.Collect(&p.result)
		if limit.Memory > 0 && p.result.Memory > limit.Memory {
			p.result.Status = runner.StatusMemoryLimitExceeded
		}
	}()
	return p, nil
}

func wait(pid int, limit envexec.Limit) runner.Result {
	var (
		wstatus syscall.WaitStatus
		rusage  syscall.Rusage
	)
	for {
		_, err := syscall.Wait4(pid, &wstatus, 0, &rusage)
		if err == syscall.EINTR {
			continue
		}
		if err != nil {
			return runner.Result{
				Status: runner.StatusRunnerError,
				Error:  err.Error(),
			}
		}
		rt := runner.Result{
			Status: runner.StatusNormal,
			Time:   time.Duration(rusage.Utime.Nano() + rusage.Stime.Nano()),
			Memory: runner.Size(rusage.Maxrss) << 10, // linux reports kb
		}
		switch {
		case wstatus.Exited():
			if status := wstatus.ExitStatus(); status != 0 {
				rt.Status = runner.StatusNonzeroExitStatus
				rt.ExitStatus = status
			}
			return rt

		case wstatus.Signaled():
			sig := wstatus.Signal()
			switch sig {
			case unix.SIGXCPU:
				rt.Status = runner.StatusTimeLimitExceeded
			case unix.SIGXFSZ:
				rt.Status = runner.StatusOutputLimitExceeded
			case unix.SIGSYS:
				rt.Status = runner.StatusDisallowedSyscall
			case unix.SIGKILL:
				rt.Status = runner.StatusSignalled
				if limit.Memory > 0 && rt.Memory >= limit.Memory {
					rt.Status = runner.StatusMemoryLimitExceeded
				}
			default:
				rt.Status = runner.StatusSignalled
			}
			rt.ExitStatus = int(sig)
			return rt
		}
	}
}

// prepareFds maps nil files to /dev/null
func prepareFds(files []*os.File) ([]uintptr, func(), error) {
	var null *os.File
	closeNull := func() {
		if null != nil {
			null.Close()
		}
	}
	rt := make([]uintptr, 0, 3)
	for i := 0; i < 3; i++ {
		var f *os.File
		if i < len(files) {
			f = files[i]
		}
		if f == nil {
			if null == nil {
				var err error
				if null, err = os.OpenFile(os.DevNull, os.O_RDWR, 0); err != nil {
					return nil, closeNull, fmt.Errorf("execve: open %s: %w", os.DevNull, err)
				}
			}
			f = null
		}
		rt = append(rt, f.Fd())
	}
	return rt, closeNull, nil
}

// Open opens a file in the work directory
func (e *environment) Open(name string, flags int, perm os.FileMode) (*os.File, error) {
	return envexec.OpenInDir(e.wd, name, flags, perm)
}

// Reset clears the work directory for the next run
func (e *environment) Reset() error {
	return removeContents(e.wd)
}

// Destroy removes the work directory and the root mount point
func (e *environment) Destroy() error {
	err := os.RemoveAll(e.wd)
	if e.pivotRoot != "" {
		os.Remove(e.pivotRoot)
	}
	return err
}

// removeContents delete content of a directory
func removeContents(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()

	names, err := d.Readdirnames(-1)
	if err != nil {
		return err
	}

	for _, name := range names {
		err = os.RemoveAll(filepath.Join(dir, name))
		if err != nil {
			return err
		}
	}
	return nil
}

func killAll(pid int) {
	syscall.Kill(-pid, syscall.SIGKILL)
	syscall.Kill(pid, syscall.SIGKILL)
}

// collect died child processes
func collectZombie(pgid int) {
	var wstatus syscall.WaitStatus
	for {
		wpid, err := syscall.Wait4(-pgid, &wstatus, syscall.WNOHANG, nil)
		if err == syscall.EINTR {
			continue
		}
		if err != nil || wpid == 0 {
			break
		}
	}
}
