package linuxcontainer

import (
	"context"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/criyle/go-sandbox/container"
	"github.com/criyle/go-sandbox/pkg/rlimit"
	"github.com/criyle/go-sandbox/runner"
	"github.com/venkatnarayana7/Python-Debugger/env/pool"
	"github.com/venkatnarayana7/Python-Debugger/env/runcgroup"
	"github.com/venkatnarayana7/Python-Debugger/envexec"
)

var _ pool.Environment = &environ{}

// environ is one container with its opened work dir
type environ struct {
	container.Environment
	cgroup  *runcgroup.Parent
	wd      *os.File
	seccomp []syscall.SockFilter
}

// Execve runs the process inside the container, it is killed when ctx is done
func (c *environ) Execve(ctx context.Context, param envexec.ExecveParam) (envexec.Process, error) {
	limit := param.Limit
	cg, err := c.cgroup.Start(limit)
	if err != nil {
		return nil, fmt.Errorf("execve: %w", err)
	}

	rLimits := rlimit.RLimits{
		FileSize:    limit.Output.Byte(),
		Stack:       limit.Stack.Byte(),
		DisableCore: true,
	}
	if limit.Time > 0 {
		rLimits.CPU = uint64(limit.Time.Truncate(time.Second)/time.Second) + 1
	}
	if cg == nil {
		rLimits.Data = limit.Memory.Byte()
	}

	files, closeNull, err := prepareFds(param.Files)
	if err != nil {
		cg.Destroy()
		return nil, err
	}

	p := container.ExecveParam{
		Args:     param.Args,
		Env:      param.Env,
		Files:    files,
		RLimits:  rLimits.PrepareRLimit(),
		Seccomp:  c.seccomp,
		SyncFunc: cg.SyncFunc(),
	}
	return newProcess(func() runner.Result {
		defer closeNull()
		return c.Environment.Execve(ctx, p)
	}, cg), nil
}

// Open opens a file relative to the container work dir
func (c *environ) Open(name string, flags int, perm os.FileMode) (*os.File, error) {
	fd, err := syscall.Openat(int(c.wd.Fd()), name, flags|syscall.O_CLOEXEC|syscall.O_NOFOLLOW, uint32(perm))
	if err != nil {
		return nil, fmt.Errorf("open %s in work dir: %w", name, err)
	}
	return os.NewFile(uintptr(fd), name), nil
}

// Destroy closes the work dir and stops the container
func (c *environ) Destroy() error {
	c.wd.Close()
	return c.Environment.Destroy()
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
