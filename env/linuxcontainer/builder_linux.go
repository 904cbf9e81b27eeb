// Package linuxcontainer runs candidates inside pre-forked go-sandbox
// containers: private mount, pid, user, ipc, uts and network namespaces with
// read only host binds and a tmpfs work dir.
package linuxcontainer

import (
	"fmt"
	"syscall"

	"github.com/criyle/go-sandbox/container"
	"github.com/venkatnarayana7/Python-Debugger/env/pool"
	"github.com/venkatnarayana7/Python-Debugger/env/runcgroup"
)

// EnvironmentBuilder builds the underlying container, *container.Builder
type EnvironmentBuilder interface {
	Build() (container.Environment, error)
}

// Config specifies configuration to build environment builder
type Config struct {
	Builder EnvironmentBuilder
	// Cgroup holds the per run cgroups, nil for rlimit / rusage mode
	Cgroup *runcgroup.Parent
	// WorkDir is the work dir path inside the container
	WorkDir string
	Seccomp []syscall.SockFilter
}

type environmentBuilder struct {
	builder EnvironmentBuilder
	cgroup  *runcgroup.Parent
	workDir string
	seccomp []syscall.SockFilter
}

// NewBuilder creates builder for container environments
func NewBuilder(c Config) pool.EnvBuilder {
	return &environmentBuilder{
		builder: c.Builder,
		cgroup:  c.Cgroup,
		workDir: c.WorkDir,
		seccomp: c.Seccomp,
	}
}

// Build starts a container and opens its work dir
func (b *environmentBuilder) Build() (pool.Environment, error) {
	m, err := b.builder.Build()
	if err != nil {
		return nil, fmt.Errorf("linuxcontainer: %w", err)
	}
	wd, err := m.Open([]container.OpenCmd{{
		Path: b.workDir,
		Flag: syscall.O_CLOEXEC | syscall.O_DIRECTORY,
		Perm: 0777,
	}})
	if err == nil && wd[0].Err != nil {
		err = wd[0].Err
	}
	if err != nil {
		m.Destroy()
		return nil, fmt.Errorf("linuxcontainer: failed to open work dir %s: %w", b.workDir, err)
	}
	return &environ{
		Environment: m,
		cgroup:      b.cgroup,
		wd:          wd[0].File,
		seccomp:     b.seccomp,
	}, nil
}
