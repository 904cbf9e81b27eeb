// Package linuxrlimit runs each candidate with a single fork / exec under
// rlimits and a seccomp filter. Every run unshares user and mount namespaces
// and pivots into a read only root assembled from bind mounts, so only the
// environment's own work dir is writable and sibling work dirs are not
// reachable. It needs no privilege when cgroup is not configured.
package linuxrlimit

import (
	"fmt"
	"os"
	"syscall"

	"github.com/criyle/go-sandbox/pkg/mount"
	"github.com/venkatnarayana7/Python-Debugger/env/pool"
	"github.com/venkatnarayana7/Python-Debugger/env/runcgroup"
)

const (
	// WorkDir is the work dir path seen by the candidate
	WorkDir  = "/w"
	hostName = "truth_engine"
	// uid / gid of the candidate inside its user namespace
	containerID = 1000
)

// CredGenerator hands out a distinct host uid / gid per environment
type CredGenerator interface {
	Get() syscall.Credential
}

// Config specifies configuration to build environment builder
type Config struct {
	// Root is the parent directory for private work dirs, os.TempDir if empty
	Root string
	// Mounts are the read only host paths visible to the candidate, the
	// minimal /usr /lib /bin set if empty
	Mounts []mount.Mount
	// TmpFsParam is the mount data of the /tmp tmpfs
	TmpFsParam string
	// Seccomp filter installed before exec, nil to disable
	Seccomp []syscall.SockFilter
	// CloneFlags are extra namespaces to unshare, user, mount and pid
	// namespaces are always unshared
	CloneFlags uintptr
	// CredGenerator maps each environment to its own host uid, it needs
	// privilege. Without it the candidate maps to the server uid.
	CredGenerator CredGenerator
	// Cgroup holds the per run cgroups, nil for rlimit / rusage mode
	Cgroup *runcgroup.Parent
}

type builder struct {
	root       string
	mounts     []mount.Mount
	tmpFs      string
	seccomp    *syscall.SockFprog
	cloneFlags uintptr
	credGen    CredGenerator
	cgroup     *runcgroup.Parent
}

// NewBuilder creates builder for rlimit environments
func NewBuilder(c Config) pool.EnvBuilder {
	b := &builder{
		root:       c.Root,
		mounts:     c.Mounts,
		tmpFs:      c.TmpFsParam,
		cloneFlags: c.CloneFlags | syscall.CLONE_NEWUSER | syscall.CLONE_NEWNS | syscall.CLONE_NEWPID,
		credGen:    c.CredGenerator,
		cgroup:     c.Cgroup,
	}
	if len(b.mounts) == 0 {
		b.mounts = defaultMounts()
	}
	if len(c.Seccomp) > 0 {
		b.seccomp = &syscall.SockFprog{
			Len:    uint16(len(c.Seccomp)),
			Filter: &c.Seccomp[0],
		}
	}
	return b
}

func defaultMounts() []mount.Mount {
	return mount.NewDefaultBuilder().
		WithBind("/etc/alternatives", "etc/alternatives", true).
		WithBind("/dev/null", "dev/null", false).
		WithBind("/dev/urandom", "dev/urandom", false).
		FilterNotExist().Mounts
}

// Build creates an environment with a private work dir and its own root
func (b *builder) Build() (pool.Environment, error) {
	wd, err := os.MkdirTemp(b.root, "env-")
	if err != nil {
		return nil, fmt.Errorf("linuxrlimit: failed to create work dir: %w", err)
	}
	e := &environment{
		wd:         wd,
		seccomp:    b.seccomp,
		cloneFlags: b.cloneFlags,
		cgroup:     b.cgroup,
	}
	if err := b.prepare(e); err != nil {
		e.Destroy()
		return nil, err
	}
	return e, nil
}

func (b *builder) prepare(e *environment) error {
	root, err := os.MkdirTemp(b.root, "root-")
	if err != nil {
		return fmt.Errorf("linuxrlimit: failed to create root: %w", err)
	}
	e.pivotRoot = root

	uid, gid := os.Geteuid(), os.Getegid()
	if b.credGen != nil {
		cred := b.credGen.Get()
		uid, gid = int(cred.Uid), int(cred.Gid)
		for _, d := range []string{e.wd, e.pivotRoot} {
			if err := os.Chown(d, uid, gid); err != nil {
				return fmt.Errorf("linuxrlimit: failed to chown %s: %w", d, err)
			}
		}
	}
	if err := os.Chmod(e.wd, 0700); err != nil {
		return fmt.Errorf("linuxrlimit: failed to chmod work dir: %w", err)
	}
	e.uidMap = []syscall.SysProcIDMap{{ContainerID: containerID, HostID: uid, Size: 1}}
	e.gidMap = []syscall.SysProcIDMap{{ContainerID: containerID, HostID: gid, Size: 1}}

	mb := mount.NewBuilder().
		WithMounts(b.mounts).
		WithBind(e.wd, WorkDir[1:], false).
		WithTmpfs("tmp", b.tmpFs)
	if e.mounts, err = mb.Build(); err != nil {
		return fmt.Errorf("linuxrlimit: failed to build mounts: %w", err)
	}
	return nil
}
