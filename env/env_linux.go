package env

import (
	"fmt"
	"os"
	"sync/atomic"
	"syscall"

	"github.com/criyle/go-sandbox/container"
	"github.com/criyle/go-sandbox/pkg/forkexec"
	"github.com/criyle/go-sandbox/pkg/mount"
	"github.com/venkatnarayana7/Python-Debugger/env/docker"
	"github.com/venkatnarayana7/Python-Debugger/env/linuxcontainer"
	"github.com/venkatnarayana7/Python-Debugger/env/linuxrlimit"
	"github.com/venkatnarayana7/Python-Debugger/env/pool"
	"github.com/venkatnarayana7/Python-Debugger/env/runcgroup"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

const (
	containerName    = "truth_engine"
	containerWorkDir = linuxrlimit.WorkDir
	containerCred    = 1000
)

// NewBuilder build a environment builder
func NewBuilder(c Config, logger *zap.Logger) (pool.EnvBuilder, map[string]any, error) {
	switch c.Backend {
	case BackendDocker:
		return newDockerBuilder(c, logger)
	case BackendContainer, BackendRlimit, "":
	default:
		return nil, nil, fmt.Errorf("unknown sandbox backend: %s", c.Backend)
	}

	seccomp, err := readSeccompConf(c.SeccompConf)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load seccomp config: %w", err)
	}
	logger.Info("loaded seccomp filter", zap.String("conf", c.SeccompConf), zap.Int("instructions", len(seccomp)))

	mb, mountSource, err := loadMounts(c)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load mount config: %w", err)
	}

	unshareFlags := uintptr(forkexec.UnshareFlags)
	if c.NetShare {
		unshareFlags &^= syscall.CLONE_NEWNET
	}
	if !kernelAtLeast(4, 6) {
		unshareFlags &^= unix.CLONE_NEWCGROUP
		logger.Info("kernel older than 4.6, cgroup namespace is not unshared")
	}

	// distinct host uid per environment only with root privilege
	var cred *credGen
	if os.Getuid() == 0 && c.ContainerCredStart > 0 {
		cred = newCredGen(uint32(c.ContainerCredStart))
	}

	cg, ct, err := newCandidateCgroup(c, logger)
	if err != nil {
		return nil, nil, err
	}
	cgroupType, cgroupControllers := cgroupInfo(cg, ct)

	param := map[string]any{
		"cgroupType":        cgroupType,
		"cgroupControllers": cgroupControllers,
		"seccomp":           len(seccomp) > 0,
		"netShare":          c.NetShare,
		"mount":             mountSource,
		"workDir":           containerWorkDir,
		"credStart":         c.ContainerCredStart,
	}
	if c.Backend == BackendRlimit {
		param["backend"] = BackendRlimit
		logger.Info("created rlimit environment builder", zap.String("root", c.WorkDir), zap.String("mount", mountSource))
		rc := linuxrlimit.Config{
			Root:       c.WorkDir,
			Mounts:     mb.FilterNotExist().Mounts,
			TmpFsParam: c.TmpFsParam,
			Seccomp:    seccomp,
			// user, mount and pid namespaces are added by the backend
			CloneFlags: unshareFlags &^ (unix.CLONE_NEWCGROUP | unix.CLONE_NEWUSER | unix.CLONE_NEWNS | unix.CLONE_NEWPID),
			Cgroup:     cg,
		}
		if cred != nil {
			rc.CredGenerator = cred
		}
		return linuxrlimit.NewBuilder(rc), param, nil
	}

	param["backend"] = BackendContainer
	logger.Info("created container environment builder", zap.String("mount", mountSource), zap.String("workDir", containerWorkDir))
	return newContainerBuilder(c, mb, unshareFlags, cred, seccomp, cg), param, nil
}

func newContainerBuilder(c Config, mb *mount.Builder, unshareFlags uintptr, cred *credGen, seccomp []syscall.SockFilter, cg *runcgroup.Parent) pool.EnvBuilder {
	b := &container.Builder{
		TmpRoot: "truth-engine",
		Mounts: mb.
			WithTmpfs(containerWorkDir[1:], c.TmpFsParam).
			WithTmpfs("tmp", c.TmpFsParam).
			FilterNotExist().Mounts,
		Stderr:       os.Stderr,
		CloneFlags:   unshareFlags,
		ExecFile:     c.ContainerInitPath,
		HostName:     containerName,
		DomainName:   containerName,
		WorkDir:      containerWorkDir,
		ContainerUID: containerCred,
		ContainerGID: containerCred,
	}
	if cred != nil {
		b.CredGenerator = cred
	}
	return linuxcontainer.NewBuilder(linuxcontainer.Config{
		Builder: b,
		Cgroup:  cg,
		WorkDir: containerWorkDir,
		Seccomp: seccomp,
	})
}

func newDockerBuilder(c Config, logger *zap.Logger) (pool.EnvBuilder, map[string]any, error) {
	b, err := docker.NewBuilder(docker.Config{
		Image: c.DockerImage,
		Root:  c.WorkDir,
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Info("created docker environment builder", zap.String("image", c.DockerImage))
	return b, map[string]any{
		"backend": BackendDocker,
		"image":   c.DockerImage,
		"workDir": c.WorkDir,
	}, nil
}

type credGen struct {
	cur atomic.Uint32
}

func newCredGen(start uint32) *credGen {
	c := new(credGen)
	c.cur.Store(start)
	return c
}

// Get returns the next unused host uid / gid
func (c *credGen) Get() syscall.Credential {
	n := c.cur.Add(1)
	return syscall.Credential{
		Uid: n,
		Gid: n,
	}
}

func kernelAtLeast(major, minor int) bool {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return false
	}
	var ma, mi int
	fmt.Sscanf(unix.ByteSliceToString(u.Release[:]), "%d.%d", &ma, &mi)
	return ma > major || (ma == major && mi >= minor)
}
