package docker

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/criyle/go-sandbox/runner"
	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/mount"
	"github.com/moby/moby/client"
	"github.com/venkatnarayana7/Python-Debugger/env/pool"
	"github.com/venkatnarayana7/Python-Debugger/envexec"
)

const (
	stdoutName = ".stdout"
	stderrName = ".stderr"
)

// redirect output into the work dir so it survives container removal
var shellWrapper = []string{"sh", "-c", `exec "$@" >` + containerWorkDir + "/" + stdoutName + " 2>" + containerWorkDir + "/" + stderrName, "sh"}

var _ pool.Environment = &environment{}

type environment struct {
	cli   *client.Client
	image string
	wd    string
}

// Execve creates and starts a container, the container is killed when c is done
func (e *environment) Execve(c context.Context, param envexec.ExecveParam) (envexec.Process, error) {
	sTime := time.Now()
	limit := param.Limit

	hostCfg := &container.HostConfig{
		Mounts: []mount.Mount{{
			Type:   mount.TypeBind,
			Source: e.wd,
			Target: containerWorkDir,
		}},
		NetworkMode:    "none",
		ReadonlyRootfs: true,
		SecurityOpt:    []string{"no-new-privileges"},
		Tmpfs:          map[string]string{"/tmp": "rw,size=16m"},
	}
	if limit.Memory > 0 {
		hostCfg.Memory = int64(limit.Memory)
		hostCfg.MemorySwap = int64(limit.Memory)
	}
	if limit.Proc > 0 {
		pids := int64(limit.Proc)
		hostCfg.PidsLimit = &pids
	}

	containerCfg := &container.Config{
		Image:           e.image,
		Cmd:             append(append([]string(nil), shellWrapper...), param.Args...),
		Env:             param.Env,
		WorkingDir:      containerWorkDir,
		User:            containerUser,
		NetworkDisabled: true,
		Labels:          map[string]string{containerLabel: "true"},
	}

	createResp, err := e.cli.ContainerCreate(c, client.ContainerCreateOptions{
		Config:     containerCfg,
		HostConfig: hostCfg,
	})
	if err != nil {
		return nil, fmt.Errorf("creating container: %w", err)
	}
	containerID := createResp.ID
	remove := func() {
		e.cli.ContainerRemove(context.Background(), containerID, client.ContainerRemoveOptions{Force: true})
	}

	mTime := time.Now()
	if _, err := e.cli.ContainerStart(c, containerID, client.ContainerStartOptions{}); err != nil {
		remove()
		return nil, fmt.Errorf("starting container: %w", err)
	}

	p := &process{done: make(chan struct{})}
	go func() {
		defer close(p.done)
		defer remove()

		p.result = e.wait(c, containerID)
		p.result.SetUpTime = mTime.Sub(sTime)
		p.result.RunningTime = time.Since(mTime)
		if err := e.copyOutput(param.Files, limit.Output); err != nil && p.result.Error == "" {
			p.result.Error = err.Error()
		}
	}()
	return p, nil
}

func (e *environment) wait(c context.Context, containerID string) runner.Result {
	waitResult := e.cli.ContainerWait(c, containerID, client.ContainerWaitOptions{
		Condition: container.WaitConditionNotRunning,
	})
	for {
		select {
		case err := <-waitResult.Error:
			if err == nil {
				// nil error means no error on this channel; wait for result
				continue
			}
			e.cli.ContainerKill(context.Background(), containerID, client.ContainerKillOptions{Signal: "SIGKILL"})
			return runner.Result{
				Status:     runner.StatusSignalled,
				ExitStatus: 9,
				Error:      err.Error(),
			}

		case status := <-waitResult.Result:
			return exitResult(int(status.StatusCode))
		}
	}
}

// exitResult converts a shell style exit code, 128+n is signal n
func exitResult(code int) runner.Result {
	switch {
	case code == 0:
		return runner.Result{Status: runner.StatusNormal}
	case code > 128:
		return runner.Result{Status: runner.StatusSignalled, ExitStatus: code - 128}
	default:
		return runner.Result{Status: runner.StatusNonzeroExitStatus, ExitStatus: code}
	}
}

// copyOutput moves the redirected output into the caller files
func (e *environment) copyOutput(files []*os.File, limit envexec.Size) error {
	for i, name := range []string{stdoutName, stderrName} {
		fi := i + 1
		if fi >= len(files) || files[fi] == nil {
			continue
		}
		if err := copyFile(files[fi], filepath.Join(e.wd, name), limit); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(dst *os.File, src string, limit envexec.Size) error {
	f, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("copy output: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if limit > 0 {
		// one extra byte to let the caller detect the limit
		r = io.LimitReader(f, int64(limit)+1)
	}
	if _, err := io.Copy(dst, r); err != nil {
		return fmt.Errorf("copy output: %w", err)
	}
	return nil
}

// Open opens a file in the bind mounted work directory
func (e *environment) Open(name string, flags int, perm os.FileMode) (*os.File, error) {
	return envexec.OpenInDir(e.wd, name, flags, perm)
}

// Reset clears the work directory for the next run
func (e *environment) Reset() error {
	entries, err := os.ReadDir(e.wd)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(e.wd, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// Destroy removes the work directory
func (e *environment) Destroy() error {
	return os.RemoveAll(e.wd)
}

type process struct {
	done   chan struct{}
	result runner.Result
}

func (p *process) Done() <-chan struct{} {
	return p.done
}

func (p *process) Result() runner.Result {
	<-p.done
	return p.result
}
