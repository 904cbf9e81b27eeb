package envexec

import (
	"context"
	"os"

	"github.com/criyle/go-sandbox/runner"
)

const defaultExtraMemoryLimit Size = 16 << 10 // 16k

// runSingle runs Cmd inside the given environment
func runSingle(pc context.Context, c *Cmd) (result Result, err error) {
	m := c.Environment
	// copyin
	if err := copyIn(m, c.CopyIn); err != nil {
		result.Status = StatusFileError
		result.Error = err.Error()
		return result, nil
	}

	stdout, stderr, err := newOutputFiles()
	if err != nil {
		return result, err
	}
	defer closeFiles(stdout, stderr)

	// run cmd and wait for result
	rt, tle := runSingleWait(pc, m, c, []*os.File{nil, stdout, stderr})

	// collect result
	out, err := collectOutput(c.OutputLimit, stdout, stderr)
	result = Result{
		Status:     convertStatus(rt.Status),
		ExitStatus: rt.ExitStatus,
		Error:      rt.Error,
		Time:       rt.Time,
		RunTime:    rt.RunningTime,
		Memory:     rt.Memory,
		Stdout:     out[0],
		Stderr:     out[1],
	}
	// collect error (only if the process exits normally)
	if rt.Status == runner.StatusNormal && err != nil && result.Error == "" {
		switch err := err.(type) {
		case runner.Status:
			result.Status = convertStatus(err)
		default:
			result.Status = StatusFileError
		}
		result.Error = err.Error()
	}
	if c.TimeLimit > 0 && result.Time > c.TimeLimit {
		result.Status = StatusTimeLimitExceeded
	}
	if c.MemoryLimit > 0 && result.Memory > c.MemoryLimit {
		result.Status = StatusMemoryLimitExceeded
	}
	if tle {
		result.Status = StatusTimeLimitExceeded
	}
	return result, nil
}

// runSingleWait returns the runner result and whether the waiter reported TLE
func runSingleWait(pc context.Context, m Environment, c *Cmd, files []*os.File) (RunnerResult, bool) {
	// start the cmd (it will be killed once ctx is canceled)
	ctx, cancel := context.WithCancel(pc)
	defer cancel()

	process, err := runSingleExecve(ctx, m, c, files)
	if err != nil {
		return runner.Result{
			Status: runner.StatusRunnerError,
			Error:  err.Error(),
		}, false
	}

	waiter := c.Waiter
	if waiter == nil {
		waiter = waitDone
	}
	tleCh := make(chan bool, 1)
	go func() {
		defer cancel()
		tleCh <- waiter(ctx, process)
	}()

	// ensure waiter exit
	tle := <-tleCh
	return process.Result(), tle
}

func runSingleExecve(ctx context.Context, m Environment, c *Cmd, files []*os.File) (Process, error) {
	extraMemoryLimit := c.ExtraMemoryLimit
	if extraMemoryLimit == 0 {
		extraMemoryLimit = defaultExtraMemoryLimit
	}

	var memoryLimit Size
	if c.MemoryLimit > 0 {
		memoryLimit = c.MemoryLimit + extraMemoryLimit
	}

	stackLimit := c.StackLimit
	if memoryLimit > 0 && stackLimit > memoryLimit {
		stackLimit = memoryLimit
	}

	// set running parameters
	execParam := ExecveParam{
		Args:  c.Args,
		Env:   c.Env,
		Files: files,
		Limit: Limit{
			Time:   c.TimeLimit,
			Memory: memoryLimit,
			Proc:   c.ProcLimit,
			Stack:  stackLimit,
			Output: c.OutputLimit,
		},
	}
	return m.Execve(ctx, execParam)
}

func waitDone(ctx context.Context, p Process) bool {
	select {
	case <-ctx.Done():
	case <-p.Done():
	}
	return false
}
