// Package sandbox executes one candidate repair inside an isolated,
// resource bounded environment and reports its outcome.
package sandbox

import (
	"context"
	"fmt"
	"syscall"
	"time"

	"github.com/venkatnarayana7/Python-Debugger/classify"
	"github.com/venkatnarayana7/Python-Debugger/envexec"
	"github.com/venkatnarayana7/Python-Debugger/types"
	"go.uber.org/zap"
)

// Defaults for zero valued job limits
const (
	DefaultTimeLimit   = 5 * time.Second
	DefaultMemoryLimit = envexec.Size(256 << 20)
	defaultProcLimit   = 16
)

// EnvironmentPool provides isolated environments
type EnvironmentPool interface {
	Get() (envexec.Environment, error)
	Put(envexec.Environment)
}

// Job is one candidate execution
type Job struct {
	// Source is the candidate program
	Source string
	// Reproduction is an optional harness that imports the candidate and
	// exercises the failing case. Without it the candidate runs directly.
	Reproduction string
	// Fault is the classified original failure
	Fault types.ErrorCategory

	TimeLimit   time.Duration
	MemoryLimit envexec.Size
}

// Executor executes jobs, it never fails: every problem is reported in the outcome
type Executor interface {
	Execute(context.Context, Job) types.Outcome
}

// Config defines executor configuration
type Config struct {
	EnvironmentPool  EnvironmentPool
	Profile          *Profile
	OutputLimit      envexec.Size
	ExtraMemoryLimit envexec.Size
	ProcLimit        uint64
	Logger           *zap.Logger
}

type executor struct {
	pool             EnvironmentPool
	profile          *Profile
	outputLimit      envexec.Size
	extraMemoryLimit envexec.Size
	procLimit        uint64
	logger           *zap.Logger
}

// New creates new executor
func New(conf Config) Executor {
	profile := conf.Profile
	if profile == nil {
		profile = DefaultProfile()
	}
	procLimit := conf.ProcLimit
	if procLimit == 0 {
		procLimit = defaultProcLimit
	}
	logger := conf.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &executor{
		pool:             conf.EnvironmentPool,
		profile:          profile,
		outputLimit:      conf.OutputLimit,
		extraMemoryLimit: conf.ExtraMemoryLimit,
		procLimit:        procLimit,
		logger:           logger,
	}
}

func (e *executor) Execute(ctx context.Context, job Job) types.Outcome {
	if ctx.Err() != nil {
		return types.Outcome{Status: types.OutcomeCancelled, Error: ctx.Err().Error()}
	}

	// security pre-flight
	if v := e.profile.Violation(job.Source); v != "" {
		e.logger.Debug("candidate rejected", zap.String("pattern", v))
		return types.Outcome{
			Status: types.OutcomeRejected,
			Error:  fmt.Sprintf("security violation: matches %q", v),
		}
	}

	env, err := e.pool.Get()
	if err != nil {
		e.logger.Error("failed to get environment", zap.Error(err))
		return types.Outcome{
			Status: types.OutcomeFailed,
			Error:  fmt.Sprintf("failed to get environment: %v", err),
		}
	}
	defer e.pool.Put(env)

	timeLimit := job.TimeLimit
	if timeLimit <= 0 {
		timeLimit = DefaultTimeLimit
	}
	memoryLimit := job.MemoryLimit
	if memoryLimit <= 0 {
		memoryLimit = DefaultMemoryLimit
	}

	copyIn := map[string][]byte{
		e.profile.SourceFile: []byte(job.Source),
	}
	entry := e.profile.SourceFile
	if job.Reproduction != "" {
		copyIn[e.profile.HarnessFile] = []byte(job.Reproduction)
		entry = e.profile.HarnessFile
	}

	w := &waiter{timeLimit: timeLimit}
	s := &envexec.Single{Cmd: &envexec.Cmd{
		Environment:      env,
		CopyIn:           copyIn,
		Args:             e.profile.Args(entry),
		Env:              e.profile.Env,
		TimeLimit:        timeLimit,
		MemoryLimit:      memoryLimit,
		ExtraMemoryLimit: e.extraMemoryLimit,
		OutputLimit:      e.outputLimit,
		ProcLimit:        e.procLimit,
		Waiter:           w.Wait,
	}}
	start := time.Now()
	rt, err := s.Run(ctx)
	o := e.convertResult(ctx, job.Fault, timeLimit, rt, err)
	if o.Duration == 0 {
		o.Duration = time.Since(start)
	}
	e.logger.Debug("candidate executed",
		zap.String("status", o.Status.String()),
		zap.String("result", rt.Status.String()),
		zap.Int("exitStatus", rt.ExitStatus),
		zap.Duration("duration", o.Duration),
	)
	return o
}

func (e *executor) convertResult(ctx context.Context, fault types.ErrorCategory, timeLimit time.Duration, rt envexec.Result, err error) types.Outcome {
	o := types.Outcome{
		Stdout:     string(rt.Stdout),
		Stderr:     string(rt.Stderr),
		ExitStatus: rt.ExitStatus,
		Duration:   rt.RunTime,
		Error:      rt.Error,
	}
	if rt.Status == envexec.StatusSignalled {
		o.ExitSignal = syscall.Signal(rt.ExitStatus).String()
	}

	switch {
	case ctx.Err() != nil:
		o.Status = types.OutcomeCancelled
		o.Error = ctx.Err().Error()

	case err != nil:
		o.Status = types.OutcomeFailed
		o.Error = err.Error()

	case rt.Status == envexec.StatusTimeLimitExceeded:
		o.Status = types.OutcomeTimeout
		o.TimedOut = true
		o.Error = fmt.Sprintf("timed out after %v", timeLimit)

	case rt.Status.Crashed():
		o.Status = types.OutcomeCrashed
		o.Crashed = true
		if o.Error == "" {
			o.Error = rt.Status.String()
		}

	case rt.Status == envexec.StatusAccepted:
		if classify.Reproduced(fault, o.Stderr+o.Stdout) {
			o.Status = types.OutcomeFailed
			o.Error = "original fault reproduced: " + fault.Signature.String()
			break
		}
		o.Status = types.OutcomePassed
		o.Passed = true

	case e.profile.memoryError(o.Stderr):
		o.Status = types.OutcomeCrashed
		o.Crashed = true
		o.Error = envexec.StatusMemoryLimitExceeded.String()

	default:
		o.Status = types.OutcomeFailed
		if o.Error == "" {
			o.Error = rt.Status.String()
		}
	}
	return o
}
