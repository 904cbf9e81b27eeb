package envexec

import (
	"context"
	"time"

	"github.com/criyle/go-sandbox/runner"
)

// Size represent data size in bytes
type Size = runner.Size

// RunnerResult represent process finish result
type RunnerResult = runner.Result

// Cmd defines instruction to run a program in an isolated environment
type Cmd struct {
	Environment Environment

	// file contents to copyin before exec, keyed by work dir relative name
	CopyIn map[string][]byte

	// exec argument, environment
	Args []string
	Env  []string

	// resource limits
	TimeLimit        time.Duration
	MemoryLimit      Size
	ExtraMemoryLimit Size
	StackLimit       Size
	OutputLimit      Size
	ProcLimit        uint64

	// Waiter is called after cmd starts and it should return
	// once time limit exceeded.
	// return true to as TLE and false as normal exits (context finished)
	Waiter func(context.Context, Process) bool
}

// Result defines the running result for single Cmd
type Result struct {
	Status Status

	ExitStatus int

	Error string // error

	Time    time.Duration
	RunTime time.Duration
	Memory  Size // byte

	Stdout []byte
	Stderr []byte
}
