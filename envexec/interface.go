package envexec

import (
	"context"
	"os"
	"time"
)

// ExecveParam is parameters to run process inside environment
type ExecveParam struct {
	// Args holds command line arguments
	Args []string

	// Env specifies the environment of the process
	Env []string

	// Files specifies stdin, stdout and stderr for the child process,
	// nil entries are connected to /dev/null
	Files []*os.File

	// Process Limitations
	Limit Limit
}

// Limit defines the process running resource limits
type Limit struct {
	Time   time.Duration // Time limit
	Memory Size          // Memory limit
	Proc   uint64        // Process count limit
	Stack  Size          // Stack limit
	Output Size          // Output limit
}

// Process reference to the running process group
type Process interface {
	Done() <-chan struct{} // Done returns a channel for wait process to exit
	Result() RunnerResult  // Result wait until done and returns RunnerResult
}

// Environment defines the interface to access an isolated execution environment.
// Cancelling the context passed to Execve kills the process.
type Environment interface {
	Execve(context.Context, ExecveParam) (Process, error)
	// Open opens a file relative to the private work directory, the name
	// never resolves outside of it
	Open(name string, flags int, perm os.FileMode) (*os.File, error)
}
