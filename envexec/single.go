package envexec

import (
	"context"
)

// Single defines the running instruction to run single
// exec inside one isolated environment
type Single struct {
	// Cmd defines the Cmd to run
	Cmd *Cmd
}

// Run starts the cmd and returns exec results
func (s *Single) Run(ctx context.Context) (result Result, err error) {
	result, err = runSingle(ctx, s.Cmd)
	if err != nil {
		result.Status = StatusInternalError
		result.Error = err.Error()
		return result, err
	}
	return result, nil
}
