package sandbox

import (
	"context"
	"time"

	"github.com/venkatnarayana7/Python-Debugger/envexec"
)

// waiter enforces the wall clock limit of one run
type waiter struct {
	timeLimit time.Duration
}

func (w *waiter) Wait(ctx context.Context, u envexec.Process) bool {
	timer := time.NewTimer(w.timeLimit)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-u.Done():
		return false
	case <-timer.C:
		return true
	}
}
