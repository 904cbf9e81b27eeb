package worker

import (
	"fmt"

	"github.com/venkatnarayana7/Python-Debugger/sandbox"
	"github.com/venkatnarayana7/Python-Debugger/types"
)

// Request defines single worker request: one candidate of one verification
type Request struct {
	RequestID string
	Candidate types.Candidate
	Job       sandbox.Job
}

// Response defines worker response for single request
type Response struct {
	RequestID string
	Candidate types.Candidate
	Outcome   types.Outcome
	// Started is false when the request was cancelled before execution
	Started bool
}

func (r Response) String() string {
	type Outcome struct {
		Status     string
		Passed     bool
		ExitStatus int
		ExitSignal string
		Duration   string
		Stdout     string
		Stderr     string
		Error      string
	}
	d := Outcome{
		Status:     r.Outcome.Status.String(),
		Passed:     r.Outcome.Passed,
		ExitStatus: r.Outcome.ExitStatus,
		ExitSignal: r.Outcome.ExitSignal,
		Duration:   r.Outcome.Duration.String(),
		Stdout:     fmt.Sprintf("(len:%d)", len(r.Outcome.Stdout)),
		Stderr:     fmt.Sprintf("(len:%d)", len(r.Outcome.Stderr)),
		Error:      r.Outcome.Error,
	}
	return fmt.Sprintf("%s #%d %+v", r.RequestID, r.Candidate.Rank+1, d)
}
