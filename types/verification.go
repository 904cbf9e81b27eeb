package types

import (
	"fmt"
	"time"
)

// Submission is the request unit: broken code and the error trace it produced
type Submission struct {
	Code     string
	ErrorLog string
}

// Candidate is one proposed repair. Rank is its position in the generator output
// (0 = most confident) and the only tie-break between passing candidates.
type Candidate struct {
	ID     string
	Source string
	Rank   int
}

// OutcomeStatus summarizes how a candidate execution ended
type OutcomeStatus int

// Defines outcome status
const (
	OutcomeInvalid OutcomeStatus = iota
	OutcomePassed
	OutcomeFailed
	OutcomeTimeout
	OutcomeCrashed
	OutcomeRejected
	OutcomeCancelled
)

var outcomeStatusToString = []string{
	"invalid",
	"passed",
	"failed",
	"timeout",
	"crashed",
	"rejected",
	"cancelled",
}

func (s OutcomeStatus) String() string {
	si := int(s)
	if si < 0 || si >= len(outcomeStatusToString) {
		return outcomeStatusToString[0]
	}
	return outcomeStatusToString[si]
}

// Outcome is the result of executing one candidate, produced exactly once
type Outcome struct {
	CandidateID string
	Status      OutcomeStatus
	Passed      bool
	Stdout      string
	Stderr      string
	ExitStatus  int
	ExitSignal  string
	Duration    time.Duration
	TimedOut    bool
	Crashed     bool
	Error       string
}

// Status is the final request status
type Status int

// Defines request status
const (
	StatusFailure Status = iota
	StatusSuccess
)

func (s Status) String() string {
	if s == StatusSuccess {
		return "success"
	}
	return "failure"
}

// Reason explains a failure status
type Reason string

// Defines failure reasons
const (
	ReasonNone                  Reason = ""
	ReasonGenerationUnavailable Reason = "generation_unavailable"
	ReasonNoCandidates          Reason = "no_candidates"
	ReasonExhausted             Reason = "exhausted"
	ReasonDeadlineExceeded      Reason = "deadline_exceeded"
	ReasonCancelled             Reason = "cancelled"
)

// VerificationResult is the final structured result of one request
type VerificationResult struct {
	RequestID    string
	Status       Status
	Reason       Reason
	ErrorType    ErrorCategory
	Source       string
	Reproduction string
	Candidates   []Candidate
	Outcomes     []Outcome
	Winner       *Candidate
}

// Outcome returns the outcome of the candidate with given id
func (r *VerificationResult) Outcome(id string) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.CandidateID == id {
			return o, true
		}
	}
	return Outcome{}, false
}

// Check validates the success / winner / passed invariant
func (r *VerificationResult) Check() error {
	switch r.Status {
	case StatusSuccess:
		if r.Winner == nil {
			return fmt.Errorf("success without winner")
		}
		o, ok := r.Outcome(r.Winner.ID)
		if !ok || !o.Passed {
			return fmt.Errorf("winner %s has no passed outcome", r.Winner.ID)
		}
	default:
		if r.Winner != nil {
			return fmt.Errorf("failure with winner %s", r.Winner.ID)
		}
	}
	return nil
}
