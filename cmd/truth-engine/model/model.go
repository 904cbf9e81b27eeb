// Package model defines the JSON wire types of the verification server
package model

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/venkatnarayana7/Python-Debugger/progress"
	"github.com/venkatnarayana7/Python-Debugger/types"
)

// Verifier runs one verification, progress goes to the recorder
type Verifier interface {
	Verify(context.Context, types.Submission, progress.Recorder) types.VerificationResult
}

// Request defines a verification request
type Request struct {
	Code     string `json:"code"`
	ErrorLog string `json:"errorLog"`
}

// ClientMessage defines a message sent by a WebSocket client. The first
// message carries the request, later ones may only cancel.
type ClientMessage struct {
	Request
	Cancel bool `json:"cancel,omitempty"`
}

// Event defines a progress event
type Event struct {
	Seq    int       `json:"seq"`
	Time   time.Time `json:"time"`
	Stage  string    `json:"stage"`
	Marker string    `json:"marker"`
	Text   string    `json:"text"`
}

// ErrorType defines the classified error
type ErrorType struct {
	Category  string `json:"category"`
	Exception string `json:"exception,omitempty"`
	Frame     string `json:"frame,omitempty"`
}

// Candidate defines a candidate repair
type Candidate struct {
	ID     string `json:"id"`
	Rank   int    `json:"rank"`
	Source string `json:"source"`
}

// Outcome defines the execution outcome of one candidate
type Outcome struct {
	CandidateID string `json:"candidateId"`
	Status      string `json:"status"`
	Passed      bool   `json:"passed"`
	TimedOut    bool   `json:"timedOut"`
	Crashed     bool   `json:"crashed"`
	ExitStatus  int    `json:"exitStatus"`
	ExitSignal  string `json:"exitSignal,omitempty"`
	Duration    uint64 `json:"duration"` // ns
	Stdout      string `json:"stdout"`
	Stderr      string `json:"stderr"`
	Error       string `json:"error,omitempty"`
}

// Result defines the final verification result
type Result struct {
	RequestID    string      `json:"requestId"`
	Status       string      `json:"status"`
	Reason       string      `json:"reason,omitempty"`
	ErrorType    ErrorType   `json:"errorType"`
	Source       string      `json:"source,omitempty"`
	Reproduction string      `json:"reproduction,omitempty"`
	Candidates   []Candidate `json:"candidates"`
	Outcomes     []Outcome   `json:"outcomes"`
	Winner       *Candidate  `json:"winner"`
}

// Response defines the REST response
type Response struct {
	Result    Result   `json:"result"`
	Events    []Event  `json:"events"`
	Libraries []string `json:"libraries"`
}

// Message types of the stream
const (
	MessageEvent  = "event"
	MessageResult = "result"
	MessageError  = "error"
)

// StreamMessage defines a message sent to a WebSocket client
type StreamMessage struct {
	Type      string   `json:"type"`
	Event     *Event   `json:"event,omitempty"`
	Result    *Result  `json:"result,omitempty"`
	Libraries []string `json:"libraries,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// ConvertRequest validates the request and converts it to a submission
func ConvertRequest(r *Request) (types.Submission, error) {
	var missing []string
	if strings.TrimSpace(r.Code) == "" {
		missing = append(missing, "code")
	}
	if strings.TrimSpace(r.ErrorLog) == "" {
		missing = append(missing, "errorLog")
	}
	if len(missing) > 0 {
		return types.Submission{}, errors.New("missing " + strings.Join(missing, ", "))
	}
	return types.Submission{Code: r.Code, ErrorLog: r.ErrorLog}, nil
}

// ConvertEvent converts a progress event
func ConvertEvent(e progress.Event) Event {
	return Event{
		Seq:    e.Seq,
		Time:   e.Time,
		Stage:  e.Stage,
		Marker: e.Marker.String(),
		Text:   e.Text,
	}
}

// ConvertEvents converts progress events
func ConvertEvents(ev []progress.Event) []Event {
	rt := make([]Event, 0, len(ev))
	for _, e := range ev {
		rt = append(rt, ConvertEvent(e))
	}
	return rt
}

// ConvertResult converts the verification result
func ConvertResult(r types.VerificationResult) Result {
	rt := Result{
		RequestID: r.RequestID,
		Status:    r.Status.String(),
		Reason:    string(r.Reason),
		ErrorType: ErrorType{
			Category:  r.ErrorType.Category.String(),
			Exception: r.ErrorType.Signature.Exception,
			Frame:     r.ErrorType.Signature.Frame,
		},
		Source:       r.Source,
		Reproduction: r.Reproduction,
		Candidates:   make([]Candidate, 0, len(r.Candidates)),
		Outcomes:     make([]Outcome, 0, len(r.Outcomes)),
	}
	for _, c := range r.Candidates {
		rt.Candidates = append(rt.Candidates, convertCandidate(c))
	}
	for _, o := range r.Outcomes {
		rt.Outcomes = append(rt.Outcomes, Outcome{
			CandidateID: o.CandidateID,
			Status:      o.Status.String(),
			Passed:      o.Passed,
			TimedOut:    o.TimedOut,
			Crashed:     o.Crashed,
			ExitStatus:  o.ExitStatus,
			ExitSignal:  o.ExitSignal,
			Duration:    uint64(o.Duration),
			Stdout:      o.Stdout,
			Stderr:      o.Stderr,
			Error:       o.Error,
		})
	}
	if r.Winner != nil {
		w := convertCandidate(*r.Winner)
		rt.Winner = &w
	}
	return rt
}

func convertCandidate(c types.Candidate) Candidate {
	return Candidate{
		ID:     c.ID,
		Rank:   c.Rank,
		Source: c.Source,
	}
}
