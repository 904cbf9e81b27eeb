package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/venkatnarayana7/Python-Debugger/types"
)

func TestConvertRequest(t *testing.T) {
	tests := []struct {
		req Request
		err bool
	}{
		{Request{Code: "x = 1", ErrorLog: "NameError"}, false},
		{Request{Code: "x = 1"}, true},
		{Request{ErrorLog: "NameError"}, true},
		{Request{Code: "  ", ErrorLog: "\n"}, true},
	}
	for _, tc := range tests {
		s, err := ConvertRequest(&tc.req)
		if tc.err != (err != nil) {
			t.Errorf("ConvertRequest(%+v) error = %v", tc.req, err)
			continue
		}
		if err == nil && (s.Code != tc.req.Code || s.ErrorLog != tc.req.ErrorLog) {
			t.Errorf("unexpected submission %+v", s)
		}
	}
}

func TestConvertResult(t *testing.T) {
	c := []types.Candidate{{ID: "a", Rank: 0, Source: "a"}, {ID: "b", Rank: 1, Source: "b"}}
	r := ConvertResult(types.VerificationResult{
		RequestID: "req",
		Status:    types.StatusSuccess,
		ErrorType: types.ErrorCategory{
			Category:  types.CategoryRuntime,
			Signature: types.Signature{Exception: "ZeroDivisionError", Frame: "main.py:2"},
		},
		Candidates: c,
		Outcomes: []types.Outcome{
			{CandidateID: "a", Status: types.OutcomeTimeout, TimedOut: true, Duration: time.Second},
			{CandidateID: "b", Status: types.OutcomePassed, Passed: true},
		},
		Winner: &c[1],
	})
	if r.Status != "success" || r.Reason != "" || r.ErrorType.Category != "RUNTIME" {
		t.Errorf("unexpected result %+v", r)
	}
	if r.Winner == nil || r.Winner.ID != "b" {
		t.Errorf("unexpected winner %+v", r.Winner)
	}
	if r.Outcomes[0].Status != "timeout" || r.Outcomes[0].Duration != uint64(time.Second) {
		t.Errorf("unexpected outcome %+v", r.Outcomes[0])
	}
}

func TestFailureResultEncodesNullWinner(t *testing.T) {
	r := ConvertResult(types.VerificationResult{RequestID: "req", Reason: types.ReasonGenerationUnavailable})
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatal(err)
	}
	if v, ok := m["winner"]; !ok || v != nil {
		t.Errorf("expected null winner, got %v", v)
	}
	if v, ok := m["outcomes"].([]any); !ok || len(v) != 0 {
		t.Errorf("expected empty outcomes, got %v", m["outcomes"])
	}
	if m["status"] != "failure" || m["reason"] != "generation_unavailable" {
		t.Errorf("unexpected status %v %v", m["status"], m["reason"])
	}
}
