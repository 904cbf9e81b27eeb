package restverifier

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/venkatnarayana7/Python-Debugger/cmd/truth-engine/model"
	"github.com/venkatnarayana7/Python-Debugger/progress"
	"github.com/venkatnarayana7/Python-Debugger/types"
)

// mockVerifier accepts the first candidate of every submission
type mockVerifier struct {
	calls int
}

func (m *mockVerifier) Verify(_ context.Context, sub types.Submission, rec progress.Recorder) types.VerificationResult {
	m.calls++
	rec.Append("classify", progress.MarkerProgress, "Classifying error...")
	rec.Append("done", progress.MarkerPass, "Verification complete: candidate #1 accepted [PASS]")
	c := types.Candidate{ID: "c1", Source: sub.Code + " # fixed"}
	return types.VerificationResult{
		RequestID:  "req",
		Status:     types.StatusSuccess,
		Candidates: []types.Candidate{c},
		Outcomes:   []types.Outcome{{CandidateID: "c1", Status: types.OutcomePassed, Passed: true}},
		Winner:     &c,
	}
}

func newRouter(t *testing.T, v model.Verifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewVerifyHandle(v, zaptest.NewLogger(t)).Register(r)
	return r
}

func post(r http.Handler, body any) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/verify", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandleVerify(t *testing.T) {
	v := &mockVerifier{}
	w := post(newRouter(t, v), model.Request{
		Code:     "import numpy\nx = 1/0",
		ErrorLog: "ZeroDivisionError: division by zero",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp model.Response
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Result.Status != "success" || resp.Result.Winner == nil || resp.Result.Winner.ID != "c1" {
		t.Errorf("unexpected result %+v", resp.Result)
	}
	if len(resp.Events) != 2 || resp.Events[1].Marker != "pass" {
		t.Errorf("unexpected events %+v", resp.Events)
	}
	if len(resp.Libraries) != 1 || resp.Libraries[0] != "numpy" {
		t.Errorf("unexpected libraries %v", resp.Libraries)
	}
}

func TestHandleVerifyBadRequest(t *testing.T) {
	v := &mockVerifier{}
	r := newRouter(t, v)
	for _, body := range []any{
		model.Request{Code: "x = 1"},
		model.Request{ErrorLog: "NameError"},
		"not an object",
	} {
		if w := post(r, body); w.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for %v, got %d", body, w.Code)
		}
	}
	if v.calls != 0 {
		t.Errorf("verifier called %d times for bad requests", v.calls)
	}
}
