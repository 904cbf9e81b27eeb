package wsverifier

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"

	"github.com/venkatnarayana7/Python-Debugger/cmd/truth-engine/model"
	"github.com/venkatnarayana7/Python-Debugger/progress"
	"github.com/venkatnarayana7/Python-Debugger/types"
)

// blockingVerifier reports one event and waits for cancel when block is set
type blockingVerifier struct {
	block bool
}

func (b *blockingVerifier) Verify(ctx context.Context, sub types.Submission, rec progress.Recorder) types.VerificationResult {
	rec.Append("classify", progress.MarkerProgress, "Classifying error...")
	if b.block {
		<-ctx.Done()
		rec.Append("done", progress.MarkerFail, "Verification cancelled [FAIL]")
		return types.VerificationResult{RequestID: "req", Reason: types.ReasonCancelled}
	}
	rec.Append("done", progress.MarkerFail, "Verification failed: all candidates failed [FAIL]")
	return types.VerificationResult{RequestID: "req", Reason: types.ReasonExhausted}
}

func dial(t *testing.T, v model.Verifier) *websocket.Conn {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	New(v, zaptest.NewLogger(t)).Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readAll(t *testing.T, conn *websocket.Conn, onEvent func(model.Event)) (events []model.Event, result *model.Result) {
	t.Helper()
	for {
		var m model.StreamMessage
		if err := conn.ReadJSON(&m); err != nil {
			t.Fatalf("read: %v", err)
		}
		switch m.Type {
		case model.MessageEvent:
			events = append(events, *m.Event)
			if onEvent != nil {
				onEvent(*m.Event)
			}
		case model.MessageResult:
			return events, m.Result
		default:
			t.Fatalf("unexpected message %+v", m)
		}
	}
}

func TestStreamEventsThenResult(t *testing.T) {
	conn := dial(t, &blockingVerifier{})
	if err := conn.WriteJSON(model.ClientMessage{Request: model.Request{Code: "x = 1/0", ErrorLog: "ZeroDivisionError"}}); err != nil {
		t.Fatal(err)
	}
	events, result := readAll(t, conn, nil)
	if len(events) != 2 || events[0].Seq != 1 || events[1].Seq != 2 {
		t.Fatalf("unexpected events %+v", events)
	}
	if result.Status != "failure" || result.Reason != string(types.ReasonExhausted) || result.Winner != nil {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestStreamCancel(t *testing.T) {
	conn := dial(t, &blockingVerifier{block: true})
	if err := conn.WriteJSON(model.ClientMessage{Request: model.Request{Code: "x = 1/0", ErrorLog: "ZeroDivisionError"}}); err != nil {
		t.Fatal(err)
	}
	_, result := readAll(t, conn, func(e model.Event) {
		if e.Seq == 1 {
			if err := conn.WriteJSON(model.ClientMessage{Cancel: true}); err != nil {
				t.Error(err)
			}
		}
	})
	if result.Reason != string(types.ReasonCancelled) {
		t.Errorf("expected cancelled, got %+v", result)
	}
}

func TestStreamBadRequest(t *testing.T) {
	conn := dial(t, &blockingVerifier{})
	if err := conn.WriteJSON(model.ClientMessage{Request: model.Request{Code: "x = 1"}}); err != nil {
		t.Fatal(err)
	}
	var m model.StreamMessage
	if err := conn.ReadJSON(&m); err != nil {
		t.Fatal(err)
	}
	if m.Type != model.MessageError || !strings.Contains(m.Error, "errorLog") {
		t.Errorf("unexpected message %+v", m)
	}
}
