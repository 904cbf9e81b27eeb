package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/venkatnarayana7/Python-Debugger/types"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestAppendOrder(t *testing.T) {
	l := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Append("Dispatching", MarkerProgress, "Running candidate...")
		}()
	}
	wg.Wait()

	events := l.Events()
	if len(events) != 50 {
		t.Fatalf("got %d events", len(events))
	}
	for i, e := range events {
		if e.Seq != i+1 {
			t.Fatalf("event %d has seq %d", i, e.Seq)
		}
		if i > 0 && e.Time.Before(events[i-1].Time) {
			t.Fatalf("event %d timestamp goes backwards", i)
		}
	}
}

func TestWatchReplayAndLive(t *testing.T) {
	l := New()
	l.Append("Classifying", MarkerProgress, "Classifying error...")
	l.Append("Classifying", MarkerInfo, "Error classified as RUNTIME")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := l.Watch(ctx)

	for want := 1; want <= 2; want++ {
		e := <-ch
		if e.Seq != want {
			t.Fatalf("replay: got seq %d, want %d", e.Seq, want)
		}
	}

	l.Append("Selecting", MarkerPass, "Verification complete: candidate #1 accepted [PASS]")
	if e := <-ch; e.Seq != 3 || e.Marker != MarkerPass {
		t.Fatalf("live event: %v", e)
	}

	l.Finish(types.VerificationResult{Status: types.StatusFailure, Reason: types.ReasonExhausted})
	if _, ok := <-ch; ok {
		t.Fatal("watch channel should close after finish")
	}
}

func TestFinishAfterTerminalEvent(t *testing.T) {
	l := New()
	ch := l.Watch(context.Background())

	l.Append("Done", MarkerFail, "Verification failed: all candidates failed [FAIL]")
	l.Finish(types.VerificationResult{Status: types.StatusFailure})
	l.Append("Done", MarkerInfo, "dropped")

	var got []Event
	for e := range ch {
		got = append(got, e)
	}
	if len(got) != 1 || got[0].Marker != MarkerFail {
		t.Fatalf("events: %v", got)
	}
	select {
	case <-l.Done():
	default:
		t.Fatal("done not closed")
	}
	if r, ok := l.Result(); !ok || r.Status != types.StatusFailure {
		t.Fatalf("result: %+v %v", r, ok)
	}
	if n := len(l.Events()); n != 1 {
		t.Fatalf("append after finish kept, %d events", n)
	}
}

func TestWatchCancel(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	ch := l.Watch(ctx)
	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("unexpected event")
		}
	case <-time.After(time.Second):
		t.Fatal("watch did not stop on cancel")
	}
}
