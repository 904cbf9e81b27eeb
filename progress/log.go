// Package progress keeps the ordered, append only event log of one request
// and its final result.
package progress

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/venkatnarayana7/Python-Debugger/types"
)

// Marker classifies an event for presentation
type Marker int

// Defines event markers
const (
	MarkerProgress Marker = iota
	MarkerPass
	MarkerFail
	MarkerInfo
)

var markerToString = []string{
	"progress",
	"pass",
	"fail",
	"info",
}

func (m Marker) String() string {
	mi := int(m)
	if mi < 0 || mi >= len(markerToString) {
		return markerToString[MarkerInfo]
	}
	return markerToString[mi]
}

// Text markers used inside event text
const (
	TextProgress = "..."
	TextPass     = "[PASS]"
	TextFail     = "[FAIL]"
)

// Event is one progress message. Seq starts at 1 and is gap free.
type Event struct {
	Seq    int
	Time   time.Time
	Stage  string
	Marker Marker
	Text   string
}

func (e Event) String() string {
	return fmt.Sprintf("#%d %s [%s] %s", e.Seq, e.Stage, e.Marker, e.Text)
}

// Recorder receives progress events
type Recorder interface {
	Append(stage string, marker Marker, text string) Event
}

// Log is safe for concurrent use. Appends after Finish are dropped.
type Log struct {
	mu       sync.Mutex
	events   []Event
	notify   chan struct{} // closed and replaced on every change
	result   *types.VerificationResult
	finished bool
	done     chan struct{}
	now      func() time.Time
}

var _ Recorder = &Log{}

// New creates an empty log
func New() *Log {
	return &Log{
		notify: make(chan struct{}),
		done:   make(chan struct{}),
		now:    time.Now,
	}
}

// Append adds the event with the next sequence number
func (l *Log) Append(stage string, marker Marker, text string) Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.finished {
		return Event{}
	}
	e := Event{
		Seq:    len(l.events) + 1,
		Time:   l.now(),
		Stage:  stage,
		Marker: marker,
		Text:   text,
	}
	l.events = append(l.events, e)
	l.wakeLocked()
	return e
}

// Finish stores the final result and closes the log
func (l *Log) Finish(result types.VerificationResult) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.finished {
		return
	}
	l.result = &result
	l.finished = true
	close(l.done)
	l.wakeLocked()
}

func (l *Log) wakeLocked() {
	close(l.notify)
	l.notify = make(chan struct{})
}

// Done is closed after Finish
func (l *Log) Done() <-chan struct{} {
	return l.done
}

// Result returns the final result once finished
func (l *Log) Result() (types.VerificationResult, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.result == nil {
		return types.VerificationResult{}, false
	}
	return *l.result, true
}

// Events returns a copy of all events so far
func (l *Log) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]Event(nil), l.events...)
}

// Watch replays all events and then streams new ones. The channel is closed
// after the last event once the log is finished, or when ctx is done.
func (l *Log) Watch(ctx context.Context) <-chan Event {
	ch := make(chan Event)
	go func() {
		defer close(ch)
		next := 0
		for {
			l.mu.Lock()
			pending := append([]Event(nil), l.events[next:]...)
			notify := l.notify
			finished := l.finished
			l.mu.Unlock()

			for _, e := range pending {
				select {
				case ch <- e:
				case <-ctx.Done():
					return
				}
			}
			next += len(pending)
			if finished && len(pending) == 0 {
				return
			}
			if len(pending) > 0 {
				continue
			}
			select {
			case <-notify:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}
