// Package worker runs candidate executions with bounded parallelism. Requests
// are served in submission order.
package worker

import (
	"context"
	"sync"

	"github.com/venkatnarayana7/Python-Debugger/sandbox"
	"github.com/venkatnarayana7/Python-Debugger/types"
)

const maxWaiting = 512

// Config defines worker configuration
type Config struct {
	Executor     sandbox.Executor
	Parallelism  int
	ExecObserver func(Response)
}

// Worker defines interface for executor
type Worker interface {
	Start()
	Submit(context.Context, *Request) <-chan Response
	Shutdown()
}

// worker defines executor worker
type worker struct {
	executor    sandbox.Executor
	parallelism int

	execObserver func(Response)

	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
	workCh    chan workRequest
	done      chan struct{}

	// mu guards closed, enqueue holds the read lock
	mu     sync.RWMutex
	closed bool
}

type workRequest struct {
	*Request
	context.Context
	resultCh chan<- Response
}

// New creates new worker
func New(conf Config) Worker {
	parallelism := conf.Parallelism
	if parallelism <= 0 {
		parallelism = 1
	}
	return &worker{
		executor:     conf.Executor,
		parallelism:  parallelism,
		execObserver: conf.ExecObserver,
	}
}

// Start starts worker loops with given parallelism
func (w *worker) Start() {
	w.startOnce.Do(func() {
		w.workCh = make(chan workRequest, maxWaiting)
		w.done = make(chan struct{})
		w.wg.Add(w.parallelism)
		for i := 0; i < w.parallelism; i++ {
			go w.loop()
		}
	})
}

// Submit submits a single request. The returned channel always receives
// exactly one response: if ctx is done before the request starts, the
// response carries a cancelled outcome and nothing is executed.
func (w *worker) Submit(ctx context.Context, req *Request) <-chan Response {
	ch := make(chan Response, 1)
	wr := workRequest{
		Request:  req,
		Context:  ctx,
		resultCh: ch,
	}
	if err := w.enqueue(ctx, wr); err != nil {
		w.respond(wr, cancelled(req, err), false)
	}
	return ch
}

// enqueue never adds to workCh once Shutdown started its final drain
func (w *worker) enqueue(ctx context.Context, wr workRequest) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return context.Canceled
	}
	select {
	case w.workCh <- wr:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-w.done:
		return context.Canceled
	}
}

// Shutdown waits all worker to finish, queued requests are answered as cancelled
func (w *worker) Shutdown() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		w.closed = true
		w.mu.Unlock()
		w.wg.Wait()
		for {
			select {
			case req := <-w.workCh:
				w.respond(req, cancelled(req.Request, context.Canceled), false)
			default:
				return
			}
		}
	})
}

func (w *worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case req, ok := <-w.workCh:
			if !ok {
				return
			}
			w.workDoCmd(req)
		case <-w.done:
			return
		}
	}
}

func (w *worker) workDoCmd(req workRequest) {
	if err := req.Context.Err(); err != nil {
		w.respond(req, cancelled(req.Request, err), false)
		return
	}
	select {
	case <-w.done:
		w.respond(req, cancelled(req.Request, context.Canceled), false)
		return
	default:
	}
	o := w.executor.Execute(req.Context, req.Job)
	w.respond(req, o, true)
}

func (w *worker) respond(req workRequest, o types.Outcome, started bool) {
	o.CandidateID = req.Candidate.ID
	rt := Response{
		RequestID: req.RequestID,
		Candidate: req.Candidate,
		Outcome:   o,
		Started:   started,
	}
	if w.execObserver != nil {
		w.execObserver(rt)
	}
	req.resultCh <- rt
}

func cancelled(req *Request, err error) types.Outcome {
	return types.Outcome{
		CandidateID: req.Candidate.ID,
		Status:      types.OutcomeCancelled,
		Error:       err.Error(),
	}
}
