// Package orchestrator drives one verification request: classify the error,
// generate candidates, run them in the sandbox and select the lowest rank
// candidate that passes.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/venkatnarayana7/Python-Debugger/classify"
	"github.com/venkatnarayana7/Python-Debugger/envexec"
	"github.com/venkatnarayana7/Python-Debugger/generator"
	"github.com/venkatnarayana7/Python-Debugger/progress"
	"github.com/venkatnarayana7/Python-Debugger/sandbox"
	"github.com/venkatnarayana7/Python-Debugger/types"
	"github.com/venkatnarayana7/Python-Debugger/worker"
)

// DefaultMaxCandidates is K, the number of candidates kept from the generator
const DefaultMaxCandidates = 5

// Config defines orchestrator configuration
type Config struct {
	Worker    worker.Worker
	Generator generator.Generator

	MaxCandidates   int
	TimeLimit       time.Duration
	MemoryLimit     envexec.Size
	RequestDeadline time.Duration

	Logger *zap.Logger
	// Observer is called once per finished request
	Observer func(types.VerificationResult, time.Duration)
}

// Orchestrator verifies submissions. It keeps no state between requests.
type Orchestrator struct {
	worker    worker.Worker
	generator generator.Generator

	maxCandidates   int
	timeLimit       time.Duration
	memoryLimit     envexec.Size
	requestDeadline time.Duration

	logger   *zap.Logger
	observer func(types.VerificationResult, time.Duration)
}

// New creates an orchestrator
func New(c Config) *Orchestrator {
	o := &Orchestrator{
		worker:          c.Worker,
		generator:       c.Generator,
		maxCandidates:   c.MaxCandidates,
		timeLimit:       c.TimeLimit,
		memoryLimit:     c.MemoryLimit,
		requestDeadline: c.RequestDeadline,
		logger:          c.Logger,
		observer:        c.Observer,
	}
	if o.maxCandidates <= 0 {
		o.maxCandidates = DefaultMaxCandidates
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o
}

// request holds the state of one Verify call
type request struct {
	*Orchestrator
	machine
	rec    progress.Recorder
	result types.VerificationResult
	logger *zap.Logger
}

func (r *request) enter(s State) {
	r.machine.enter(s)
	r.logger.Debug("enter state", zap.Stringer("state", s))
}

func (r *request) event(marker progress.Marker, format string, args ...any) {
	r.rec.Append(r.state.String(), marker, fmt.Sprintf(format, args...))
}

// Verify runs the whole pipeline for one submission. Progress goes to rec,
// the terminal event is the last one appended. Verify returns only after
// every dispatched candidate has reported its outcome.
func (o *Orchestrator) Verify(ctx context.Context, sub types.Submission, rec progress.Recorder) types.VerificationResult {
	start := time.Now()
	id := uuid.NewString()
	r := &request{
		Orchestrator: o,
		rec:          rec,
		result: types.VerificationResult{
			RequestID: id,
			Status:    types.StatusFailure,
		},
		logger: o.logger.With(zap.String("request", id)),
	}
	if o.requestDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.requestDeadline)
		defer cancel()
	}

	r.run(ctx, sub)

	if err := r.result.Check(); err != nil {
		r.logger.DPanic("inconsistent verification result", zap.Error(err))
	}
	d := time.Since(start)
	r.logger.Info("verification finished",
		zap.Stringer("status", r.result.Status),
		zap.String("reason", string(r.result.Reason)),
		zap.Int("candidates", len(r.result.Candidates)),
		zap.Duration("duration", d))
	if o.observer != nil {
		o.observer(r.result, d)
	}
	return r.result
}

func (r *request) run(ctx context.Context, sub types.Submission) {
	r.enter(StateClassifying)
	r.event(progress.MarkerProgress, "Classifying error%s", progress.TextProgress)
	r.result.ErrorType = classify.Classify(sub.Code, sub.ErrorLog)
	r.event(progress.MarkerInfo, "Error classified as %s", r.result.ErrorType)

	r.enter(StateGenerating)
	r.event(progress.MarkerProgress, "Generating fix candidates%s", progress.TextProgress)
	packet, err := r.generator.Generate(ctx, generator.Request{
		Code:          sub.Code,
		ErrorLog:      sub.ErrorLog,
		ErrorType:     r.result.ErrorType,
		Hints:         generator.DetectLibraries(sub.Code),
		MaxCandidates: r.maxCandidates,
	})
	if err != nil {
		r.logger.Warn("generation failed", zap.Error(err))
		if ctx.Err() != nil {
			r.finish(ctxReason(ctx), -1)
			return
		}
		r.event(progress.MarkerFail, "Candidate generation failed: %v %s", err, progress.TextFail)
		r.finish(types.ReasonGenerationUnavailable, -1)
		return
	}
	r.result.Source = packet.Source
	r.result.Reproduction = packet.Reproduction
	r.result.Candidates = r.prepare(packet)
	if len(r.result.Candidates) == 0 {
		r.finish(types.ReasonNoCandidates, -1)
		return
	}

	r.enter(StateDispatching)
	jobCtx, cancelJobs := context.WithCancel(ctx)
	defer cancelJobs()
	responses := r.dispatch(jobCtx, packet.Reproduction)

	r.enter(StateSelecting)
	winner, reason := r.selectWinner(ctx, responses)

	// stop the rest and wait for every job to release its environment
	cancelJobs()
	for len(r.result.Outcomes) < len(r.result.Candidates) {
		r.record(<-responses)
	}
	r.sortOutcomes()
	r.finish(reason, winner)
}

// prepare truncates the generator output to K and collapses duplicates to
// their earliest rank
func (r *request) prepare(packet *generator.Packet) []types.Candidate {
	sources := packet.Candidates
	if len(sources) > r.maxCandidates {
		r.event(progress.MarkerInfo, "Keeping the first %d of %d candidates", r.maxCandidates, len(sources))
		sources = sources[:r.maxCandidates]
	}
	var rt []types.Candidate
	seen := make(map[string]int)
	for i, s := range sources {
		if j, ok := seen[s]; ok {
			r.event(progress.MarkerInfo, "Candidate #%d is a duplicate of #%d, skipped", i+1, j+1)
			continue
		}
		seen[s] = i
		rt = append(rt, types.Candidate{
			ID:     uuid.NewString(),
			Source: s,
			Rank:   i,
		})
	}
	r.event(progress.MarkerInfo, "Generated %d candidates (%d unique) from %s", len(sources), len(rt), packet.Source)
	return rt
}

// dispatch submits every candidate in rank order. The returned channel is
// buffered so that no forwarding goroutine outlives its response.
func (r *request) dispatch(ctx context.Context, reproduction string) <-chan worker.Response {
	responses := make(chan worker.Response, len(r.result.Candidates))
	for _, c := range r.result.Candidates {
		r.event(progress.MarkerProgress, "Running candidate #%d%s", c.Rank+1, progress.TextProgress)
		ch := r.worker.Submit(ctx, &worker.Request{
			RequestID: r.result.RequestID,
			Candidate: c,
			Job: sandbox.Job{
				Source:       c.Source,
				Reproduction: reproduction,
				Fault:        r.result.ErrorType,
				TimeLimit:    r.timeLimit,
				MemoryLimit:  r.memoryLimit,
			},
		})
		go func() {
			responses <- <-ch
		}()
	}
	return responses
}

// selectWinner waits for outcomes and advances a cursor over the candidates
// in rank order. A passed outcome is accepted only when every lower rank has
// resolved as failed. It returns the winner index or -1.
func (r *request) selectWinner(ctx context.Context, responses <-chan worker.Response) (int, types.Reason) {
	candidates := r.result.Candidates
	resolved := make([]*types.Outcome, len(candidates))
	index := make(map[string]int, len(candidates))
	for i, c := range candidates {
		index[c.ID] = i
	}

	cursor := 0
	for {
		select {
		case <-ctx.Done():
			return -1, ctxReason(ctx)

		case resp := <-responses:
			o := r.record(resp)
			i, ok := index[resp.Candidate.ID]
			if !ok {
				r.logger.DPanic("response for unknown candidate", zap.String("candidate", resp.Candidate.ID))
				continue
			}
			resolved[i] = &o
			for cursor < len(candidates) && resolved[cursor] != nil && !resolved[cursor].Passed {
				cursor++
			}
			if cursor == len(candidates) {
				return -1, types.ReasonExhausted
			}
			if resolved[cursor] != nil && resolved[cursor].Passed {
				return cursor, types.ReasonNone
			}
		}
	}
}

// record stores the outcome and reports it
func (r *request) record(resp worker.Response) types.Outcome {
	o := resp.Outcome
	o.CandidateID = resp.Candidate.ID
	r.result.Outcomes = append(r.result.Outcomes, o)

	n := resp.Candidate.Rank + 1
	switch {
	case o.Passed:
		r.event(progress.MarkerPass, "Candidate #%d %s (%v)", n, progress.TextPass, o.Duration.Round(time.Millisecond))
	case o.Status == types.OutcomeCancelled:
		r.event(progress.MarkerInfo, "Candidate #%d cancelled", n)
	default:
		r.event(progress.MarkerFail, "Candidate #%d %s %s", n, progress.TextFail, failureDetail(o))
	}
	return o
}

// sortOutcomes orders outcomes by candidate rank
func (r *request) sortOutcomes() {
	byID := make(map[string]types.Outcome, len(r.result.Outcomes))
	for _, o := range r.result.Outcomes {
		byID[o.CandidateID] = o
	}
	rt := make([]types.Outcome, 0, len(r.result.Outcomes))
	for _, c := range r.result.Candidates {
		if o, ok := byID[c.ID]; ok {
			rt = append(rt, o)
		}
	}
	r.result.Outcomes = rt
}

// finish appends the terminal event
func (r *request) finish(reason types.Reason, winner int) {
	r.enter(StateDone)
	if winner >= 0 {
		c := r.result.Candidates[winner]
		r.result.Status = types.StatusSuccess
		r.result.Winner = &c
		r.event(progress.MarkerPass, "Verification complete: candidate #%d accepted %s", c.Rank+1, progress.TextPass)
		return
	}
	r.result.Reason = reason
	switch reason {
	case types.ReasonGenerationUnavailable:
		r.event(progress.MarkerFail, "Verification failed: no candidates could be generated %s", progress.TextFail)
	case types.ReasonNoCandidates:
		r.event(progress.MarkerFail, "Verification failed: generator returned no candidates %s", progress.TextFail)
	case types.ReasonDeadlineExceeded:
		r.event(progress.MarkerFail, "Verification failed: request deadline exceeded %s", progress.TextFail)
	case types.ReasonCancelled:
		r.event(progress.MarkerFail, "Verification cancelled %s", progress.TextFail)
	default:
		r.event(progress.MarkerFail, "Verification failed: all candidates failed %s", progress.TextFail)
	}
}

func ctxReason(ctx context.Context) types.Reason {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return types.ReasonDeadlineExceeded
	}
	return types.ReasonCancelled
}

func failureDetail(o types.Outcome) string {
	switch {
	case o.TimedOut:
		return fmt.Sprintf("timed out after %v", o.Duration.Round(time.Millisecond))
	case o.Error != "":
		return fmt.Sprintf("%s: %s", o.Status, o.Error)
	case o.ExitSignal != "":
		return fmt.Sprintf("%s: %s", o.Status, o.ExitSignal)
	default:
		return fmt.Sprintf("%s: exit status %d", o.Status, o.ExitStatus)
	}
}
