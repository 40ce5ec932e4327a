package results

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/stimline/internal/timeline"
)

// ErrNotFinished is returned by Flush before the run is complete.
var ErrNotFinished = errors.New("run not finished")

// Collector gathers sealed results from an engine and hands the completed
// run to a Sink exactly once.
//
// Collector implements engine.Observer. Its callbacks never block; the
// sink is written from Flush on the caller's goroutine.
//
// Thread-safety: all methods are safe for concurrent use.
type Collector struct {
	sink   Sink
	logger *slog.Logger

	mu       sync.Mutex
	run      Run
	pending  map[string]bool // scored step ids without a result yet
	finished bool
	flushed  bool
	done     chan struct{}
}

// NewCollector creates a collector for a run over steps.
// A nil sink makes Flush a no-op.
func NewCollector(steps []timeline.Step, meta Meta, sink Sink, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	pending := make(map[string]bool)
	for i := range steps {
		if steps[i].Scored() {
			pending[steps[i].ID] = true
		}
	}
	return &Collector{
		sink:    sink,
		pending: pending,
		logger:  logger.With("run_id", meta.ID),
		run: Run{
			ID:          meta.ID,
			Participant: meta.Participant,
			Seed:        meta.Seed,
			Fingerprint: meta.Fingerprint,
			ScoredSteps: CountScored(steps),
			Results:     []timeline.StepResult{},
		},
		done: make(chan struct{}),
	}
}

// StepActivated records the start of the run.
func (c *Collector) StepActivated(step timeline.Step, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run.StartedAt.IsZero() {
		c.run.StartedAt = at
	}
	if step.IsTerminal() {
		c.finishLocked(at)
	}
}

// ResultSealed appends a result. The run completes once every scored step
// of the sequence has at least one result; retries of a step add results
// without bringing completion closer.
func (c *Collector) ResultSealed(r timeline.StepResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		c.logger.Debug("result after finish ignored", "step_id", r.StepID)
		return
	}
	c.run.Results = append(c.run.Results, r)
	delete(c.pending, r.StepID)
	if c.run.ScoredSteps > 0 && len(c.pending) == 0 {
		at := r.StartedAt
		if r.CompletedAt != nil {
			at = *r.CompletedAt
		}
		c.finishLocked(at)
	}
}

// RunFinished completes the run if it is not already complete.
func (c *Collector) RunFinished(results []timeline.StepResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		return
	}
	at := c.run.StartedAt
	if n := len(results); n > 0 && results[n-1].CompletedAt != nil {
		at = *results[n-1].CompletedAt
	}
	c.finishLocked(at)
}

func (c *Collector) finishLocked(at time.Time) {
	if c.finished {
		return
	}
	c.finished = true
	c.run.FinishedAt = &at
	c.logger.Info("run complete", "results", len(c.run.Results), "unanswered", len(c.pending))
	close(c.done)
}

// Done is closed when the run completes.
func (c *Collector) Done() <-chan struct{} {
	return c.done
}

// Finished reports whether the run is complete.
func (c *Collector) Finished() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finished
}

// Run returns a copy of the run gathered so far.
func (c *Collector) Run() Run {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.run
	out.Results = make([]timeline.StepResult, len(c.run.Results))
	for i, r := range c.run.Results {
		out.Results[i] = r.Clone()
	}
	if c.run.FinishedAt != nil {
		t := *c.run.FinishedAt
		out.FinishedAt = &t
	}
	return out
}

// Flush hands the completed run to the sink. Later calls return nil
// without writing again; a failed write may be retried.
func (c *Collector) Flush(ctx context.Context) error {
	c.mu.Lock()
	if !c.finished {
		c.mu.Unlock()
		return ErrNotFinished
	}
	if c.flushed || c.sink == nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	run := c.Run()
	if err := c.sink.SaveRun(ctx, run); err != nil {
		c.logger.Error("persisting run failed", "error", err)
		return err
	}

	c.mu.Lock()
	c.flushed = true
	c.mu.Unlock()
	c.logger.Info("run persisted", "results", len(run.Results))
	return nil
}
