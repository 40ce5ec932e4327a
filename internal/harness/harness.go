package harness

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/stimline/internal/capture"
	"github.com/roach88/stimline/internal/clock"
	"github.com/roach88/stimline/internal/compiler"
	"github.com/roach88/stimline/internal/engine"
	"github.com/roach88/stimline/internal/loader"
	"github.com/roach88/stimline/internal/results"
	"github.com/roach88/stimline/internal/store"
	"github.com/roach88/stimline/internal/testutil"
	"github.com/roach88/stimline/internal/timeline"
)

// Epoch is the simulated start time of every session.
var Epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// DefaultTimeout bounds how long timers may run after the last input.
const DefaultTimeout = 10 * time.Minute

// screenSize is the layout box used for scripted clicks.
var screenSize = timeline.Rect{Width: 100, Height: 100}

// Options configures Run.
type Options struct {
	// Store receives the finished run. If nil, a fresh in-memory store
	// is used for the session and closed afterwards.
	Store *store.Store

	// Logger receives engine and compiler logs. Defaults to discarding.
	Logger *slog.Logger

	// RunID overrides the run id. Defaults to "run-1".
	RunID string
}

// Harness drives one scenario.
type Harness struct {
	scenario *Scenario
	clock    *clock.Manual
	engine   *engine.Engine
	store    *store.Store
	logger   *slog.Logger
	result   *Result
}

// Run executes a scenario and returns the result.
//
// Each session compiles the timeline with sequential ids and the
// scenario's seed, drives the engine on a manual clock and persists the
// finished run, so results are byte-identical across runs.
//
// Execution flow:
// 1. Load and compile the timeline
// 2. Start the engine and apply inputs in order
// 3. Let remaining timers run out, bounded by the scenario timeout
// 4. Persist the run if it finished
// 5. Evaluate assertions
func Run(ctx context.Context, scenario *Scenario, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	st := opts.Store
	if st == nil {
		mem, err := store.Open(":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		defer mem.Close()
		st = mem
	}

	tl, err := loader.LoadTimeline(scenario.Timeline)
	if err != nil {
		return nil, fmt.Errorf("load timeline: %w", err)
	}

	copts := []compiler.Option{
		compiler.WithSeed(scenario.Seed),
		compiler.WithIDGenerator(testutil.NewSequentialIDs("s")),
		compiler.WithLogger(logger),
	}
	if scenario.TasksDir != "" {
		copts = append(copts, compiler.WithLookup(loader.DirLookup{Dir: scenario.TasksDir}))
	}
	compiled, err := compiler.New(copts...).Compile(ctx, tl.Steps)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}

	runID := opts.RunID
	if runID == "" {
		runID = "run-1"
	}

	h := &Harness{
		scenario: scenario,
		clock:    clock.NewManual(Epoch),
		store:    st,
		logger:   logger,
		result:   NewResult(),
	}
	for _, w := range compiled.Warnings {
		h.result.Warnings = append(h.result.Warnings, w.Code)
	}

	collector := results.NewCollector(compiled.Steps, results.Meta{
		ID:          runID,
		Participant: scenario.Participant,
		Seed:        compiled.Seed,
		Fingerprint: compiled.Fingerprint,
	}, st, logger)

	h.engine = engine.New(compiled.Steps,
		engine.WithClock(h.clock),
		engine.WithLogger(logger),
		engine.WithIDGenerator(fixedID(runID)),
		engine.WithObserver(collector),
		engine.WithObserver(h.tracer()),
	)

	if err := h.engine.Start(); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	h.engine.Drain()

	for i, in := range scenario.Inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		h.advance(time.Duration(in.Wait))
		h.apply(i, in)
	}
	h.runOut(scenario.timeout())
	h.engine.Stop()

	res := h.result
	res.Finished = collector.Finished()
	res.Run = collector.Run()
	res.Summary = results.Summarize(res.Run.Results)
	if res.Finished {
		if err := collector.Flush(ctx); err != nil {
			return nil, fmt.Errorf("persist run: %w", err)
		}
	}

	actx := &AssertionContext{Store: st, Ctx: ctx}
	for _, msg := range EvaluateAssertions(res, scenario.Assertions, actx) {
		res.AddError(msg)
	}
	return res, nil
}

func (s *Scenario) timeout() time.Duration {
	if s.Timeout > 0 {
		return time.Duration(s.Timeout)
	}
	return DefaultTimeout
}

// advance moves the clock forward by d one deadline at a time, draining
// the engine after each so timers armed by an expiry fire in the same window.
func (h *Harness) advance(d time.Duration) {
	target := h.clock.Now().Add(d)
	for {
		next, ok := h.clock.NextDeadline()
		if !ok || next.After(target) {
			break
		}
		h.clock.Advance(next.Sub(h.clock.Now()))
		h.engine.Drain()
	}
	h.clock.Advance(target.Sub(h.clock.Now()))
	h.engine.Drain()
}

// runOut fires pending timers until the run finishes, nothing is pending,
// or limit of simulated time has passed.
func (h *Harness) runOut(limit time.Duration) {
	deadline := h.clock.Now().Add(limit)
	for !h.engine.Finished() {
		next, ok := h.clock.NextDeadline()
		if !ok || next.After(deadline) {
			return
		}
		h.clock.Advance(next.Sub(h.clock.Now()))
		h.engine.Drain()
	}
}

// apply delivers one scripted input and records it in the trace.
func (h *Harness) apply(i int, in Input) {
	var (
		desc string
		err  error
	)
	switch {
	case in.Key != "":
		desc = "key " + in.Key
		err = h.engine.Key(capture.ParseCombo(in.Key))
	case in.Click != "":
		desc = "click " + in.Click
		err = h.engine.Pointer(clickEvent(in))
	case in.Fire != "":
		desc = "fire " + in.Fire
		err = h.engine.FireTrigger(in.Fire)
	case in.RepeatAmount != nil:
		desc = fmt.Sprintf("repeat_amount %s=%d", in.RepeatAmount.Step, in.RepeatAmount.Amount)
		err = h.engine.SetRepeatAmount(in.RepeatAmount.Step, in.RepeatAmount.Amount)
	default:
		return
	}

	ev := TraceEvent{Kind: EventInput, AtMillis: h.elapsed(h.clock.Now()), Input: desc}
	if err != nil {
		ev.Kind = EventRejected
		ev.Error = err.Error()
		h.logger.Debug("input rejected", "input", i, "error", err)
	}
	h.result.Trace = append(h.result.Trace, ev)
	h.engine.Drain()
}

// clickEvent builds a pointer event whose block spans a 100x100 box, so
// X and Y map directly to percentages.
func clickEvent(in Input) capture.PointerEvent {
	root := capture.Element{Bounds: screenSize}
	ev := capture.PointerEvent{
		Kind:    capture.PointerClick,
		ClientX: in.X,
		ClientY: in.Y,
		Path:    []capture.Element{root},
	}
	if in.Click != ScreenClick {
		ev.Path = []capture.Element{{BlockID: in.Click, Bounds: screenSize}, root}
	}
	return ev
}

// tracer records engine notifications into the trace.
func (h *Harness) tracer() engine.Observer {
	return engine.ObserverFuncs{
		OnStepActivated: func(step timeline.Step, at time.Time) {
			h.result.Trace = append(h.result.Trace, TraceEvent{
				Kind:       EventActivate,
				AtMillis:   h.elapsed(at),
				StepID:     step.ID,
				TemplateID: step.TemplateID,
				Synthetic:  string(step.Synthetic),
			})
		},
		OnResultSealed: func(r timeline.StepResult) {
			ev := TraceEvent{
				Kind:         EventSeal,
				AtMillis:     h.elapsed(h.clock.Now()),
				StepID:       r.StepID,
				TemplateID:   r.TemplateID,
				Correct:      r.IsCorrect,
				Interactions: len(r.Interactions),
			}
			if rt, ok := r.ReactionTime(); ok {
				ms := rt.Milliseconds()
				ev.RTMillis = &ms
			}
			h.result.Trace = append(h.result.Trace, ev)
		},
		OnRunFinished: func([]timeline.StepResult) {
			h.result.Trace = append(h.result.Trace, TraceEvent{
				Kind:     EventFinish,
				AtMillis: h.elapsed(h.clock.Now()),
			})
		},
	}
}

func (h *Harness) elapsed(t time.Time) int64 {
	return t.Sub(Epoch).Milliseconds()
}

// fixedID hands the engine a predetermined run id.
type fixedID string

func (f fixedID) Generate() string { return string(f) }
