package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/roach88/stimline/internal/action"
	"github.com/roach88/stimline/internal/capture"
	"github.com/roach88/stimline/internal/clock"
	"github.com/roach88/stimline/internal/timeline"
)

// Engine is the single-writer runtime for one compiled sequence.
//
// Thread-safety model:
//   - Start, Key, Pointer, FireTrigger, SetRepeatAmount, Stop: safe from any goroutine
//   - State, Results, ActiveStep: safe from any goroutine
//   - Run or Drain: exactly one goroutine at a time, never both
//
// INVARIANTS:
//   - results only grows; sealed results are never mutated
//   - at most one StepResult is open, and only while a non-terminal step is active
//   - every armed timer belongs to the current epoch
type Engine struct {
	clock           clock.Clock
	logger          *slog.Logger
	ids             IDGenerator
	settleDelay     time.Duration
	defaultFeedback time.Duration
	observers       []Observer

	queue   *eventQueue
	capture *capture.Capture
	seq     *clock.Seq
	runID   string
	done    chan struct{}

	// mu guards the loop state below. Only the loop goroutine writes it;
	// readers take the read lock.
	mu           sync.RWMutex
	steps        []timeline.Step
	active       int
	started      bool
	finished     bool
	current      *timeline.StepResult
	results      []timeline.StepResult
	wrongCount   int
	lineage      string
	isUpdating   bool
	showTryAgain bool
	lastCorrect  *bool
	epoch        uint64
	timers       []clock.Timer
	pending      *navigation

	// outbox holds observer notifications raised while mu is held.
	outbox []func()
}

// navigation is a deferred move executed when a settle or try-again timer expires.
type navigation struct {
	kind timeline.ActionKind
	// target is a trigger target: a step id or a lineage id.
	target string
	// lineage, when set, selects the scored step with this template id.
	lineage    string
	resetWrong bool
}

// New creates an engine for a compiled sequence. The sequence is copied;
// the caller's steps are never mutated.
func New(steps []timeline.Step, opts ...Option) *Engine {
	e := &Engine{
		settleDelay:     DefaultSettleDelay,
		defaultFeedback: DefaultFeedback,
		queue:           newEventQueue(),
		seq:             clock.NewSeq(),
		done:            make(chan struct{}),
		steps:           slices.Clone(steps),
		active:          -1,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.clock == nil {
		e.clock = clock.Real{}
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.ids != nil {
		e.runID = e.ids.Generate()
	}
	e.capture = capture.New(e.clock)
	e.logger = e.logger.With("run_id", e.runID)
	return e
}

// RunID returns the id assigned to this run, empty without an IDGenerator.
func (e *Engine) RunID() string {
	return e.runID
}

// Start requests activation of the first step.
func (e *Engine) Start() error {
	return e.enqueue(Event{Type: EventStart})
}

// Key relays a key-down event from the presentation layer.
func (e *Engine) Key(ev capture.KeyEvent) error {
	return e.enqueue(Event{Type: EventKey, Key: &ev})
}

// Pointer relays a click, context-menu or wheel event.
func (e *Engine) Pointer(ev capture.PointerEvent) error {
	return e.enqueue(Event{Type: EventPointer, Pointer: &ev})
}

// FireTrigger fires a trigger of the active step by id, as an on-screen
// control would. The interaction is recorded with type "trigger".
func (e *Engine) FireTrigger(triggerID string) error {
	return e.enqueue(Event{Type: EventFireTrigger, TriggerID: triggerID})
}

// SetRepeatAmount updates the repeat amount of every level whose step has
// the given template id; an empty id updates all levels. Amounts below 1
// are rejected and the previous value is kept.
func (e *Engine) SetRepeatAmount(templateID string, n int) error {
	if _, err := (timeline.Level{}).WithRepeatAmount(n); err != nil {
		rerr := &RuntimeError{
			Code:    ErrCodeInvalidRepeatAmount,
			Message: fmt.Sprintf("repeat amount %d rejected, keeping previous value", n),
			Err:     err,
		}
		e.logger.Warn("repeat amount update rejected", "template_id", templateID, "amount", n)
		return rerr
	}
	return e.enqueue(Event{Type: EventRepeatAmount, TemplateID: templateID, Amount: n})
}

func (e *Engine) enqueue(ev Event) error {
	if !e.queue.Enqueue(ev) {
		return ErrStopped
	}
	return nil
}

// Run starts the single-writer event loop. It blocks until the run
// finishes, Stop is called, or ctx is cancelled.
//
// Must be called from exactly ONE goroutine.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting", "steps", len(e.steps))

	for {
		if ev, ok := e.queue.TryDequeue(); ok {
			e.processEvent(ev)
			if e.Finished() {
				e.logger.Info("engine stopping: run finished")
				e.Stop()
				return nil
			}
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			e.Stop()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel closes when the queue is closed.
			if e.queue.Closed() && e.queue.Len() == 0 {
				e.logger.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Drain processes queued events on the caller's goroutine until the queue
// is empty and returns how many were processed. Scripted sessions pair it
// with a manual clock instead of running the loop.
func (e *Engine) Drain() int {
	n := 0
	for {
		ev, ok := e.queue.TryDequeue()
		if !ok {
			return n
		}
		e.processEvent(ev)
		n++
	}
}

// Stop tears the run down: input is refused, pending timers are cancelled
// and capture is detached. Results gathered so far remain readable.
func (e *Engine) Stop() {
	e.queue.Close()
	e.mu.Lock()
	e.cancelTimers()
	e.mu.Unlock()
	e.capture.Detach()
}

// Done is closed when the terminal step activates.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// processEvent applies one event and then notifies observers.
// Called only from the loop goroutine.
func (e *Engine) processEvent(ev Event) {
	e.mu.Lock()
	switch ev.Type {
	case EventStart:
		e.start()
	case EventKey:
		if e.capture.HandleKey(*ev.Key) {
			e.logger.Debug("key captured", "step_id", e.activeID())
		}
	case EventPointer:
		e.capture.HandlePointer(*ev.Pointer)
	case EventFireTrigger:
		e.fireTrigger(ev.TriggerID)
	case EventTimer:
		e.timerExpired(ev)
	case EventRepeatAmount:
		e.updateRepeatAmount(ev.TemplateID, ev.Amount)
	default:
		e.logger.Error("unknown event type", "type", ev.Type)
	}
	notes := e.outbox
	e.outbox = nil
	e.mu.Unlock()

	for _, note := range notes {
		note()
	}
}

func (e *Engine) start() {
	if e.started {
		return
	}
	e.started = true
	if len(e.steps) == 0 {
		e.logger.Warn("empty sequence, nothing to run")
		e.finish()
		return
	}
	e.activate(0)
}

func (e *Engine) activeID() string {
	if e.active < 0 || e.active >= len(e.steps) {
		return ""
	}
	return e.steps[e.active].ID
}

func (e *Engine) activeStep() *timeline.Step {
	if e.active < 0 || e.active >= len(e.steps) {
		return nil
	}
	return &e.steps[e.active]
}

// record receives interactions from capture for the active step.
func (e *Engine) record(in timeline.Interaction) {
	e.handleInteraction(in, nil)
}

func (e *Engine) fireTrigger(id string) {
	step := e.activeStep()
	if step == nil || e.current == nil {
		e.logger.Warn("trigger fired with no active step", "trigger_id", id)
		return
	}
	for _, tr := range step.Triggers() {
		if tr.ID == id {
			in := timeline.Interaction{
				Type:      timeline.InteractionTrigger,
				Timestamp: e.clock.Now(),
				Target:    tr.ID,
			}
			e.handleInteraction(in, &tr)
			return
		}
	}
	e.logger.Warn("trigger not on active step", "trigger_id", id, "step_id", step.ID)
}

// handleInteraction records in, evaluates the answer and dispatches the
// matched trigger's action, in that order.
func (e *Engine) handleInteraction(in timeline.Interaction, fired *timeline.Trigger) {
	step := e.activeStep()
	if step == nil || e.current == nil {
		return
	}
	epoch := e.epoch
	e.current.Interactions = append(e.current.Interactions, in)

	if fired == nil {
		fired = matchTrigger(step, in)
	}
	if !in.Type.IsResponse() {
		return
	}

	if e.isUpdating {
		e.logger.Debug("navigation pending, answer recorded only", "step_id", step.ID, "type", in.Type)
		return
	}
	if e.showTryAgain {
		// Cool-down: answers are recorded, only timers still navigate.
		if fired != nil && fired.Metadata.Kind == timeline.TriggerTimer {
			e.dispatch(fired.Metadata.Action, fired.Metadata.Target)
		}
		return
	}

	v := inconclusive
	if step.Scored() && len(step.Triggers()) > 0 {
		v = evaluate(step, e.current)
		e.applyVerdict(step, in, v, fired)
	}
	if e.isUpdating || e.showTryAgain || e.epoch != epoch {
		return
	}

	if step.IsMultiTrigger() && (in.Type == timeline.InteractionKeydown || in.Type == timeline.InteractionClick) {
		// Single answers only build the sequence. A complete sequence
		// leaves the step through the last answer's trigger.
		if v == inconclusive {
			return
		}
		nav := advanceOf(fired)
		e.dispatch(nav.kind, nav.target)
		return
	}
	if fired == nil {
		return
	}
	e.dispatch(fired.Metadata.Action, fired.Metadata.Target)
}

// dispatch executes an action against the sequence. Failures are logged
// and leave the active step unchanged.
func (e *Engine) dispatch(kind timeline.ActionKind, target string) {
	from := e.activeID()
	err := action.Execute(kind, action.Context{
		Steps:        e.steps,
		ActiveStepID: from,
		SetActiveStepID: func(id string) {
			e.activate(action.IndexOf(e.steps, id))
		},
		TargetStepID: e.resolveTarget(target),
		Logger:       e.logger,
	})
	if err != nil {
		rerr := newNavigationError(from, err)
		e.logger.Warn("navigation failed, staying on step",
			"code", rerr.Code,
			"step_id", from,
			"action", kind,
			"target", target,
			"error", err,
		)
	}
}

// navigate executes a deferred navigation.
func (e *Engine) navigate(nav *navigation) {
	if nav.resetWrong {
		e.wrongCount = 0
	}
	target := nav.target
	if nav.lineage != "" {
		target = e.resolveLineage(nav.lineage)
	}
	e.dispatch(nav.kind, target)
}

// resolveTarget maps a trigger target to a concrete step id: an exact step
// id first, then a lineage id. Unknown targets are returned unchanged so
// the registry reports them.
func (e *Engine) resolveTarget(target string) string {
	if target == "" || action.IndexOf(e.steps, target) >= 0 {
		return target
	}
	return e.resolveLineage(target)
}

// resolveLineage finds the scored step with the given template id,
// preferring the active step, then the next occurrence after it, then the
// first before it.
func (e *Engine) resolveLineage(lineage string) string {
	if cur := e.activeStep(); cur != nil && cur.Scored() && (cur.TemplateID == lineage || cur.ID == lineage) {
		return cur.ID
	}
	n := len(e.steps)
	for off := 1; off <= n; off++ {
		s := &e.steps[(e.active+off+n)%n]
		if s.Scored() && (s.TemplateID == lineage || s.ID == lineage) {
			return s.ID
		}
	}
	return lineage
}

func (e *Engine) updateRepeatAmount(templateID string, n int) {
	updated := 0
	for i := range e.steps {
		s := &e.steps[i]
		if s.Level() == nil || (templateID != "" && s.TemplateID != templateID) {
			continue
		}
		lvl, err := s.Level().WithRepeatAmount(n)
		if err != nil {
			continue
		}
		cfg := *s.Metadata.StimuliConfig
		cfg.Level = &lvl
		s.Metadata.StimuliConfig = &cfg
		updated++
	}
	e.logger.Info("repeat amount updated", "template_id", templateID, "amount", n, "steps", updated)
}

// State is a snapshot of what the presentation layer renders.
type State struct {
	ActiveStepID  string `json:"activeStepId"`
	ActiveIndex   int    `json:"activeIndex"`
	ShowTryAgain  bool   `json:"showTryAgain"`
	IsLastCorrect *bool  `json:"isLastCorrect,omitempty"`
	IsUpdating    bool   `json:"isUpdating"`
	WrongCount    int    `json:"wrongCount"`
	Started       bool   `json:"started"`
	Finished      bool   `json:"finished"`
	Results       int    `json:"results"`
}

// State returns a snapshot of the engine state.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st := State{
		ActiveStepID: e.activeID(),
		ActiveIndex:  e.active,
		ShowTryAgain: e.showTryAgain,
		IsUpdating:   e.isUpdating,
		WrongCount:   e.wrongCount,
		Started:      e.started,
		Finished:     e.finished,
		Results:      len(e.results),
	}
	if e.lastCorrect != nil {
		st.IsLastCorrect = timeline.Bool(*e.lastCorrect)
	}
	return st
}

// Finished reports whether the terminal step has activated.
func (e *Engine) Finished() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.finished
}

// Results returns copies of the sealed results in sealing order.
func (e *Engine) Results() []timeline.StepResult {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return cloneResults(e.results)
}

// Current returns a copy of the open result.
func (e *Engine) Current() (timeline.StepResult, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.current == nil {
		return timeline.StepResult{}, false
	}
	return e.current.Clone(), true
}

// ActiveStep returns the active step.
func (e *Engine) ActiveStep() (timeline.Step, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if s := e.activeStep(); s != nil {
		return *s, true
	}
	return timeline.Step{}, false
}

// Steps returns the sequence being run.
func (e *Engine) Steps() []timeline.Step {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.steps)
}

func cloneResults(rs []timeline.StepResult) []timeline.StepResult {
	out := make([]timeline.StepResult, len(rs))
	for i, r := range rs {
		out[i] = r.Clone()
	}
	return out
}
