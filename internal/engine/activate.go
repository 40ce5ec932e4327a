package engine

import (
	"time"

	"github.com/roach88/stimline/internal/timeline"
)

// activate makes steps[idx] the active step.
//
// The open result is sealed before the new one is opened. Activating the
// step that is already active re-enters it with a fresh result.
func (e *Engine) activate(idx int) {
	if idx < 0 || idx >= len(e.steps) {
		e.logger.Warn("activation out of range", "index", idx)
		return
	}
	now := e.clock.Now()

	e.cancelTimers()
	e.epoch++
	e.sealCurrent(now)

	e.active = idx
	step := e.steps[idx]
	e.isUpdating = false
	e.showTryAgain = false
	e.lastCorrect = nil
	e.pending = nil
	if step.Scored() && step.TemplateID != e.lineage {
		e.wrongCount = 0
		e.lineage = step.TemplateID
	}

	e.logger.Debug("step activated",
		"step_id", step.ID,
		"template_id", step.TemplateID,
		"index", idx,
		"epoch", e.epoch,
	)
	e.notify(func(o Observer) { o.StepActivated(step, now) })

	if step.IsTerminal() {
		e.capture.Detach()
		e.finish()
		return
	}

	e.current = &timeline.StepResult{
		StepID:       step.ID,
		TemplateID:   step.TemplateID,
		StepType:     step.Type,
		Seq:          e.seq.Next(),
		Scored:       step.Scored(),
		Practice:     step.Config() != nil && step.Config().IsPractice,
		StartedAt:    now,
		Interactions: []timeline.Interaction{},
	}
	e.capture.Attach(step.ID, e.record)

	for _, tr := range step.Triggers() {
		if tr.Metadata.Kind == timeline.TriggerTimer {
			e.arm(timerTrigger, timeline.ResolveDelay(tr.Metadata.Delay).Duration(), tr.ID)
		}
	}
}

// sealCurrent closes the open result and appends it to the history.
func (e *Engine) sealCurrent(now time.Time) {
	if e.current == nil {
		return
	}
	completed := now
	e.current.CompletedAt = &completed
	sealed := e.current.Clone()
	e.results = append(e.results, sealed)
	e.current = nil
	e.notify(func(o Observer) { o.ResultSealed(sealed.Clone()) })
}

func (e *Engine) finish() {
	if e.finished {
		return
	}
	e.finished = true
	results := cloneResults(e.results)
	e.logger.Info("run finished", "results", len(results))
	e.notify(func(o Observer) { o.RunFinished(cloneResults(results)) })
	close(e.done)
}

// arm schedules an engine timer in the current epoch.
func (e *Engine) arm(kind timerKind, d time.Duration, triggerID string) {
	ev := Event{Type: EventTimer, Epoch: e.epoch, timer: kind, TriggerID: triggerID}
	t := e.clock.AfterFunc(d, func() {
		// A closed queue means the run was torn down; drop the expiry.
		e.queue.Enqueue(ev)
	})
	e.timers = append(e.timers, t)
}

func (e *Engine) cancelTimers() {
	for _, t := range e.timers {
		t.Stop()
	}
	e.timers = e.timers[:0]
}

// timerExpired handles an engine timer. Expiries from an older epoch were
// queued before their step changed and are discarded.
func (e *Engine) timerExpired(ev Event) {
	if ev.Epoch != e.epoch || e.finished {
		e.logger.Debug("stale timer discarded", "epoch", ev.Epoch, "current_epoch", e.epoch)
		return
	}

	switch ev.timer {
	case timerTrigger:
		step := e.activeStep()
		if step == nil {
			return
		}
		for _, tr := range step.Triggers() {
			if tr.ID != ev.TriggerID {
				continue
			}
			delay := timeline.ResolveDelay(tr.Metadata.Delay)
			in := timeline.Interaction{
				Type:         timeline.InteractionTimer,
				Timestamp:    e.clock.Now(),
				Target:       tr.StimulusID,
				ExpectedTime: delay.Ptr(),
			}
			e.handleInteraction(in, &tr)
			return
		}

	case timerSettle:
		nav := e.pending
		e.pending = nil
		if nav == nil {
			e.isUpdating = false
			return
		}
		e.navigate(nav)
		if ev.Epoch == e.epoch {
			// Navigation was a no-op; accept answers again.
			e.isUpdating = false
		}

	case timerTryAgain:
		e.showTryAgain = false
		nav := e.pending
		e.pending = nil
		if nav == nil {
			return
		}
		e.navigate(nav)
		if ev.Epoch == e.epoch {
			e.isUpdating = false
		}
	}
}

// notify queues an observer callback to run once the loop releases its lock.
func (e *Engine) notify(fn func(Observer)) {
	for _, o := range e.observers {
		e.outbox = append(e.outbox, func() { fn(o) })
	}
}
