package engine

import (
	"time"

	"github.com/roach88/stimline/internal/timeline"
)

// applyVerdict runs the answer policy for the active step.
func (e *Engine) applyVerdict(step *timeline.Step, in timeline.Interaction, v verdict, fired *timeline.Trigger) {
	if v == inconclusive {
		return
	}
	e.logger.Debug("answer evaluated",
		"step_id", step.ID,
		"verdict", v.String(),
		"interactions", len(e.current.Interactions),
		"wrong_count", e.wrongCount,
	)

	if lvl := step.Level(); lvl != nil {
		e.applyLevel(step, lvl, v, fired)
		return
	}

	cfg := step.Config()
	advanceOnWrong := cfg != nil && cfg.AdvanceOnWrong
	if v == correct {
		e.mark(true)
		if advanceOnWrong || step.Type == timeline.StepSequentialStimuli {
			e.settle(advanceOf(fired))
		}
		return
	}

	e.mark(false)
	switch {
	case advanceOnWrong:
		e.settle(&navigation{kind: timeline.ActionGoToNextStep})
	case step.Type == timeline.StepSequentialStimuli && in.Type != timeline.InteractionTimer:
		e.tryAgain(step, nil)
	}
}

// applyLevel implements the retry and branching policy of a level.
func (e *Engine) applyLevel(step *timeline.Step, lvl *timeline.Level, v verdict, fired *timeline.Trigger) {
	if v == correct {
		if e.current.IsCorrect != nil && *e.current.IsCorrect {
			return
		}
		e.mark(true)
		e.wrongCount = 0
		e.settle(advanceOf(fired))
		return
	}

	e.mark(false)
	switch lvl.OnWrongAnswer {
	case timeline.OnWrongStop:
		e.wrongCount = 0
		e.settle(&navigation{kind: timeline.ActionStop})

	case timeline.OnWrongGoToNextStep:
		e.wrongCount = 0
		e.settle(&navigation{kind: timeline.ActionGoToNextStep})

	case timeline.OnWrongGoToStep:
		if lvl.GoToStepID == "" {
			e.logger.Warn("goToStep policy without goToStepId, staying on step",
				"code", ErrCodeUnresolvedTarget,
				"step_id", step.ID,
			)
			return
		}
		e.tryAgain(step, &navigation{kind: timeline.ActionGoToStep, lineage: lvl.GoToStepID, resetWrong: true})

	case timeline.OnWrongRepeat:
		e.tryAgain(step, &navigation{kind: timeline.ActionRepeat, lineage: step.TemplateID, resetWrong: true})

	default:
		if e.wrongCount < lvl.RepeatAmount-1 {
			e.wrongCount++
			lineage := step.TemplateID
			if lvl.GoToStepID != "" {
				lineage = lvl.GoToStepID
			}
			e.logger.Info("wrong answer, retrying",
				"step_id", step.ID,
				"wrong_count", e.wrongCount,
				"repeat_amount", lvl.RepeatAmount,
			)
			e.tryAgain(step, &navigation{kind: timeline.ActionRepeat, lineage: lineage})
			return
		}
		e.logger.Info("retry budget exhausted",
			"step_id", step.ID,
			"wrong_count", e.wrongCount,
			"repeat_amount", lvl.RepeatAmount,
		)
		e.settle(&navigation{kind: timeline.ActionGoToNextStep})
	}
}

// mark records correctness on the open result.
func (e *Engine) mark(ok bool) {
	e.current.IsCorrect = timeline.Bool(ok)
	e.lastCorrect = timeline.Bool(ok)
}

// settle navigates after the settle delay. Answers are recorded but not
// acted on until then.
func (e *Engine) settle(nav *navigation) {
	e.isUpdating = true
	e.pending = nav
	e.arm(timerSettle, e.settleDelay, "")
}

// tryAgain shows the try-again indicator for the step's feedback duration.
// With a navigation the step is left when it ends; without one the
// participant stays and may answer again.
func (e *Engine) tryAgain(step *timeline.Step, nav *navigation) {
	e.showTryAgain = true
	if nav != nil {
		e.isUpdating = true
		e.pending = nav
	}
	e.arm(timerTryAgain, e.feedbackFor(step), "")
}

func (e *Engine) feedbackFor(step *timeline.Step) time.Duration {
	if ms, ok := step.Config().FeedbackMillis(); ok {
		return ms.Duration()
	}
	return e.defaultFeedback
}

// advanceOf is the navigation after a correct answer: the fired trigger's
// own action when there is one, otherwise the next step.
func advanceOf(fired *timeline.Trigger) *navigation {
	if fired == nil || fired.Metadata.Kind == timeline.TriggerTimer {
		return &navigation{kind: timeline.ActionGoToNextStep}
	}
	return &navigation{kind: fired.Metadata.Action, target: fired.Metadata.Target}
}
