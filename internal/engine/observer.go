package engine

import (
	"time"

	"github.com/roach88/stimline/internal/timeline"
)

// Observer is notified of run progress. Callbacks run on the loop
// goroutine after the event that caused them has been fully applied, so
// they may read State but must not block.
type Observer interface {
	StepActivated(step timeline.Step, at time.Time)
	ResultSealed(result timeline.StepResult)
	RunFinished(results []timeline.StepResult)
}

// ObserverFuncs adapts optional functions to Observer.
type ObserverFuncs struct {
	OnStepActivated func(step timeline.Step, at time.Time)
	OnResultSealed  func(result timeline.StepResult)
	OnRunFinished   func(results []timeline.StepResult)
}

// StepActivated implements Observer.
func (f ObserverFuncs) StepActivated(step timeline.Step, at time.Time) {
	if f.OnStepActivated != nil {
		f.OnStepActivated(step, at)
	}
}

// ResultSealed implements Observer.
func (f ObserverFuncs) ResultSealed(result timeline.StepResult) {
	if f.OnResultSealed != nil {
		f.OnResultSealed(result)
	}
}

// RunFinished implements Observer.
func (f ObserverFuncs) RunFinished(results []timeline.StepResult) {
	if f.OnRunFinished != nil {
		f.OnRunFinished(results)
	}
}
