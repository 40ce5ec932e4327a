// Package action implements the trigger action registry: the fixed set of
// navigation effects a trigger can produce.
//
// The registry is a closed enum dispatched through a switch. Every action is
// an idempotent state transition whose only effect is setting the active step.
package action

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/stimline/internal/timeline"
)

var (
	// ErrUnknownAction is returned for action names outside the registry.
	ErrUnknownAction = errors.New("unknown action")
	// ErrMissingTarget is returned when goToStep or repeat has no target.
	ErrMissingTarget = errors.New("action requires a target step")
	// ErrUnresolvedTarget is returned when the target id is not in the sequence.
	ErrUnresolvedTarget = errors.New("target step not found")
	// ErrNoActiveStep is returned when the active step id is not in the sequence.
	ErrNoActiveStep = errors.New("active step not found")
)

// Context is the navigation state an action executes against.
type Context struct {
	Steps           []timeline.Step
	ActiveStepID    string
	SetActiveStepID func(id string)
	// TargetStepID is the concrete compiled step id for goToStep and repeat.
	TargetStepID string
	Logger       *slog.Logger
}

func (c Context) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Execute runs the named action. Boundary conditions (next on the last step,
// previous on the first) are logged no-ops and return nil. Data problems are
// returned as errors for the caller to log; the active step is left unchanged.
func Execute(kind timeline.ActionKind, ctx Context) error {
	switch kind {
	case timeline.ActionGoToNextStep:
		return goToOffset(ctx, 1)
	case timeline.ActionGoToPrevStep:
		return goToOffset(ctx, -1)
	case timeline.ActionGoToStep, timeline.ActionRepeat:
		return goToTarget(kind, ctx)
	case timeline.ActionStop:
		return stop(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, kind)
	}
}

// IndexOf returns the position of id in steps, or -1.
func IndexOf(steps []timeline.Step, id string) int {
	for i := range steps {
		if steps[i].ID == id {
			return i
		}
	}
	return -1
}

func goToOffset(ctx Context, offset int) error {
	idx := IndexOf(ctx.Steps, ctx.ActiveStepID)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNoActiveStep, ctx.ActiveStepID)
	}
	next := idx + offset
	if next < 0 || next >= len(ctx.Steps) {
		ctx.logger().Debug("navigation at sequence boundary, ignoring",
			"active_step", ctx.ActiveStepID,
			"offset", offset,
		)
		return nil
	}
	ctx.SetActiveStepID(ctx.Steps[next].ID)
	return nil
}

func goToTarget(kind timeline.ActionKind, ctx Context) error {
	if ctx.TargetStepID == "" {
		return fmt.Errorf("%s: %w", kind, ErrMissingTarget)
	}
	if IndexOf(ctx.Steps, ctx.TargetStepID) < 0 {
		return fmt.Errorf("%s: %w: %s", kind, ErrUnresolvedTarget, ctx.TargetStepID)
	}
	ctx.SetActiveStepID(ctx.TargetStepID)
	return nil
}

func stop(ctx Context) error {
	if len(ctx.Steps) == 0 {
		return fmt.Errorf("stop: %w", ErrNoActiveStep)
	}
	ctx.SetActiveStepID(ctx.Steps[len(ctx.Steps)-1].ID)
	return nil
}
