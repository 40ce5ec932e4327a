package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/stimline/internal/action"
)

// RuntimeError represents a problem detected while running a sequence.
//
// Runtime errors are logged and the run continues; the engine stays on the
// current step rather than failing. They are returned from the input
// methods only when the engine can no longer accept input.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// StepID identifies the active step when the error occurred.
	StepID string

	// Err is the underlying cause, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeUnresolvedTarget indicates a navigation target is not in the sequence.
	ErrCodeUnresolvedTarget RuntimeErrorCode = "UNRESOLVED_TARGET"

	// ErrCodeUnknownAction indicates a trigger names an action outside the registry.
	ErrCodeUnknownAction RuntimeErrorCode = "UNKNOWN_ACTION"

	// ErrCodeStopped indicates input arrived after the engine was stopped.
	ErrCodeStopped RuntimeErrorCode = "ENGINE_STOPPED"

	// ErrCodeInvalidRepeatAmount indicates a repeat amount update below 1.
	ErrCodeInvalidRepeatAmount RuntimeErrorCode = "INVALID_REPEAT_AMOUNT"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.StepID != "" {
		return fmt.Sprintf("%s: %s (step=%s)", e.Code, e.Message, e.StepID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsUnresolvedTarget returns true if the error is an unresolved navigation target.
// Uses errors.As to handle wrapped errors.
func IsUnresolvedTarget(err error) bool {
	return hasCode(err, ErrCodeUnresolvedTarget)
}

// IsStopped returns true if the error reports a stopped engine.
func IsStopped(err error) bool {
	return hasCode(err, ErrCodeStopped)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// ErrStopped is returned by input methods once the engine is stopped.
var ErrStopped = &RuntimeError{Code: ErrCodeStopped, Message: "engine is not accepting input"}

// newNavigationError classifies an action failure.
func newNavigationError(stepID string, err error) *RuntimeError {
	code := ErrCodeUnresolvedTarget
	if errors.Is(err, action.ErrUnknownAction) {
		code = ErrCodeUnknownAction
	}
	return &RuntimeError{
		Code:    code,
		Message: err.Error(),
		StepID:  stepID,
		Err:     err,
	}
}
