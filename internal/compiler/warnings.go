package compiler

import "fmt"

// Compile warning codes (W200-W299).
const (
	WarnTaskLookupFailed = "W201" // task reference could not be resolved
	WarnTaskCycle        = "W202" // task references an ancestor on the expansion chain
	WarnMaxDepth         = "W203" // task nesting exceeds the configured depth
	WarnEmptyGroup       = "W204" // stimulus group with no trials
	WarnNoBlockForTimer  = "W205" // stimulus duration set but step has no blocks
	WarnInvalidDelay     = "W206" // timer delay invalid, defaulted
	WarnMissingTaskID    = "W207" // task step without taskId
	WarnUnknownStepType  = "W208" // authored step type outside the known set
)

// CompileWarning describes a recoverable problem met during compilation.
type CompileWarning struct {
	Code    string `json:"code"`
	StepID  string `json:"stepId,omitempty"`
	Message string `json:"message"`
}

func (w CompileWarning) String() string {
	if w.StepID != "" {
		return fmt.Sprintf("[%s] step %s: %s", w.Code, w.StepID, w.Message)
	}
	return fmt.Sprintf("[%s] %s", w.Code, w.Message)
}
