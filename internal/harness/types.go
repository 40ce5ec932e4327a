package harness

import "github.com/roach88/stimline/internal/results"

// Trace event kinds.
const (
	EventActivate = "activate" // a step became active
	EventInput    = "input"    // the script delivered an input
	EventSeal     = "seal"     // a step result was sealed
	EventFinish   = "finish"   // the terminal step was reached
	EventRejected = "rejected" // the engine refused an input
)

// TraceEvent is one entry of a session trace. Times are milliseconds since
// the session started so traces do not depend on the wall clock.
type TraceEvent struct {
	Kind       string `json:"kind"`
	AtMillis   int64  `json:"at_ms"`
	StepID     string `json:"step_id,omitempty"`
	TemplateID string `json:"template_id,omitempty"`
	Synthetic  string `json:"synthetic,omitempty"`
	Input      string `json:"input,omitempty"`
	Correct    *bool  `json:"correct,omitempty"`
	// Interactions is the number of interactions on a sealed result.
	Interactions int    `json:"interactions,omitempty"`
	RTMillis     *int64 `json:"rt_ms,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success. True if every assertion holds.
	Pass bool `json:"pass"`

	// Trace lists activations, inputs and sealed results in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Run is the collected run, complete only if Finished.
	Run      results.Run     `json:"run"`
	Summary  results.Summary `json:"summary"`
	Finished bool            `json:"finished"`

	// Warnings are the compiler's warning codes, in order.
	Warnings []string `json:"warnings,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Activations returns the template ids of activated steps in order.
func (r *Result) Activations() []string {
	var out []string
	for _, ev := range r.Trace {
		if ev.Kind == EventActivate {
			out = append(out, ev.TemplateID)
		}
	}
	return out
}
