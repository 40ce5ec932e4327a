package timeline

import "time"

// InteractionType identifies an observed participant input.
type InteractionType string

const (
	InteractionClick       InteractionType = "click"
	InteractionKeydown     InteractionType = "keydown"
	InteractionTimer       InteractionType = "timer"
	InteractionTrigger     InteractionType = "trigger"
	InteractionContextMenu InteractionType = "contextmenu"
	InteractionWheel       InteractionType = "wheel"
)

// IsResponse reports whether the interaction counts as an answer.
// Context-menu and wheel events are recorded but never evaluated.
func (t InteractionType) IsResponse() bool {
	switch t {
	case InteractionClick, InteractionKeydown, InteractionTimer, InteractionTrigger:
		return true
	}
	return false
}

// Interaction is one observed participant input event.
type Interaction struct {
	Type      InteractionType `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Target    string          `json:"target,omitempty"`
	Key       string          `json:"key,omitempty"`
	// X and Y are percentages of the target's bounding box.
	X            *float64 `json:"x,omitempty"`
	Y            *float64 `json:"y,omitempty"`
	ExpectedTime *Millis  `json:"expectedTime,omitempty"`
}

// StepResult is the recorded outcome of one executed step activation.
type StepResult struct {
	StepID       string        `json:"stepId"`
	TemplateID   string        `json:"templateId"`
	StepType     StepType      `json:"stepType"`
	Seq          int64         `json:"seq"`
	Scored       bool          `json:"scored"`
	Practice     bool          `json:"practice,omitempty"`
	StartedAt    time.Time     `json:"startedAt"`
	CompletedAt  *time.Time    `json:"completedAt,omitempty"`
	Interactions []Interaction `json:"interactions"`
	IsCorrect    *bool         `json:"isCorrect,omitempty"`
}

// Responses returns the interactions that count as answers, in order.
func (r *StepResult) Responses() []Interaction {
	var out []Interaction
	for _, in := range r.Interactions {
		if in.Type.IsResponse() {
			out = append(out, in)
		}
	}
	return out
}

// ReactionTime is the delay between step start and the first response.
func (r *StepResult) ReactionTime() (time.Duration, bool) {
	for _, in := range r.Interactions {
		if in.Type.IsResponse() && in.Type != InteractionTimer {
			return in.Timestamp.Sub(r.StartedAt), true
		}
	}
	return 0, false
}

// Clone returns a deep copy so sealed results can be handed to readers safely.
func (r StepResult) Clone() StepResult {
	out := r
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		out.CompletedAt = &t
	}
	if r.IsCorrect != nil {
		v := *r.IsCorrect
		out.IsCorrect = &v
	}
	out.Interactions = make([]Interaction, len(r.Interactions))
	copy(out.Interactions, r.Interactions)
	return out
}

// Bool returns a pointer to v.
func Bool(v bool) *bool {
	return &v
}
