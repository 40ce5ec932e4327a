package timeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidRepeatAmount is returned when a level's repeat amount would drop below 1.
var ErrInvalidRepeatAmount = errors.New("repeat amount must be at least 1")

// StimuliConfig configures a group of steps repeated across trials.
//
// Group-level values are overridden by child-specific values when the child
// sets them. Boolean fields on a child can only switch a behavior on.
type StimuliConfig struct {
	Trials                int     `json:"trials" yaml:"trials"`
	StimulusDuration      *Millis `json:"stimulusDuration,omitempty" yaml:"stimulusDuration,omitempty"`
	InterStimulusInterval *Millis `json:"interStimulusInterval,omitempty" yaml:"interStimulusInterval,omitempty"`
	FeedbackDuration      *Millis `json:"feedbackDuration,omitempty" yaml:"feedbackDuration,omitempty"`
	Randomize             bool    `json:"randomize,omitempty" yaml:"randomize,omitempty"`
	AdvanceOnWrong        bool    `json:"advanceOnWrong,omitempty" yaml:"advanceOnWrong,omitempty"`
	IsPractice            bool    `json:"isPractice,omitempty" yaml:"isPractice,omitempty"`
	Level                 *Level  `json:"level,omitempty" yaml:"level,omitempty"`
}

// Merge returns a copy of c overridden by the fields set on child.
func (c StimuliConfig) Merge(child *StimuliConfig) StimuliConfig {
	out := c
	if out.Level != nil {
		lvl := *out.Level
		out.Level = &lvl
	}
	if child == nil {
		return out
	}
	if child.StimulusDuration != nil {
		out.StimulusDuration = child.StimulusDuration.Ptr()
	}
	if child.InterStimulusInterval != nil {
		out.InterStimulusInterval = child.InterStimulusInterval.Ptr()
	}
	if child.FeedbackDuration != nil {
		out.FeedbackDuration = child.FeedbackDuration.Ptr()
	}
	if child.AdvanceOnWrong {
		out.AdvanceOnWrong = true
	}
	if child.IsPractice {
		out.IsPractice = true
	}
	if child.Level != nil {
		lvl := *child.Level
		out.Level = &lvl
	}
	return out
}

// InterStimulusMillis returns the resolved inter-stimulus interval, zero when unset or invalid.
func (c *StimuliConfig) InterStimulusMillis() Millis {
	if c == nil || c.InterStimulusInterval == nil || !c.InterStimulusInterval.Valid() {
		return 0
	}
	return *c.InterStimulusInterval
}

// FeedbackMillis returns the feedback duration and whether feedback is enabled.
func (c *StimuliConfig) FeedbackMillis() (Millis, bool) {
	if c == nil || c.FeedbackDuration == nil {
		return 0, false
	}
	return ResolveDelay(c.FeedbackDuration), true
}

// WrongAnswerPolicy selects what happens after an incorrect answer under a level.
// Besides the named policies, a numeric value selects retry-then-advance.
type WrongAnswerPolicy string

const (
	OnWrongStop         WrongAnswerPolicy = "stop"
	OnWrongGoToNextStep WrongAnswerPolicy = "goToNextStep"
	OnWrongGoToStep     WrongAnswerPolicy = "goToStep"
	OnWrongRepeat       WrongAnswerPolicy = "repeat"
)

// Numeric reports whether the policy is a numeric retry value.
func (p WrongAnswerPolicy) Numeric() (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(string(p)))
	if err != nil {
		return 0, false
	}
	return n, true
}

// UnmarshalJSON accepts policy names and bare numbers.
func (p *WrongAnswerPolicy) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*p = WrongAnswerPolicy(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("onWrongAnswer: %w", err)
	}
	*p = WrongAnswerPolicy(n.String())
	return nil
}

// Level is the retry and branching policy of a stimulus group.
type Level struct {
	Label         string            `json:"label,omitempty" yaml:"label,omitempty"`
	RepeatOnWrong bool              `json:"repeatOnWrong,omitempty" yaml:"repeatOnWrong,omitempty"`
	RepeatAmount  int               `json:"repeatAmount" yaml:"repeatAmount"`
	OnWrongAnswer WrongAnswerPolicy `json:"onWrongAnswer" yaml:"onWrongAnswer"`
	GoToStepID    string            `json:"goToStepId,omitempty" yaml:"goToStepId,omitempty"`
}

// WithRepeatAmount returns a copy of l with the new repeat amount.
// Amounts below 1 are rejected and l is returned unchanged.
func (l Level) WithRepeatAmount(n int) (Level, error) {
	if n < 1 {
		return l, fmt.Errorf("%w: got %d", ErrInvalidRepeatAmount, n)
	}
	l.RepeatAmount = n
	return l, nil
}

// ActionKind names a navigation effect executed when a trigger fires.
type ActionKind string

const (
	ActionGoToNextStep ActionKind = "goToNextStep"
	ActionGoToPrevStep ActionKind = "goToPrevStep"
	ActionGoToStep     ActionKind = "goToStep"
	ActionRepeat       ActionKind = "repeat"
	ActionStop         ActionKind = "stop"
)

// Valid reports whether k is one of the known actions.
func (k ActionKind) Valid() bool {
	switch k {
	case ActionGoToNextStep, ActionGoToPrevStep, ActionGoToStep, ActionRepeat, ActionStop:
		return true
	}
	return false
}
