package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/stimline/internal/capture"
	"github.com/roach88/stimline/internal/timeline"
)

// Validation error codes (E100-E199)
const (
	// Structure (E100-E109)
	ErrDuplicateID      = "E101" // step, block or trigger id used twice
	ErrUnknownStepType  = "E102" // step type outside the known set
	ErrUnknownBlockType = "E103" // block type outside the known set
	ErrMissingID        = "E104" // step or block without id
	ErrMissingTaskRef   = "E105" // task step without taskId
	ErrEmptyGroup       = "E106" // group with no children

	// Triggers (E110-E119)
	ErrUnknownTriggerKind = "E110" // trigger kind outside keydown/timer/click
	ErrUnknownAction      = "E111" // action outside the registry
	ErrMissingKey         = "E112" // keydown trigger without a usable key
	ErrMissingTarget      = "E113" // goToStep/repeat trigger without target
	ErrInvalidDelay       = "E114" // timer delay missing, NaN or negative

	// Stimuli config (E120-E129)
	ErrNegativeTrials      = "E120" // trials below zero
	ErrInvalidRepeatAmount = "E121" // level repeatAmount below 1
	ErrMissingGoToStepID   = "E122" // onWrongAnswer goToStep without goToStepId
	ErrUnknownPolicy       = "E123" // onWrongAnswer outside the known set
	ErrInvalidDuration     = "E124" // duration or interval NaN or negative
)

// ValidationError describes one problem in an authored timeline.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate lints an authored timeline. It returns every problem found
// rather than stopping at the first. Compile tolerates all of them; Validate
// exists so authors see what Compile would skip or default.
func Validate(tl timeline.Timeline) []ValidationError {
	v := &validator{seen: make(map[string]string)}
	v.steps("steps", tl.Steps)
	return v.errs
}

type validator struct {
	errs []ValidationError
	seen map[string]string // id → first field that used it
}

func (v *validator) add(field, code, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
	})
}

func (v *validator) id(field, id string) {
	if id == "" {
		v.add(field, ErrMissingID, "id is required")
		return
	}
	if first, dup := v.seen[id]; dup {
		v.add(field, ErrDuplicateID, "id %q already used at %s", id, first)
		return
	}
	v.seen[id] = field
}

func (v *validator) steps(prefix string, steps []timeline.AuthoredStep) {
	for i := range steps {
		s := &steps[i]
		field := fmt.Sprintf("%s[%d]", prefix, i)
		v.id(field+".id", s.ID)

		if !timeline.ValidStepTypes[s.Type] {
			v.add(field+".type", ErrUnknownStepType, "unknown step type %q", s.Type)
		}
		if s.Type == timeline.StepTask && s.TaskID == "" {
			v.add(field+".taskId", ErrMissingTaskRef, "task step requires taskId")
		}
		if s.Metadata.StimuliConfig != nil {
			v.config(field+".metadata.stimuliConfig", s.Metadata.StimuliConfig)
		}
		v.blocks(field+".metadata.blocks", s.Metadata.Blocks)

		if s.Stimuli != nil {
			gf := field + ".stimuli"
			v.config(gf+".config", &s.Stimuli.Config)
			if len(s.Stimuli.Steps) == 0 {
				v.add(gf+".steps", ErrEmptyGroup, "group has no child steps")
			}
			v.steps(gf+".steps", s.Stimuli.Steps)
		}
	}
}

func (v *validator) blocks(prefix string, blocks []timeline.Block) {
	for i := range blocks {
		b := &blocks[i]
		field := fmt.Sprintf("%s[%d]", prefix, i)
		v.id(field+".id", b.ID)
		if !timeline.ValidBlockTypes[b.Type] {
			v.add(field+".type", ErrUnknownBlockType, "unknown block type %q", b.Type)
		}
		for j := range b.Triggers {
			v.trigger(fmt.Sprintf("%s.triggers[%d]", field, j), &b.Triggers[j])
		}
	}
}

func (v *validator) trigger(field string, tr *timeline.Trigger) {
	if tr.ID != "" {
		v.id(field+".id", tr.ID)
	}
	md := tr.Metadata
	switch md.Kind {
	case timeline.TriggerKeydown:
		if _, ok := capture.NormalizeKey(capture.ParseCombo(md.Key)); !ok {
			v.add(field+".metadata.key", ErrMissingKey, "keydown trigger needs a non-modifier key, got %q", md.Key)
		}
	case timeline.TriggerTimer:
		if md.Delay == nil || !md.Delay.Valid() {
			v.add(field+".metadata.delay", ErrInvalidDelay, "timer delay must be a non-negative number; %v ms will be used", float64(timeline.DefaultTimerDelay))
		}
	case timeline.TriggerClick:
	default:
		v.add(field+".metadata.kind", ErrUnknownTriggerKind, "unknown trigger kind %q", md.Kind)
	}

	if !md.Action.Valid() {
		v.add(field+".metadata.action", ErrUnknownAction, "unknown action %q", md.Action)
	}
	if (md.Action == timeline.ActionGoToStep || md.Action == timeline.ActionRepeat) && strings.TrimSpace(md.Target) == "" {
		v.add(field+".metadata.target", ErrMissingTarget, "%s requires a target step", md.Action)
	}
}

func (v *validator) config(field string, cfg *timeline.StimuliConfig) {
	if cfg.Trials < 0 {
		v.add(field+".trials", ErrNegativeTrials, "trials must be >= 0, got %d", cfg.Trials)
	}
	durations := []struct {
		name string
		d    *timeline.Millis
	}{
		{"stimulusDuration", cfg.StimulusDuration},
		{"interStimulusInterval", cfg.InterStimulusInterval},
		{"feedbackDuration", cfg.FeedbackDuration},
	}
	for _, x := range durations {
		if x.d != nil && !x.d.Valid() {
			v.add(field+"."+x.name, ErrInvalidDuration, "%s must be a non-negative number", x.name)
		}
	}

	lvl := cfg.Level
	if lvl == nil {
		return
	}
	if lvl.RepeatAmount < 1 {
		v.add(field+".level.repeatAmount", ErrInvalidRepeatAmount, "repeatAmount must be >= 1, got %d", lvl.RepeatAmount)
	}
	switch lvl.OnWrongAnswer {
	case timeline.OnWrongStop, timeline.OnWrongGoToNextStep, timeline.OnWrongRepeat:
	case timeline.OnWrongGoToStep:
		if lvl.GoToStepID == "" {
			v.add(field+".level.goToStepId", ErrMissingGoToStepID, "onWrongAnswer goToStep requires goToStepId")
		}
	default:
		if _, ok := lvl.OnWrongAnswer.Numeric(); !ok {
			v.add(field+".level.onWrongAnswer", ErrUnknownPolicy, "unknown onWrongAnswer %q", lvl.OnWrongAnswer)
		}
	}
}
