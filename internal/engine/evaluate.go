package engine

import (
	"slices"

	"github.com/roach88/stimline/internal/capture"
	"github.com/roach88/stimline/internal/timeline"
)

// verdict is the outcome of evaluating a step's answers so far.
type verdict int

const (
	inconclusive verdict = iota
	correct
	incorrect
)

func (v verdict) String() string {
	switch v {
	case correct:
		return "correct"
	case incorrect:
		return "incorrect"
	default:
		return "inconclusive"
	}
}

// answer reduces a trigger or an interaction to what is compared.
type answer struct {
	kind  string
	value string
}

// evaluate judges the responses recorded on r against step's triggers.
//
// Multi-trigger steps compare the ordered keydown and click responses with
// the ordered non-timer triggers once as many have arrived; a timer firing
// before that is a timeout and incorrect. Other steps judge the latest
// response: it is correct when it matches any trigger, and a lone timer
// firing on a step whose only trigger is that timer is trivially correct.
func evaluate(step *timeline.Step, r *timeline.StepResult) verdict {
	triggers := step.Triggers()
	responses := r.Responses()
	if len(triggers) == 0 || len(responses) == 0 {
		return inconclusive
	}
	last := responses[len(responses)-1]

	if step.IsMultiTrigger() {
		var expected, actual []answer
		for _, tr := range triggers {
			if tr.Metadata.Kind != timeline.TriggerTimer {
				expected = append(expected, triggerAnswer(tr))
			}
		}
		for _, in := range responses {
			if in.Type != timeline.InteractionTimer {
				actual = append(actual, interactionAnswer(in))
			}
		}
		switch {
		case len(expected) == 0:
			// Timers only: fall through to single-response rules.
		case len(actual) < len(expected):
			if last.Type == timeline.InteractionTimer {
				return incorrect
			}
			return inconclusive
		case len(actual) > len(expected):
			return inconclusive
		default:
			if slices.Equal(expected, actual) {
				return correct
			}
			return incorrect
		}
	}

	if len(triggers) == 1 && triggers[0].Metadata.Kind == timeline.TriggerTimer &&
		len(responses) == 1 && last.Type == timeline.InteractionTimer {
		return correct
	}
	for _, tr := range triggers {
		if matches(tr, last) {
			return correct
		}
	}
	return incorrect
}

// matches reports whether in answers tr. Timer firings never answer a
// trigger on their own.
func matches(tr timeline.Trigger, in timeline.Interaction) bool {
	if in.Type == timeline.InteractionTrigger {
		return in.Target == tr.ID
	}
	switch tr.Metadata.Kind {
	case timeline.TriggerKeydown:
		return in.Type == timeline.InteractionKeydown && capture.KeysEqual(tr.Metadata.Key, in.Key)
	case timeline.TriggerClick:
		return in.Type == timeline.InteractionClick && in.Target == tr.StimulusID
	}
	return false
}

// matchTrigger returns the first keydown or click trigger of step answered by in.
func matchTrigger(step *timeline.Step, in timeline.Interaction) *timeline.Trigger {
	if in.Type != timeline.InteractionKeydown && in.Type != timeline.InteractionClick {
		return nil
	}
	for _, tr := range step.Triggers() {
		if matches(tr, in) {
			return &tr
		}
	}
	return nil
}

func triggerAnswer(tr timeline.Trigger) answer {
	if tr.Metadata.Kind == timeline.TriggerKeydown {
		return answer{kind: string(timeline.InteractionKeydown), value: capture.CanonicalCombo(tr.Metadata.Key)}
	}
	return answer{kind: string(tr.Metadata.Kind), value: tr.StimulusID}
}

func interactionAnswer(in timeline.Interaction) answer {
	if in.Type == timeline.InteractionKeydown {
		return answer{kind: string(in.Type), value: capture.CanonicalCombo(in.Key)}
	}
	return answer{kind: string(in.Type), value: in.Target}
}
