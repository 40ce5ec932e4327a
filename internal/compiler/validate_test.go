package compiler

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stimline/internal/testutil"
	"github.com/roach88/stimline/internal/timeline"
)

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidate_Valid(t *testing.T) {
	tl := timeline.Timeline{Steps: []timeline.AuthoredStep{
		testutil.Plain("start", timeline.StepStart, 0),
		testutil.Group("grp", 1, timeline.StimuliConfig{
			Trials:           2,
			FeedbackDuration: testutil.Ms(500),
			Level:            &timeline.Level{RepeatAmount: 3, OnWrongAnswer: "3"},
		},
			testutil.KeyStep("stim", timeline.StepSequentialStimuli, 0, "ctrl+a", timeline.ActionGoToNextStep),
			testutil.ClickStep("pic", timeline.StepSequentialStimuli, 1, timeline.ActionGoToNextStep),
		),
		testutil.TaskRef("ref", 2, "task-1"),
		testutil.TimerStep("end", 3, 0),
	}}

	assert.Empty(t, Validate(tl))
}

func TestValidate_DuplicateIDs(t *testing.T) {
	tl := timeline.Timeline{Steps: []timeline.AuthoredStep{
		testutil.Plain("a", timeline.StepStart, 0),
		testutil.Plain("a", timeline.StepEnd, 1),
	}}

	errs := Validate(tl)
	require.Len(t, errs, 2, "step id and its block id both collide")
	assert.Equal(t, ErrDuplicateID, errs[0].Code)
	assert.Equal(t, "steps[1].id", errs[0].Field)
	assert.Contains(t, errs[0].Message, "steps[0].id")
}

func TestValidate_Triggers(t *testing.T) {
	step := testutil.Plain("s", timeline.StepSequentialStimuli, 0)
	step.Metadata.Blocks[0].Triggers = []timeline.Trigger{
		testutil.KeyTrigger("t1", "shift", timeline.ActionGoToNextStep),
		testutil.TimerTrigger("t2", math.NaN(), timeline.ActionGoToNextStep),
		{ID: "t3", Metadata: timeline.TriggerMetadata{Kind: "hover", Action: "jump"}},
		{ID: "t4", Metadata: timeline.TriggerMetadata{Kind: timeline.TriggerClick, Action: timeline.ActionGoToStep}},
	}

	errs := Validate(timeline.Timeline{Steps: []timeline.AuthoredStep{step}})
	assert.Equal(t, []string{ErrMissingKey, ErrInvalidDelay, ErrUnknownTriggerKind, ErrUnknownAction, ErrMissingTarget}, codes(errs))
}

func TestValidate_StimuliConfig(t *testing.T) {
	group := testutil.Group("g", 0, timeline.StimuliConfig{
		Trials:                -1,
		InterStimulusInterval: testutil.Ms(-5),
		Level:                 &timeline.Level{RepeatAmount: 0, OnWrongAnswer: timeline.OnWrongGoToStep},
	}, testutil.Plain("c", timeline.StepSequentialStimuli, 0))

	errs := Validate(timeline.Timeline{Steps: []timeline.AuthoredStep{group}})
	assert.Equal(t, []string{ErrNegativeTrials, ErrInvalidDuration, ErrInvalidRepeatAmount, ErrMissingGoToStepID}, codes(errs))
	assert.Equal(t, "steps[0].stimuli.config.interStimulusInterval", errs[1].Field)
}

func TestValidate_UnknownPolicyAndTypes(t *testing.T) {
	group := testutil.Group("g", 0, timeline.StimuliConfig{
		Trials: 1,
		Level:  &timeline.Level{RepeatAmount: 1, OnWrongAnswer: "shrug"},
	})
	odd := testutil.Plain("odd", "carousel", 1)
	odd.Metadata.Blocks[0].Type = "hologram"

	errs := Validate(timeline.Timeline{Steps: []timeline.AuthoredStep{group, odd, testutil.TaskRef("ref", 2, "")}})
	assert.Equal(t, []string{ErrUnknownPolicy, ErrEmptyGroup, ErrUnknownStepType, ErrUnknownBlockType, ErrMissingTaskRef}, codes(errs))
}

func TestValidationErrorFormat(t *testing.T) {
	err := ValidationError{Field: "steps[0].id", Message: "id is required", Code: ErrMissingID}
	assert.Equal(t, "[E104] steps[0].id: id is required", err.Error())
}
