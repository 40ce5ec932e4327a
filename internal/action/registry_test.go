package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stimline/internal/timeline"
)

func threeSteps() []timeline.Step {
	return []timeline.Step{{ID: "a"}, {ID: "b"}, {ID: "save", Synthetic: timeline.SyntheticSave}}
}

// navRecorder captures SetActiveStepID calls.
type navRecorder struct {
	calls []string
}

func (r *navRecorder) ctx(active, target string) Context {
	return Context{
		Steps:           threeSteps(),
		ActiveStepID:    active,
		TargetStepID:    target,
		SetActiveStepID: func(id string) { r.calls = append(r.calls, id) },
	}
}

func TestExecute_GoToNextStep(t *testing.T) {
	rec := &navRecorder{}
	require.NoError(t, Execute(timeline.ActionGoToNextStep, rec.ctx("a", "")))
	assert.Equal(t, []string{"b"}, rec.calls)
}

func TestExecute_GoToNextStep_LastIsNoop(t *testing.T) {
	rec := &navRecorder{}
	require.NoError(t, Execute(timeline.ActionGoToNextStep, rec.ctx("save", "")))
	assert.Empty(t, rec.calls)
}

func TestExecute_GoToPrevStep(t *testing.T) {
	rec := &navRecorder{}
	require.NoError(t, Execute(timeline.ActionGoToPrevStep, rec.ctx("b", "")))
	require.NoError(t, Execute(timeline.ActionGoToPrevStep, rec.ctx("a", "")))
	assert.Equal(t, []string{"a"}, rec.calls)
}

func TestExecute_GoToStepAndRepeat(t *testing.T) {
	for _, kind := range []timeline.ActionKind{timeline.ActionGoToStep, timeline.ActionRepeat} {
		t.Run(string(kind), func(t *testing.T) {
			rec := &navRecorder{}
			require.NoError(t, Execute(kind, rec.ctx("b", "a")))
			assert.Equal(t, []string{"a"}, rec.calls)

			err := Execute(kind, rec.ctx("b", ""))
			assert.ErrorIs(t, err, ErrMissingTarget)

			err = Execute(kind, rec.ctx("b", "ghost"))
			assert.ErrorIs(t, err, ErrUnresolvedTarget)
			assert.Len(t, rec.calls, 1, "failed navigation must not move")
		})
	}
}

func TestExecute_Stop(t *testing.T) {
	rec := &navRecorder{}
	require.NoError(t, Execute(timeline.ActionStop, rec.ctx("a", "")))
	assert.Equal(t, []string{"save"}, rec.calls)
}

func TestExecute_Idempotent(t *testing.T) {
	rec := &navRecorder{}
	require.NoError(t, Execute(timeline.ActionStop, rec.ctx("save", "")))
	require.NoError(t, Execute(timeline.ActionStop, rec.ctx("save", "")))
	assert.Equal(t, []string{"save", "save"}, rec.calls)
}

func TestExecute_UnknownAndMissingActive(t *testing.T) {
	rec := &navRecorder{}
	assert.ErrorIs(t, Execute("teleport", rec.ctx("a", "")), ErrUnknownAction)
	assert.ErrorIs(t, Execute(timeline.ActionGoToNextStep, rec.ctx("nope", "")), ErrNoActiveStep)
	assert.Empty(t, rec.calls)
}
