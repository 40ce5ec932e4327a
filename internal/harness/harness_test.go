package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stimline/internal/store"
)

func TestRun_RetryThenCorrectGolden(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/retry_then_correct.yaml")
	require.NoError(t, err)

	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Warnings)
	assert.Equal(t, "p-001", result.Run.Participant)
	assert.Equal(t, 3, result.Run.ScoredSteps)
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/retry_then_correct.yaml")
	require.NoError(t, err)

	first, err := Run(context.Background(), scenario, Options{})
	require.NoError(t, err)
	second, err := Run(context.Background(), scenario, Options{})
	require.NoError(t, err)

	a, err := MarshalSnapshot(scenario.Name, first)
	require.NoError(t, err)
	b, err := MarshalSnapshot(scenario.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.Equal(t, first.Run.Fingerprint, second.Run.Fingerprint)
}

func TestRun_TaskReferencesAndClicks(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: task_refs
timeline: task.timeline.json
tasks_dir: ../tasks
seed: 1
inputs:
  - {wait: 250ms, click: w1-b, x: 25, y: 75}
  - {wait: 100ms, click: screen}
  - {wait: 100ms, fire: end-t}
assertions:
  - {type: step_order, steps: [w1, end, save]}
  - {type: correct, step: w1, expect: true}
  - {type: correct, step: end, expect: true}
  - {type: finished, expect: true}
  - {type: persisted, count: 2}
`), "testdata/scenarios")
	require.NoError(t, err)

	result, err := Run(context.Background(), scenario, Options{})
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, []string{"W201"}, result.Warnings, "missing task is skipped with a warning")

	require.Len(t, result.Run.Results, 2)
	click := result.Run.Results[0].Interactions[0]
	assert.Equal(t, "w1-b", click.Target)
	require.NotNil(t, click.X)
	assert.InDelta(t, 25.0, *click.X, 1e-9)
	assert.InDelta(t, 75.0, *click.Y, 1e-9)

	end := result.Run.Results[1]
	require.Len(t, end.Interactions, 2)
	assert.Equal(t, "Screen", end.Interactions[0].Target)
	assert.Equal(t, "end-t", end.Interactions[1].Target)
}

func TestRun_UnfinishedSession(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: idle
timeline: retry.timeline.yaml
seed: 7
inputs:
  - {wait: 5s}
assertions:
  - {type: finished, expect: true}
  - {type: persisted, count: 0}
`), "testdata/scenarios")
	require.NoError(t, err)

	result, err := Run(context.Background(), scenario, Options{})
	require.NoError(t, err)
	assert.False(t, result.Finished)
	assert.False(t, result.Pass)
	assert.Len(t, result.Errors, 2, "both assertions fail: not finished and nothing stored")
	assert.Equal(t, []string{"intro"}, result.Activations())
}

func TestRun_RejectedRepeatAmount(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: bad_update
timeline: retry.timeline.yaml
seed: 7
inputs:
  - {repeat_amount: {step: q1, amount: 0}}
`), "testdata/scenarios")
	require.NoError(t, err)

	result, err := Run(context.Background(), scenario, Options{})
	require.NoError(t, err)

	var rejected []TraceEvent
	for _, ev := range result.Trace {
		if ev.Kind == EventRejected {
			rejected = append(rejected, ev)
		}
	}
	require.Len(t, rejected, 1)
	assert.Contains(t, rejected[0].Error, "INVALID_REPEAT_AMOUNT")
}

func TestRun_RepeatAmountUpdateExhaustsSooner(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: single_attempt
timeline: retry.timeline.yaml
seed: 7
inputs:
  - {repeat_amount: {step: q1, amount: 1}}
  - {wait: 300ms, key: space}
  - {wait: 400ms, key: j}
assertions:
  - {type: activation_count, step: q1, count: 1}
  - {type: correct, step: q1, expect: false}
  - {type: finished, expect: true}
`), "testdata/scenarios")
	require.NoError(t, err)

	result, err := Run(context.Background(), scenario, Options{})
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_ExternalStore(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer st.Close()

	scenario, err := LoadScenario("testdata/scenarios/retry_then_correct.yaml")
	require.NoError(t, err)

	_, err = Run(context.Background(), scenario, Options{Store: st, RunID: "session-42"})
	require.NoError(t, err)

	run, err := st.LoadRun(context.Background(), "session-42")
	require.NoError(t, err)
	assert.Len(t, run.Results, 5)
	assert.Equal(t, uint64(7), run.Seed)
}
