package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stimline/internal/compiler"
	"github.com/roach88/stimline/internal/timeline"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const yamlTimeline = `
steps:
  - id: intro
    type: custom_block
    orderIndex: 1
    metadata:
      blocks:
        - id: b1
          type: text
          data: {text: "Press space"}
          triggers:
            - id: t1
              metadata: {kind: keydown, key: space, action: goToNextStep}
  - id: group
    type: sequential_stimuli
    orderIndex: 2
    stimuli:
      config:
        trials: 2
        feedbackDuration: "500"
        level: {repeatAmount: 3, onWrongAnswer: 2}
      steps:
        - id: trial
          type: sequential_stimuli
          orderIndex: 1
          metadata:
            blocks:
              - id: b2
                type: text
                triggers:
                  - id: t2
                    metadata: {kind: timer, delay: 1500, action: goToNextStep}
`

func TestLoadTimeline_YAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "exp.yaml", yamlTimeline)

	tl, err := LoadTimeline(path)
	require.NoError(t, err)
	require.Len(t, tl.Steps, 2)

	intro := tl.Steps[0]
	assert.Equal(t, "intro", intro.ID)
	assert.Equal(t, timeline.StepCustomBlock, intro.Type)
	require.Len(t, intro.Metadata.Blocks[0].Triggers, 1)
	assert.Equal(t, "space", intro.Metadata.Blocks[0].Triggers[0].Metadata.Key)
	assert.Equal(t, "Press space", intro.Metadata.Blocks[0].Data["text"])

	group := tl.Steps[1]
	require.NotNil(t, group.Stimuli)
	cfg := group.Stimuli.Config
	assert.Equal(t, 2, cfg.Trials)
	require.NotNil(t, cfg.FeedbackDuration)
	assert.Equal(t, timeline.Millis(500), *cfg.FeedbackDuration)
	require.NotNil(t, cfg.Level)
	n, ok := cfg.Level.OnWrongAnswer.Numeric()
	assert.True(t, ok)
	assert.Equal(t, 2, n)

	delay := group.Stimuli.Steps[0].Metadata.Blocks[0].Triggers[0].Metadata.Delay
	require.NotNil(t, delay)
	assert.Equal(t, timeline.Millis(1500), *delay)
}

func TestLoadTimeline_JSONTaskWrapper(t *testing.T) {
	path := writeFile(t, t.TempDir(), "task.json", `{
		"id": "stroop",
		"timeline": {"steps": [{"id": "s1", "type": "custom_block", "orderIndex": 1,
			"metadata": {"blocks": []}}]}
	}`)

	tl, err := LoadTimeline(path)
	require.NoError(t, err)
	require.Len(t, tl.Steps, 1)
	assert.Equal(t, "s1", tl.Steps[0].ID)
}

func TestLoadTimeline_CUE(t *testing.T) {
	path := writeFile(t, t.TempDir(), "exp.cue", `
#next: {kind: "keydown", action: "goToNextStep", key?: string}

steps: [
	for i, k in ["f", "j"] {
		id:         "s\(i)"
		type:       "custom_block"
		orderIndex: i + 1
		metadata: blocks: [{
			id:   "b\(i)"
			type: "text"
			triggers: [{id: "t\(i)", metadata: #next & {key: k}}]
		}]
	},
]
`)

	tl, err := LoadTimeline(path)
	require.NoError(t, err)
	require.Len(t, tl.Steps, 2)
	assert.Equal(t, "s1", tl.Steps[1].ID)
	assert.Equal(t, 2, tl.Steps[1].OrderIndex)
	tr := tl.Steps[1].Metadata.Blocks[0].Triggers[0]
	assert.Equal(t, "j", tr.Metadata.Key)
	assert.Equal(t, timeline.ActionGoToNextStep, tr.Metadata.Action)
}

func TestLoadTimeline_CUEErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("syntax", func(t *testing.T) {
		path := writeFile(t, dir, "bad.cue", "steps: [\n")
		_, err := LoadTimeline(path)
		var lerr *LoadError
		require.ErrorAs(t, err, &lerr)
		assert.Equal(t, ErrCodeBuildFailed, lerr.Code)
	})

	t.Run("incomplete", func(t *testing.T) {
		path := writeFile(t, dir, "open.cue", "steps: [{id: string, type: \"custom_block\"}]\n")
		_, err := LoadTimeline(path)
		var lerr *LoadError
		require.ErrorAs(t, err, &lerr)
		assert.Equal(t, ErrCodeBuildFailed, lerr.Code)
		assert.Contains(t, lerr.Message, "not concrete")
	})
}

func TestLoadTimeline_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadTimeline(filepath.Join(dir, "missing.yaml"))
	var lerr *LoadError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, ErrCodeNotFound, lerr.Code)

	path := writeFile(t, dir, "exp.toml", "")
	_, err = LoadTimeline(path)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	path = writeFile(t, dir, "broken.json", `{"steps": 7}`)
	_, err = LoadTimeline(path)
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, ErrCodeDecode, lerr.Code)
}

func TestLoadTask_DefaultsIDToFileName(t *testing.T) {
	path := writeFile(t, t.TempDir(), "flanker.yml", "name: Flanker\ntimeline:\n  steps: []\n")

	task, err := LoadTask(path)
	require.NoError(t, err)
	assert.Equal(t, "flanker", task.ID)
	assert.Equal(t, "Flanker", task.Name)
	assert.NotNil(t, task.Timeline.Steps)
}

func TestDirLookup(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "stroop.json", `{"id": "ignored", "timeline": {"steps": []}}`)
	writeFile(t, dir, "nback.cue", `name: "N-back"`+"\n"+`timeline: steps: []`+"\n")

	var lookup compiler.TaskLookup = DirLookup{Dir: dir}

	task, err := lookup.GetTaskByID(context.Background(), "stroop")
	require.NoError(t, err)
	assert.Equal(t, "stroop", task.ID, "file name wins over the document id")

	task, err = lookup.GetTaskByID(context.Background(), "nback")
	require.NoError(t, err)
	assert.Equal(t, "N-back", task.Name)

	_, err = lookup.GetTaskByID(context.Background(), "missing")
	assert.ErrorIs(t, err, compiler.ErrTaskNotFound)

	_, err = lookup.GetTaskByID(context.Background(), "../stroop")
	assert.ErrorIs(t, err, compiler.ErrTaskNotFound)
}

func TestLoadTasks(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.yaml", "id: b\ntimeline:\n  steps: []\n")
	writeFile(t, dir, "a.json", `{"id": "a", "timeline": {"steps": []}}`)
	writeFile(t, dir, "README.md", "not a task")
	writeFile(t, dir, "broken.json", `{`)

	tasks, err := LoadTasks(dir)
	require.Error(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "a", tasks[0].ID)
	assert.Equal(t, "b", tasks[1].ID)

	var lerr *LoadError
	assert.True(t, errors.As(err, &lerr))

	_, err = LoadTasks(filepath.Join(dir, "nope"))
	assert.Error(t, err)
}
