package harness

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioDir = "testdata/scenarios"

func TestLoadScenario(t *testing.T) {
	s, err := LoadScenario(filepath.Join(scenarioDir, "retry_then_correct.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "retry_then_correct", s.Name)
	assert.Equal(t, filepath.Join(scenarioDir, "retry.timeline.yaml"), s.Timeline)
	assert.Equal(t, uint64(7), s.Seed)
	assert.Equal(t, "p-001", s.Participant)
	require.Len(t, s.Inputs, 3)
	assert.Equal(t, Duration(300*time.Millisecond), s.Inputs[0].Wait)
	assert.Equal(t, "space", s.Inputs[0].Key)
	assert.Len(t, s.Assertions, 6)
}

func TestParseScenario_Durations(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: waits
timeline: retry.timeline.yaml
timeout: 2s
inputs:
  - {wait: 250}
  - {wait: 1.5s}
  - {wait: "12.5"}
`), scenarioDir)
	require.NoError(t, err)

	assert.Equal(t, Duration(2*time.Second), s.Timeout)
	assert.Equal(t, Duration(250*time.Millisecond), s.Inputs[0].Wait)
	assert.Equal(t, Duration(1500*time.Millisecond), s.Inputs[1].Wait)
	assert.Equal(t, Duration(12500*time.Microsecond), s.Inputs[2].Wait)
}

func TestParseScenario_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"missing name", "timeline: retry.timeline.yaml\n", "name is required"},
		{"missing timeline", "name: x\n", "timeline is required"},
		{"timeline not found", "name: x\ntimeline: nope.yaml\n", "timeline file not found"},
		{"unknown field", "name: x\ntimeline: retry.timeline.yaml\nflow: []\n", "field flow not found"},
		{"bad duration", "name: x\ntimeline: retry.timeline.yaml\ninputs:\n  - {wait: soon}\n", "invalid duration"},
		{"negative wait", "name: x\ntimeline: retry.timeline.yaml\ninputs:\n  - {wait: -5ms}\n", "wait must be non-negative"},
		{"two actions", "name: x\ntimeline: retry.timeline.yaml\ninputs:\n  - {key: f, fire: t}\n", "only one of"},
		{"tasks dir is a file", "name: x\ntimeline: retry.timeline.yaml\ntasks_dir: retry.timeline.yaml\n", "not a directory"},
		{"unknown assertion", "name: x\ntimeline: retry.timeline.yaml\nassertions:\n  - {type: vibes}\n", "unknown assertion type"},
		{"correct needs bool", "name: x\ntimeline: retry.timeline.yaml\nassertions:\n  - {type: correct, step: q1, expect: yes please}\n", "expect"},
		{"summary needs map", "name: x\ntimeline: retry.timeline.yaml\nassertions:\n  - {type: summary}\n", "expect"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml), scenarioDir)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseScenario_AbsolutePathsKept(t *testing.T) {
	abs, err := filepath.Abs(filepath.Join(scenarioDir, "retry.timeline.yaml"))
	require.NoError(t, err)

	s, err := ParseScenario([]byte("name: abs\ntimeline: "+abs+"\n"), "/somewhere/else")
	require.NoError(t, err)
	assert.Equal(t, abs, s.Timeline)
}
