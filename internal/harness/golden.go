package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/stimline/internal/results"
	"github.com/roach88/stimline/internal/timeline"
)

// TraceSnapshot captures what a golden file records for a session.
type TraceSnapshot struct {
	ScenarioName string          `json:"scenario_name"`
	Seed         uint64          `json:"seed"`
	Trace        []TraceEvent    `json:"trace"`
	Summary      results.Summary `json:"summary"`
}

// MarshalSnapshot renders a session as canonical, indented JSON.
func MarshalSnapshot(name string, result *Result) ([]byte, error) {
	canonical, err := timeline.MarshalCanonical(TraceSnapshot{
		ScenarioName: name,
		Seed:         result.Run.Seed,
		Trace:        result.Trace,
		Summary:      result.Summary,
	})
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, canonical, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario, Options{})
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an already-run result against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
