package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/stimline/internal/results"
	"github.com/roach88/stimline/internal/timeline"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun creates a run with one answered result, one retried
// result and one synthetic result without interactions.
func createTestRun(id string) results.Run {
	x, y := 40.0, 60.5
	at := func(ms int) time.Time { return t0.Add(time.Duration(ms) * time.Millisecond) }
	ptr := func(tm time.Time) *time.Time { return &tm }
	finished := at(5000)

	return results.Run{
		ID:          id,
		Participant: "p-7",
		Seed:        1<<63 + 5,
		Fingerprint: "f1ngerprint",
		ScoredSteps: 1,
		StartedAt:   t0,
		FinishedAt:  &finished,
		Results: []timeline.StepResult{
			{
				StepID: "q1-a", TemplateID: "q1", StepType: timeline.StepSequentialStimuli,
				Seq: 1, Scored: true, StartedAt: at(0), CompletedAt: ptr(at(1200)),
				Interactions: []timeline.Interaction{
					{Type: timeline.InteractionKeydown, Timestamp: at(450), Key: "j"},
				},
				IsCorrect: timeline.Bool(false),
			},
			{
				StepID: "q1-a", TemplateID: "q1", StepType: timeline.StepSequentialStimuli,
				Seq: 2, Scored: true, Practice: false, StartedAt: at(1200), CompletedAt: ptr(at(2000)),
				Interactions: []timeline.Interaction{
					{Type: timeline.InteractionClick, Timestamp: at(1500), Target: "q1-b", X: &x, Y: &y},
					{Type: timeline.InteractionTimer, Timestamp: at(1700), Target: "q1-b", ExpectedTime: timeline.Millis(500).Ptr()},
				},
				IsCorrect: timeline.Bool(true),
			},
			{
				StepID: "fb-1", TemplateID: "q1", StepType: timeline.StepCustomBlock,
				Seq: 3, StartedAt: at(2000), CompletedAt: ptr(at(2500)),
				Interactions: []timeline.Interaction{},
			},
		},
	}
}
