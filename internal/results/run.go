package results

import (
	"context"
	"time"

	"github.com/roach88/stimline/internal/timeline"
)

// Run is one participant's pass through a compiled sequence.
type Run struct {
	ID          string                `json:"id"`
	Participant string                `json:"participant,omitempty"`
	Seed        uint64                `json:"seed"`
	Fingerprint string                `json:"fingerprint"`
	ScoredSteps int                   `json:"scoredSteps"`
	StartedAt   time.Time             `json:"startedAt"`
	FinishedAt  *time.Time            `json:"finishedAt,omitempty"`
	Results     []timeline.StepResult `json:"results"`
}

// Meta identifies a run before it has results.
type Meta struct {
	ID          string
	Participant string
	Seed        uint64
	Fingerprint string
}

// Sink persists completed runs.
// Implemented by store.Store.
type Sink interface {
	SaveRun(ctx context.Context, run Run) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, run Run) error

// SaveRun implements Sink.
func (f SinkFunc) SaveRun(ctx context.Context, run Run) error {
	return f(ctx, run)
}

// CountScored returns how many steps of a compiled sequence are scored.
func CountScored(steps []timeline.Step) int {
	n := 0
	for i := range steps {
		if steps[i].Scored() {
			n++
		}
	}
	return n
}
