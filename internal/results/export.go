package results

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"time"

	"github.com/roach88/stimline/internal/timeline"
)

// csvHeader lists the export columns. Each row is one interaction; a
// result with no interactions gets one row with the interaction columns
// empty.
var csvHeader = []string{
	"run_id", "participant", "seq", "step_id", "template_id", "step_type",
	"scored", "practice", "is_correct", "started_at", "completed_at", "rt_ms",
	"interaction", "type", "timestamp", "target", "key", "x", "y", "expected_ms",
}

// WriteCSV writes run as a spreadsheet-friendly table.
func WriteCSV(w io.Writer, run Run) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range run.Results {
		base := []string{
			run.ID,
			run.Participant,
			strconv.FormatInt(r.Seq, 10),
			r.StepID,
			r.TemplateID,
			string(r.StepType),
			strconv.FormatBool(r.Scored),
			strconv.FormatBool(r.Practice),
			optBool(r.IsCorrect),
			formatTime(&r.StartedAt),
			formatTime(r.CompletedAt),
			reactionMillis(r),
		}
		if len(r.Interactions) == 0 {
			if err := cw.Write(append(base, "", "", "", "", "", "", "", "")); err != nil {
				return fmt.Errorf("write step %s: %w", r.StepID, err)
			}
			continue
		}
		for i, in := range r.Interactions {
			row := append(slices.Clone(base),
				strconv.Itoa(i),
				string(in.Type),
				formatTime(&in.Timestamp),
				in.Target,
				in.Key,
				optFloat(in.X),
				optFloat(in.Y),
				optMillis(in.ExpectedTime),
			)
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("write step %s: %w", r.StepID, err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes run and its summary as indented JSON.
func WriteJSON(w io.Writer, run Run) error {
	doc := struct {
		Run
		Summary Summary `json:"summary"`
	}{Run: run, Summary: Summarize(run.Results)}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode run %s: %w", run.ID, err)
	}
	return nil
}

func optBool(b *bool) string {
	if b == nil {
		return ""
	}
	return strconv.FormatBool(*b)
}

func optFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func optMillis(m *timeline.Millis) string {
	if m == nil {
		return ""
	}
	return strconv.FormatFloat(float64(*m), 'f', -1, 64)
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func reactionMillis(r timeline.StepResult) string {
	rt, ok := r.ReactionTime()
	if !ok {
		return ""
	}
	return strconv.FormatInt(rt.Milliseconds(), 10)
}
