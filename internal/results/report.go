package results

import (
	"math"
	"slices"
	"time"

	"github.com/roach88/stimline/internal/timeline"
)

// Summary reduces a result history to the figures reported per run.
// Practice and unscored results are excluded from every figure except
// Practice itself.
type Summary struct {
	Scored     int     `json:"scored"`
	Correct    int     `json:"correct"`
	Incorrect  int     `json:"incorrect"`
	Unanswered int     `json:"unanswered"`
	Practice   int     `json:"practice"`
	Accuracy   float64 `json:"accuracy"`
	// MeanRTMillis and SDRTMillis cover results with a participant response.
	MeanRTMillis float64          `json:"meanRtMs"`
	SDRTMillis   float64          `json:"sdRtMs"`
	Lineages     []LineageSummary `json:"lineages"`
}

// LineageSummary counts the attempts made on one authored step.
type LineageSummary struct {
	TemplateID string `json:"templateId"`
	Attempts   int    `json:"attempts"`
	// Correct reports whether the final attempt was correct.
	Correct bool `json:"correct"`
}

// Summarize computes a Summary. Accuracy is correct over evaluated results,
// zero when none were evaluated.
func Summarize(results []timeline.StepResult) Summary {
	s := Summary{Lineages: []LineageSummary{}}
	var rts []float64
	index := make(map[string]int)

	for i := range results {
		r := &results[i]
		if !r.Scored {
			continue
		}
		if r.Practice {
			s.Practice++
			continue
		}
		s.Scored++
		switch {
		case r.IsCorrect == nil:
			s.Unanswered++
		case *r.IsCorrect:
			s.Correct++
		default:
			s.Incorrect++
		}
		if rt, ok := r.ReactionTime(); ok {
			rts = append(rts, float64(rt)/float64(time.Millisecond))
		}

		key := r.TemplateID
		if key == "" {
			key = r.StepID
		}
		idx, seen := index[key]
		if !seen {
			idx = len(s.Lineages)
			index[key] = idx
			s.Lineages = append(s.Lineages, LineageSummary{TemplateID: key})
		}
		s.Lineages[idx].Attempts++
		s.Lineages[idx].Correct = r.IsCorrect != nil && *r.IsCorrect
	}

	if evaluated := s.Correct + s.Incorrect; evaluated > 0 {
		s.Accuracy = float64(s.Correct) / float64(evaluated)
	}
	s.MeanRTMillis, s.SDRTMillis = meanSD(rts)
	return s
}

// meanSD returns the mean and population standard deviation.
func meanSD(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	if len(xs) == 1 {
		return mean, 0
	}
	var sq float64
	for _, x := range xs {
		d := x - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(xs)))
}

// Retried returns the lineages attempted more than once, in first-seen order.
func (s Summary) Retried() []LineageSummary {
	return slices.DeleteFunc(slices.Clone(s.Lineages), func(l LineageSummary) bool {
		return l.Attempts < 2
	})
}
