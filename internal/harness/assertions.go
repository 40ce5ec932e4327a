package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/stimline/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, ev := range e.Trace {
			switch ev.Kind {
			case EventActivate:
				fmt.Fprintf(&buf, "  [%d] %6dms activate %s\n", i+1, ev.AtMillis, ev.TemplateID)
			case EventInput, EventRejected:
				fmt.Fprintf(&buf, "  [%d] %6dms %s %s\n", i+1, ev.AtMillis, ev.Kind, ev.Input)
			}
		}
	}
	return buf.String()
}

// assertStepOrder checks that lineages were activated in the given order.
// Activations need not be consecutive.
func assertStepOrder(result *Result, a Assertion) error {
	acts := result.Activations()
	pos := 0
	for _, want := range a.Steps {
		found := false
		for pos < len(acts) {
			pos++
			if acts[pos-1] == want {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertStepOrder,
				Expected: fmt.Sprintf("activations in order: %v", a.Steps),
				Actual:   fmt.Sprintf("%s not activated after the previous entries; activations: %v", want, acts),
				Trace:    result.Trace,
			}
		}
	}
	return nil
}

// assertActivationCount checks that a lineage was activated exactly Count times.
func assertActivationCount(result *Result, a Assertion) error {
	count := 0
	for _, id := range result.Activations() {
		if id == a.Step {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertActivationCount,
			Expected: fmt.Sprintf("%s activated %d times", a.Step, a.Count),
			Actual:   fmt.Sprintf("activated %d times", count),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertCorrect checks the verdict of the last scored result of a lineage.
func assertCorrect(result *Result, a Assertion) error {
	want := a.Expect.(bool)
	rs := result.Run.Results
	for i := len(rs) - 1; i >= 0; i-- {
		r := rs[i]
		if r.TemplateID != a.Step || !r.Scored {
			continue
		}
		if r.IsCorrect == nil {
			return &AssertionError{
				Type:     AssertCorrect,
				Expected: fmt.Sprintf("%s correct=%v", a.Step, want),
				Actual:   "no verdict recorded",
				Trace:    result.Trace,
			}
		}
		if *r.IsCorrect != want {
			return &AssertionError{
				Type:     AssertCorrect,
				Expected: fmt.Sprintf("%s correct=%v", a.Step, want),
				Actual:   fmt.Sprintf("correct=%v", *r.IsCorrect),
				Trace:    result.Trace,
			}
		}
		return nil
	}
	return &AssertionError{
		Type:     AssertCorrect,
		Expected: fmt.Sprintf("%s correct=%v", a.Step, want),
		Actual:   "no scored result for step",
		Trace:    result.Trace,
	}
}

// assertFinished checks whether the run reached its terminal step.
func assertFinished(result *Result, a Assertion) error {
	if want := a.Expect.(bool); result.Finished != want {
		return &AssertionError{
			Type:     AssertFinished,
			Expected: fmt.Sprintf("finished=%v", want),
			Actual:   fmt.Sprintf("finished=%v", result.Finished),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertSummary checks the summary fields named in Expect (subset match).
func assertSummary(result *Result, a Assertion) error {
	raw, err := json.Marshal(result.Summary)
	if err != nil {
		return fmt.Errorf("summary: %w", err)
	}
	var actual map[string]any
	if err := json.Unmarshal(raw, &actual); err != nil {
		return fmt.Errorf("summary: %w", err)
	}

	expected := a.Expect.(map[string]any)
	keys := make([]string, 0, len(expected))
	for k := range expected {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		got, ok := actual[k]
		if !ok || !valuesEqual(got, expected[k]) {
			return &AssertionError{
				Type:     AssertSummary,
				Expected: fmt.Sprintf("%s = %v", k, expected[k]),
				Actual:   fmt.Sprintf("%s = %v", k, got),
			}
		}
	}
	return nil
}

// assertPersisted checks the stored copy of the run.
func assertPersisted(ctx context.Context, st *store.Store, result *Result, a Assertion) error {
	run, err := st.LoadRun(ctx, result.Run.ID)
	if err != nil {
		return &AssertionError{
			Type:     AssertPersisted,
			Expected: fmt.Sprintf("run %s stored with %d results", result.Run.ID, a.Count),
			Actual:   err.Error(),
		}
	}
	if len(run.Results) != a.Count {
		return &AssertionError{
			Type:     AssertPersisted,
			Expected: fmt.Sprintf("%d stored results", a.Count),
			Actual:   fmt.Sprintf("%d stored results", len(run.Results)),
		}
	}
	return nil
}

// valuesEqual compares decoded JSON against YAML-parsed expectations.
// Numbers compare by value regardless of their Go type.
func valuesEqual(actual, expected any) bool {
	if actual == nil && expected == nil {
		return true
	}
	if actual == nil || expected == nil {
		return false
	}
	if a, ok := toFloat(actual); ok {
		if e, ok := toFloat(expected); ok {
			return math.Abs(a-e) < 1e-6
		}
		return false
	}
	return reflect.DeepEqual(actual, expected)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides database access for persisted assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertStepOrder:
			err = assertStepOrder(result, assertion)
		case AssertActivationCount:
			err = assertActivationCount(result, assertion)
		case AssertCorrect:
			err = assertCorrect(result, assertion)
		case AssertFinished:
			err = assertFinished(result, assertion)
		case AssertSummary:
			err = assertSummary(result, assertion)
		case AssertPersisted:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: persisted requires database context", i)
			} else {
				err = assertPersisted(actx.Ctx, actx.Store, result, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
