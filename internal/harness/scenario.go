package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted participant session.
// A scenario compiles one timeline with a fixed seed, replays timed inputs
// against the engine on a manual clock, and asserts on what happened.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden traces are keyed by it.
	Name string `yaml:"name"`

	// Description explains what this scenario exercises.
	Description string `yaml:"description"`

	// Timeline is the path to the authored timeline document
	// (YAML, JSON or CUE). Relative paths resolve against the scenario file.
	Timeline string `yaml:"timeline"`

	// TasksDir, when set, serves task references from a directory.
	TasksDir string `yaml:"tasks_dir,omitempty"`

	// Seed fixes trial shuffling.
	Seed uint64 `yaml:"seed"`

	// Participant is copied into the persisted run.
	Participant string `yaml:"participant,omitempty"`

	// Inputs are applied in order. Each waits, then acts.
	Inputs []Input `yaml:"inputs"`

	// Timeout bounds the simulated time spent letting timers run out after
	// the last input. Defaults to ten minutes.
	Timeout Duration `yaml:"timeout,omitempty"`

	// Assertions validate the trace, the results and the persisted run.
	Assertions []Assertion `yaml:"assertions"`
}

// Input is one scripted participant action. Exactly one of Key, Click,
// Fire or RepeatAmount may be set; with none set the input only waits.
type Input struct {
	// Wait advances the simulated clock before acting, firing every
	// timer that falls due on the way.
	Wait Duration `yaml:"wait,omitempty"`

	// Key is a combo such as "f", "space" or "ctrl+s".
	Key string `yaml:"key,omitempty"`

	// Click is a block id; "screen" clicks outside every block.
	// X and Y are percentages within the block.
	Click string  `yaml:"click,omitempty"`
	X     float64 `yaml:"x,omitempty"`
	Y     float64 `yaml:"y,omitempty"`

	// Fire fires a trigger of the active step by id.
	Fire string `yaml:"fire,omitempty"`

	// RepeatAmount updates level repeat amounts while the run is live.
	RepeatAmount *RepeatUpdate `yaml:"repeat_amount,omitempty"`
}

// RepeatUpdate changes the repeat amount of a lineage's level.
type RepeatUpdate struct {
	Step   string `yaml:"step,omitempty"`
	Amount int    `yaml:"amount"`
}

// ScreenClick is the Click value for a click outside every block.
const ScreenClick = "screen"

// Assertion validates one property of a finished session.
type Assertion struct {
	// Type specifies the assertion type:
	// - "step_order": lineages were activated in this order (gaps allowed)
	// - "activation_count": a lineage was activated exactly Count times
	// - "correct": the last scored result of Step has IsCorrect == Expect
	// - "summary": the results summary contains the Expect fields
	// - "finished": whether the run reached its terminal step
	// - "persisted": the stored run holds Count results
	Type string `yaml:"type"`

	// Step is a template id (activation_count, correct).
	Step string `yaml:"step,omitempty"`

	// Steps is the expected lineage order (step_order).
	Steps []string `yaml:"steps,omitempty"`

	// Count is the expected number (activation_count, persisted).
	Count int `yaml:"count,omitempty"`

	// Expect is the expected value: a bool for correct and finished, a
	// map of summary fields for summary. Subset match for maps.
	Expect any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertStepOrder       = "step_order"
	AssertActivationCount = "activation_count"
	AssertCorrect         = "correct"
	AssertSummary         = "summary"
	AssertFinished        = "finished"
	AssertPersisted       = "persisted"
)

// Duration is a YAML duration. It accepts Go duration strings ("350ms",
// "1.5s") and bare numbers of milliseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", node.Line)
	}
	raw := strings.TrimSpace(node.Value)
	if ms, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = Duration(time.Duration(ms * float64(time.Millisecond)))
		return nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q", node.Line, raw)
	}
	*d = Duration(v)
	return nil
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// Timeline and task paths are resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, filepath.Dir(path))
}

// ParseScenario parses scenario YAML, resolving relative paths against
// basePath. An empty basePath leaves paths untouched.
func ParseScenario(data []byte, basePath string) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	scenario.Timeline = resolvePath(basePath, scenario.Timeline)
	scenario.TasksDir = resolvePath(basePath, scenario.TasksDir)

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func resolvePath(base, p string) string {
	if p == "" || base == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Timeline == "" {
		return fmt.Errorf("timeline is required")
	}
	if _, err := os.Stat(s.Timeline); os.IsNotExist(err) {
		return fmt.Errorf("timeline file not found: %s", s.Timeline)
	}
	if s.TasksDir != "" {
		if info, err := os.Stat(s.TasksDir); err != nil || !info.IsDir() {
			return fmt.Errorf("tasks_dir is not a directory: %s", s.TasksDir)
		}
	}
	if s.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}

	for i, in := range s.Inputs {
		if in.Wait < 0 {
			return fmt.Errorf("inputs[%d]: wait must be non-negative", i)
		}
		set := 0
		for _, v := range []bool{in.Key != "", in.Click != "", in.Fire != "", in.RepeatAmount != nil} {
			if v {
				set++
			}
		}
		if set > 1 {
			return fmt.Errorf("inputs[%d]: only one of key, click, fire, repeat_amount may be set", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertStepOrder:
		if len(a.Steps) == 0 {
			return fmt.Errorf("assertions[%d]: steps list is required for step_order", index)
		}
	case AssertActivationCount:
		if a.Step == "" {
			return fmt.Errorf("assertions[%d]: step is required for activation_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for activation_count", index)
		}
	case AssertCorrect:
		if a.Step == "" {
			return fmt.Errorf("assertions[%d]: step is required for correct", index)
		}
		if _, ok := a.Expect.(bool); !ok {
			return fmt.Errorf("assertions[%d]: expect must be a bool for correct", index)
		}
	case AssertFinished:
		if _, ok := a.Expect.(bool); !ok {
			return fmt.Errorf("assertions[%d]: expect must be a bool for finished", index)
		}
	case AssertSummary:
		if m, ok := a.Expect.(map[string]any); !ok || len(m) == 0 {
			return fmt.Errorf("assertions[%d]: expect map is required for summary", index)
		}
	case AssertPersisted:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for persisted", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
