package compiler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stimline/internal/testutil"
	"github.com/roach88/stimline/internal/timeline"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCompiler(opts ...Option) *Compiler {
	base := []Option{
		WithIDGenerator(testutil.NewSequentialIDs("s")),
		WithLogger(quietLogger()),
		WithSeed(7),
	}
	return New(append(base, opts...)...)
}

func mustCompile(t *testing.T, c *Compiler, steps ...timeline.AuthoredStep) *Result {
	t.Helper()
	res, err := c.Compile(context.Background(), steps)
	require.NoError(t, err)
	return res
}

func templateIDs(steps []timeline.Step) []string {
	ids := make([]string, len(steps))
	for i, s := range steps {
		ids[i] = s.TemplateID
	}
	return ids
}

func scored(steps []timeline.Step) []timeline.Step {
	var out []timeline.Step
	for _, s := range steps {
		if s.Scored() {
			out = append(out, s)
		}
	}
	return out
}

func warningCodes(ws []CompileWarning) []string {
	codes := make([]string, len(ws))
	for i, w := range ws {
		codes[i] = w.Code
	}
	return codes
}

func TestCompile_EndToEndInterleaving(t *testing.T) {
	group := testutil.Group("grp", 1, timeline.StimuliConfig{
		Trials:                2,
		FeedbackDuration:      testutil.Ms(500),
		InterStimulusInterval: testutil.Ms(200),
	},
		testutil.KeyStep("stim1", timeline.StepSequentialStimuli, 0, "f", timeline.ActionGoToNextStep),
		testutil.KeyStep("stim2", timeline.StepSequentialStimuli, 1, "j", timeline.ActionGoToNextStep),
	)

	res := mustCompile(t, newTestCompiler(),
		testutil.Plain("start", timeline.StepStart, 0),
		group,
		testutil.Plain("end", timeline.StepEnd, 2),
	)

	type shape struct {
		template  string
		synthetic timeline.Synthetic
	}
	want := []shape{{"start", ""}}
	for trial := 0; trial < 2; trial++ {
		for _, child := range []string{"stim1", "stim2"} {
			want = append(want,
				shape{child, ""},
				shape{child, timeline.SyntheticFeedback},
				shape{child, timeline.SyntheticInterStimulus},
			)
		}
	}
	want = append(want, shape{"end", ""})

	steps := res.Steps
	require.Len(t, steps, len(want)+1)
	for i, w := range want {
		assert.Equal(t, w.template, steps[i].TemplateID, "step %d", i)
		assert.Equal(t, w.synthetic, steps[i].Synthetic, "step %d", i)
		assert.Equal(t, i+1, steps[i].OrderIndex, "step %d", i)
	}

	fb := steps[2]
	assert.Equal(t, timeline.StepCustomBlock, fb.Type)
	require.Len(t, fb.Metadata.Blocks, 1)
	assert.Equal(t, timeline.BlockFeedback, fb.Metadata.Blocks[0].Type)
	require.Len(t, fb.Triggers(), 1)
	assert.Equal(t, timeline.TriggerTimer, fb.Triggers()[0].Metadata.Kind)
	assert.Equal(t, timeline.Millis(500), *fb.Triggers()[0].Metadata.Delay)
	assert.Equal(t, timeline.ActionGoToNextStep, fb.Triggers()[0].Metadata.Action)

	isi := steps[3]
	assert.Equal(t, timeline.StepSequentialStimuli, isi.Type)
	assert.Equal(t, timeline.BlockInterStimulus, isi.Metadata.Blocks[0].Type)
	assert.Equal(t, timeline.Millis(200), *isi.Triggers()[0].Metadata.Delay)

	save := steps[len(steps)-1]
	assert.True(t, save.IsTerminal())
	assert.Equal(t, SaveOrderIndex, save.OrderIndex)

	assert.Equal(t, "grp", steps[1].GroupingID)
	assert.Empty(t, steps[0].GroupingID)
	assert.Empty(t, res.Warnings)
}

func TestCompile_UniqueIDsAndStepOwnership(t *testing.T) {
	group := testutil.Group("grp", 0, timeline.StimuliConfig{Trials: 3},
		testutil.KeyStep("a", timeline.StepSequentialStimuli, 0, "a", timeline.ActionGoToNextStep),
	)
	res := mustCompile(t, newTestCompiler(), group)

	seen := map[string]bool{}
	for _, s := range res.Steps {
		assert.False(t, seen[s.ID], "duplicate id %s", s.ID)
		seen[s.ID] = true
		for _, tr := range s.Triggers() {
			assert.Equal(t, s.ID, tr.StepID)
		}
	}
}

func TestCompile_DeterministicWithoutRandomize(t *testing.T) {
	build := func() []timeline.AuthoredStep {
		return []timeline.AuthoredStep{
			testutil.Plain("intro", timeline.StepStart, 0),
			testutil.Group("grp", 1, timeline.StimuliConfig{Trials: 3, FeedbackDuration: testutil.Ms(300)},
				testutil.KeyStep("x", timeline.StepSequentialStimuli, 0, "x", timeline.ActionGoToNextStep),
				testutil.KeyStep("y", timeline.StepSequentialStimuli, 1, "y", timeline.ActionGoToNextStep),
			),
		}
	}

	first := mustCompile(t, newTestCompiler(), build()...)
	second := mustCompile(t, newTestCompiler(), build()...)
	assert.Equal(t, first.Steps, second.Steps)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
}

func TestCompile_FingerprintIgnoresIDs(t *testing.T) {
	steps := []timeline.AuthoredStep{
		testutil.Group("g", 0, timeline.StimuliConfig{Trials: 2, FeedbackDuration: testutil.Ms(100)},
			testutil.KeyStep("a", timeline.StepSequentialStimuli, 0, "a", timeline.ActionGoToNextStep)),
	}
	first := mustCompile(t, newTestCompiler(WithIDGenerator(testutil.NewSequentialIDs("p"))), steps...)
	second := mustCompile(t, newTestCompiler(WithIDGenerator(testutil.NewSequentialIDs("q"))), steps...)

	assert.NotEqual(t, first.Steps[0].ID, second.Steps[0].ID)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
}

func TestCompile_TrialExpansionCount(t *testing.T) {
	const n, k = 3, 4
	var children []timeline.AuthoredStep
	for i := 0; i < k; i++ {
		id := string(rune('a' + i))
		children = append(children, testutil.KeyStep(id, timeline.StepSequentialStimuli, i, id, timeline.ActionGoToNextStep))
	}
	res := mustCompile(t, newTestCompiler(), testutil.Group("grp", 0, timeline.StimuliConfig{Trials: n}, children...))

	got := scored(res.Steps)
	require.Len(t, got, n*k)
	for trial := 0; trial < n; trial++ {
		assert.Equal(t, []string{"a", "b", "c", "d"}, templateIDs(got[trial*k:(trial+1)*k]), "trial %d", trial)
	}
}

func TestCompile_TrialsZeroProducesNothing(t *testing.T) {
	res := mustCompile(t, newTestCompiler(),
		testutil.Group("grp", 0, timeline.StimuliConfig{Trials: 0},
			testutil.KeyStep("a", timeline.StepSequentialStimuli, 0, "a", timeline.ActionGoToNextStep),
		),
	)
	require.Len(t, res.Steps, 1)
	assert.True(t, res.Steps[0].IsTerminal())
	assert.Equal(t, []string{WarnEmptyGroup}, warningCodes(res.Warnings))
}

func TestCompile_FeedbackSuppression(t *testing.T) {
	multi := func(triggers int) timeline.AuthoredStep {
		s := testutil.Plain("m", timeline.StepMultiTriggerStimuli, 0)
		for i := 0; i < triggers; i++ {
			key := string(rune('a' + i))
			s.Metadata.Blocks[0].Triggers = append(s.Metadata.Blocks[0].Triggers,
				testutil.KeyTrigger("m-"+key, key, timeline.ActionGoToNextStep))
		}
		return s
	}

	tests := []struct {
		name     string
		child    timeline.AuthoredStep
		feedback bool
	}{
		{"multi-trigger with zero triggers", multi(0), false},
		{"multi-trigger with one trigger", multi(1), false},
		{"multi-trigger with two triggers", multi(2), true},
		{"sequential with no triggers", testutil.Plain("p", timeline.StepSequentialStimuli, 0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := mustCompile(t, newTestCompiler(),
				testutil.Group("grp", 0, timeline.StimuliConfig{Trials: 1, FeedbackDuration: testutil.Ms(250)}, tt.child))

			var feedback int
			for _, s := range res.Steps {
				if s.Synthetic == timeline.SyntheticFeedback {
					feedback++
				}
			}
			if tt.feedback {
				assert.Equal(t, 1, feedback)
			} else {
				assert.Zero(t, feedback)
			}
		})
	}
}

func TestCompile_SuppressionCountsAuthoredTriggersOnly(t *testing.T) {
	// The injected duration timer must not lift a single-trigger step over
	// the suppression threshold.
	child := testutil.Plain("m", timeline.StepMultiTriggerStimuli, 0)
	child.Metadata.Blocks[0].Triggers = []timeline.Trigger{testutil.KeyTrigger("m-a", "a", timeline.ActionGoToNextStep)}

	res := mustCompile(t, newTestCompiler(), testutil.Group("grp", 0, timeline.StimuliConfig{
		Trials:           1,
		StimulusDuration: testutil.Ms(800),
		FeedbackDuration: testutil.Ms(250),
	}, child))

	require.Len(t, res.Steps, 2)
	assert.Len(t, res.Steps[0].Triggers(), 2)
	assert.True(t, res.Steps[1].IsTerminal())
}

func TestCompile_TerminalSaveStep(t *testing.T) {
	inputs := map[string][]timeline.AuthoredStep{
		"single plain": {testutil.Plain("a", timeline.StepStart, 0)},
		"group": {testutil.Group("g", 0, timeline.StimuliConfig{Trials: 2},
			testutil.Plain("c", timeline.StepSequentialStimuli, 0))},
		"unresolved task only": {testutil.TaskRef("t", 0, "missing")},
	}

	for name, steps := range inputs {
		t.Run(name, func(t *testing.T) {
			res := mustCompile(t, newTestCompiler(), steps...)
			last := res.Steps[len(res.Steps)-1]
			assert.Equal(t, timeline.StepCustomBlock, last.Type)
			require.Len(t, last.Metadata.Blocks, 1)
			assert.Equal(t, timeline.BlockSave, last.Metadata.Blocks[0].Type)
			for _, s := range res.Steps[:len(res.Steps)-1] {
				assert.Less(t, s.OrderIndex, last.OrderIndex)
			}
		})
	}
}

func TestCompile_SaveIndexGrowsPastDefault(t *testing.T) {
	res := mustCompile(t, newTestCompiler(), testutil.Group("g", 0, timeline.StimuliConfig{Trials: SaveOrderIndex},
		testutil.Plain("c", timeline.StepSequentialStimuli, 0)))

	last := res.Steps[len(res.Steps)-1]
	assert.Equal(t, SaveOrderIndex+1, last.OrderIndex)
	assert.Equal(t, SaveOrderIndex, res.Steps[len(res.Steps)-2].OrderIndex)
}

func TestCompile_DurationInjection(t *testing.T) {
	cfg := timeline.StimuliConfig{Trials: 1, StimulusDuration: testutil.Ms(1500)}

	t.Run("adds timer when none exists", func(t *testing.T) {
		res := mustCompile(t, newTestCompiler(), testutil.Group("g", 0, cfg,
			testutil.KeyStep("k", timeline.StepSequentialStimuli, 0, "k", timeline.ActionGoToNextStep)))

		triggers := res.Steps[0].Metadata.Blocks[0].Triggers
		require.Len(t, triggers, 2)
		injected := triggers[1]
		assert.Equal(t, timeline.TriggerTimer, injected.Metadata.Kind)
		assert.Equal(t, timeline.Millis(1500), *injected.Metadata.Delay)
		assert.Equal(t, timeline.ActionGoToNextStep, injected.Metadata.Action)
		assert.Equal(t, res.Steps[0].ID, injected.StepID)
	})

	t.Run("existing timer wins", func(t *testing.T) {
		res := mustCompile(t, newTestCompiler(), testutil.Group("g", 0, cfg,
			testutil.TimerStep("tm", 0, 400)))

		triggers := res.Steps[0].Triggers()
		require.Len(t, triggers, 1)
		assert.Equal(t, timeline.Millis(400), *triggers[0].Metadata.Delay)
	})

	t.Run("plain step uses its own config", func(t *testing.T) {
		plain := testutil.Plain("p", timeline.StepCustomBlock, 0)
		plain.Metadata.StimuliConfig = &timeline.StimuliConfig{StimulusDuration: testutil.Ms(900)}
		res := mustCompile(t, newTestCompiler(), plain)

		require.Len(t, res.Steps[0].Triggers(), 1)
		assert.Equal(t, timeline.Millis(900), *res.Steps[0].Triggers()[0].Metadata.Delay)
	})

	t.Run("no blocks warns", func(t *testing.T) {
		empty := timeline.AuthoredStep{ID: "e", Type: timeline.StepSequentialStimuli}
		res := mustCompile(t, newTestCompiler(), testutil.Group("g", 0, cfg, empty))
		assert.Contains(t, warningCodes(res.Warnings), WarnNoBlockForTimer)
	})
}

func TestCompile_RandomizeShufflesEachTrial(t *testing.T) {
	var children []timeline.AuthoredStep
	for i := 0; i < 5; i++ {
		id := string(rune('a' + i))
		children = append(children, testutil.Plain(id, timeline.StepSequentialStimuli, i))
	}
	group := testutil.Group("g", 0, timeline.StimuliConfig{Trials: 12, Randomize: true}, children...)

	res := mustCompile(t, newTestCompiler(WithSeed(99)), group)
	got := scored(res.Steps)
	require.Len(t, got, 60)

	orders := map[string]bool{}
	for trial := 0; trial < 12; trial++ {
		ids := templateIDs(got[trial*5 : (trial+1)*5])
		sorted := slices.Clone(ids)
		slices.Sort(sorted)
		assert.Equal(t, []string{"a", "b", "c", "d", "e"}, sorted, "trial %d is a permutation", trial)
		orders[strings.Join(ids, ",")] = true
	}
	assert.Greater(t, len(orders), 1, "trials must not reuse one shuffle")

	again := mustCompile(t, newTestCompiler(WithSeed(99)), group)
	assert.Equal(t, templateIDs(res.Steps), templateIDs(again.Steps))
	assert.Equal(t, uint64(99), res.Seed)
}

func TestCompile_FreshSeedPerCall(t *testing.T) {
	c := New(WithIDGenerator(testutil.NewSequentialIDs("s")), WithLogger(quietLogger()))
	step := testutil.Plain("a", timeline.StepSequentialStimuli, 0)

	first := mustCompile(t, c, step)
	second := mustCompile(t, c, step)
	assert.NotEqual(t, first.Seed, second.Seed, "an unseeded compiler draws a seed per call")

	seeded := newTestCompiler(WithSeed(5))
	assert.Equal(t, uint64(5), mustCompile(t, seeded, step).Seed)
	assert.Equal(t, uint64(5), mustCompile(t, seeded, step).Seed)
}

func TestCompile_ChildConfigOverridesGroup(t *testing.T) {
	child := testutil.KeyStep("c", timeline.StepSequentialStimuli, 0, "c", timeline.ActionGoToNextStep)
	child.Metadata.StimuliConfig = &timeline.StimuliConfig{
		InterStimulusInterval: testutil.Ms(0),
		IsPractice:            true,
	}
	res := mustCompile(t, newTestCompiler(), testutil.Group("g", 0, timeline.StimuliConfig{
		Trials:                1,
		InterStimulusInterval: testutil.Ms(300),
		Level:                 &timeline.Level{RepeatAmount: 2, OnWrongAnswer: timeline.OnWrongRepeat},
	}, child))

	require.Len(t, res.Steps, 2, "child interval 0 disables the inter-stimulus step")
	cfg := res.Steps[0].Config()
	require.NotNil(t, cfg)
	assert.True(t, cfg.IsPractice)
	assert.Equal(t, 1, cfg.Trials)
	require.NotNil(t, cfg.Level)
	assert.Equal(t, 2, cfg.Level.RepeatAmount)
}

func TestCompile_StableSortOnTies(t *testing.T) {
	res := mustCompile(t, newTestCompiler(),
		testutil.Plain("late", timeline.StepEnd, 5),
		testutil.Plain("first-tie", timeline.StepCustomBlock, 1),
		testutil.Plain("second-tie", timeline.StepCustomBlock, 1),
	)
	assert.Equal(t, []string{"first-tie", "second-tie", "late"}, templateIDs(res.Steps[:3]))
}

func TestCompile_TaskExpansion(t *testing.T) {
	lookup := MapLookup{
		"task-1": {ID: "task-1", Timeline: timeline.Timeline{Steps: []timeline.AuthoredStep{
			testutil.Plain("inner-b", timeline.StepCustomBlock, 1),
			testutil.Plain("inner-a", timeline.StepCustomBlock, 0),
		}}},
	}

	res := mustCompile(t, newTestCompiler(WithLookup(lookup)),
		testutil.Plain("before", timeline.StepStart, 0),
		testutil.TaskRef("ref", 1, "task-1"),
		testutil.Plain("after", timeline.StepEnd, 2),
	)

	require.Len(t, res.Steps, 5)
	assert.Equal(t, []string{"before", "inner-a", "inner-b", "after"}, templateIDs(res.Steps[:4]))
	assert.Equal(t, "ref", res.Steps[1].GroupingID)
	assert.Equal(t, "ref", res.Steps[2].GroupingID)
	for i := 0; i < 4; i++ {
		assert.Equal(t, i+1, res.Steps[i].OrderIndex)
	}
	assert.Empty(t, res.Warnings)
}

func TestCompile_TaskLookupFailureSkips(t *testing.T) {
	failing := lookupFunc(func(_ context.Context, id string) (*timeline.Task, error) {
		return nil, errors.New("network unreachable")
	})

	res := mustCompile(t, newTestCompiler(WithLookup(failing)),
		testutil.Plain("a", timeline.StepStart, 0),
		testutil.TaskRef("ref", 1, "task-1"),
		testutil.Plain("b", timeline.StepEnd, 2),
	)

	assert.Equal(t, []string{"a", "b"}, templateIDs(res.Steps[:2]))
	assert.Len(t, res.Steps, 3)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, WarnTaskLookupFailed, res.Warnings[0].Code)
	assert.Equal(t, "ref", res.Warnings[0].StepID)
	assert.Contains(t, res.Warnings[0].Message, "network unreachable")
}

func TestCompile_TaskLookupPanicSkips(t *testing.T) {
	panicky := lookupFunc(func(context.Context, string) (*timeline.Task, error) {
		panic("boom")
	})
	res := mustCompile(t, newTestCompiler(WithLookup(panicky)), testutil.TaskRef("ref", 0, "t"))
	assert.Len(t, res.Steps, 1)
	assert.Equal(t, []string{WarnTaskLookupFailed}, warningCodes(res.Warnings))
}

func TestCompile_NilTaskAndMissingTaskID(t *testing.T) {
	nilTask := lookupFunc(func(context.Context, string) (*timeline.Task, error) {
		return nil, nil
	})
	res := mustCompile(t, newTestCompiler(WithLookup(nilTask)),
		testutil.TaskRef("ref", 0, "t"),
		testutil.TaskRef("bare", 1, ""),
	)
	assert.Len(t, res.Steps, 1)
	assert.Equal(t, []string{WarnTaskLookupFailed, WarnMissingTaskID}, warningCodes(res.Warnings))
}

func TestCompile_TaskCycleSkipped(t *testing.T) {
	lookup := MapLookup{
		"a": {ID: "a", Timeline: timeline.Timeline{Steps: []timeline.AuthoredStep{
			testutil.Plain("a-body", timeline.StepCustomBlock, 0),
			testutil.TaskRef("a-to-b", 1, "b"),
		}}},
		"b": {ID: "b", Timeline: timeline.Timeline{Steps: []timeline.AuthoredStep{
			testutil.Plain("b-body", timeline.StepCustomBlock, 0),
			testutil.TaskRef("b-to-a", 1, "a"),
		}}},
	}

	res := mustCompile(t, newTestCompiler(WithLookup(lookup)), testutil.TaskRef("root", 0, "a"))

	assert.Equal(t, []string{"a-body", "b-body"}, templateIDs(res.Steps[:2]))
	assert.Len(t, res.Steps, 3)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, WarnTaskCycle, res.Warnings[0].Code)
	assert.Equal(t, "b-to-a", res.Warnings[0].StepID)
}

func TestCompile_MaxDepth(t *testing.T) {
	lookup := MapLookup{}
	for i := 0; i < 5; i++ {
		id := string(rune('a' + i))
		next := string(rune('a' + i + 1))
		lookup[id] = timeline.Task{ID: id, Timeline: timeline.Timeline{Steps: []timeline.AuthoredStep{
			testutil.Plain(id+"-body", timeline.StepCustomBlock, 0),
			testutil.TaskRef(id+"-ref", 1, next),
		}}}
	}

	res := mustCompile(t, newTestCompiler(WithLookup(lookup), WithMaxDepth(2)), testutil.TaskRef("root", 0, "a"))
	assert.Equal(t, []string{"a-body", "b-body"}, templateIDs(res.Steps[:2]))
	assert.Equal(t, []string{WarnMaxDepth}, warningCodes(res.Warnings))
}

func TestCompile_InvalidTimerDelayDefaults(t *testing.T) {
	step := testutil.TimerStep("t", 0, math.NaN())
	res := mustCompile(t, newTestCompiler(), step)

	delay := res.Steps[0].Triggers()[0].Metadata.Delay
	require.NotNil(t, delay)
	assert.Equal(t, timeline.DefaultTimerDelay, *delay)
	assert.Equal(t, []string{WarnInvalidDelay}, warningCodes(res.Warnings))

	// The authored input is not mutated.
	assert.True(t, math.IsNaN(float64(*step.Metadata.Blocks[0].Triggers[0].Metadata.Delay)))
}

func TestCompile_GroupWithNilChildrenPanics(t *testing.T) {
	bad := timeline.AuthoredStep{ID: "g", Stimuli: &timeline.StimulusGroup{Config: timeline.StimuliConfig{Trials: 1}}}
	assert.Panics(t, func() {
		_, _ = newTestCompiler().Compile(context.Background(), []timeline.AuthoredStep{bad})
	})
}

func TestCompile_PreloadsDistinctImages(t *testing.T) {
	var got []string
	pre := PreloaderFunc(func(_ context.Context, urls []string) error {
		got = urls
		return errors.New("one image failed")
	})

	res := mustCompile(t, newTestCompiler(WithPreloader(pre)),
		testutil.Group("g", 0, timeline.StimuliConfig{Trials: 3},
			testutil.ClickStep("left", timeline.StepSequentialStimuli, 0, timeline.ActionGoToNextStep),
			testutil.ClickStep("right", timeline.StepSequentialStimuli, 1, timeline.ActionGoToNextStep),
		),
	)

	assert.Equal(t, []string{
		"https://cdn.example.test/left.png",
		"https://cdn.example.test/right.png",
	}, got)
	assert.Len(t, res.Steps, 7, "preload failure never fails compilation")
}

func TestCompile_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestCompiler().Compile(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

type lookupFunc func(ctx context.Context, id string) (*timeline.Task, error)

func (f lookupFunc) GetTaskByID(ctx context.Context, id string) (*timeline.Task, error) {
	return f(ctx, id)
}
