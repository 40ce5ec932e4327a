package compiler

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"

	"github.com/roach88/stimline/internal/timeline"
)

// Compiler flattens authored timelines into runtime sequences.
//
// A Compiler holds configuration only; every Compile call gets its own
// random source and warning list, so one Compiler may be reused.
type Compiler struct {
	lookup    TaskLookup
	ids       IDGenerator
	rng       *rand.Rand
	seed      uint64
	seeded    bool
	preloader Preloader
	logger    *slog.Logger
	maxDepth  int
}

// New creates a Compiler.
func New(opts ...Option) *Compiler {
	c := &Compiler{}
	for _, opt := range opts {
		opt(c)
	}
	c.applyDefaults()
	return c
}

// Result is the output of one compilation.
type Result struct {
	Steps       []timeline.Step  `json:"steps"`
	Warnings    []CompileWarning `json:"warnings,omitempty"`
	Seed        uint64           `json:"seed"`
	Fingerprint string           `json:"fingerprint"`
}

// pass is the per-call state of a compilation.
type pass struct {
	ctx      context.Context
	rng      *rand.Rand
	warnings []CompileWarning
}

// Compile flattens a top-level authored timeline. The returned sequence is
// ordered by OrderIndex and always ends with a synthetic save step.
//
// Data-shape problems never fail compilation; they are reported in
// Result.Warnings. The only error is context cancellation.
func (c *Compiler) Compile(ctx context.Context, steps []timeline.AuthoredStep) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}

	p := &pass{ctx: ctx, rng: c.rng}
	seed := uint64(0)
	if p.rng == nil {
		seed = c.seed
		if !c.seeded {
			seed = rand.Uint64()
		}
		p.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}

	out := c.compile(p, steps, false, "", nil)

	if c.preloader != nil {
		if urls := ImageURLs(out); len(urls) > 0 {
			if err := c.preloader.Preload(ctx, urls); err != nil {
				c.logger.Warn("image preload incomplete", "urls", len(urls), "error", err)
			}
		}
	}

	fp, err := timeline.Fingerprint(out)
	if err != nil {
		return nil, fmt.Errorf("fingerprint: %w", err)
	}

	return &Result{
		Steps:       out,
		Warnings:    p.warnings,
		Seed:        seed,
		Fingerprint: fp,
	}, nil
}

// compile is the recursive flattening pass. chain holds the task ids
// currently being expanded, outermost first.
func (c *Compiler) compile(p *pass, steps []timeline.AuthoredStep, sub bool, groupingID string, chain []string) []timeline.Step {
	ordered := slices.Clone(steps)
	slices.SortStableFunc(ordered, func(a, b timeline.AuthoredStep) int {
		return a.OrderIndex - b.OrderIndex
	})

	var out []timeline.Step
	for i := range ordered {
		as := &ordered[i]
		switch {
		case as.Type == timeline.StepTask:
			out = append(out, c.expandTask(p, as, len(out), chain)...)

		case as.Stimuli != nil:
			out = c.expandGroup(p, as, out)

		default:
			if !timeline.ValidStepTypes[as.Type] {
				c.warn(p, WarnUnknownStepType, as.ID, fmt.Sprintf("unknown step type %q", as.Type))
			}
			step := c.clone(p, as, groupingID, as.Metadata.StimuliConfig, len(out)+1)
			out = append(out, step)
		}
	}

	if !sub {
		out = append(out, c.saveStep(len(out)))
	}
	return out
}

// expandTask resolves a task reference and returns its compiled steps,
// re-indexed to follow the offset already emitted.
func (c *Compiler) expandTask(p *pass, as *timeline.AuthoredStep, offset int, chain []string) []timeline.Step {
	if as.TaskID == "" {
		c.warn(p, WarnMissingTaskID, as.ID, "task step has no taskId, skipped")
		return nil
	}
	if slices.Contains(chain, as.TaskID) {
		c.warn(p, WarnTaskCycle, as.ID, fmt.Sprintf("task %s references itself through %v, skipped", as.TaskID, chain))
		return nil
	}
	if len(chain) >= c.maxDepth {
		c.warn(p, WarnMaxDepth, as.ID, fmt.Sprintf("task nesting exceeds %d at %s, skipped", c.maxDepth, as.TaskID))
		return nil
	}

	task, err := safeLookup(p.ctx, c.lookup, as.TaskID)
	if err != nil || task == nil {
		if err == nil {
			err = ErrTaskNotFound
		}
		c.warn(p, WarnTaskLookupFailed, as.ID, fmt.Sprintf("task %s: %v", as.TaskID, err))
		return nil
	}

	nested := append(slices.Clone(chain), as.TaskID)
	sub := c.compile(p, task.Timeline.Steps, true, as.ID, nested)
	for i := range sub {
		sub[i].OrderIndex = offset + i + 1
	}
	return sub
}

// expandGroup appends the trials of a stimulus group to out.
func (c *Compiler) expandGroup(p *pass, as *timeline.AuthoredStep, out []timeline.Step) []timeline.Step {
	group := as.Stimuli
	if group.Steps == nil {
		panic(fmt.Sprintf("compiler: stimulus group %s has no step list", as.ID))
	}
	cfg := group.Config
	if cfg.Trials <= 0 || len(group.Steps) == 0 {
		c.warn(p, WarnEmptyGroup, as.ID, fmt.Sprintf("group produces no steps (trials=%d, children=%d)", cfg.Trials, len(group.Steps)))
		return out
	}

	children := slices.Clone(group.Steps)
	slices.SortStableFunc(children, func(a, b timeline.AuthoredStep) int {
		return a.OrderIndex - b.OrderIndex
	})

	for trial := 0; trial < cfg.Trials; trial++ {
		order := children
		if cfg.Randomize {
			order = slices.Clone(children)
			p.rng.Shuffle(len(order), func(i, j int) {
				order[i], order[j] = order[j], order[i]
			})
		}

		for ci := range order {
			child := &order[ci]
			merged := cfg.Merge(child.Metadata.StimuliConfig)
			step := c.clone(p, child, as.ID, &merged, len(out)+1)
			out = append(out, step)

			if fb, ok := merged.FeedbackMillis(); ok && !suppressFeedback(child) {
				out = append(out, c.timerStep(timeline.StepCustomBlock, timeline.SyntheticFeedback, timeline.BlockFeedback, child.ID, as.ID, fb, len(out)+1))
			}
			if isi := merged.InterStimulusMillis(); isi > 0 {
				out = append(out, c.timerStep(timeline.StepSequentialStimuli, timeline.SyntheticInterStimulus, timeline.BlockInterStimulus, child.ID, as.ID, isi, len(out)+1))
			}
		}
	}
	return out
}

// suppressFeedback reports whether a child has no discrete response to give
// feedback on: a multi-trigger step whose authored blocks declare at most one
// trigger.
func suppressFeedback(child *timeline.AuthoredStep) bool {
	if child.Type != timeline.StepMultiTriggerStimuli {
		return false
	}
	n := 0
	for _, b := range child.Metadata.Blocks {
		n += len(b.Triggers)
	}
	return n <= 1
}

// clone produces a compiled step from an authored one with a fresh id.
func (c *Compiler) clone(p *pass, as *timeline.AuthoredStep, groupingID string, cfg *timeline.StimuliConfig, orderIndex int) timeline.Step {
	id := c.ids.Generate()
	step := timeline.Step{
		ID:         id,
		TemplateID: as.ID,
		GroupingID: groupingID,
		OrderIndex: orderIndex,
		Type:       as.Type,
		Metadata: timeline.StepMetadata{
			Title:  as.Metadata.Title,
			Blocks: timeline.CloneBlocks(as.Metadata.Blocks),
		},
	}
	if cfg != nil {
		cp := timeline.StimuliConfig{}.Merge(cfg)
		cp.Trials = cfg.Trials
		cp.Randomize = cfg.Randomize
		step.Metadata.StimuliConfig = &cp
	}

	for bi := range step.Metadata.Blocks {
		b := &step.Metadata.Blocks[bi]
		for ti := range b.Triggers {
			tr := &b.Triggers[ti]
			tr.StepID = id
			if tr.ID == "" {
				tr.ID = c.ids.Generate()
			}
			if tr.StimulusID == "" && tr.Metadata.Kind == timeline.TriggerClick {
				tr.StimulusID = b.ID
			}
			if tr.Metadata.Kind == timeline.TriggerTimer {
				if tr.Metadata.Delay == nil || !tr.Metadata.Delay.Valid() {
					c.warn(p, WarnInvalidDelay, as.ID, fmt.Sprintf("timer trigger %s has invalid delay, using %v ms", tr.ID, float64(timeline.DefaultTimerDelay)))
				}
				tr.Metadata.Delay = timeline.ResolveDelay(tr.Metadata.Delay).Ptr()
			}
		}
	}

	c.injectDuration(p, &step)
	return step
}

// injectDuration adds an auto-advance timer to the first block when the
// step's config sets a stimulus duration and no timer trigger exists there.
func (c *Compiler) injectDuration(p *pass, step *timeline.Step) {
	cfg := step.Metadata.StimuliConfig
	if cfg == nil || cfg.StimulusDuration == nil {
		return
	}
	if len(step.Metadata.Blocks) == 0 {
		c.warn(p, WarnNoBlockForTimer, step.TemplateID, "stimulus duration set but step has no blocks")
		return
	}
	first := &step.Metadata.Blocks[0]
	for _, tr := range first.Triggers {
		if tr.Metadata.Kind == timeline.TriggerTimer {
			return
		}
	}
	if !cfg.StimulusDuration.Valid() {
		c.warn(p, WarnInvalidDelay, step.TemplateID, fmt.Sprintf("invalid stimulus duration, using %v ms", float64(timeline.DefaultTimerDelay)))
	}
	first.Triggers = append(first.Triggers, timeline.Trigger{
		ID:         c.ids.Generate(),
		StepID:     step.ID,
		StimulusID: first.ID,
		Metadata: timeline.TriggerMetadata{
			Kind:        timeline.TriggerTimer,
			Delay:       timeline.ResolveDelay(cfg.StimulusDuration).Ptr(),
			Action:      timeline.ActionGoToNextStep,
			Description: "stimulus duration",
		},
	})
}

// timerStep synthesizes a single-block step that advances after delay.
func (c *Compiler) timerStep(typ timeline.StepType, syn timeline.Synthetic, block timeline.BlockType, templateID, groupingID string, delay timeline.Millis, orderIndex int) timeline.Step {
	id := c.ids.Generate()
	blockID := c.ids.Generate()
	return timeline.Step{
		ID:         id,
		TemplateID: templateID,
		GroupingID: groupingID,
		OrderIndex: orderIndex,
		Type:       typ,
		Synthetic:  syn,
		Metadata: timeline.StepMetadata{
			Blocks: []timeline.Block{{
				ID:   blockID,
				Type: block,
				Triggers: []timeline.Trigger{{
					ID:         c.ids.Generate(),
					StepID:     id,
					StimulusID: blockID,
					Metadata: timeline.TriggerMetadata{
						Kind:   timeline.TriggerTimer,
						Delay:  delay.Ptr(),
						Action: timeline.ActionGoToNextStep,
					},
				}},
			}},
		},
	}
}

// SaveTemplateID is the lineage id shared by every terminal save step.
const SaveTemplateID = "save"

// saveStep builds the terminal step. Its index is SaveOrderIndex unless the
// sequence is long enough to need more.
func (c *Compiler) saveStep(n int) timeline.Step {
	id := c.ids.Generate()
	idx := SaveOrderIndex
	if n+1 > idx {
		idx = n + 1
	}
	return timeline.Step{
		ID:         id,
		TemplateID: SaveTemplateID,
		OrderIndex: idx,
		Type:       timeline.StepCustomBlock,
		Synthetic:  timeline.SyntheticSave,
		Metadata: timeline.StepMetadata{
			Title: "Save",
			Blocks: []timeline.Block{{
				ID:   c.ids.Generate(),
				Type: timeline.BlockSave,
			}},
		},
	}
}

func (c *Compiler) warn(p *pass, code, stepID, msg string) {
	w := CompileWarning{Code: code, StepID: stepID, Message: msg}
	p.warnings = append(p.warnings, w)
	c.logger.Warn("compile warning", "code", code, "step_id", stepID, "message", msg)
}

// ImageURLs returns the distinct image sources referenced by steps, in
// first-seen order.
func ImageURLs(steps []timeline.Step) []string {
	seen := make(map[string]bool)
	var urls []string
	for i := range steps {
		for bi := range steps[i].Metadata.Blocks {
			if u, ok := steps[i].Metadata.Blocks[bi].ImageURL(); ok && !seen[u] {
				seen[u] = true
				urls = append(urls, u)
			}
		}
	}
	return urls
}
