package timeline

// StepType identifies the behavior of a step.
type StepType string

const (
	StepStart               StepType = "start"
	StepEnd                 StepType = "end"
	StepTask                StepType = "task"
	StepCustomBlock         StepType = "custom_block"
	StepConditional         StepType = "conditional"
	StepSequentialStimuli   StepType = "sequential_stimuli"
	StepMultiTriggerStimuli StepType = "multi_trigger_stimuli"
)

// ValidStepTypes defines allowed step types.
var ValidStepTypes = map[StepType]bool{
	StepStart:               true,
	StepEnd:                 true,
	StepTask:                true,
	StepCustomBlock:         true,
	StepConditional:         true,
	StepSequentialStimuli:   true,
	StepMultiTriggerStimuli: true,
}

// BlockType identifies how a block is rendered.
type BlockType string

const (
	BlockText          BlockType = "text"
	BlockImage         BlockType = "image"
	BlockVideo         BlockType = "video"
	BlockAudio         BlockType = "audio"
	BlockScreen        BlockType = "screen"
	BlockFeedback      BlockType = "feedback"
	BlockSave          BlockType = "save"
	BlockInterStimulus BlockType = "inter_stimulus"
)

// ValidBlockTypes defines allowed block types.
var ValidBlockTypes = map[BlockType]bool{
	BlockText:          true,
	BlockImage:         true,
	BlockVideo:         true,
	BlockAudio:         true,
	BlockScreen:        true,
	BlockFeedback:      true,
	BlockSave:          true,
	BlockInterStimulus: true,
}

// Synthetic marks steps the compiler generated rather than copied from the
// authored timeline. Synthetic steps are never scored.
type Synthetic string

const (
	SyntheticNone          Synthetic = ""
	SyntheticFeedback      Synthetic = "feedback"
	SyntheticInterStimulus Synthetic = "inter_stimulus"
	SyntheticSave          Synthetic = "save"
)

// Step is one unit of the compiled runtime sequence.
type Step struct {
	ID         string       `json:"id" yaml:"id"`
	TemplateID string       `json:"templateId" yaml:"templateId"`
	GroupingID string       `json:"groupingId,omitempty" yaml:"groupingId,omitempty"`
	OrderIndex int          `json:"orderIndex" yaml:"orderIndex"`
	Type       StepType     `json:"type" yaml:"type"`
	Synthetic  Synthetic    `json:"synthetic,omitempty" yaml:"synthetic,omitempty"`
	Metadata   StepMetadata `json:"metadata" yaml:"metadata"`
}

// StepMetadata holds the renderable content of a step.
type StepMetadata struct {
	Title         string         `json:"title,omitempty" yaml:"title,omitempty"`
	Blocks        []Block        `json:"blocks" yaml:"blocks"`
	StimuliConfig *StimuliConfig `json:"stimuliConfig,omitempty" yaml:"stimuliConfig,omitempty"`
}

// Rect is a position and size in layout units.
type Rect struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Block is a renderable unit inside a step.
type Block struct {
	ID       string         `json:"id" yaml:"id"`
	Type     BlockType      `json:"type" yaml:"type"`
	Position Rect           `json:"position" yaml:"position"`
	Data     map[string]any `json:"data,omitempty" yaml:"data,omitempty"`
	Triggers []Trigger      `json:"triggers,omitempty" yaml:"triggers,omitempty"`
}

// TriggerKind identifies what fires a trigger.
type TriggerKind string

const (
	TriggerKeydown TriggerKind = "keydown"
	TriggerTimer   TriggerKind = "timer"
	TriggerClick   TriggerKind = "click"
)

// Trigger binds an observed interaction (or elapsed time) to an action.
type Trigger struct {
	ID     string `json:"id" yaml:"id"`
	StepID string `json:"stepId,omitempty" yaml:"stepId,omitempty"`
	// StimulusID is the block the trigger is attached to; empty for step-level triggers.
	StimulusID string          `json:"stimulusId,omitempty" yaml:"stimulusId,omitempty"`
	Metadata   TriggerMetadata `json:"metadata" yaml:"metadata"`
}

// TriggerMetadata is the declarative part of a trigger.
type TriggerMetadata struct {
	Kind        TriggerKind `json:"kind" yaml:"kind"`
	Key         string      `json:"key,omitempty" yaml:"key,omitempty"`
	Delay       *Millis     `json:"delay,omitempty" yaml:"delay,omitempty"`
	Target      string      `json:"target,omitempty" yaml:"target,omitempty"`
	Action      ActionKind  `json:"action" yaml:"action"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
}

// AuthoredStep is a step as written in the authoring tool. It may reference
// another task's timeline or carry a stimulus group to be expanded.
type AuthoredStep struct {
	ID         string       `json:"id" yaml:"id"`
	Type       StepType     `json:"type" yaml:"type"`
	OrderIndex int          `json:"orderIndex" yaml:"orderIndex"`
	TaskID     string       `json:"taskId,omitempty" yaml:"taskId,omitempty"`
	Metadata   StepMetadata `json:"metadata" yaml:"metadata"`
	// Stimuli, when present, makes this step a stimulus group.
	Stimuli *StimulusGroup `json:"stimuli,omitempty" yaml:"stimuli,omitempty"`
}

// StimulusGroup is a block of child template steps repeated across trials.
type StimulusGroup struct {
	Config StimuliConfig  `json:"config" yaml:"config"`
	Steps  []AuthoredStep `json:"steps" yaml:"steps"`
}

// Timeline is an authored, ordered definition of an experiment's steps.
type Timeline struct {
	Steps []AuthoredStep `json:"steps" yaml:"steps"`
}

// Task is a named, reusable timeline that other timelines may reference.
type Task struct {
	ID       string   `json:"id" yaml:"id"`
	Name     string   `json:"name,omitempty" yaml:"name,omitempty"`
	Timeline Timeline `json:"timeline" yaml:"timeline"`
}

// Triggers returns every trigger across the step's blocks in block order.
func (s *Step) Triggers() []Trigger {
	var out []Trigger
	for _, b := range s.Metadata.Blocks {
		out = append(out, b.Triggers...)
	}
	return out
}

// Scored reports whether results of this step count toward the run outcome.
func (s *Step) Scored() bool {
	return s.Synthetic == SyntheticNone
}

// IsTerminal reports whether the step is the synthetic save step ending a run.
func (s *Step) IsTerminal() bool {
	return s.Synthetic == SyntheticSave
}

// Config returns the step's stimuli configuration, or nil.
func (s *Step) Config() *StimuliConfig {
	return s.Metadata.StimuliConfig
}

// Level returns the step's retry policy, or nil when none is configured.
func (s *Step) Level() *Level {
	if s.Metadata.StimuliConfig == nil {
		return nil
	}
	return s.Metadata.StimuliConfig.Level
}

// IsMultiTrigger reports whether the step expects an ordered set of responses.
func (s *Step) IsMultiTrigger() bool {
	return s.Type == StepMultiTriggerStimuli && len(s.Triggers()) > 1
}

// ImageURL returns the image source of an image block.
func (b *Block) ImageURL() (string, bool) {
	if b.Type != BlockImage || b.Data == nil {
		return "", false
	}
	for _, key := range []string{"src", "url"} {
		if v, ok := b.Data[key].(string); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// CloneBlocks deep-copies blocks so a compiled step never aliases authored data.
// Data maps are copied one level deep; nested values are treated as immutable.
func CloneBlocks(blocks []Block) []Block {
	if blocks == nil {
		return nil
	}
	out := make([]Block, len(blocks))
	for i, b := range blocks {
		nb := b
		if b.Data != nil {
			nb.Data = make(map[string]any, len(b.Data))
			for k, v := range b.Data {
				nb.Data[k] = v
			}
		}
		if b.Triggers != nil {
			nb.Triggers = make([]Trigger, len(b.Triggers))
			for j, tr := range b.Triggers {
				nt := tr
				if tr.Metadata.Delay != nil {
					d := *tr.Metadata.Delay
					nt.Metadata.Delay = &d
				}
				nb.Triggers[j] = nt
			}
		}
		out[i] = nb
	}
	return out
}
