package testutil

import "github.com/roach88/stimline/internal/timeline"

// Ms returns a pointer to a millisecond value.
func Ms(v float64) *timeline.Millis {
	return timeline.Millis(v).Ptr()
}

// Plain builds an authored step of the given type with one text block.
func Plain(id string, typ timeline.StepType, order int) timeline.AuthoredStep {
	return timeline.AuthoredStep{
		ID:         id,
		Type:       typ,
		OrderIndex: order,
		Metadata: timeline.StepMetadata{
			Title:  id,
			Blocks: []timeline.Block{{ID: id + "-b", Type: timeline.BlockText}},
		},
	}
}

// KeyStep builds a step whose first block fires action on key.
func KeyStep(id string, typ timeline.StepType, order int, key string, action timeline.ActionKind) timeline.AuthoredStep {
	s := Plain(id, typ, order)
	s.Metadata.Blocks[0].Triggers = []timeline.Trigger{KeyTrigger(id+"-t", key, action)}
	return s
}

// ClickStep builds a step with an image block that fires action when clicked.
func ClickStep(id string, typ timeline.StepType, order int, action timeline.ActionKind) timeline.AuthoredStep {
	s := Plain(id, typ, order)
	b := &s.Metadata.Blocks[0]
	b.Type = timeline.BlockImage
	b.Data = map[string]any{"src": "https://cdn.example.test/" + id + ".png"}
	b.Triggers = []timeline.Trigger{{
		ID:         id + "-t",
		StimulusID: b.ID,
		Metadata:   timeline.TriggerMetadata{Kind: timeline.TriggerClick, Action: action},
	}}
	return s
}

// TimerStep builds a step that advances after delay ms.
func TimerStep(id string, order int, delay float64) timeline.AuthoredStep {
	s := Plain(id, timeline.StepCustomBlock, order)
	s.Metadata.Blocks[0].Triggers = []timeline.Trigger{TimerTrigger(id+"-t", delay, timeline.ActionGoToNextStep)}
	return s
}

// KeyTrigger builds a keydown trigger.
func KeyTrigger(id, key string, action timeline.ActionKind) timeline.Trigger {
	return timeline.Trigger{
		ID:       id,
		Metadata: timeline.TriggerMetadata{Kind: timeline.TriggerKeydown, Key: key, Action: action},
	}
}

// TimerTrigger builds a timer trigger.
func TimerTrigger(id string, delay float64, action timeline.ActionKind) timeline.Trigger {
	return timeline.Trigger{
		ID:       id,
		Metadata: timeline.TriggerMetadata{Kind: timeline.TriggerTimer, Delay: Ms(delay), Action: action},
	}
}

// Group builds a stimulus group step around children.
func Group(id string, order int, cfg timeline.StimuliConfig, children ...timeline.AuthoredStep) timeline.AuthoredStep {
	if children == nil {
		children = []timeline.AuthoredStep{}
	}
	return timeline.AuthoredStep{
		ID:         id,
		Type:       timeline.StepSequentialStimuli,
		OrderIndex: order,
		Metadata:   timeline.StepMetadata{Title: id},
		Stimuli:    &timeline.StimulusGroup{Config: cfg, Steps: children},
	}
}

// TaskRef builds a task reference step.
func TaskRef(id string, order int, taskID string) timeline.AuthoredStep {
	return timeline.AuthoredStep{
		ID:         id,
		Type:       timeline.StepTask,
		OrderIndex: order,
		TaskID:     taskID,
	}
}

// CompiledStep builds an already-compiled scored step whose single block
// carries triggers, for engine tests that bypass the compiler.
func CompiledStep(id string, order int, typ timeline.StepType, cfg *timeline.StimuliConfig, triggers ...timeline.Trigger) timeline.Step {
	for i := range triggers {
		triggers[i].StepID = id
	}
	return timeline.Step{
		ID:         id,
		TemplateID: id,
		OrderIndex: order,
		Type:       typ,
		Metadata: timeline.StepMetadata{
			Title:         id,
			StimuliConfig: cfg,
			Blocks: []timeline.Block{{
				ID:       id + "-b",
				Type:     timeline.BlockText,
				Triggers: triggers,
			}},
		},
	}
}

// CompiledKeyStep builds an already-compiled step answered by key.
func CompiledKeyStep(id string, order int, typ timeline.StepType, key string, action timeline.ActionKind, cfg *timeline.StimuliConfig) timeline.Step {
	return CompiledStep(id, order, typ, cfg, KeyTrigger(id+"-t", key, action))
}

// ClickTrigger builds a click trigger on the block stimulusID.
func ClickTrigger(id, stimulusID string, action timeline.ActionKind) timeline.Trigger {
	return timeline.Trigger{
		ID:         id,
		StimulusID: stimulusID,
		Metadata:   timeline.TriggerMetadata{Kind: timeline.TriggerClick, Action: action},
	}
}

// SaveStep builds a compiled terminal save step.
func SaveStep(id string, order int) timeline.Step {
	return timeline.Step{
		ID:         id,
		TemplateID: id,
		OrderIndex: order,
		Type:       timeline.StepCustomBlock,
		Synthetic:  timeline.SyntheticSave,
		Metadata: timeline.StepMetadata{
			Blocks: []timeline.Block{{ID: id + "-b", Type: timeline.BlockSave}},
		},
	}
}
