package compiler

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/stimline/internal/timeline"
)

// ErrTaskNotFound is returned by lookups that have no task for an id.
var ErrTaskNotFound = errors.New("task not found")

// TaskLookup resolves task references during compilation.
// Implemented by MapLookup, loader.DirLookup and store.Store.
type TaskLookup interface {
	GetTaskByID(ctx context.Context, id string) (*timeline.Task, error)
}

// MapLookup is an in-memory task lookup keyed by task id.
type MapLookup map[string]timeline.Task

// GetTaskByID returns the task with the given id.
func (m MapLookup) GetTaskByID(_ context.Context, id string) (*timeline.Task, error) {
	task, ok := m[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return &task, nil
}

// safeLookup calls the lookup and converts a panic into an error, so a
// misbehaving collaborator degrades to a skipped step.
func safeLookup(ctx context.Context, lookup TaskLookup, id string) (task *timeline.Task, err error) {
	if lookup == nil {
		return nil, fmt.Errorf("%w: no task lookup configured", ErrTaskNotFound)
	}
	defer func() {
		if r := recover(); r != nil {
			task = nil
			err = fmt.Errorf("task lookup panicked: %v", r)
		}
	}()
	return lookup.GetTaskByID(ctx, id)
}
