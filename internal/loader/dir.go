package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/roach88/stimline/internal/compiler"
	"github.com/roach88/stimline/internal/timeline"
)

// taskExtensions is the lookup order for a task id inside a directory.
var taskExtensions = []string{".yaml", ".yml", ".json", ".cue"}

// DirLookup resolves task ids to <Dir>/<id>.<ext> files.
// Implements compiler.TaskLookup.
type DirLookup struct {
	Dir string
}

// GetTaskByID loads the first existing file for id in extension order.
// Returns an error wrapping compiler.ErrTaskNotFound if none exists.
func (d DirLookup) GetTaskByID(_ context.Context, id string) (*timeline.Task, error) {
	if id == "" || filepath.Base(id) != id {
		return nil, fmt.Errorf("%w: invalid id %q", compiler.ErrTaskNotFound, id)
	}
	for _, ext := range taskExtensions {
		path := filepath.Join(d.Dir, id+ext)
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		task, err := LoadTask(path)
		if err != nil {
			return nil, err
		}
		task.ID = id
		return &task, nil
	}
	return nil, fmt.Errorf("%w: %s in %s", compiler.ErrTaskNotFound, id, d.Dir)
}

// FindFiles walks dir and returns every document path with a known
// extension, sorted.
func FindFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		if _, ferr := DetectFormat(path); ferr == nil {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(files)
	return files, nil
}

// LoadTasks loads every task document under dir.
//
// Loading continues past broken files; their errors are returned joined
// alongside the tasks that did load.
func LoadTasks(dir string) ([]timeline.Task, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Path: dir, Message: "tasks directory not found", Err: err}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Path: dir, Message: "not a directory"}
	}

	files, err := FindFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeGeneric, Path: dir, Message: fmt.Sprintf("scanning directory: %v", err), Err: err}
	}

	tasks := []timeline.Task{}
	var errs []error
	for _, path := range files {
		task, err := LoadTask(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, errors.Join(errs...)
}
