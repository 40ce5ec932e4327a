package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/stimline/internal/compiler"
	"github.com/roach88/stimline/internal/timeline"
)

// PutTask inserts or replaces a task.
func (s *Store) PutTask(ctx context.Context, task timeline.Task) error {
	if task.ID == "" {
		return errors.New("put task: id is required")
	}
	tl, err := marshalTimeline(task.Timeline)
	if err != nil {
		return fmt.Errorf("put task %s: %w", task.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, name, timeline)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, timeline = excluded.timeline
	`, task.ID, task.Name, tl)
	if err != nil {
		return fmt.Errorf("put task %s: %w", task.ID, err)
	}
	return nil
}

// GetTaskByID implements compiler.TaskLookup.
// Returns an error wrapping compiler.ErrTaskNotFound if the id is unknown.
func (s *Store) GetTaskByID(ctx context.Context, id string) (*timeline.Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, timeline FROM tasks WHERE id = ?
	`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", compiler.ErrTaskNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// ListTasks returns every task ordered by id.
func (s *Store) ListTasks(ctx context.Context) ([]timeline.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, timeline FROM tasks ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []timeline.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

// DeleteTask removes a task. Deleting an unknown id is not an error.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return nil
}

func scanTask(sc scanner) (timeline.Task, error) {
	var (
		task timeline.Task
		raw  string
	)
	if err := sc.Scan(&task.ID, &task.Name, &raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return timeline.Task{}, err
		}
		return timeline.Task{}, fmt.Errorf("scan task: %w", err)
	}
	tl, err := unmarshalTimeline(raw)
	if err != nil {
		return timeline.Task{}, fmt.Errorf("task %s: %w", task.ID, err)
	}
	task.Timeline = tl
	return task, nil
}
