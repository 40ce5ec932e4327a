package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/stimline/internal/queryir"
	"github.com/roach88/stimline/internal/querysql"
	"github.com/roach88/stimline/internal/results"
	"github.com/roach88/stimline/internal/timeline"
)

// ErrRunNotFound is returned by LoadRun for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// SaveRun writes a completed run with its results and interactions in one
// transaction. Uses ON CONFLICT(id) DO NOTHING for idempotency - saving a
// run id twice keeps the first copy.
func (s *Store) SaveRun(ctx context.Context, run results.Run) error {
	summary, err := json.Marshal(results.Summarize(run.Results))
	if err != nil {
		return fmt.Errorf("save run: marshal summary: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save run: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, participant, seed, fingerprint, scored_steps, started_at, finished_at, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Participant,
		formatSeed(run.Seed),
		run.Fingerprint,
		run.ScoredSteps,
		formatTime(run.StartedAt),
		formatTimePtr(run.FinishedAt),
		string(summary),
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return tx.Commit()
	}

	for _, r := range run.Results {
		if err := insertResult(ctx, tx, run.ID, r); err != nil {
			return fmt.Errorf("save run %s: %w", run.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save run %s: commit: %w", run.ID, err)
	}
	return nil
}

func insertResult(ctx context.Context, tx *sql.Tx, runID string, r timeline.StepResult) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO step_results
		(run_id, seq, step_id, template_id, step_type, scored, practice, is_correct, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID,
		r.Seq,
		r.StepID,
		r.TemplateID,
		string(r.StepType),
		r.Scored,
		r.Practice,
		nullBool(r.IsCorrect),
		formatTime(r.StartedAt),
		formatTimePtr(r.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("insert result seq=%d: %w", r.Seq, err)
	}

	for i, in := range r.Interactions {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO interactions
			(run_id, seq, idx, type, timestamp, target, key, x, y, expected_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			runID,
			r.Seq,
			i,
			string(in.Type),
			formatTime(in.Timestamp),
			in.Target,
			in.Key,
			nullFloat(in.X),
			nullFloat(in.Y),
			nullMillis(in.ExpectedTime),
		)
		if err != nil {
			return fmt.Errorf("insert interaction seq=%d idx=%d: %w", r.Seq, i, err)
		}
	}
	return nil
}

// LoadRun reads a run with its results and interactions in seq order.
// Returns ErrRunNotFound (wrapping sql.ErrNoRows) if the id is unknown.
func (s *Store) LoadRun(ctx context.Context, id string) (results.Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, participant, seed, fingerprint, scored_steps, started_at, finished_at
		FROM runs
		WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return results.Run{}, fmt.Errorf("%w: %s: %w", ErrRunNotFound, id, err)
	}
	if err != nil {
		return results.Run{}, err
	}

	run.Results, err = s.readResults(ctx, id)
	if err != nil {
		return results.Run{}, err
	}
	return run, nil
}

// ListRuns returns run headers without results, oldest first.
// An empty participant lists every run.
func (s *Store) ListRuns(ctx context.Context, participant string) ([]results.Run, error) {
	return s.FindRuns(ctx, RunFilter{Participant: participant})
}

// RunFilter selects stored runs. Zero fields match everything.
type RunFilter struct {
	Participant string
	Fingerprint string
	Finished    *bool     // nil matches finished and unfinished runs
	Since       time.Time // started at or after
	Until       time.Time // started before
}

var runColumns = []string{"id", "participant", "seed", "fingerprint", "scored_steps", "started_at", "finished_at"}

var runsSchema = queryir.Schema{"runs": runColumns}

func (f RunFilter) query() queryir.Select {
	var preds []queryir.Predicate
	if f.Participant != "" {
		preds = append(preds, queryir.Equals{Field: "participant", Value: f.Participant})
	}
	if f.Fingerprint != "" {
		preds = append(preds, queryir.Equals{Field: "fingerprint", Value: f.Fingerprint})
	}
	if f.Finished != nil {
		if *f.Finished {
			preds = append(preds, queryir.NotNull{Field: "finished_at"})
		} else {
			preds = append(preds, queryir.IsNull{Field: "finished_at"})
		}
	}
	if !f.Since.IsZero() {
		preds = append(preds, queryir.Compare{Field: "started_at", Op: queryir.OpGreaterEqual, Value: formatTime(f.Since)})
	}
	if !f.Until.IsZero() {
		preds = append(preds, queryir.Compare{Field: "started_at", Op: queryir.OpLess, Value: formatTime(f.Until)})
	}
	return queryir.Select{
		From:    "runs",
		Columns: runColumns,
		Filter:  queryir.And{Predicates: preds},
		OrderBy: []string{"started_at"},
	}
}

// FindRuns returns headers of the runs matching f, oldest first with ties
// broken by id.
func (s *Store) FindRuns(ctx context.Context, f RunFilter) ([]results.Run, error) {
	c := &querysql.Compiler{Schema: runsSchema}
	query, params, err := c.Compile(f.query())
	if err != nil {
		return nil, fmt.Errorf("find runs: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []results.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Summary returns the stored summary of a run.
func (s *Store) Summary(ctx context.Context, id string) (results.Summary, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT summary FROM runs WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return results.Summary{}, fmt.Errorf("%w: %s: %w", ErrRunNotFound, id, err)
	}
	if err != nil {
		return results.Summary{}, fmt.Errorf("read summary: %w", err)
	}
	var sum results.Summary
	if err := json.Unmarshal([]byte(raw), &sum); err != nil {
		return results.Summary{}, fmt.Errorf("unmarshal summary: %w", err)
	}
	return sum, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (results.Run, error) {
	var (
		run      results.Run
		seed     string
		started  string
		finished sql.NullString
	)
	err := sc.Scan(&run.ID, &run.Participant, &seed, &run.Fingerprint, &run.ScoredSteps, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return results.Run{}, err
	}
	if err != nil {
		return results.Run{}, fmt.Errorf("scan run: %w", err)
	}
	if run.Seed, err = parseSeed(seed); err != nil {
		return results.Run{}, err
	}
	if run.StartedAt, err = parseTime(started); err != nil {
		return results.Run{}, err
	}
	if run.FinishedAt, err = parseTimePtr(finished); err != nil {
		return results.Run{}, err
	}
	run.Results = []timeline.StepResult{}
	return run, nil
}

func (s *Store) readResults(ctx context.Context, runID string) ([]timeline.StepResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, step_id, template_id, step_type, scored, practice, is_correct, started_at, completed_at
		FROM step_results
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	out := []timeline.StepResult{}
	bySeq := make(map[int64]int)
	for rows.Next() {
		var (
			r         timeline.StepResult
			stepType  string
			correct   sql.NullBool
			started   string
			completed sql.NullString
		)
		if err := rows.Scan(&r.Seq, &r.StepID, &r.TemplateID, &stepType, &r.Scored, &r.Practice, &correct, &started, &completed); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.StepType = timeline.StepType(stepType)
		r.IsCorrect = boolPtr(correct)
		if r.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if r.CompletedAt, err = parseTimePtr(completed); err != nil {
			return nil, err
		}
		r.Interactions = []timeline.Interaction{}
		bySeq[r.Seq] = len(out)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	rows.Close()

	irows, err := s.db.QueryContext(ctx, `
		SELECT seq, type, timestamp, target, key, x, y, expected_ms
		FROM interactions
		WHERE run_id = ?
		ORDER BY seq ASC, idx ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer irows.Close()

	for irows.Next() {
		var (
			seq      int64
			in       timeline.Interaction
			typ      string
			ts       string
			x, y     sql.NullFloat64
			expected sql.NullFloat64
		)
		if err := irows.Scan(&seq, &typ, &ts, &in.Target, &in.Key, &x, &y, &expected); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		in.Type = timeline.InteractionType(typ)
		if in.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		in.X, in.Y = floatPtr(x), floatPtr(y)
		in.ExpectedTime = millisPtr(expected)

		idx, ok := bySeq[seq]
		if !ok {
			return nil, fmt.Errorf("interaction for unknown result seq=%d", seq)
		}
		out[idx].Interactions = append(out[idx].Interactions, in)
	}
	if err := irows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interactions: %w", err)
	}
	return out, nil
}
