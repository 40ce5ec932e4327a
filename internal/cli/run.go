package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/stimline/internal/compiler"
	"github.com/roach88/stimline/internal/engine"
	"github.com/roach88/stimline/internal/harness"
	"github.com/roach88/stimline/internal/results"
	"github.com/roach88/stimline/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	RunID string

	// IDs generates the run id when --run-id is not given. Defaults to UUIDv7.
	IDs engine.IDGenerator
}

// RunReport is the outcome of one scripted session.
type RunReport struct {
	Scenario  string          `json:"scenario"`
	RunID     string          `json:"runId"`
	Pass      bool            `json:"pass"`
	Finished  bool            `json:"finished"`
	Persisted bool            `json:"persisted"`
	Errors    []string        `json:"errors,omitempty"`
	Warnings  []string        `json:"warnings,omitempty"`
	Summary   results.Summary `json:"summary"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a scripted session against a timeline",
		Long: `Run a scripted participant session headlessly.

The scenario names a timeline, a seed and timed inputs. The timeline is
compiled, the inputs are replayed on a simulated clock and the finished
run is stored in --db. Without --db the run is kept in memory only.
--seed and --tasks-dir override the scenario's own values.

Exit codes:
  0 - Session finished and every assertion held
  1 - An assertion failed
  2 - Command error (unreadable scenario, database error)

Examples:
  stimline run session.yaml --db ./stimline.db
  stimline run session.yaml --seed 7 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "run id (default: generated UUIDv7)")

	return cmd
}

func runScenario(opts *RunOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := opts.logger()

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error())
	}
	if opts.Config.SeedSet {
		scenario.Seed = opts.Config.Seed
	}
	if opts.Config.TasksDir != "" {
		scenario.TasksDir = opts.Config.TasksDir
	}

	runID := opts.RunID
	if runID == "" {
		ids := opts.IDs
		if ids == nil {
			ids = compiler.UUIDv7Generator{}
		}
		runID = ids.Generate()
	}

	hopts := harness.Options{Logger: logger, RunID: runID}
	if opts.Config.DB != "" {
		st, err := store.Open(opts.Config.DB)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("open database: %v", err))
		}
		defer func() {
			if cerr := st.Close(); cerr != nil {
				logger.Error("error closing database", "error", cerr)
			}
		}()
		hopts.Store = st
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("session starting", "scenario", scenario.Name, "run_id", runID, "seed", scenario.Seed)
	res, err := harness.Run(ctx, scenario, hopts)
	if err != nil {
		return WrapExitError(ExitCommandError, "run scenario", err)
	}

	report := RunReport{
		Scenario:  scenario.Name,
		RunID:     runID,
		Pass:      res.Pass,
		Finished:  res.Finished,
		Persisted: res.Finished && hopts.Store != nil,
		Errors:    res.Errors,
		Warnings:  res.Warnings,
		Summary:   res.Summary,
	}
	logger.Info("session done", "run_id", runID, "finished", res.Finished, "pass", res.Pass)

	if f.JSON() {
		if err := f.Success(report); err != nil {
			return err
		}
	} else {
		writeRunText(f, report)
	}

	if !report.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed %d assertion(s)", report.Scenario, len(report.Errors)))
	}
	return nil
}

func writeRunText(f *OutputFormatter, r RunReport) {
	w := f.Writer
	mark := "✓"
	if !r.Pass {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s %s (run %s)\n", mark, r.Scenario, r.RunID)
	if !r.Finished {
		fmt.Fprintln(w, "  session did not reach its end")
	}

	s := r.Summary
	fmt.Fprintf(w, "  scored %d: %d correct, %d incorrect, %d unanswered\n", s.Scored, s.Correct, s.Incorrect, s.Unanswered)
	fmt.Fprintf(w, "  accuracy %.1f%%, mean RT %.0f ms (sd %.0f)\n", s.Accuracy*100, s.MeanRTMillis, s.SDRTMillis)
	for _, l := range s.Retried() {
		fmt.Fprintf(w, "  %s: %d attempts\n", l.TemplateID, l.Attempts)
	}
	for _, code := range r.Warnings {
		fmt.Fprintf(w, "  warning %s\n", code)
	}
	if r.Persisted {
		fmt.Fprintln(w, "  stored")
	}
	for _, e := range r.Errors {
		fmt.Fprintf(w, "\n%s", e)
	}
}
