package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/stimline/internal/compiler"
	"github.com/roach88/stimline/internal/loader"
	"github.com/roach88/stimline/internal/store"
	"github.com/roach88/stimline/internal/timeline"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
	Cycles []compiler.CycleWarning    `json:"cycles,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <timeline>",
		Short: "Lint an authored timeline and its task set",
		Long: `Lint an authored timeline without compiling it.

Reports everything the compiler would skip or default: duplicate ids,
unknown kinds and actions, keydown triggers without keys, bad retry
policies and invalid delays. With --tasks-dir or --db, every task in the
set is linted too and task reference cycles are reported.

Exit codes:
  0 - No findings
  1 - Findings reported
  2 - The timeline or task set could not be read`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.Context(), rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(ctx context.Context, opts *RootOptions, path string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	tl, err := loader.LoadTimeline(path)
	if err != nil {
		return failLoad(f, err)
	}

	result := ValidationResult{Errors: compiler.Validate(tl)}

	tasks, err := loadTaskSet(ctx, opts)
	if err != nil {
		return failLoad(f, err)
	}
	for _, task := range tasks {
		f.VerboseLog("Validating task: %s", task.ID)
		for _, ve := range compiler.Validate(task.Timeline) {
			ve.Field = "task[" + task.ID + "]." + ve.Field
			result.Errors = append(result.Errors, ve)
		}
	}
	result.Cycles = compiler.AnalyzeTaskCycles(tasks)
	result.Valid = len(result.Errors) == 0 && len(result.Cycles) == 0

	if result.Valid {
		if f.JSON() {
			return f.Success(result)
		}
		fmt.Fprintf(f.Writer, "✓ %s valid (%d task(s) checked)\n", path, len(tasks))
		return nil
	}

	n := len(result.Errors) + len(result.Cycles)
	if f.JSON() {
		code, msg := compiler.WarnTaskCycle, ""
		if len(result.Errors) > 0 {
			code, msg = result.Errors[0].Code, result.Errors[0].Message
		} else {
			msg = result.Cycles[0].Message
		}
		if err := f.Failure(code, msg, result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d finding(s)", n))
	}

	fmt.Fprintln(f.Writer, "✗ Validation failed")
	fmt.Fprintln(f.Writer)
	for _, ve := range result.Errors {
		fmt.Fprintf(f.Writer, "  %s %s: %s\n", ve.Code, ve.Field, ve.Message)
	}
	for _, c := range result.Cycles {
		fmt.Fprintf(f.Writer, "  %s cycle %s: %s\n", compiler.WarnTaskCycle, strings.Join(c.Path, " → "), c.Message)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d finding(s)", n))
}

// loadTaskSet returns the configured task set: every file in the tasks
// directory, or every task stored in the database.
func loadTaskSet(ctx context.Context, opts *RootOptions) ([]timeline.Task, error) {
	switch {
	case opts.Config.TasksDir != "":
		return loader.LoadTasks(opts.Config.TasksDir)
	case opts.Config.DB != "":
		st, err := store.Open(opts.Config.DB)
		if err != nil {
			return nil, err
		}
		defer st.Close()
		return st.ListTasks(ctx)
	default:
		return nil, nil
	}
}
