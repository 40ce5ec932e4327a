package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/stimline/internal/results"
	"github.com/roach88/stimline/internal/store"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	As     string // "csv" | "json"
	Output string
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export <run-id>",
		Short: "Export a stored run as CSV or JSON",
		Long: `Export a stored run.

CSV has one row per interaction; a step with no interactions gets a single
row with the interaction columns empty. JSON is the full run with its
summary.

Examples:
  stimline export 0192f1c4-7d1e-7c9a-8e41-3b2f0c9d1a55 --db ./stimline.db
  stimline export run-1 --db ./stimline.db --as json -o run-1.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.As, "as", "csv", "export encoding (csv|json)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write to a file instead of stdout")

	return cmd
}

func runExport(ctx context.Context, opts *ExportOptions, id string, cmd *cobra.Command) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	var write func(io.Writer, results.Run) error
	switch opts.As {
	case "csv":
		write = results.WriteCSV
	case "json":
		write = results.WriteJSON
	default:
		return f.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("invalid --as %q: must be csv or json", opts.As))
	}

	st, err := openStore(f, opts.RootOptions)
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := st.LoadRun(ctx, id)
	if errors.Is(err, store.ErrRunNotFound) {
		return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("run %s not found", id))
	}
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, err.Error())
	}

	w := f.Writer
	if opts.Output != "" {
		file, ferr := os.Create(opts.Output)
		if ferr != nil {
			return f.Fail(ExitCommandError, ErrCodeWriteFailed, ferr.Error())
		}
		defer func() {
			if cerr := file.Close(); cerr != nil && err == nil {
				err = f.Fail(ExitCommandError, ErrCodeWriteFailed, cerr.Error())
			}
		}()
		w = file
	}

	if werr := write(w, run); werr != nil {
		return f.Fail(ExitCommandError, ErrCodeWriteFailed, werr.Error())
	}
	if opts.Output != "" {
		f.VerboseLog("Exported run %s (%d results) to %s", id, len(run.Results), opts.Output)
	}
	return nil
}

// openStore opens the configured database, failing when none is set.
func openStore(f *OutputFormatter, opts *RootOptions) (*store.Store, error) {
	if opts.Config.DB == "" {
		return nil, f.Fail(ExitCommandError, ErrCodeStore, "no database: set --db or STIMLINE_DB")
	}
	st, err := store.Open(opts.Config.DB)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("open database: %v", err))
	}
	return st, nil
}

// RunListing is one line of the runs command.
type RunListing struct {
	ID          string          `json:"id"`
	Participant string          `json:"participant,omitempty"`
	Seed        uint64          `json:"seed"`
	StartedAt   string          `json:"startedAt"`
	Finished    bool            `json:"finished"`
	Summary     results.Summary `json:"summary"`
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		filter       store.RunFilter
		finished     bool
		since, until string
	)

	cmd := &cobra.Command{
		Use:           "runs",
		Short:         "List stored runs with their summaries",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmdContext(cmd)
			f := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if cmd.Flags().Changed("finished") {
				filter.Finished = &finished
			}
			var err error
			if filter.Since, err = parseWhen(since); err != nil {
				return f.Fail(ExitCommandError, ErrCodeGeneric, "--since: "+err.Error())
			}
			if filter.Until, err = parseWhen(until); err != nil {
				return f.Fail(ExitCommandError, ErrCodeGeneric, "--until: "+err.Error())
			}

			st, err := openStore(f, rootOpts)
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.FindRuns(ctx, filter)
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeStore, err.Error())
			}
			listing := make([]RunListing, 0, len(runs))
			for _, r := range runs {
				sum, err := st.Summary(ctx, r.ID)
				if err != nil {
					return f.Fail(ExitCommandError, ErrCodeStore, err.Error())
				}
				listing = append(listing, RunListing{
					ID:          r.ID,
					Participant: r.Participant,
					Seed:        r.Seed,
					StartedAt:   r.StartedAt.UTC().Format("2006-01-02 15:04:05"),
					Finished:    r.FinishedAt != nil,
					Summary:     sum,
				})
			}

			if f.JSON() {
				return f.Success(listing)
			}
			if len(listing) == 0 {
				fmt.Fprintln(f.Writer, "No runs stored.")
				return nil
			}
			for _, l := range listing {
				fmt.Fprintf(f.Writer, "%s  %s  %-12s  %d/%d correct (%.0f%%)\n",
					l.StartedAt, l.ID, l.Participant, l.Summary.Correct, l.Summary.Scored, l.Summary.Accuracy*100)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&filter.Participant, "participant", "", "only runs of this participant")
	cmd.Flags().StringVar(&filter.Fingerprint, "fingerprint", "", "only runs of this compiled sequence")
	cmd.Flags().BoolVar(&finished, "finished", false, "only finished (true) or unfinished (false) runs")
	cmd.Flags().StringVar(&since, "since", "", "only runs started at or after this date or RFC 3339 time")
	cmd.Flags().StringVar(&until, "until", "", "only runs started before this date or RFC 3339 time")
	return cmd
}

// parseWhen accepts a date (UTC midnight) or an RFC 3339 time. Empty
// yields the zero time.
func parseWhen(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("want YYYY-MM-DD or RFC 3339, got %q", s)
	}
	return t, nil
}
