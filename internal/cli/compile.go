package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/stimline/internal/compiler"
	"github.com/roach88/stimline/internal/loader"
	"github.com/roach88/stimline/internal/store"
	"github.com/roach88/stimline/internal/timeline"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output  string
	Preload bool
}

// CompileOutput is what compile prints or writes.
type CompileOutput struct {
	Seed        uint64                    `json:"seed"`
	Fingerprint string                    `json:"fingerprint"`
	Steps       []timeline.Step           `json:"steps"`
	Warnings    []compiler.CompileWarning `json:"warnings"`
	Images      []string                  `json:"images,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <timeline>",
		Short: "Compile an authored timeline into a runtime sequence",
		Long: `Compile an authored timeline (YAML, JSON or CUE) into the flat,
ordered sequence the engine runs.

Task references resolve from --tasks-dir, or from the task table of --db.
Unresolvable references are skipped and reported as warnings; warnings
never fail the command.

Examples:
  stimline compile flanker.yaml --seed 42
  stimline compile study.cue --tasks-dir ./tasks -o compiled.json
  stimline compile study.yaml --db ./stimline.db --preload`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the compiled sequence to a file")
	cmd.Flags().BoolVar(&opts.Preload, "preload", false, "fetch referenced images after compiling")

	return cmd
}

func runCompile(ctx context.Context, opts *CompileOptions, path string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := opts.logger()

	tl, err := loader.LoadTimeline(path)
	if err != nil {
		return failLoad(f, err)
	}
	f.VerboseLog("Loaded %d authored step(s) from %s", len(tl.Steps), path)

	copts := []compiler.Option{compiler.WithLogger(logger)}
	if opts.Config.SeedSet {
		copts = append(copts, compiler.WithSeed(opts.Config.Seed))
	}

	lookup, closer, err := taskLookup(opts.RootOptions)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, err.Error())
	}
	defer closer.Close()
	if lookup != nil {
		copts = append(copts, compiler.WithLookup(lookup))
	}

	if opts.Preload || opts.Config.Preload.Enabled {
		p := opts.Config.Preload
		copts = append(copts, compiler.WithPreloader(
			compiler.NewHTTPPreloader(http.DefaultClient, p.RPS, p.Timeout, logger)))
	}

	res, err := compiler.New(copts...).Compile(ctx, tl.Steps)
	if err != nil {
		return WrapExitError(ExitCommandError, "compile", err)
	}

	out := CompileOutput{
		Seed:        res.Seed,
		Fingerprint: res.Fingerprint,
		Steps:       res.Steps,
		Warnings:    res.Warnings,
		Images:      compiler.ImageURLs(res.Steps),
	}
	if out.Warnings == nil {
		out.Warnings = []compiler.CompileWarning{}
	}

	if opts.Output != "" {
		if err := writeJSONFile(opts.Output, out); err != nil {
			return f.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err))
		}
	}

	if f.JSON() {
		return f.Success(out)
	}

	w := f.Writer
	fmt.Fprintf(w, "✓ Compiled %d step(s) (seed %d, fingerprint %.12s)\n\n", len(out.Steps), out.Seed, out.Fingerprint)
	for _, s := range out.Steps {
		label := s.TemplateID
		if s.Synthetic != timeline.SyntheticNone {
			label = fmt.Sprintf("%s after %s", s.Synthetic, s.TemplateID)
			if s.IsTerminal() {
				label = string(s.Synthetic)
			}
		}
		fmt.Fprintf(w, "  %3d  %-22s %s\n", s.OrderIndex, s.Type, label)
	}
	if len(out.Warnings) > 0 {
		fmt.Fprintf(w, "\n%d warning(s):\n", len(out.Warnings))
		for _, warn := range out.Warnings {
			fmt.Fprintf(w, "  %s\n", warn)
		}
	}
	if opts.Output != "" {
		fmt.Fprintf(w, "\nWrote compiled sequence to %s\n", opts.Output)
	}
	return nil
}

// taskLookup picks the task source: a tasks directory wins over the
// database. The closer is always non-nil.
func taskLookup(opts *RootOptions) (compiler.TaskLookup, io.Closer, error) {
	switch {
	case opts.Config.TasksDir != "":
		return loader.DirLookup{Dir: opts.Config.TasksDir}, nopCloser{}, nil
	case opts.Config.DB != "":
		st, err := store.Open(opts.Config.DB)
		if err != nil {
			return nil, nopCloser{}, err
		}
		return st, st, nil
	default:
		return nil, nopCloser{}, nil
	}
}

// failLoad reports a document error with its loader code.
func failLoad(f *OutputFormatter, err error) error {
	var le *loader.LoadError
	if errors.As(err, &le) {
		return f.Fail(ExitCommandError, le.Code, err.Error())
	}
	return f.Fail(ExitCommandError, ErrCodeGeneric, err.Error())
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
