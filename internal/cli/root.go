package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roach88/stimline/internal/logging"
)

// RootOptions holds global flags and the resolved configuration.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string

	Config Config
	Logger *slog.Logger

	closer io.Closer
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// logger returns the configured logger, or one that discards everything
// when a command runs without the root's setup.
func (o *RootOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}

// NewRootCommand creates the stimline command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "stimline",
		Short: "stimline - stimulus timeline runner",
		Long: `Compile authored stimulus timelines into executable sequences,
run scripted sessions against them and export the recorded results.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			cfg, err := LoadConfig(v, opts.ConfigFile)
			if err != nil {
				return WrapExitError(ExitCommandError, "configuration", err)
			}
			opts.Config = cfg
			opts.Logger, opts.closer = logging.Setup(logging.Options{
				Verbose:    opts.Verbose,
				File:       cfg.Log.File,
				MaxSizeMB:  cfg.Log.MaxSizeMB,
				MaxBackups: cfg.Log.MaxBackups,
				Writer:     cmd.ErrOrStderr(),
			})
			opts.Logger.Debug("configuration loaded",
				"config_file", opts.ConfigFile,
				"db", cfg.DB,
				"tasks_dir", cfg.TasksDir,
				"seed_set", cfg.SeedSet,
			)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.closer != nil {
				return opts.closer.Close()
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.ConfigFile, "config", "", "config file (YAML, JSON or TOML)")
	flags.String("db", "", "path to SQLite database")
	flags.Uint64("seed", 0, "trial shuffle seed")
	flags.String("tasks-dir", "", "directory of task files for task references")
	flags.String("log-file", "", "also write logs to this rotated file")

	for key, flag := range map[string]string{
		"db":        "db",
		"seed":      "seed",
		"tasks_dir": "tasks-dir",
		"log.file":  "log-file",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", flag, err))
		}
	}

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewRunsCommand(opts))
	cmd.AddCommand(NewTaskCommand(opts))

	return cmd
}
