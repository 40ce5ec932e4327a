package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/stimline/internal/compiler"
	"github.com/roach88/stimline/internal/loader"
)

// NewTaskCommand creates the task command group, which manages the task
// table that task references resolve against.
func NewTaskCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage stored tasks",
	}
	cmd.AddCommand(newTaskAddCommand(rootOpts))
	cmd.AddCommand(newTaskListCommand(rootOpts))
	cmd.AddCommand(newTaskRemoveCommand(rootOpts))
	return cmd
}

func newTaskAddCommand(rootOpts *RootOptions) *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "add <file>...",
		Short: "Store task documents",
		Long: `Store one or more task documents (YAML, JSON or CUE) in --db.

The task id is the document's id, or the file name without extension.
Storing a task with an existing id replaces it.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if id != "" && len(args) > 1 {
				return NewExitError(ExitCommandError, "--id needs exactly one file")
			}
			ctx := cmdContext(cmd)
			f := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			st, err := openStore(f, rootOpts)
			if err != nil {
				return err
			}
			defer st.Close()

			var added []string
			for _, path := range args {
				task, err := loader.LoadTask(path)
				if err != nil {
					return failLoad(f, err)
				}
				if id != "" {
					task.ID = id
				}
				for _, ve := range compiler.Validate(task.Timeline) {
					f.VerboseLog("%s: %s", task.ID, ve)
				}
				if err := st.PutTask(ctx, task); err != nil {
					return f.Fail(ExitCommandError, ErrCodeStore, err.Error())
				}
				rootOpts.logger().Info("task stored", "task_id", task.ID, "steps", len(task.Timeline.Steps))
				added = append(added, task.ID)
			}

			if f.JSON() {
				return f.Success(map[string]any{"added": added})
			}
			for _, a := range added {
				fmt.Fprintf(f.Writer, "✓ stored task %s\n", a)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "override the task id")
	return cmd
}

func newTaskListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List stored tasks",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			st, err := openStore(f, rootOpts)
			if err != nil {
				return err
			}
			defer st.Close()

			tasks, err := st.ListTasks(cmdContext(cmd))
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeStore, err.Error())
			}
			if f.JSON() {
				return f.Success(tasks)
			}
			for _, t := range tasks {
				fmt.Fprintf(f.Writer, "%-20s %3d step(s)  %s\n", t.ID, len(t.Timeline.Steps), t.Name)
			}
			return nil
		},
	}
}

func newTaskRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "rm <id>",
		Short:         "Delete a stored task; unknown ids are ignored",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			st, err := openStore(f, rootOpts)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.DeleteTask(cmdContext(cmd), args[0]); err != nil {
				return f.Fail(ExitCommandError, ErrCodeStore, err.Error())
			}
			if f.JSON() {
				return f.Success(map[string]string{"removed": args[0]})
			}
			fmt.Fprintf(f.Writer, "✓ removed task %s\n", args[0])
			return nil
		},
	}
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
