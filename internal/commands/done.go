package commands

import (
	"context"
	"flag"
	"io"

	"tasksync/internal/app"
	"tasksync/internal/config"
	"tasksync/internal/exitcode"
	"tasksync/internal/task"
)

func init() {
	Register(&DoneCmd{})
	Register(&UndoCmd{})
	Register(&ToggleCmd{})
}

// DoneCmd implements the done command.
type DoneCmd struct{}

func (c *DoneCmd) Name() string       { return "done" }
func (c *DoneCmd) Aliases() []string  { return []string{"complete"} }
func (c *DoneCmd) Synopsis() string   { return "Mark a task completed" }
func (c *DoneCmd) Usage() string      { return "tasksync done [common flags] <ref>" }
func (c *DoneCmd) NeedsSession() bool { return true }
func (c *DoneCmd) NeedsAuth() bool    { return true }

func (c *DoneCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *DoneCmd) Run(ctx context.Context, cfg *config.Config, sess *app.Session, args []string, out, errOut io.Writer) int {
	return updateRef(ctx, cfg, sess, args, out, errOut, func(ctx context.Context, t task.Task) error {
		return sess.Tasks.UpdateTask(ctx, t.ID, task.Patch{Completed: task.Value(true)})
	})
}

// UndoCmd implements the undo command.
type UndoCmd struct{}

func (c *UndoCmd) Name() string       { return "undo" }
func (c *UndoCmd) Aliases() []string  { return []string{"reopen"} }
func (c *UndoCmd) Synopsis() string   { return "Mark a task pending again" }
func (c *UndoCmd) Usage() string      { return "tasksync undo [common flags] <ref>" }
func (c *UndoCmd) NeedsSession() bool { return true }
func (c *UndoCmd) NeedsAuth() bool    { return true }

func (c *UndoCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *UndoCmd) Run(ctx context.Context, cfg *config.Config, sess *app.Session, args []string, out, errOut io.Writer) int {
	return updateRef(ctx, cfg, sess, args, out, errOut, func(ctx context.Context, t task.Task) error {
		return sess.Tasks.UpdateTask(ctx, t.ID, task.Patch{Completed: task.Value(false)})
	})
}

// ToggleCmd implements the toggle command.
type ToggleCmd struct{}

func (c *ToggleCmd) Name() string       { return "toggle" }
func (c *ToggleCmd) Aliases() []string  { return nil }
func (c *ToggleCmd) Synopsis() string   { return "Flip the completion state of a task" }
func (c *ToggleCmd) Usage() string      { return "tasksync toggle [common flags] <ref>" }
func (c *ToggleCmd) NeedsSession() bool { return true }
func (c *ToggleCmd) NeedsAuth() bool    { return true }

func (c *ToggleCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *ToggleCmd) Run(ctx context.Context, cfg *config.Config, sess *app.Session, args []string, out, errOut io.Writer) int {
	return updateRef(ctx, cfg, sess, args, out, errOut, func(ctx context.Context, t task.Task) error {
		return sess.Tasks.ToggleComplete(ctx, t.ID)
	})
}

// updateRef resolves the referenced task and runs fn on it under the
// session timeout.
func updateRef(ctx context.Context, cfg *config.Config, sess *app.Session, args []string, out, errOut io.Writer, fn func(context.Context, task.Task) error) int {
	ref, err := ParseTaskRef(args)
	if err != nil {
		return ReportError(errOut, err)
	}
	t, err := ResolveTask(sess.Tasks, ref)
	if err != nil {
		return ReportError(errOut, err)
	}
	ctx, cancel := context.WithTimeout(ctx, sess.Timeout)
	defer cancel()
	if err := fn(ctx, t); err != nil {
		return ReportError(errOut, err)
	}
	printOK(out, cfg.Quiet)
	return exitcode.Success
}
