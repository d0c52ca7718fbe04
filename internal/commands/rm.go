package commands

import (
	"context"
	"flag"
	"io"

	"tasksync/internal/app"
	"tasksync/internal/config"
	"tasksync/internal/exitcode"
)

func init() {
	Register(&RmCmd{})
}

// RmCmd implements the rm command.
type RmCmd struct{}

func (c *RmCmd) Name() string       { return "rm" }
func (c *RmCmd) Aliases() []string  { return []string{"delete"} }
func (c *RmCmd) Synopsis() string   { return "Delete a task" }
func (c *RmCmd) Usage() string      { return "tasksync rm [common flags] <ref>" }
func (c *RmCmd) NeedsSession() bool { return true }
func (c *RmCmd) NeedsAuth() bool    { return true }

func (c *RmCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *RmCmd) Run(ctx context.Context, cfg *config.Config, sess *app.Session, args []string, out, errOut io.Writer) int {
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
	if err := sess.Tasks.DeleteTask(ctx, t.ID); err != nil {
		return ReportError(errOut, err)
	}

	printOK(out, cfg.Quiet)
	return exitcode.Success
}
