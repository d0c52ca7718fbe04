package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"tasksync/internal/app"
	"tasksync/internal/config"
	"tasksync/internal/exitcode"
	"tasksync/internal/output"
)

func init() {
	Register(&ListCmd{})
	Register(&CompletedCmd{})
}

// ListCmd implements the list command.
type ListCmd struct {
	all bool
}

func (c *ListCmd) Name() string       { return "list" }
func (c *ListCmd) Aliases() []string  { return []string{"ls"} }
func (c *ListCmd) Synopsis() string   { return "List pending tasks" }
func (c *ListCmd) Usage() string      { return "tasksync list [common flags] [--all]" }
func (c *ListCmd) NeedsSession() bool { return true }
func (c *ListCmd) NeedsAuth() bool    { return true }

func (c *ListCmd) RegisterFlags(fs *flag.FlagSet) {
	c.all = false
	fs.BoolVar(&c.all, "all", false, "also list completed tasks")
}

func (c *ListCmd) Run(ctx context.Context, cfg *config.Config, sess *app.Session, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}

	pending := sess.Tasks.Pending()
	if !c.all {
		if len(pending) == 0 {
			if !cfg.Quiet {
				fmt.Fprintln(out, "no tasks found")
			}
			return exitcode.Success
		}
		output.FormatTaskList(out, pending, output.PendingRef)
		return exitcode.Success
	}

	completed := sess.Tasks.Completed()
	if len(pending)+len(completed) == 0 {
		if !cfg.Quiet {
			fmt.Fprintln(out, "no tasks found")
		}
		return exitcode.Success
	}
	writeSections(out, pending, completed)
	return exitcode.Success
}

// CompletedCmd implements the completed command.
type CompletedCmd struct{}

func (c *CompletedCmd) Name() string       { return "completed" }
func (c *CompletedCmd) Aliases() []string  { return nil }
func (c *CompletedCmd) Synopsis() string   { return "List completed tasks" }
func (c *CompletedCmd) Usage() string      { return "tasksync completed [common flags]" }
func (c *CompletedCmd) NeedsSession() bool { return true }
func (c *CompletedCmd) NeedsAuth() bool    { return true }

func (c *CompletedCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *CompletedCmd) Run(ctx context.Context, cfg *config.Config, sess *app.Session, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}
	completed := sess.Tasks.Completed()
	if len(completed) == 0 {
		if !cfg.Quiet {
			fmt.Fprintln(out, "no completed tasks")
		}
		return exitcode.Success
	}
	output.FormatTaskList(out, completed, output.CompletedRef)
	return exitcode.Success
}
