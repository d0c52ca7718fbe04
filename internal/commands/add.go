package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"tasksync/internal/app"
	"tasksync/internal/config"
	"tasksync/internal/exitcode"
)

func init() {
	Register(&AddCmd{})
}

// AddCmd implements the add command.
type AddCmd struct{}

func (c *AddCmd) Name() string       { return "add" }
func (c *AddCmd) Aliases() []string  { return []string{"create"} }
func (c *AddCmd) Synopsis() string   { return "Add a task" }
func (c *AddCmd) Usage() string      { return "tasksync add [common flags] <text...>" }
func (c *AddCmd) NeedsSession() bool { return true }
func (c *AddCmd) NeedsAuth() bool    { return true }

func (c *AddCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *AddCmd) Run(ctx context.Context, cfg *config.Config, sess *app.Session, args []string, out, errOut io.Writer) int {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		fmt.Fprintln(errOut, "error: task text required")
		return exitcode.UserError
	}

	ctx, cancel := context.WithTimeout(ctx, sess.Timeout)
	defer cancel()
	if _, err := sess.Tasks.AddTask(ctx, text); err != nil {
		return ReportError(errOut, err)
	}

	printOK(out, cfg.Quiet)
	return exitcode.Success
}
