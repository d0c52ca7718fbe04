package commands

import (
	"context"
	"flag"
	"io"

	"tasksync/internal/app"
	"tasksync/internal/config"
	"tasksync/internal/exitcode"
	"tasksync/internal/output"
)

func init() {
	Register(&ShowCmd{})
}

// ShowCmd implements the show command.
type ShowCmd struct{}

func (c *ShowCmd) Name() string       { return "show" }
func (c *ShowCmd) Aliases() []string  { return []string{"info"} }
func (c *ShowCmd) Synopsis() string   { return "Show every field of a task" }
func (c *ShowCmd) Usage() string      { return "tasksync show [common flags] <ref>" }
func (c *ShowCmd) NeedsSession() bool { return true }
func (c *ShowCmd) NeedsAuth() bool    { return true }

func (c *ShowCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *ShowCmd) Run(ctx context.Context, cfg *config.Config, sess *app.Session, args []string, out, errOut io.Writer) int {
	ref, err := ParseTaskRef(args)
	if err != nil {
		return ReportError(errOut, err)
	}
	t, err := ResolveTask(sess.Tasks, ref)
	if err != nil {
		return ReportError(errOut, err)
	}
	output.FormatTaskDetail(out, t)
	return exitcode.Success
}
