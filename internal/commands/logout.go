package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"tasksync/internal/app"
	"tasksync/internal/config"
	"tasksync/internal/exitcode"
)

func init() {
	Register(&LogoutCmd{})
}

// LogoutCmd implements the logout command.
type LogoutCmd struct{}

func (c *LogoutCmd) Name() string       { return "logout" }
func (c *LogoutCmd) Aliases() []string  { return []string{"signout"} }
func (c *LogoutCmd) Synopsis() string   { return "Sign out and forget the session" }
func (c *LogoutCmd) Usage() string      { return "tasksync logout [common flags]" }
func (c *LogoutCmd) NeedsSession() bool { return true }
func (c *LogoutCmd) NeedsAuth() bool    { return false }

func (c *LogoutCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *LogoutCmd) Run(ctx context.Context, cfg *config.Config, sess *app.Session, args []string, out, errOut io.Writer) int {
	// A session file can outlive a failed restore; signing out removes it.
	if sess.User() == nil && !cfg.HasAuthSession() {
		if !cfg.Quiet {
			fmt.Fprintln(out, "not logged in")
		}
		return exitcode.Success
	}

	ctx, cancel := context.WithTimeout(ctx, sess.Timeout)
	defer cancel()
	if err := sess.SignOut(ctx); err != nil {
		return ReportError(errOut, err)
	}

	printOK(out, cfg.Quiet)
	return exitcode.Success
}
