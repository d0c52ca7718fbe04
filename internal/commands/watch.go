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
	"tasksync/internal/store"
	"tasksync/internal/task"
)

func init() {
	Register(&WatchCmd{})
}

// WatchCmd implements the watch command.
type WatchCmd struct{}

func (c *WatchCmd) Name() string       { return "watch" }
func (c *WatchCmd) Aliases() []string  { return nil }
func (c *WatchCmd) Synopsis() string   { return "Print the task lists on every remote change" }
func (c *WatchCmd) Usage() string      { return "tasksync watch [common flags]" }
func (c *WatchCmd) NeedsSession() bool { return true }
func (c *WatchCmd) NeedsAuth() bool    { return true }

func (c *WatchCmd) RegisterFlags(fs *flag.FlagSet) {}

// Run prints both views, then prints them again for every snapshot until
// ctx is cancelled.
func (c *WatchCmd) Run(ctx context.Context, cfg *config.Config, sess *app.Session, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}

	states := make(chan store.State, 16)
	unsubscribe := sess.Tasks.OnChange(func(st store.State) {
		select {
		case states <- st:
		case <-ctx.Done():
		}
	})
	defer unsubscribe()

	writeSections(out, sess.Tasks.Pending(), sess.Tasks.Completed())
	for {
		select {
		case <-ctx.Done():
			return exitcode.Success
		case st := <-states:
			switch st.Status {
			case store.StatusSucceeded:
				fmt.Fprintln(out)
				writeSections(out, task.Pending(st.Tasks), task.Completed(st.Tasks))
			case store.StatusFailed:
				fmt.Fprintf(errOut, "error: %s\n", st.Error)
			case store.StatusIdle:
				fmt.Fprintln(errOut, NotLoggedInMessage)
				return exitcode.AuthError
			}
		}
	}
}

// writeSections prints the pending and completed views under headers.
func writeSections(w io.Writer, pending, completed []task.Task) {
	output.FormatSectionHeader(w, fmt.Sprintf("Pending (%d)", len(pending)))
	output.FormatTaskList(w, pending, output.PendingRef)
	output.FormatSectionHeader(w, fmt.Sprintf("Completed (%d)", len(completed)))
	output.FormatTaskList(w, completed, output.CompletedRef)
}
