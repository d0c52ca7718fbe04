package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"tasksync/internal/app"
	"tasksync/internal/config"
	"tasksync/internal/exitcode"
	"tasksync/internal/store"
)

func init() {
	Register(&StatusCmd{})
}

// StatusCmd implements the status command.
type StatusCmd struct{}

func (c *StatusCmd) Name() string       { return "status" }
func (c *StatusCmd) Aliases() []string  { return []string{"whoami"} }
func (c *StatusCmd) Synopsis() string   { return "Show the signed-in user and backend" }
func (c *StatusCmd) Usage() string      { return "tasksync status [common flags]" }
func (c *StatusCmd) NeedsSession() bool { return true }
func (c *StatusCmd) NeedsAuth() bool    { return false }

func (c *StatusCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *StatusCmd) Run(ctx context.Context, cfg *config.Config, sess *app.Session, args []string, out, errOut io.Writer) int {
	field := func(name, value string) {
		fmt.Fprintf(out, "%-10s %s\n", name+":", value)
	}

	u := sess.User()
	if u == nil {
		field("user", "(not logged in)")
	} else {
		field("user", fmt.Sprintf("%s (%s)", u.Email, u.UID))
	}
	if prev := sess.CachedUser(); prev != "" {
		field("previous", prev)
	}
	if s := cfg.Settings; s != nil {
		field("auth", s.Auth.Provider)
		remote := s.Remote.Backend
		if remote == config.BackendRedis {
			remote += " (" + s.Remote.RedisURL + ")"
		}
		field("remote", remote)
	}
	if u == nil {
		return exitcode.Success
	}

	ctx, cancel := context.WithTimeout(ctx, sess.Timeout)
	defer cancel()
	if err := sess.Tasks.WaitSettled(ctx); err != nil {
		return ReportError(errOut, err)
	}
	st := sess.Tasks.State()
	if st.Status == store.StatusFailed {
		field("tasks", "error: "+st.Error)
		return exitcode.BackendError
	}
	field("tasks", fmt.Sprintf("%d pending, %d completed", len(sess.Tasks.Pending()), len(sess.Tasks.Completed())))
	return exitcode.Success
}
