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
	Register(&HelpCmd{})
}

// HelpCmd implements the help command.
type HelpCmd struct{}

func (c *HelpCmd) Name() string       { return "help" }
func (c *HelpCmd) Aliases() []string  { return nil }
func (c *HelpCmd) Synopsis() string   { return "Print usage" }
func (c *HelpCmd) Usage() string      { return "tasksync help" }
func (c *HelpCmd) NeedsSession() bool { return false }
func (c *HelpCmd) NeedsAuth() bool    { return false }

func (c *HelpCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *HelpCmd) Run(ctx context.Context, cfg *config.Config, sess *app.Session, args []string, out, errOut io.Writer) int {
	fmt.Fprint(out, helpText)
	fmt.Fprintln(out, "\nCommands:")
	for _, cmd := range DefaultRegistry.All() {
		line := fmt.Sprintf("  %-10s %s", cmd.Name(), cmd.Synopsis())
		if aliases := cmd.Aliases(); len(aliases) > 0 {
			line += " (alias: " + strings.Join(aliases, ", ") + ")"
		}
		fmt.Fprintln(out, line)
	}
	return exitcode.Success
}

const helpText = `Usage:
  tasksync                                    List pending tasks
  tasksync list [common flags] [--all]        List pending tasks (and completed with --all)
  tasksync completed [common flags]           List completed tasks
  tasksync show [common flags] <ref>
  tasksync add [common flags] <text...>
  tasksync edit [common flags] [edit flags] <ref>
  tasksync done [common flags] <ref>
  tasksync undo [common flags] <ref>
  tasksync toggle [common flags] <ref>
  tasksync rm [common flags] <ref>
  tasksync watch [common flags]
  tasksync login [common flags] --email <email> [--password <password>]
  tasksync signup [common flags] --email <email> [--password <password>]
  tasksync logout [common flags]
  tasksync status [common flags]
  tasksync init [common flags]
  tasksync help
  tasksync version

Task references:
  <n>     n-th pending task, as numbered by list
  c<n>    n-th completed task, as numbered by completed

Edit flags:
  --text <text>            Replace the task text
  --due <date>             Set the due date (2006-01-02, "2006-01-02 15:04" or RFC 3339)
                           Times without an offset are UTC
  --clear-due              Remove the due date
  --lat <deg> --lon <deg>  Set the coordinates
  --address <text>         Set the address
  --street, --number, --city, --region, --postal-code, --country <text>
                           Set the address from its components
  --clear-location         Remove coordinates and address

Common flags:
  --config <dir>   Override config directory
  --quiet          Suppress informational output
  --debug          Print debug logs to stderr

The password may also be given in $TASKSYNC_PASSWORD.
`
