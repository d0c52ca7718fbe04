package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"tasksync/internal/app"
	"tasksync/internal/config"
	"tasksync/internal/exitcode"
)

func init() {
	Register(&InitCmd{})
}

// InitCmd implements the init command.
type InitCmd struct{}

func (c *InitCmd) Name() string       { return "init" }
func (c *InitCmd) Aliases() []string  { return nil }
func (c *InitCmd) Synopsis() string   { return "Write a default config.yaml" }
func (c *InitCmd) Usage() string      { return "tasksync init [common flags]" }
func (c *InitCmd) NeedsSession() bool { return false }
func (c *InitCmd) NeedsAuth() bool    { return false }

func (c *InitCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *InitCmd) Run(ctx context.Context, cfg *config.Config, sess *app.Session, args []string, out, errOut io.Writer) int {
	if err := cfg.WriteDefaultSettings(); err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		if errors.Is(err, config.ErrSettingsExist) {
			return exitcode.UserError
		}
		return exitcode.BackendError
	}
	if !cfg.Quiet {
		fmt.Fprintf(out, "wrote %s\n", cfg.SettingsPath())
	}
	return exitcode.Success
}
