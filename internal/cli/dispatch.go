// Package cli parses the command line and runs commands against a session.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"tasksync/internal/app"
	"tasksync/internal/commands"
	"tasksync/internal/config"
	"tasksync/internal/exitcode"
	"tasksync/internal/logging"
	"tasksync/internal/store"
)

// SessionFactory creates a Session from config.
// Used to inject the auth provider and remote store during dispatch.
// The dispatcher starts the returned session and closes it after the command.
type SessionFactory func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app.Session, error)

// Dispatcher handles command-line parsing and dispatch.
type Dispatcher struct {
	registry *commands.Registry
	factory  SessionFactory
}

// NewDispatcher creates a new dispatcher with the given registry and session
// factory. A nil factory uses app.Open.
func NewDispatcher(registry *commands.Registry, factory SessionFactory) *Dispatcher {
	if factory == nil {
		factory = app.Open
	}
	return &Dispatcher{
		registry: registry,
		factory:  factory,
	}
}

// Run parses arguments and dispatches to the appropriate command.
// Returns the exit code.
func (d *Dispatcher) Run(ctx context.Context, args []string, out, errOut io.Writer) int {
	// No args -> dispatch to "list" command with no args
	if len(args) == 0 {
		return d.dispatch(ctx, "list", nil, out, errOut)
	}

	cmdName := args[0]

	// Flags require a command
	if strings.HasPrefix(cmdName, "-") {
		fmt.Fprintf(errOut, "error: unknown command: %s\n", cmdName)
		return exitcode.UserError
	}

	return d.dispatch(ctx, cmdName, args[1:], out, errOut)
}

func (d *Dispatcher) dispatch(ctx context.Context, cmdName string, args []string, out, errOut io.Writer) int {
	cmd, ok := d.registry.Find(cmdName)
	if !ok {
		fmt.Fprintf(errOut, "error: unknown command: %s\n", cmdName)
		return exitcode.UserError
	}
	return d.dispatchCommand(ctx, cmd, args, out, errOut)
}

func (d *Dispatcher) dispatchCommand(ctx context.Context, cmd commands.Command, args []string, out, errOut io.Writer) int {
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	fs.SetOutput(io.Discard) // We handle errors ourselves

	// Common flags
	var configDir string
	var quiet bool
	var debug bool

	fs.StringVar(&configDir, "config", "", "")
	fs.BoolVar(&quiet, "quiet", false, "")
	fs.BoolVar(&debug, "debug", false, "")

	cmd.RegisterFlags(fs)

	if err := fs.Parse(args); err != nil {
		return reportFlagError(errOut, err)
	}

	// Check if first positional arg starts with - (should have been parsed as flag)
	positionalArgs := fs.Args()
	if len(positionalArgs) > 0 && strings.HasPrefix(positionalArgs[0], "-") {
		fmt.Fprintf(errOut, "error: unknown flag: %s\n", positionalArgs[0])
		return exitcode.UserError
	}

	cfg, err := config.New(configDir)
	if err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.UserError
	}
	cfg.Quiet = quiet
	cfg.Debug = debug

	if !cmd.NeedsSession() {
		return cmd.Run(ctx, cfg, nil, positionalArgs, out, errOut)
	}

	settings, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.UserError
	}
	logger, err := logging.New(errOut, logging.Options{
		Debug:  cfg.Debug,
		Level:  settings.Log.Level,
		Format: settings.Log.Format,
	})
	if err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.UserError
	}

	sess, code, ok := d.openSession(ctx, cfg, logger, errOut)
	if !ok {
		return code
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Debug("closing session", "err", err)
		}
	}()

	if code, ok := awaitSession(ctx, cmd, sess, errOut); !ok {
		return code
	}
	return cmd.Run(ctx, cfg, sess, positionalArgs, out, errOut)
}

// openSession builds and starts a session.
func (d *Dispatcher) openSession(ctx context.Context, cfg *config.Config, logger *slog.Logger, errOut io.Writer) (*app.Session, int, bool) {
	sess, err := d.factory(ctx, cfg, logger)
	if err != nil {
		var backendErr *app.BackendError
		if errors.As(err, &backendErr) {
			fmt.Fprintf(errOut, "error: backend error: %s\n", err)
			return nil, exitcode.BackendError, false
		}
		fmt.Fprintf(errOut, "error: auth error: %s\n", err)
		return nil, exitcode.AuthError, false
	}
	if err := sess.Start(ctx); err != nil {
		_ = sess.Close()
		fmt.Fprintf(errOut, "error: %s\n", err)
		return nil, exitcode.BackendError, false
	}
	return sess, exitcode.Success, true
}

// awaitSession waits until the provider has reported an identity and, for
// commands that need a user, until the first task snapshot has arrived.
func awaitSession(ctx context.Context, cmd commands.Command, sess *app.Session, errOut io.Writer) (int, bool) {
	ctx, cancel := context.WithTimeout(ctx, sess.Timeout)
	defer cancel()

	if err := sess.WaitAuthDetermined(ctx); err != nil {
		fmt.Fprintf(errOut, "error: auth error: session not restored: %s\n", err)
		return exitcode.AuthError, false
	}
	if !cmd.NeedsAuth() {
		return exitcode.Success, true
	}
	if sess.User() == nil {
		fmt.Fprintln(errOut, commands.NotLoggedInMessage)
		return exitcode.AuthError, false
	}
	if err := sess.Tasks.WaitSettled(ctx); err != nil {
		fmt.Fprintf(errOut, "error: backend error: tasks not loaded: %s\n", err)
		return exitcode.BackendError, false
	}
	if st := sess.Tasks.State(); st.Status == store.StatusFailed {
		fmt.Fprintf(errOut, "error: %s\n", st.Error)
		return exitcode.BackendError, false
	}
	return exitcode.Success, true
}

func reportFlagError(errOut io.Writer, err error) int {
	errStr := err.Error()

	if flagName, ok := strings.CutPrefix(errStr, "flag needs an argument: "); ok {
		fmt.Fprintf(errOut, "error: flag needs an argument: %s\n", flagName)
		return exitcode.UserError
	}

	if flagName, ok := strings.CutPrefix(errStr, "flag provided but not defined: "); ok {
		fmt.Fprintf(errOut, "error: unknown flag: %s\n", flagName)
		return exitcode.UserError
	}

	fmt.Fprintf(errOut, "error: %s\n", errStr)
	return exitcode.UserError
}
