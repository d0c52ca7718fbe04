package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"tasksync/internal/app"
	"tasksync/internal/auth"
	"tasksync/internal/config"
	"tasksync/internal/exitcode"
)

// PasswordEnv is read when --password is not given.
const PasswordEnv = "TASKSYNC_PASSWORD"

func init() {
	Register(&LoginCmd{})
	Register(&SignupCmd{})
}

// credentials holds the flags shared by login and signup.
type credentials struct {
	email    string
	password string
}

func (c *credentials) register(fs *flag.FlagSet) {
	*c = credentials{}
	fs.StringVar(&c.email, "email", "", "account email")
	fs.StringVar(&c.password, "password", "", "account password (default $"+PasswordEnv+")")
}

func (c *credentials) resolve() (email, password string, err error) {
	email = strings.TrimSpace(c.email)
	if email == "" {
		return "", "", fmt.Errorf("--email is required")
	}
	password = c.password
	if password == "" {
		password = os.Getenv(PasswordEnv)
	}
	if password == "" {
		return "", "", fmt.Errorf("--password or $%s is required", PasswordEnv)
	}
	return email, password, nil
}

// LoginCmd implements the login command.
type LoginCmd struct {
	creds credentials
}

func (c *LoginCmd) Name() string       { return "login" }
func (c *LoginCmd) Aliases() []string  { return []string{"signin"} }
func (c *LoginCmd) Synopsis() string   { return "Sign in with email and password" }
func (c *LoginCmd) Usage() string      { return "tasksync login [common flags] --email <email> [--password <password>]" }
func (c *LoginCmd) NeedsSession() bool { return true }
func (c *LoginCmd) NeedsAuth() bool    { return false }

func (c *LoginCmd) RegisterFlags(fs *flag.FlagSet) { c.creds.register(fs) }

func (c *LoginCmd) Run(ctx context.Context, cfg *config.Config, sess *app.Session, args []string, out, errOut io.Writer) int {
	return authenticate(ctx, cfg, sess, args, &c.creds, out, errOut, sess.SignIn)
}

// SignupCmd implements the signup command.
type SignupCmd struct {
	creds credentials
}

func (c *SignupCmd) Name() string       { return "signup" }
func (c *SignupCmd) Aliases() []string  { return []string{"register"} }
func (c *SignupCmd) Synopsis() string   { return "Create an account and sign in" }
func (c *SignupCmd) Usage() string      { return "tasksync signup [common flags] --email <email> [--password <password>]" }
func (c *SignupCmd) NeedsSession() bool { return true }
func (c *SignupCmd) NeedsAuth() bool    { return false }

func (c *SignupCmd) RegisterFlags(fs *flag.FlagSet) { c.creds.register(fs) }

func (c *SignupCmd) Run(ctx context.Context, cfg *config.Config, sess *app.Session, args []string, out, errOut io.Writer) int {
	return authenticate(ctx, cfg, sess, args, &c.creds, out, errOut, sess.SignUp)
}

type authFunc func(ctx context.Context, email, password string) (*auth.Identity, error)

func authenticate(ctx context.Context, cfg *config.Config, sess *app.Session, args []string, creds *credentials, out, errOut io.Writer, fn authFunc) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}
	email, password, err := creds.resolve()
	if err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.UserError
	}

	if u := sess.User(); u != nil && strings.EqualFold(u.Email, email) {
		if !cfg.Quiet {
			fmt.Fprintf(out, "already logged in as %s\n", u.Email)
		}
		return exitcode.Success
	}

	ctx, cancel := context.WithTimeout(ctx, sess.Timeout)
	defer cancel()
	if _, err := fn(ctx, email, password); err != nil {
		return ReportError(errOut, err)
	}

	printOK(out, cfg.Quiet)
	return exitcode.Success
}
