package commands

import (
	"errors"
	"fmt"
	"io"

	"tasksync/internal/auth"
	"tasksync/internal/exitcode"
	"tasksync/internal/geo"
	"tasksync/internal/task"
)

// NotLoggedInMessage is printed when a command needs a signed-in user.
const NotLoggedInMessage = "error: not logged in (run: tasksync login)"

// ReportError prints err to errOut and returns the matching exit code.
func ReportError(errOut io.Writer, err error) int {
	switch {
	case errors.Is(err, task.ErrNotAuthenticated):
		fmt.Fprintln(errOut, NotLoggedInMessage)
		return exitcode.AuthError
	case errors.Is(err, auth.ErrRejected):
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.AuthError
	case errors.Is(err, task.ErrEmptyText),
		errors.Is(err, task.ErrInvalidPatch),
		errors.Is(err, task.ErrNotFound),
		errors.Is(err, geo.ErrLocationUnavailable),
		errors.Is(err, ErrTaskRefRequired),
		errors.Is(err, ErrInvalidTaskRef):
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.UserError
	default:
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.BackendError
	}
}

func printOK(out io.Writer, quiet bool) {
	if !quiet {
		fmt.Fprintln(out, "ok")
	}
}
