// Package exitcode defines exit codes for the CLI.
package exitcode

const (
	// Success indicates successful completion.
	Success = 0

	// UserError indicates a user error (bad args, unknown task, invalid input).
	UserError = 1

	// AuthError indicates a missing session or rejected credentials.
	AuthError = 2

	// BackendError indicates a remote store, local storage or network error.
	BackendError = 3
)
