// Package exitcode defines exit codes for the CLI.
package exitcode

const (
	// Success indicates successful completion.
	Success = 0

	// UserError indicates a user error (bad args, not found, ambiguous, nothing selected).
	UserError = 1

	// AuthError indicates an auth/config error.
	AuthError = 2

	// BackendError indicates an Asana API or network error.
	BackendError = 3

	// RenderError indicates the PDF could not be produced or written.
	RenderError = 4
)
