// Package taskmatrix provides public constants for tools that invoke the
// taskmatrix CLI, such as CI wrappers that branch on its exit status.
package taskmatrix

// Exit codes returned by the taskmatrix CLI.
//
// A failing environment command exits with that command's own status, so
// codes other than these can appear; ExitFailure is used when the status is
// unknown.
const (
	// ExitSuccess indicates the task completed successfully.
	ExitSuccess = 0

	// ExitFailure indicates a runtime failure (a command failed, a push was rejected).
	ExitFailure = 1

	// ExitConfigError indicates a configuration or usage error (invalid
	// taskmatrix.json, unknown task or environment).
	ExitConfigError = 2

	// ExitEnvError indicates an environment error (interpreter not installed,
	// upload credentials missing).
	ExitEnvError = 3
)
