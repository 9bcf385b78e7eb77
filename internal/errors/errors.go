// Package errors provides structured error types and exit codes for taskmatrix.
package errors

import (
	"errors"
	"fmt"

	"github.com/AndreyAkinshin/taskmatrix/pkg/taskmatrix"
)

// Exit codes returned by the CLI. They mirror the public constants.
const (
	ExitSuccess          = taskmatrix.ExitSuccess     // Success
	ExitRuntimeError     = taskmatrix.ExitFailure     // Runtime error (command failed, etc.)
	ExitConfigError      = taskmatrix.ExitConfigError // Configuration error (invalid config, unknown task, etc.)
	ExitEnvironmentError = taskmatrix.ExitEnvError    // Environment error (interpreter missing, credentials absent, etc.)
)

// ErrorKind represents the type of error.
type ErrorKind int

const (
	KindRuntime ErrorKind = iota
	KindConfig
	KindNotFound
	KindValidation
	KindEnvironment
)

// TaskError is the base error type for taskmatrix.
type TaskError struct {
	Kind        ErrorKind
	Message     string
	Environment string // Environment name if applicable
	Command     string // Command string if applicable
	Cause       error  // Underlying error
}

func (e *TaskError) Error() string {
	if e.Environment != "" && e.Command != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Environment, e.Command, e.Message)
	}
	if e.Environment != "" {
		return fmt.Sprintf("[%s] %s", e.Environment, e.Message)
	}
	return e.Message
}

func (e *TaskError) Unwrap() error {
	return e.Cause
}

// ExitCode returns the appropriate exit code for this error.
func (e *TaskError) ExitCode() int {
	switch e.Kind {
	case KindConfig, KindValidation:
		return ExitConfigError
	case KindEnvironment:
		return ExitEnvironmentError
	default:
		return ExitRuntimeError
	}
}

// New creates a new runtime error.
func New(message string) *TaskError {
	return &TaskError{
		Kind:    KindRuntime,
		Message: message,
	}
}

// Newf creates a new runtime error with formatting.
func Newf(format string, args ...interface{}) *TaskError {
	return New(fmt.Sprintf(format, args...))
}

// Config creates a new configuration error.
func Config(message string) *TaskError {
	return &TaskError{
		Kind:    KindConfig,
		Message: message,
	}
}

// Configf creates a new configuration error with formatting.
func Configf(format string, args ...interface{}) *TaskError {
	return Config(fmt.Sprintf(format, args...))
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) *TaskError {
	return &TaskError{
		Kind:    KindRuntime,
		Message: message,
		Cause:   err,
	}
}

// NotFound creates a not found error.
func NotFound(what, name string) *TaskError {
	return &TaskError{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s not found: %s", what, name),
	}
}

// UnknownEnvironmentError is returned when a name does not exist in the matrix.
type UnknownEnvironmentError struct {
	Name string
}

func (e *UnknownEnvironmentError) Error() string {
	return fmt.Sprintf("unknown environment %q", e.Name)
}

// ExitCode implements exitCoder.
func (e *UnknownEnvironmentError) ExitCode() int { return ExitConfigError }

// InterpreterMissingError is returned when an environment's interpreter is not on PATH.
type InterpreterMissingError struct {
	Name        string
	Interpreter string
}

func (e *InterpreterMissingError) Error() string {
	return fmt.Sprintf("[%s] interpreter %s not found", e.Name, e.Interpreter)
}

// ExitCode implements exitCoder.
func (e *InterpreterMissingError) ExitCode() int { return ExitEnvironmentError }

// EnvironmentFailedError is returned when a command inside an environment exits non-zero.
// ExitCode carries the command's own exit status so the CLI can propagate it.
type EnvironmentFailedError struct {
	Name    string
	Command string
	Status  int
	Cause   error
}

func (e *EnvironmentFailedError) Error() string {
	return fmt.Sprintf("[%s] %s: exited with code %d", e.Name, e.Command, e.Status)
}

func (e *EnvironmentFailedError) Unwrap() error {
	return e.Cause
}

// ExitCode returns the failing command's exit status (never 0).
func (e *EnvironmentFailedError) ExitCode() int {
	if e.Status <= 0 {
		return ExitRuntimeError
	}
	return e.Status
}

// CredentialsMissingError is returned by release when upload credentials are absent.
type CredentialsMissingError struct {
	Variables []string
}

func (e *CredentialsMissingError) Error() string {
	return fmt.Sprintf("upload credentials missing: set %v", e.Variables)
}

// ExitCode implements exitCoder.
func (e *CredentialsMissingError) ExitCode() int { return ExitEnvironmentError }

// TagAlreadyExistsError is returned by tag when the computed tag is already present.
type TagAlreadyExistsError struct {
	Tag string
}

func (e *TagAlreadyExistsError) Error() string {
	return fmt.Sprintf("tag %q already exists", e.Tag)
}

// ExitCode implements exitCoder.
func (e *TagAlreadyExistsError) ExitCode() int { return ExitRuntimeError }

type exitCoder interface {
	ExitCode() int
}

// GetExitCode returns the exit code for an error.
// Joined errors (from matrix runs) report the exit code of the first member.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ec exitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return ExitRuntimeError
}

// IsUnknownEnvironment reports whether err is or wraps an UnknownEnvironmentError.
func IsUnknownEnvironment(err error) bool {
	var target *UnknownEnvironmentError
	return errors.As(err, &target)
}

// IsInterpreterMissing reports whether err is or wraps an InterpreterMissingError.
func IsInterpreterMissing(err error) bool {
	var target *InterpreterMissingError
	return errors.As(err, &target)
}

// IsEnvironmentFailed reports whether err is or wraps an EnvironmentFailedError.
func IsEnvironmentFailed(err error) bool {
	var target *EnvironmentFailedError
	return errors.As(err, &target)
}

// IsCredentialsMissing reports whether err is or wraps a CredentialsMissingError.
func IsCredentialsMissing(err error) bool {
	var target *CredentialsMissingError
	return errors.As(err, &target)
}

// IsTagAlreadyExists reports whether err is or wraps a TagAlreadyExistsError.
func IsTagAlreadyExists(err error) bool {
	var target *TagAlreadyExistsError
	return errors.As(err, &target)
}
