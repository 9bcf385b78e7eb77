package environment

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"runtime"
)

// Command is a single shell command line to execute.
type Command struct {
	Line   string
	Dir    string
	Env    []string // Complete environment; nil inherits the process environment
	Stdout io.Writer
	Stderr io.Writer
}

// Result is the outcome of executing a Command.
// Err is set only when the command could not be started or was interrupted;
// a command that ran and exited non-zero has Err == nil and a non-zero ExitCode.
type Result struct {
	ExitCode int
	Err      error
}

// Success reports whether the command ran and exited with status 0.
func (r Result) Success() bool {
	return r.Err == nil && r.ExitCode == 0
}

// Executor runs commands.
type Executor interface {
	Execute(ctx context.Context, cmd Command) Result
}

// ShellExecutor runs commands through the platform shell (sh -c, or cmd /C on Windows).
type ShellExecutor struct{}

// Execute implements Executor.
func (ShellExecutor) Execute(ctx context.Context, cmd Command) Result {
	c := buildShellCommand(ctx, cmd.Line)
	c.Dir = cmd.Dir
	c.Env = cmd.Env
	c.Stdout = cmd.Stdout
	c.Stderr = cmd.Stderr

	err := c.Run()
	if err == nil {
		return Result{}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{ExitCode: -1, Err: ctxErr}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return Result{ExitCode: exitErr.ExitCode()}
	}
	return Result{ExitCode: -1, Err: err}
}

func buildShellCommand(ctx context.Context, line string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "cmd", "/C", line)
	}
	return exec.CommandContext(ctx, "sh", "-c", line)
}
