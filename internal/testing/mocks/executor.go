// Package mocks provides shared test doubles for taskmatrix packages.
package mocks

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/AndreyAkinshin/taskmatrix/internal/environment"
)

// Executor implements environment.Executor for testing.
// It records every command and answers with configured results.
// Use NewExecutor() to create instances with a fluent builder API.
type Executor struct {
	mu       sync.Mutex
	commands []environment.Command
	rules    []rule

	// ExecFunc, when set, is called after a command is recorded and overrides rules.
	ExecFunc func(ctx context.Context, cmd environment.Command) environment.Result
}

type rule struct {
	substr string
	result environment.Result
	stdout string
}

// NewExecutor creates a mock executor where every command succeeds.
func NewExecutor() *Executor {
	return &Executor{}
}

// FailOn makes commands containing substr exit with code.
func (m *Executor) FailOn(substr string, code int) *Executor {
	m.rules = append(m.rules, rule{substr: substr, result: environment.Result{ExitCode: code}})
	return m
}

// ErrorOn makes commands containing substr fail to start with err.
func (m *Executor) ErrorOn(substr string, err error) *Executor {
	m.rules = append(m.rules, rule{substr: substr, result: environment.Result{ExitCode: -1, Err: err}})
	return m
}

// OutputOn makes commands containing substr write stdout before succeeding.
func (m *Executor) OutputOn(substr, stdout string) *Executor {
	m.rules = append(m.rules, rule{substr: substr, stdout: stdout})
	return m
}

// WithExecFunc sets the function called by Execute.
func (m *Executor) WithExecFunc(fn func(ctx context.Context, cmd environment.Command) environment.Result) *Executor {
	m.ExecFunc = fn
	return m
}

// Execute implements environment.Executor.
func (m *Executor) Execute(ctx context.Context, cmd environment.Command) environment.Result {
	m.mu.Lock()
	m.commands = append(m.commands, cmd)
	rules := m.rules
	fn := m.ExecFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, cmd)
	}

	// First matching rule wins.
	for _, r := range rules {
		if !strings.Contains(cmd.Line, r.substr) {
			continue
		}
		if r.stdout != "" && cmd.Stdout != nil {
			_, _ = io.WriteString(cmd.Stdout, r.stdout)
		}
		return r.result
	}
	return environment.Result{}
}

// Commands returns a copy of the recorded commands in execution order.
func (m *Executor) Commands() []environment.Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]environment.Command(nil), m.commands...)
}

// Lines returns the recorded command lines in execution order.
func (m *Executor) Lines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	lines := make([]string, len(m.commands))
	for i, c := range m.commands {
		lines[i] = c.Line
	}
	return lines
}

// Ran reports whether any recorded command line contains substr.
func (m *Executor) Ran(substr string) bool {
	for _, line := range m.Lines() {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

// Reset clears recorded commands, keeping rules.
func (m *Executor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = nil
}

// LookPath is a LookPathFunc that finds every executable except the listed ones.
func LookPath(missing ...string) environment.LookPathFunc {
	return func(file string) (string, error) {
		for _, m := range missing {
			if m == file {
				return "", &lookPathError{name: file}
			}
		}
		return "/usr/bin/" + file, nil
	}
}

type lookPathError struct{ name string }

func (e *lookPathError) Error() string {
	return "exec: " + e.name + ": executable file not found in $PATH"
}
