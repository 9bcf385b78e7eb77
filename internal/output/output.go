// Package output provides formatted output utilities for the CLI.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Writer handles CLI output formatting.
// It is safe for concurrent use; parallel matrix runs share one Writer.
type Writer struct {
	mu      sync.Mutex
	out     io.Writer
	err     io.Writer
	color   bool
	quiet   bool
	verbose bool
}

// New creates a new Writer with default settings.
func New() *Writer {
	return &Writer{
		out:   os.Stdout,
		err:   os.Stderr,
		color: isTerminal(os.Stdout),
	}
}

// NewWithWriters creates a Writer with custom io.Writers (for testing).
func NewWithWriters(out, err io.Writer, color bool) *Writer {
	return &Writer{
		out:   out,
		err:   err,
		color: color,
	}
}

// Fork returns a Writer with the same settings that writes to out and err.
func (w *Writer) Fork(out, err io.Writer) *Writer {
	return &Writer{
		out:     out,
		err:     err,
		color:   w.color,
		quiet:   w.quiet,
		verbose: w.verbose,
	}
}

// SetQuiet enables or disables quiet mode.
func (w *Writer) SetQuiet(quiet bool) {
	w.quiet = quiet
}

// SetVerbose enables or disables verbose mode.
func (w *Writer) SetVerbose(verbose bool) {
	w.verbose = verbose
}

// IsVerbose reports whether verbose mode is on.
func (w *Writer) IsVerbose() bool {
	return w.verbose
}

// Stdout returns the writer used for standard output.
// Command output is streamed here verbatim.
func (w *Writer) Stdout() io.Writer {
	return w.out
}

// Stderr returns the writer used for diagnostics.
func (w *Writer) Stderr() io.Writer {
	return w.err
}

// Print writes to stdout.
func (w *Writer) Print(format string, args ...interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, format, args...)
}

// Println writes a line to stdout.
func (w *Writer) Println(format string, args ...interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, format+"\n", args...)
}

// Error writes to stderr.
func (w *Writer) Error(format string, args ...interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.err, format, args...)
}

// Errorln writes a line to stderr.
func (w *Writer) Errorln(format string, args ...interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.err, format+"\n", args...)
}

// Info prints an info message (skipped in quiet mode).
func (w *Writer) Info(format string, args ...interface{}) {
	if w.quiet {
		return
	}
	w.Println(format, args...)
}

// Debug prints a message only in verbose mode.
func (w *Writer) Debug(format string, args ...interface{}) {
	if !w.verbose {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if w.color {
		w.Errorln("%s%s%s", dim, msg, reset)
	} else {
		w.Errorln("%s", msg)
	}
}

// Success prints a success message.
func (w *Writer) Success(format string, args ...interface{}) {
	if w.color {
		w.Println(green+format+reset, args...)
	} else {
		w.Println(format, args...)
	}
}

// Warning prints a warning message.
func (w *Writer) Warning(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if w.color {
		w.Errorln("%swarning:%s %s", yellow, reset, msg)
	} else {
		w.Errorln("warning: %s", msg)
	}
}

// ErrorPrefix prints an error message with the taskmatrix prefix to stderr.
func (w *Writer) ErrorPrefix(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if w.color {
		w.Errorln("%staskmatrix:%s %s", red, reset, msg)
	} else {
		w.Errorln("taskmatrix: %s", msg)
	}
}

// EnvStart prints the header that precedes an environment's output.
func (w *Writer) EnvStart(env, phase string) {
	if w.quiet {
		return
	}
	label := fmt.Sprintf("─── [%s] %s ───", env, phase)
	if w.color {
		w.Println("\n%s%s%s", bold+cyan, label, reset)
	} else {
		w.Println("\n%s", label)
	}
}

// EnvCommand echoes a command before it runs, e.g. "py38 run-test: pytest".
func (w *Writer) EnvCommand(env, phase, command string) {
	if w.quiet {
		return
	}
	if w.color {
		w.Println("%s%s %s:%s %s", dim, env, phase, reset, command)
	} else {
		w.Println("%s %s: %s", env, phase, command)
	}
}

// EnvSuccess prints environment success.
func (w *Writer) EnvSuccess(env string) {
	if w.quiet {
		return
	}
	if w.color {
		w.Println("%s[%s]%s %scommands succeeded ✓%s", green, env, reset, green, reset)
	} else {
		w.Println("[%s] commands succeeded", env)
	}
}

// EnvFailed prints environment failure.
func (w *Writer) EnvFailed(env string, err error) {
	if w.color {
		w.Errorln("%s[%s] failed:%s %v", red, env, reset, err)
	} else {
		w.Errorln("[%s] failed: %v", env, err)
	}
}

// EnvSkipped prints a skipped environment notice.
func (w *Writer) EnvSkipped(env, reason string) {
	if w.color {
		w.Errorln("%s[%s] skipped:%s %s", yellow, env, reset, reason)
	} else {
		w.Errorln("[%s] skipped: %s", env, reason)
	}
}

// isTerminal returns true if f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// ANSI color codes.
const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	cyan   = "\033[36m"
)

// Semantic color roles for help output.
const (
	colorTitle       = bold + cyan
	colorSection     = bold + yellow
	colorCommand     = bold + cyan
	colorPlaceholder = green
	colorFlag        = yellow
	colorDescription = dim
	colorExample     = cyan
	colorEnvVar      = yellow
)

// HelpTitle formats the main help title line.
func (w *Writer) HelpTitle(title string) {
	if w.color {
		w.Println("%s%s%s", colorTitle, title, reset)
	} else {
		w.Println("%s", title)
	}
}

// HelpSection formats a section header (e.g., "Tasks:").
func (w *Writer) HelpSection(title string) {
	if w.color {
		w.Println("\n%s%s%s", colorSection, title, reset)
	} else {
		w.Println("\n%s", title)
	}
}

// HelpCommand formats a command with its description.
func (w *Writer) HelpCommand(name, description string, width int) {
	if w.color {
		padding := max(width-len(name), 0)
		w.Println("  %s%s%s%s  %s%s%s", colorCommand, w.colorPlaceholders(name), reset, strings.Repeat(" ", padding), colorDescription, description, reset)
	} else {
		w.Println("  %-*s  %s", width, name, description)
	}
}

// HelpFlag formats a flag with its description.
func (w *Writer) HelpFlag(name, description string, width int) {
	if w.color {
		padding := max(width-len(name), 0)
		w.Println("  %s%s%s%s  %s%s%s", colorFlag, w.colorPlaceholders(name), reset, strings.Repeat(" ", padding), colorDescription, description, reset)
	} else {
		w.Println("  %-*s  %s", width, name, description)
	}
}

// HelpExample formats an example command with description.
func (w *Writer) HelpExample(command, description string) {
	if w.color {
		w.Println("  %s%s%s", colorExample, command, reset)
		if description != "" {
			w.Println("      %s%s%s", colorDescription, description, reset)
		}
		return
	}
	w.Println("  %s", command)
	if description != "" {
		w.Println("      %s", description)
	}
}

// HelpUsage formats usage lines.
func (w *Writer) HelpUsage(usage string) {
	if w.color {
		w.Println("  %s", w.colorPlaceholders(usage))
	} else {
		w.Println("  %s", usage)
	}
}

// HelpEnvVar formats an environment variable.
func (w *Writer) HelpEnvVar(name, description string, width int) {
	if w.color {
		w.Println("  %s%-*s%s  %s%s%s", colorEnvVar, width, name, reset, colorDescription, description, reset)
	} else {
		w.Println("  %-*s  %s", width, name, description)
	}
}

// Step prints a numbered step message.
func (w *Writer) Step(num int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if w.color {
		w.Println("%s%d.%s %s", cyan, num, reset, msg)
	} else {
		w.Println("%d. %s", num, msg)
	}
}

// StepDetail prints an indented detail line under a step.
func (w *Writer) StepDetail(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if w.color {
		w.Println("   %s- %s%s", dim, msg, reset)
	} else {
		w.Println("   - %s", msg)
	}
}

// SummaryHeader prints a summary section header.
func (w *Writer) SummaryHeader(title string) {
	if w.color {
		w.Println("\n%s=== %s ===%s", bold+cyan, title, reset)
	} else {
		w.Println("\n=== %s ===", title)
	}
}

// SummaryItem prints a labeled summary item with value.
func (w *Writer) SummaryItem(label, value string) {
	if w.color {
		w.Println("  %s%s:%s %s", dim, label, reset, value)
	} else {
		w.Println("  %s: %s", label, value)
	}
}

// SummaryAction prints one result line: status marker, name, duration and optional detail.
func (w *Writer) SummaryAction(name string, status Status, duration string, detail string) {
	var marker, color string
	switch status {
	case StatusPassed:
		marker, color = "+", green
		if w.color {
			marker = "✓"
		}
	case StatusSkipped:
		marker, color = "-", yellow
	default:
		marker, color = "x", red
		if w.color {
			marker = "✗"
		}
	}

	var b strings.Builder
	if w.color {
		fmt.Fprintf(&b, "    %s%s%s %-12s %s%s%s", color, marker, reset, name, dim, duration, reset)
		if detail != "" {
			fmt.Fprintf(&b, "  %s(%s)%s", dim, detail, reset)
		}
	} else {
		fmt.Fprintf(&b, "    %s %-12s %s", marker, name, duration)
		if detail != "" {
			fmt.Fprintf(&b, "  (%s)", detail)
		}
	}
	w.Println("%s", b.String())
}

// Status is the outcome shown by SummaryAction.
type Status int

const (
	StatusPassed Status = iota
	StatusFailed
	StatusSkipped
)

// FinalSuccess prints a final success message.
func (w *Writer) FinalSuccess(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if w.color {
		w.Println("\n%s%s%s", green, msg, reset)
	} else {
		w.Println("\n%s", msg)
	}
}

// FinalFailure prints a final failure message.
func (w *Writer) FinalFailure(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if w.color {
		w.Errorln("\n%s%s%s", red, msg, reset)
	} else {
		w.Errorln("\n%s", msg)
	}
}

// ValidationSuccess prints a validation success message.
func (w *Writer) ValidationSuccess(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if w.color {
		w.Println("%s✓%s %s", green, reset, msg)
	} else {
		w.Println("%s", msg)
	}
}

// Hint prints a hint message for the user.
func (w *Writer) Hint(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if w.color {
		w.Println("%s%s%s", dim, msg, reset)
	} else {
		w.Println("%s", msg)
	}
}

// colorPlaceholders highlights <placeholder> patterns in text.
func (w *Writer) colorPlaceholders(text string) string {
	var result strings.Builder
	i := 0
	for i < len(text) {
		if text[i] == '<' {
			if end := strings.Index(text[i:], ">"); end != -1 {
				result.WriteString(reset)
				result.WriteString(colorPlaceholder)
				result.WriteString(text[i : i+end+1])
				result.WriteString(reset)
				i += end + 1
				continue
			}
		}
		result.WriteByte(text[i])
		i++
	}
	return result.String()
}
