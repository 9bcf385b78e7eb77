// Package cli provides command-line interface functionality for taskmatrix.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/AndreyAkinshin/taskmatrix/internal/errors"
	"github.com/AndreyAkinshin/taskmatrix/internal/output"
	"github.com/AndreyAkinshin/taskmatrix/internal/task"
)

// Version is set at build time.
var Version = "dev"

// wantsHelp returns true if args contain -h or --help before any -- separator.
// Arguments after -- are passed through to commands, so help flags there are ignored.
func wantsHelp(args []string) bool {
	for _, arg := range args {
		if arg == "-h" || arg == "--help" {
			return true
		}
		if arg == "--" {
			return false
		}
	}
	return false
}

// Run executes the CLI with the given arguments and returns an exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 0
	}

	switch args[0] {
	case "-h", "--help":
		printUsage()
		return 0
	case "--version":
		out.Println("taskmatrix %s", Version)
		return 0
	}

	opts, remaining, err := parseGlobalFlags(args)
	if err != nil {
		out.ErrorPrefix("%v", err)
		return errors.ExitConfigError
	}
	if len(remaining) == 0 {
		printUsage()
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, cmdArgs := remaining[0], remaining[1:]
	switch cmd {
	case "init":
		return cmdInit(cmdArgs, opts)
	case "config":
		return cmdConfig(cmdArgs, opts)
	case "envs":
		return cmdEnvs(cmdArgs, opts)
	case "ci":
		return cmdCI(ctx, cmdArgs, opts)
	case "completion":
		return cmdCompletion(cmdArgs)
	default:
		return cmdTask(ctx, cmd, cmdArgs, opts)
	}
}

// GlobalOptions holds parsed global flags.
type GlobalOptions struct {
	Quiet                   bool
	Verbose                 bool
	Dir                     string   // -C: directory the project is searched from
	SkipMissingInterpreters bool     // Report environments without an interpreter as skipped
	DryRun                  bool     // Print what tag, release, deps and clean would do
	PosArgs                 []string // Everything after --
}

// parseGlobalFlags manually parses global flags from arguments.
//
// Manual parsing is used instead of stdlib flag package because:
// - Flags can appear anywhere in the argument list, not just before the task
// - Pass-through arguments after -- must be preserved verbatim
// - Custom error messages with usage hints are needed
func parseGlobalFlags(args []string) (*GlobalOptions, []string, error) {
	opts := &GlobalOptions{}
	var remaining []string

	i := 0
	for i < len(args) {
		arg := args[i]

		switch {
		case arg == "-q" || arg == "--quiet":
			opts.Quiet = true
			i++
		case arg == "-v" || arg == "--verbose":
			opts.Verbose = true
			i++
		case arg == "-n" || arg == "--dry-run":
			opts.DryRun = true
			i++
		case arg == "--skip-missing-interpreters":
			opts.SkipMissingInterpreters = true
			i++
		case arg == "-C" || arg == "--dir":
			if i+1 >= len(args) {
				return nil, nil, fmt.Errorf("%s requires a directory", arg)
			}
			opts.Dir = args[i+1]
			i += 2
		case strings.HasPrefix(arg, "--dir="):
			opts.Dir = strings.TrimPrefix(arg, "--dir=")
			i++
		case arg == "--":
			opts.PosArgs = append([]string(nil), args[i+1:]...)
			i = len(args)
		default:
			remaining = append(remaining, arg)
			i++
		}
	}

	if err := validateGlobalOptions(opts); err != nil {
		return nil, nil, err
	}

	// Apply verbosity settings to the global output writer so every
	// command observes the same settings.
	applyVerbosityToOutput(opts)

	return opts, remaining, nil
}

// validateGlobalOptions checks that global options are valid.
func validateGlobalOptions(opts *GlobalOptions) error {
	if opts.Quiet && opts.Verbose {
		return fmt.Errorf("--quiet and --verbose are mutually exclusive")
	}
	if opts.Dir != "" {
		info, err := os.Stat(opts.Dir)
		if err != nil {
			return fmt.Errorf("-C %s: %w", opts.Dir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("-C %s: not a directory", opts.Dir)
		}
	}
	return nil
}

func printUsage() {
	w := out

	w.HelpTitle("taskmatrix - test and release a Python package across interpreters")

	w.HelpSection("Usage:")
	w.HelpUsage("taskmatrix [flags] <task> [args] [-- posargs]")

	tasks := task.Tasks(nil)
	if proj, err := loadProjectFrom(""); err == nil {
		tasks = task.Tasks(proj.Config)
	}
	task.PrintTasks(w, tasks)

	w.HelpSection("Commands:")
	w.HelpCommand("envs", "List environments and the default matrix", widthCommand)
	w.HelpCommand("config validate", "Validate taskmatrix.json", widthCommand)
	w.HelpCommand("ci run", "Run the CI pipeline for the current event", widthCommand)
	w.HelpCommand("ci workflow", "Print or write the GitHub Actions workflow", widthCommand)
	w.HelpCommand("init", "Create taskmatrix.json for a Python package", widthCommand)
	w.HelpCommand("completion", "Generate shell completion (bash, zsh, fish)", widthCommand)

	printGlobalFlags(w)

	w.HelpSection("Examples:")
	w.HelpExample("taskmatrix test", "Run the default matrix")
	w.HelpExample("taskmatrix test py39 -- -k problem", "Run py39 with pytest arguments")
	w.HelpExample("taskmatrix lint", "Run all static checks")
	w.HelpExample("taskmatrix --dry-run tag", "Show the tag that would be pushed")
	w.Println("")
}

func printGlobalFlags(w *output.Writer) {
	w.HelpSection("Global Flags:")
	w.HelpFlag("-q, --quiet", "Minimal output (errors only)", widthFlag)
	w.HelpFlag("-v, --verbose", "Maximum detail", widthFlag)
	w.HelpFlag("-C, --dir <dir>", "Run as if started in <dir>", widthFlag)
	w.HelpFlag("-n, --dry-run", "Print what tag, release, deps and clean would do", widthFlag)
	w.HelpFlag("--skip-missing-interpreters", "Skip environments whose interpreter is not installed", widthFlag)
	w.HelpFlag("-h, --help", "Show this help", widthFlag)
	w.HelpFlag("--version", "Show version", widthFlag)

	w.HelpSection("Environment:")
	w.HelpEnvVar("TASKMATRIX_PARALLEL=N", "Run up to N environments at once (or \"auto\")", 21)
}
