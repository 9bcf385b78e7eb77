package cli

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/AndreyAkinshin/taskmatrix/internal/environment"
	"github.com/AndreyAkinshin/taskmatrix/internal/errors"
	"github.com/AndreyAkinshin/taskmatrix/internal/matrix"
	"github.com/AndreyAkinshin/taskmatrix/internal/output"
	"github.com/AndreyAkinshin/taskmatrix/internal/pipeline"
	"github.com/AndreyAkinshin/taskmatrix/internal/project"
	"github.com/AndreyAkinshin/taskmatrix/internal/release"
	"github.com/AndreyAkinshin/taskmatrix/internal/task"
)

// out is the shared output writer for CLI commands.
var out = output.New()

// Process seams. Tests replace them; nil selects the real implementation.
var (
	executor  environment.Executor
	lookPath  environment.LookPathFunc
	newGit    func(dir string) release.Git
	lookupEnv release.LookupEnvFunc = os.LookupEnv
)

// Help text alignment widths for consistent formatting.
const (
	widthCommand = 15 // Width for commands like "config validate"
	widthFlag    = 27 // Width for global flags like "--skip-missing-interpreters"
	widthShort   = 12 // Width for subcommand options
)

// applyVerbosityToOutput configures the output writer based on verbosity settings.
func applyVerbosityToOutput(opts *GlobalOptions) {
	out.SetQuiet(opts.Quiet)
	out.SetVerbose(opts.Verbose)
}

// loadProjectFrom finds the project from dir ("" means the current directory).
func loadProjectFrom(dir string) (*project.Project, error) {
	if dir == "" {
		return project.LoadProject()
	}
	root, err := project.FindRootFrom(dir)
	if err != nil {
		return nil, err
	}
	return project.LoadProjectFrom(root)
}

// loadProject loads the project and reports failures uniformly.
// Returns nil and the exit code on failure.
func loadProject(opts *GlobalOptions) (*project.Project, int) {
	proj, err := loadProjectFrom(opts.Dir)
	if err == nil {
		err = task.Validate(proj.Config)
	}
	if err != nil {
		out.ErrorPrefix("%v", err)
		return nil, errors.ExitConfigError
	}
	return proj, 0
}

func newDispatcher(opts *GlobalOptions) *task.Dispatcher {
	return task.New(task.Options{
		Out:                     out,
		Executor:                executor,
		LookPath:                lookPath,
		NewGit:                  newGit,
		LookupEnv:               lookupEnv,
		SkipMissingInterpreters: opts.SkipMissingInterpreters,
	})
}

func invocation(opts *GlobalOptions, args []string) task.Invocation {
	workDir := opts.Dir
	if workDir == "" {
		workDir, _ = os.Getwd()
	}
	return task.Invocation{WorkDir: workDir, Args: args, PosArgs: opts.PosArgs, DryRun: opts.DryRun}
}

// cmdTask runs a task from the task vocabulary.
func cmdTask(ctx context.Context, name string, args []string, opts *GlobalOptions) int {
	if wantsHelp(args) {
		printTaskUsage(name)
		return 0
	}

	err := newDispatcher(opts).Dispatch(ctx, name, invocation(opts, args))
	if err != nil {
		out.ErrorPrefix("%v", err)
		return errors.GetExitCode(err)
	}
	return 0
}

// cmdEnvs lists configured environments. "*" marks the default matrix.
func cmdEnvs(args []string, opts *GlobalOptions) int {
	if wantsHelp(args) {
		printEnvsUsage()
		return 0
	}
	namesOnly := false
	for _, arg := range args {
		switch arg {
		case "--names":
			namesOnly = true
		default:
			out.ErrorPrefix("envs: unexpected argument %q", arg)
			return errors.ExitConfigError
		}
	}

	proj, exitCode := loadProject(opts)
	if proj == nil {
		return exitCode
	}

	runner := matrix.New(proj.Config, proj.Root, matrix.Options{Out: out, Version: proj.Version})
	envList := runner.EnvList()

	width := 0
	for _, env := range runner.Environments() {
		width = max(width, len(env.Name()))
	}
	for _, env := range runner.Environments() {
		if namesOnly {
			out.Println("%s", env.Name())
			continue
		}
		marker := " "
		if slices.Contains(envList, env.Name()) {
			marker = "*"
		}
		desc := env.Description()
		if desc == "" {
			desc = strings.Join(env.Commands(), "; ")
		}
		out.Println("%s %-*s  %-12s  %s", marker, width, env.Name(), env.BasePython(), desc)
	}
	return 0
}

// cmdConfig handles configuration utilities.
func cmdConfig(args []string, opts *GlobalOptions) int {
	if len(args) == 0 {
		out.ErrorPrefix("config: subcommand required (validate)")
		return errors.ExitConfigError
	}

	switch args[0] {
	case "validate":
		return cmdConfigValidate(opts)
	case "-h", "--help":
		printConfigUsage()
		return 0
	default:
		out.ErrorPrefix("config: unknown subcommand %q", args[0])
		return errors.ExitConfigError
	}
}

func cmdConfigValidate(opts *GlobalOptions) int {
	proj, exitCode := loadProject(opts)
	if proj == nil {
		return exitCode
	}

	for _, w := range proj.Warnings {
		out.Warning("%s", w)
	}

	cfg := proj.Config
	out.ValidationSuccess("Configuration is valid.")
	out.SummaryItem("Project", cfg.Project.Name)
	out.SummaryItem("Environments", fmt.Sprintf("%d (%d in the default matrix)", len(cfg.Environments), len(cfg.Matrix.EnvList)))
	if proj.VersionErr != nil {
		out.SummaryItem("Version", fmt.Sprintf("unknown (%v)", proj.VersionErr))
	} else {
		out.SummaryItem("Version", fmt.Sprintf("%s (%s)", proj.Version, proj.VersionSource))
	}
	if len(proj.Warnings) > 0 {
		out.SummaryItem("Warnings", fmt.Sprintf("%d", len(proj.Warnings)))
	}
	return 0
}

// cmdCI handles the pipeline adapter commands.
func cmdCI(ctx context.Context, args []string, opts *GlobalOptions) int {
	if len(args) == 0 {
		out.ErrorPrefix("ci: subcommand required (run, workflow)")
		return errors.ExitConfigError
	}

	switch args[0] {
	case "run":
		return cmdCIRun(ctx, args[1:], opts)
	case "workflow":
		return cmdCIWorkflow(args[1:], opts)
	case "-h", "--help":
		printCIUsage()
		return 0
	default:
		out.ErrorPrefix("ci: unknown subcommand %q", args[0])
		return errors.ExitConfigError
	}
}

func cmdCIRun(ctx context.Context, args []string, opts *GlobalOptions) int {
	if wantsHelp(args) {
		printCIUsage()
		return 0
	}

	var event, ref string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case (arg == "--event" || arg == "--ref") && i+1 < len(args):
			if arg == "--event" {
				event = args[i+1]
			} else {
				ref = args[i+1]
			}
			i++
		case strings.HasPrefix(arg, "--event="):
			event = strings.TrimPrefix(arg, "--event=")
		case strings.HasPrefix(arg, "--ref="):
			ref = strings.TrimPrefix(arg, "--ref=")
		default:
			out.ErrorPrefix("ci run: unexpected argument %q", arg)
			return errors.ExitConfigError
		}
	}

	var trigger pipeline.Trigger
	if event != "" {
		e, ok := pipeline.ParseEvent(event)
		if !ok {
			out.ErrorPrefix("ci run: invalid --event %q (commit, tag, pull_request)", event)
			return errors.ExitConfigError
		}
		trigger = pipeline.NewTrigger(e, ref)
	} else {
		var err error
		trigger, err = pipeline.DetectTrigger(lookupEnv)
		if err != nil {
			out.ErrorPrefix("%v", err)
			return errors.GetExitCode(err)
		}
	}

	proj, exitCode := loadProject(opts)
	if proj == nil {
		return exitCode
	}

	adapter := pipeline.New(proj.Config.Pipeline, proj.Root, pipeline.Options{
		Tasks:    newDispatcher(opts),
		Executor: executor,
		Out:      out,
		DryRun:   opts.DryRun,
	})
	report, err := adapter.Run(ctx, trigger)
	printRunReport(report)
	if err != nil {
		out.ErrorPrefix("%v", err)
		return errors.GetExitCode(err)
	}
	return 0
}

func printRunReport(r *pipeline.RunReport) {
	yesNo := func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	}
	out.SummaryHeader("Pipeline")
	out.SummaryItem("Run", r.RunID)
	out.SummaryItem("Event", fmt.Sprintf("%s %s", r.Event, r.Ref))
	out.SummaryItem("Tests passed", yesNo(r.Passed))
	out.SummaryItem("Published to index", yesNo(r.PublishedIndex))
	out.SummaryItem("Published release", yesNo(r.PublishedRelease))
}

func cmdCIWorkflow(args []string, opts *GlobalOptions) int {
	if wantsHelp(args) {
		printCIUsage()
		return 0
	}

	var write, force, check bool
	for _, arg := range args {
		switch arg {
		case "--write":
			write = true
		case "--force":
			force = true
		case "--check":
			check = true
		default:
			out.ErrorPrefix("ci workflow: unexpected argument %q", arg)
			return errors.ExitConfigError
		}
	}

	proj, exitCode := loadProject(opts)
	if proj == nil {
		return exitCode
	}

	switch {
	case check:
		ok, err := pipeline.CheckWorkflow(proj.Root, proj.Config)
		if err != nil {
			out.ErrorPrefix("%v", err)
			return errors.ExitRuntimeError
		}
		if !ok {
			out.ErrorPrefix("%s is out of date; run 'taskmatrix ci workflow --write --force'", pipeline.WorkflowFile)
			return errors.ExitRuntimeError
		}
		out.ValidationSuccess("%s is up to date.", pipeline.WorkflowFile)
	case write:
		created, err := pipeline.WriteWorkflow(proj.Root, proj.Config, force)
		if err != nil {
			out.ErrorPrefix("%v", err)
			return errors.ExitRuntimeError
		}
		if !created {
			out.Info("%s already exists (use --force to overwrite)", pipeline.WorkflowFile)
			return 0
		}
		out.Success("Wrote %s", pipeline.WorkflowFile)
	default:
		content, err := pipeline.RenderWorkflow(proj.Config)
		if err != nil {
			out.ErrorPrefix("%v", err)
			return errors.ExitRuntimeError
		}
		out.Print("%s", content)
	}
	return 0
}

// printTaskUsage prints the help text for a single task.
func printTaskUsage(name string) {
	w := out

	t, ok := task.Lookup(nil, name)
	if !ok {
		w.HelpTitle(fmt.Sprintf("taskmatrix %s - run a custom task", name))
		w.HelpSection("Usage:")
		w.HelpUsage(fmt.Sprintf("taskmatrix %s [-- posargs]", name))
		w.Println("")
		return
	}

	w.HelpTitle(fmt.Sprintf("taskmatrix %s - %s", name, strings.ToLower(t.Description[:1])+t.Description[1:]))
	if t.Name != name {
		w.Println("  Alias for '%s'.", t.Name)
	}

	w.HelpSection("Usage:")
	titleCase := cases.Title(language.English)
	switch t.Kind {
	case task.KindMatrix:
		w.HelpUsage(fmt.Sprintf("taskmatrix %s [env...] [-- posargs]", name))
		w.HelpSection("Examples:")
		w.HelpExample(fmt.Sprintf("taskmatrix %s", name), "Run every environment in the default matrix")
		w.HelpExample(fmt.Sprintf("taskmatrix %s py38 py39", name), "Run only py38 and py39")
		w.HelpExample(fmt.Sprintf("taskmatrix %s -- -x", name), "Pass -x to the test runner")
	case task.KindDelegate:
		w.HelpUsage(fmt.Sprintf("taskmatrix %s [-- posargs]", name))
		w.Println("")
		w.Println("  %s runs the '%s' environment.", titleCase.String(t.Name), t.Environment)
	default:
		w.HelpUsage(fmt.Sprintf("taskmatrix %s", name))
	}
	w.Println("")
}

func printEnvsUsage() {
	w := out

	w.HelpTitle("taskmatrix envs - list environments")

	w.HelpSection("Usage:")
	w.HelpUsage("taskmatrix envs [--names]")

	w.HelpSection("Options:")
	w.HelpFlag("--names", "Print environment names only", widthShort)
	w.HelpFlag("-h, --help", "Show this help", widthShort)
	w.Println("")
}

// printConfigUsage prints the help text for the config command.
func printConfigUsage() {
	w := out

	w.HelpTitle("taskmatrix config - configuration utilities")

	w.HelpSection("Usage:")
	w.HelpUsage("taskmatrix config <subcommand>")

	w.HelpSection("Subcommands:")
	w.HelpCommand("validate", "Validate taskmatrix.json", widthShort)

	w.HelpSection("Examples:")
	w.HelpExample("taskmatrix config validate", "Validate project configuration")
	w.Println("")
}

// printCIUsage prints the help text for the ci command.
func printCIUsage() {
	w := out

	w.HelpTitle("taskmatrix ci - CI pipeline adapter")

	w.HelpSection("Usage:")
	w.HelpUsage("taskmatrix ci run [--event <event>] [--ref <ref>]")
	w.HelpUsage("taskmatrix ci workflow [--write [--force] | --check]")

	w.HelpSection("Description:")
	w.Println("  'ci run' runs test, then on tag pushes publishes to the package index")
	w.Println("  and the release host as configured in the pipeline section.")
	w.Println("  Without --event the event is read from GITHUB_EVENT_NAME and GITHUB_REF.")

	w.HelpSection("Options:")
	w.HelpFlag("--event", "commit, tag or pull_request", widthShort)
	w.HelpFlag("--ref", "Git ref of the event (refs/tags/<tag>)", widthShort)
	w.HelpFlag("--write", "Write "+pipeline.WorkflowFile, widthShort)
	w.HelpFlag("--force", "Overwrite an existing workflow", widthShort)
	w.HelpFlag("--check", "Fail when the workflow is out of date", widthShort)

	w.HelpSection("Examples:")
	w.HelpExample("taskmatrix ci run", "Run for the current GitHub Actions event")
	w.HelpExample("taskmatrix ci run --event tag --ref refs/tags/0.2.1", "Simulate a tag push")
	w.HelpExample("taskmatrix ci workflow --write", "Generate the workflow file")
	w.Println("")
}
