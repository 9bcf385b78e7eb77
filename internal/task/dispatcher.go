package task

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/AndreyAkinshin/taskmatrix/internal/environment"
	taskerrors "github.com/AndreyAkinshin/taskmatrix/internal/errors"
	"github.com/AndreyAkinshin/taskmatrix/internal/matrix"
	"github.com/AndreyAkinshin/taskmatrix/internal/output"
	"github.com/AndreyAkinshin/taskmatrix/internal/project"
	"github.com/AndreyAkinshin/taskmatrix/internal/release"
)

// Invocation carries everything one task run needs from its caller.
type Invocation struct {
	WorkDir string   // Directory the project root is searched from; never the process cwd implicitly
	Args    []string // Task arguments (environment names for test)
	PosArgs []string // Arguments after "--", substituted for ${posargs}
	DryRun  bool     // Print what tag, release, deps and clean would do
}

// Options configures a Dispatcher. Zero values select the real implementations.
type Options struct {
	Out                     *output.Writer
	Executor                environment.Executor
	LookPath                environment.LookPathFunc
	NewGit                  func(dir string) release.Git
	LookupEnv               release.LookupEnvFunc
	SkipMissingInterpreters bool
}

// Dispatcher resolves task names and runs them against a project.
type Dispatcher struct {
	opts Options
	out  *output.Writer
}

// New creates a Dispatcher.
func New(opts Options) *Dispatcher {
	if opts.Out == nil {
		opts.Out = output.New()
	}
	if opts.NewGit == nil {
		opts.NewGit = func(dir string) release.Git { return release.ExecGit{Dir: dir} }
	}
	if opts.LookupEnv == nil {
		opts.LookupEnv = os.LookupEnv
	}
	return &Dispatcher{opts: opts, out: opts.Out}
}

// Dispatch runs the named task. Unknown names are configuration errors.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, inv Invocation) error {
	if canonical(name) == Help {
		return d.help(inv)
	}

	p, err := d.load(inv)
	if err != nil {
		return err
	}

	t, ok := Lookup(p.Config, name)
	if !ok {
		return taskerrors.Configf("unknown task %q (run 'taskmatrix help' for the list)", name)
	}

	switch t.Kind {
	case KindMatrix:
		return d.test(ctx, p, inv)
	case KindDelegate:
		switch t.Name {
		case Deps:
			return d.deps(ctx, p, t, inv)
		case Release:
			return d.release(ctx, p, t, inv)
		}
		return d.delegate(ctx, p, t.Environment, inv, nil)
	}

	if len(inv.Args) > 0 {
		return taskerrors.Configf("task %q takes no arguments", t.Name)
	}
	switch t.Name {
	case Clean:
		return d.clean(p, inv)
	case Version:
		return d.version(p)
	case Tag:
		return d.tag(ctx, p, inv)
	}
	return taskerrors.Configf("task %q has no action", t.Name)
}

// load finds the project root from the invocation's working directory.
func (d *Dispatcher) load(inv Invocation) (*project.Project, error) {
	workDir := inv.WorkDir
	if workDir == "" {
		workDir = "."
	}
	root, err := project.FindRootFrom(workDir)
	if err != nil {
		return nil, configError(err)
	}
	p, err := project.LoadProjectFrom(root)
	if err != nil {
		return nil, configError(err)
	}
	if err := Validate(p.Config); err != nil {
		return nil, configError(fmt.Errorf("invalid configuration: %w", err))
	}
	for _, w := range p.Warnings {
		d.out.Warning("%s", w)
	}
	return p, nil
}

func configError(err error) error {
	return &taskerrors.TaskError{Kind: taskerrors.KindConfig, Message: err.Error(), Cause: err}
}

func (d *Dispatcher) runner(p *project.Project) *matrix.Runner {
	return matrix.New(p.Config, p.Root, matrix.Options{
		Executor:                d.opts.Executor,
		LookPath:                d.opts.LookPath,
		Out:                     d.out,
		Version:                 p.Version,
		SkipMissingInterpreters: d.opts.SkipMissingInterpreters,
	})
}

func (d *Dispatcher) delegate(ctx context.Context, p *project.Project, env string, inv Invocation, extra map[string]string) error {
	posArgs := append(append([]string(nil), inv.Args...), inv.PosArgs...)
	_, err := d.runner(p).RunEnvironment(ctx, env, matrix.RunOptions{PosArgs: posArgs, Env: extra})
	return err
}

func (d *Dispatcher) test(ctx context.Context, p *project.Project, inv Invocation) error {
	summary, err := d.runner(p).RunMatrix(ctx, inv.Args, matrix.RunOptions{PosArgs: inv.PosArgs})
	if summary != nil {
		printMatrixSummary(d.out, summary)
	}
	return err
}

// deps truncates the manifest so the delegated environment always rewrites it in full.
func (d *Dispatcher) deps(ctx context.Context, p *project.Project, t Task, inv Invocation) error {
	if err := checkProjectPath("deps manifest", p.Config.Deps.Manifest); err != nil {
		return err
	}
	manifest := filepath.Join(p.Root, p.Config.Deps.Manifest)
	if inv.DryRun {
		d.out.Info("Dry run, nothing will be changed:")
		d.out.Step(1, "Truncate %s", p.Config.Deps.Manifest)
		d.out.Step(2, "Run environment %s", t.Environment)
		return nil
	}
	if err := os.WriteFile(manifest, nil, 0644); err != nil {
		return taskerrors.Wrap(err, fmt.Sprintf("failed to truncate %s", p.Config.Deps.Manifest))
	}
	return d.delegate(ctx, p, t.Environment, inv, nil)
}

// release checks upload credentials before any environment runs and
// forwards them to the release environment.
func (d *Dispatcher) release(ctx context.Context, p *project.Project, t Task, inv Invocation) error {
	creds, err := release.Credentials(p.Config.Release, d.opts.LookupEnv)
	if err != nil {
		return err
	}
	if inv.DryRun {
		d.out.Info("Dry run, nothing will be changed:")
		d.out.Step(1, "Run environment %s with upload credentials", t.Environment)
		return nil
	}
	return d.delegate(ctx, p, t.Environment, inv, creds)
}

func (d *Dispatcher) version(p *project.Project) error {
	if p.VersionErr != nil {
		return taskerrors.Wrap(p.VersionErr, p.VersionErr.Error())
	}
	d.out.Println("%s", p.Version)
	return nil
}

func (d *Dispatcher) tag(ctx context.Context, p *project.Project, inv Invocation) error {
	if p.VersionErr != nil {
		return taskerrors.Wrap(p.VersionErr, p.VersionErr.Error())
	}
	tagger := release.NewTagger(d.opts.NewGit(p.Root), p.Config.Release, d.out)
	_, err := tagger.Tag(ctx, p.Version, release.TagOptions{DryRun: inv.DryRun})
	return err
}

func (d *Dispatcher) help(inv Invocation) error {
	// Outside a project the built-in vocabulary is still listed.
	var tasks []Task
	workDir := inv.WorkDir
	if workDir == "" {
		workDir = "."
	}
	if root, err := project.FindRootFrom(workDir); err == nil {
		if p, err := project.LoadProjectFrom(root); err == nil {
			tasks = Tasks(p.Config)
		}
	}
	if tasks == nil {
		tasks = Tasks(nil)
	}
	PrintTasks(d.out, tasks)
	return nil
}

// PrintTasks writes one help line per task.
func PrintTasks(w *output.Writer, tasks []Task) {
	width := 0
	for _, t := range tasks {
		width = max(width, len(t.Name))
	}
	w.HelpSection("Tasks:")
	for _, t := range tasks {
		w.HelpCommand(t.Name, t.Description, width)
	}
}
