package pipeline

import (
	"context"
	"os"
	"strings"

	"github.com/AndreyAkinshin/taskmatrix/internal/config"
	"github.com/AndreyAkinshin/taskmatrix/internal/environment"
	taskerrors "github.com/AndreyAkinshin/taskmatrix/internal/errors"
	"github.com/AndreyAkinshin/taskmatrix/internal/output"
	"github.com/AndreyAkinshin/taskmatrix/internal/task"
	"github.com/AndreyAkinshin/taskmatrix/internal/version"
)

// Dispatcher runs named tasks. *task.Dispatcher satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, inv task.Invocation) error
}

// RunReport is the outcome of one pipeline run.
type RunReport struct {
	RunID            string
	Event            Event
	Ref              string
	Passed           bool
	PublishedIndex   bool
	PublishedRelease bool
}

// Options configures an Adapter.
type Options struct {
	Tasks    Dispatcher
	Executor environment.Executor // Runs the release-host command; defaults to ShellExecutor
	Out      *output.Writer
	DryRun   bool // Publication steps print what they would do
}

// Adapter runs the test task for a trigger and publishes on tag pushes.
type Adapter struct {
	cfg   *config.PipelineConfig
	root  string
	tasks Dispatcher
	exec  environment.Executor
	out   *output.Writer
	dry   bool
}

// New creates an Adapter for the project at root.
func New(cfg *config.PipelineConfig, root string, opts Options) *Adapter {
	if cfg == nil {
		cfg = &config.PipelineConfig{}
	}
	a := &Adapter{cfg: cfg, root: root, tasks: opts.Tasks, exec: opts.Executor, out: opts.Out, dry: opts.DryRun}
	if a.exec == nil {
		a.exec = environment.ShellExecutor{}
	}
	if a.out == nil {
		a.out = output.New()
	}
	return a
}

// Run invokes test and, only when it passes on a tag push, publishes to the
// package index and the release host as configured. The first failure ends
// the run; the report shows how far it got. In a dry run the publication
// steps only print what they would do and the report records no publication.
func (a *Adapter) Run(ctx context.Context, trigger Trigger) (*RunReport, error) {
	report := &RunReport{RunID: trigger.RunID.String(), Event: trigger.Event, Ref: trigger.Ref}
	inv := task.Invocation{WorkDir: a.root, DryRun: a.dry}

	a.out.Info("Pipeline run %s (%s %s)", report.RunID, trigger.Event, trigger.Ref)

	a.out.Step(1, "Running test...")
	if err := a.tasks.Dispatch(ctx, task.Test, inv); err != nil {
		return report, err
	}
	report.Passed = true

	if trigger.Event != EventTag {
		a.out.FinalSuccess("Pipeline passed; %s events do not publish.", trigger.Event)
		return report, nil
	}

	if a.cfg.PublishToIndex {
		a.out.Step(2, "Publishing to the package index...")
		if err := a.tasks.Dispatch(ctx, task.Release, inv); err != nil {
			return report, err
		}
		report.PublishedIndex = !a.dry
	}

	if a.cfg.PublishToRelease {
		// Without the upload step nothing has built the release assets yet.
		if !a.cfg.PublishToIndex {
			a.out.Step(2, "Building distributions...")
			if err := a.tasks.Dispatch(ctx, task.Build, inv); err != nil {
				return report, err
			}
		}
		a.out.Step(3, "Creating release %s...", trigger.Tag())
		if err := a.createRelease(ctx, trigger.Tag()); err != nil {
			return report, err
		}
		report.PublishedRelease = !a.dry
	}

	a.out.FinalSuccess("Pipeline passed for %s.", trigger.Tag())
	return report, nil
}

// ReleaseCommand returns the release-host command line for tag.
// Asset patterns are left unquoted for the shell to expand.
func ReleaseCommand(tag string, assets []string) string {
	parts := []string{"gh", "release", "create", environment.ShellQuote(tag)}
	parts = append(parts, assets...)
	if IsPrereleaseTag(tag) {
		parts = append(parts, "--prerelease")
	}
	return strings.Join(parts, " ")
}

// IsPrereleaseTag reports whether tag names a PEP 440 pre- or dev-release.
// A leading "v" is ignored; tags that are not versions are final releases.
func IsPrereleaseTag(tag string) bool {
	v, err := version.Parse(strings.TrimPrefix(tag, "v"))
	return err == nil && v.IsPrerelease()
}

func (a *Adapter) createRelease(ctx context.Context, tag string) error {
	if tag == "" {
		return taskerrors.Config("tag event without a tag ref")
	}
	assets := a.cfg.ReleaseAssets
	if len(assets) == 0 {
		assets = []string{config.DefaultReleaseAsset}
	}
	line := ReleaseCommand(tag, assets)

	a.out.StepDetail("%s", line)
	if a.dry {
		a.out.Info("Dry run, release %s not created", tag)
		return nil
	}
	res := a.exec.Execute(ctx, environment.Command{
		Line:   line,
		Dir:    a.root,
		Env:    os.Environ(),
		Stdout: a.out.Stdout(),
		Stderr: a.out.Stderr(),
	})
	if !res.Success() {
		return &taskerrors.EnvironmentFailedError{Name: "pipeline", Command: line, Status: res.ExitCode, Cause: res.Err}
	}
	return nil
}
