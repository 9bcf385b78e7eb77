// Package matrix runs named environments, alone or as a dependency-ordered
// matrix with optional bounded parallelism.
package matrix

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/AndreyAkinshin/taskmatrix/internal/config"
	"github.com/AndreyAkinshin/taskmatrix/internal/environment"
	taskerrors "github.com/AndreyAkinshin/taskmatrix/internal/errors"
	"github.com/AndreyAkinshin/taskmatrix/internal/model"
	"github.com/AndreyAkinshin/taskmatrix/internal/output"
	"github.com/AndreyAkinshin/taskmatrix/internal/testparser"
	"github.com/AndreyAkinshin/taskmatrix/internal/topsort"
)

// ParallelEnvVar selects the number of environments run concurrently.
const ParallelEnvVar = "TASKMATRIX_PARALLEL"

const (
	minParallelWorkers = 1
	// maxParallelWorkers caps TASKMATRIX_PARALLEL; environments are process-bound.
	maxParallelWorkers = 64
)

// Options configures a Runner.
type Options struct {
	Executor                environment.Executor // Defaults to environment.ShellExecutor
	LookPath                environment.LookPathFunc
	Out                     *output.Writer
	Version                 string // Fills ${version}
	SkipMissingInterpreters bool   // Overrides matrix.skip_missing_interpreters when true
}

// RunOptions are per-invocation settings.
type RunOptions struct {
	PosArgs []string
	Env     map[string]string // Extra variables for every command (e.g. forwarded credentials)
}

// Runner executes environments declared in a configuration.
type Runner struct {
	envs        map[string]*environment.Environment
	order       []string
	envList     []string
	exec        environment.Executor
	lookPath    environment.LookPathFunc
	out         *output.Writer
	parsers     *testparser.Registry
	skipMissing bool
}

// New creates a Runner for every environment in cfg.
// cfg must have defaults applied (see config.LoadAndValidate).
func New(cfg *config.Config, root string, opts Options) *Runner {
	envDir := config.DefaultEnvDir
	var envList []string
	skipMissing := opts.SkipMissingInterpreters
	if cfg.Matrix != nil {
		if cfg.Matrix.EnvDir != "" {
			envDir = cfg.Matrix.EnvDir
		}
		envList = cfg.Matrix.EnvList
		skipMissing = skipMissing || cfg.Matrix.SkipMissingInterpreters
	}

	r := &Runner{
		envs:        make(map[string]*environment.Environment, len(cfg.Environments)),
		envList:     envList,
		exec:        opts.Executor,
		lookPath:    opts.LookPath,
		out:         opts.Out,
		parsers:     testparser.NewRegistry(),
		skipMissing: skipMissing,
	}
	if r.exec == nil {
		r.exec = environment.ShellExecutor{}
	}
	if r.out == nil {
		r.out = output.New()
	}
	for _, ec := range cfg.Environments {
		r.envs[ec.Name] = environment.New(ec, root, envDir, opts.Version)
		r.order = append(r.order, ec.Name)
	}
	return r
}

// Environment returns the named environment.
func (r *Runner) Environment(name string) (*environment.Environment, bool) {
	env, ok := r.envs[name]
	return env, ok
}

// Environments returns all environments in declaration order.
func (r *Runner) Environments() []*environment.Environment {
	result := make([]*environment.Environment, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.envs[name])
	}
	return result
}

// EnvList returns the default matrix.
func (r *Runner) EnvList() []string {
	return append([]string(nil), r.envList...)
}

// RunEnvironment sets up and runs one environment, streaming its output.
// A missing interpreter is reported as skipped (nil error) when missing
// interpreters are tolerated.
func (r *Runner) RunEnvironment(ctx context.Context, name string, opts RunOptions) (model.EnvironmentResult, error) {
	env, ok := r.envs[name]
	if !ok {
		err := &taskerrors.UnknownEnvironmentError{Name: name}
		return model.EnvironmentResult{Name: name, Status: model.StatusFailed, Error: err}, err
	}
	result := r.run(ctx, env, opts, r.out)
	r.report(result)
	if result.Status == model.StatusFailed {
		return result, result.Error
	}
	return result, nil
}

// RunMatrix runs the named environments, or the default envlist when names
// is empty, in dependency order. Every environment runs regardless of earlier
// failures; the returned error joins all failures in run order.
func (r *Runner) RunMatrix(ctx context.Context, names []string, opts RunOptions) (*model.MatrixSummary, error) {
	start := time.Now()
	if len(names) == 0 {
		names = r.envList
	}

	var unknown []error
	for _, name := range names {
		if _, ok := r.envs[name]; !ok {
			unknown = append(unknown, &taskerrors.UnknownEnvironmentError{Name: name})
		}
	}
	if len(unknown) > 0 {
		return nil, errors.Join(unknown...)
	}

	ordered, err := r.sort(names)
	if err != nil {
		return nil, taskerrors.Configf("environment order: %v", err)
	}

	var results []model.EnvironmentResult
	if workers := getParallelWorkers(r.out); workers > 1 && len(ordered) > 1 {
		results = r.runParallel(ctx, ordered, opts, workers)
	} else {
		results = r.runSequential(ctx, ordered, opts)
	}

	summary := &model.MatrixSummary{}
	for _, res := range results {
		summary.Add(res)
	}
	summary.TotalDuration = time.Since(start)
	return summary, summary.Err()
}

// sort orders names so that depends run first. Only dependencies that are
// themselves requested take part in the ordering.
func (r *Runner) sort(names []string) ([]string, error) {
	requested := make(map[string]bool, len(names))
	for _, n := range names {
		requested[n] = true
	}
	g := make(topsort.Graph, len(names))
	for _, n := range names {
		var deps []string
		for _, d := range r.envs[n].Depends() {
			if requested[d] {
				deps = append(deps, d)
			}
		}
		g[n] = deps
	}
	return topsort.Sort(g, dedupe(names))
}

func (r *Runner) runSequential(ctx context.Context, names []string, opts RunOptions) []model.EnvironmentResult {
	results := make([]model.EnvironmentResult, 0, len(names))
	for _, name := range names {
		if ctx.Err() != nil {
			results = append(results, canceled(name, ctx.Err()))
			continue
		}
		res := r.run(ctx, r.envs[name], opts, r.out)
		r.report(res)
		results = append(results, res)
	}
	return results
}

// runParallel runs environments on a bounded worker pool. An environment
// starts only after every requested dependency has finished. Output of each
// environment is buffered and written as one block when it completes.
func (r *Runner) runParallel(ctx context.Context, names []string, opts RunOptions, workers int) []model.EnvironmentResult {
	results := make([]model.EnvironmentResult, len(names))
	done := make(map[string]chan struct{}, len(names))
	for _, name := range names {
		done[name] = make(chan struct{})
	}
	sem := make(chan struct{}, workers)

	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			defer close(done[name])

			env := r.envs[name]
			for _, dep := range env.Depends() {
				if ch, ok := done[dep]; ok {
					select {
					case <-ch:
					case <-ctx.Done():
					}
				}
			}

			select {
			case <-ctx.Done():
				results[i] = canceled(name, ctx.Err())
				return
			case sem <- struct{}{}:
			}
			defer func() { <-sem }()

			var buf bytes.Buffer
			w := &lockedWriter{w: &buf}
			res := r.run(ctx, env, opts, r.out.Fork(w, w))

			r.out.Print("%s", buf.String())
			r.report(res)
			results[i] = res
		}(i, name)
	}
	wg.Wait()
	return results
}

// run executes one environment and converts the outcome into a result.
// All progress and command output goes to out.
func (r *Runner) run(ctx context.Context, env *environment.Environment, opts RunOptions, out *output.Writer) model.EnvironmentResult {
	start := time.Now()
	result := model.EnvironmentResult{Name: env.Name()}

	stdout := out.Stdout()
	parser := r.parserFor(env)
	var captured bytes.Buffer
	if parser != nil {
		stdout = io.MultiWriter(stdout, &captured)
	}

	envOpts := environment.Options{
		Executor: r.exec,
		LookPath: r.lookPath,
		Out:      out,
		Stdout:   stdout,
		Stderr:   out.Stderr(),
		PosArgs:  opts.PosArgs,
		Env:      opts.Env,
	}

	out.EnvStart(env.Name(), "setup")
	err := env.Setup(ctx, envOpts)
	if err == nil {
		out.EnvStart(env.Name(), "commands")
		err = env.Run(ctx, envOpts)
	}
	result.Duration = time.Since(start)

	if parser != nil {
		counts := parser.Parse(captured.String())
		result.TestCounts = &counts
	}

	switch {
	case err == nil:
		result.Status = model.StatusPassed
	case r.skipMissing && taskerrors.IsInterpreterMissing(err):
		result.Status = model.StatusSkipped
		result.Error = err
	default:
		result.Status = model.StatusFailed
		result.Error = err
		var failed *taskerrors.EnvironmentFailedError
		if errors.As(err, &failed) {
			result.Command = failed.Command
		}
	}
	return result
}

func (r *Runner) report(res model.EnvironmentResult) {
	switch res.Status {
	case model.StatusPassed:
		r.out.EnvSuccess(res.Name)
	case model.StatusSkipped:
		r.out.EnvSkipped(res.Name, res.Error.Error())
	default:
		r.out.EnvFailed(res.Name, res.Error)
	}
}

func (r *Runner) parserFor(env *environment.Environment) testparser.Parser {
	if name := env.TestParser(); name != "" {
		return r.parsers.GetParser(name)
	}
	return r.parsers.GetParserForCommands(env.Commands())
}

func canceled(name string, err error) model.EnvironmentResult {
	return model.EnvironmentResult{Name: name, Status: model.StatusFailed, Error: err}
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	result := make([]string, 0, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			result = append(result, n)
		}
	}
	return result
}

// lockedWriter serializes writes from a command's stdout and stderr.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// getParallelWorkers returns the number of environments to run at once.
// Unset means sequential. Invalid values log a warning and fall back to
// sequential; "auto" uses the CPU count.
func getParallelWorkers(out *output.Writer) int {
	env := os.Getenv(ParallelEnvVar)
	if env == "" {
		return 1
	}
	if env == "auto" {
		return min(max(minParallelWorkers, runtime.NumCPU()), maxParallelWorkers)
	}

	n, err := strconv.Atoi(env)
	if err != nil {
		out.Warning("invalid %s value %q (not a number), running sequentially", ParallelEnvVar, env)
		return 1
	}
	if n < minParallelWorkers || n > maxParallelWorkers {
		out.Warning("%s=%d out of range [%d-%d], running sequentially", ParallelEnvVar, n, minParallelWorkers, maxParallelWorkers)
		return 1
	}
	return n
}
