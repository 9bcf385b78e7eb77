// Package environment implements one isolated Python environment of the matrix:
// interpreter resolution, virtualenv setup, and ordered command execution.
package environment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/tidwall/match"

	"github.com/AndreyAkinshin/taskmatrix/internal/config"
	taskerrors "github.com/AndreyAkinshin/taskmatrix/internal/errors"
	"github.com/AndreyAkinshin/taskmatrix/internal/output"
)

// depsMarker records the dependency list last installed into an environment.
const depsMarker = ".taskmatrix-deps"

// defaultPassEnv is inherited by every environment in addition to passenv.
var defaultPassEnv = []string{
	"PATH", "HOME", "USER", "LANG", "LANGUAGE", "LC_*", "TERM",
	"TMPDIR", "TEMP", "TMP",
	"PIP_*", "SSL_CERT_FILE", "REQUESTS_CA_BUNDLE",
	"HTTP_PROXY", "HTTPS_PROXY", "NO_PROXY", "http_proxy", "https_proxy", "no_proxy",
	"SYSTEMROOT", "COMSPEC", "PATHEXT",
}

// Environment is a named, isolated interpreter environment.
type Environment struct {
	cfg     config.EnvironmentConfig
	root    string
	dir     string
	version string
}

// New creates an environment rooted at envRoot/<name>.
// root is the project root; version fills ${version}.
func New(cfg config.EnvironmentConfig, root, envRoot, version string) *Environment {
	if !filepath.IsAbs(envRoot) {
		envRoot = filepath.Join(root, envRoot)
	}
	return &Environment{
		cfg:     cfg,
		root:    root,
		dir:     filepath.Join(envRoot, cfg.Name),
		version: version,
	}
}

func (e *Environment) Name() string        { return e.cfg.Name }
func (e *Environment) Description() string { return e.cfg.Description }
func (e *Environment) Dir() string         { return e.dir }
func (e *Environment) TestParser() string  { return e.cfg.TestParser }

// Depends returns a copy of the environments that must run first.
func (e *Environment) Depends() []string {
	return slices.Clone(e.cfg.Depends)
}

// Commands returns a copy of the configured command lines.
func (e *Environment) Commands() []string {
	return slices.Clone(e.cfg.Commands)
}

// BasePython returns the configured or inferred interpreter selector.
func (e *Environment) BasePython() string {
	if e.cfg.BasePython != "" {
		return e.cfg.BasePython
	}
	return InferBasePython(e.cfg.Name)
}

// BinDir returns the virtualenv's executable directory.
func (e *Environment) BinDir() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(e.dir, "Scripts")
	}
	return filepath.Join(e.dir, "bin")
}

// Python returns the path of the environment's own interpreter.
func (e *Environment) Python() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(e.BinDir(), "python.exe")
	}
	return filepath.Join(e.BinDir(), "python")
}

// Options configures Setup and Run.
type Options struct {
	Executor Executor
	LookPath LookPathFunc
	Out      *output.Writer // Echoes phases and commands; nil disables echo
	Stdout   io.Writer      // Defaults to Out.Stdout(), then os.Stdout
	Stderr   io.Writer
	PosArgs  []string          // Substituted for ${posargs}
	Env      map[string]string // Extra variables, applied last
}

func (o Options) stdout() io.Writer {
	switch {
	case o.Stdout != nil:
		return o.Stdout
	case o.Out != nil:
		return o.Out.Stdout()
	}
	return os.Stdout
}

func (o Options) stderr() io.Writer {
	switch {
	case o.Stderr != nil:
		return o.Stderr
	case o.Out != nil:
		return o.Out.Stderr()
	}
	return os.Stderr
}

func (o Options) executor() Executor {
	if o.Executor == nil {
		return ShellExecutor{}
	}
	return o.Executor
}

// vars returns the interpolation variables for this environment.
func (e *Environment) vars(posArgs []string) map[string]string {
	return map[string]string{
		"env_dir":  e.dir,
		"env_name": e.cfg.Name,
		"env_bin":  e.BinDir(),
		"root":     e.root,
		"version":  e.version,
		"posargs":  shellJoin(posArgs),
	}
}

// Environ builds the child process environment.
// Precedence (lowest to highest): inherited passenv variables, virtualenv
// activation (VIRTUAL_ENV, PATH), setenv, Options.Env.
func (e *Environment) Environ(opts Options) []string {
	patterns := append(slices.Clone(defaultPassEnv), e.cfg.PassEnv...)

	env := make(map[string]string)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		for _, p := range patterns {
			if match.Match(k, p) {
				env[k] = v
				break
			}
		}
	}

	env["VIRTUAL_ENV"] = e.dir
	env["PATH"] = e.BinDir() + string(os.PathListSeparator) + env["PATH"]
	delete(env, "PYTHONHOME")

	vars := e.vars(opts.PosArgs)
	for k, v := range e.cfg.SetEnv {
		env[k] = interpolate(v, vars)
	}
	for k, v := range opts.Env {
		env[k] = v
	}

	result := make([]string, 0, len(env))
	for k, v := range env {
		result = append(result, k+"="+v)
	}
	slices.Sort(result)
	return result
}

// workDir returns the directory commands run in.
func (e *Environment) workDir(vars map[string]string) string {
	if e.cfg.ChangeDir == "" {
		return e.root
	}
	dir := interpolate(e.cfg.ChangeDir, vars)
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(e.root, dir)
	}
	return dir
}

// Setup prepares the environment: resolves the interpreter, creates the
// virtualenv if it does not exist, installs deps when they changed since the
// last setup, and installs the project in editable mode unless skip_install.
func (e *Environment) Setup(ctx context.Context, opts Options) error {
	interpreter, err := ResolveInterpreter(e.cfg.Name, e.BasePython(), opts.LookPath)
	if err != nil {
		return err
	}

	env := e.Environ(opts)

	if _, err := os.Stat(e.Python()); err != nil {
		if err := os.MkdirAll(e.dir, 0755); err != nil {
			return taskerrors.Wrap(err, fmt.Sprintf("[%s] failed to create environment directory", e.cfg.Name))
		}
		// A fresh interpreter has none of the recorded deps.
		if err := os.Remove(filepath.Join(e.dir, depsMarker)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return taskerrors.Wrap(err, fmt.Sprintf("[%s] failed to reset installed deps record", e.cfg.Name))
		}
		line := shellJoin([]string{interpreter, "-m", "venv", e.dir})
		if err := e.exec(ctx, opts, "create", line, e.root, env); err != nil {
			return err
		}
	}

	if len(e.cfg.Deps) > 0 && !e.depsInstalled() {
		line := shellJoin(append([]string{e.Python(), "-m", "pip", "install"}, e.cfg.Deps...))
		if err := e.exec(ctx, opts, "installdeps", line, e.root, env); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(e.dir, depsMarker), []byte(e.depsKey()), 0644); err != nil {
			return taskerrors.Wrap(err, fmt.Sprintf("[%s] failed to record installed deps", e.cfg.Name))
		}
	}

	if !e.cfg.SkipInstall {
		line := shellJoin([]string{e.Python(), "-m", "pip", "install", "-e", "."})
		if err := e.exec(ctx, opts, "develop-inst", line, e.root, env); err != nil {
			return err
		}
	}
	return nil
}

func (e *Environment) depsKey() string {
	return e.BasePython() + "\n" + strings.Join(e.cfg.Deps, "\n") + "\n"
}

func (e *Environment) depsInstalled() bool {
	data, err := os.ReadFile(filepath.Join(e.dir, depsMarker))
	return err == nil && string(data) == e.depsKey()
}

// Run executes the environment's commands in order. The first failing
// command aborts the run with an EnvironmentFailedError; a command prefixed
// with "- " has its exit status ignored.
func (e *Environment) Run(ctx context.Context, opts Options) error {
	vars := e.vars(opts.PosArgs)
	dir := e.workDir(vars)
	env := e.Environ(opts)

	for _, raw := range e.cfg.Commands {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, ignoreExit := strings.CutPrefix(strings.TrimSpace(raw), "- ")
		line = interpolate(line, vars)

		err := e.exec(ctx, opts, "run-test", line, dir, env)
		if err != nil && !(ignoreExit && taskerrors.IsEnvironmentFailed(err)) {
			return err
		}
	}
	return nil
}

func (e *Environment) exec(ctx context.Context, opts Options, phase, line, dir string, env []string) error {
	if opts.Out != nil {
		opts.Out.EnvCommand(e.cfg.Name, phase, line)
	}

	res := opts.executor().Execute(ctx, Command{
		Line:   line,
		Dir:    dir,
		Env:    env,
		Stdout: opts.stdout(),
		Stderr: opts.stderr(),
	})
	if res.Success() {
		return nil
	}
	if res.Err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return &taskerrors.EnvironmentFailedError{
		Name:    e.cfg.Name,
		Command: line,
		Status:  res.ExitCode,
		Cause:   res.Err,
	}
}
