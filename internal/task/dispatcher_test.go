package task

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/AndreyAkinshin/taskmatrix/internal/environment"
	taskerrors "github.com/AndreyAkinshin/taskmatrix/internal/errors"
	"github.com/AndreyAkinshin/taskmatrix/internal/matrix"
	"github.com/AndreyAkinshin/taskmatrix/internal/output"
	"github.com/AndreyAkinshin/taskmatrix/internal/release"
	"github.com/AndreyAkinshin/taskmatrix/internal/testing/mocks"
)

const projectConfig = `{
  "project": {"name": "fastapi-rfc7807"},
  "environments": [
    {"name": "py38", "deps": ["pytest"], "commands": ["pytest --env ${env_name} ${posargs}"]},
    {"name": "py39", "deps": ["pytest"], "commands": ["pytest --env ${env_name} ${posargs}"]},
    {"name": "lint", "skip_install": true, "commands": ["isort --check-only .", "flake8", "mypy fastapi_rfc7807"]},
    {"name": "fmt", "skip_install": true, "commands": ["isort .", "black ."]},
    {"name": "deps", "skip_install": true, "commands": ["pip-compile --output-file requirements.txt"]},
    {"name": "release", "skip_install": true, "commands": ["python -m build", "twine upload dist/*"]},
    {"name": "sphinx", "skip_install": true, "commands": ["sphinx-build docs build/docs"]}
  ],
  "tasks": {"docs": {"environment": "sphinx", "description": "Build the documentation"}},
  "release": {"tag_format": "v{version}"}
}`

type fixture struct {
	root   string
	exec   *mocks.Executor
	git    *mocks.Git
	env    map[string]string
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	d      *Dispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	t.Setenv(matrix.ParallelEnvVar, "")

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "taskmatrix.json"), projectConfig)
	writeFile(t, filepath.Join(root, "setup.py"), "from setuptools import setup\nsetup()\n")
	writeFile(t, filepath.Join(root, "fastapi_rfc7807", "__init__.py"), "__version__ = '0.2.1'\n")

	f := &fixture{
		root:   root,
		exec:   mocks.NewExecutor(),
		git:    mocks.NewGit(),
		env:    map[string]string{},
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
	}
	f.d = New(Options{
		Out:       output.NewWithWriters(f.stdout, f.stderr, false),
		Executor:  f.exec,
		LookPath:  mocks.LookPath(),
		NewGit:    func(string) release.Git { return f.git },
		LookupEnv: mocks.Env(f.env),
	})
	return f
}

func (f *fixture) dispatch(name string, args ...string) error {
	return f.d.Dispatch(context.Background(), name, Invocation{WorkDir: f.root, Args: args})
}

// commandLines returns configured commands, dropping virtualenv setup.
func (f *fixture) commandLines() []string {
	var lines []string
	for _, l := range f.exec.Lines() {
		if strings.Contains(l, " -m venv ") || strings.Contains(l, " -m pip ") {
			continue
		}
		lines = append(lines, l)
	}
	return lines
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDispatch_Help(t *testing.T) {
	f := newFixture(t)

	if err := f.dispatch("help"); err != nil {
		t.Fatalf("help error = %v", err)
	}

	counts := map[string]int{}
	var order []string
	for _, line := range strings.Split(f.stdout.String(), "\n") {
		if !strings.HasPrefix(line, "  ") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			t.Errorf("help line without description: %q", line)
			continue
		}
		counts[fields[0]]++
		order = append(order, fields[0])
	}

	for _, name := range []string{"clean", "deps", "fmt", "lint", "test", "unit-test", "version", "tag", "github-tag", "release", "ci-pypi-release", "help", "docs"} {
		if counts[name] != 1 {
			t.Errorf("help lists %q %d times, want 1", name, counts[name])
		}
	}
	if !slices.IsSorted(order) {
		t.Errorf("help order = %v, want sorted", order)
	}
}

func TestDispatch_HelpOutsideProject(t *testing.T) {
	stdout := &bytes.Buffer{}
	d := New(Options{Out: output.NewWithWriters(stdout, &bytes.Buffer{}, false)})

	if err := d.Dispatch(context.Background(), "help", Invocation{WorkDir: t.TempDir()}); err != nil {
		t.Fatalf("help error = %v", err)
	}
	if !strings.Contains(stdout.String(), "ci-pypi-release") {
		t.Errorf("help output missing built-in tasks:\n%s", stdout.String())
	}
}

func TestDispatch_UnknownTask(t *testing.T) {
	f := newFixture(t)

	err := f.dispatch("deploy")
	if err == nil {
		t.Fatal("expected error")
	}
	if code := taskerrors.GetExitCode(err); code != taskerrors.ExitConfigError {
		t.Errorf("exit code = %d, want %d", code, taskerrors.ExitConfigError)
	}
	if len(f.exec.Lines()) != 0 {
		t.Errorf("commands ran for unknown task: %v", f.exec.Lines())
	}
}

func TestDispatch_NotAProject(t *testing.T) {
	d := New(Options{Out: output.NewWithWriters(&bytes.Buffer{}, &bytes.Buffer{}, false)})

	err := d.Dispatch(context.Background(), "test", Invocation{WorkDir: t.TempDir()})
	if code := taskerrors.GetExitCode(err); code != taskerrors.ExitConfigError {
		t.Errorf("exit code = %d (%v), want %d", code, err, taskerrors.ExitConfigError)
	}
}

func TestDispatch_WorkDirSubdirectory(t *testing.T) {
	f := newFixture(t)
	sub := filepath.Join(f.root, "fastapi_rfc7807")

	err := f.d.Dispatch(context.Background(), "version", Invocation{WorkDir: sub})
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if got := strings.TrimSpace(f.stdout.String()); got != "0.2.1" {
		t.Errorf("version output = %q, want 0.2.1", got)
	}
}

func TestDispatch_Clean_Idempotent(t *testing.T) {
	f := newFixture(t)
	artifacts := []string{
		"build/lib/x.py",
		"dist/fastapi_rfc7807-0.2.1.tar.gz",
		"fastapi_rfc7807.egg-info/PKG-INFO",
		".pytest_cache/v/cache",
		".coverage",
		"__pycache__/setup.cpython-38.pyc",
		"fastapi_rfc7807/__pycache__/__init__.cpython-38.pyc",
		".taskmatrix/envs/py38/bin/python",
	}
	for _, a := range artifacts {
		writeFile(t, filepath.Join(f.root, a), "x")
	}

	for i := 0; i < 2; i++ {
		if err := f.dispatch("clean"); err != nil {
			t.Fatalf("clean run %d error = %v", i+1, err)
		}
	}

	for _, a := range artifacts {
		if _, err := os.Stat(filepath.Join(f.root, a)); !os.IsNotExist(err) {
			t.Errorf("%s still exists after clean", a)
		}
	}
	for _, keep := range []string{"setup.py", "fastapi_rfc7807/__init__.py", "taskmatrix.json"} {
		if _, err := os.Stat(filepath.Join(f.root, keep)); err != nil {
			t.Errorf("%s removed by clean: %v", keep, err)
		}
	}
	if !strings.Contains(f.stdout.String(), "Nothing to clean.") {
		t.Errorf("second clean output = %q", f.stdout.String())
	}
}

func TestDispatch_Clean_RejectsArgs(t *testing.T) {
	f := newFixture(t)
	if err := f.dispatch("clean", "dist"); taskerrors.GetExitCode(err) != taskerrors.ExitConfigError {
		t.Errorf("clean with args error = %v", err)
	}
}

func TestCleanTargets(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "dist", "a.whl"), "x")
	writeFile(t, filepath.Join(root, "pkg", "__pycache__", "m.pyc"), "x")
	writeFile(t, filepath.Join(root, "pkg", "sub", "__pycache__", "n.pyc"), "x")
	writeFile(t, filepath.Join(root, ".git", "__pycache__", "keep"), "x")

	got, err := CleanTargets(root, []string{"dist", "dist/*", "**/__pycache__"})
	if err != nil {
		t.Fatalf("CleanTargets() error = %v", err)
	}
	want := []string{
		filepath.Join(root, "dist"),
		filepath.Join(root, "pkg", "__pycache__"),
		filepath.Join(root, "pkg", "sub", "__pycache__"),
	}
	if !slices.Equal(got, want) {
		t.Errorf("CleanTargets() = %v, want %v", got, want)
	}
}

func TestCleanTargets_RejectsEscapingPatterns(t *testing.T) {
	for _, pattern := range []string{"../outside", "build/../../x", "/tmp", ""} {
		if _, err := CleanTargets(t.TempDir(), []string{pattern}); err == nil {
			t.Errorf("CleanTargets(%q) error = nil", pattern)
		}
	}
}

func TestDispatch_Test_RunsEveryEnvironment(t *testing.T) {
	f := newFixture(t)
	f.exec.FailOn("--env py38", 3)

	err := f.dispatch("test")
	if err == nil {
		t.Fatal("expected error")
	}
	if !f.exec.Ran("--env py39") {
		t.Error("py39 did not run after py38 failed")
	}
	if code := taskerrors.GetExitCode(err); code != 3 {
		t.Errorf("exit code = %d, want 3", code)
	}
	if !strings.Contains(f.stdout.String(), "Matrix Summary") {
		t.Errorf("summary missing:\n%s", f.stdout.String())
	}
	if !strings.Contains(f.stderr.String(), "1 of 2 environment(s) failed.") {
		t.Errorf("final failure line missing:\n%s", f.stderr.String())
	}
}

func TestDispatch_UnitTest_NamedEnvironments(t *testing.T) {
	f := newFixture(t)

	err := f.d.Dispatch(context.Background(), "unit-test", Invocation{
		WorkDir: f.root,
		Args:    []string{"py39"},
		PosArgs: []string{"-k", "problem"},
	})
	if err != nil {
		t.Fatalf("unit-test error = %v", err)
	}
	want := []string{"pytest --env py39 -k problem"}
	if got := f.commandLines(); !slices.Equal(got, want) {
		t.Errorf("commands = %v, want %v", got, want)
	}
}

func TestDispatch_Test_UnknownEnvironment(t *testing.T) {
	f := newFixture(t)

	err := f.dispatch("test", "py27")
	if !taskerrors.IsUnknownEnvironment(err) {
		t.Errorf("error = %v, want UnknownEnvironment", err)
	}
	if len(f.exec.Lines()) != 0 {
		t.Errorf("commands ran: %v", f.exec.Lines())
	}
}

func TestDispatch_Lint_AbortsAtFirstFailure(t *testing.T) {
	f := newFixture(t)
	f.exec.FailOn("flake8", 1)

	err := f.dispatch("lint")
	var failed *taskerrors.EnvironmentFailedError
	if !errors.As(err, &failed) || failed.Command != "flake8" {
		t.Fatalf("error = %v, want EnvironmentFailed on flake8", err)
	}
	want := []string{"isort --check-only .", "flake8"}
	if got := f.commandLines(); !slices.Equal(got, want) {
		t.Errorf("commands = %v, want %v", got, want)
	}
}

func TestDispatch_Fmt(t *testing.T) {
	f := newFixture(t)

	if err := f.dispatch("fmt"); err != nil {
		t.Fatalf("fmt error = %v", err)
	}
	want := []string{"isort .", "black ."}
	if got := f.commandLines(); !slices.Equal(got, want) {
		t.Errorf("commands = %v, want %v", got, want)
	}
}

func TestDispatch_Deps_TruncatesManifest(t *testing.T) {
	f := newFixture(t)
	manifest := filepath.Join(f.root, "requirements.txt")
	writeFile(t, manifest, "fastapi==0.50.0\nstale==1.0\n")

	var sizeAtRun int64 = -1
	f.exec.WithExecFunc(func(ctx context.Context, cmd environment.Command) environment.Result {
		if strings.HasPrefix(cmd.Line, "pip-compile") {
			if info, err := os.Stat(manifest); err == nil {
				sizeAtRun = info.Size()
			}
		}
		return environment.Result{}
	})

	if err := f.dispatch("deps"); err != nil {
		t.Fatalf("deps error = %v", err)
	}
	if sizeAtRun != 0 {
		t.Errorf("manifest size when deps environment ran = %d, want 0", sizeAtRun)
	}
}

func TestDispatch_Deps_ManifestOutsideRoot(t *testing.T) {
	for _, manifest := range []string{"../requirements.txt", "pins/../../requirements.txt", "/tmp/requirements.txt"} {
		t.Run(manifest, func(t *testing.T) {
			f := newFixture(t)
			cfg := strings.Replace(projectConfig, `"release": {`, `"deps": {"manifest": "`+manifest+`"},
  "release": {`, 1)
			writeFile(t, filepath.Join(f.root, "taskmatrix.json"), cfg)
			outside := filepath.Join(filepath.Dir(f.root), "requirements.txt")
			writeFile(t, outside, "keep==1.0\n")

			err := f.dispatch("deps")
			if code := taskerrors.GetExitCode(err); code != taskerrors.ExitConfigError {
				t.Fatalf("error = %v (exit %d), want config error", err, code)
			}
			if data, _ := os.ReadFile(outside); string(data) != "keep==1.0\n" {
				t.Errorf("file outside the project was modified: %q", data)
			}
			if lines := f.exec.Lines(); len(lines) != 0 {
				t.Errorf("commands ran: %v", lines)
			}
		})
	}
}

func TestDispatch_Release_CredentialsMissing(t *testing.T) {
	f := newFixture(t)
	f.env["TWINE_USERNAME"] = "__token__"

	err := f.dispatch("ci-pypi-release")
	if !taskerrors.IsCredentialsMissing(err) {
		t.Fatalf("error = %v, want CredentialsMissing", err)
	}
	if code := taskerrors.GetExitCode(err); code != taskerrors.ExitEnvironmentError {
		t.Errorf("exit code = %d, want %d", code, taskerrors.ExitEnvironmentError)
	}
	if lines := f.exec.Lines(); len(lines) != 0 {
		t.Errorf("commands ran without credentials: %v", lines)
	}
}

func TestDispatch_Release_ForwardsCredentials(t *testing.T) {
	f := newFixture(t)
	f.env["TWINE_USERNAME"] = "__token__"
	f.env["TWINE_PASSWORD"] = "pypi-secret"

	if err := f.dispatch("release"); err != nil {
		t.Fatalf("release error = %v", err)
	}

	var upload *environment.Command
	for _, cmd := range f.exec.Commands() {
		if strings.HasPrefix(cmd.Line, "twine upload") {
			upload = &cmd
		}
	}
	if upload == nil {
		t.Fatal("twine upload did not run")
	}
	for _, kv := range []string{"TWINE_USERNAME=__token__", "TWINE_PASSWORD=pypi-secret"} {
		if !slices.Contains(upload.Env, kv) {
			t.Errorf("upload environment missing %s", kv)
		}
	}
}

func TestDispatch_Tag(t *testing.T) {
	f := newFixture(t)

	if err := f.dispatch("github-tag"); err != nil {
		t.Fatalf("github-tag error = %v", err)
	}
	if !f.git.HasTag("v0.2.1") {
		t.Error("tag v0.2.1 not created")
	}
	if got := f.git.Pushed(); !slices.Equal(got, []string{"origin v0.2.1"}) {
		t.Errorf("Pushed() = %v", got)
	}
}

func TestDispatch_Tag_AlreadyExists(t *testing.T) {
	f := newFixture(t)
	f.git = mocks.NewGit("v0.2.1")

	err := f.dispatch("tag")
	if !taskerrors.IsTagAlreadyExists(err) {
		t.Fatalf("error = %v, want TagAlreadyExists", err)
	}
	if len(f.git.Pushed()) != 0 {
		t.Errorf("pushed despite existing tag: %v", f.git.Pushed())
	}
}

func TestDispatch_CustomTask(t *testing.T) {
	f := newFixture(t)

	if err := f.dispatch("docs"); err != nil {
		t.Fatalf("docs error = %v", err)
	}
	want := []string{"sphinx-build docs build/docs"}
	if got := f.commandLines(); !slices.Equal(got, want) {
		t.Errorf("commands = %v, want %v", got, want)
	}
}
