package integration

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/AndreyAkinshin/taskmatrix/internal/errors"
	"github.com/AndreyAkinshin/taskmatrix/internal/task"
)

func TestTest_RunsDefaultMatrix(t *testing.T) {
	installFakeInterpreters(t, "python3.8", "python3.9")
	root := copyFixture(t, "rfc7807")
	h := newHarness(t, root)

	if err := h.d.Dispatch(context.Background(), task.Test, task.Invocation{WorkDir: root}); err != nil {
		t.Fatalf("test error = %v\nstderr:\n%s", err, h.stderr.String())
	}
	if got, want := runLog(t, root), []string{"py38", "py39"}; !slices.Equal(got, want) {
		t.Errorf("ran.log = %v, want %v", got, want)
	}
	for _, name := range []string{"py38", "py39"} {
		if _, err := os.Stat(filepath.Join(root, ".taskmatrix", "envs", name, "bin", "python")); err != nil {
			t.Errorf("environment %s not created: %v", name, err)
		}
	}
	if !strings.Contains(h.stdout.String(), "All 2 environment(s) succeeded.") {
		t.Errorf("summary missing:\n%s", h.stdout.String())
	}
}

func TestUnitTest_SelectedEnvironmentWithPosArgs(t *testing.T) {
	installFakeInterpreters(t, "python3.8", "python3.9")
	root := copyFixture(t, "rfc7807")
	h := newHarness(t, root)

	inv := task.Invocation{WorkDir: root, Args: []string{"py39"}, PosArgs: []string{"-k", "problem"}}
	if err := h.d.Dispatch(context.Background(), "unit-test", inv); err != nil {
		t.Fatalf("unit-test error = %v\nstderr:\n%s", err, h.stderr.String())
	}
	if got, want := runLog(t, root), []string{"py39 -k problem"}; !slices.Equal(got, want) {
		t.Errorf("ran.log = %v, want %v", got, want)
	}
}

// hidePython39 resolves interpreters from PATH but never finds python3.9,
// even when the host has one installed.
func hidePython39(o *task.Options) {
	o.LookPath = func(file string) (string, error) {
		if file == "python3.9" {
			return "", exec.ErrNotFound
		}
		return exec.LookPath(file)
	}
}

func TestTest_MissingInterpreter(t *testing.T) {
	installFakeInterpreters(t, "python3.8")
	root := copyFixture(t, "rfc7807")
	h := newHarness(t, root, hidePython39)

	err := h.d.Dispatch(context.Background(), task.Test, task.Invocation{WorkDir: root})
	if !errors.IsInterpreterMissing(err) {
		t.Fatalf("error = %v, want InterpreterMissing", err)
	}
	if code := errors.GetExitCode(err); code != errors.ExitEnvironmentError {
		t.Errorf("exit code = %d, want %d", code, errors.ExitEnvironmentError)
	}
	if got := runLog(t, root); !slices.Equal(got, []string{"py38"}) {
		t.Errorf("ran.log = %v, want py38 to still run", got)
	}
}

func TestTest_SkipMissingInterpreters(t *testing.T) {
	installFakeInterpreters(t, "python3.8")
	root := copyFixture(t, "rfc7807")
	h := newHarness(t, root, hidePython39, func(o *task.Options) { o.SkipMissingInterpreters = true })

	if err := h.d.Dispatch(context.Background(), task.Test, task.Invocation{WorkDir: root}); err != nil {
		t.Fatalf("test error = %v", err)
	}
	if got := runLog(t, root); !slices.Equal(got, []string{"py38"}) {
		t.Errorf("ran.log = %v, want only py38", got)
	}
	if !strings.Contains(h.stdout.String()+h.stderr.String(), "skipped") {
		t.Errorf("py39 not reported as skipped:\n%s%s", h.stdout.String(), h.stderr.String())
	}
}

func TestLint_AbortsAtFirstFailure(t *testing.T) {
	installFakeInterpreters(t, "python3.9")
	t.Setenv("LINT_EXIT", "7")
	root := copyFixture(t, "rfc7807")
	h := newHarness(t, root)

	err := h.d.Dispatch(context.Background(), task.Lint, task.Invocation{WorkDir: root})
	if !errors.IsEnvironmentFailed(err) {
		t.Fatalf("error = %v, want EnvironmentFailed", err)
	}
	if code := errors.GetExitCode(err); code != 7 {
		t.Errorf("exit code = %d, want 7", code)
	}
	if got, want := runLog(t, root), []string{"isort", "flake8"}; !slices.Equal(got, want) {
		t.Errorf("ran.log = %v, want %v", got, want)
	}
}

func TestLint_Passes(t *testing.T) {
	installFakeInterpreters(t, "python3.9")
	t.Setenv("LINT_EXIT", "0")
	root := copyFixture(t, "rfc7807")
	h := newHarness(t, root)

	if err := h.d.Dispatch(context.Background(), task.Lint, task.Invocation{WorkDir: root}); err != nil {
		t.Fatalf("lint error = %v\nstderr:\n%s", err, h.stderr.String())
	}
	if got, want := runLog(t, root), []string{"isort", "flake8", "mypy"}; !slices.Equal(got, want) {
		t.Errorf("ran.log = %v, want %v", got, want)
	}
}

func TestRelease_CredentialsForwarded(t *testing.T) {
	installFakeInterpreters(t, "python3.9")
	root := copyFixture(t, "rfc7807")
	h := newHarness(t, root)
	h.env["TWINE_USERNAME"] = "__token__"
	h.env["TWINE_PASSWORD"] = "pypi-secret"

	if err := h.d.Dispatch(context.Background(), "ci-pypi-release", task.Invocation{WorkDir: root}); err != nil {
		t.Fatalf("release error = %v\nstderr:\n%s", err, h.stderr.String())
	}
	if got, want := runLog(t, root), []string{"upload __token__ 0.2.1"}; !slices.Equal(got, want) {
		t.Errorf("ran.log = %v, want %v", got, want)
	}
}

func TestRelease_WithoutCredentials(t *testing.T) {
	installFakeInterpreters(t, "python3.9")
	root := copyFixture(t, "rfc7807")
	h := newHarness(t, root)

	err := h.d.Dispatch(context.Background(), task.Release, task.Invocation{WorkDir: root})
	if !errors.IsCredentialsMissing(err) {
		t.Fatalf("error = %v, want CredentialsMissing", err)
	}
	if got := runLog(t, root); len(got) != 0 {
		t.Errorf("commands ran without credentials: %v", got)
	}
	if _, err := os.Stat(filepath.Join(root, ".taskmatrix", "envs", "release")); !os.IsNotExist(err) {
		t.Error("release environment was created without credentials")
	}
}

func TestClean_Idempotent(t *testing.T) {
	installFakeInterpreters(t, "python3.8", "python3.9")
	root := copyFixture(t, "rfc7807")
	h := newHarness(t, root)
	ctx := context.Background()

	if err := h.d.Dispatch(ctx, task.Test, task.Invocation{WorkDir: root}); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(root, "dist", "fastapi_rfc7807-0.2.1-py3-none-any.whl"), "")
	writeFile(t, filepath.Join(root, "build", "lib", "x.py"), "")
	writeFile(t, filepath.Join(root, "fastapi_rfc7807.egg-info", "PKG-INFO"), "")
	writeFile(t, filepath.Join(root, "fastapi_rfc7807", "__pycache__", "__init__.cpython-38.pyc"), "")
	writeFile(t, filepath.Join(root, "tests", "__pycache__", "test_placeholder.cpython-38.pyc"), "")

	for i := range 2 {
		if err := h.d.Dispatch(ctx, task.Clean, task.Invocation{WorkDir: root}); err != nil {
			t.Fatalf("clean #%d error = %v", i+1, err)
		}
	}

	for _, rel := range []string{"dist", "build", "fastapi_rfc7807.egg-info", "fastapi_rfc7807/__pycache__", "tests/__pycache__", ".taskmatrix/envs"} {
		if _, err := os.Stat(filepath.Join(root, rel)); !os.IsNotExist(err) {
			t.Errorf("%s still exists", rel)
		}
	}
	for _, rel := range []string{"setup.py", "fastapi_rfc7807/__init__.py", "tests/test_placeholder.py"} {
		if _, err := os.Stat(filepath.Join(root, rel)); err != nil {
			t.Errorf("%s was removed: %v", rel, err)
		}
	}
	if !strings.Contains(h.stdout.String(), "Nothing to clean.") {
		t.Errorf("second clean should report nothing to clean:\n%s", h.stdout.String())
	}
}

func TestVersion_PrintsPackageVersion(t *testing.T) {
	root := copyFixture(t, "rfc7807")
	h := newHarness(t, root)

	if err := h.d.Dispatch(context.Background(), task.Version, task.Invocation{WorkDir: filepath.Join(root, "tests")}); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(h.stdout.String()); got != "0.2.1" {
		t.Errorf("version = %q, want 0.2.1", got)
	}
}
