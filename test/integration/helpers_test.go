// Package integration contains end-to-end tests that run taskmatrix against
// fixture projects with the real shell executor.
package integration

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/AndreyAkinshin/taskmatrix/internal/matrix"
	"github.com/AndreyAkinshin/taskmatrix/internal/output"
	"github.com/AndreyAkinshin/taskmatrix/internal/task"
	"github.com/AndreyAkinshin/taskmatrix/internal/testing/mocks"
)

var (
	fixturesDirOnce sync.Once
	fixturesDirPath string
)

// fixturesDir returns the path to the test fixtures directory.
func fixturesDir() string {
	fixturesDirOnce.Do(func() {
		_, filename, _, _ := runtime.Caller(0)
		fixturesDirPath = filepath.Join(filepath.Dir(filename), "..", "fixtures")
	})
	return fixturesDirPath
}

// copyFixture copies a fixture project into a temporary directory so runs
// can create environments and artifacts without touching the repository.
func copyFixture(t *testing.T, name string) string {
	t.Helper()
	dst := filepath.Join(t.TempDir(), name)
	if err := os.CopyFS(dst, os.DirFS(filepath.Join(fixturesDir(), name))); err != nil {
		t.Fatalf("copy fixture %s: %v", name, err)
	}
	return dst
}

// fakeInterpreterScript stands in for a Python interpreter. "-m venv DIR"
// creates DIR/bin/python as a copy of itself; anything else succeeds.
const fakeInterpreterScript = `#!/bin/sh
if [ "$1" = "-m" ] && [ "$2" = "venv" ]; then
  mkdir -p "$3/bin" && cp "$0" "$3/bin/python"
  exit $?
fi
exit 0
`

// installFakeInterpreters puts fake pythonX.Y executables first on PATH.
func installFakeInterpreters(t *testing.T, names ...string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake interpreters are POSIX shell scripts")
	}
	bin := t.TempDir()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(bin, name), []byte(fakeInterpreterScript), 0755); err != nil {
			t.Fatal(err)
		}
	}
	t.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))
	t.Setenv(matrix.ParallelEnvVar, "")
}

type harness struct {
	root   string
	env    map[string]string
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	d      *task.Dispatcher
}

// newHarness returns a dispatcher that uses the real shell executor and
// searches PATH for interpreters unless an option overrides it.
func newHarness(t *testing.T, root string, options ...func(*task.Options)) *harness {
	t.Helper()
	h := &harness{
		root:   root,
		env:    map[string]string{},
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
	}
	opts := task.Options{
		Out:       output.NewWithWriters(h.stdout, h.stderr, false),
		LookupEnv: mocks.Env(h.env),
	}
	for _, o := range options {
		o(&opts)
	}
	h.d = task.New(opts)
	return h
}

// runLog returns the trimmed lines the fixture commands appended to ran.log.
func runLog(t *testing.T, root string) []string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, "ran.log"))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatal(err)
	}
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		lines = append(lines, strings.TrimSpace(line))
	}
	return lines
}

func mkdir(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0755); err != nil {
		t.Fatal(err)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	mkdir(t, filepath.Dir(path))
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}
