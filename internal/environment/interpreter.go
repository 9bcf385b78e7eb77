package environment

import (
	"os/exec"
	"regexp"

	taskerrors "github.com/AndreyAkinshin/taskmatrix/internal/errors"
)

// pyEnvPattern captures the implementation and version digits of pyXY / pypyXY names.
var pyEnvPattern = regexp.MustCompile(`^(py|pypy)(\d?)(\d*)$`)

// LookPathFunc resolves an executable name to a path. exec.LookPath satisfies it.
type LookPathFunc func(file string) (string, error)

// InferBasePython derives the interpreter for an environment name:
// py38 -> python3.8, py3 -> python3, pypy39 -> pypy3.9, anything else -> python3.
func InferBasePython(name string) string {
	m := pyEnvPattern.FindStringSubmatch(name)
	if m == nil {
		return "python3"
	}
	prog := "python"
	if m[1] == "pypy" {
		prog = "pypy"
	}
	switch {
	case m[2] == "" && prog == "pypy":
		return "pypy"
	case m[2] == "":
		return "python3"
	case m[3] == "":
		return prog + m[2]
	default:
		return prog + m[2] + "." + m[3]
	}
}

// ResolveInterpreter finds the interpreter executable for an environment.
func ResolveInterpreter(env, basepython string, lookPath LookPathFunc) (string, error) {
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	path, err := lookPath(basepython)
	if err != nil {
		return "", &taskerrors.InterpreterMissingError{Name: env, Interpreter: basepython}
	}
	return path, nil
}
