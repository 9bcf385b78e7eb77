// Package project finds and loads a taskmatrix project.
package project

import (
	"errors"
	"os"
	"path/filepath"
)

// ConfigFileName is the name of the configuration file at the project root.
const ConfigFileName = "taskmatrix.json"

// ErrNoProjectRoot is returned when taskmatrix.json is not found.
var ErrNoProjectRoot = errors.New("taskmatrix.json not found: not a taskmatrix project (or any parent up to the root)")

// FindRoot walks up from the current working directory until it finds taskmatrix.json.
func FindRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return FindRootFrom(cwd)
}

// FindRootFrom walks up from startDir until it finds taskmatrix.json.
func FindRootFrom(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if info, err := os.Stat(filepath.Join(dir, ConfigFileName)); err == nil && !info.IsDir() {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNoProjectRoot
		}
		dir = parent
	}
}
