// Package task maps the project task vocabulary (build, clean, deps, fmt,
// lint, test, version, tag, release, help) onto environments and built-in actions.
package task

import (
	"fmt"
	"sort"

	"github.com/AndreyAkinshin/taskmatrix/internal/config"
)

// Kind says how a task is carried out.
type Kind int

const (
	// KindDelegate runs a single environment.
	KindDelegate Kind = iota
	// KindMatrix runs the default matrix or the environments named as arguments.
	KindMatrix
	// KindBuiltin runs an action implemented by taskmatrix itself.
	KindBuiltin
)

// Task is one entry of the task vocabulary.
type Task struct {
	Name        string
	Description string
	Kind        Kind
	Environment string // Delegated environment for KindDelegate
	AliasOf     string // Canonical task name when this entry is an alias
}

// Built-in task names.
const (
	Build   = "build"
	Clean   = "clean"
	Deps    = "deps"
	Fmt     = "fmt"
	Help    = "help"
	Lint    = "lint"
	Release = "release"
	Tag     = "tag"
	Test    = "test"
	Version = "version"
)

var builtinTasks = []Task{
	{Name: Build, Kind: KindDelegate, Environment: "build", Description: "Build the source and wheel distributions into dist/"},
	{Name: Clean, Kind: KindBuiltin, Description: "Remove build artifacts, caches and virtual environments"},
	{Name: Deps, Kind: KindDelegate, Environment: "deps", Description: "Regenerate the pinned dependency manifest"},
	{Name: Fmt, Kind: KindDelegate, Environment: "fmt", Description: "Sort imports and format the source tree"},
	{Name: Help, Kind: KindBuiltin, Description: "List available tasks"},
	{Name: Lint, Kind: KindDelegate, Environment: "lint", Description: "Check import order, style, types and package metadata"},
	{Name: Release, Kind: KindDelegate, Environment: "release", Description: "Build the distributions and upload them to the package index"},
	{Name: Tag, Kind: KindBuiltin, Description: "Create and push an annotated tag for the current version"},
	{Name: Test, Kind: KindMatrix, Description: "Run the test suite in every matrix environment (or the named ones)"},
	{Name: Version, Kind: KindBuiltin, Description: "Print the package version from packaging metadata"},
}

var aliases = map[string]string{
	"unit-test":       Test,
	"github-tag":      Tag,
	"ci-pypi-release": Release,
}

// canonical resolves an alias to its task name.
func canonical(name string) string {
	if target, ok := aliases[name]; ok {
		return target
	}
	return name
}

// IsBuiltin reports whether name is a built-in task or alias.
func IsBuiltin(name string) bool {
	name = canonical(name)
	for _, t := range builtinTasks {
		if t.Name == name {
			return true
		}
	}
	return false
}

// Tasks returns every task known for cfg, aliases included, sorted by name.
// Each name appears exactly once. cfg may be nil.
func Tasks(cfg *config.Config) []Task {
	byName := make(map[string]Task, len(builtinTasks)+len(aliases))
	for _, t := range builtinTasks {
		byName[t.Name] = t
	}

	if cfg != nil {
		for name, override := range cfg.Tasks {
			name = canonical(name)
			t, ok := byName[name]
			if !ok {
				t = Task{Name: name, Kind: KindDelegate, Environment: name}
			}
			if override.Environment != "" && t.Kind == KindDelegate {
				t.Environment = override.Environment
			}
			if override.Description != "" {
				t.Description = override.Description
			}
			if t.Description == "" {
				t.Description = fmt.Sprintf("Run the %s environment", t.Environment)
			}
			byName[name] = t
		}
	}

	for alias, target := range aliases {
		byName[alias] = Task{
			Name:        alias,
			Kind:        byName[target].Kind,
			Environment: byName[target].Environment,
			Description: fmt.Sprintf("Alias for %s", target),
			AliasOf:     target,
		}
	}

	result := make([]Task, 0, len(byName))
	for _, t := range byName {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// Lookup returns the task for name with aliases resolved to their target.
func Lookup(cfg *config.Config, name string) (Task, bool) {
	name = canonical(name)
	for _, t := range Tasks(cfg) {
		if t.Name == name {
			return t, true
		}
	}
	return Task{}, false
}
