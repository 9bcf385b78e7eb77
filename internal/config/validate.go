package config

import (
	"fmt"
	"regexp"

	"github.com/AndreyAkinshin/taskmatrix/internal/topsort"
)

var (
	// Project name: PEP 508 distribution name.
	projectNamePattern = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9._-]*[A-Za-z0-9])?$`)

	// Environment name: letters, digits, dots, underscores, hyphens.
	envNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks a configuration for errors and returns warnings for non-fatal issues.
// It expects defaults to be applied already.
func Validate(cfg *Config) (warnings []string, err error) {
	if err := ValidateProjectName(cfg.Project.Name); err != nil {
		return nil, err
	}
	if err := validateEnvironments(cfg); err != nil {
		return nil, err
	}
	if err := validateEnvList(cfg); err != nil {
		return nil, err
	}
	if err := validateTasks(cfg); err != nil {
		return nil, err
	}

	if cfg.Matrix != nil && len(cfg.Matrix.EnvList) == 0 && len(cfg.Environments) > 0 {
		warnings = append(warnings, "matrix.envlist is empty and no pyXY environments are defined; test will run nothing")
	}
	return warnings, nil
}

func validateEnvironments(cfg *Config) error {
	seen := make(map[string]bool, len(cfg.Environments))
	graph := make(topsort.Graph, len(cfg.Environments))

	for i, env := range cfg.Environments {
		field := fmt.Sprintf("environments[%d]", i)
		if env.Name == "" {
			return &ValidationError{Field: field + ".name", Message: "is required"}
		}
		if !envNamePattern.MatchString(env.Name) {
			return &ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("%q must match pattern %s", env.Name, envNamePattern),
			}
		}
		if seen[env.Name] {
			return &ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("duplicate environment name %q", env.Name),
			}
		}
		seen[env.Name] = true

		if len(env.Commands) == 0 {
			return &ValidationError{
				Field:   fmt.Sprintf("environments.%s.commands", env.Name),
				Message: "must contain at least one command",
			}
		}
		for j, cmd := range env.Commands {
			if cmd == "" {
				return &ValidationError{
					Field:   fmt.Sprintf("environments.%s.commands[%d]", env.Name, j),
					Message: "must not be empty",
				}
			}
		}

		graph[env.Name] = env.Depends
	}

	if err := topsort.Validate(graph); err != nil {
		return &ValidationError{Field: "environments.depends", Message: err.Error()}
	}
	return nil
}

func validateEnvList(cfg *Config) error {
	if cfg.Matrix == nil {
		return nil
	}
	for _, name := range cfg.Matrix.EnvList {
		if _, ok := cfg.Environment(name); !ok {
			return &ValidationError{
				Field:   "matrix.envlist",
				Message: fmt.Sprintf("references undefined environment %q", name),
			}
		}
	}
	return nil
}

func validateTasks(cfg *Config) error {
	for name, task := range cfg.Tasks {
		if task.Environment == "" {
			continue
		}
		if _, ok := cfg.Environment(task.Environment); !ok {
			return &ValidationError{
				Field:   fmt.Sprintf("tasks.%s.environment", name),
				Message: fmt.Sprintf("references undefined environment %q", task.Environment),
			}
		}
	}
	return nil
}

// ValidateProjectName checks if a project name is a valid distribution name.
func ValidateProjectName(name string) error {
	if name == "" {
		return &ValidationError{Field: "project.name", Message: "is required"}
	}
	if len(name) > 128 {
		return &ValidationError{Field: "project.name", Message: "must be 128 characters or less"}
	}
	if !projectNamePattern.MatchString(name) {
		return &ValidationError{
			Field:   "project.name",
			Message: "must be a valid distribution name (letters, digits, '.', '_', '-')",
		}
	}
	return nil
}
