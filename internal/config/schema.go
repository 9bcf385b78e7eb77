// Package config provides loading and validation for taskmatrix.json.
package config

// Config represents the complete taskmatrix.json configuration.
type Config struct {
	Project      ProjectConfig         `json:"project"`
	Matrix       *MatrixConfig         `json:"matrix,omitempty"`
	Environments []EnvironmentConfig   `json:"environments"`
	Tasks        map[string]TaskConfig `json:"tasks,omitempty"`
	Clean        *CleanConfig          `json:"clean,omitempty"`
	Deps         *DepsConfig           `json:"deps,omitempty"`
	Release      *ReleaseConfig        `json:"release,omitempty"`
	Pipeline     *PipelineConfig       `json:"pipeline,omitempty"`
}

// ProjectConfig contains package metadata.
type ProjectConfig struct {
	Name          string `json:"name"`
	Package       string `json:"package,omitempty"`        // Import package directory (defaults to name with - replaced by _)
	VersionSource string `json:"version_source,omitempty"` // pyproject.toml, <pkg>/__init__.py, or a plain file; auto-detected when empty
}

// MatrixConfig configures the environment matrix as a whole.
type MatrixConfig struct {
	EnvList                 []string `json:"envlist,omitempty"`                   // Default environments for a full run
	SkipMissingInterpreters bool     `json:"skip_missing_interpreters,omitempty"` // Report missing interpreters as skipped
	EnvDir                  string   `json:"env_dir,omitempty"`                   // Root of the per-environment directories
}

// EnvironmentConfig defines one named environment.
type EnvironmentConfig struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	BasePython  string            `json:"basepython,omitempty"`
	Deps        []string          `json:"deps,omitempty"`
	Commands    []string          `json:"commands"`
	PassEnv     []string          `json:"passenv,omitempty"`
	SetEnv      map[string]string `json:"setenv,omitempty"`
	SkipInstall bool              `json:"skip_install,omitempty"`
	Depends     []string          `json:"depends,omitempty"`
	ChangeDir   string            `json:"changedir,omitempty"`
	TestParser  string            `json:"test_parser,omitempty"` // Parser for test counts in the summary (e.g. "pytest")
}

// TaskConfig overrides how a delegating task is wired.
type TaskConfig struct {
	Environment string `json:"environment,omitempty"`
	Description string `json:"description,omitempty"`
}

// CleanConfig lists artifact paths removed by the clean task.
type CleanConfig struct {
	Paths []string `json:"paths,omitempty"`
}

// DepsConfig configures the pinned dependency manifest.
type DepsConfig struct {
	Manifest string `json:"manifest,omitempty"`
}

// ReleaseConfig configures tagging and package upload.
type ReleaseConfig struct {
	TagFormat   string `json:"tag_format,omitempty"`
	Remote      string `json:"remote,omitempty"`
	UsernameEnv string `json:"username_env,omitempty"`
	PasswordEnv string `json:"password_env,omitempty"`
}

// PipelineConfig holds the static switches read by the external CI engine.
type PipelineConfig struct {
	Python              string   `json:"python,omitempty"`
	Branches            []string `json:"branches,omitempty"`
	PublishToIndex      bool     `json:"publish_to_index,omitempty"`
	PublishToRelease    bool     `json:"publish_to_release,omitempty"`
	ReleaseAssets       []string `json:"release_assets,omitempty"`
	SkipIntegrationTest bool     `json:"skip_integration_test,omitempty"`
	SkipContainer       bool     `json:"skip_container,omitempty"`
	SkipSetup           bool     `json:"skip_setup,omitempty"`
}

// Environment returns the environment with the given name.
func (c *Config) Environment(name string) (EnvironmentConfig, bool) {
	for _, env := range c.Environments {
		if env.Name == name {
			return env, true
		}
	}
	return EnvironmentConfig{}, false
}

// EnvironmentNames returns environment names in declaration order.
func (c *Config) EnvironmentNames() []string {
	names := make([]string, 0, len(c.Environments))
	for _, env := range c.Environments {
		names = append(names, env.Name)
	}
	return names
}
