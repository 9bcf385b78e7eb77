package config

import (
	"regexp"
	"strings"
)

// Default configuration values.
const (
	DefaultEnvDir       = ".taskmatrix/envs"
	DefaultManifest     = "requirements.txt"
	DefaultTagFormat    = "{version}"
	DefaultRemote       = "origin"
	DefaultUsernameEnv  = "TWINE_USERNAME"
	DefaultPasswordEnv  = "TWINE_PASSWORD"
	DefaultPipelinePy   = "3.8"
	DefaultReleaseAsset = "dist/*"
)

// DefaultCleanPaths are the artifact globs removed by clean when none are configured.
var DefaultCleanPaths = []string{
	"build",
	"dist",
	"*.egg-info",
	".pytest_cache",
	".mypy_cache",
	".coverage",
	"htmlcov",
	"**/__pycache__",
	DefaultEnvDir,
}

// interpreterEnvPattern matches tox-style interpreter environment names (py38, py310, pypy3).
var interpreterEnvPattern = regexp.MustCompile(`^(py|pypy)\d*$`)

// IsInterpreterEnv reports whether name follows the pyXY naming convention.
func IsInterpreterEnv(name string) bool {
	return interpreterEnvPattern.MatchString(name)
}

// applyDefaults fills in default values for unset configuration fields.
func applyDefaults(cfg *Config) {
	applyProjectDefaults(cfg)
	applyMatrixDefaults(cfg)
	applyCleanDefaults(cfg)
	applyDepsDefaults(cfg)
	applyReleaseDefaults(cfg)
	applyPipelineDefaults(cfg)
}

func applyProjectDefaults(cfg *Config) {
	if cfg.Project.Package == "" {
		cfg.Project.Package = strings.ReplaceAll(cfg.Project.Name, "-", "_")
	}
}

func applyMatrixDefaults(cfg *Config) {
	if cfg.Matrix == nil {
		cfg.Matrix = &MatrixConfig{}
	}
	if cfg.Matrix.EnvDir == "" {
		cfg.Matrix.EnvDir = DefaultEnvDir
	}
	// Without an explicit envlist the matrix is every interpreter environment.
	if len(cfg.Matrix.EnvList) == 0 {
		for _, env := range cfg.Environments {
			if IsInterpreterEnv(env.Name) {
				cfg.Matrix.EnvList = append(cfg.Matrix.EnvList, env.Name)
			}
		}
	}
}

func applyCleanDefaults(cfg *Config) {
	if cfg.Clean == nil {
		cfg.Clean = &CleanConfig{}
	}
	if len(cfg.Clean.Paths) == 0 {
		cfg.Clean.Paths = append([]string(nil), DefaultCleanPaths...)
	}
}

func applyDepsDefaults(cfg *Config) {
	if cfg.Deps == nil {
		cfg.Deps = &DepsConfig{}
	}
	if cfg.Deps.Manifest == "" {
		cfg.Deps.Manifest = DefaultManifest
	}
}

func applyReleaseDefaults(cfg *Config) {
	if cfg.Release == nil {
		cfg.Release = &ReleaseConfig{}
	}
	if cfg.Release.TagFormat == "" {
		cfg.Release.TagFormat = DefaultTagFormat
	}
	if cfg.Release.Remote == "" {
		cfg.Release.Remote = DefaultRemote
	}
	if cfg.Release.UsernameEnv == "" {
		cfg.Release.UsernameEnv = DefaultUsernameEnv
	}
	if cfg.Release.PasswordEnv == "" {
		cfg.Release.PasswordEnv = DefaultPasswordEnv
	}
}

func applyPipelineDefaults(cfg *Config) {
	if cfg.Pipeline == nil {
		cfg.Pipeline = &PipelineConfig{}
	}
	if cfg.Pipeline.Python == "" {
		cfg.Pipeline.Python = DefaultPipelinePy
	}
	if len(cfg.Pipeline.Branches) == 0 {
		cfg.Pipeline.Branches = []string{"main"}
	}
	if len(cfg.Pipeline.ReleaseAssets) == 0 {
		cfg.Pipeline.ReleaseAssets = []string{DefaultReleaseAsset}
	}
}
