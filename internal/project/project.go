package project

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/AndreyAkinshin/taskmatrix/internal/config"
	"github.com/AndreyAkinshin/taskmatrix/internal/version"
)

// packagingFiles mark a directory as an installable Python project.
var packagingFiles = []string{"pyproject.toml", "setup.py", "setup.cfg"}

// Project represents a loaded taskmatrix project.
type Project struct {
	Root     string
	Config   *config.Config
	Warnings []string

	// Version is the package version read from packaging metadata.
	// Empty when VersionErr is set.
	Version       string
	VersionSource string
	VersionErr    error
}

// LoadProject finds and loads a project from the current directory.
func LoadProject() (*Project, error) {
	root, err := FindRoot()
	if err != nil {
		return nil, err
	}
	return LoadProjectFrom(root)
}

// LoadProjectFrom loads a project from a specified root directory.
// A missing version is not an error here; only tasks that need it fail.
func LoadProjectFrom(root string) (*Project, error) {
	cfg, warnings, err := config.LoadAndValidate(filepath.Join(root, ConfigFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	p := &Project{
		Root:     root,
		Config:   cfg,
		Warnings: warnings,
	}
	p.Version, p.VersionSource, p.VersionErr = version.Detect(root, cfg.Project.Package, cfg.Project.VersionSource)

	if needsPackaging(cfg) && !IsPythonProject(root) {
		p.Warnings = append(p.Warnings, fmt.Sprintf(
			"no packaging metadata (%s) in %s; editable installs will fail", joinNames(packagingFiles), root))
	}
	return p, nil
}

// ConfigPath returns the full path to the project configuration file.
func (p *Project) ConfigPath() string {
	return filepath.Join(p.Root, ConfigFileName)
}

// IsPythonProject reports whether dir contains packaging metadata.
func IsPythonProject(dir string) bool {
	for _, name := range packagingFiles {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// needsPackaging reports whether any environment installs the project.
func needsPackaging(cfg *config.Config) bool {
	for _, env := range cfg.Environments {
		if !env.SkipInstall {
			return true
		}
	}
	return false
}

func joinNames(names []string) string {
	s := ""
	for i, n := range names {
		if i > 0 {
			s += ", "
		}
		s += n
	}
	return s
}
