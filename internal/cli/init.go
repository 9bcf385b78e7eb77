package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/AndreyAkinshin/taskmatrix/internal/config"
	"github.com/AndreyAkinshin/taskmatrix/internal/errors"
	"github.com/AndreyAkinshin/taskmatrix/internal/output"
	"github.com/AndreyAkinshin/taskmatrix/internal/project"
)

// cmdInit creates taskmatrix.json for the package in the working directory.
// It is idempotent: existing files are never overwritten.
func cmdInit(args []string, opts *GlobalOptions) int {
	if wantsHelp(args) {
		printInitUsage()
		return 0
	}
	for _, arg := range args {
		out.ErrorPrefix("init: unknown option %q", arg)
		return errors.ExitConfigError
	}

	dir := opts.Dir
	if dir == "" {
		var err error
		if dir, err = os.Getwd(); err != nil {
			out.ErrorPrefix("%v", err)
			return errors.ExitRuntimeError
		}
	}

	configPath := filepath.Join(dir, project.ConfigFileName)
	var created []string

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := defaultProjectConfig(dir)
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			out.ErrorPrefix("%v", err)
			return errors.ExitRuntimeError
		}
		data = append(data, '\n')
		if err := os.WriteFile(configPath, data, 0644); err != nil {
			out.ErrorPrefix("%v", err)
			return errors.ExitEnvironmentError
		}
		created = append(created, project.ConfigFileName)
	}

	if updateGitignore(dir) {
		created = append(created, ".gitignore")
	}

	w := out
	w.Println("")
	if len(created) == 0 {
		w.Info("Project already initialized (nothing to do)")
		return 0
	}
	w.Success("Initialized taskmatrix project in %s", dir)
	w.HelpSection("Created or updated:")
	for _, f := range created {
		w.Println("  - %s", f)
	}
	printNextSteps(w)
	return 0
}

// defaultProjectConfig returns the starting configuration for a package in dir.
// The package directory is taken from the first directory holding an __init__.py.
func defaultProjectConfig(dir string) *config.Config {
	name := sanitizeProjectName(filepath.Base(dir))
	pkg := detectPackage(dir)
	if pkg == "" {
		pkg = strings.ReplaceAll(name, "-", "_")
	}

	return &config.Config{
		Project: config.ProjectConfig{Name: name, Package: pkg},
		Matrix:  &config.MatrixConfig{EnvList: []string{"py38", "py39"}},
		Environments: []config.EnvironmentConfig{
			{Name: "py38", Deps: []string{"pytest"}, Commands: []string{"pytest ${posargs}"}},
			{Name: "py39", Deps: []string{"pytest"}, Commands: []string{"pytest ${posargs}"}},
			{
				Name:        "lint",
				Description: "Import order, style, types and package metadata",
				Deps:        []string{"isort", "flake8", "mypy", "build", "twine"},
				Commands: []string{
					"isort --check-only --diff " + pkg + " tests",
					"flake8 " + pkg + " tests",
					"mypy " + pkg,
					"python -m build --outdir ${env_dir}/dist",
					"twine check ${env_dir}/dist/*",
				},
			},
			{
				Name:        "fmt",
				Description: "Sort imports and format",
				SkipInstall: true,
				Deps:        []string{"isort", "black"},
				Commands:    []string{"isort " + pkg + " tests", "black " + pkg + " tests"},
			},
			{
				Name:        "deps",
				Description: "Pin dependencies",
				SkipInstall: true,
				Deps:        []string{"pip-tools"},
				Commands:    []string{"pip-compile --output-file " + config.DefaultManifest + " setup.py"},
			},
			{
				Name:        "build",
				Description: "Build distributions",
				SkipInstall: true,
				Deps:        []string{"build"},
				Commands:    []string{"python -m build"},
			},
			{
				Name:        "release",
				Description: "Build and upload distributions",
				SkipInstall: true,
				Deps:        []string{"build", "twine"},
				PassEnv:     []string{config.DefaultUsernameEnv, config.DefaultPasswordEnv},
				Commands:    []string{"python -m build", "twine upload dist/*"},
			},
		},
	}
}

// detectPackage returns the first top-level directory that is a Python package.
func detectPackage(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == "tests" || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, entry.Name(), "__init__.py")); err == nil {
			return entry.Name()
		}
	}
	return ""
}

// sanitizeProjectName converts a directory name to a valid distribution name.
func sanitizeProjectName(name string) string {
	name = strings.ToLower(name)

	var result strings.Builder
	prevHyphen := false
	for _, c := range name {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			result.WriteRune(c)
			prevHyphen = false
		} else if !prevHyphen && result.Len() > 0 {
			result.WriteRune('-')
			prevHyphen = true
		}
	}

	s := strings.TrimSuffix(result.String(), "-")
	if s == "" {
		s = "my-package"
	}
	return s
}

// updateGitignore adds the environment directory to .gitignore.
// Returns true when the file was changed.
func updateGitignore(root string) bool {
	gitignorePath := filepath.Join(root, ".gitignore")
	entries := []string{"# taskmatrix", ".taskmatrix/"}

	existingContent := ""
	if data, err := os.ReadFile(gitignorePath); err == nil {
		existingContent = string(data)
	}
	if strings.Contains(existingContent, "# taskmatrix") {
		return false
	}

	var content strings.Builder
	if existingContent != "" {
		content.WriteString(existingContent)
		if !strings.HasSuffix(existingContent, "\n") {
			content.WriteString("\n")
		}
		content.WriteString("\n")
	}
	for _, entry := range entries {
		content.WriteString(entry)
		content.WriteString("\n")
	}

	if err := os.WriteFile(gitignorePath, []byte(content.String()), 0644); err != nil {
		out.Warning("could not update .gitignore: %v", err)
		return false
	}
	return true
}

func printInitUsage() {
	w := out

	w.HelpTitle("taskmatrix init - create taskmatrix.json")

	w.HelpSection("Usage:")
	w.HelpUsage("taskmatrix [-C <dir>] init")

	w.HelpSection("Description:")
	w.Println("  Writes a starting taskmatrix.json with py38/py39 test environments and")
	w.Println("  lint, fmt, deps and release environments. Existing files are kept.")
	w.Println("")
}

// printNextSteps prints guidance after initialization.
func printNextSteps(w *output.Writer) {
	w.HelpSection("Next steps:")
	w.Println("  1. Review %s (environments, envlist, pipeline)", project.ConfigFileName)
	w.Println("  2. Run 'taskmatrix envs' to list environments")
	w.Println("  3. Run 'taskmatrix test' to run the matrix")
	w.Println("  4. Run 'taskmatrix ci workflow --write' to generate the CI workflow")
	w.Println("")
	w.Hint("Run 'taskmatrix help' for the full task list.")
}
