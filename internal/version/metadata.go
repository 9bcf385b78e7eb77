package version

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// ErrNoVersion is returned when a metadata source exists but declares no static version.
var ErrNoVersion = errors.New("no static version declared")

// dunderRegex extracts module-level metadata assignments such as __version__ = '1.2.3'.
var dunderRegex = regexp.MustCompile(`(?m)^(__\w+__)\s*=\s*['"]([^'"]+)['"]`)

type pyproject struct {
	Project struct {
		Name    string   `toml:"name"`
		Version string   `toml:"version"`
		Dynamic []string `toml:"dynamic"`
	} `toml:"project"`
	Tool struct {
		Poetry struct {
			Version string `toml:"version"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

// ReadPyproject reads the version from a pyproject.toml file.
// [project].version wins over [tool.poetry].version. A version listed in
// [project].dynamic yields ErrNoVersion so callers can fall back to the package module.
func ReadPyproject(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("version source file not found: %w", err)
	}

	var doc pyproject
	if err := toml.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", path, err)
	}

	v := doc.Project.Version
	if v == "" && !slices.Contains(doc.Project.Dynamic, "version") {
		v = doc.Tool.Poetry.Version
	}
	if v == "" {
		return "", fmt.Errorf("%s: %w", path, ErrNoVersion)
	}
	return checked(path, v)
}

// ReadModuleMetadata returns the dunder metadata (__title__, __version__, ...)
// declared at the top level of a Python module.
func ReadModuleMetadata(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("version source file not found: %w", err)
	}

	meta := make(map[string]string)
	for _, m := range dunderRegex.FindAllStringSubmatch(string(data), -1) {
		meta[m[1]] = m[2]
	}
	return meta, nil
}

// ReadModule reads __version__ from a Python module such as <package>/__init__.py.
func ReadModule(path string) (string, error) {
	meta, err := ReadModuleMetadata(path)
	if err != nil {
		return "", err
	}
	v, ok := meta["__version__"]
	if !ok {
		return "", fmt.Errorf("%s: %w", path, ErrNoVersion)
	}
	return checked(path, v)
}

// ReadPlain reads a file whose entire content is the version.
// Returns the underlying os error (wrapped) if the file cannot be read,
// allowing callers to use errors.Is(err, os.ErrNotExist).
func ReadPlain(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("version source file not found: %w", err)
	}

	v := strings.TrimSpace(string(data))
	if v == "" {
		return "", fmt.Errorf("version source file is empty: %s", path)
	}
	return checked(path, v)
}

// Read reads the version from path, choosing the reader by file name.
func Read(path string) (string, error) {
	switch {
	case filepath.Base(path) == "pyproject.toml":
		return ReadPyproject(path)
	case strings.HasSuffix(path, ".py"):
		return ReadModule(path)
	default:
		return ReadPlain(path)
	}
}

// Detect finds the package version under root.
//
// When source is set it is the only place consulted (relative to root).
// Otherwise the candidates are tried in order: pyproject.toml,
// <pkg>/__init__.py, VERSION. Missing files and files without a static
// version are skipped; any other error stops the search.
// Returns the version and the path it was read from.
func Detect(root, pkg, source string) (string, string, error) {
	if source != "" {
		path := source
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, source)
		}
		v, err := Read(path)
		return v, path, err
	}

	candidates := []string{filepath.Join(root, "pyproject.toml")}
	if pkg != "" {
		candidates = append(candidates, filepath.Join(root, pkg, "__init__.py"))
	}
	candidates = append(candidates, filepath.Join(root, "VERSION"))

	for _, path := range candidates {
		v, err := Read(path)
		if err == nil {
			return v, path, nil
		}
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, ErrNoVersion) {
			continue
		}
		return "", path, err
	}

	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i], _ = filepath.Rel(root, c)
	}
	return "", "", fmt.Errorf("no version metadata found (looked in %s)", strings.Join(names, ", "))
}

func checked(path, v string) (string, error) {
	if err := Validate(v); err != nil {
		return "", fmt.Errorf("invalid version in %s: %w", path, err)
	}
	return v, nil
}
