package task

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tidwall/match"

	taskerrors "github.com/AndreyAkinshin/taskmatrix/internal/errors"
	"github.com/AndreyAkinshin/taskmatrix/internal/project"
)

// clean removes every path matched by the configured patterns.
// Missing paths are not an error, so running it twice succeeds.
func (d *Dispatcher) clean(p *project.Project, inv Invocation) error {
	paths, err := CleanTargets(p.Root, p.Config.Clean.Paths)
	if err != nil {
		return err
	}

	if inv.DryRun {
		d.out.Info("Dry run, would remove %d path(s):", len(paths))
		for _, path := range paths {
			d.out.StepDetail("%s", relTo(p.Root, path))
		}
		return nil
	}

	for _, path := range paths {
		if err := os.RemoveAll(path); err != nil {
			return taskerrors.Wrap(err, fmt.Sprintf("failed to remove %s", relTo(p.Root, path)))
		}
		d.out.Debug("removed %s", relTo(p.Root, path))
	}

	if len(paths) == 0 {
		d.out.Info("Nothing to clean.")
		return nil
	}
	d.out.Success("Removed %d path(s).", len(paths))
	return nil
}

// CleanTargets expands clean patterns relative to root. Plain patterns use
// filepath.Glob; patterns containing "**" match at any depth. Paths nested
// under another match are dropped. Patterns may not escape root.
func CleanTargets(root string, patterns []string) ([]string, error) {
	var found []string
	for _, pattern := range patterns {
		if err := checkProjectPath("clean pattern", pattern); err != nil {
			return nil, err
		}

		var matches []string
		var err error
		if strings.Contains(pattern, "**") {
			matches, err = deepMatches(root, filepath.ToSlash(pattern))
		} else {
			matches, err = filepath.Glob(filepath.Join(root, pattern))
		}
		if err != nil {
			return nil, taskerrors.Configf("clean pattern %q: %v", pattern, err)
		}
		found = append(found, matches...)
	}

	slices.Sort(found)
	found = slices.Compact(found)

	result := found[:0]
	for _, path := range found {
		if n := len(result); n > 0 && isWithin(result[n-1], path) {
			continue
		}
		result = append(result, path)
	}
	return result, nil
}

// checkProjectPath rejects paths that are empty, absolute or climb out of
// the project root. what names the setting in the error message.
func checkProjectPath(what, path string) error {
	if path == "" {
		return taskerrors.Configf("%s must not be empty", what)
	}
	if filepath.IsAbs(path) || filepath.VolumeName(path) != "" || strings.HasPrefix(filepath.ToSlash(path), "/") {
		return taskerrors.Configf("%s %q must be relative to the project root", what, path)
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return taskerrors.Configf("%s %q must not leave the project root", what, path)
		}
	}
	return nil
}

// deepMatches walks root and returns paths whose slash-separated relative
// path matches pattern. "**/" also matches at the top level.
func deepMatches(root, pattern string) ([]string, error) {
	var matches []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if path == root {
			return nil
		}
		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if matchDeep(filepath.ToSlash(rel), pattern) {
			matches = append(matches, path)
			if d.IsDir() {
				return filepath.SkipDir
			}
		}
		return nil
	})
	return matches, err
}

func matchDeep(rel, pattern string) bool {
	if match.Match(rel, pattern) {
		return true
	}
	if rest, ok := strings.CutPrefix(pattern, "**/"); ok {
		return match.Match(rel, rest)
	}
	return false
}

func isWithin(parent, path string) bool {
	return strings.HasPrefix(path, parent+string(filepath.Separator))
}

func relTo(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil {
		return rel
	}
	return path
}
