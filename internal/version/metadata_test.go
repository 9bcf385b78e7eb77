package version

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadPyproject(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		wantErr error
	}{
		{
			name:    "project table",
			content: "[project]\nname = \"fastapi-rfc7807\"\nversion = \"0.3.0\"\n",
			want:    "0.3.0",
		},
		{
			name:    "poetry table",
			content: "[tool.poetry]\nname = \"x\"\nversion = \"1.2.0rc1\"\n",
			want:    "1.2.0rc1",
		},
		{
			name:    "project wins over poetry",
			content: "[project]\nversion = \"2.0\"\n\n[tool.poetry]\nversion = \"1.0\"\n",
			want:    "2.0",
		},
		{
			name:    "dynamic version",
			content: "[project]\nname = \"x\"\ndynamic = [\"version\"]\n\n[tool.poetry]\nversion = \"1.0\"\n",
			wantErr: ErrNoVersion,
		},
		{
			name:    "no version",
			content: "[build-system]\nrequires = [\"setuptools\"]\n",
			wantErr: ErrNoVersion,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "pyproject.toml", tt.content)
			got, err := ReadPyproject(path)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("ReadPyproject() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadPyproject() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ReadPyproject() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReadPyproject_Malformed(t *testing.T) {
	path := writeFile(t, t.TempDir(), "pyproject.toml", "[project\nversion=")
	_, err := ReadPyproject(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse") {
		t.Errorf("ReadPyproject() error = %v, want parse error", err)
	}
}

const initPy = `"""Problem details for FastAPI."""

__title__ = 'fastapi-rfc7807'
__version__ = '0.2.1'
__description__ = "RFC-7807 compliant problem detail error response handler"
__author__ = 'Vapor IO'
__license__ = 'GNU General Public License v3.0'

from .middleware import register  # noqa
`

func TestReadModuleMetadata(t *testing.T) {
	path := writeFile(t, t.TempDir(), "fastapi_rfc7807/__init__.py", initPy)

	meta, err := ReadModuleMetadata(path)
	if err != nil {
		t.Fatalf("ReadModuleMetadata() error = %v", err)
	}

	want := map[string]string{
		"__title__":       "fastapi-rfc7807",
		"__version__":     "0.2.1",
		"__description__": "RFC-7807 compliant problem detail error response handler",
		"__author__":      "Vapor IO",
		"__license__":     "GNU General Public License v3.0",
	}
	for k, v := range want {
		if meta[k] != v {
			t.Errorf("meta[%s] = %q, want %q", k, meta[k], v)
		}
	}
}

func TestReadModule(t *testing.T) {
	dir := t.TempDir()

	v, err := ReadModule(writeFile(t, dir, "pkg/__init__.py", initPy))
	if err != nil || v != "0.2.1" {
		t.Errorf("ReadModule() = %q, %v; want 0.2.1", v, err)
	}

	_, err = ReadModule(writeFile(t, dir, "empty/__init__.py", "import os\n"))
	if !errors.Is(err, ErrNoVersion) {
		t.Errorf("ReadModule() without __version__ error = %v, want ErrNoVersion", err)
	}

	_, err = ReadModule(writeFile(t, dir, "bad/__init__.py", "__version__ = 'not a version'\n"))
	if err == nil || !strings.Contains(err.Error(), "invalid version") {
		t.Errorf("ReadModule() with bad version error = %v", err)
	}
}

func TestReadPlain(t *testing.T) {
	dir := t.TempDir()

	v, err := ReadPlain(writeFile(t, dir, "VERSION", "1.4.0\n"))
	if err != nil || v != "1.4.0" {
		t.Errorf("ReadPlain() = %q, %v; want 1.4.0", v, err)
	}

	if _, err := ReadPlain(writeFile(t, dir, "EMPTY", "  \n")); err == nil {
		t.Error("ReadPlain() on empty file = nil error")
	}

	_, err = ReadPlain(filepath.Join(dir, "MISSING"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("ReadPlain() on missing file error = %v, want ErrNotExist", err)
	}
}

func TestDetect(t *testing.T) {
	t.Run("pyproject first", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "pyproject.toml", "[project]\nversion = \"3.0\"\n")
		writeFile(t, root, "pkg/__init__.py", initPy)

		v, path, err := Detect(root, "pkg", "")
		if err != nil {
			t.Fatalf("Detect() error = %v", err)
		}
		if v != "3.0" || filepath.Base(path) != "pyproject.toml" {
			t.Errorf("Detect() = %q from %s", v, path)
		}
	})

	t.Run("dynamic falls back to package module", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "pyproject.toml", "[project]\ndynamic = [\"version\"]\n")
		writeFile(t, root, "pkg/__init__.py", initPy)

		v, path, err := Detect(root, "pkg", "")
		if err != nil {
			t.Fatalf("Detect() error = %v", err)
		}
		if v != "0.2.1" || !strings.HasSuffix(path, "__init__.py") {
			t.Errorf("Detect() = %q from %s", v, path)
		}
	})

	t.Run("version file last", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "VERSION", "0.0.1\n")

		v, _, err := Detect(root, "pkg", "")
		if err != nil || v != "0.0.1" {
			t.Errorf("Detect() = %q, %v", v, err)
		}
	})

	t.Run("explicit source", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "pyproject.toml", "[project]\nversion = \"3.0\"\n")
		writeFile(t, root, "src/about.py", "__version__ = \"9.9\"\n")

		v, _, err := Detect(root, "pkg", "src/about.py")
		if err != nil || v != "9.9" {
			t.Errorf("Detect() = %q, %v", v, err)
		}
	})

	t.Run("nothing found", func(t *testing.T) {
		_, _, err := Detect(t.TempDir(), "pkg", "")
		if err == nil || !strings.Contains(err.Error(), "no version metadata found") {
			t.Errorf("Detect() error = %v", err)
		}
	})

	t.Run("invalid version stops search", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, root, "pyproject.toml", "[project]\nversion = \"banana\"\n")
		writeFile(t, root, "VERSION", "1.0\n")

		if _, _, err := Detect(root, "pkg", ""); err == nil {
			t.Error("Detect() = nil error, want invalid version")
		}
	})
}
