// Package version reads and validates Python package versions.
package version

import (
	"cmp"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// pep440Regex matches public version identifiers (PEP 440, canonical and common variants).
var pep440Regex = regexp.MustCompile(`(?i)^v?` +
	`(?:(\d+)!)?` + // epoch
	`(\d+(?:\.\d+)*)` + // release segment
	`(?:[-_.]?(a|b|c|rc|alpha|beta|pre|preview)[-_.]?(\d*))?` + // pre-release
	`(?:-(\d+)|[-_.]?(post|rev|r)[-_.]?(\d*))?` + // post-release
	`(?:[-_.]?(dev)[-_.]?(\d*))?` + // dev release
	`(?:\+([a-z0-9]+(?:[-_.][a-z0-9]+)*))?$`) // local version

// Version is a parsed PEP 440 version.
type Version struct {
	Epoch   int
	Release []int
	Pre     string // a, b or rc; empty for final releases
	PreN    int
	Post    int // -1 when absent
	Dev     int // -1 when absent
	Local   string
}

// Validate checks if a version string is a valid PEP 440 version.
func Validate(version string) error {
	if !pep440Regex.MatchString(version) {
		return fmt.Errorf("invalid version format: %q", version)
	}
	return nil
}

// Parse parses a PEP 440 version string.
func Parse(version string) (*Version, error) {
	m := pep440Regex.FindStringSubmatch(strings.TrimSpace(version))
	if m == nil {
		return nil, fmt.Errorf("invalid version format: %q", version)
	}

	v := &Version{Post: -1, Dev: -1, Local: strings.ToLower(m[10])}
	// Errors ignored: regex guarantees these capture groups contain only digits
	if m[1] != "" {
		v.Epoch, _ = strconv.Atoi(m[1])
	}
	for _, part := range strings.Split(m[2], ".") {
		n, _ := strconv.Atoi(part)
		v.Release = append(v.Release, n)
	}
	if m[3] != "" {
		v.Pre = normalizePre(strings.ToLower(m[3]))
		v.PreN, _ = strconv.Atoi(m[4])
	}
	switch {
	case m[5] != "":
		v.Post, _ = strconv.Atoi(m[5])
	case m[6] != "":
		v.Post, _ = strconv.Atoi(m[7])
	}
	if m[8] != "" {
		v.Dev, _ = strconv.Atoi(m[9])
	}
	return v, nil
}

func normalizePre(s string) string {
	switch s {
	case "alpha":
		return "a"
	case "beta":
		return "b"
	case "c", "pre", "preview":
		return "rc"
	}
	return s
}

// String returns the normalized form of the version.
func (v *Version) String() string {
	var b strings.Builder
	if v.Epoch != 0 {
		fmt.Fprintf(&b, "%d!", v.Epoch)
	}
	for i, n := range v.Release {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(strconv.Itoa(n))
	}
	if v.Pre != "" {
		fmt.Fprintf(&b, "%s%d", v.Pre, v.PreN)
	}
	if v.Post >= 0 {
		fmt.Fprintf(&b, ".post%d", v.Post)
	}
	if v.Dev >= 0 {
		fmt.Fprintf(&b, ".dev%d", v.Dev)
	}
	if v.Local != "" {
		b.WriteString("+" + v.Local)
	}
	return b.String()
}

// IsPrerelease reports whether the version is a pre- or dev release.
func (v *Version) IsPrerelease() bool {
	return v.Pre != "" || v.Dev >= 0
}

// Normalize returns the canonical spelling of a version string.
func Normalize(version string) (string, error) {
	v, err := Parse(version)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

// Compare compares two version strings.
// Returns -1 if a < b, 0 if a == b, 1 if a > b.
func Compare(a, b string) (int, error) {
	va, err := Parse(a)
	if err != nil {
		return 0, err
	}
	vb, err := Parse(b)
	if err != nil {
		return 0, err
	}
	return va.compare(vb), nil
}

func (v *Version) compare(o *Version) int {
	if c := cmp.Compare(v.Epoch, o.Epoch); c != 0 {
		return c
	}
	// Trailing zeros are insignificant: 1.0 == 1.0.0
	n := max(len(v.Release), len(o.Release))
	for i := 0; i < n; i++ {
		if c := cmp.Compare(segment(v.Release, i), segment(o.Release, i)); c != 0 {
			return c
		}
	}
	if c := cmp.Compare(v.preKey(), o.preKey()); c != 0 {
		return c
	}
	if v.Pre == o.Pre {
		if c := cmp.Compare(v.PreN, o.PreN); c != 0 {
			return c
		}
	}
	if c := cmp.Compare(v.Post, o.Post); c != 0 {
		return c
	}
	// A dev release sorts before the same version without one.
	if c := cmp.Compare(devKey(v.Dev), devKey(o.Dev)); c != 0 {
		return c
	}
	return strings.Compare(v.Local, o.Local)
}

func segment(release []int, i int) int {
	if i < len(release) {
		return release[i]
	}
	return 0
}

// preKey orders dev-only < a < b < rc < final.
func (v *Version) preKey() int {
	switch v.Pre {
	case "a":
		return 1
	case "b":
		return 2
	case "rc":
		return 3
	}
	if v.Dev >= 0 && v.Post < 0 {
		return 0
	}
	return 4
}

func devKey(dev int) int {
	if dev < 0 {
		return int(^uint(0) >> 1)
	}
	return dev
}
