package environment

import (
	"regexp"
	"strings"
)

// varPattern matches ${name} references.
var varPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// escapePlaceholder temporarily stands in for escaped $${ sequences.
// NUL cannot appear in JSON strings or shell command lines.
const escapePlaceholder = "\x00ESCAPED\x00"

// interpolate replaces ${name} with values from vars.
// $${name} yields a literal ${name}; unknown names are kept as-is.
func interpolate(s string, vars map[string]string) string {
	result := strings.ReplaceAll(s, "$${", escapePlaceholder)
	result = varPattern.ReplaceAllStringFunc(result, func(match string) string {
		if val, ok := vars[match[2:len(match)-1]]; ok {
			return val
		}
		return match
	})
	return strings.ReplaceAll(result, escapePlaceholder, "${")
}

// ShellQuote quotes s for POSIX sh when it contains anything but safe characters.
func ShellQuote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./=:,+@%", r)) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func shellJoin(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = ShellQuote(a)
	}
	return strings.Join(quoted, " ")
}
