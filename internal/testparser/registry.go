package testparser

import "strings"

// Registry maps parser names to parsers.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry creates a new parser registry with all built-in parsers.
func NewRegistry() *Registry {
	r := &Registry{
		parsers: make(map[string]Parser),
	}

	pytestParser := &PytestParser{}
	unittestParser := &UnittestParser{}

	r.parsers["pytest"] = pytestParser
	r.parsers["py.test"] = pytestParser
	r.parsers["unittest"] = unittestParser

	return r
}

// GetParser returns the parser registered under name.
// Returns nil if no parser is found.
func (r *Registry) GetParser(name string) Parser {
	return r.parsers[strings.ToLower(name)]
}

// GetParserForCommands guesses a parser from an environment's commands.
// Returns nil when no command invokes a known test runner.
func (r *Registry) GetParserForCommands(commands []string) Parser {
	for _, cmd := range commands {
		fields := strings.Fields(cmd)
		for i, f := range fields {
			switch {
			case f == "pytest" || f == "py.test" || strings.HasSuffix(f, "/pytest"):
				return r.parsers["pytest"]
			case f == "-m" && i+1 < len(fields):
				if p := r.parsers[fields[i+1]]; p != nil {
					return p
				}
			}
		}
	}
	return nil
}

// RegisterParser adds a custom parser.
func (r *Registry) RegisterParser(name string, parser Parser) {
	r.parsers[strings.ToLower(name)] = parser
}
