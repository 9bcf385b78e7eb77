// Package topsort orders environments so that dependencies run before their dependents.
package topsort

import (
	"fmt"
	"sort"
)

// Graph maps a node to the nodes it depends on.
type Graph map[string][]string

// Sort returns nodes in dependency order: every node appears after all of its
// transitive dependencies. Requested nodes keep their relative order where the
// dependencies allow it.
//
// When nodes is nil, every node in the graph is sorted (alphabetical seed order).
// When nodes is given, only those nodes and their transitive dependencies are included.
func Sort(g Graph, nodes []string) ([]string, error) {
	if nodes == nil {
		nodes = make([]string, 0, len(g))
		for name := range g {
			nodes = append(nodes, name)
		}
		sort.Strings(nodes)
	}

	var result []string
	visited := make(map[string]bool)
	inStack := make(map[string]bool)

	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		if inStack[name] {
			return fmt.Errorf("circular dependency: %s", formatCycle(append(path, name)))
		}
		if visited[name] {
			return nil
		}

		deps, exists := g[name]
		if !exists {
			return fmt.Errorf("%q not found", name)
		}

		inStack[name] = true
		for _, dep := range deps {
			if err := visit(dep, append(path, name)); err != nil {
				return err
			}
		}
		inStack[name] = false
		visited[name] = true
		result = append(result, name)
		return nil
	}

	for _, name := range nodes {
		if err := visit(name, nil); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// Validate checks the graph for self-references, undefined dependencies and cycles.
func Validate(g Graph) error {
	names := make([]string, 0, len(g))
	for name := range g {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, dep := range g[name] {
			if dep == name {
				return fmt.Errorf("%q depends on itself", name)
			}
			if _, ok := g[dep]; !ok {
				return fmt.Errorf("%q depends on undefined %q", name, dep)
			}
		}
	}

	_, err := Sort(g, nil)
	return err
}

func formatCycle(path []string) string {
	// Trim the path to start at the repeated node.
	last := path[len(path)-1]
	for i, n := range path {
		if n == last {
			path = path[i:]
			break
		}
	}
	s := path[0]
	for _, n := range path[1:] {
		s += " -> " + n
	}
	return s
}
