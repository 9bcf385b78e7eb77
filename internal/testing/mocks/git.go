package mocks

import (
	"context"
	"sync"
)

// Git implements release.Git in memory.
type Git struct {
	mu     sync.Mutex
	tags   map[string]string // tag -> message
	pushed []string          // "remote tag"
	calls  []string

	// PushErr, when set, is returned by PushTag.
	PushErr error
	// TagErr, when set, is returned by CreateTag.
	TagErr error
}

// NewGit creates a fake repository with the given existing tags.
func NewGit(existing ...string) *Git {
	g := &Git{tags: make(map[string]string)}
	for _, t := range existing {
		g.tags[t] = ""
	}
	return g
}

// TagExists implements release.Git.
func (g *Git) TagExists(ctx context.Context, tag string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, "exists "+tag)
	_, ok := g.tags[tag]
	return ok, nil
}

// CreateTag implements release.Git.
func (g *Git) CreateTag(ctx context.Context, tag, message string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, "tag "+tag)
	if g.TagErr != nil {
		return g.TagErr
	}
	g.tags[tag] = message
	return nil
}

// DeleteTag implements release.Git.
func (g *Git) DeleteTag(ctx context.Context, tag string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, "delete "+tag)
	delete(g.tags, tag)
	return nil
}

// PushTag implements release.Git.
func (g *Git) PushTag(ctx context.Context, remote, tag string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, "push "+remote+" "+tag)
	if g.PushErr != nil {
		return g.PushErr
	}
	g.pushed = append(g.pushed, remote+" "+tag)
	return nil
}

// HasTag reports whether tag exists in the fake repository.
func (g *Git) HasTag(tag string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.tags[tag]
	return ok
}

// TagMessage returns the annotation of tag.
func (g *Git) TagMessage(tag string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tags[tag]
}

// Pushed returns the pushed "remote tag" pairs.
func (g *Git) Pushed() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.pushed...)
}

// Calls returns every operation in call order.
func (g *Git) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

// Env returns a LookupEnv-style function backed by vars.
func Env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}
