package release

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Git is the subset of git operations needed to tag a release.
type Git interface {
	TagExists(ctx context.Context, tag string) (bool, error)
	CreateTag(ctx context.Context, tag, message string) error
	DeleteTag(ctx context.Context, tag string) error
	PushTag(ctx context.Context, remote, tag string) error
}

// ExecGit runs the git binary in Dir.
type ExecGit struct {
	Dir string
}

// TagExists reports whether tag exists locally.
func (g ExecGit) TagExists(ctx context.Context, tag string) (bool, error) {
	_, err := g.run(ctx, "rev-parse", "--verify", "--quiet", "refs/tags/"+tag)
	if err == nil {
		return true, nil
	}
	// rev-parse --verify --quiet exits 1 without output for a missing ref.
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return false, nil
	}
	return false, err
}

// CreateTag creates an annotated tag at HEAD.
func (g ExecGit) CreateTag(ctx context.Context, tag, message string) error {
	_, err := g.run(ctx, "tag", "--annotate", tag, "--message", message)
	return err
}

// DeleteTag removes a local tag.
func (g ExecGit) DeleteTag(ctx context.Context, tag string) error {
	_, err := g.run(ctx, "tag", "--delete", tag)
	return err
}

// PushTag pushes a single tag to remote.
func (g ExecGit) PushTag(ctx context.Context, remote, tag string) error {
	_, err := g.run(ctx, "push", remote, "refs/tags/"+tag)
	return err
}

func (g ExecGit) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("git %s: %s: %w", args[0], msg, err)
		}
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}
	return strings.TrimSpace(stdout.String()), nil
}
