// Package release tags versions in git and gathers package upload credentials.
package release

import (
	"context"
	"fmt"
	"strings"

	"github.com/AndreyAkinshin/taskmatrix/internal/config"
	taskerrors "github.com/AndreyAkinshin/taskmatrix/internal/errors"
	"github.com/AndreyAkinshin/taskmatrix/internal/output"
)

// TagName renders a tag_format template for version.
func TagName(format, version string) string {
	if format == "" {
		format = config.DefaultTagFormat
	}
	return strings.ReplaceAll(format, "{version}", version)
}

// TagOptions configures Tag.
type TagOptions struct {
	DryRun bool // Print what would be done without doing it
}

// Tagger creates and publishes release tags.
type Tagger struct {
	git Git
	cfg *config.ReleaseConfig
	out *output.Writer
}

// NewTagger creates a Tagger. A nil cfg uses the defaults.
func NewTagger(git Git, cfg *config.ReleaseConfig, out *output.Writer) *Tagger {
	if cfg == nil {
		cfg = &config.ReleaseConfig{}
	}
	if out == nil {
		out = output.New()
	}
	return &Tagger{git: git, cfg: cfg, out: out}
}

func (t *Tagger) remote() string {
	if t.cfg.Remote != "" {
		return t.cfg.Remote
	}
	return config.DefaultRemote
}

// Tag creates an annotated tag for version and pushes it to the remote.
// Returns TagAlreadyExistsError, without pushing, when the tag exists.
// A failed push removes the local tag again.
func (t *Tagger) Tag(ctx context.Context, version string, opts TagOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tag := TagName(t.cfg.TagFormat, version)
	remote := t.remote()

	exists, err := t.git.TagExists(ctx, tag)
	if err != nil {
		return "", taskerrors.Wrap(err, "failed to check existing tags")
	}
	if exists {
		return tag, &taskerrors.TagAlreadyExistsError{Tag: tag}
	}

	if opts.DryRun {
		t.out.Info("Dry run, nothing will be changed:")
		t.out.Step(1, "Create annotated tag %s", tag)
		t.out.Step(2, "Push %s to %s", tag, remote)
		return tag, nil
	}

	t.out.Step(1, "Creating tag %s...", tag)
	if err := t.git.CreateTag(ctx, tag, "Release "+version); err != nil {
		return "", taskerrors.Wrap(err, fmt.Sprintf("failed to create tag %s", tag))
	}

	t.out.Step(2, "Pushing %s to %s...", tag, remote)
	if err := t.git.PushTag(ctx, remote, tag); err != nil {
		if delErr := t.git.DeleteTag(context.WithoutCancel(ctx), tag); delErr != nil {
			t.out.Warning("failed to remove local tag %s: %v", tag, delErr)
		}
		return "", taskerrors.Wrap(err, fmt.Sprintf("failed to push tag %s", tag))
	}

	t.out.FinalSuccess("Tagged %s and pushed to %s.", tag, remote)
	return tag, nil
}

// LookupEnvFunc looks up an environment variable. os.LookupEnv satisfies it.
type LookupEnvFunc func(key string) (string, bool)

// Credentials returns the package index upload credentials named by cfg.
// Every missing or empty variable is listed in the CredentialsMissingError.
func Credentials(cfg *config.ReleaseConfig, lookupEnv LookupEnvFunc) (map[string]string, error) {
	userVar, passVar := config.DefaultUsernameEnv, config.DefaultPasswordEnv
	if cfg != nil {
		if cfg.UsernameEnv != "" {
			userVar = cfg.UsernameEnv
		}
		if cfg.PasswordEnv != "" {
			passVar = cfg.PasswordEnv
		}
	}

	creds := make(map[string]string, 2)
	var missing []string
	for _, name := range []string{userVar, passVar} {
		v, ok := lookupEnv(name)
		if !ok || v == "" {
			missing = append(missing, name)
			continue
		}
		creds[name] = v
	}
	if len(missing) > 0 {
		return nil, &taskerrors.CredentialsMissingError{Variables: missing}
	}
	return creds, nil
}
