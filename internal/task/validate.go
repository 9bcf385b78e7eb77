package task

import (
	"fmt"
	"sort"

	"github.com/AndreyAkinshin/taskmatrix/internal/config"
)

// Validate checks the task delegations of cfg against its environments.
// Every delegate named in the tasks section, and every custom task, must
// resolve to a defined environment. Built-in delegates that are not
// configured are checked when they run, so a project without a lint
// environment still loads. A pipeline that publishes a release without
// uploading to the index needs the build task to produce its assets.
func Validate(cfg *config.Config) error {
	names := make([]string, 0, len(cfg.Tasks))
	for name := range cfg.Tasks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		t, ok := Lookup(cfg, name)
		if !ok || t.Kind != KindDelegate {
			continue
		}
		if _, ok := cfg.Environment(t.Environment); !ok {
			return &config.ValidationError{
				Field:   fmt.Sprintf("tasks.%s", name),
				Message: fmt.Sprintf("delegates to undefined environment %q", t.Environment),
			}
		}
	}

	if pc := cfg.Pipeline; pc != nil && pc.PublishToRelease && !pc.PublishToIndex {
		build, _ := Lookup(cfg, Build)
		if _, ok := cfg.Environment(build.Environment); !ok {
			msg := fmt.Sprintf("requires environment %q to build release assets when publish_to_index is off", build.Environment)
			return &config.ValidationError{Field: "pipeline.publish_to_release", Message: msg}
		}
	}
	return nil
}
