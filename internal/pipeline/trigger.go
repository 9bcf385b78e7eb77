// Package pipeline adapts CI events to task runs and renders the workflow
// definition consumed by the CI engine.
package pipeline

import (
	"strings"

	"github.com/google/uuid"

	taskerrors "github.com/AndreyAkinshin/taskmatrix/internal/errors"
)

// Event is the class of CI event that started a run.
type Event string

const (
	EventCommit      Event = "commit"
	EventTag         Event = "tag"
	EventPullRequest Event = "pull_request"
)

// ParseEvent validates an event name given on the command line.
func ParseEvent(s string) (Event, bool) {
	switch e := Event(s); e {
	case EventCommit, EventTag, EventPullRequest:
		return e, true
	}
	return "", false
}

const tagRefPrefix = "refs/tags/"

// Trigger is one CI event. It is created per run and discarded afterwards.
type Trigger struct {
	Event Event
	Ref   string
	RunID uuid.UUID
}

// NewTrigger creates a trigger with a fresh run ID.
func NewTrigger(event Event, ref string) Trigger {
	return Trigger{Event: event, Ref: ref, RunID: uuid.New()}
}

// Tag returns the tag name for tag events, or "".
func (t Trigger) Tag() string {
	if t.Event != EventTag {
		return ""
	}
	return strings.TrimPrefix(t.Ref, tagRefPrefix)
}

// DetectTrigger builds a trigger from the GitHub Actions environment.
// Pushes of refs/tags/* are tag events; pull_request and
// pull_request_target are pull requests; every other event is a commit.
func DetectTrigger(lookupEnv func(string) (string, bool)) (Trigger, error) {
	name, ok := lookupEnv("GITHUB_EVENT_NAME")
	if !ok || name == "" {
		return Trigger{}, taskerrors.Config("GITHUB_EVENT_NAME is not set; pass --event outside GitHub Actions")
	}
	ref, _ := lookupEnv("GITHUB_REF")

	switch {
	case name == "pull_request" || name == "pull_request_target":
		return NewTrigger(EventPullRequest, ref), nil
	case strings.HasPrefix(ref, tagRefPrefix):
		return NewTrigger(EventTag, ref), nil
	}
	return NewTrigger(EventCommit, ref), nil
}
