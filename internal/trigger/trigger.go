// Package trigger models the external CI events that select which steps run.
package trigger

import (
	"fmt"

	"github.com/mattjoyce/flightcheck/internal/step"
)

// Kind is the class of external event starting a run.
type Kind string

const (
	Push        Kind = "push"
	Tag         Kind = "tag"
	PullRequest Kind = "pull_request"
	Manual      Kind = "manual"
)

// ParseKind validates a trigger kind received from the outside.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case Push, Tag, PullRequest, Manual:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown trigger kind %q", s)
	}
}

// ParsePlatform validates a platform argument. Empty is allowed here; the
// orchestrator decides per trigger whether it may be defaulted.
func ParsePlatform(s string) (step.Platform, error) {
	switch step.Platform(s) {
	case step.PlatformAndroid, step.PlatformIOS, step.PlatformBoth:
		return step.Platform(s), nil
	case "":
		return "", nil
	default:
		return "", fmt.Errorf("unknown platform %q", s)
	}
}

// ParseEnvironment validates an environment argument.
func ParseEnvironment(s string) (step.Environment, error) {
	switch step.Environment(s) {
	case step.EnvStaging, step.EnvProduction:
		return step.Environment(s), nil
	case "":
		return "", nil
	default:
		return "", fmt.Errorf("unknown environment %q", s)
	}
}

// Event is the record delivered by the hosting CI system.
type Event struct {
	Kind        Kind             `json:"kind"`
	Ref         string           `json:"ref"`
	Platform    step.Platform    `json:"platform,omitempty"`
	Environment step.Environment `json:"environment,omitempty"`
}
