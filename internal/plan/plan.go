// Package plan maps trigger events onto the concrete ordered subset of steps
// a run will execute.
package plan

import (
	"fmt"

	"github.com/mattjoyce/flightcheck/internal/graph"
	"github.com/mattjoyce/flightcheck/internal/step"
	"github.com/mattjoyce/flightcheck/internal/trigger"
)

// MissingArgumentError is returned when a manual dispatch omits a required
// argument.
type MissingArgumentError struct {
	Argument string
}

func (e *MissingArgumentError) Error() string {
	return fmt.Sprintf("manual dispatch requires an explicit %s", e.Argument)
}

// UnselectablePrerequisiteError is returned when a selected step depends on a
// step whose category the trigger forbids. The catalog is misdeclared: the
// category fence is absolute, so the prerequisite can never be pulled in.
type UnselectablePrerequisiteError struct {
	StepID       string
	Prerequisite string
	Trigger      trigger.Kind
}

func (e *UnselectablePrerequisiteError) Error() string {
	return fmt.Sprintf("step %q requires %q, which trigger %s excludes by category",
		e.StepID, e.Prerequisite, e.Trigger)
}

// categoriesByTrigger is the static trigger -> step category map. Pull
// requests and pushes never deploy; releases ship from tags or an explicit
// manual dispatch.
var categoriesByTrigger = map[trigger.Kind][]step.Category{
	trigger.Push:        {step.CategoryCheckout, step.CategoryInstall, step.CategorySigning, step.CategoryBuild, step.CategoryTest},
	trigger.Tag:         {step.CategoryCheckout, step.CategoryInstall, step.CategorySigning, step.CategoryBuild, step.CategoryTest, step.CategoryDeploy},
	trigger.PullRequest: {step.CategoryCheckout, step.CategoryInstall, step.CategorySigning, step.CategoryBuild, step.CategoryTest},
	trigger.Manual:      {step.CategoryCheckout, step.CategoryInstall, step.CategorySigning, step.CategoryBuild, step.CategoryTest, step.CategoryDeploy},
}

// Plan is an execution-ready run blueprint: the normalized event plus the
// selected steps in topological order.
type Plan struct {
	Event trigger.Event
	Steps []step.Step
}

// Build selects and orders the steps for an event. All failures are
// configuration errors surfaced before anything executes.
func Build(catalog *step.Catalog, ev trigger.Event) (*Plan, error) {
	ev, err := normalize(ev)
	if err != nil {
		return nil, err
	}

	allowed := make(map[step.Category]bool)
	for _, c := range categoriesByTrigger[ev.Kind] {
		allowed[c] = true
	}

	// First pass: steps the trigger, platform, and environment all admit.
	all := catalog.Steps()
	selected := make(map[string]bool)
	for _, s := range all {
		if allowed[s.Category] && s.AppliesTo(ev.Platform, ev.Environment) {
			selected[s.ID] = true
		}
	}

	// Pull prerequisites back in transitively. A step excluded only by the
	// platform/environment filter still runs when something selected needs
	// it; a step excluded by category never does.
	for changed := true; changed; {
		changed = false
		for _, s := range all {
			if !selected[s.ID] {
				continue
			}
			for _, pre := range s.Prerequisites {
				if selected[pre] {
					continue
				}
				p, ok := catalog.Get(pre)
				if !ok {
					// Left for graph.Build to report as unknown.
					continue
				}
				if !allowed[p.Category] {
					return nil, &UnselectablePrerequisiteError{
						StepID:       s.ID,
						Prerequisite: pre,
						Trigger:      ev.Kind,
					}
				}
				selected[pre] = true
				changed = true
			}
		}
	}

	// Preserve declaration order into the subset; graph.Build relies on it
	// for its deterministic tie-break.
	subset := make([]step.Step, 0, len(selected))
	for _, s := range all {
		if selected[s.ID] {
			subset = append(subset, s)
		}
	}

	ordered, err := graph.Build(subset)
	if err != nil {
		return nil, err
	}
	return &Plan{Event: ev, Steps: ordered}, nil
}

// normalize applies per-trigger defaults and enforces the manual-dispatch
// argument contract.
func normalize(ev trigger.Event) (trigger.Event, error) {
	if _, err := trigger.ParseKind(string(ev.Kind)); err != nil {
		return trigger.Event{}, err
	}

	if ev.Kind == trigger.Manual {
		if ev.Platform == "" {
			return trigger.Event{}, &MissingArgumentError{Argument: "platform"}
		}
		if ev.Environment == "" {
			return trigger.Event{}, &MissingArgumentError{Argument: "environment"}
		}
		return ev, nil
	}

	if ev.Platform == "" {
		ev.Platform = step.PlatformBoth
	}
	if ev.Environment == "" {
		switch ev.Kind {
		case trigger.Tag:
			ev.Environment = step.EnvProduction
		default:
			ev.Environment = step.EnvStaging
		}
	}
	return ev, nil
}
