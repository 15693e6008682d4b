// Package doctor validates a flightcheck pipeline declaration beyond what
// config loading enforces: graph shape, trigger reachability, and environment
// hygiene.
package doctor

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/mattjoyce/flightcheck/internal/config"
	"github.com/mattjoyce/flightcheck/internal/graph"
	"github.com/mattjoyce/flightcheck/internal/plan"
	"github.com/mattjoyce/flightcheck/internal/step"
	"github.com/mattjoyce/flightcheck/internal/trigger"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates a loaded configuration and the catalog built from it.
type Doctor struct {
	cfg     *config.Config
	catalog *step.Catalog
}

// New creates a Doctor from a loaded config and its step catalog.
func New(cfg *config.Config, catalog *step.Catalog) *Doctor {
	return &Doctor{cfg: cfg, catalog: catalog}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.validateServiceConfig(r)
	d.validateGraph(r)
	d.validateTriggerPlans(r)
	d.validateServe(r)
	d.warnUnusedProbes(r)
	d.warnSuspiciousTimeouts(r)
	d.warnMissingEnvVars(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) validateServiceConfig(r *Result) {
	if d.cfg.State.Path == "" {
		d.addError(r, "service", "state.path", "state.path is required")
	}
	if d.cfg.Service.StepTimeout <= 0 {
		d.addError(r, "service", "service.default_step_timeout", "default_step_timeout must be positive")
	}
	if d.catalog.Len() == 0 {
		d.addError(r, "steps", "steps", "no steps declared; there is nothing to run")
	}
}

// validateGraph surfaces structural catalog defects: cycles, dangling
// prerequisites, retryable steps that are not idempotent.
func (d *Doctor) validateGraph(r *Result) {
	if _, err := graph.Build(d.catalog.Steps()); err != nil {
		var (
			cycle   *graph.CycleDetectedError
			unknown *graph.UnknownPrerequisiteError
			retry   *graph.NonIdempotentRetryError
		)
		switch {
		case errors.As(err, &cycle):
			d.addError(r, "graph", "steps",
				fmt.Sprintf("prerequisite cycle: %s", strings.Join(cycle.Cycle, " -> ")))
		case errors.As(err, &unknown):
			d.addError(r, "graph", fmt.Sprintf("steps.%s.prerequisites", unknown.StepID),
				fmt.Sprintf("step %q requires unknown step %q", unknown.StepID, unknown.Missing))
		case errors.As(err, &retry):
			d.addError(r, "graph", fmt.Sprintf("steps.%s", retry.StepID),
				fmt.Sprintf("step %q is retryable but not idempotent", retry.StepID))
		default:
			d.addError(r, "graph", "steps", err.Error())
		}
	}
}

// validateTriggerPlans plans a representative event for each automatic
// trigger, catching declarations that can never produce a runnable plan,
// such as a selected step whose prerequisite sits behind a category fence.
func (d *Doctor) validateTriggerPlans(r *Result) {
	events := []trigger.Event{
		{Kind: trigger.Push, Ref: "refs/heads/main"},
		{Kind: trigger.Tag, Ref: "v0.0.0"},
		{Kind: trigger.PullRequest, Ref: "refs/pull/0"},
	}
	for _, ev := range events {
		if _, err := plan.Build(d.catalog, ev); err != nil {
			d.addError(r, "plan", string(ev.Kind),
				fmt.Sprintf("trigger %s cannot be planned: %v", ev.Kind, err))
		}
	}
}

func (d *Doctor) validateServe(r *Result) {
	if !d.cfg.Serve.Enabled {
		return
	}
	if d.cfg.Serve.Listen == "" {
		d.addError(r, "serve", "serve.listen", "serve.listen is required when serve is enabled")
	}
	if d.cfg.Serve.Secret == "" {
		d.addError(r, "serve", "serve.secret",
			"serve.secret is required; unsigned triggers are rejected")
	}
}

// warnUnusedProbes flags probes no step references. They never run.
func (d *Doctor) warnUnusedProbes(r *Result) {
	used := map[string]bool{}
	for _, s := range d.catalog.Steps() {
		for _, p := range s.Probes {
			used[p] = true
		}
	}
	for _, p := range d.cfg.Probes {
		if !used[p.Name] {
			d.addWarning(r, "probes", fmt.Sprintf("probes.%s", p.Name),
				fmt.Sprintf("probe %q is declared but no step references it", p.Name))
		}
	}
}

func (d *Doctor) warnSuspiciousTimeouts(r *Result) {
	for _, s := range d.catalog.Steps() {
		if s.Timeout < time.Second {
			d.addWarning(r, "timeouts", fmt.Sprintf("steps.%s.timeout", s.ID),
				fmt.Sprintf("step %q timeout %s is very short", s.ID, s.Timeout))
		}
		if s.Timeout > 2*time.Hour {
			d.addWarning(r, "timeouts", fmt.Sprintf("steps.%s.timeout", s.ID),
				fmt.Sprintf("step %q timeout %s is unusually long", s.ID, s.Timeout))
		}
	}
}

// warnMissingEnvVars flags ${VAR} references left unexpanded, which means the
// variable was unset when the config was loaded.
func (d *Doctor) warnMissingEnvVars(r *Result) {
	envVarRe := regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

	check := func(field, value string) {
		for _, m := range envVarRe.FindAllStringSubmatch(value, -1) {
			if os.Getenv(m[1]) == "" {
				d.addWarning(r, "env_vars", field,
					fmt.Sprintf("environment variable ${%s} not set", m[1]))
			}
		}
	}

	check("serve.secret", d.cfg.Serve.Secret)
	for _, p := range d.cfg.Probes {
		check(fmt.Sprintf("probes.%s.target", p.Name), p.Target)
	}
	for _, s := range d.cfg.Steps {
		for i, a := range s.Args {
			check(fmt.Sprintf("steps.%s.args[%d]", s.ID, i), a)
		}
	}
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.Valid && len(r.Warnings) == 0 {
		b.WriteString("Pipeline declaration valid.\n")
		return b.String()
	}

	if r.Valid {
		fmt.Fprintf(&b, "Pipeline declaration valid (%d warning(s))\n", len(r.Warnings))
	} else {
		fmt.Fprintf(&b, "Pipeline declaration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		if e.Field != "" {
			fmt.Fprintf(&b, "  ERROR [%s] %s: %s\n", e.Category, e.Field, e.Message)
		} else {
			fmt.Fprintf(&b, "  ERROR [%s] %s\n", e.Category, e.Message)
		}
	}
	for _, w := range r.Warnings {
		if w.Field != "" {
			fmt.Fprintf(&b, "  WARN  [%s] %s: %s\n", w.Category, w.Field, w.Message)
		} else {
			fmt.Fprintf(&b, "  WARN  [%s] %s\n", w.Category, w.Message)
		}
	}

	return b.String()
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
