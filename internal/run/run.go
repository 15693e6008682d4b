// Package run holds the per-invocation record of a pipeline execution.
package run

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/flightcheck/internal/result"
	"github.com/mattjoyce/flightcheck/internal/step"
	"github.com/mattjoyce/flightcheck/internal/trigger"
)

// Status is the terminal (or in-flight) state of one step within a run.
type Status string

const (
	StatusPending    Status = "pending"
	StatusRunning    Status = "running"
	StatusSucceeded  Status = "succeeded"
	StatusSoftFailed Status = "soft_failed"
	StatusHardFailed Status = "hard_failed"
	StatusSkipped    Status = "skipped"
)

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusSoftFailed, StatusHardFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// StepOutcome records how one selected step finished.
type StepOutcome struct {
	Status     Status
	Message    string
	Kind       string // failure kind for remediation lookup
	Attempts   int
	StartedAt  time.Time
	FinishedAt time.Time
}

// ProbeFinding records a probe failure observed during the run. Blocking
// findings hard-fail their step; warnings are recorded only.
type ProbeFinding struct {
	Probe    string
	StepID   string
	Severity result.Severity
	Message  string
}

// Run is the exclusive record of one pipeline invocation. It is owned by the
// single goroutine executing the run; nothing else writes to it.
type Run struct {
	ID          string
	Trigger     trigger.Kind
	Ref         string
	Platform    step.Platform
	Environment step.Environment
	StartedAt   time.Time
	FinishedAt  time.Time
	Selected    []string
	Results     map[string]StepOutcome
	Findings    []ProbeFinding
	Cancelled   bool
}

// New creates a run for the given event covering the selected steps, all
// initially pending.
func New(ev trigger.Event, selected []step.Step) *Run {
	ids := make([]string, len(selected))
	results := make(map[string]StepOutcome, len(selected))
	for i, s := range selected {
		ids[i] = s.ID
		results[s.ID] = StepOutcome{Status: StatusPending}
	}
	return &Run{
		ID:          uuid.NewString(),
		Trigger:     ev.Kind,
		Ref:         ev.Ref,
		Platform:    ev.Platform,
		Environment: ev.Environment,
		StartedAt:   time.Now().UTC(),
		Selected:    ids,
		Results:     results,
	}
}

// SetOutcome records a step outcome. Ids outside the selected set are a
// programming error: the results mapping only ever covers selected steps.
func (r *Run) SetOutcome(id string, out StepOutcome) error {
	if _, ok := r.Results[id]; !ok {
		return fmt.Errorf("step %q is not part of run %s", id, r.ID)
	}
	r.Results[id] = out
	return nil
}

// Outcome returns the recorded outcome for a selected step.
func (r *Run) Outcome(id string) (StepOutcome, bool) {
	out, ok := r.Results[id]
	return out, ok
}

// AddFinding appends a probe finding.
func (r *Run) AddFinding(f ProbeFinding) {
	r.Findings = append(r.Findings, f)
}

// Finish stamps the completion time.
func (r *Run) Finish() {
	r.FinishedAt = time.Now().UTC()
}

// Clean reports whether every selected step succeeded and no finding was
// recorded at blocking severity.
func (r *Run) Clean() bool {
	for _, id := range r.Selected {
		if r.Results[id].Status != StatusSucceeded {
			return false
		}
	}
	for _, f := range r.Findings {
		if f.Severity == result.Blocking {
			return false
		}
	}
	return true
}
