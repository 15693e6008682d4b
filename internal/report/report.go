// Package report renders a completed run into machine and human form. Both
// renderings are pure functions of the run record, so identical runs produce
// byte-identical reports.
package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mattjoyce/flightcheck/internal/run"
)

// hints maps failure kinds to remediation text surfaced next to the first
// blocking failure.
var hints = map[string]string{
	"missing_tool":   "install the tool and ensure it is on PATH for the CI runner",
	"missing_file":   "check the repository checkout and the file's expected location",
	"missing_secret": "add the secret in the CI provider's secret store; flightcheck only checks presence",
	"timeout":        "re-run; if it persists, raise the step timeout in the pipeline config",
	"command_failed": "inspect the step output and fix the failing command",
	"config":         "fix the pipeline declaration and re-plan",
	"cancelled":      "the run was cancelled; re-dispatch to continue",
	"skipped":        "fix the failed prerequisite; skipped steps run once it succeeds",
}

// Hint returns the remediation text for a failure kind, or "".
func Hint(kind string) string {
	return hints[kind]
}

// StepReport is one step's row in the report.
type StepReport struct {
	ID         string    `json:"id"`
	Status     string    `json:"status"`
	Message    string    `json:"message,omitempty"`
	Kind       string    `json:"kind,omitempty"`
	Attempts   int       `json:"attempts,omitempty"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// FindingReport is a probe finding row.
type FindingReport struct {
	Probe    string `json:"probe"`
	Step     string `json:"step"`
	Severity string `json:"severity"`
	Message  string `json:"message,omitempty"`
}

// Blocking identifies the first hard failure and its remediation hint.
type Blocking struct {
	Step    string `json:"step"`
	Message string `json:"message,omitempty"`
	Hint    string `json:"hint,omitempty"`
}

// Report is the structured summary consumed by the hosting CI system.
type Report struct {
	RunID         string          `json:"run_id"`
	Trigger       string          `json:"trigger"`
	Ref           string          `json:"ref,omitempty"`
	Platform      string          `json:"platform"`
	Environment   string          `json:"environment"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    time.Time       `json:"finished_at"`
	Cancelled     bool            `json:"cancelled,omitempty"`
	Steps         []StepReport    `json:"steps"`
	Findings      []FindingReport `json:"findings,omitempty"`
	FirstBlocking *Blocking       `json:"first_blocking,omitempty"`
	ExitCode      int             `json:"exit_code"`
}

// Build projects a run into its report. Steps appear in selection order,
// never map order.
func Build(r *run.Run) Report {
	rep := Report{
		RunID:       r.ID,
		Trigger:     string(r.Trigger),
		Ref:         r.Ref,
		Platform:    string(r.Platform),
		Environment: string(r.Environment),
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
		Cancelled:   r.Cancelled,
		ExitCode:    ExitCode(r),
	}

	for _, id := range r.Selected {
		out := r.Results[id]
		rep.Steps = append(rep.Steps, StepReport{
			ID:         id,
			Status:     string(out.Status),
			Message:    out.Message,
			Kind:       out.Kind,
			Attempts:   out.Attempts,
			StartedAt:  out.StartedAt,
			FinishedAt: out.FinishedAt,
		})
		if rep.FirstBlocking == nil && out.Status == run.StatusHardFailed {
			rep.FirstBlocking = &Blocking{
				Step:    id,
				Message: out.Message,
				Hint:    Hint(out.Kind),
			}
		}
	}

	for _, f := range r.Findings {
		rep.Findings = append(rep.Findings, FindingReport{
			Probe:    f.Probe,
			Step:     f.StepID,
			Severity: f.Severity.String(),
			Message:  f.Message,
		})
	}

	return rep
}

// RenderJSON renders the machine-parsable report.
func RenderJSON(r *run.Run) ([]byte, error) {
	return Build(r).JSON()
}

// JSON renders the report as indented JSON with a trailing newline.
func (rep Report) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return append(data, '\n'), nil
}

// statusLabel maps statuses to fixed-width row labels.
func statusLabel(s string) string {
	switch run.Status(s) {
	case run.StatusSucceeded:
		return "ok   "
	case run.StatusSoftFailed:
		return "SOFT "
	case run.StatusHardFailed:
		return "HARD "
	case run.StatusSkipped:
		return "skip "
	default:
		return s
	}
}

// FormatHuman renders the textual summary.
func FormatHuman(r *run.Run) string {
	return Build(r).Human()
}

// Human renders the textual summary.
func (rep Report) Human() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run %s (%s %s, %s/%s)\n",
		rep.RunID, rep.Trigger, rep.Ref, rep.Platform, rep.Environment)

	for _, s := range rep.Steps {
		fmt.Fprintf(&b, "  %s %s", statusLabel(s.Status), s.ID)
		if s.Attempts > 1 {
			fmt.Fprintf(&b, " (%d attempts)", s.Attempts)
		}
		if s.Message != "" {
			fmt.Fprintf(&b, ": %s", s.Message)
		}
		b.WriteString("\n")
	}

	for _, f := range rep.Findings {
		fmt.Fprintf(&b, "  %s probe %s [%s]", severityLabel(f.Severity), f.Probe, f.Step)
		if f.Message != "" {
			fmt.Fprintf(&b, ": %s", f.Message)
		}
		b.WriteString("\n")
	}

	if rep.FirstBlocking != nil {
		fmt.Fprintf(&b, "First blocking failure: %s", rep.FirstBlocking.Step)
		if rep.FirstBlocking.Message != "" {
			fmt.Fprintf(&b, " - %s", rep.FirstBlocking.Message)
		}
		b.WriteString("\n")
		if rep.FirstBlocking.Hint != "" {
			fmt.Fprintf(&b, "  hint: %s\n", rep.FirstBlocking.Hint)
		}
	}

	if rep.Cancelled {
		b.WriteString("Run cancelled before completion.\n")
	}

	if rep.ExitCode == 0 {
		b.WriteString("Result: PASSED (exit 0)\n")
	} else {
		fmt.Fprintf(&b, "Result: FAILED (exit %d)\n", rep.ExitCode)
	}

	return b.String()
}

func severityLabel(s string) string {
	if s == "warning" {
		return "WARN "
	}
	return "BLOCK"
}

// ExitCode is what the hosting CI system should exit with: 0 only when every
// selected step succeeded and no blocking probe finding was recorded. Soft
// failures are still surfaced as a nonzero exit.
func ExitCode(r *run.Run) int {
	if r.Clean() {
		return 0
	}
	return 1
}
