// Package executor drives the per-step state machine over a planned,
// topologically ordered sequence of steps.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mattjoyce/flightcheck/internal/events"
	"github.com/mattjoyce/flightcheck/internal/log"
	"github.com/mattjoyce/flightcheck/internal/probe"
	"github.com/mattjoyce/flightcheck/internal/result"
	"github.com/mattjoyce/flightcheck/internal/run"
	"github.com/mattjoyce/flightcheck/internal/step"
	"github.com/mattjoyce/flightcheck/internal/toolchain"
)

// DefaultRetryBound is the number of automatic re-attempts granted to a
// retryable step on transient failure.
const DefaultRetryBound = 1

// Options tunes an Executor.
type Options struct {
	// RetryBound caps automatic re-attempts for retryable steps. Zero means
	// DefaultRetryBound, so the zero value of Options retries; negative
	// disables retries entirely.
	RetryBound int
	Hub        *events.Hub
	Logger     *slog.Logger
}

// Executor runs one pipeline at a time, sequentially, in the order the graph
// produced. The run's results mapping is written only from here.
type Executor struct {
	tc         toolchain.Toolchain
	probes     *probe.Registry
	hub        *events.Hub
	logger     *slog.Logger
	retryBound int
}

// New creates an Executor over a toolchain and probe registry.
func New(tc toolchain.Toolchain, probes *probe.Registry, opts Options) *Executor {
	bound := opts.RetryBound
	switch {
	case bound == 0:
		bound = DefaultRetryBound
	case bound < 0:
		bound = 0
	}
	hub := opts.Hub
	if hub == nil {
		hub = events.NewHub(128)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.WithComponent("executor")
	}
	return &Executor{
		tc:         tc,
		probes:     probes,
		hub:        hub,
		logger:     logger,
		retryBound: bound,
	}
}

// Execute runs every step of the plan, recording outcomes into r. Step-level
// failures never abort the loop: the caller always gets a complete picture.
// Cancellation is honored between steps only; the in-flight toolchain call is
// not assumed interruptible.
func (e *Executor) Execute(ctx context.Context, r *run.Run, steps []step.Step) {
	e.hub.Publish(events.TypeRunStarted, map[string]any{
		"run_id":  r.ID,
		"trigger": r.Trigger,
		"steps":   len(steps),
	})

	for i, s := range steps {
		if ctx.Err() != nil {
			r.Cancelled = true
			e.skipRemaining(r, steps[i:], "run cancelled before step started")
			break
		}

		if blockedBy := e.blockedBy(r, s); blockedBy != "" {
			e.record(r, s.ID, run.StepOutcome{
				Status:  run.StatusSkipped,
				Message: fmt.Sprintf("prerequisite %s did not succeed", blockedBy),
				Kind:    "skipped",
			})
			continue
		}

		e.runStep(ctx, r, s)
	}

	r.Finish()
	e.hub.Publish(events.TypeRunFinished, map[string]any{
		"run_id": r.ID,
		"clean":  r.Clean(),
	})
}

// blockedBy returns the id of a hard-failed or skipped prerequisite, or "".
// Soft failures do not block.
func (e *Executor) blockedBy(r *run.Run, s step.Step) string {
	for _, pre := range s.Prerequisites {
		out, ok := r.Outcome(pre)
		if !ok {
			continue // prerequisite outside the selected subset was planned away
		}
		if out.Status == run.StatusHardFailed || out.Status == run.StatusSkipped {
			return pre
		}
	}
	return ""
}

func (e *Executor) runStep(ctx context.Context, r *run.Run, s step.Step) {
	stepLogger := e.logger.With("run_id", r.ID, "step", s.ID)
	started := time.Now().UTC()

	e.record(r, s.ID, run.StepOutcome{Status: run.StatusRunning, StartedAt: started})
	e.hub.Publish(events.TypeStepStarted, map[string]any{"run_id": r.ID, "step": s.ID})
	stepLogger.Info("step started", "category", s.Category)

	out := e.attempt(ctx, r, s, stepLogger)
	out.StartedAt = started
	out.FinishedAt = time.Now().UTC()
	e.record(r, s.ID, out)

	e.hub.Publish(events.TypeStepFinished, map[string]any{
		"run_id": r.ID,
		"step":   s.ID,
		"status": out.Status,
	})
	stepLogger.Info("step finished", "status", out.Status, "attempts", out.Attempts)
}

// attempt gates on the step's probes, then runs the action with the retry
// policy applied.
func (e *Executor) attempt(ctx context.Context, r *run.Run, s step.Step, stepLogger *slog.Logger) run.StepOutcome {
	for _, name := range s.Probes {
		p, ok := e.probes.Get(name)
		if !ok {
			return run.StepOutcome{
				Status:  run.StatusHardFailed,
				Message: fmt.Sprintf("step references unknown probe %q", name),
				Kind:    "config",
			}
		}
		res := p.Predicate(ctx)
		if !res.Failed() {
			continue
		}
		finding := run.ProbeFinding{
			Probe:    p.Name,
			StepID:   s.ID,
			Severity: p.Severity,
			Message:  res.Message,
		}
		r.AddFinding(finding)
		e.hub.Publish(events.TypeProbeFinding, map[string]any{
			"run_id":   r.ID,
			"step":     s.ID,
			"probe":    p.Name,
			"severity": p.Severity.String(),
		})
		if p.Severity == result.Blocking {
			stepLogger.Error("blocking probe failed", "probe", p.Name, "message", res.Message)
			return run.StepOutcome{
				Status:  run.StatusHardFailed,
				Message: fmt.Sprintf("probe %s: %s", p.Name, res.Message),
				Kind:    res.Kind,
			}
		}
		stepLogger.Warn("probe warning", "probe", p.Name, "message", res.Message)
	}

	// A step without a command is a pure probe gate.
	if s.Command == "" {
		return run.StepOutcome{Status: run.StatusSucceeded, Attempts: 0}
	}

	maxAttempts := 1
	if s.Retryable {
		maxAttempts = 1 + e.retryBound
	}

	var res result.Result
	attempts := 0
	for attempts < maxAttempts {
		attempts++
		res = e.tc.Invoke(ctx, toolchain.Invocation{
			Command:       s.Command,
			Args:          s.Args,
			Timeout:       s.Timeout,
			SoftExitCodes: s.SoftExitCodes,
		})
		if !res.Failed() || !res.Transient || attempts >= maxAttempts {
			break
		}
		stepLogger.Warn("transient failure, retrying", "attempt", attempts, "message", res.Message)
		e.hub.Publish(events.TypeStepRetry, map[string]any{
			"run_id":  r.ID,
			"step":    s.ID,
			"attempt": attempts,
		})
	}

	out := run.StepOutcome{Message: res.Message, Kind: res.Kind, Attempts: attempts}
	switch res.Code {
	case result.Success:
		out.Status = run.StatusSucceeded
	case result.SoftFailure:
		out.Status = run.StatusSoftFailed
	default:
		out.Status = run.StatusHardFailed
	}
	return out
}

func (e *Executor) skipRemaining(r *run.Run, steps []step.Step, reason string) {
	for _, s := range steps {
		out, ok := r.Outcome(s.ID)
		if ok && out.Status.Terminal() {
			continue
		}
		e.record(r, s.ID, run.StepOutcome{
			Status:  run.StatusSkipped,
			Message: reason,
			Kind:    "cancelled",
		})
	}
}

func (e *Executor) record(r *run.Run, id string, out run.StepOutcome) {
	if err := r.SetOutcome(id, out); err != nil {
		// Only reachable if the plan and run disagree, which is a bug.
		e.logger.Error("failed to record outcome", "step", id, "error", err)
	}
}
