// Package engine ties the pieces together: it turns a trigger event into a
// planned, executed, recorded run. Both the CLI and the webhook server
// dispatch through it.
package engine

import (
	"context"
	"log/slog"

	"github.com/mattjoyce/flightcheck/internal/config"
	"github.com/mattjoyce/flightcheck/internal/events"
	"github.com/mattjoyce/flightcheck/internal/executor"
	"github.com/mattjoyce/flightcheck/internal/history"
	"github.com/mattjoyce/flightcheck/internal/log"
	"github.com/mattjoyce/flightcheck/internal/plan"
	"github.com/mattjoyce/flightcheck/internal/probe"
	"github.com/mattjoyce/flightcheck/internal/report"
	"github.com/mattjoyce/flightcheck/internal/run"
	"github.com/mattjoyce/flightcheck/internal/step"
	"github.com/mattjoyce/flightcheck/internal/toolchain"
	"github.com/mattjoyce/flightcheck/internal/trigger"
)

// Options carries the optional collaborators. Nil fields are fine: runs
// without a History are simply not persisted, and a nil Hub means no live
// event feed.
type Options struct {
	Hub     *events.Hub
	History *history.Store
	Logger  *slog.Logger
}

// Engine owns the configured catalog and probe registry and dispatches runs
// against them.
type Engine struct {
	cfg     *config.Config
	catalog *step.Catalog
	probes  *probe.Registry
	tc      toolchain.Toolchain
	hub     *events.Hub
	history *history.Store
	logger  *slog.Logger
}

// New builds the catalog and probe registry from cfg. Configuration errors
// (duplicate steps, unknown probe kinds) surface here, before anything is
// dispatched.
func New(cfg *config.Config, tc toolchain.Toolchain, opts Options) (*Engine, error) {
	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, err
	}
	probes, err := cfg.Registry(tc)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithComponent("engine")
	}

	return &Engine{
		cfg:     cfg,
		catalog: catalog,
		probes:  probes,
		tc:      tc,
		hub:     opts.Hub,
		history: opts.History,
		logger:  logger,
	}, nil
}

// Catalog exposes the configured step catalog, for inspection commands.
func (e *Engine) Catalog() *step.Catalog { return e.catalog }

// Probes exposes the configured probe registry.
func (e *Engine) Probes() *probe.Registry { return e.probes }

// Plan resolves an event to its ordered step selection without executing
// anything.
func (e *Engine) Plan(ev trigger.Event) (*plan.Plan, error) {
	return plan.Build(e.catalog, ev)
}

// Dispatch plans and executes a run for the event and returns its report.
// Planning errors come back before any step runs; once execution starts the
// outcome is always a report, even when the run failed or was cancelled.
func (e *Engine) Dispatch(ctx context.Context, ev trigger.Event) (report.Report, error) {
	p, err := plan.Build(e.catalog, ev)
	if err != nil {
		return report.Report{}, err
	}

	r := run.New(p.Event, p.Steps)
	logger := e.logger.With("run_id", r.ID, "trigger", string(p.Event.Kind), "ref", p.Event.Ref)
	logger.Info("run dispatched", "steps", len(p.Steps))

	exec := executor.New(e.tc, e.probes, executor.Options{
		RetryBound: e.cfg.Service.RetryBound,
		Hub:        e.hub,
		Logger:     logger,
	})
	exec.Execute(ctx, r, p.Steps)

	rep := report.Build(r)
	if e.history != nil {
		// Persistence failure must not eat a finished run's report.
		if err := e.history.SaveRun(context.WithoutCancel(ctx), r, rep.ExitCode); err != nil {
			logger.Error("failed to persist run", "error", err)
		}
	}

	logger.Info("run finished", "exit_code", rep.ExitCode, "cancelled", r.Cancelled)
	return rep, nil
}
