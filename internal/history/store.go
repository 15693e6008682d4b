// Package history persists completed runs so their reports can be replayed
// later, byte for byte.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattjoyce/flightcheck/internal/result"
	"github.com/mattjoyce/flightcheck/internal/run"
	"github.com/mattjoyce/flightcheck/internal/step"
	"github.com/mattjoyce/flightcheck/internal/trigger"
)

// ErrRunNotFound is returned when a run id has no record.
var ErrRunNotFound = errors.New("run not found")

// Summary is a lightweight projection for listing runs.
type Summary struct {
	ID          string
	Trigger     string
	Ref         string
	Platform    string
	Environment string
	StartedAt   time.Time
	ExitCode    int
	Cancelled   bool
}

// Store reads and writes run records.
type Store struct {
	db *sql.DB
}

// New creates a Store over an opened database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const timeFormat = time.RFC3339Nano

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(timeFormat)
}

func parseTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeFormat, s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

// SaveRun writes the run, its step outcomes, and its findings in one
// transaction.
func (s *Store) SaveRun(ctx context.Context, r *run.Run, exitCode int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save run: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, trigger_kind, ref, platform, environment, started_at, finished_at, cancelled, exit_code)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, string(r.Trigger), r.Ref, string(r.Platform), string(r.Environment),
		formatTime(r.StartedAt), formatTime(r.FinishedAt), r.Cancelled, exitCode,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.ID, err)
	}

	for i, id := range r.Selected {
		out := r.Results[id]
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_steps (run_id, position, step_id, status, message, kind, attempts, started_at, finished_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, i, id, string(out.Status), out.Message, out.Kind, out.Attempts,
			formatTime(out.StartedAt), formatTime(out.FinishedAt),
		)
		if err != nil {
			return fmt.Errorf("insert step %s of run %s: %w", id, r.ID, err)
		}
	}

	for i, f := range r.Findings {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_findings (run_id, position, probe, step_id, severity, message)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			r.ID, i, f.Probe, f.StepID, f.Severity.String(), f.Message,
		)
		if err != nil {
			return fmt.Errorf("insert finding %d of run %s: %w", i, r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", r.ID, err)
	}
	return nil
}

// GetRun reconstructs a run record exactly as executed, so report rendering
// over it is byte-identical to the original.
func (s *Store) GetRun(ctx context.Context, id string) (*run.Run, error) {
	r := &run.Run{ID: id, Results: make(map[string]run.StepOutcome)}

	var (
		kind, ref, platform, environment string
		startedAt, finishedAt            sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT trigger_kind, ref, platform, environment, started_at, finished_at, cancelled
		 FROM runs WHERE id = ?`, id,
	).Scan(&kind, &ref, &platform, &environment, &startedAt, &finishedAt, &r.Cancelled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select run %s: %w", id, err)
	}
	r.Trigger = trigger.Kind(kind)
	r.Ref = ref
	r.Platform = step.Platform(platform)
	r.Environment = step.Environment(environment)
	r.StartedAt = parseTime(startedAt)
	r.FinishedAt = parseTime(finishedAt)

	rows, err := s.db.QueryContext(ctx,
		`SELECT step_id, status, message, kind, attempts, started_at, finished_at
		 FROM run_steps WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("select steps of run %s: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			stepID, status, message, failKind string
			attempts                          int
			stStarted, stFinished             sql.NullString
		)
		if err := rows.Scan(&stepID, &status, &message, &failKind, &attempts, &stStarted, &stFinished); err != nil {
			return nil, fmt.Errorf("scan step row: %w", err)
		}
		r.Selected = append(r.Selected, stepID)
		r.Results[stepID] = run.StepOutcome{
			Status:     run.Status(status),
			Message:    message,
			Kind:       failKind,
			Attempts:   attempts,
			StartedAt:  parseTime(stStarted),
			FinishedAt: parseTime(stFinished),
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate step rows: %w", err)
	}

	frows, err := s.db.QueryContext(ctx,
		`SELECT probe, step_id, severity, message
		 FROM run_findings WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("select findings of run %s: %w", id, err)
	}
	defer frows.Close()
	for frows.Next() {
		var probeName, stepID, severity, message string
		if err := frows.Scan(&probeName, &stepID, &severity, &message); err != nil {
			return nil, fmt.Errorf("scan finding row: %w", err)
		}
		sev, err := result.ParseSeverity(severity)
		if err != nil {
			return nil, fmt.Errorf("run %s: %w", id, err)
		}
		r.AddFinding(run.ProbeFinding{Probe: probeName, StepID: stepID, Severity: sev, Message: message})
	}
	if err := frows.Err(); err != nil {
		return nil, fmt.Errorf("iterate finding rows: %w", err)
	}

	return r, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, trigger_kind, ref, platform, environment, started_at, exit_code, cancelled
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum       Summary
			startedAt sql.NullString
		)
		if err := rows.Scan(&sum.ID, &sum.Trigger, &sum.Ref, &sum.Platform, &sum.Environment, &startedAt, &sum.ExitCode, &sum.Cancelled); err != nil {
			return nil, fmt.Errorf("scan run summary: %w", err)
		}
		sum.StartedAt = parseTime(startedAt)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Prune deletes runs older than retention. Findings and steps cascade.
func (s *Store) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention).Format(timeFormat)
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
