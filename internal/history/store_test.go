package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mattjoyce/flightcheck/internal/report"
	"github.com/mattjoyce/flightcheck/internal/result"
	"github.com/mattjoyce/flightcheck/internal/run"
	"github.com/mattjoyce/flightcheck/internal/step"
	"github.com/mattjoyce/flightcheck/internal/storage"
	"github.com/mattjoyce/flightcheck/internal/trigger"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "flightcheck.db")
	db, err := storage.OpenSQLite(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db)
}

func finishedRun() *run.Run {
	at := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)
	r := run.New(trigger.Event{
		Kind:        trigger.Tag,
		Ref:         "v3.1.0",
		Platform:    step.PlatformBoth,
		Environment: step.EnvProduction,
	}, []step.Step{{ID: "checkout"}, {ID: "build"}, {ID: "deploy"}})
	r.StartedAt = at
	r.FinishedAt = at.Add(4 * time.Minute)
	r.Results["checkout"] = run.StepOutcome{Status: run.StatusSucceeded, Attempts: 1, StartedAt: at, FinishedAt: at.Add(5 * time.Second)}
	r.Results["build"] = run.StepOutcome{Status: run.StatusHardFailed, Message: "xcodebuild exited 65", Kind: "command_failed", Attempts: 2}
	r.Results["deploy"] = run.StepOutcome{Status: run.StatusSkipped, Message: "prerequisite build did not succeed", Kind: "skipped"}
	r.AddFinding(run.ProbeFinding{Probe: "xcode-select", StepID: "build", Severity: result.Warning, Message: "xcode 15.1, expected 15.4"})
	return r
}

func TestSaveAndReplayRun(t *testing.T) {
	t.Parallel()

	s := testStore(t)
	original := finishedRun()
	if err := s.SaveRun(context.Background(), original, report.ExitCode(original)); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	replayed, err := s.GetRun(context.Background(), original.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}

	// The whole point of history: the replayed report is byte-identical.
	want, err := report.RenderJSON(original)
	if err != nil {
		t.Fatalf("RenderJSON original: %v", err)
	}
	got, err := report.RenderJSON(replayed)
	if err != nil {
		t.Fatalf("RenderJSON replayed: %v", err)
	}
	if string(want) != string(got) {
		t.Fatalf("replayed report differs:\nwant:\n%s\ngot:\n%s", want, got)
	}

	if report.FormatHuman(original) != report.FormatHuman(replayed) {
		t.Fatal("human rendering differs after replay")
	}
}

func TestGetRunNotFound(t *testing.T) {
	t.Parallel()

	s := testStore(t)
	if _, err := s.GetRun(context.Background(), "missing-id"); err != ErrRunNotFound {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	t.Parallel()

	s := testStore(t)
	older := finishedRun()
	older.StartedAt = time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC)
	newer := finishedRun()
	newer.StartedAt = time.Date(2025, 11, 2, 9, 0, 0, 0, time.UTC)

	if err := s.SaveRun(context.Background(), older, 1); err != nil {
		t.Fatalf("SaveRun older: %v", err)
	}
	if err := s.SaveRun(context.Background(), newer, 1); err != nil {
		t.Fatalf("SaveRun newer: %v", err)
	}

	got, err := s.ListRuns(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(got) != 2 || got[0].ID != newer.ID || got[1].ID != older.ID {
		t.Fatalf("unexpected order: %#v", got)
	}
	if got[0].ExitCode != 1 || got[0].Trigger != "tag" {
		t.Fatalf("summary fields wrong: %#v", got[0])
	}
}

func TestPruneDeletesOldRunsAndCascades(t *testing.T) {
	t.Parallel()

	s := testStore(t)
	old := finishedRun()
	old.StartedAt = time.Now().UTC().Add(-60 * 24 * time.Hour)
	if err := s.SaveRun(context.Background(), old, 1); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	n, err := s.Prune(context.Background(), 30*24*time.Hour)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 pruned run, got %d", n)
	}
	if _, err := s.GetRun(context.Background(), old.ID); err != ErrRunNotFound {
		t.Fatalf("expected cascade delete, got %v", err)
	}
}
