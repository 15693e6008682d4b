package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/flightcheck/internal/config"
	"github.com/mattjoyce/flightcheck/internal/history"
	"github.com/mattjoyce/flightcheck/internal/plan"
	"github.com/mattjoyce/flightcheck/internal/result"
	"github.com/mattjoyce/flightcheck/internal/run"
	"github.com/mattjoyce/flightcheck/internal/storage"
	"github.com/mattjoyce/flightcheck/internal/toolchain"
	"github.com/mattjoyce/flightcheck/internal/toolchain/mocks"
	"github.com/mattjoyce/flightcheck/internal/trigger"
)

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Steps = []config.StepConf{
		{ID: "checkout", Category: "checkout", Command: "git", Args: []string{"clone"}},
		{ID: "build", Category: "build", Prerequisites: []string{"checkout"}, Command: "make"},
		{ID: "deploy", Category: "deploy", Prerequisites: []string{"build"}, Command: "fastlane"},
	}
	return cfg
}

func TestDispatchRunsPlannedSteps(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	tc := mocks.NewMockToolchain(ctrl)
	tc.EXPECT().Invoke(gomock.Any(), gomock.Any()).Return(result.OK()).Times(2)

	e, err := New(testConfig(), tc, Options{})
	require.NoError(t, err)

	rep, err := e.Dispatch(context.Background(), trigger.Event{Kind: trigger.PullRequest, Ref: "refs/pull/7"})
	require.NoError(t, err)

	// PRs never deploy, so only checkout and build run.
	require.Len(t, rep.Steps, 2)
	assert.Equal(t, "checkout", rep.Steps[0].ID)
	assert.Equal(t, "build", rep.Steps[1].ID)
	assert.Equal(t, 0, rep.ExitCode)
}

func TestDispatchSurfacesPlanningErrors(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	tc := mocks.NewMockToolchain(ctrl)

	e, err := New(testConfig(), tc, Options{})
	require.NoError(t, err)

	_, err = e.Dispatch(context.Background(), trigger.Event{Kind: trigger.Manual, Ref: "refs/heads/main"})
	var missing *plan.MissingArgumentError
	require.ErrorAs(t, err, &missing)
}

func TestDispatchPersistsRun(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	tc := mocks.NewMockToolchain(ctrl)
	tc.EXPECT().Invoke(gomock.Any(), gomock.Any()).Return(result.Hard("boom").WithKind("command_failed")).Times(1)

	db, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "fc.db"))
	require.NoError(t, err)
	defer db.Close()
	store := history.New(db)

	e, err := New(testConfig(), tc, Options{History: store})
	require.NoError(t, err)

	rep, err := e.Dispatch(context.Background(), trigger.Event{Kind: trigger.Push, Ref: "refs/heads/main"})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.ExitCode)

	saved, err := store.GetRun(context.Background(), rep.RunID)
	require.NoError(t, err)
	assert.Equal(t, run.StatusHardFailed, saved.Results["checkout"].Status)
	assert.Equal(t, run.StatusSkipped, saved.Results["build"].Status)
}

func TestNewRejectsBrokenCatalog(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cfg := testConfig()
	cfg.Steps = append(cfg.Steps, config.StepConf{ID: "checkout", Category: "checkout", Command: "git"})

	var tc toolchain.Toolchain = mocks.NewMockToolchain(ctrl)
	_, err := New(cfg, tc, Options{})
	require.Error(t, err)
}
