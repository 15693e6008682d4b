package executor

import (
	"context"
	"fmt"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/flightcheck/internal/probe"
	"github.com/mattjoyce/flightcheck/internal/result"
	"github.com/mattjoyce/flightcheck/internal/run"
	"github.com/mattjoyce/flightcheck/internal/step"
	"github.com/mattjoyce/flightcheck/internal/toolchain"
	"github.com/mattjoyce/flightcheck/internal/toolchain/mocks"
	"github.com/mattjoyce/flightcheck/internal/trigger"
)

// invokes matches an Invocation by command name.
type invokes struct{ command string }

func (m invokes) Matches(x interface{}) bool {
	inv, ok := x.(toolchain.Invocation)
	return ok && inv.Command == m.command
}

func (m invokes) String() string {
	return fmt.Sprintf("invocation of %q", m.command)
}

func newRun(steps ...step.Step) *run.Run {
	return run.New(trigger.Event{Kind: trigger.Push, Ref: "refs/heads/main"}, steps)
}

func TestHardFailureSkipsTransitiveDependents(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	tc := mocks.NewMockToolchain(ctrl)

	steps := []step.Step{
		{ID: "a", Command: "cmd-a"},
		{ID: "b", Command: "cmd-b", Prerequisites: []string{"a"}},
		{ID: "c", Command: "cmd-c", Prerequisites: []string{"b"}},
	}
	// Only A's action may ever run.
	tc.EXPECT().Invoke(gomock.Any(), invokes{"cmd-a"}).Return(result.Hard("keystore corrupt")).Times(1)

	r := newRun(steps...)
	New(tc, probe.NewRegistry(), Options{}).Execute(context.Background(), r, steps)

	outA, _ := r.Outcome("a")
	outB, _ := r.Outcome("b")
	outC, _ := r.Outcome("c")
	assert.Equal(t, run.StatusHardFailed, outA.Status)
	assert.Equal(t, run.StatusSkipped, outB.Status)
	assert.Equal(t, run.StatusSkipped, outC.Status)
	assert.Contains(t, outB.Message, "a")
	assert.False(t, r.Clean())
}

func TestSoftFailureDoesNotBlockDependents(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	tc := mocks.NewMockToolchain(ctrl)

	steps := []step.Step{
		{ID: "a", Command: "cmd-a"},
		{ID: "b", Command: "cmd-b", Prerequisites: []string{"a"}},
	}
	tc.EXPECT().Invoke(gomock.Any(), invokes{"cmd-a"}).Return(result.Soft("lint findings")).Times(1)
	tc.EXPECT().Invoke(gomock.Any(), invokes{"cmd-b"}).Return(result.OK()).Times(1)

	r := newRun(steps...)
	New(tc, probe.NewRegistry(), Options{}).Execute(context.Background(), r, steps)

	outA, _ := r.Outcome("a")
	outB, _ := r.Outcome("b")
	assert.Equal(t, run.StatusSoftFailed, outA.Status)
	assert.Equal(t, run.StatusSucceeded, outB.Status)
	assert.False(t, r.Clean(), "soft failures still surface in the overall verdict")
}

func TestRetryBoundIsRespected(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	tc := mocks.NewMockToolchain(ctrl)

	steps := []step.Step{
		{ID: "npm-install", Command: "npm", Idempotent: true, Retryable: true},
	}
	// Always transient: attempted exactly 1 + bound times, never more.
	tc.EXPECT().Invoke(gomock.Any(), invokes{"npm"}).
		Return(result.TransientHard("registry unreachable")).Times(3)

	r := newRun(steps...)
	New(tc, probe.NewRegistry(), Options{RetryBound: 2}).Execute(context.Background(), r, steps)

	out, _ := r.Outcome("npm-install")
	assert.Equal(t, run.StatusHardFailed, out.Status)
	assert.Equal(t, 3, out.Attempts)
}

func TestZeroValueOptionsGrantsDefaultRetry(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	tc := mocks.NewMockToolchain(ctrl)

	steps := []step.Step{
		{ID: "bundle-install", Command: "bundle", Idempotent: true, Retryable: true},
	}
	tc.EXPECT().Invoke(gomock.Any(), invokes{"bundle"}).
		Return(result.TransientHard("rubygems unreachable")).Times(1 + DefaultRetryBound)

	r := newRun(steps...)
	New(tc, probe.NewRegistry(), Options{}).Execute(context.Background(), r, steps)

	out, _ := r.Outcome("bundle-install")
	assert.Equal(t, run.StatusHardFailed, out.Status)
	assert.Equal(t, 1+DefaultRetryBound, out.Attempts, "unconfigured executor must still retry once")
}

func TestNegativeRetryBoundDisablesRetries(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	tc := mocks.NewMockToolchain(ctrl)

	steps := []step.Step{
		{ID: "bundle-install", Command: "bundle", Idempotent: true, Retryable: true},
	}
	tc.EXPECT().Invoke(gomock.Any(), invokes{"bundle"}).
		Return(result.TransientHard("rubygems unreachable")).Times(1)

	r := newRun(steps...)
	New(tc, probe.NewRegistry(), Options{RetryBound: -1}).Execute(context.Background(), r, steps)

	out, _ := r.Outcome("bundle-install")
	assert.Equal(t, run.StatusHardFailed, out.Status)
	assert.Equal(t, 1, out.Attempts)
}

func TestDeterministicFailureIsNeverRetried(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	tc := mocks.NewMockToolchain(ctrl)

	steps := []step.Step{
		{ID: "sign", Command: "fastlane", Idempotent: true, Retryable: true},
	}
	tc.EXPECT().Invoke(gomock.Any(), invokes{"fastlane"}).
		Return(result.Hard("provisioning profile missing")).Times(1)

	r := newRun(steps...)
	New(tc, probe.NewRegistry(), Options{RetryBound: 5}).Execute(context.Background(), r, steps)

	out, _ := r.Outcome("sign")
	assert.Equal(t, run.StatusHardFailed, out.Status)
	assert.Equal(t, 1, out.Attempts)
}

func TestTransientThenSuccess(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	tc := mocks.NewMockToolchain(ctrl)

	steps := []step.Step{
		{ID: "pod-install", Command: "pod", Idempotent: true, Retryable: true},
	}
	gomock.InOrder(
		tc.EXPECT().Invoke(gomock.Any(), invokes{"pod"}).Return(result.TransientHard("cdn timeout")),
		tc.EXPECT().Invoke(gomock.Any(), invokes{"pod"}).Return(result.OK()),
	)

	r := newRun(steps...)
	New(tc, probe.NewRegistry(), Options{}).Execute(context.Background(), r, steps)

	out, _ := r.Outcome("pod-install")
	assert.Equal(t, run.StatusSucceeded, out.Status)
	assert.Equal(t, 2, out.Attempts)
}

func TestBlockingProbeFailureStopsAction(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	tc := mocks.NewMockToolchain(ctrl)

	reg := probe.NewRegistry()
	require.NoError(t, reg.Register(probe.Probe{
		Name:     "android-sdk",
		Severity: result.Blocking,
		Predicate: func(context.Context) result.Result {
			return result.Hard("ANDROID_HOME not set").WithKind("missing_tool")
		},
	}))

	steps := []step.Step{
		{ID: "gradle-build", Command: "gradle", Probes: []string{"android-sdk"}},
	}
	// No Invoke expectation: the action must never run.

	r := newRun(steps...)
	New(tc, reg, Options{}).Execute(context.Background(), r, steps)

	out, _ := r.Outcome("gradle-build")
	assert.Equal(t, run.StatusHardFailed, out.Status)
	assert.Contains(t, out.Message, "android-sdk")
	require.Len(t, r.Findings, 1)
	assert.Equal(t, result.Blocking, r.Findings[0].Severity)
}

func TestWarningProbeIsRecordedButDoesNotBlock(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	tc := mocks.NewMockToolchain(ctrl)

	reg := probe.NewRegistry()
	require.NoError(t, reg.Register(probe.Probe{
		Name:     "node-version",
		Severity: result.Warning,
		Predicate: func(context.Context) result.Result {
			return result.Soft("node 16 is EOL")
		},
	}))

	steps := []step.Step{
		{ID: "npm-install", Command: "npm", Probes: []string{"node-version"}},
	}
	tc.EXPECT().Invoke(gomock.Any(), invokes{"npm"}).Return(result.OK()).Times(1)

	r := newRun(steps...)
	New(tc, reg, Options{}).Execute(context.Background(), r, steps)

	out, _ := r.Outcome("npm-install")
	assert.Equal(t, run.StatusSucceeded, out.Status)
	require.Len(t, r.Findings, 1)
	assert.Equal(t, result.Warning, r.Findings[0].Severity)
	assert.True(t, r.Clean(), "warning findings do not fail the run")
}

func TestUnknownProbeIsConfigHardFailure(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	tc := mocks.NewMockToolchain(ctrl)

	steps := []step.Step{
		{ID: "build", Command: "gradle", Probes: []string{"no-such-probe"}},
	}

	r := newRun(steps...)
	New(tc, probe.NewRegistry(), Options{}).Execute(context.Background(), r, steps)

	out, _ := r.Outcome("build")
	assert.Equal(t, run.StatusHardFailed, out.Status)
	assert.Equal(t, "config", out.Kind)
}

func TestCancellationTakesEffectBetweenSteps(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	tc := mocks.NewMockToolchain(ctrl)

	ctx, cancel := context.WithCancel(context.Background())

	steps := []step.Step{
		{ID: "first", Command: "cmd-1"},
		{ID: "second", Command: "cmd-2"},
		{ID: "third", Command: "cmd-3"},
	}
	// Cancel while the first step is "running"; the rest must be skipped
	// without their actions being invoked.
	tc.EXPECT().Invoke(gomock.Any(), invokes{"cmd-1"}).
		DoAndReturn(func(context.Context, toolchain.Invocation) result.Result {
			cancel()
			return result.OK()
		}).Times(1)

	r := newRun(steps...)
	New(tc, probe.NewRegistry(), Options{}).Execute(ctx, r, steps)

	outFirst, _ := r.Outcome("first")
	outSecond, _ := r.Outcome("second")
	outThird, _ := r.Outcome("third")
	assert.Equal(t, run.StatusSucceeded, outFirst.Status)
	assert.Equal(t, run.StatusSkipped, outSecond.Status)
	assert.Equal(t, run.StatusSkipped, outThird.Status)
	assert.True(t, r.Cancelled)
}

func TestProbeGateStepWithoutCommand(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	tc := mocks.NewMockToolchain(ctrl)

	reg := probe.NewRegistry()
	require.NoError(t, reg.Register(probe.Probe{
		Name:      "workspace",
		Severity:  result.Blocking,
		Predicate: func(context.Context) result.Result { return result.OK() },
	}))

	steps := []step.Step{
		{ID: "preflight", Probes: []string{"workspace"}},
	}

	r := newRun(steps...)
	New(tc, reg, Options{}).Execute(context.Background(), r, steps)

	out, _ := r.Outcome("preflight")
	assert.Equal(t, run.StatusSucceeded, out.Status)
	assert.True(t, r.Clean())
}
