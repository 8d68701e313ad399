package internal

import (
	"context"
	"testing"
	"time"

	"github.com/copyleftdev/scryshot/internal/config"
	"github.com/copyleftdev/scryshot/internal/readiness"
	"github.com/copyleftdev/scryshot/internal/runs"
	"github.com/copyleftdev/scryshot/internal/scenario"
	"github.com/copyleftdev/scryshot/internal/scenario/mocks"
	"github.com/copyleftdev/scryshot/internal/scenariotypes"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Drives the whole queue -> runner -> session -> page pipeline against an
// in-memory application that never shows its Research Lab control.
func TestVerificationWorkflow(t *testing.T) {
	fs := afero.NewMemMapFs()
	sessions := mocks.NewMockSessionManager(func() *mocks.MockPage {
		return mocks.NewMockPage(fs).WithElement("canvas").WithText("VOXEL WALKER")
	})

	cfg := config.Default()
	cfg.Readiness.DefaultTimeout = 200 * time.Millisecond
	cfg.Readiness.DefaultSettle = 0
	logger := zap.NewNop()

	runner := scenario.NewRunner(sessions, readiness.NewDetector(cfg.Readiness, logger), scenario.OptionsFromConfig(cfg), logger)
	manager := runs.NewManager(runner, logger)

	catalog := scenario.NewCatalog(scenario.Builtins()...)
	uiSplit, ok := catalog.Get("ui-split")
	require.True(t, ok)

	// verify with an explicit zero settle and a short canvas timeout.
	verify, ok := catalog.Get("verify")
	require.True(t, ok)
	verify.Steps = append([]scenariotypes.Step(nil), verify.Steps...)
	verify.Steps[1] = scenariotypes.Await(scenariotypes.ElementPresent("canvas", time.Second).WithSettle(0))

	splitRun, err := manager.Submit(uiSplit, "")
	require.NoError(t, err)
	verifyRun, err := manager.Submit(verify, "")
	require.NoError(t, err)

	split := waitForRun(t, manager, splitRun.ID, 5*time.Second)
	assert.Equal(t, scenariotypes.StatusPartiallyFailed, split.Result.Status)
	assert.Equal(t, scenariotypes.StepInteract, split.Result.Degraded()[0].Step.Kind)

	verified := waitForRun(t, manager, verifyRun.ID, 5*time.Second)
	assert.Equal(t, scenariotypes.StatusSucceeded, verified.Result.Status)

	for _, path := range []string{"verification/main_ui.png", "verification/shop_modal.png", "verification/verification.png"} {
		exists, err := afero.Exists(fs, path)
		require.NoError(t, err)
		assert.True(t, exists, path)
	}

	assert.Equal(t, 2, sessions.Acquired())
	assert.Equal(t, 2, sessions.Released())

	err = manager.Shutdown(context.Background())
	require.NoError(t, err)
}

// waitForRun polls until the run is done.
func waitForRun(t *testing.T, manager *runs.Manager, id uuid.UUID, timeout time.Duration) *runs.Run {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		run, err := manager.Get(id)
		if err == nil && run.Status == runs.StatusDone {
			return run
		}
		time.Sleep(20 * time.Millisecond)
	}
	run, err := manager.Get(id)
	status := "unknown"
	if err == nil {
		status = string(run.Status)
	}
	t.Fatalf("Run did not complete within timeout, current status: %s", status)
	return nil
}
