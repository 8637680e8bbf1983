package activities

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"dev/bravebird/ui-verification-go/pkg/browser"
	"dev/bravebird/ui-verification-go/pkg/metrics"
	"dev/bravebird/ui-verification-go/pkg/models"
	"dev/bravebird/ui-verification-go/pkg/temporal/workflows"
	"dev/bravebird/ui-verification-go/pkg/verify"
)

// ResultStore persists finished runs
type ResultStore interface {
	SaveRunResult(ctx context.Context, result models.VerificationResult) error
}

// Activities holds activity implementations
type Activities struct {
	Store         ResultStore
	ScreenshotDir string
	NewLauncher   func(driver string) (verify.Launcher, error)
}

// NewActivities creates new activities. store may be nil, in which case
// results are not persisted.
func NewActivities(store ResultStore, screenshotDir string) *Activities {
	return &Activities{
		Store:         store,
		ScreenshotDir: screenshotDir,
		NewLauncher:   browser.NewLauncher,
	}
}

// RunVerificationActivity executes the settings panel scenario in one
// browser session. A failed scenario is returned as a non-retryable
// application error whose details carry the partial result.
func (a *Activities) RunVerificationActivity(ctx context.Context, input models.WorkflowInput) (models.VerificationResult, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Running settings panel verification", "runID", input.RunID, "driver", input.Driver)

	driver := input.Driver
	if driver == "" {
		driver = browser.DefaultDriver
	}
	launcher, err := a.NewLauncher(driver)
	if err != nil {
		result := models.VerificationResult{
			RunID:        input.RunID,
			Driver:       driver,
			Status:       models.StatusFailed,
			ErrorMessage: err.Error(),
		}
		return result, temporal.NewNonRetryableApplicationError(err.Error(), workflows.ErrTypeDriver, err, result)
	}

	scenario := verify.DefaultScenario()
	if input.TargetURL != "" {
		scenario.URL = input.TargetURL
	}
	dir := input.ScreenshotDir
	if dir == "" {
		dir = a.ScreenshotDir
	}
	if dir != "" {
		scenario.ScreenshotPath = filepath.Join(dir, input.RunID+".png")
	}

	// Heartbeat details carry the steps finished so far; the API reads them
	// from the pending activity to stream live progress
	progress := models.VerificationResult{
		RunID:  input.RunID,
		Driver: launcher.Name(),
		Status: models.StatusRunning,
	}
	runner := verify.NewRunner(launcher, scenario,
		verify.WithRunID(input.RunID),
		verify.WithLogger(logger),
		verify.WithObserver(metrics.StepObserver(launcher.Name())),
		verify.WithObserver(func(sr models.StepResult) {
			progress.StepResults = append(progress.StepResults, sr)
			activity.RecordHeartbeat(ctx, progress)
		}),
	)

	result, err := runner.Run(ctx)
	metrics.ObserveRun(result)
	if err != nil {
		return result, temporal.NewNonRetryableApplicationError(err.Error(), errorType(err), err, result)
	}

	logger.Info("Verification passed", "runID", input.RunID, "screenshot", result.ScreenshotPath)
	return result, nil
}

// RecordRunResultActivity stores the final result and its step results
func (a *Activities) RecordRunResultActivity(ctx context.Context, result models.VerificationResult) error {
	logger := activity.GetLogger(ctx)
	if a.Store == nil {
		logger.Debug("No result store configured, skipping", "runID", result.RunID)
		return nil
	}

	if err := a.Store.SaveRunResult(ctx, result); err != nil {
		return fmt.Errorf("failed to save run result: %w", err)
	}

	logger.Info("Recorded verification result", "runID", result.RunID, "status", result.Status, "steps", len(result.StepResults))
	return nil
}

func errorType(err error) string {
	var releaseErr *verify.ReleaseError
	switch {
	case verify.IsAssertion(err):
		return workflows.ErrTypeAssertion
	case verify.IsNavigation(err):
		return workflows.ErrTypeNavigation
	case errors.As(err, &releaseErr):
		return workflows.ErrTypeRelease
	default:
		return workflows.ErrTypeRun
	}
}
