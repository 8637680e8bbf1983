package workflows

import (
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"dev/bravebird/ui-verification-go/pkg/models"
)

const (
	TaskQueue = "ui-verification"

	RunVerificationActivityName = "RunVerificationActivity"
	RecordRunResultActivityName = "RecordRunResultActivity"

	// ProgressQuery returns the current models.VerificationResult
	ProgressQuery = "getProgress"

	defaultTimeoutSeconds = 120
)

// Non-retryable application error types raised by the verification activity
const (
	ErrTypeAssertion  = "AssertionError"
	ErrTypeNavigation = "NavigationError"
	ErrTypeRelease    = "ReleaseError"
	ErrTypeDriver     = "UnknownDriverError"
	ErrTypeRun        = "VerificationError"
)

// VerificationWorkflow runs the settings panel scenario once and records
// its result. Scenario failures are reported through the result status,
// never retried.
func VerificationWorkflow(ctx workflow.Context, input models.WorkflowInput) (models.VerificationResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting settings panel verification workflow", "runID", input.RunID, "driver", input.Driver)

	result := models.VerificationResult{
		RunID:  input.RunID,
		Driver: input.Driver,
		Status: models.StatusRunning,
	}

	// Register query handler for real-time progress
	err := workflow.SetQueryHandler(ctx, ProgressQuery, func() (models.VerificationResult, error) {
		return result, nil
	})
	if err != nil {
		logger.Error("Failed to register query handler", "error", err)
	}

	timeout := input.Timeout
	if timeout <= 0 {
		timeout = defaultTimeoutSeconds
	}

	runCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Duration(timeout) * time.Second,
		HeartbeatTimeout:    30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	})

	err = workflow.ExecuteActivity(runCtx, RunVerificationActivityName, input).Get(runCtx, &result)
	if err != nil {
		var appErr *temporal.ApplicationError
		if !errors.As(err, &appErr) || !appErr.HasDetails() || appErr.Details(&result) != nil {
			result.StepResults = nil
		}
		result.RunID = input.RunID
		result.Status = models.StatusFailed
		if result.ErrorMessage == "" {
			result.ErrorMessage = err.Error()
		}
		if temporal.IsCanceledError(err) {
			result.Status = models.StatusCanceled
		}
	}

	// Persist on a disconnected context so a canceled run is still recorded
	recordCtx, cancel := workflow.NewDisconnectedContext(ctx)
	defer cancel()
	recordCtx = workflow.WithActivityOptions(recordCtx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumAttempts:    3,
		},
	})
	if err := workflow.ExecuteActivity(recordCtx, RecordRunResultActivityName, result).Get(recordCtx, nil); err != nil {
		logger.Warn("Failed to record verification result", "runID", input.RunID, "error", err)
	}

	logger.Info("Workflow completed", "status", result.Status, "duration", result.TotalDuration)
	return result, nil
}

// CrossDriverInput runs the scenario once per entry, each with its own driver
type CrossDriverInput struct {
	Runs []models.WorkflowInput `json:"runs"`
}

// CrossDriverResult holds one result per input run, in input order
type CrossDriverResult struct {
	Results []models.VerificationResult `json:"results"`
}

// CrossDriverVerificationWorkflow runs VerificationWorkflow as parallel
// child workflows, one per run entry
func CrossDriverVerificationWorkflow(ctx workflow.Context, input CrossDriverInput) (CrossDriverResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting cross-driver verification", "runCount", len(input.Runs))

	result := CrossDriverResult{
		Results: make([]models.VerificationResult, len(input.Runs)),
	}

	parentID := workflow.GetInfo(ctx).WorkflowExecution.ID
	selector := workflow.NewSelector(ctx)

	for i, run := range input.Runs {
		childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
			WorkflowID: parentID + "-" + run.Driver,
		})
		future := workflow.ExecuteChildWorkflow(childCtx, VerificationWorkflow, run)

		idx := i
		runCfg := run
		selector.AddFuture(future, func(f workflow.Future) {
			var childResult models.VerificationResult
			if err := f.Get(ctx, &childResult); err != nil {
				childResult = models.VerificationResult{
					RunID:        runCfg.RunID,
					Driver:       runCfg.Driver,
					Status:       models.StatusFailed,
					ErrorMessage: err.Error(),
				}
			}
			result.Results[idx] = childResult
		})
	}

	// Wait for all child workflows to complete
	for range input.Runs {
		selector.Select(ctx)
	}

	logger.Info("Cross-driver verification completed", "totalRuns", len(input.Runs))
	return result, nil
}
