package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"

	"dev/bravebird/ui-verification-go/pkg/browser"
	"dev/bravebird/ui-verification-go/pkg/models"
	"dev/bravebird/ui-verification-go/pkg/temporal/workflows"
	"dev/bravebird/ui-verification-go/pkg/verify"
)

// WorkflowIDPrefix prefixes the Temporal workflow ID of every run
const WorkflowIDPrefix = "settings-verification-"

// Store is the run persistence used by the handlers
type Store interface {
	CreateRun(ctx context.Context, run *models.VerificationRun) error
	GetRun(ctx context.Context, id string) (*models.VerificationRun, error)
	ListRuns(ctx context.Context, limit int) ([]models.VerificationRun, error)
	UpdateRunStatus(ctx context.Context, id string, status models.RunStatus, errorMsg string) error
	GetStepResults(ctx context.Context, runID string) ([]models.StepResult, error)
}

// Handlers contains API handlers
type Handlers struct {
	db             Store
	temporalClient client.Client
	screenshotDir  string
	pollInterval   time.Duration
	upgrader       websocket.Upgrader
}

// NewHandlers creates new API handlers. db may be nil when running
// without persistence.
func NewHandlers(db Store, temporalClient client.Client, screenshotDir string) *Handlers {
	return &Handlers{
		db:             db,
		temporalClient: temporalClient,
		screenshotDir:  screenshotDir,
		pollInterval:   500 * time.Millisecond,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ==================== Run Handlers ====================

// StartRun starts a verification workflow. A request naming several
// drivers starts one cross-driver workflow with a child run per driver.
func (h *Handlers) StartRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	drivers, err := requestedDrivers(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	targetURL := req.TargetURL
	if targetURL == "" {
		targetURL = verify.TargetURL
	}

	if h.temporalClient == nil {
		http.Error(w, "Temporal not available", http.StatusServiceUnavailable)
		return
	}

	groupID := uuid.New().String()
	workflowID := WorkflowIDPrefix + groupID

	inputs := make([]models.WorkflowInput, 0, len(drivers))
	runs := make([]*models.VerificationRun, 0, len(drivers))
	for _, driver := range drivers {
		runID := groupID
		runWorkflowID := workflowID
		if len(drivers) > 1 {
			runID = uuid.New().String()
			runWorkflowID = workflowID + "-" + driver
		}
		inputs = append(inputs, models.WorkflowInput{
			RunID:         runID,
			Driver:        driver,
			TargetURL:     targetURL,
			ScreenshotDir: h.screenshotDir,
			Timeout:       120,
		})
		runs = append(runs, &models.VerificationRun{
			ID:                 runID,
			Driver:             driver,
			TargetURL:          targetURL,
			TemporalWorkflowID: runWorkflowID,
			Status:             models.StatusPending,
		})
	}

	if h.db != nil {
		for _, run := range runs {
			if err := h.db.CreateRun(ctx, run); err != nil {
				http.Error(w, "Failed to create run: "+err.Error(), http.StatusInternalServerError)
				return
			}
		}
	}

	workflowOptions := client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: workflows.TaskQueue,
	}

	var we client.WorkflowRun
	if len(inputs) == 1 {
		we, err = h.temporalClient.ExecuteWorkflow(ctx, workflowOptions, workflows.VerificationWorkflow, inputs[0])
	} else {
		we, err = h.temporalClient.ExecuteWorkflow(ctx, workflowOptions, workflows.CrossDriverVerificationWorkflow,
			workflows.CrossDriverInput{Runs: inputs})
	}
	if err != nil {
		if h.db != nil {
			for _, run := range runs {
				if uerr := h.db.UpdateRunStatus(ctx, run.ID, models.StatusFailed, err.Error()); uerr != nil {
					log.Printf("Warning: Failed to mark run %s failed: %v", run.ID, uerr)
				}
			}
		}
		http.Error(w, "Failed to start workflow: "+err.Error(), http.StatusInternalServerError)
		return
	}

	// Update runs with Temporal IDs
	now := time.Now()
	runIDs := make([]string, 0, len(runs))
	for _, run := range runs {
		if len(runs) == 1 {
			run.TemporalRunID = we.GetRunID()
		}
		run.Status = models.StatusRunning
		run.StartedAt = &now
		runIDs = append(runIDs, run.ID)
		// Update with Temporal IDs. A result the worker already saved keeps
		// its terminal status.
		if h.db != nil {
			if err := h.db.CreateRun(ctx, run); err != nil {
				log.Printf("Warning: Failed to record Temporal IDs for run %s: %v", run.ID, err)
			}
		}
	}

	respondJSON(w, map[string]interface{}{
		"run_ids":              runIDs,
		"temporal_workflow_id": we.GetID(),
		"temporal_run_id":      we.GetRunID(),
		"status":               models.StatusRunning,
	})
}

func requestedDrivers(req models.RunRequest) ([]string, error) {
	names := req.Drivers
	if len(names) == 0 {
		names = []string{req.Driver}
	}

	known := browser.Drivers()
	drivers := make([]string, 0, len(names))
	for _, name := range names {
		if name == "" {
			name = browser.DefaultDriver
		}
		if !slices.Contains(known, name) {
			return nil, fmt.Errorf("unknown driver %q, available: %v", name, known)
		}
		if !slices.Contains(drivers, name) {
			drivers = append(drivers, name)
		}
	}
	return drivers, nil
}

// ListRuns lists the most recent verification runs
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.db == nil {
		http.Error(w, "Database not available", http.StatusServiceUnavailable)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := h.db.ListRuns(ctx, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, runs)
}

// GetRun retrieves a verification run with its step results
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	if h.db == nil {
		http.Error(w, "Database not available", http.StatusServiceUnavailable)
		return
	}

	run, err := h.db.GetRun(ctx, id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	results, err := h.db.GetStepResults(ctx, id)
	if err != nil {
		log.Printf("Warning: Failed to load step results for run %s: %v", id, err)
	}
	run.StepResults = results

	respondJSON(w, run)
}

// CancelRun cancels a running verification
func (h *Handlers) CancelRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	if h.db == nil {
		http.Error(w, "Database not available", http.StatusServiceUnavailable)
		return
	}

	run, err := h.db.GetRun(ctx, id)
	if err != nil || run == nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	if run.Status.IsTerminal() {
		http.Error(w, fmt.Sprintf("Run already %s", run.Status), http.StatusConflict)
		return
	}

	if run.TemporalWorkflowID != "" && h.temporalClient != nil {
		err = h.temporalClient.CancelWorkflow(ctx, run.TemporalWorkflowID, run.TemporalRunID)
		if err != nil {
			http.Error(w, "Failed to cancel workflow: "+err.Error(), http.StatusInternalServerError)
			return
		}
	}

	if err := h.db.UpdateRunStatus(ctx, id, models.StatusCanceled, "Cancelled by user"); err != nil {
		log.Printf("Warning: Failed to mark run %s canceled: %v", id, err)
	}

	respondJSON(w, map[string]string{"status": string(models.StatusCanceled)})
}

// StreamRunUpdates streams step and run updates via WebSocket until the
// run reaches a terminal status
func (h *Handlers) StreamRunUpdates(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx := r.Context()
	workflowID := WorkflowIDPrefix + runID
	if h.db != nil {
		if run, err := h.db.GetRun(ctx, runID); err == nil && run != nil && run.TemporalWorkflowID != "" {
			workflowID = run.TemporalWorkflowID
		}
	}

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	var lastStatus models.RunStatus
	sent := 0

	for {
		status, steps := h.progress(ctx, runID, workflowID)

		for ; sent < len(steps); sent++ {
			sr := steps[sent]
			msg := models.WSMessage{
				Type: "step_update",
				Payload: models.StepStatusUpdate{
					RunID:      runID,
					SequenceID: sr.SequenceID,
					Name:       sr.Name,
					Status:     sr.Status,
					Message:    sr.ErrorMessage,
				},
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}

		if status != "" && status != lastStatus {
			msg := models.WSMessage{
				Type: "run_update",
				Payload: map[string]interface{}{
					"run_id":       runID,
					"status":       status,
					"step_results": steps,
				},
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
			lastStatus = status

			if status.IsTerminal() {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(status)))
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// progress reads live step progress from the running activity's heartbeat,
// then the workflow query, falling back to the database once the workflow
// is gone or unreachable
func (h *Handlers) progress(ctx context.Context, runID, workflowID string) (models.RunStatus, []models.StepResult) {
	if h.temporalClient != nil {
		if live, ok := h.heartbeatProgress(ctx, workflowID); ok {
			return live.Status, live.StepResults
		}
		queryResp, err := h.temporalClient.QueryWorkflow(ctx, workflowID, "", workflows.ProgressQuery)
		if err == nil {
			var result models.VerificationResult
			if queryResp.Get(&result) == nil && result.Status != "" {
				return result.Status, result.StepResults
			}
		}
	}

	if h.db == nil {
		return "", nil
	}
	run, err := h.db.GetRun(ctx, runID)
	if err != nil || run == nil {
		return "", nil
	}
	results, err := h.db.GetStepResults(ctx, runID)
	if err != nil {
		log.Printf("Warning: Failed to load step results for run %s: %v", runID, err)
	}
	return run.Status, results
}

// heartbeatProgress decodes the steps recorded so far from the heartbeat
// details of the pending verification activity
func (h *Handlers) heartbeatProgress(ctx context.Context, workflowID string) (models.VerificationResult, bool) {
	var progress models.VerificationResult
	desc, err := h.temporalClient.DescribeWorkflowExecution(ctx, workflowID, "")
	if err != nil {
		return progress, false
	}
	for _, pa := range desc.GetPendingActivities() {
		if pa.GetActivityType().GetName() != workflows.RunVerificationActivityName || pa.GetHeartbeatDetails() == nil {
			continue
		}
		if err := converter.GetDefaultDataConverter().FromPayloads(pa.GetHeartbeatDetails(), &progress); err != nil {
			log.Printf("Warning: Failed to decode heartbeat for %s: %v", workflowID, err)
			return progress, false
		}
		return progress, progress.Status != ""
	}
	return progress, false
}

// ListDrivers lists the registered browser drivers
func (h *Handlers) ListDrivers(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]interface{}{
		"drivers": browser.Drivers(),
		"default": browser.DefaultDriver,
	})
}

// ==================== Screenshot Handlers ====================

// ServeScreenshot serves a screenshot file
func (h *Handlers) ServeScreenshot(w http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)["filename"]

	// Only files directly inside the screenshot directory are served
	filePath := filepath.Join(h.screenshotDir, filepath.Base(filename))

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.Error(w, "Screenshot not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeFile(w, r, filePath)
}

// ==================== Helpers ====================

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}
