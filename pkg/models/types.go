package models

import (
	"time"
)

// ==================== Step Types ====================

// StepName identifies a checkpoint of the settings panel scenario
type StepName string

const (
	StepAcquireSession StepName = "acquire_session"
	StepNavigate       StepName = "navigate"
	StepTriggerVisible StepName = "trigger_visible"
	StepOpenPanel      StepName = "open_panel"
	StepPanelShown     StepName = "panel_shown"
	StepDefaultLevel   StepName = "default_level"
	StepChangeLevel    StepName = "change_level"
	StepScreenshot     StepName = "screenshot"
	StepClosePanel     StepName = "close_panel"
	StepPanelHidden    StepName = "panel_hidden"
	StepReleaseSession StepName = "release_session"
)

// ScenarioSteps lists the checkpoints in execution order
var ScenarioSteps = []StepName{
	StepAcquireSession,
	StepNavigate,
	StepTriggerVisible,
	StepOpenPanel,
	StepPanelShown,
	StepDefaultLevel,
	StepChangeLevel,
	StepScreenshot,
	StepClosePanel,
	StepPanelHidden,
	StepReleaseSession,
}

// Sequence returns the 1-based position of the step, or 0 if unknown
func (s StepName) Sequence() int {
	for i, name := range ScenarioSteps {
		if name == s {
			return i + 1
		}
	}
	return 0
}

// ==================== Run Types ====================

// RunStatus represents the status of a verification run or step
type RunStatus string

const (
	StatusPending  RunStatus = "pending"
	StatusRunning  RunStatus = "running"
	StatusSuccess  RunStatus = "success"
	StatusFailed   RunStatus = "failed"
	StatusCanceled RunStatus = "canceled"
)

// IsTerminal reports whether no further transitions are expected
func (s RunStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusCanceled
}

// StepResult represents the outcome of a single scenario checkpoint
type StepResult struct {
	ID             string     `json:"id,omitempty" db:"id"`
	RunID          string     `json:"run_id,omitempty" db:"run_id"`
	SequenceID     int        `json:"sequence_id" db:"sequence_id"`
	Name           StepName   `json:"name" db:"name"`
	Status         RunStatus  `json:"status" db:"status"`
	ScreenshotPath string     `json:"screenshot_path,omitempty" db:"screenshot_path"`
	ErrorMessage   string     `json:"error_message,omitempty" db:"error_message"`
	ExecutedAt     *time.Time `json:"executed_at,omitempty" db:"executed_at"`
	Duration       int64      `json:"duration_ms" db:"duration_ms"`
}

// VerificationResult represents the result of one scenario execution
type VerificationResult struct {
	RunID          string       `json:"run_id"`
	Driver         string       `json:"driver"`
	Status         RunStatus    `json:"status"`
	StepResults    []StepResult `json:"step_results"`
	ScreenshotPath string       `json:"screenshot_path,omitempty"`
	TotalDuration  int64        `json:"total_duration_ms"`
	ErrorMessage   string       `json:"error_message,omitempty"`
}

// FailedStep returns the first failed step, if any
func (r VerificationResult) FailedStep() (StepResult, bool) {
	for _, sr := range r.StepResults {
		if sr.Status == StatusFailed {
			return sr, true
		}
	}
	return StepResult{}, false
}

// VerificationRun represents a persisted execution of the scenario
type VerificationRun struct {
	ID                 string     `json:"id" db:"id"`
	Driver             string     `json:"driver" db:"driver"`
	TargetURL          string     `json:"target_url" db:"target_url"`
	TemporalRunID      string     `json:"temporal_run_id" db:"temporal_run_id"`
	TemporalWorkflowID string     `json:"temporal_workflow_id" db:"temporal_workflow_id"`
	Status             RunStatus  `json:"status" db:"status"`
	ScreenshotPath     string     `json:"screenshot_path,omitempty" db:"screenshot_path"`
	StartedAt          *time.Time `json:"started_at" db:"started_at"`
	CompletedAt        *time.Time `json:"completed_at" db:"completed_at"`
	ErrorMessage       string     `json:"error_message,omitempty" db:"error_message"`

	// Computed fields
	StepResults []StepResult `json:"step_results,omitempty"`
}

// ==================== Workflow Types ====================

// WorkflowInput represents input for a verification workflow
type WorkflowInput struct {
	RunID         string `json:"run_id"`
	Driver        string `json:"driver"`
	TargetURL     string `json:"target_url,omitempty"`
	ScreenshotDir string `json:"screenshot_dir,omitempty"`
	Timeout       int    `json:"timeout_seconds"`
}

// ==================== API Request/Response Types ====================

// RunRequest represents a request to start a verification run
type RunRequest struct {
	Driver    string   `json:"driver"`
	Drivers   []string `json:"drivers,omitempty"` // run once per driver in parallel
	TargetURL string   `json:"target_url,omitempty"`
}

// ==================== WebSocket Message Types ====================

// WSMessage represents a WebSocket message for real-time updates
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// StepStatusUpdate represents a status update for a single step
type StepStatusUpdate struct {
	RunID      string    `json:"run_id"`
	SequenceID int       `json:"sequence_id"`
	Name       StepName  `json:"name"`
	Status     RunStatus `json:"status"`
	Message    string    `json:"message,omitempty"`
}
