package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"dev/bravebird/ui-verification-go/pkg/models"

	_ "github.com/go-sql-driver/mysql"
)

//go:embed schema.sql
var schemaSQL string

// DB represents the database connection
type DB struct {
	conn *sql.DB
}

// New creates a new database connection
func New(dsn string) (*DB, error) {
	conn, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Migrate creates the tables if they do not exist
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements() {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

func schemaStatements() []string {
	var stmts []string
	for _, part := range strings.Split(schemaSQL, ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// ==================== Verification Runs ====================

const runColumns = `
	id, driver, target_url, temporal_run_id, temporal_workflow_id, status,
	screenshot_path, started_at, completed_at, COALESCE(error_message, '')
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (models.VerificationRun, error) {
	var run models.VerificationRun
	err := row.Scan(
		&run.ID,
		&run.Driver,
		&run.TargetURL,
		&run.TemporalRunID,
		&run.TemporalWorkflowID,
		&run.Status,
		&run.ScreenshotPath,
		&run.StartedAt,
		&run.CompletedAt,
		&run.ErrorMessage,
	)
	return run, err
}

// CreateRun inserts a verification run, or refreshes its Temporal IDs,
// status and start time if the row already exists. A terminal status
// already stored is never overwritten.
func (db *DB) CreateRun(ctx context.Context, run *models.VerificationRun) error {
	query := `
		INSERT INTO verification_runs (id, driver, target_url, temporal_run_id, temporal_workflow_id, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			temporal_run_id = VALUES(temporal_run_id),
			temporal_workflow_id = VALUES(temporal_workflow_id),
			started_at = VALUES(started_at),
			status = IF(status IN ('success', 'failed', 'canceled'), status, VALUES(status))
	`

	_, err := db.conn.ExecContext(ctx, query,
		run.ID,
		run.Driver,
		run.TargetURL,
		run.TemporalRunID,
		run.TemporalWorkflowID,
		run.Status,
		run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// GetRun retrieves a verification run by ID
func (db *DB) GetRun(ctx context.Context, id string) (*models.VerificationRun, error) {
	query := `SELECT ` + runColumns + ` FROM verification_runs WHERE id = ?`

	run, err := scanRun(db.conn.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return &run, nil
}

// ListRuns retrieves the most recent runs
func (db *DB) ListRuns(ctx context.Context, limit int) ([]models.VerificationRun, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + runColumns + ` FROM verification_runs ORDER BY created_at DESC LIMIT ?`

	rows, err := db.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []models.VerificationRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// UpdateRunStatus updates the status of a verification run
func (db *DB) UpdateRunStatus(ctx context.Context, id string, status models.RunStatus, errorMsg string) error {
	query := `
		UPDATE verification_runs
		SET status = ?, error_message = ?,
		    completed_at = CASE WHEN ? IN ('success', 'failed', 'canceled') THEN NOW() ELSE completed_at END
		WHERE id = ?
	`

	_, err := db.conn.ExecContext(ctx, query, status, errorMsg, status, id)
	return err
}

// SaveRunResult stores the final status and every step result of a run
// in one transaction
func (db *DB) SaveRunResult(ctx context.Context, result models.VerificationResult) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE verification_runs
		SET status = ?, error_message = ?, screenshot_path = ?, completed_at = NOW()
		WHERE id = ?
	`, result.Status, result.ErrorMessage, result.ScreenshotPath, result.RunID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM step_results WHERE run_id = ?`, result.RunID); err != nil {
		return fmt.Errorf("failed to clear step results: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO step_results (id, run_id, sequence_id, name, status, screenshot_path, error_message, executed_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, sr := range result.StepResults {
		id := sr.ID
		if id == "" {
			id = uuid.New().String()
		}
		_, err := stmt.ExecContext(ctx,
			id,
			result.RunID,
			sr.SequenceID,
			sr.Name,
			sr.Status,
			sr.ScreenshotPath,
			sr.ErrorMessage,
			sr.ExecutedAt,
			sr.Duration,
		)
		if err != nil {
			return fmt.Errorf("failed to insert step result: %w", err)
		}
	}

	return tx.Commit()
}

// ==================== Step Results ====================

// GetStepResults retrieves step results for a run
func (db *DB) GetStepResults(ctx context.Context, runID string) ([]models.StepResult, error) {
	query := `
		SELECT id, run_id, sequence_id, name, status, screenshot_path,
		       COALESCE(error_message, ''), executed_at, duration_ms
		FROM step_results
		WHERE run_id = ?
		ORDER BY sequence_id
	`

	rows, err := db.conn.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get results: %w", err)
	}
	defer rows.Close()

	results := []models.StepResult{}
	for rows.Next() {
		var result models.StepResult
		err := rows.Scan(
			&result.ID,
			&result.RunID,
			&result.SequenceID,
			&result.Name,
			&result.Status,
			&result.ScreenshotPath,
			&result.ErrorMessage,
			&result.ExecutedAt,
			&result.Duration,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, result)
	}

	return results, rows.Err()
}
