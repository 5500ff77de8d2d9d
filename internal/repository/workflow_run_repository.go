package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/thelaunchpad/coach-worker/internal/models"
	"gorm.io/gorm"
)

type WorkflowRunRepository struct {
	db *gorm.DB
}

func NewWorkflowRunRepository(db *gorm.DB) *WorkflowRunRepository {
	return &WorkflowRunRepository{db: db}
}

// Start records a new running workflow invocation and returns its id.
func (r *WorkflowRunRepository) Start(ctx context.Context, workflowName string) (string, error) {
	run := models.NewWorkflowRun(workflowName)
	if result := r.db.WithContext(ctx).Create(run); result.Error != nil {
		return "", fmt.Errorf("failed to start workflow run: %w", result.Error)
	}
	return run.ID, nil
}

// Complete marks a run finished with its counts. A run with per-item failures
// completes with errors rather than failing outright.
func (r *WorkflowRunRepository) Complete(ctx context.Context, runID string, processed, failed int) error {
	status := models.RunStatusCompleted
	if failed > 0 {
		status = models.RunStatusCompletedWithErrors
	}
	result := r.db.WithContext(ctx).Model(&models.WorkflowRun{}).
		Where("id = ?", runID).
		Updates(map[string]interface{}{
			"status":          status,
			"completed_at":    time.Now().UTC(),
			"items_processed": processed,
			"items_failed":    failed,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to complete workflow run: %w", result.Error)
	}
	return nil
}

// Fail marks a whole-workflow failure.
func (r *WorkflowRunRepository) Fail(ctx context.Context, runID, errorMessage string) error {
	result := r.db.WithContext(ctx).Model(&models.WorkflowRun{}).
		Where("id = ?", runID).
		Updates(map[string]interface{}{
			"status":        models.RunStatusFailed,
			"completed_at":  time.Now().UTC(),
			"error_message": errorMessage,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark workflow run failed: %w", result.Error)
	}
	return nil
}

// ListRecent returns runs started within the last N hours, newest first.
func (r *WorkflowRunRepository) ListRecent(ctx context.Context, hours, limit int) ([]models.WorkflowRun, error) {
	cutoff := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	var runs []models.WorkflowRun
	result := r.db.WithContext(ctx).
		Where("started_at > ?", cutoff).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list workflow runs: %w", result.Error)
	}
	return runs, nil
}
