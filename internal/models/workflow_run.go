package models

import (
	"time"

	"github.com/google/uuid"
)

// Workflow run status constants
const (
	RunStatusRunning             = "running"
	RunStatusCompleted           = "completed"
	RunStatusCompletedWithErrors = "completed_with_errors"
	RunStatusFailed              = "failed"
)

// WorkflowRun is one scheduler invocation. Append-only audit trail; a record
// is only ever mutated by the run that created it.
type WorkflowRun struct {
	ID             string     `gorm:"column:id;primaryKey"`
	WorkflowName   string     `gorm:"column:workflow_name;index"`
	Status         string     `gorm:"column:status"`
	StartedAt      time.Time  `gorm:"column:started_at"`
	CompletedAt    *time.Time `gorm:"column:completed_at"`
	ItemsProcessed int        `gorm:"column:items_processed"`
	ItemsFailed    int        `gorm:"column:items_failed"`
	ErrorMessage   *string    `gorm:"column:error_message"`
}

// TableName specifies the table name for GORM
func (WorkflowRun) TableName() string {
	return "workflow_runs"
}

func NewWorkflowRun(name string) *WorkflowRun {
	return &WorkflowRun{
		ID:           uuid.New().String(),
		WorkflowName: name,
		Status:       RunStatusRunning,
		StartedAt:    time.Now().UTC(),
	}
}
