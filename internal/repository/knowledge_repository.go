package repository

import (
	"context"
	"fmt"

	"github.com/thelaunchpad/coach-worker/internal/models"
	"gorm.io/gorm"
)

// KnowledgeRepository serves the curated coaching material woven into the
// generation prompt: model responses, coach corrections and the resource
// catalog. The worker only reads; the review dashboard writes.
type KnowledgeRepository struct {
	db *gorm.DB
}

func NewKnowledgeRepository(db *gorm.DB) *KnowledgeRepository {
	return &KnowledgeRepository{db: db}
}

// ListModelResponsesByStage returns the curated example responses for a
// coaching stage.
func (r *KnowledgeRepository) ListModelResponsesByStage(ctx context.Context, stage string) ([]models.ModelResponse, error) {
	var responses []models.ModelResponse
	result := r.db.WithContext(ctx).
		Where("stage = ?", stage).
		Find(&responses)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list model responses: %w", result.Error)
	}
	return responses, nil
}

// ListRecentCorrections returns the newest coach corrections across all
// stages.
func (r *KnowledgeRepository) ListRecentCorrections(ctx context.Context, limit int) ([]models.CorrectedResponse, error) {
	var corrections []models.CorrectedResponse
	result := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&corrections)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list corrections: %w", result.Error)
	}
	return corrections, nil
}

// ListResourcesForStage returns the resources a member at the given stage
// may be pointed to: stage-specific ones plus those with no stage.
func (r *KnowledgeRepository) ListResourcesForStage(ctx context.Context, stage string) ([]models.Resource, error) {
	var resources []models.Resource
	result := r.db.WithContext(ctx).
		Where("stage IS NULL OR stage = ?", stage).
		Order("name").
		Find(&resources)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list resources: %w", result.Error)
	}
	return resources, nil
}
