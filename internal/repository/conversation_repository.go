package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thelaunchpad/coach-worker/internal/models"
	"gorm.io/gorm"
)

var ErrConversationNotFound = errors.New("conversation not found")

type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// Create inserts a new conversation.
func (r *ConversationRepository) Create(ctx context.Context, conv *models.Conversation) error {
	if result := r.db.WithContext(ctx).Create(conv); result.Error != nil {
		return fmt.Errorf("failed to create conversation: %w", result.Error)
	}
	return nil
}

// Update applies a partial update to a conversation.
func (r *ConversationRepository) Update(ctx context.Context, convID string, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", convID).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update conversation: %w", result.Error)
	}
	return nil
}

// FindByID retrieves a conversation by ID.
func (r *ConversationRepository) FindByID(ctx context.Context, convID string) (*models.Conversation, error) {
	var conv models.Conversation
	result := r.db.WithContext(ctx).First(&conv, "id = ?", convID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to find conversation: %w", result.Error)
	}
	return &conv, nil
}

// ExistsForMessageID reports whether any conversation already carries this
// inbound message id. This is the dedup key for the pipeline.
func (r *ConversationRepository) ExistsForMessageID(ctx context.Context, messageID string) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("gmail_message_id = ?", messageID).
		Count(&count)
	if result.Error != nil {
		return false, fmt.Errorf("failed to check message id: %w", result.Error)
	}
	return count > 0, nil
}

// ListByStatus returns conversations in the given status, oldest first.
func (r *ConversationRepository) ListByStatus(ctx context.Context, status string) ([]models.Conversation, error) {
	var convs []models.Conversation
	result := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Find(&convs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list conversations by status: %w", result.Error)
	}
	return convs, nil
}

// ListForUser returns all conversations for a user, newest first.
func (r *ConversationRepository) ListForUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	var convs []models.Conversation
	result := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&convs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", result.Error)
	}
	return convs, nil
}

// ListRecentSent returns the user's most recent Sent conversations, newest
// first. Used for context assembly and threading fallback.
func (r *ConversationRepository) ListRecentSent(ctx context.Context, userID string, limit int) ([]models.Conversation, error) {
	var convs []models.Conversation
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.StatusSent).
		Order("created_at DESC").
		Limit(limit).
		Find(&convs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list recent sent conversations: %w", result.Error)
	}
	return convs, nil
}

// ListApprovedUnsent returns the send queue: Approved conversations that have
// never gone out, oldest first.
func (r *ConversationRepository) ListApprovedUnsent(ctx context.Context) ([]models.Conversation, error) {
	var convs []models.Conversation
	result := r.db.WithContext(ctx).
		Where("status = ? AND sent_at IS NULL", models.StatusApproved).
		Order("created_at ASC").
		Find(&convs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list approved unsent: %w", result.Error)
	}
	return convs, nil
}

// ListSendFailedRetryable returns Send Failed conversations still under the
// attempt cap.
func (r *ConversationRepository) ListSendFailedRetryable(ctx context.Context, maxAttempts int) ([]models.Conversation, error) {
	var convs []models.Conversation
	result := r.db.WithContext(ctx).
		Where("status = ? AND send_attempts < ?", models.StatusSendFailed, maxAttempts).
		Order("created_at ASC").
		Find(&convs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list retryable sends: %w", result.Error)
	}
	return convs, nil
}

// CountThreadReplies counts Sent follow-up replies since the user's most
// recent Sent check-in. If the user has never received a check-in, all Sent
// follow-ups count.
func (r *ConversationRepository) CountThreadReplies(ctx context.Context, userID string) (int, error) {
	var lastCheckin models.Conversation
	q := r.db.WithContext(ctx).
		Where("user_id = ? AND type = ? AND status = ?", userID, models.TypeCheckin, models.StatusSent).
		Order("created_at DESC").
		First(&lastCheckin)

	counter := r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("user_id = ? AND type = ? AND status = ?", userID, models.TypeFollowUp, models.StatusSent)

	if q.Error == nil {
		counter = counter.Where("created_at > ?", lastCheckin.CreatedAt)
	} else if !errors.Is(q.Error, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("failed to find last check-in: %w", q.Error)
	}

	var count int64
	if result := counter.Count(&count); result.Error != nil {
		return 0, fmt.Errorf("failed to count thread replies: %w", result.Error)
	}
	return int(count), nil
}

// HasPendingOutreach reports whether the user already has a conversation
// waiting to go out (Pending Review or Approved). Prevents double-queuing by
// the schedulers.
func (r *ConversationRepository) HasPendingOutreach(ctx context.Context, userID string) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("user_id = ? AND status IN ?", userID, []string{models.StatusPendingReview, models.StatusApproved}).
		Count(&count)
	if result.Error != nil {
		return false, fmt.Errorf("failed to check pending outreach: %w", result.Error)
	}
	return count > 0, nil
}

// HasRecentType reports whether a conversation of the given type was created
// for the user within the window.
func (r *ConversationRepository) HasRecentType(ctx context.Context, userID, convType string, withinDays int) (bool, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -withinDays)
	var count int64
	result := r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("user_id = ? AND type = ? AND created_at > ?", userID, convType, cutoff).
		Count(&count)
	if result.Error != nil {
		return false, fmt.Errorf("failed to check recent conversations: %w", result.Error)
	}
	return count > 0, nil
}

// HasFlaggedWithReason reports whether the user has a Flagged conversation
// whose reason contains the given fragment. Used as the onboarding-stall
// guard.
func (r *ConversationRepository) HasFlaggedWithReason(ctx context.Context, userID, reasonFragment string) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("user_id = ? AND status = ? AND flag_reason LIKE ?", userID, models.StatusFlagged, "%"+reasonFragment+"%").
		Count(&count)
	if result.Error != nil {
		return false, fmt.Errorf("failed to check flagged conversations: %w", result.Error)
	}
	return count > 0, nil
}
