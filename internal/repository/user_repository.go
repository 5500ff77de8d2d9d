package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thelaunchpad/coach-worker/internal/models"
	"gorm.io/gorm"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail retrieves a user by email, case-insensitively.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	result := r.db.WithContext(ctx).First(&user, "LOWER(email) = LOWER(?)", email)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user by email: %w", result.Error)
	}
	return &user, nil
}

// FindByID retrieves a user by ID.
func (r *UserRepository) FindByID(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	result := r.db.WithContext(ctx).First(&user, "id = ?", userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", result.Error)
	}
	return &user, nil
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if result := r.db.WithContext(ctx).Create(user); result.Error != nil {
		return fmt.Errorf("failed to create user: %w", result.Error)
	}
	return nil
}

// Update applies a partial update to a user.
func (r *UserRepository) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update user: %w", result.Error)
	}
	return nil
}

// ListActiveForCheckin returns Active users who are candidates for today's
// check-in: their personal schedule includes the weekday (or is unset, in
// which case the caller applies the system default), and they haven't been
// contacted within the last day. The pending-outreach guard is applied per
// user by the workflow.
func (r *UserRepository) ListActiveForCheckin(ctx context.Context, weekday string) ([]models.User, error) {
	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	var users []models.User
	result := r.db.WithContext(ctx).
		Where("status = ?", models.UserStatusActive).
		Where("checkin_days IS NULL OR checkin_days = '' OR checkin_days LIKE ?", "%"+weekday+"%").
		Where("last_response_date IS NULL OR last_response_date <= ?", cutoff).
		Find(&users)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list users for check-in: %w", result.Error)
	}
	return users, nil
}

// ListSilent returns Active users whose last response is at least the given
// number of days old. Users who never responded are excluded; check-in covers
// those.
func (r *UserRepository) ListSilent(ctx context.Context, days int) ([]models.User, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	var users []models.User
	result := r.db.WithContext(ctx).
		Where("status = ?", models.UserStatusActive).
		Where("last_response_date IS NOT NULL AND last_response_date <= ?", cutoff).
		Find(&users)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list silent users: %w", result.Error)
	}
	return users, nil
}

// Delete removes a user; the schema cascades their conversations. Admin
// action only, never called by the workflows.
func (r *UserRepository) Delete(ctx context.Context, userID string) error {
	if result := r.db.WithContext(ctx).Delete(&models.User{}, "id = ?", userID); result.Error != nil {
		return fmt.Errorf("failed to delete user: %w", result.Error)
	}
	return nil
}

// ListOnboarding returns users still in the onboarding flow.
func (r *UserRepository) ListOnboarding(ctx context.Context) ([]models.User, error) {
	var users []models.User
	result := r.db.WithContext(ctx).
		Where("status = ?", models.UserStatusOnboarding).
		Find(&users)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list onboarding users: %w", result.Error)
	}
	return users, nil
}
