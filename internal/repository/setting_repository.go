package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/thelaunchpad/coach-worker/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SettingRepository struct {
	db *gorm.DB
}

func NewSettingRepository(db *gorm.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// Get returns the setting value, or the default when the key is absent.
func (r *SettingRepository) Get(ctx context.Context, key, def string) (string, error) {
	var setting models.Setting
	result := r.db.WithContext(ctx).First(&setting, "key = ?", key)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return def, nil
		}
		return def, fmt.Errorf("failed to get setting %s: %w", key, result.Error)
	}
	return setting.Value, nil
}

// GetInt returns the setting parsed as an integer, or the default when the
// key is absent or malformed.
func (r *SettingRepository) GetInt(ctx context.Context, key string, def int) (int, error) {
	raw, err := r.Get(ctx, key, strconv.Itoa(def))
	if err != nil {
		return def, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def, nil
	}
	return n, nil
}

// Set upserts a setting value.
func (r *SettingRepository) Set(ctx context.Context, key, value string) error {
	setting := models.Setting{Key: key, Value: value}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting)
	if result.Error != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, result.Error)
	}
	return nil
}
