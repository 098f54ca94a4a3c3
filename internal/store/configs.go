package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adinsights/internal/models"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a config or report id does not exist.
var ErrNotFound = errors.New("not found")

// ConfigStore persists report configurations.
type ConfigStore struct {
	db *gorm.DB
}

func NewConfigStore(db *gorm.DB) *ConfigStore {
	return &ConfigStore{db: db}
}

func (s *ConfigStore) Create(ctx context.Context, cfg *models.ReportConfig) error {
	if err := s.db.WithContext(ctx).Create(cfg).Error; err != nil {
		return fmt.Errorf("failed to create report config: %w", err)
	}
	return nil
}

func (s *ConfigStore) Get(ctx context.Context, id uint) (*models.ReportConfig, error) {
	var cfg models.ReportConfig
	err := s.db.WithContext(ctx).First(&cfg, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load report config %d: %w", id, err)
	}
	return &cfg, nil
}

func (s *ConfigStore) List(ctx context.Context) ([]models.ReportConfig, error) {
	var configs []models.ReportConfig
	if err := s.db.WithContext(ctx).Order("id").Find(&configs).Error; err != nil {
		return nil, fmt.Errorf("failed to list report configs: %w", err)
	}
	return configs, nil
}

// ListDue returns configs whose next run time has elapsed, earliest first.
func (s *ConfigStore) ListDue(ctx context.Context, now time.Time) ([]models.ReportConfig, error) {
	var configs []models.ReportConfig
	err := s.db.WithContext(ctx).
		Where("next_run_at IS NOT NULL AND next_run_at <= ?", now.UTC()).
		Order("next_run_at, id").
		Find(&configs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list due report configs: %w", err)
	}
	return configs, nil
}

// RecordRun stores the bookkeeping of a successful run and clears lastError.
// nextRunAt is only written when non-nil.
func (s *ConfigStore) RecordRun(ctx context.Context, id uint, runAt time.Time, reportID uint, nextRunAt *time.Time) error {
	updates := map[string]any{
		"last_run_at":    runAt.UTC(),
		"last_report_id": reportID,
		"last_error":     nil,
	}
	if nextRunAt != nil {
		updates["next_run_at"] = nextRunAt.UTC()
	}
	return s.update(ctx, id, updates)
}

// Reschedule moves the next run of a config without touching other fields.
func (s *ConfigStore) Reschedule(ctx context.Context, id uint, nextRunAt time.Time) error {
	return s.update(ctx, id, map[string]any{"next_run_at": nextRunAt.UTC()})
}

func (s *ConfigStore) SetLastError(ctx context.Context, id uint, msg string) error {
	return s.update(ctx, id, map[string]any{"last_error": msg})
}

func (s *ConfigStore) update(ctx context.Context, id uint, updates map[string]any) error {
	res := s.db.WithContext(ctx).Model(&models.ReportConfig{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update report config %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
