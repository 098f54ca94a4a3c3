package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adinsights/internal/models"
	"gorm.io/gorm"
)

// ReportStore persists report runs. Rows are never deleted.
type ReportStore struct {
	db *gorm.DB
}

func NewReportStore(db *gorm.DB) *ReportStore {
	return &ReportStore{db: db}
}

// CreatePending inserts a new run for configID in pending state.
func (s *ReportStore) CreatePending(ctx context.Context, configID uint) (*models.Report, error) {
	report := &models.Report{
		ConfigID: configID,
		Status:   models.ReportStatusPending,
	}
	if err := s.db.WithContext(ctx).Create(report).Error; err != nil {
		return nil, fmt.Errorf("failed to create report for config %d: %w", configID, err)
	}
	return report, nil
}

func (s *ReportStore) Get(ctx context.Context, id uint) (*models.Report, error) {
	var report models.Report
	err := s.db.WithContext(ctx).First(&report, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load report %d: %w", id, err)
	}
	return &report, nil
}

// ListByConfig returns the run history of a config, newest first, without
// the rendered HTML.
func (s *ReportStore) ListByConfig(ctx context.Context, configID uint) ([]models.Report, error) {
	var reports []models.Report
	err := s.db.WithContext(ctx).
		Omit("html_content").
		Where("config_id = ?", configID).
		Order("id desc").
		Find(&reports).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list reports for config %d: %w", configID, err)
	}
	return reports, nil
}

func (s *ReportStore) MarkRunning(ctx context.Context, id uint, at time.Time) error {
	return s.update(ctx, id, map[string]any{
		"status":    models.ReportStatusRunning,
		"run_start": at.UTC(),
	})
}

func (s *ReportStore) MarkCompleted(ctx context.Context, id uint, html string, at time.Time) error {
	return s.update(ctx, id, map[string]any{
		"status":        models.ReportStatusCompleted,
		"html_content":  html,
		"error_message": "",
		"run_end":       at.UTC(),
	})
}

// MarkFailed moves the run to failed. Any stored HTML is kept.
func (s *ReportStore) MarkFailed(ctx context.Context, id uint, msg string, at time.Time) error {
	return s.update(ctx, id, map[string]any{
		"status":        models.ReportStatusFailed,
		"error_message": msg,
		"run_end":       at.UTC(),
	})
}

func (s *ReportStore) MarkEmailSent(ctx context.Context, id uint, address string, at time.Time) error {
	return s.update(ctx, id, map[string]any{
		"email_sent_status":  models.EmailStatusSent,
		"email_address":      address,
		"email_delivered_at": at.UTC(),
	})
}

func (s *ReportStore) update(ctx context.Context, id uint, updates map[string]any) error {
	res := s.db.WithContext(ctx).Model(&models.Report{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update report %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
