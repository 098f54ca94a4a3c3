package models

import (
	"time"

	"gorm.io/datatypes"
)

type Platform string

const (
	PlatformMeta   Platform = "meta"
	PlatformTikTok Platform = "tiktok"
)

type DateRange string

const (
	DateRangeLast7  DateRange = "last7"
	DateRangeLast14 DateRange = "last14"
	DateRangeLast30 DateRange = "last30"
)

type Cadence string

const (
	CadenceManual   Cadence = "manual"
	CadenceHourly   Cadence = "hourly"
	CadenceEvery12h Cadence = "every12h"
	CadenceDaily    Cadence = "daily"
)

type Delivery string

const (
	DeliveryEmail Delivery = "email"
	DeliveryLink  Delivery = "link"
)

type ReportStatus string

const (
	ReportStatusPending   ReportStatus = "pending"
	ReportStatusRunning   ReportStatus = "running"
	ReportStatusCompleted ReportStatus = "completed"
	ReportStatusFailed    ReportStatus = "failed"
)

const EmailStatusSent = "sent"

// ReportConfig is a saved recipe for a recurring report. After creation only
// the run bookkeeping fields change.
type ReportConfig struct {
	ID           uint                        `gorm:"primaryKey" json:"id"`
	Platform     Platform                    `gorm:"not null" json:"platform"`
	Metrics      datatypes.JSONSlice[string] `gorm:"not null" json:"metrics"`
	Level        string                      `gorm:"not null" json:"level"`
	DateRange    DateRange                   `gorm:"column:date_range_enum;not null" json:"dateRangeEnum"`
	Cadence      Cadence                     `gorm:"not null" json:"cadence"`
	Delivery     Delivery                    `gorm:"not null" json:"delivery"`
	Email        *string                     `json:"email"`
	CreatedAt    time.Time                   `json:"createdAt"`
	LastRunAt    *time.Time                  `json:"lastRunAt"`
	NextRunAt    *time.Time                  `gorm:"index" json:"nextRunAt"`
	LastReportID *uint                       `json:"lastReportId"`
	LastError    *string                     `gorm:"type:text" json:"lastError"`
}

func (ReportConfig) TableName() string { return "report_configs" }

// EmailAddress returns the destination address, or "" when none is set.
func (c *ReportConfig) EmailAddress() string {
	if c.Email == nil {
		return ""
	}
	return *c.Email
}

// WantsEmail reports whether a finished run should be emailed.
func (c *ReportConfig) WantsEmail() bool {
	return c.Delivery == DeliveryEmail && c.EmailAddress() != ""
}

// Report is one execution attempt of a ReportConfig.
type Report struct {
	ID               uint         `gorm:"primaryKey" json:"id"`
	ConfigID         uint         `gorm:"not null;index" json:"configId"`
	Status           ReportStatus `gorm:"not null;default:pending;index" json:"status"`
	HTMLContent      string       `gorm:"type:text" json:"-"`
	ErrorMessage     string       `gorm:"type:text" json:"errorMessage,omitempty"`
	EmailSentStatus  string       `json:"emailSentStatus,omitempty"`
	EmailAddress     string       `json:"emailAddress,omitempty"`
	EmailDeliveredAt *time.Time   `json:"emailDeliveredAt,omitempty"`
	RunStart         *time.Time   `json:"runStart"`
	RunEnd           *time.Time   `json:"runEnd"`
	CreatedAt        time.Time    `json:"createdAt"`
}

func (Report) TableName() string { return "reports" }

// IsTerminal reports whether the run has finished, successfully or not.
func (r *Report) IsTerminal() bool {
	return r.Status == ReportStatusCompleted || r.Status == ReportStatusFailed
}
