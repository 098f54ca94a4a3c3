package models

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError describes a rejected field of a submitted config.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

var metaLevels = []string{"account", "campaign", "adset", "ad"}

var tiktokLevels = []string{"AUCTION_ADVERTISER", "AUCTION_AD", "AUCTION_CAMPAIGN"}

// Levels returns the reporting levels the platform accepts.
func (p Platform) Levels() []string {
	switch p {
	case PlatformMeta:
		return metaLevels
	case PlatformTikTok:
		return tiktokLevels
	default:
		return nil
	}
}

func (p Platform) Valid() bool {
	switch p {
	case PlatformMeta, PlatformTikTok:
		return true
	default:
		return false
	}
}

func (d DateRange) Valid() bool {
	switch d {
	case DateRangeLast7, DateRangeLast14, DateRangeLast30:
		return true
	default:
		return false
	}
}

func (d Delivery) Valid() bool {
	return d == DeliveryEmail || d == DeliveryLink
}

// ParseCadence accepts the canonical cadence names plus the "every 12 hours"
// spelling used by older clients.
func ParseCadence(s string) (Cadence, bool) {
	switch strings.TrimSpace(s) {
	case string(CadenceManual):
		return CadenceManual, true
	case string(CadenceHourly):
		return CadenceHourly, true
	case string(CadenceEvery12h), "every 12 hours":
		return CadenceEvery12h, true
	case string(CadenceDaily):
		return CadenceDaily, true
	default:
		return "", false
	}
}

// Interval returns the time between scheduled runs. Manual cadence has none.
func (c Cadence) Interval() (time.Duration, bool) {
	switch c {
	case CadenceHourly:
		return time.Hour, true
	case CadenceEvery12h:
		return 12 * time.Hour, true
	case CadenceDaily:
		return 24 * time.Hour, true
	default:
		return 0, false
	}
}

// NextRun returns from plus one cadence interval, or nil for manual cadence.
func (c Cadence) NextRun(from time.Time) *time.Time {
	interval, ok := c.Interval()
	if !ok {
		return nil
	}
	next := from.Add(interval)
	return &next
}

// ConfigRequest is the user-submitted part of a ReportConfig.
type ConfigRequest struct {
	Platform      string   `json:"platform" binding:"required"`
	Metrics       []string `json:"metrics" binding:"required,min=1"`
	Level         string   `json:"level" binding:"required"`
	DateRangeEnum string   `json:"dateRangeEnum" binding:"required"`
	Cadence       string   `json:"cadence" binding:"required"`
	Delivery      string   `json:"delivery" binding:"required"`
	Email         string   `json:"email" binding:"omitempty,email"`
}

// ToConfig checks enum values, the email requirement and the platform/level
// pairing, and returns the config to persist. Presence and email syntax are
// also checked by gin binding on the HTTP path.
func (r *ConfigRequest) ToConfig() (*ReportConfig, error) {
	if r.Delivery == string(DeliveryEmail) && strings.TrimSpace(r.Email) == "" {
		return nil, invalid("email", "email is required when delivery is email")
	}

	platform := Platform(r.Platform)
	if !platform.Valid() {
		return nil, invalid("platform", "unsupported platform %q", r.Platform)
	}
	if !contains(platform.Levels(), r.Level) {
		return nil, invalid("level", "level %q is not valid for %s (want one of %s)",
			r.Level, platform, strings.Join(platform.Levels(), ", "))
	}

	if len(r.Metrics) == 0 {
		return nil, invalid("metrics", "at least one metric is required")
	}
	metrics := make([]string, 0, len(r.Metrics))
	for _, m := range r.Metrics {
		m = strings.TrimSpace(m)
		if m == "" {
			return nil, invalid("metrics", "metric names must not be empty")
		}
		metrics = append(metrics, m)
	}

	dateRange := DateRange(r.DateRangeEnum)
	if !dateRange.Valid() {
		return nil, invalid("dateRangeEnum", "unsupported date range %q", r.DateRangeEnum)
	}

	cadence, ok := ParseCadence(r.Cadence)
	if !ok {
		return nil, invalid("cadence", "unsupported cadence %q", r.Cadence)
	}

	delivery := Delivery(r.Delivery)
	if !delivery.Valid() {
		return nil, invalid("delivery", "unsupported delivery %q", r.Delivery)
	}

	cfg := &ReportConfig{
		Platform:  platform,
		Metrics:   metrics,
		Level:     r.Level,
		DateRange: dateRange,
		Cadence:   cadence,
		Delivery:  delivery,
	}
	if email := strings.TrimSpace(r.Email); email != "" {
		cfg.Email = &email
	}
	return cfg, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
