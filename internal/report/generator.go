package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adinsights/internal/metrics"
	"github.com/adinsights/internal/models"
)

type MetricsFetcher interface {
	Fetch(ctx context.Context, cfg *models.ReportConfig) ([]*metrics.Record, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, records []*metrics.Record, cfg *models.ReportConfig) (string, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, cfg *models.ReportConfig, reportID uint, html string) error
}

// FailureNotifier is told about runs that ended in failure.
type FailureNotifier interface {
	NotifyFailure(ctx context.Context, cfg *models.ReportConfig, reportID uint, cause error) error
}

type ConfigStore interface {
	RecordRun(ctx context.Context, id uint, runAt time.Time, reportID uint, nextRunAt *time.Time) error
	Reschedule(ctx context.Context, id uint, nextRunAt time.Time) error
	SetLastError(ctx context.Context, id uint, msg string) error
}

type ReportStore interface {
	CreatePending(ctx context.Context, configID uint) (*models.Report, error)
	MarkRunning(ctx context.Context, id uint, at time.Time) error
	MarkCompleted(ctx context.Context, id uint, html string, at time.Time) error
	MarkFailed(ctx context.Context, id uint, msg string, at time.Time) error
}

// Deps are the collaborators of a Generator. Dispatcher and Notifier may be
// nil.
type Deps struct {
	Configs    ConfigStore
	Reports    ReportStore
	Fetcher    MetricsFetcher
	Analyzer   Analyzer
	Dispatcher Dispatcher
	Notifier   FailureNotifier
	// Now defaults to time.Now in UTC.
	Now func() time.Time
}

// Outcome summarises one run.
type Outcome struct {
	ReportID uint                `json:"reportId"`
	Status   models.ReportStatus `json:"status"`
	RunAt    time.Time           `json:"runAt"`
	Err      error               `json:"-"`
}

const notifyTimeout = 15 * time.Second

// Generator runs a report from fetch to delivery and keeps the report and
// config bookkeeping in step.
type Generator struct {
	configs    ConfigStore
	reports    ReportStore
	fetcher    MetricsFetcher
	analyzer   Analyzer
	dispatcher Dispatcher
	notifier   FailureNotifier
	now        func() time.Time
	log        *slog.Logger
}

func NewGenerator(d Deps) *Generator {
	now := d.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Generator{
		configs:    d.Configs,
		reports:    d.Reports,
		fetcher:    d.Fetcher,
		analyzer:   d.Analyzer,
		dispatcher: d.Dispatcher,
		notifier:   d.Notifier,
		now:        now,
		log:        slog.Default().With("component", "orchestrator"),
	}
}

// Run inserts a pending report for cfg and generates it. The error is only
// non-nil when the report row could not be created; run failures are
// reported through the Outcome.
func (g *Generator) Run(ctx context.Context, cfg *models.ReportConfig, scheduled bool) (Outcome, error) {
	r, err := g.reports.CreatePending(ctx, cfg.ID)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to enqueue report for config %d: %w", cfg.ID, err)
	}
	return g.Generate(ctx, r.ID, cfg, scheduled), nil
}

// Generate executes an already created report. It never panics and never
// returns without leaving the report completed or failed.
func (g *Generator) Generate(ctx context.Context, reportID uint, cfg *models.ReportConfig, scheduled bool) (out Outcome) {
	out = Outcome{ReportID: reportID, Status: models.ReportStatusRunning, RunAt: g.now()}

	defer func() {
		if r := recover(); r != nil {
			out.Status = models.ReportStatusFailed
			out.Err = fmt.Errorf("report generation panicked: %v", r)
			g.RecordFailure(ctx, cfg, reportID, scheduled, out.Err)
		}
	}()

	html, err := g.produce(ctx, reportID, cfg, out.RunAt)
	if err == nil {
		err = g.configs.RecordRun(context.WithoutCancel(ctx), cfg.ID, out.RunAt, reportID, g.nextRun(cfg, scheduled, out.RunAt))
	}
	if err == nil && cfg.WantsEmail() {
		err = g.deliver(ctx, cfg, reportID, html)
	}
	if err != nil {
		out.Status = models.ReportStatusFailed
		out.Err = err
		g.RecordFailure(ctx, cfg, reportID, scheduled, err)
		return out
	}

	out.Status = models.ReportStatusCompleted
	g.log.Info("report completed", "report_id", reportID, "config_id", cfg.ID, "scheduled", scheduled)
	return out
}

// produce fetches, analyses and renders. Store writes are detached from ctx
// so a caller that goes away mid-run cannot leave the report half written.
func (g *Generator) produce(ctx context.Context, reportID uint, cfg *models.ReportConfig, runAt time.Time) (string, error) {
	storeCtx := context.WithoutCancel(ctx)
	if err := g.reports.MarkRunning(storeCtx, reportID, runAt); err != nil {
		return "", err
	}

	records, err := g.fetcher.Fetch(ctx, cfg)
	if err != nil {
		return "", err
	}

	analysis, err := g.analyzer.Analyze(ctx, records, cfg)
	if err != nil {
		return "", err
	}

	html, err := Render(records, analysis, cfg, runAt)
	if err != nil {
		return "", err
	}

	if err := g.reports.MarkCompleted(storeCtx, reportID, html, g.now()); err != nil {
		return "", err
	}
	return html, nil
}

func (g *Generator) deliver(ctx context.Context, cfg *models.ReportConfig, reportID uint, html string) error {
	if g.dispatcher == nil {
		g.log.Warn("email delivery requested but no mailer configured", "report_id", reportID, "config_id", cfg.ID)
		return nil
	}
	if err := g.dispatcher.Dispatch(ctx, cfg, reportID, html); err != nil {
		return err
	}
	g.log.Info("report emailed", "report_id", reportID, "email", cfg.EmailAddress())
	return nil
}

func (g *Generator) nextRun(cfg *models.ReportConfig, scheduled bool, runAt time.Time) *time.Time {
	if !scheduled {
		return nil
	}
	return cfg.Cadence.NextRun(runAt)
}

// RecordFailure marks the report failed (when reportID is set), stores the
// message on the config and, for scheduled runs, moves nextRunAt one
// interval ahead so the config is retried at its cadence. Store errors here
// are logged, not returned. The writes still happen when ctx is already
// cancelled, which is usually why the run failed.
func (g *Generator) RecordFailure(ctx context.Context, cfg *models.ReportConfig, reportID uint, scheduled bool, cause error) {
	ctx = context.WithoutCancel(ctx)
	now := g.now()
	msg := cause.Error()
	g.log.Error("report failed", "report_id", reportID, "config_id", cfg.ID, "error", msg)

	if reportID != 0 {
		if err := g.reports.MarkFailed(ctx, reportID, msg, now); err != nil {
			g.log.Error("failed to mark report failed", "report_id", reportID, "error", err)
		}
	}
	if err := g.configs.SetLastError(ctx, cfg.ID, msg); err != nil {
		g.log.Error("failed to save config error", "config_id", cfg.ID, "error", err)
	}
	if next := g.nextRun(cfg, scheduled, now); next != nil {
		if err := g.configs.Reschedule(ctx, cfg.ID, *next); err != nil {
			g.log.Error("failed to reschedule config", "config_id", cfg.ID, "error", err)
		}
	}

	if g.notifier != nil {
		nctx, cancel := context.WithTimeout(ctx, notifyTimeout)
		defer cancel()
		if err := g.notifier.NotifyFailure(nctx, cfg, reportID, cause); err != nil {
			g.log.Warn("failure notification not sent", "config_id", cfg.ID, "error", err)
		}
	}
}
