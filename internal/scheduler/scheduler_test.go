package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/adinsights/internal/database"
	"github.com/adinsights/internal/metrics"
	"github.com/adinsights/internal/models"
	"github.com/adinsights/internal/report"
	"github.com/adinsights/internal/store"
)

type stubLister struct {
	configs []models.ReportConfig
	err     error
}

func (s *stubLister) ListDue(ctx context.Context, now time.Time) ([]models.ReportConfig, error) {
	return s.configs, s.err
}

type stubRunner struct {
	ran      []uint
	failures map[uint]error
	results  map[uint]models.ReportStatus
	errs     map[uint]error
	panics   map[uint]bool
}

func newStubRunner() *stubRunner {
	return &stubRunner{
		failures: map[uint]error{},
		results:  map[uint]models.ReportStatus{},
		errs:     map[uint]error{},
		panics:   map[uint]bool{},
	}
}

func (r *stubRunner) Run(ctx context.Context, cfg *models.ReportConfig, scheduled bool) (report.Outcome, error) {
	r.ran = append(r.ran, cfg.ID)
	if r.panics[cfg.ID] {
		panic("boom")
	}
	if err := r.errs[cfg.ID]; err != nil {
		return report.Outcome{}, err
	}
	status, ok := r.results[cfg.ID]
	if !ok {
		status = models.ReportStatusCompleted
	}
	return report.Outcome{ReportID: cfg.ID * 10, Status: status}, nil
}

func (r *stubRunner) RecordFailure(ctx context.Context, cfg *models.ReportConfig, reportID uint, scheduled bool, cause error) {
	r.failures[cfg.ID] = cause
}

func TestTickIsolatesFailures(t *testing.T) {
	lister := &stubLister{configs: []models.ReportConfig{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}}}
	runner := newStubRunner()
	runner.errs[2] = errors.New("insert failed")
	runner.panics[3] = true
	runner.results[4] = models.ReportStatusFailed

	sum, err := NewTrigger(lister, runner).Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if sum != (Summary{Due: 4, Completed: 1, Failed: 3}) {
		t.Errorf("summary = %+v", sum)
	}
	if len(runner.ran) != 4 {
		t.Errorf("ran = %v, want all four configs", runner.ran)
	}
	if runner.failures[2] == nil || runner.failures[2].Error() != "insert failed" {
		t.Errorf("enqueue failure not recorded: %v", runner.failures[2])
	}
	if runner.failures[3] == nil || !strings.Contains(runner.failures[3].Error(), "panicked") {
		t.Errorf("panic not recorded: %v", runner.failures[3])
	}
	if _, ok := runner.failures[4]; ok {
		t.Error("a failed outcome is already recorded by the runner")
	}
}

func TestTickListError(t *testing.T) {
	lister := &stubLister{err: errors.New("db locked")}
	runner := newStubRunner()
	if _, err := NewTrigger(lister, runner).Tick(context.Background()); err == nil {
		t.Fatal("expected listing error")
	}
	if len(runner.ran) != 0 {
		t.Error("nothing should run when listing fails")
	}
}

type staticFetcher struct{}

func (staticFetcher) Fetch(ctx context.Context, cfg *models.ReportConfig) ([]*metrics.Record, error) {
	return []*metrics.Record{metrics.NewRecord("spend", 3.0)}, nil
}

type staticAnalyzer struct{}

func (staticAnalyzer) Analyze(ctx context.Context, records []*metrics.Record, cfg *models.ReportConfig) (string, error) {
	return "1. Key Performance Highlights", nil
}

func TestTickRunsDueConfigsOnce(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(filepath.Join(t.TempDir(), "sched.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	defer database.Close(db)

	configs := store.NewConfigStore(db)
	reports := store.NewReportStore(db)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	gen := report.NewGenerator(report.Deps{
		Configs:  configs,
		Reports:  reports,
		Fetcher:  staticFetcher{},
		Analyzer: staticAnalyzer{},
		Now:      func() time.Time { return now },
	})

	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)
	due := &models.ReportConfig{Platform: models.PlatformMeta, Metrics: []string{"spend"}, Level: "ad",
		DateRange: models.DateRangeLast7, Cadence: models.CadenceHourly, Delivery: models.DeliveryLink, NextRunAt: &past}
	notDue := &models.ReportConfig{Platform: models.PlatformMeta, Metrics: []string{"spend"}, Level: "ad",
		DateRange: models.DateRangeLast7, Cadence: models.CadenceDaily, Delivery: models.DeliveryLink, NextRunAt: &future}
	for _, c := range []*models.ReportConfig{due, notDue} {
		if err := configs.Create(ctx, c); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	trigger := NewTrigger(configs, gen)
	trigger.now = func() time.Time { return now }

	sum, err := trigger.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if sum.Due != 1 || sum.Completed != 1 {
		t.Fatalf("summary = %+v", sum)
	}

	sum, err = trigger.Tick(ctx)
	if err != nil {
		t.Fatalf("second Tick: %v", err)
	}
	if sum.Due != 0 {
		t.Errorf("second pass found %d due configs, want 0", sum.Due)
	}

	got, _ := configs.Get(ctx, due.ID)
	if got.NextRunAt == nil || !got.NextRunAt.Equal(now.Add(time.Hour)) {
		t.Errorf("NextRunAt = %v, want %v", got.NextRunAt, now.Add(time.Hour))
	}
	if list, _ := reports.ListByConfig(ctx, due.ID); len(list) != 1 {
		t.Errorf("due config has %d reports, want 1", len(list))
	}
	if list, _ := reports.ListByConfig(ctx, notDue.ID); len(list) != 0 {
		t.Errorf("non-due config has %d reports, want 0", len(list))
	}
	untouched, _ := configs.Get(ctx, notDue.ID)
	if untouched.LastRunAt != nil || !untouched.NextRunAt.Equal(future) {
		t.Error("non-due config should be untouched")
	}
}

func TestParseSchedule(t *testing.T) {
	for _, spec := range []string{"@every 5m", "*/10 * * * *", "@hourly"} {
		if _, err := ParseSchedule(spec); err != nil {
			t.Errorf("ParseSchedule(%q): %v", spec, err)
		}
	}
	if _, err := ParseSchedule("every five minutes"); err == nil {
		t.Error("expected error for invalid spec")
	}
	if _, err := NewTicker("not a spec", NewTrigger(&stubLister{}, newStubRunner())); err == nil {
		t.Error("NewTicker should reject an invalid spec")
	}
}
