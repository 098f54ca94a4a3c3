package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adinsights/internal/models"
	"github.com/adinsights/internal/report"
)

type DueLister interface {
	ListDue(ctx context.Context, now time.Time) ([]models.ReportConfig, error)
}

// Runner executes one report for a config. *report.Generator satisfies it.
type Runner interface {
	Run(ctx context.Context, cfg *models.ReportConfig, scheduled bool) (report.Outcome, error)
	RecordFailure(ctx context.Context, cfg *models.ReportConfig, reportID uint, scheduled bool, cause error)
}

// Summary counts what a single pass did.
type Summary struct {
	Due       int `json:"due"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Trigger runs every config whose next run time has passed.
type Trigger struct {
	configs DueLister
	runner  Runner
	now     func() time.Time
	log     *slog.Logger
}

func NewTrigger(configs DueLister, runner Runner) *Trigger {
	return &Trigger{
		configs: configs,
		runner:  runner,
		now:     func() time.Time { return time.Now().UTC() },
		log:     slog.Default().With("component", "scheduler"),
	}
}

// Tick makes one pass over the due configs, one at a time. A failing config
// does not stop the pass. Only a failure to list configs is returned.
func (t *Trigger) Tick(ctx context.Context) (Summary, error) {
	due, err := t.configs.ListDue(ctx, t.now())
	if err != nil {
		return Summary{}, fmt.Errorf("failed to fetch due configs: %w", err)
	}

	sum := Summary{Due: len(due)}
	if len(due) == 0 {
		return sum, nil
	}
	t.log.Info("processing due configs", "count", len(due))

	for i := range due {
		if ctx.Err() != nil {
			t.log.Warn("tick cancelled", "remaining", len(due)-i)
			sum.Failed += len(due) - i
			break
		}
		if t.runOne(ctx, &due[i]) {
			sum.Completed++
		} else {
			sum.Failed++
		}
	}

	t.log.Info("tick finished", "due", sum.Due, "completed", sum.Completed, "failed", sum.Failed)
	return sum, nil
}

func (t *Trigger) runOne(ctx context.Context, cfg *models.ReportConfig) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			t.runner.RecordFailure(ctx, cfg, 0, true, fmt.Errorf("scheduled run panicked: %v", r))
			ok = false
		}
	}()

	out, err := t.runner.Run(ctx, cfg, true)
	if err != nil {
		t.runner.RecordFailure(ctx, cfg, 0, true, err)
		return false
	}
	return out.Status == models.ReportStatusCompleted
}
