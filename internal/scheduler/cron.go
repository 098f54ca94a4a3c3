package scheduler

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// cronParser supports standard 5-field cron expressions and descriptors like
// @every 5m.
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule parses a cron expression and returns a Schedule.
func ParseSchedule(expr string) (cron.Schedule, error) {
	return cronParser.Parse(expr)
}

// Ticker calls Trigger.Tick on a cron schedule inside the server process.
// A tick that is still running when the next one fires is skipped.
type Ticker struct {
	cron *cron.Cron
}

func NewTicker(spec string, trigger *Trigger) (*Ticker, error) {
	logger := cron.PrintfLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelInfo))
	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	_, err := c.AddFunc(spec, func() {
		if _, err := trigger.Tick(context.Background()); err != nil {
			trigger.log.Error("scheduled tick failed", "error", err)
		}
	})
	if err != nil {
		return nil, err
	}
	return &Ticker{cron: c}, nil
}

func (t *Ticker) Start() {
	t.cron.Start()
}

// Stop halts the schedule and returns a context that is done once any
// running tick has finished.
func (t *Ticker) Stop() context.Context {
	return t.cron.Stop()
}
