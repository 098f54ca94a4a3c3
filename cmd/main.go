package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/adinsights/internal/api"
	"github.com/adinsights/internal/auth"
	"github.com/adinsights/internal/config"
	"github.com/adinsights/internal/database"
	"github.com/adinsights/internal/insight"
	"github.com/adinsights/internal/metrics"
	"github.com/adinsights/internal/notify"
	"github.com/adinsights/internal/report"
	"github.com/adinsights/internal/scheduler"
	"github.com/adinsights/internal/store"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:          "adinsights-server",
		Short:        "Scheduled ad insight report server",
		SilenceUsage: true,
		RunE:         runServe,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default ./config.yaml)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the optional in-process scheduler",
		RunE:  runServe,
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database tables",
		RunE:  runMigrate,
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "tick",
		Short: "Generate every due report once and exit",
		RunE:  runTick,
	})

	var ttl time.Duration
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token for the cron endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			token, err := auth.GenerateToken(cfg.Scheduler.Secret, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	tokenCmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (0 means no expiry)")
	rootCmd.AddCommand(tokenCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	setupLogging(cfg.Log.Level)
	return cfg, nil
}

func setupLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
	if lvl > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}
}

// app holds everything a report run needs.
type app struct {
	cfg       *config.Config
	db        *gorm.DB
	configs   *store.ConfigStore
	reports   *store.ReportStore
	generator *report.Generator
	trigger   *scheduler.Trigger
}

func newApp(cfg *config.Config) (*app, error) {
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	configs := store.NewConfigStore(db)
	reports := store.NewReportStore(db)

	fetcher := metrics.NewFetcher(metrics.Options{
		MetaURL:   cfg.Platform.MetaURL,
		TikTokURL: cfg.Platform.TikTokURL,
		Token:     cfg.Platform.Token,
		Timeout:   cfg.Platform.Timeout,
	})
	if cfg.Platform.Token == "" {
		slog.Warn("platform.token is empty; metrics requests will be unauthenticated")
	}

	analyzer := insight.NewClient(insight.Options{
		BaseURL:         cfg.LLM.BaseURL,
		Model:           cfg.LLM.Model,
		APIKey:          cfg.LLM.APIKey,
		Temperature:     cfg.LLM.Temperature,
		MaxOutputTokens: cfg.LLM.MaxOutputTokens,
		Timeout:         cfg.LLM.Timeout,
	})

	deps := report.Deps{
		Configs:  configs,
		Reports:  reports,
		Fetcher:  fetcher,
		Analyzer: analyzer,
	}

	if mailer := newMailer(cfg); mailer != nil {
		var pdf notify.PDFRenderer
		if cfg.PDF.Enabled {
			pdf = notify.NewBrowserlessPDF(cfg.PDF.BaseURL, cfg.PDF.Token)
		}
		deps.Dispatcher = notify.NewDispatcher(mailer, pdf, reports, cfg.Email.From)
	} else {
		slog.Warn("no email provider credentials configured; email delivery is disabled")
	}

	if cfg.Slack.Token != "" && cfg.Slack.Channel != "" {
		deps.Notifier = notify.NewSlackNotifier(cfg.Slack.Token, cfg.Slack.Channel, cfg.Server.PublicURL)
	}

	generator := report.NewGenerator(deps)
	return &app{
		cfg:       cfg,
		db:        db,
		configs:   configs,
		reports:   reports,
		generator: generator,
		trigger:   scheduler.NewTrigger(configs, generator),
	}, nil
}

// newMailer returns nil when the selected provider has no credentials.
func newMailer(cfg *config.Config) notify.Mailer {
	switch strings.ToLower(cfg.Email.Provider) {
	case "smtp":
		if cfg.Email.SMTP.Host == "" {
			return nil
		}
		return notify.NewSMTPMailer(cfg.Email.SMTP.Host, cfg.Email.SMTP.Port, cfg.Email.SMTP.Username, cfg.Email.SMTP.Password)
	default:
		if cfg.Email.Resend.APIKey == "" {
			return nil
		}
		return notify.NewResendMailer(cfg.Email.Resend.APIKey, cfg.Email.Resend.BaseURL)
	}
}

func (a *app) close() {
	if err := database.Close(a.db); err != nil {
		slog.Error("failed to close database", "error", err)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	var ticker *scheduler.Ticker
	if cfg.Scheduler.Cron != "" {
		ticker, err = scheduler.NewTicker(cfg.Scheduler.Cron, a.trigger)
		if err != nil {
			return fmt.Errorf("invalid scheduler.cron %q: %w", cfg.Scheduler.Cron, err)
		}
		ticker.Start()
		slog.Info("in-process scheduler started", "cron", cfg.Scheduler.Cron)
	}

	server := api.NewServer(api.Deps{
		Configs:         a.configs,
		Reports:         a.reports,
		Runner:          a.generator,
		Trigger:         a.trigger,
		Migrate:         func() error { return database.Migrate(a.db) },
		PublicURL:       cfg.Server.PublicURL,
		SchedulerSecret: cfg.Scheduler.Secret,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("http shutdown", "error", err)
	}
	if ticker != nil {
		select {
		case <-ticker.Stop().Done():
		case <-ctx.Done():
			slog.Warn("scheduled tick still running at shutdown")
		}
	}
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// Open migrates as part of connecting.
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer database.Close(db)
	fmt.Println("Tables are ready")
	return nil
}

func runTick(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	sum, err := a.trigger.Tick(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("Cron Processed: %d due, %d completed, %d failed\n", sum.Due, sum.Completed, sum.Failed)
	return nil
}
