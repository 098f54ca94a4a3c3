package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/adinsights/internal/auth"
	"github.com/adinsights/internal/models"
	"github.com/adinsights/internal/report"
	"github.com/adinsights/internal/scheduler"
)

type ConfigStore interface {
	Create(ctx context.Context, cfg *models.ReportConfig) error
	Get(ctx context.Context, id uint) (*models.ReportConfig, error)
	List(ctx context.Context) ([]models.ReportConfig, error)
}

type ReportStore interface {
	Get(ctx context.Context, id uint) (*models.Report, error)
	ListByConfig(ctx context.Context, configID uint) ([]models.Report, error)
}

type Runner interface {
	Run(ctx context.Context, cfg *models.ReportConfig, scheduled bool) (report.Outcome, error)
}

type Ticker interface {
	Tick(ctx context.Context) (scheduler.Summary, error)
}

type Deps struct {
	Configs ConfigStore
	Reports ReportStore
	Runner  Runner
	Trigger Ticker
	// Migrate creates or updates the schema for the setup endpoint.
	Migrate func() error
	// PublicURL prefixes the view links handed back to clients.
	PublicURL string
	// SchedulerSecret guards the cron endpoint when set.
	SchedulerSecret string
}

type Server struct {
	configs   ConfigStore
	reports   ReportStore
	runner    Runner
	trigger   Ticker
	migrate   func() error
	publicURL string
	secret    string
	router    *gin.Engine
	log       *slog.Logger
}

func NewServer(d Deps) *Server {
	server := &Server{
		configs:   d.Configs,
		reports:   d.Reports,
		runner:    d.Runner,
		trigger:   d.Trigger,
		migrate:   d.Migrate,
		publicURL: strings.TrimRight(d.PublicURL, "/"),
		secret:    d.SchedulerSecret,
		router:    gin.New(),
		log:       slog.Default().With("component", "api"),
	}
	server.router.Use(requestID(), requestLogger(server.log), gin.Recovery())

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.router.Group("/api")

	configs := api.Group("/configs")
	{
		configs.POST("", s.createConfig)
		configs.GET("", s.listConfigs)
		configs.GET("/:id", s.getConfig)
		configs.GET("/:id/reports", s.listConfigReports)
	}

	reports := api.Group("/reports")
	{
		reports.POST("/generate", s.generateReport)
		reports.GET("/view/:reportId", s.viewReport)
		reports.GET("/:id", s.getReport)
	}

	cron := api.Group("/cron", auth.RequireSchedulerToken(s.secret))
	{
		cron.GET("", s.runCron)
		cron.POST("", s.runCron)
	}

	api.GET("/setup", s.setup)
}

// Handler exposes the router for an http.Server or tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) viewURL(reportID uint) string {
	return fmt.Sprintf("%s/api/reports/view/%d", s.publicURL, reportID)
}

func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
