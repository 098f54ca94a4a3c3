package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adinsights/internal/models"
)

func (s *Server) createConfig(c *gin.Context) {
	var req models.ConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// A missing email for email delivery is reported ahead of other fields.
		if req.Delivery == string(models.DeliveryEmail) && req.Email == "" {
			badRequest(c, &models.ValidationError{Field: "email", Message: "email is required when delivery is email"})
			return
		}
		badRequest(c, bindError(err))
		return
	}

	cfg, err := req.ToConfig()
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			badRequest(c, verr)
			return
		}
		respondError(c, err, "")
		return
	}

	if err := s.configs.Create(c.Request.Context(), cfg); err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save report config"})
		return
	}

	if cfg.Cadence == models.CadenceManual {
		c.JSON(http.StatusOK, gin.H{"success": true, "insertedId": cfg.ID})
		return
	}

	// Scheduled configs get their first report right away.
	out, err := s.runner.Run(c.Request.Context(), cfg, true)
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start initial report", "insertedId": cfg.ID})
		return
	}
	if out.Status != models.ReportStatusCompleted {
		if out.Err != nil {
			c.Error(out.Err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      "Initial report generation failed",
			"insertedId": cfg.ID,
			"reportId":   out.ReportID,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "insertedId": cfg.ID, "reportId": out.ReportID})
}

func (s *Server) listConfigs(c *gin.Context) {
	configs, err := s.configs.List(c.Request.Context())
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch report configs"})
		return
	}
	if configs == nil {
		configs = []models.ReportConfig{}
	}
	c.JSON(http.StatusOK, configs)
}

func (s *Server) getConfig(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid config ID"})
		return
	}

	cfg, err := s.configs.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Report configuration not found")
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (s *Server) listConfigReports(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid config ID"})
		return
	}

	ctx := c.Request.Context()
	if _, err := s.configs.Get(ctx, id); err != nil {
		respondError(c, err, "Report configuration not found")
		return
	}

	reports, err := s.reports.ListByConfig(ctx, id)
	if err != nil {
		respondError(c, err, "")
		return
	}
	if reports == nil {
		reports = []models.Report{}
	}
	c.JSON(http.StatusOK, reports)
}

type generateRequest struct {
	ConfigID uint `json:"configId"`
}

// GenerateResponse is returned by POST /api/reports/generate. The API client
// decodes it into client.GenerateResponse, which must keep the same fields.
type GenerateResponse struct {
	Message   string              `json:"message"`
	ReportID  uint                `json:"reportId"`
	Status    models.ReportStatus `json:"status"`
	LastRunAt *time.Time          `json:"lastRunAt"`
	LastError string              `json:"lastError"`
	ViewURL   string              `json:"viewUrl"`
}

func (s *Server) generateReport(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ConfigID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Config ID is required", "field": "configId"})
		return
	}

	ctx := c.Request.Context()
	cfg, err := s.configs.Get(ctx, req.ConfigID)
	if err != nil {
		respondError(c, err, "Report configuration not found")
		return
	}

	out, err := s.runner.Run(ctx, cfg, false)
	if err != nil {
		respondError(c, err, "")
		return
	}

	resp := GenerateResponse{
		Message:  "Finished generating report",
		ReportID: out.ReportID,
		Status:   out.Status,
		ViewURL:  s.viewURL(out.ReportID),
	}
	if updated, err := s.configs.Get(ctx, cfg.ID); err == nil {
		resp.LastRunAt = updated.LastRunAt
		if updated.LastError != nil {
			resp.LastError = *updated.LastError
		}
	} else {
		s.log.Warn("could not reload config after run", "config_id", cfg.ID, "error", err)
	}
	if out.Err != nil && resp.LastError == "" {
		resp.LastError = out.Err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) getReport(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid report ID"})
		return
	}

	r, err := s.reports.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Report not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"report":  r,
		"viewUrl": s.viewURL(r.ID),
		"hasHtml": r.HTMLContent != "",
	})
}

func (s *Server) viewReport(c *gin.Context) {
	id, ok := parseID(c, "reportId")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid report ID"})
		return
	}

	r, err := s.reports.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Report not found")
		return
	}
	if r.HTMLContent == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "Report has no content yet", "status": r.Status})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(r.HTMLContent))
}

func (s *Server) runCron(c *gin.Context) {
	sum, err := s.trigger.Tick(c.Request.Context())
	if err != nil {
		c.Error(err)
		c.String(http.StatusInternalServerError, "Cron Failed")
		return
	}
	s.log.Info("cron processed", "due", sum.Due, "completed", sum.Completed, "failed", sum.Failed)
	c.String(http.StatusOK, "Cron Processed")
}

func (s *Server) setup(c *gin.Context) {
	if s.migrate == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "setup is not available"})
		return
	}
	if err := s.migrate(); err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create tables"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Tables are ready"})
}
