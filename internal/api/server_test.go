package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adinsights/internal/auth"
	"github.com/adinsights/internal/database"
	"github.com/adinsights/internal/metrics"
	"github.com/adinsights/internal/models"
	"github.com/adinsights/internal/report"
	"github.com/adinsights/internal/scheduler"
	"github.com/adinsights/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubFetcher struct {
	err error
}

func (f *stubFetcher) Fetch(ctx context.Context, cfg *models.ReportConfig) ([]*metrics.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []*metrics.Record{metrics.NewRecord("age", "18-24", "spend", 42.0)}, nil
}

type stubAnalyzer struct{}

func (stubAnalyzer) Analyze(ctx context.Context, records []*metrics.Record, cfg *models.ReportConfig) (string, error) {
	return "1. Key Performance Highlights\nAll good.", nil
}

type testEnv struct {
	server  *Server
	configs *store.ConfigStore
	reports *store.ReportStore
	fetcher *stubFetcher
	now     time.Time
}

func newTestEnv(t *testing.T, secret string) *testEnv {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { database.Close(db) })

	env := &testEnv{
		configs: store.NewConfigStore(db),
		reports: store.NewReportStore(db),
		fetcher: &stubFetcher{},
		now:     time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
	}
	gen := report.NewGenerator(report.Deps{
		Configs:  env.configs,
		Reports:  env.reports,
		Fetcher:  env.fetcher,
		Analyzer: stubAnalyzer{},
		Now:      func() time.Time { return env.now },
	})
	env.server = NewServer(Deps{
		Configs:         env.configs,
		Reports:         env.reports,
		Runner:          gen,
		Trigger:         scheduler.NewTrigger(env.configs, gen),
		Migrate:         func() error { return database.Migrate(db) },
		PublicURL:       "http://reports.test/",
		SchedulerSecret: secret,
	})
	return env
}

func (e *testEnv) do(method, path string, body any, header ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
}

func configBody(cadence, delivery, email string) map[string]any {
	body := map[string]any{
		"platform":      "meta",
		"metrics":       []string{"spend"},
		"level":         "account",
		"dateRangeEnum": "last7",
		"cadence":       cadence,
		"delivery":      delivery,
	}
	if email != "" {
		body["email"] = email
	}
	return body
}

func TestCreateAndListConfig(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(http.MethodPost, "/api/configs", configBody("manual", "link", ""))
	if w.Code != http.StatusOK {
		t.Fatalf("create: code = %d body = %s", w.Code, w.Body)
	}
	var created struct {
		Success    bool `json:"success"`
		InsertedID uint `json:"insertedId"`
	}
	decode(t, w, &created)
	if !created.Success || created.InsertedID == 0 {
		t.Fatalf("create response = %s", w.Body)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("response missing X-Request-ID")
	}

	w = env.do(http.MethodGet, "/api/configs", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: code = %d", w.Code)
	}
	var list []struct {
		ID        uint     `json:"id"`
		Metrics   []string `json:"metrics"`
		NextRunAt *string  `json:"nextRunAt"`
	}
	decode(t, w, &list)
	if len(list) != 1 || list[0].ID != created.InsertedID {
		t.Fatalf("list = %s", w.Body)
	}
	if len(list[0].Metrics) != 1 || list[0].Metrics[0] != "spend" {
		t.Errorf("metrics = %v, want [spend]", list[0].Metrics)
	}
	if list[0].NextRunAt != nil {
		t.Error("manual config must not be scheduled")
	}

	if reports, _ := env.reports.ListByConfig(context.Background(), created.InsertedID); len(reports) != 0 {
		t.Errorf("manual config produced %d reports", len(reports))
	}
}

func TestCreateConfigValidation(t *testing.T) {
	env := newTestEnv(t, "")

	tests := []struct {
		name  string
		body  map[string]any
		field string
	}{
		{"email required", configBody("manual", "email", ""), "email"},
		{"email required with other errors", func() map[string]any {
			b := configBody("daily", "email", "")
			delete(b, "platform")
			b["level"] = "nope"
			return b
		}(), "email"},
		{"bad email", configBody("manual", "email", "not-an-address"), "email"},
		{"missing platform", func() map[string]any {
			b := configBody("manual", "link", "")
			delete(b, "platform")
			return b
		}(), "platform"},
		{"wrong level", func() map[string]any {
			b := configBody("manual", "link", "")
			b["level"] = "AUCTION_AD"
			return b
		}(), "level"},
		{"empty metrics", func() map[string]any {
			b := configBody("manual", "link", "")
			b["metrics"] = []string{}
			return b
		}(), "metrics"},
		{"bad cadence", configBody("weekly", "link", ""), "cadence"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/api/configs", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("code = %d body = %s", w.Code, w.Body)
			}
			var resp struct {
				Error string `json:"error"`
				Field string `json:"field"`
			}
			decode(t, w, &resp)
			if resp.Field != tt.field || resp.Error == "" {
				t.Errorf("response = %s, want field %q", w.Body, tt.field)
			}
		})
	}

	if list, _ := env.configs.List(context.Background()); len(list) != 0 {
		t.Errorf("invalid requests stored %d configs", len(list))
	}
}

func TestCreateScheduledConfigRunsOnce(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(http.MethodPost, "/api/configs", configBody("every 12 hours", "link", ""))
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d body = %s", w.Code, w.Body)
	}
	var created struct {
		InsertedID uint `json:"insertedId"`
		ReportID   uint `json:"reportId"`
	}
	decode(t, w, &created)

	ctx := context.Background()
	reports, _ := env.reports.ListByConfig(ctx, created.InsertedID)
	if len(reports) != 1 || reports[0].ID != created.ReportID {
		t.Fatalf("reports = %+v, want exactly the initial one", reports)
	}
	cfg, _ := env.configs.Get(ctx, created.InsertedID)
	if cfg.Cadence != models.CadenceEvery12h {
		t.Errorf("cadence = %q", cfg.Cadence)
	}
	want := env.now.Add(12 * time.Hour)
	if cfg.NextRunAt == nil || !cfg.NextRunAt.Equal(want) {
		t.Errorf("NextRunAt = %v, want %v", cfg.NextRunAt, want)
	}
}

func TestCreateScheduledConfigInitialFailure(t *testing.T) {
	env := newTestEnv(t, "")
	env.fetcher.err = errors.New("upstream down")

	w := env.do(http.MethodPost, "/api/configs", configBody("hourly", "link", ""))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("code = %d body = %s", w.Code, w.Body)
	}
	var resp struct {
		Error      string `json:"error"`
		InsertedID uint   `json:"insertedId"`
	}
	decode(t, w, &resp)
	if resp.InsertedID == 0 {
		t.Error("failed initial run should still report the stored config id")
	}
	if strings.Contains(resp.Error, "upstream down") {
		t.Error("internal error detail must not leak to the client")
	}
}

func TestGenerateAndViewReport(t *testing.T) {
	env := newTestEnv(t, "")
	env.do(http.MethodPost, "/api/configs", configBody("manual", "link", ""))

	w := env.do(http.MethodPost, "/api/reports/generate", map[string]any{"configId": 1})
	if w.Code != http.StatusOK {
		t.Fatalf("generate: code = %d body = %s", w.Code, w.Body)
	}
	var gen GenerateResponse
	decode(t, w, &gen)
	if gen.Status != models.ReportStatusCompleted || gen.ReportID == 0 {
		t.Fatalf("generate response = %s", w.Body)
	}
	if gen.ViewURL != "http://reports.test/api/reports/view/1" {
		t.Errorf("viewUrl = %q", gen.ViewURL)
	}
	if gen.LastRunAt == nil || gen.LastError != "" {
		t.Errorf("lastRunAt = %v lastError = %q", gen.LastRunAt, gen.LastError)
	}

	w = env.do(http.MethodGet, "/api/reports/view/1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("view: code = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(w.Body.String(), "META Report - account") {
		t.Error("view should return the stored report")
	}

	w = env.do(http.MethodGet, "/api/reports/1", nil)
	if w.Code != http.StatusOK || strings.Contains(w.Body.String(), "META Report") {
		t.Errorf("report json: code = %d body = %s", w.Code, w.Body)
	}

	w = env.do(http.MethodGet, "/api/configs/1/reports", nil)
	var history []models.Report
	decode(t, w, &history)
	if len(history) != 1 {
		t.Errorf("history = %s", w.Body)
	}
}

func TestGenerateReportErrors(t *testing.T) {
	env := newTestEnv(t, "")

	if w := env.do(http.MethodPost, "/api/reports/generate", map[string]any{}); w.Code != http.StatusBadRequest {
		t.Errorf("missing configId: code = %d", w.Code)
	}
	if w := env.do(http.MethodPost, "/api/reports/generate", map[string]any{"configId": 77}); w.Code != http.StatusNotFound {
		t.Errorf("unknown config: code = %d", w.Code)
	}
}

func TestGenerateReportFailureStillOK(t *testing.T) {
	env := newTestEnv(t, "")
	env.do(http.MethodPost, "/api/configs", configBody("manual", "link", ""))
	env.fetcher.err = errors.New("meta returned 500")

	w := env.do(http.MethodPost, "/api/reports/generate", map[string]any{"configId": 1})
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d", w.Code)
	}
	var gen GenerateResponse
	decode(t, w, &gen)
	if gen.Status != models.ReportStatusFailed || !strings.Contains(gen.LastError, "meta returned 500") {
		t.Errorf("response = %s", w.Body)
	}
}

func TestViewReportErrors(t *testing.T) {
	env := newTestEnv(t, "")

	if w := env.do(http.MethodGet, "/api/reports/view/abc", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad id: code = %d", w.Code)
	}
	if w := env.do(http.MethodGet, "/api/reports/view/999", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing report: code = %d", w.Code)
	}
	if w := env.do(http.MethodGet, "/api/configs/999", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing config: code = %d", w.Code)
	}
}

func TestCronEndpoint(t *testing.T) {
	env := newTestEnv(t, "cron-secret")

	if w := env.do(http.MethodGet, "/api/cron", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("no token: code = %d", w.Code)
	}

	// The trigger runs on the wall clock.
	past := time.Now().UTC().Add(-time.Minute)
	cfg := &models.ReportConfig{Platform: models.PlatformMeta, Metrics: []string{"spend"}, Level: "ad",
		DateRange: models.DateRangeLast30, Cadence: models.CadenceDaily, Delivery: models.DeliveryLink, NextRunAt: &past}
	if err := env.configs.Create(context.Background(), cfg); err != nil {
		t.Fatalf("Create: %v", err)
	}

	tok, _ := auth.GenerateToken("cron-secret", time.Minute)
	w := env.do(http.MethodPost, "/api/cron", nil, "Authorization", "Bearer "+tok)
	if w.Code != http.StatusOK || w.Body.String() != "Cron Processed" {
		t.Fatalf("cron: code = %d body = %q", w.Code, w.Body)
	}
	if reports, _ := env.reports.ListByConfig(context.Background(), cfg.ID); len(reports) != 1 {
		t.Errorf("due config has %d reports, want 1", len(reports))
	}
}

func TestSetupAndHealth(t *testing.T) {
	env := newTestEnv(t, "")
	if w := env.do(http.MethodGet, "/api/setup", nil); w.Code != http.StatusOK {
		t.Errorf("setup: code = %d", w.Code)
	}
	if w := env.do(http.MethodGet, "/api/setup", nil); w.Code != http.StatusOK {
		t.Errorf("second setup: code = %d", w.Code)
	}
	if w := env.do(http.MethodGet, "/healthz", nil); w.Code != http.StatusOK {
		t.Errorf("healthz: code = %d", w.Code)
	}
}

func TestRequestIDPassthrough(t *testing.T) {
	env := newTestEnv(t, "")
	w := env.do(http.MethodGet, "/healthz", nil, "X-Request-ID", "abc-123")
	if got := w.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q, want abc-123", got)
	}
}
