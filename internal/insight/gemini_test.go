package insight

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/adinsights/internal/metrics"
	"github.com/adinsights/internal/models"
)

func testConfig() *models.ReportConfig {
	return &models.ReportConfig{
		Platform:  models.PlatformTikTok,
		Metrics:   []string{"spend", "impressions"},
		Level:     "AUCTION_AD",
		DateRange: models.DateRangeLast30,
	}
}

func TestBuildPrompt(t *testing.T) {
	records := []*metrics.Record{metrics.NewRecord("ad_id", "1", "spend", 4.5)}
	prompt, err := BuildPrompt(records, testConfig())
	if err != nil {
		t.Fatalf("BuildPrompt: %v", err)
	}
	for _, want := range []string{
		"Analyze this tiktok advertising data",
		"Metrics: spend,impressions",
		"Level: AUCTION_AD",
		"Date Range: last30",
		`"ad_id": "1"`,
		"3. Recommendations for optimization",
		"DO NOT provide an introduction",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Index(prompt, `"ad_id"`) > strings.Index(prompt, `"spend"`) {
		t.Error("prompt data should keep record key order")
	}
}

func TestAnalyze(t *testing.T) {
	var gotPath, gotKey string
	var gotReq generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		b, _ := io.ReadAll(r.Body)
		json.Unmarshal(b, &gotReq)
		io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"1. Key Performance Highlights\nSpend is up."}]}}]}`)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, APIKey: "k-123", Temperature: 0.7, HTTPClient: srv.Client()})
	text, err := c.Analyze(context.Background(), nil, testConfig())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if text != "1. Key Performance Highlights\nSpend is up." {
		t.Errorf("text = %q", text)
	}
	if gotPath != "/models/gemini-2.0-flash:generateContent" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "k-123" {
		t.Errorf("key = %q", gotKey)
	}
	if gotReq.GenerationConfig.Temperature != 0.7 || gotReq.GenerationConfig.MaxOutputTokens != 1000 {
		t.Errorf("generationConfig = %+v", gotReq.GenerationConfig)
	}
	if len(gotReq.Contents) != 1 || len(gotReq.Contents[0].Parts) != 1 {
		t.Fatalf("unexpected contents: %+v", gotReq.Contents)
	}
}

func TestAnalyzeUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"code":429,"message":"Resource has been exhausted"}}`)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, HTTPClient: srv.Client()})
	_, err := c.Analyze(context.Background(), nil, testConfig())
	var aerr *AnalysisUnavailableError
	if !errors.As(err, &aerr) {
		t.Fatalf("err = %v, want AnalysisUnavailableError", err)
	}
	if !strings.Contains(err.Error(), "Resource has been exhausted") {
		t.Errorf("error %q should carry the upstream message", err)
	}
}

func TestAnalyzeNoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"candidates":[],"promptFeedback":{"blockReason":"SAFETY"}}`)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL, HTTPClient: srv.Client()})
	_, err := c.Analyze(context.Background(), nil, testConfig())
	var aerr *AnalysisUnavailableError
	if !errors.As(err, &aerr) {
		t.Fatalf("err = %v, want AnalysisUnavailableError", err)
	}
}
