package metrics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/adinsights/internal/models"
)

// Options configures the platform endpoints and credentials.
type Options struct {
	MetaURL   string
	TikTokURL string
	Token     string
	Timeout   time.Duration
	// HTTPClient overrides the default client, mostly for tests.
	HTTPClient *http.Client
}

// Fetcher pulls metric rows from the Meta and TikTok reporting endpoints.
type Fetcher struct {
	client    *http.Client
	metaURL   string
	tiktokURL string
	token     string
}

func NewFetcher(opts Options) *Fetcher {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Fetcher{
		client:    client,
		metaURL:   opts.MetaURL,
		tiktokURL: opts.TikTokURL,
		token:     opts.Token,
	}
}

type baseRequest struct {
	Metrics       []string `json:"metrics"`
	Level         string   `json:"level"`
	DateRangeEnum string   `json:"dateRangeEnum"`
}

type metaRequest struct {
	baseRequest
	Breakdowns    []string `json:"breakdowns"`
	TimeIncrement string   `json:"timeIncrement"`
}

type tiktokRequest struct {
	baseRequest
	Dimensions []string `json:"dimensions"`
}

type metaResponse struct {
	Data []*Record `json:"data"`
}

type tiktokRow struct {
	Dimensions *Record `json:"dimensions"`
	Metrics    *Record `json:"metrics"`
}

type tiktokResponse struct {
	Data []tiktokRow `json:"data"`
}

// buildRequest returns the endpoint and JSON body for the config's platform.
func (f *Fetcher) buildRequest(cfg *models.ReportConfig) (string, any, error) {
	base := baseRequest{
		Metrics:       []string(cfg.Metrics),
		Level:         cfg.Level,
		DateRangeEnum: string(cfg.DateRange),
	}
	switch cfg.Platform {
	case models.PlatformMeta:
		return f.metaURL, metaRequest{
			baseRequest:   base,
			Breakdowns:    []string{"age"},
			TimeIncrement: "all_days",
		}, nil
	case models.PlatformTikTok:
		return f.tiktokURL, tiktokRequest{
			baseRequest: base,
			Dimensions:  []string{"ad_id"},
		}, nil
	default:
		return "", nil, fmt.Errorf("unsupported platform %q", cfg.Platform)
	}
}

// Fetch requests the configured metrics and returns one record per row.
// TikTok rows are flattened so dimensions and metrics share a single record.
func (f *Fetcher) Fetch(ctx context.Context, cfg *models.ReportConfig) ([]*Record, error) {
	endpoint, body, err := f.buildRequest(cfg)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", cfg.Platform, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", cfg.Platform, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if f.token != "" {
		req.Header.Set("Authorization", f.token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &UpstreamFetchError{Platform: cfg.Platform, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamFetchError{Platform: cfg.Platform, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamFetchError{Platform: cfg.Platform, Status: resp.StatusCode, Body: string(raw)}
	}

	records, err := decode(cfg.Platform, raw)
	if err != nil {
		return nil, &UpstreamFetchError{Platform: cfg.Platform, Status: resp.StatusCode, Body: string(raw), Err: err}
	}

	slog.Debug("fetched platform data", "platform", cfg.Platform, "rows", len(records))
	return records, nil
}

func decode(platform models.Platform, raw []byte) ([]*Record, error) {
	switch platform {
	case models.PlatformMeta:
		var resp metaResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			return nil, err
		}
		records := make([]*Record, 0, len(resp.Data))
		for _, r := range resp.Data {
			if r == nil {
				r = NewRecord()
			}
			records = append(records, r)
		}
		return records, nil
	case models.PlatformTikTok:
		var resp tiktokResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			return nil, err
		}
		return flattenTikTok(resp.Data), nil
	default:
		return nil, fmt.Errorf("unsupported platform %q", platform)
	}
}

// flattenTikTok merges each row's dimensions and metrics into one record.
// Metrics win when a key appears in both.
func flattenTikTok(rows []tiktokRow) []*Record {
	records := make([]*Record, 0, len(rows))
	for _, row := range rows {
		r := NewRecord()
		merge(r, row.Dimensions)
		merge(r, row.Metrics)
		records = append(records, r)
	}
	return records
}
