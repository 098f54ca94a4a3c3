package insight

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/buger/jsonparser"

	"github.com/adinsights/internal/metrics"
	"github.com/adinsights/internal/models"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.0-flash"
)

// AnalysisUnavailableError wraps any failure to obtain an analysis from the
// language model.
type AnalysisUnavailableError struct {
	Err error
}

func (e *AnalysisUnavailableError) Error() string {
	return fmt.Sprintf("analysis temporarily unavailable: %v", e.Err)
}

func (e *AnalysisUnavailableError) Unwrap() error { return e.Err }

type Options struct {
	BaseURL         string
	Model           string
	APIKey          string
	Temperature     float64
	MaxOutputTokens int
	Timeout         time.Duration
	HTTPClient      *http.Client
}

// Client generates narrative analysis with the Gemini generateContent API.
type Client struct {
	httpClient      *http.Client
	baseURL         string
	model           string
	apiKey          string
	temperature     float64
	maxOutputTokens int
}

func NewClient(opts Options) *Client {
	c := &Client{
		httpClient:      opts.HTTPClient,
		baseURL:         strings.TrimRight(opts.BaseURL, "/"),
		model:           opts.Model,
		apiKey:          opts.APIKey,
		temperature:     opts.Temperature,
		maxOutputTokens: opts.MaxOutputTokens,
	}
	if c.httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 90 * time.Second
		}
		c.httpClient = &http.Client{Timeout: timeout}
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.maxOutputTokens <= 0 {
		c.maxOutputTokens = 1000
	}
	return c
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

// Analyze asks the model for highlights, concerns, recommendations and trends
// over the fetched records and returns the generated text.
func (c *Client) Analyze(ctx context.Context, records []*metrics.Record, cfg *models.ReportConfig) (string, error) {
	prompt, err := BuildPrompt(records, cfg)
	if err != nil {
		return "", &AnalysisUnavailableError{Err: err}
	}

	text, err := c.generate(ctx, prompt)
	if err != nil {
		return "", &AnalysisUnavailableError{Err: err}
	}
	return text, nil
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:     c.temperature,
			MaxOutputTokens: c.maxOutputTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling gemini request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling gemini: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading gemini response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, err := jsonparser.GetString(body, "error", "message")
		if err != nil || msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", fmt.Errorf("gemini API error (status %d): %s", resp.StatusCode, msg)
	}

	text, err := jsonparser.GetString(body, "candidates", "[0]", "content", "parts", "[0]", "text")
	if err != nil {
		if errors.Is(err, jsonparser.KeyPathNotFoundError) {
			return "", errors.New("gemini response has no candidate text")
		}
		return "", fmt.Errorf("parsing gemini response: %w", err)
	}
	return text, nil
}
