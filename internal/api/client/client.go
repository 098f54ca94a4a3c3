package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"time"

	"github.com/adinsights/internal/models"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
	Field      string
	InsertedID uint
}

func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("API error (%d): %s [field %s]", e.StatusCode, e.Message, e.Field)
	}
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient configures a client from ADINSIGHTS_API_URL and the optional
// ADINSIGHTS_API_TOKEN used for the cron endpoint.
func NewClient() (*Client, error) {
	baseURL := os.Getenv("ADINSIGHTS_API_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid ADINSIGHTS_API_URL: %w", err)
	}
	return NewClientWithBaseURL(baseURL, os.Getenv("ADINSIGHTS_API_TOKEN")), nil
}

func NewClientWithBaseURL(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			// Report generation runs synchronously on the server.
			Timeout: 5 * time.Minute,
		},
	}
}

type CreateConfigResponse struct {
	Success    bool `json:"success"`
	InsertedID uint `json:"insertedId"`
	ReportID   uint `json:"reportId,omitempty"`
}

// GenerateResponse mirrors api.GenerateResponse; keep the two in step when
// the generate endpoint changes.
type GenerateResponse struct {
	Message   string              `json:"message"`
	ReportID  uint                `json:"reportId"`
	Status    models.ReportStatus `json:"status"`
	LastRunAt *time.Time          `json:"lastRunAt"`
	LastError string              `json:"lastError"`
	ViewURL   string              `json:"viewUrl"`
}

func (c *Client) CreateConfig(req *models.ConfigRequest) (*CreateConfigResponse, error) {
	var resp CreateConfigResponse
	if err := c.post("/api/configs", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ListConfigs() ([]models.ReportConfig, error) {
	var configs []models.ReportConfig
	if err := c.get("/api/configs", &configs); err != nil {
		return nil, err
	}
	return configs, nil
}

func (c *Client) GetConfig(id uint) (*models.ReportConfig, error) {
	var cfg models.ReportConfig
	if err := c.get(fmt.Sprintf("/api/configs/%d", id), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Client) ListReports(configID uint) ([]models.Report, error) {
	var reports []models.Report
	if err := c.get(fmt.Sprintf("/api/configs/%d/reports", configID), &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

func (c *Client) GenerateReport(configID uint) (*GenerateResponse, error) {
	var resp GenerateResponse
	if err := c.post("/api/reports/generate", map[string]uint{"configId": configID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ViewReport copies the stored report HTML to w.
func (c *Client) ViewReport(reportID uint, w io.Writer) error {
	resp, err := c.doRequest(http.MethodGet, fmt.Sprintf("/api/reports/view/%d", reportID), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	_, err = io.Copy(w, resp.Body)
	return err
}

// RunCron triggers one scheduler pass and returns the server's reply.
func (c *Client) RunCron() (string, error) {
	resp, err := c.doRequest(http.MethodPost, "/api/cron", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	return string(b), nil
}

func (c *Client) Setup() error {
	return c.get("/api/setup", nil)
}

func (c *Client) get(endpoint string, v interface{}) error {
	resp, err := c.doRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if v == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func (c *Client) post(endpoint string, data, v interface{}) error {
	var body io.Reader
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}

	resp, err := c.doRequest(http.MethodPost, endpoint, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if v != nil {
		return json.NewDecoder(resp.Body).Decode(v)
	}
	return nil
}

func (c *Client) doRequest(method, endpoint string, body io.Reader) (*http.Response, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	u.Path = path.Join(u.Path, endpoint)

	req, err := http.NewRequest(method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errResp struct {
			Error      string `json:"error"`
			Field      string `json:"field"`
			InsertedID uint   `json:"insertedId"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
			apiErr.Message = errResp.Error
			apiErr.Field = errResp.Field
			apiErr.InsertedID = errResp.InsertedID
		} else {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return nil, apiErr
	}

	return resp, nil
}
