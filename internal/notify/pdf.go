package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultBrowserlessURL = "https://chrome.browserless.io"

// BrowserlessPDF converts HTML pages to PDF with a Browserless instance.
type BrowserlessPDF struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewBrowserlessPDF(baseURL, token string) *BrowserlessPDF {
	if baseURL == "" {
		baseURL = DefaultBrowserlessURL
	}
	return &BrowserlessPDF{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type pdfMargin struct {
	Top    string `json:"top"`
	Right  string `json:"right"`
	Bottom string `json:"bottom"`
	Left   string `json:"left"`
}

type pdfOptions struct {
	Format          string    `json:"format"`
	PrintBackground bool      `json:"printBackground"`
	Margin          pdfMargin `json:"margin"`
}

type pdfRequest struct {
	HTML    string     `json:"html"`
	Options pdfOptions `json:"options"`
}

// Render returns the PDF bytes for page.
func (b *BrowserlessPDF) Render(ctx context.Context, page string) ([]byte, error) {
	body, err := json.Marshal(pdfRequest{
		HTML: page,
		Options: pdfOptions{
			Format:          "A4",
			PrintBackground: true,
			Margin:          pdfMargin{Top: "1cm", Right: "1cm", Bottom: "1cm", Left: "1cm"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal PDF request: %w", err)
	}

	endpoint := b.baseURL + "/pdf?token=" + url.QueryEscape(b.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("PDF request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("Browserless returned status %d: %s", resp.StatusCode, string(data))
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("Browserless returned an empty document")
	}
	return data, nil
}

// PrintPage adds the report footer to a rendered report before conversion.
func PrintPage(reportHTML string, reportID uint, email string) string {
	footer := fmt.Sprintf(
		`<div style="margin-top:30px;padding-top:10px;border-top:1px solid #dee2e6;font-size:11px;color:#888;">Report ID: %d | Generated for %s</div>`,
		reportID, html.EscapeString(email))

	if i := strings.LastIndex(reportHTML, "</body>"); i >= 0 {
		return reportHTML[:i] + footer + reportHTML[i:]
	}
	return reportHTML + footer
}
