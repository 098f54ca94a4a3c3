package insight

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/adinsights/internal/metrics"
	"github.com/adinsights/internal/models"
)

const promptTemplate = `Analyze this %[1]s advertising data and provide insights:

Platform: %[1]s
Metrics: %[2]s
Level: %[3]s
Date Range: %[4]s

Data: %[5]s

Please provide:
1. Key performance highlights
2. Areas of concern
3. Recommendations for optimization
4. Notable trends or patterns

CRITICAL INSTRUCTIONS:
- DO NOT provide an introduction, preamble, or conversational filler.
- DO NOT say "Here is the analysis" or "Okay, let's look at the data."
- Start immediately with the first heading (e.g., "1. Key Performance Highlights").
- Provide raw, direct analysis only.
`

// BuildPrompt renders the analysis prompt for the given rows.
func BuildPrompt(records []*metrics.Record, cfg *models.ReportConfig) (string, error) {
	if records == nil {
		records = []*metrics.Record{}
	}
	data, err := json.MarshalIndent(struct {
		Data []*metrics.Record `json:"data"`
	}{records}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding platform data: %w", err)
	}
	return fmt.Sprintf(promptTemplate,
		cfg.Platform,
		strings.Join(cfg.Metrics, ","),
		cfg.Level,
		cfg.DateRange,
		data,
	), nil
}
