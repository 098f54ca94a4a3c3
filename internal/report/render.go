package report

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/dustin/go-humanize"
	"github.com/jaytaylor/html2text"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/adinsights/internal/metrics"
	"github.com/adinsights/internal/models"
)

//go:embed templates/report.html
var templateFS embed.FS

var reportTemplate = template.Must(
	template.New("report.html").
		Funcs(template.FuncMap{"odd": func(i int) bool { return i%2 == 1 }}).
		ParseFS(templateFS, "templates/report.html"),
)

const timestampLayout = "2006-01-02 15:04:05 MST"

type reportData struct {
	Title       string
	Metrics     []string
	DateRange   string
	GeneratedAt string
	Analysis    string
	Headers     []string
	Rows        [][]string
}

// Render builds the report page for a finished fetch and analysis. The
// output depends only on its arguments.
func Render(records []*metrics.Record, analysis string, cfg *models.ReportConfig, generatedAt time.Time) (string, error) {
	data := reportData{
		Title:       fmt.Sprintf("%s Report - %s", strings.ToUpper(string(cfg.Platform)), cfg.Level),
		Metrics:     []string(cfg.Metrics),
		DateRange:   string(cfg.DateRange),
		GeneratedAt: generatedAt.Format(timestampLayout),
		Analysis:    analysis,
	}

	if len(records) > 0 {
		columns := metrics.Keys(records[0])
		for _, col := range columns {
			data.Headers = append(data.Headers, HumanizeHeader(col))
		}
		for _, rec := range records {
			row := make([]string, len(columns))
			for i, col := range columns {
				var v any
				if rec != nil {
					v, _ = rec.Get(col)
				}
				row[i] = FormatValue(v)
			}
			data.Rows = append(data.Rows, row)
		}
	}

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return buf.String(), nil
}

// HumanizeHeader turns a field name such as "costPerClick" or "ad_id" into a
// column title ("Cost Per Click", "Ad Id").
func HumanizeHeader(key string) string {
	var b strings.Builder
	runes := []rune(key)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-':
			b.WriteRune(' ')
			continue
		case unicode.IsUpper(r) && i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])):
			b.WriteRune(' ')
		}
		b.WriteRune(r)
	}
	words := strings.Fields(b.String())
	return cases.Title(language.English, cases.NoLower).String(strings.Join(words, " "))
}

// FormatValue renders a cell. Numbers get thousands separators and at most
// two decimals, missing values become "-".
func FormatValue(v any) string {
	switch n := v.(type) {
	case nil:
		return "-"
	case string:
		return n
	case float64:
		return formatFloat(n)
	case float32:
		return formatFloat(float64(n))
	case int:
		return humanize.Comma(int64(n))
	case int64:
		return humanize.Comma(n)
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return formatFloat(f)
		}
		return n.String()
	case bool:
		return fmt.Sprintf("%t", n)
	default:
		b, err := json.Marshal(n)
		if err != nil {
			return fmt.Sprintf("%v", n)
		}
		return string(b)
	}
}

func formatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "-"
	}
	// CommafWithDigits truncates, so round first.
	return humanize.CommafWithDigits(math.Round(f*100)/100, 2)
}

// PlainText converts a rendered report into a text alternative for email
// clients that do not display HTML.
func PlainText(html string) (string, error) {
	text, err := html2text.FromString(html, html2text.Options{PrettyTables: true})
	if err != nil {
		return "", fmt.Errorf("failed to convert report to text: %w", err)
	}
	return text, nil
}
