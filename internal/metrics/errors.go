package metrics

import (
	"fmt"
	"unicode/utf8"

	"github.com/adinsights/internal/models"
)

// UpstreamFetchError reports a platform call that failed or returned
// something we could not decode. Status is 0 for transport errors.
type UpstreamFetchError struct {
	Platform models.Platform
	Status   int
	Body     string
	Err      error
}

func (e *UpstreamFetchError) Error() string {
	switch {
	case e.Err != nil && e.Status == 0:
		return fmt.Sprintf("failed to fetch %s data: %v", e.Platform, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("failed to decode %s response (status %d): %v", e.Platform, e.Status, e.Err)
	default:
		return fmt.Sprintf("%s API returned status %d: %s", e.Platform, e.Status, truncate(e.Body, 300))
	}
}

func (e *UpstreamFetchError) Unwrap() error { return e.Err }

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
