package metrics

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/adinsights/internal/models"
)

func TestTruncateKeepsRunesWhole(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"abcdef", 3, "abc..."},
		// "é" is two bytes; cutting at 2 would split it.
		{"aébc", 2, "a..."},
		{"日本語", 4, "日..."},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestUpstreamErrorMessageIsValidUTF8(t *testing.T) {
	body := strings.Repeat("a", 299) + "ü tail"
	err := &UpstreamFetchError{Platform: models.PlatformTikTok, Status: 500, Body: body}
	msg := err.Error()
	if !utf8.ValidString(msg) {
		t.Errorf("message is not valid UTF-8: %q", msg)
	}
	if !strings.HasSuffix(msg, strings.Repeat("a", 299)+"...") {
		t.Errorf("message = %q", msg)
	}
}
