package delivery_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/xraph/press/delivery"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{"short", "abc", 10, "abc"},
		{"exact", "abcdef", 6, "abcdef"},
		{"cut", "abcdefghij", 8, "abcde..."},
		{"no limit", "abcdefghij", 0, "abcdefghij"},
		{"tiny limit", "abcdefghij", 2, ".."},
		{"rune boundary", "abéééé", 7, "abé..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := delivery.Truncate(tt.in, tt.limit)
			if got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.limit, got, tt.want)
			}
			if tt.limit > 0 && len(got) > tt.limit {
				t.Errorf("result exceeds limit: %d > %d", len(got), tt.limit)
			}
			if !utf8.ValidString(got) {
				t.Errorf("result is not valid UTF-8: %q", got)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	d := &delivery.Delivery{
		Event:          "entry.published",
		URL:            "https://hooks.example.com/in",
		AttemptCount:   3,
		LastStatusCode: 502,
		LastResponse:   "bad gateway",
	}

	got := delivery.Summarize(d, 0)
	want := "webhook entry.published to https://hooks.example.com/in failed after 3 attempt(s): HTTP 502: bad gateway"
	if got != want {
		t.Fatalf("got %q\nwant %q", got, want)
	}

	d.LastError = "dial tcp: connection refused"
	if got := delivery.Summarize(d, 0); !strings.HasSuffix(got, "connection refused") {
		t.Fatalf("transport error not preferred: %q", got)
	}

	d.LastError = strings.Repeat("e", 2000)
	if got := delivery.Summarize(d, delivery.DefaultSummaryLimit); len(got) != delivery.DefaultSummaryLimit {
		t.Fatalf("summary length = %d", len(got))
	}
}
