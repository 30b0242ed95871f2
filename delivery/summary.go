package delivery

import (
	"fmt"
	"unicode/utf8"
)

// DefaultSummaryLimit caps failure summaries written to logs and the DLQ.
const DefaultSummaryLimit = 512

const ellipsis = "..."

// Truncate shortens s to at most limit bytes, cutting on a rune boundary and
// appending an ellipsis when anything was dropped.
func Truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	if limit <= len(ellipsis) {
		return ellipsis[:limit]
	}

	cut := limit - len(ellipsis)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + ellipsis
}

// Summarize renders the human-readable failure line of a delivery.
func Summarize(d *Delivery, limit int) string {
	reason := d.LastError
	if reason == "" {
		reason = fmt.Sprintf("HTTP %d", d.LastStatusCode)
		if d.LastResponse != "" {
			reason += ": " + d.LastResponse
		}
	}
	msg := fmt.Sprintf("webhook %s to %s failed after %d attempt(s): %s",
		d.Event, d.URL, d.AttemptCount, reason)
	return Truncate(msg, limit)
}
