package press

import (
	"time"

	"github.com/xraph/press/dedup"
	"github.com/xraph/press/delivery"
)

// Config holds the configuration for a Press instance.
type Config struct {
	// Concurrency is the number of delivery worker goroutines.
	Concurrency int

	// PollInterval is how often the delivery engine checks for due deliveries.
	PollInterval time.Duration

	// BatchSize is the maximum number of deliveries dequeued per poll cycle.
	BatchSize int

	// RequestTimeout is the HTTP timeout per delivery attempt.
	RequestTimeout time.Duration

	// MaxAttempts is the number of tries per delivery before it is exhausted.
	MaxAttempts int

	// RetrySchedule defines the backoff between attempts.
	RetrySchedule []time.Duration

	// ShutdownTimeout is the maximum time Stop waits for in-flight deliveries.
	ShutdownTimeout time.Duration

	// CacheTTL is how long a resolved collection is reused by the catalog.
	// 0 caches forever.
	CacheTTL time.Duration

	// SweepBatch caps the rows one sweep reads. 0 reads every due row.
	SweepBatch int

	// DedupTTL is how long a delivered idempotency key is remembered.
	DedupTTL time.Duration

	// SummaryLimit caps failure summaries in logs and the DLQ.
	SummaryLimit int

	// RateLimit is the default per-URL requests per second. 0 is unlimited.
	RateLimit int

	// WebhooksOnUnpublish also delivers unpublish events to webhook targets.
	WebhooksOnUnpublish bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:     10,
		PollInterval:    time.Second,
		BatchSize:       50,
		RequestTimeout:  delivery.DefaultRequestTimeout,
		MaxAttempts:     delivery.DefaultMaxAttempts,
		RetrySchedule:   delivery.DefaultRetrySchedule,
		ShutdownTimeout: 30 * time.Second,
		CacheTTL:        30 * time.Second,
		DedupTTL:        dedup.DefaultTTL,
		SummaryLimit:    delivery.DefaultSummaryLimit,
	}
}
