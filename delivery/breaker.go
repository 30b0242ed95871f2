package delivery

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

// BreakerConfig configures the per-URL circuit breakers.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failed attempts to a URL
	// that opens its breaker.
	FailureThreshold uint32

	// Cooldown is how long a breaker stays open before probing again.
	Cooldown time.Duration

	// HalfOpenRequests is the number of probes allowed while half-open.
	HalfOpenRequests uint32
}

// DefaultBreakerConfig returns the breaker defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
		HalfOpenRequests: 1,
	}
}

// Breakers holds one circuit breaker per target URL, so a failing receiver
// stops consuming attempts and worker time while it is down.
type Breakers struct {
	cfg    BreakerConfig
	logger *slog.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[Result]
}

// NewBreakers returns an empty breaker set.
func NewBreakers(cfg BreakerConfig, logger *slog.Logger) *Breakers {
	def := DefaultBreakerConfig()
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = def.HalfOpenRequests
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Breakers{
		cfg:      cfg,
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker[Result]),
	}
}

// errAttemptFailed marks a non-2xx result as a breaker failure.
var errAttemptFailed = errors.New("webhook attempt failed")

// Execute runs send through the breaker of url. sent is false when the
// breaker rejected the call without sending anything.
func (b *Breakers) Execute(url string, send func() Result) (res Result, sent bool) {
	cb := b.get(url)

	res, err := cb.Execute(func() (Result, error) {
		r := send()
		if !r.OK() {
			return r, fmt.Errorf("%w: %d", errAttemptFailed, r.StatusCode)
		}
		return r, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return Result{Error: err.Error()}, false
	}
	return res, true
}

// Cooldown is how long an open breaker rejects calls.
func (b *Breakers) Cooldown() time.Duration { return b.cfg.Cooldown }

// State returns the breaker state of url as a string.
func (b *Breakers) State(url string) string {
	return b.get(url).State().String()
}

func (b *Breakers) get(url string) *gobreaker.CircuitBreaker[Result] {
	b.mu.Lock()
	defer b.mu.Unlock()

	cb, ok := b.breakers[url]
	if ok {
		return cb
	}

	threshold := b.cfg.FailureThreshold
	cb = gobreaker.NewCircuitBreaker[Result](gobreaker.Settings{
		Name:        url,
		MaxRequests: b.cfg.HalfOpenRequests,
		Timeout:     b.cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Warn("webhook circuit breaker state changed",
				"url", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	b.breakers[url] = cb
	return cb
}
