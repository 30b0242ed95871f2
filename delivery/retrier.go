package delivery

import "time"

// Decision is what happens to a delivery after an attempt.
type Decision int

const (
	Delivered Decision = iota
	Retry
	Exhausted
)

func (d Decision) String() string {
	switch d {
	case Delivered:
		return "delivered"
	case Retry:
		return "retry"
	default:
		return "exhausted"
	}
}

// Result is the outcome of one HTTP attempt.
type Result struct {
	StatusCode int
	Error      string
	Response   string
	LatencyMs  int
}

// OK reports whether the target accepted the delivery.
func (r Result) OK() bool {
	return r.Error == "" && r.StatusCode >= 200 && r.StatusCode < 300
}

// Retrier decides between delivered, retry and exhausted.
type Retrier struct {
	schedule []time.Duration
}

// NewRetrier returns a Retrier with the given backoff schedule. An empty
// schedule falls back to DefaultRetrySchedule.
func NewRetrier(schedule []time.Duration) *Retrier {
	if len(schedule) == 0 {
		schedule = DefaultRetrySchedule
	}
	return &Retrier{schedule: schedule}
}

// Decide classifies an attempt already counted in d.AttemptCount. Every
// failure, whatever its status code, is retryable until the attempts run out.
func (r *Retrier) Decide(res Result, d *Delivery) Decision {
	if res.OK() {
		return Delivered
	}
	if d.AttemptCount < d.MaxAttempts {
		return Retry
	}
	return Exhausted
}

// Backoff returns the delay after the given attempt (1-based).
func (r *Retrier) Backoff(attempt int) time.Duration {
	idx := attempt - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(r.schedule) {
		idx = len(r.schedule) - 1
	}
	return r.schedule[idx]
}

// NextAttempt returns when the attempt after attempt should run.
func (r *Retrier) NextAttempt(now time.Time, attempt int) time.Time {
	return now.UTC().Add(r.Backoff(attempt))
}
