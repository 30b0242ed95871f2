package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/xraph/press/signature"
)

const maxResponseBody = 1024

// Request headers set on every delivery.
const (
	HeaderIdempotencyKey = "X-Webhook-Idempotency-Key"
	HeaderEvent          = "X-Webhook-Event"
	HeaderDeliveryID     = "X-Webhook-Delivery-ID"
)

// DefaultRequestTimeout bounds one HTTP attempt.
const DefaultRequestTimeout = 10 * time.Second

// Sender performs the HTTP POST of a delivery.
type Sender struct {
	client *http.Client
}

// NewSender returns a Sender whose requests time out after timeout.
func NewSender(timeout time.Duration) *Sender {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Sender{client: &http.Client{Timeout: timeout}}
}

// Body serializes the delivery payload.
func Body(d *Delivery) ([]byte, error) {
	return json.Marshal(d.Payload)
}

// Send posts d to its URL. Timeouts and transport errors come back in
// Result.Error and are retryable like any non-2xx status.
func (s *Sender) Send(ctx context.Context, d *Delivery) Result {
	body, err := Body(d)
	if err != nil {
		return Result{Error: fmt.Sprintf("marshal payload: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(body))
	if err != nil {
		return Result{Error: fmt.Sprintf("create request: %v", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Press-Webhooks/1.0")
	req.Header.Set(HeaderIdempotencyKey, d.IdempotencyKey)
	req.Header.Set(HeaderEvent, d.Event)
	req.Header.Set(HeaderDeliveryID, d.ID.String())
	if d.Secret != "" {
		req.Header.Set(signature.Header, signature.Sign(body, d.Secret))
	}

	start := time.Now()
	resp, err := s.client.Do(req) //nolint:gosec // G704: target URLs are operator-configured webhook destinations.
	latency := int(time.Since(start).Milliseconds())

	if err != nil {
		return Result{Error: err.Error(), LatencyMs: latency}
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if readErr != nil {
		return Result{
			StatusCode: resp.StatusCode,
			Error:      fmt.Sprintf("read response: %v", readErr),
			LatencyMs:  latency,
		}
	}

	return Result{
		StatusCode: resp.StatusCode,
		Response:   string(respBody),
		LatencyMs:  latency,
	}
}
