package delivery_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xraph/press/delivery"
	"github.com/xraph/press/event"
	"github.com/xraph/press/signature"
)

func TestSenderHappyPath(t *testing.T) {
	var receivedHeaders http.Header
	var receivedBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedHeaders = r.Header
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatal(err)
		}
		receivedBody = body
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	sender := delivery.NewSender(5 * time.Second)
	del := newTestDelivery(srv.URL, time.Now())

	result := sender.Send(context.Background(), del)

	if result.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", result.StatusCode)
	}
	if result.Error != "" {
		t.Fatalf("unexpected error: %s", result.Error)
	}
	if result.Response != `{"ok":true}` {
		t.Fatalf("unexpected response: %s", result.Response)
	}
	if result.LatencyMs < 0 {
		t.Fatal("latency should be non-negative")
	}

	var payload event.Payload
	if err := json.Unmarshal(receivedBody, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Event != "entry.published" || payload.SpaceID != "space_7" || payload.Collection != "posts" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if payload.EntryID != del.EntryID.String() {
		t.Fatalf("entry_id: got %q, want %q", payload.EntryID, del.EntryID)
	}

	if receivedHeaders.Get("Content-Type") != "application/json" {
		t.Fatal("missing Content-Type")
	}
	if receivedHeaders.Get(delivery.HeaderIdempotencyKey) != del.IdempotencyKey {
		t.Fatal("missing idempotency key header")
	}
	if receivedHeaders.Get(delivery.HeaderEvent) != "entry.published" {
		t.Fatal("missing event header")
	}
	if receivedHeaders.Get(delivery.HeaderDeliveryID) != del.ID.String() {
		t.Fatal("missing delivery id header")
	}

	sig := receivedHeaders.Get(signature.Header)
	if len(sig) != 64 {
		t.Fatalf("signature should be 64 hex chars, got %q", sig)
	}
	if !signature.Verify(receivedBody, testSecret, sig) {
		t.Fatal("signature does not verify against the raw body")
	}
}

func TestSenderNoSecretNoSignature(t *testing.T) {
	var hasSig bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasSig = r.Header[signature.Header]
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	del := newTestDelivery(srv.URL, time.Now())
	del.Secret = ""

	res := delivery.NewSender(time.Second).Send(context.Background(), del)
	if !res.OK() {
		t.Fatalf("unexpected result: %+v", res)
	}
	if hasSig {
		t.Fatal("signature header sent without a secret")
	}
}

func TestSenderNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("maintenance"))
	}))
	defer srv.Close()

	res := delivery.NewSender(time.Second).Send(context.Background(), newTestDelivery(srv.URL, time.Now()))
	if res.OK() {
		t.Fatal("503 reported as OK")
	}
	if res.StatusCode != 503 || res.Response != "maintenance" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestSenderTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	res := delivery.NewSender(50*time.Millisecond).Send(context.Background(), newTestDelivery(srv.URL, time.Now()))
	if res.Error == "" {
		t.Fatal("expected timeout error")
	}
	if res.OK() {
		t.Fatal("timed out request reported as OK")
	}
}

func TestSenderCapsResponseBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(strings.Repeat("x", 4096)))
	}))
	defer srv.Close()

	res := delivery.NewSender(time.Second).Send(context.Background(), newTestDelivery(srv.URL, time.Now()))
	if len(res.Response) != 1024 {
		t.Fatalf("response length = %d, want 1024", len(res.Response))
	}
}

func TestSenderConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	res := delivery.NewSender(time.Second).Send(context.Background(), newTestDelivery(url, time.Now()))
	if res.Error == "" || res.StatusCode != 0 {
		t.Fatalf("expected transport error, got %+v", res)
	}
}
