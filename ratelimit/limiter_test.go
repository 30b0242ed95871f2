package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestAllow_Unlimited(t *testing.T) {
	l := New()
	for i := 0; i < 100; i++ {
		if !l.Allow("https://a.example", 0) {
			t.Fatal("Allow with rate 0 should always succeed")
		}
	}
}

func TestAllow_BurstThenDeny(t *testing.T) {
	l := New()
	key := "https://limited.example"

	if !l.Allow(key, 2) || !l.Allow(key, 2) {
		t.Fatal("bucket should start full")
	}
	if l.Allow(key, 2) {
		t.Fatal("third call should be denied")
	}
}

func TestAllow_Refills(t *testing.T) {
	l := New()
	key := "https://refill.example"

	for i := 0; i < 10; i++ {
		l.Allow(key, 10)
	}
	if l.Allow(key, 10) {
		t.Fatal("should be denied after exhausting the bucket")
	}

	time.Sleep(200 * time.Millisecond)

	if !l.Allow(key, 10) {
		t.Fatal("should be allowed after refill")
	}
}

func TestAllow_KeysIndependent(t *testing.T) {
	l := New()
	l.Allow("https://a.example", 1)

	if !l.Allow("https://b.example", 1) {
		t.Fatal("a different key must have its own bucket")
	}
}

func TestReset(t *testing.T) {
	l := New()
	key := "https://reset.example"
	l.Allow(key, 1)
	l.Reset(key)

	if !l.Allow(key, 1) {
		t.Fatal("Reset should restore a full bucket")
	}
}

func TestWait_ContextCancelled(t *testing.T) {
	l := New()
	key := "https://wait.example"
	l.Allow(key, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx, key, 1); err == nil {
		t.Fatal("Wait should fail when the context ends before a token is available")
	}
}

func TestAllow_Concurrent(t *testing.T) {
	l := New()
	key := "https://concurrent.example"

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow(key, 5) {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed > 6 {
		t.Fatalf("allowed %d calls, want at most the burst plus refill slack", allowed)
	}
}
