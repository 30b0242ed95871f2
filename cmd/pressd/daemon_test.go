package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/press/config"
	"github.com/xraph/press/entry"
	"github.com/xraph/press/tenant"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRunner struct {
	publish   atomic.Int32
	unpublish atomic.Int32
	err       error
}

func (f *fakeRunner) PublishScheduled(context.Context) (int, error) {
	f.publish.Add(1)
	return 1, f.err
}

func (f *fakeRunner) UnpublishScheduled(context.Context) (int, error) {
	f.unpublish.Add(1)
	return 0, f.err
}

func TestSweeper_RunsImmediatelyAndOnTick(t *testing.T) {
	r := &fakeRunner{}
	s := &sweeper{runner: r, interval: 10 * time.Millisecond, logger: discard()}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	require.Eventually(t, func() bool { return r.publish.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	assert.GreaterOrEqual(t, r.unpublish.Load(), int32(3))
}

func TestSweeper_ErrorsDoNotStopLoop(t *testing.T) {
	r := &fakeRunner{err: errors.New("store down")}
	s := &sweeper{runner: r, interval: 5 * time.Millisecond, logger: discard()}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_ = s.Serve(ctx)
	assert.Greater(t, r.publish.Load(), int32(1))
}

func TestDaemon_MemoryPublishesScheduledEntries(t *testing.T) {
	cfg := config.Default()
	cfg.Sweep.Interval = 10 * time.Millisecond
	cfg.Delivery.PollInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d, err := newDaemon(ctx, cfg, discard())
	require.NoError(t, err)
	defer d.close()

	tc := tenant.Context{SpaceID: "space_a", ActorID: "editor"}
	e, err := d.press.CreateEntry(ctx, tc, entry.Input{CollectionID: "posts", Title: "Hi", Slug: "hi"})
	require.NoError(t, err)
	_, err = d.press.Schedule(ctx, tc, e.ID, time.Now().Add(30*time.Millisecond))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- d.serve(ctx) }()

	require.Eventually(t, func() bool {
		got, err := d.press.GetEntry(ctx, tc, e.ID)
		return err == nil && got.Status == entry.StatusPublished
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestNewLogger_Format(t *testing.T) {
	assert.NotNil(t, newLogger(config.LogConfig{Level: "debug", Format: "text"}))
	assert.NotNil(t, newLogger(config.LogConfig{Level: "info", Format: "json"}))
}
