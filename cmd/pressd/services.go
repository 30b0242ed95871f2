package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// sweepRunner is the part of press.Press the sweeper drives.
type sweepRunner interface {
	PublishScheduled(ctx context.Context) (int, error)
	UnpublishScheduled(ctx context.Context) (int, error)
}

// sweeper runs both scheduled sweeps once at start and then every interval.
type sweeper struct {
	runner   sweepRunner
	interval time.Duration
	logger   *slog.Logger
}

func (s *sweeper) String() string { return "sweeper" }

// Serve implements suture.Service.
func (s *sweeper) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.sweep(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *sweeper) sweep(ctx context.Context) {
	if n, err := s.runner.PublishScheduled(ctx); err != nil {
		s.logger.ErrorContext(ctx, "publish sweep failed", "error", err)
	} else if n > 0 {
		s.logger.InfoContext(ctx, "published scheduled entries", "count", n)
	}

	if n, err := s.runner.UnpublishScheduled(ctx); err != nil {
		s.logger.ErrorContext(ctx, "unpublish sweep failed", "error", err)
	} else if n > 0 {
		s.logger.InfoContext(ctx, "unpublished expired entries", "count", n)
	}
}

// httpService serves handler on addr. Each Serve call builds a fresh server
// so the supervisor can restart it.
type httpService struct {
	name    string
	addr    string
	handler http.Handler
	logger  *slog.Logger
}

func (h *httpService) String() string { return h.name + " http" }

// Serve implements suture.Service.
func (h *httpService) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              h.addr,
		Handler:           h.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	h.logger.InfoContext(ctx, "http listener started", "listener", h.name, "addr", h.addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("%s listener: %w", h.name, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			h.logger.WarnContext(ctx, "http shutdown failed", "listener", h.name, "error", err)
		}
		return ctx.Err()
	}
}
