// Command pressd runs the publishing pipeline as a long-lived daemon: the
// webhook delivery engine, the scheduled publish and unpublish sweeps, the
// realtime websocket endpoint and Prometheus metrics, under one supervisor.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/xraph/press/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "pressd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		check      bool
	)

	flags := pflag.NewFlagSet("pressd", pflag.ContinueOnError)
	flags.StringVarP(&configPath, "config", "c", "", "path to the YAML config file (default: $"+config.PathEnvVar+" or ./press.yaml)")
	flags.BoolVar(&check, "check", false, "validate the configuration and exit")

	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if args := flags.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if check {
		fmt.Fprintln(os.Stdout, "configuration ok")
		return nil
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := newDaemon(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer d.close()

	return d.serve(ctx)
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
