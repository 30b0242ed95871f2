package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/xraph/press"
	"github.com/xraph/press/cache"
	"github.com/xraph/press/config"
	"github.com/xraph/press/dedup"
	"github.com/xraph/press/observability"
	"github.com/xraph/press/realtime"
	"github.com/xraph/press/store"
	"github.com/xraph/press/store/memory"
	redisstore "github.com/xraph/press/store/redis"
)

// daemon owns every long-lived resource of one pressd process.
type daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	press    *press.Press
	store    store.Store
	hub      *realtime.Hub
	registry *prometheus.Registry
	metrics  *observability.Metrics

	// closers run in reverse order on shutdown.
	closers []func() error
}

func newDaemon(ctx context.Context, cfg *config.Config, logger *slog.Logger) (d *daemon, err error) {
	d = &daemon{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			d.close()
		}
	}()

	opts := append(cfg.ToOptions(), press.WithLogger(logger))

	var rdb goredis.UniversalClient
	if cfg.NeedsRedis() {
		rdb = goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	switch cfg.Store.Driver {
	case "redis":
		// The store closes the shared client.
		d.store = redisstore.NewFromClient(rdb)
	default:
		d.store = memory.New()
		if rdb != nil {
			d.onClose(rdb.Close)
		}
	}
	d.onClose(d.store.Close)

	if err := d.store.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping %s store: %w", cfg.Store.Driver, err)
	}
	if cfg.Store.Migrate {
		if err := d.store.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate %s store: %w", cfg.Store.Driver, err)
		}
	}
	opts = append(opts, press.WithStore(d.store))

	dd, err := d.openDedup(rdb)
	if err != nil {
		return nil, err
	}
	if dd != nil {
		opts = append(opts, press.WithDedup(dd))
	}

	if cfg.Cache.LRUSize > 0 {
		lru, err := cache.NewLRU(cfg.Cache.LRUSize)
		if err != nil {
			return nil, err
		}
		opts = append(opts, press.WithCache(lru))
	}
	if cfg.Cache.Redis {
		opts = append(opts, press.WithCache(cache.NewRedis(rdb)))
	}

	broadcasters, err := d.openRealtime()
	if err != nil {
		return nil, err
	}
	for _, b := range broadcasters {
		opts = append(opts, press.WithRealtime(b))
	}

	if cfg.Metrics.Enabled {
		d.registry = prometheus.NewRegistry()
		d.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		d.metrics = observability.NewMetrics(d.registry)
		opts = append(opts, press.WithMetrics(d.metrics))
	}
	if cfg.Metrics.Tracing {
		opts = append(opts, press.WithTracer(observability.NewTracer()))
	}

	d.press, err = press.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create press: %w", err)
	}
	return d, nil
}

func (d *daemon) openDedup(rdb goredis.UniversalClient) (dedup.Store, error) {
	switch d.cfg.Dedup.Driver {
	case "redis":
		return dedup.NewRedis(rdb), nil
	case "badger":
		db, err := dedup.OpenBadger(d.cfg.Dedup.Path)
		if err != nil {
			return nil, err
		}
		d.onClose(db.Close)
		return dedup.NewBadger(db), nil
	default:
		return nil, nil
	}
}

func (d *daemon) openRealtime() ([]realtime.Broadcaster, error) {
	rc := d.cfg.Realtime
	var out []realtime.Broadcaster

	if rc.WebsocketAddr != "" {
		d.hub = realtime.NewHub(nil, d.logger)
		out = append(out, d.hub)
	}
	if rc.NATSURL != "" {
		n, err := realtime.DialNATS(rc.NATSURL, rc.NATSPrefix)
		if err != nil {
			return nil, err
		}
		d.onClose(n.Close)
		out = append(out, n)
	}
	if len(rc.KafkaBrokers) > 0 {
		k, err := realtime.NewKafka(rc.KafkaBrokers, rc.KafkaTopic)
		if err != nil {
			return nil, err
		}
		d.onClose(k.Close)
		out = append(out, k)
	}
	return out, nil
}

func (d *daemon) onClose(fn func() error) {
	d.closers = append(d.closers, fn)
}

func (d *daemon) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			d.logger.Warn("close failed", "error", err)
		}
	}
	d.closers = nil
}

// supervisor builds the service tree: the delivery engine and sweeper
// always run; the websocket hub and the HTTP listeners run when configured.
func (d *daemon) supervisor() *suture.Supervisor {
	hook := &sutureslog.Handler{Logger: d.logger}

	root := suture.New("pressd", suture.Spec{
		EventHook:        hook.MustHook(),
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          d.cfg.Delivery.ShutdownTimeout,
	})

	root.Add(d.press.Engine())
	root.Add(&sweeper{
		runner:   d.press,
		interval: d.cfg.Sweep.Interval,
		logger:   d.logger,
	})

	if d.hub != nil {
		root.Add(d.hub)
		mux := http.NewServeMux()
		mux.Handle(d.cfg.Realtime.WebsocketPath, d.hub)
		root.Add(&httpService{name: "websocket", addr: d.cfg.Realtime.WebsocketAddr, handler: mux, logger: d.logger})
	}

	if d.registry != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{}))
		root.Add(&httpService{name: "metrics", addr: d.cfg.Metrics.Addr, handler: mux, logger: d.logger})
	}

	return root
}

// serve runs the supervisor until ctx ends.
func (d *daemon) serve(ctx context.Context) error {
	if d.metrics != nil {
		if n, err := d.store.CountPending(ctx); err == nil {
			d.metrics.SetPending(n)
		}
	}

	d.logger.InfoContext(ctx, "pressd started",
		"store", d.cfg.Store.Driver,
		"dedup", d.cfg.Dedup.Driver,
		"sweep_interval", d.cfg.Sweep.Interval,
	)

	err := d.supervisor().Serve(ctx)
	if errors.Is(err, context.Canceled) {
		d.logger.Info("pressd stopped")
		return nil
	}
	return err
}
