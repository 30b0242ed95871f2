// Package config loads the deployment configuration of a Press daemon and
// turns it into press options.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/xraph/press"
	"github.com/xraph/press/delivery"
	"github.com/xraph/press/endpoint"
)

// Config is the full daemon configuration.
type Config struct {
	Log      LogConfig      `koanf:"log"`
	Store    StoreConfig    `koanf:"store"`
	Redis    RedisConfig    `koanf:"redis"`
	Delivery DeliveryConfig `koanf:"delivery"`
	Breaker  BreakerConfig  `koanf:"breaker"`
	Sweep    SweepConfig    `koanf:"sweep"`
	Dedup    DedupConfig    `koanf:"dedup"`
	Cache    CacheConfig    `koanf:"cache"`
	Realtime RealtimeConfig `koanf:"realtime"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Webhooks WebhooksConfig `koanf:"webhooks"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json text"`
}

// StoreConfig selects the persistence backend. The redis driver uses the
// Redis section. The grove SQL and Mongo stores take a caller-owned
// grove.DB and are wired by embedding programs, not by the daemon.
type StoreConfig struct {
	Driver  string `koanf:"driver" validate:"oneof=memory redis"`
	Migrate bool   `koanf:"migrate"`
}

// RedisConfig is the connection shared by the redis store, dedup and cache.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db" validate:"gte=0"`
}

// DeliveryConfig tunes the webhook engine.
type DeliveryConfig struct {
	Concurrency     int             `koanf:"concurrency" validate:"gte=1"`
	PollInterval    time.Duration   `koanf:"poll_interval" validate:"gt=0"`
	BatchSize       int             `koanf:"batch_size" validate:"gte=1"`
	RequestTimeout  time.Duration   `koanf:"request_timeout" validate:"gt=0"`
	MaxAttempts     int             `koanf:"max_attempts" validate:"gte=1"`
	RetrySchedule   []time.Duration `koanf:"retry_schedule" validate:"min=1,dive,gt=0"`
	ShutdownTimeout time.Duration   `koanf:"shutdown_timeout" validate:"gte=0"`
	RateLimit       int             `koanf:"rate_limit" validate:"gte=0"`
	SummaryLimit    int             `koanf:"summary_limit" validate:"gte=0"`
	OnUnpublish     bool            `koanf:"on_unpublish"`
}

// BreakerConfig enables per-URL circuit breaking.
type BreakerConfig struct {
	Enabled          bool          `koanf:"enabled"`
	FailureThreshold uint32        `koanf:"failure_threshold" validate:"required_if=Enabled true"`
	Cooldown         time.Duration `koanf:"cooldown" validate:"gte=0"`
	HalfOpenRequests uint32        `koanf:"half_open_requests"`
}

// SweepConfig drives the scheduled publish and unpublish sweeps.
type SweepConfig struct {
	Interval time.Duration `koanf:"interval" validate:"gt=0"`
	Batch    int           `koanf:"batch" validate:"gte=0"`
}

// DedupConfig selects where delivered idempotency keys are remembered.
type DedupConfig struct {
	Driver string        `koanf:"driver" validate:"oneof=memory redis badger"`
	TTL    time.Duration `koanf:"ttl" validate:"gt=0"`
	Path   string        `koanf:"path" validate:"required_if=Driver badger"`
}

// CacheConfig selects the cache invalidators run on publish.
type CacheConfig struct {
	LRUSize       int           `koanf:"lru_size" validate:"gte=0"`
	Redis         bool          `koanf:"redis"`
	CollectionTTL time.Duration `koanf:"collection_ttl" validate:"gte=0"`
}

// RealtimeConfig selects the realtime broadcasters.
type RealtimeConfig struct {
	WebsocketAddr string   `koanf:"websocket_addr"`
	WebsocketPath string   `koanf:"websocket_path" validate:"startswith=/"`
	NATSURL       string   `koanf:"nats_url"`
	NATSPrefix    string   `koanf:"nats_prefix"`
	KafkaBrokers  []string `koanf:"kafka_brokers" validate:"dive,hostname_port"`
	KafkaTopic    string   `koanf:"kafka_topic"`
}

// MetricsConfig exposes Prometheus metrics over HTTP.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr" validate:"required_if=Enabled true"`
	Tracing bool   `koanf:"tracing"`
}

// WebhooksConfig lists static targets that receive every event.
type WebhooksConfig struct {
	Targets []TargetConfig `koanf:"targets" validate:"dive"`
}

// TargetConfig is one static webhook target.
type TargetConfig struct {
	URL       string `koanf:"url" validate:"required,http_url"`
	Secret    string `koanf:"secret"`
	RateLimit int    `koanf:"rate_limit" validate:"gte=0"`
}

// Default returns the configuration applied before any file or environment.
func Default() *Config {
	pc := press.DefaultConfig()
	return &Config{
		Log: LogConfig{Level: "info", Format: "json"},
		Store: StoreConfig{
			Driver:  "memory",
			Migrate: true,
		},
		Redis: RedisConfig{Addr: "127.0.0.1:6379"},
		Delivery: DeliveryConfig{
			Concurrency:     pc.Concurrency,
			PollInterval:    pc.PollInterval,
			BatchSize:       pc.BatchSize,
			RequestTimeout:  pc.RequestTimeout,
			MaxAttempts:     pc.MaxAttempts,
			RetrySchedule:   pc.RetrySchedule,
			ShutdownTimeout: pc.ShutdownTimeout,
			SummaryLimit:    pc.SummaryLimit,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			Cooldown:         30 * time.Second,
			HalfOpenRequests: 1,
		},
		Sweep: SweepConfig{Interval: time.Minute},
		Dedup: DedupConfig{
			Driver: "memory",
			TTL:    pc.DedupTTL,
		},
		Cache: CacheConfig{CollectionTTL: pc.CacheTTL},
		Realtime: RealtimeConfig{
			WebsocketPath: "/ws",
		},
		Metrics: MetricsConfig{Addr: ":9090"},
	}
}

var validate = validator.New()

// Validate checks field constraints and reports every violation at once.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		if c.NeedsRedis() && c.Redis.Addr == "" {
			return errors.New("press/config: invalid configuration: redis.addr is required by the selected drivers")
		}
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("press/config: invalid configuration: %s", strings.Join(msgs, "; "))
}

// NeedsRedis reports whether any selected component talks to Redis.
func (c *Config) NeedsRedis() bool {
	return c.Store.Driver == "redis" || c.Dedup.Driver == "redis" || c.Cache.Redis
}

// PressConfig returns the library configuration.
func (c *Config) PressConfig() press.Config {
	pc := press.DefaultConfig()
	pc.Concurrency = c.Delivery.Concurrency
	pc.PollInterval = c.Delivery.PollInterval
	pc.BatchSize = c.Delivery.BatchSize
	pc.RequestTimeout = c.Delivery.RequestTimeout
	pc.MaxAttempts = c.Delivery.MaxAttempts
	pc.RetrySchedule = c.Delivery.RetrySchedule
	pc.ShutdownTimeout = c.Delivery.ShutdownTimeout
	pc.RateLimit = c.Delivery.RateLimit
	pc.SummaryLimit = c.Delivery.SummaryLimit
	pc.WebhooksOnUnpublish = c.Delivery.OnUnpublish
	pc.SweepBatch = c.Sweep.Batch
	pc.DedupTTL = c.Dedup.TTL
	pc.CacheTTL = c.Cache.CollectionTTL
	return pc
}

// ToOptions converts the settings that need no live connection into press
// options. Stores, dedup backends, caches and broadcasters are opened by the
// caller.
func (c *Config) ToOptions() []press.Option {
	opts := []press.Option{press.WithConfig(c.PressConfig())}

	if c.Breaker.Enabled {
		opts = append(opts, press.WithCircuitBreaker(delivery.BreakerConfig{
			FailureThreshold: c.Breaker.FailureThreshold,
			Cooldown:         c.Breaker.Cooldown,
			HalfOpenRequests: c.Breaker.HalfOpenRequests,
		}))
	}

	if len(c.Webhooks.Targets) > 0 {
		targets := make([]endpoint.Target, 0, len(c.Webhooks.Targets))
		for _, t := range c.Webhooks.Targets {
			targets = append(targets, endpoint.Target{
				URL:       t.URL,
				Secret:    t.Secret,
				RateLimit: t.RateLimit,
			})
		}
		opts = append(opts, press.WithStaticTargets(targets...))
	}

	return opts
}
