// Package a2ahost provides a top-level convenience entry point for
// assembling a routing host from configuration with minimal boilerplate.
//
// Usage:
//
//	import "github.com/a2ahost/a2ahost"
//
//	h, cleanup, err := a2ahost.New(config.Default(), logger)
//	defer cleanup()
//	report, err := h.DiscoverAgents(ctx, endpoints)
//
// Callers who need to swap a collaborator (a custom selector, a test
// session store) use the With options; everything else is derived from
// the configuration.
package a2ahost

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/a2ahost/a2ahost/config"
	"github.com/a2ahost/a2ahost/discovery"
	"github.com/a2ahost/a2ahost/dispatch"
	"github.com/a2ahost/a2ahost/host"
	"github.com/a2ahost/a2ahost/internal/metrics"
	"github.com/a2ahost/a2ahost/protocol/a2a"
	"github.com/a2ahost/a2ahost/routing"
	"github.com/a2ahost/a2ahost/session"
)

// Option overrides one collaborator of the assembled host.
type Option func(*builder)

type builder struct {
	selector   routing.Selector
	store      session.Store
	registerer prometheus.Registerer
}

// WithSelector replaces the keyword selector.
func WithSelector(s routing.Selector) Option {
	return func(b *builder) { b.selector = s }
}

// WithSessionStore replaces the configured session store.
func WithSessionStore(s session.Store) Option {
	return func(b *builder) { b.store = s }
}

// WithRegisterer enables metrics on the given Prometheus registerer.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(b *builder) { b.registerer = r }
}

// New assembles a routing host from cfg. The returned cleanup function
// releases backend connections and must be called on shutdown.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*host.Host, func(), error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &builder{}
	for _, opt := range opts {
		opt(b)
	}

	var collector *metrics.Collector
	if b.registerer != nil {
		collector = metrics.NewCollector("a2ahost", b.registerer)
	}

	client := a2a.NewHTTPClient(cfg.Dispatch.CallTimeout)

	registry := discovery.NewRegistry(logger)
	fetcher := discovery.NewFetcher(client, registry, discovery.FetcherConfig{
		EndpointTimeout: cfg.Discovery.EndpointTimeout,
		Budget:          cfg.Discovery.Budget,
		MaxConcurrency:  cfg.Discovery.MaxConcurrency,
	}, logger)

	selector := b.selector
	if selector == nil {
		selector = routing.NewKeywordSelector(routing.KeywordConfig{
			MinScore:             cfg.Routing.MinScore,
			DescriptionWeight:    cfg.Routing.DescriptionWeight,
			MaxAlternates:        cfg.Routing.MaxAlternates,
			IncludeUnknownHealth: true,
		}, logger)
	}

	dispatcher := dispatch.New(client, dispatch.Config{
		CallTimeout:   cfg.Dispatch.CallTimeout,
		RetryDelay:    cfg.Dispatch.RetryDelay,
		RatePerSecond: cfg.Dispatch.RatePerSecond,
		RateBurst:     cfg.Dispatch.RateBurst,
	}, collector, logger)

	store := b.store
	cleanup := func() {}
	if store == nil {
		var err error
		store, cleanup, err = buildStore(cfg.Session, logger)
		if err != nil {
			return nil, nil, err
		}
	}

	h := host.New(
		registry,
		fetcher,
		selector,
		dispatcher,
		session.NewManager(store, collector, logger),
		collector,
		host.Config{
			FallbackResponse:          cfg.Host.FallbackResponse,
			TryAlternateOnUnreachable: cfg.Host.TryAlternateOnUnreachable,
		},
		logger,
	)
	return h, cleanup, nil
}

// buildStore constructs the configured session backend. The hybrid
// backend pairs a Redis hot tier with a SQLite archive.
func buildStore(cfg config.SessionConfig, logger *zap.Logger) (session.Store, func(), error) {
	switch cfg.Backend {
	case "memory":
		return session.NewInMemoryStore(), func() {}, nil

	case "redis":
		rdb := newRedisClient(cfg.Redis)
		return session.NewRedisStore(rdb, cfg.TTL, logger), func() { _ = rdb.Close() }, nil

	case "hybrid":
		rdb := newRedisClient(cfg.Redis)
		hot := session.NewRedisStore(rdb, cfg.TTL, logger)

		db, err := gorm.Open(sqlite.Open(cfg.ArchivePath), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("open session archive: %w", err)
		}
		cold, err := session.NewArchiveStore(db)
		if err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("migrate session archive: %w", err)
		}

		hybrid := session.NewHybridStore(hot, cold, logger)
		hybrid.Start()
		cleanup := func() {
			hybrid.Close()
			_ = rdb.Close()
			if sqlDB, dbErr := db.DB(); dbErr == nil {
				_ = sqlDB.Close()
			}
		}
		return hybrid, cleanup, nil

	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}

func newRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  5 * time.Second,
	})
}
