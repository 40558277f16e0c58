// Package config defines the routing host configuration and its loader.
// Values resolve in three layers: built-in defaults, then a YAML file,
// then environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the complete host configuration.
type Config struct {
	// Server holds the HTTP surface settings.
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Discovery controls the capability card fan-out.
	Discovery DiscoveryConfig `yaml:"discovery" env:"DISCOVERY"`

	// Routing tunes the keyword selector.
	Routing RoutingConfig `yaml:"routing" env:"ROUTING"`

	// Dispatch tunes specialist calls and the retry policy.
	Dispatch DispatchConfig `yaml:"dispatch" env:"DISPATCH"`

	// Session selects and tunes the conversation store.
	Session SessionConfig `yaml:"session" env:"SESSION"`

	// Host holds façade-level behavior.
	Host HostConfig `yaml:"host" env:"HOST"`

	// Log configures structured logging.
	Log LogConfig `yaml:"log" env:"LOG"`
}

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	// Listen address, host:port.
	Addr string `yaml:"addr" env:"ADDR"`
	// Read timeout for incoming requests.
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// Write timeout for responses.
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// Grace period for draining on shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// DiscoveryConfig controls the capability card fan-out.
type DiscoveryConfig struct {
	// Endpoints are the specialist base URLs probed at startup.
	Endpoints []string `yaml:"endpoints" env:"ENDPOINTS"`
	// Per-endpoint card fetch timeout.
	EndpointTimeout time.Duration `yaml:"endpoint_timeout" env:"ENDPOINT_TIMEOUT"`
	// Budget bounds one whole discovery pass.
	Budget time.Duration `yaml:"budget" env:"BUDGET"`
	// MaxConcurrency caps parallel card fetches.
	MaxConcurrency int `yaml:"max_concurrency" env:"MAX_CONCURRENCY"`
}

// RoutingConfig tunes the keyword selector.
type RoutingConfig struct {
	// MinScore is the minimum raw score to route instead of falling back.
	MinScore float64 `yaml:"min_score" env:"MIN_SCORE"`
	// DescriptionWeight is the per-token weight of description overlap.
	DescriptionWeight float64 `yaml:"description_weight" env:"DESCRIPTION_WEIGHT"`
	// MaxAlternates caps the alternates carried on a decision.
	MaxAlternates int `yaml:"max_alternates" env:"MAX_ALTERNATES"`
}

// DispatchConfig tunes specialist calls.
type DispatchConfig struct {
	// CallTimeout bounds a single specialist attempt.
	CallTimeout time.Duration `yaml:"call_timeout" env:"CALL_TIMEOUT"`
	// RetryDelay is the pause before the single transport retry.
	RetryDelay time.Duration `yaml:"retry_delay" env:"RETRY_DELAY"`
	// RatePerSecond throttles outbound calls, 0 disables.
	RatePerSecond float64 `yaml:"rate_per_second" env:"RATE_PER_SECOND"`
	// RateBurst is the limiter burst size.
	RateBurst int `yaml:"rate_burst" env:"RATE_BURST"`
}

// SessionConfig selects the conversation store backend.
type SessionConfig struct {
	// Backend is one of memory, redis, hybrid.
	Backend string `yaml:"backend" env:"BACKEND"`
	// TTL expires idle sessions in Redis.
	TTL time.Duration `yaml:"ttl" env:"TTL"`
	// Redis connection settings.
	Redis RedisConfig `yaml:"redis" env:"REDIS"`
	// ArchivePath is the SQLite file for the hybrid cold tier.
	ArchivePath string `yaml:"archive_path" env:"ARCHIVE_PATH"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr         string `yaml:"addr" env:"ADDR"`
	Password     string `yaml:"password" env:"PASSWORD"`
	DB           int    `yaml:"db" env:"DB"`
	PoolSize     int    `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int    `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
}

// HostConfig holds façade-level behavior.
type HostConfig struct {
	// FallbackResponse is returned when no specialist matches.
	FallbackResponse string `yaml:"fallback_response" env:"FALLBACK_RESPONSE"`
	// TryAlternateOnUnreachable enables failover to the router's alternate.
	TryAlternateOnUnreachable bool `yaml:"try_alternate_on_unreachable" env:"TRY_ALTERNATE_ON_UNREACHABLE"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" env:"LEVEL"`
	// Format is json or console.
	Format string `yaml:"format" env:"FORMAT"`
	// EnableCaller annotates entries with the call site.
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Discovery: DiscoveryConfig{
			EndpointTimeout: 5 * time.Second,
			Budget:          15 * time.Second,
			MaxConcurrency:  8,
		},
		Routing: RoutingConfig{
			MinScore:          1.0,
			DescriptionWeight: 0.25,
			MaxAlternates:     2,
		},
		Dispatch: DispatchConfig{
			CallTimeout:   30 * time.Second,
			RetryDelay:    250 * time.Millisecond,
			RatePerSecond: 100,
			RateBurst:     200,
		},
		Session: SessionConfig{
			Backend: "memory",
			TTL:     24 * time.Hour,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				PoolSize: 10,
			},
			ArchivePath: "sessions.db",
		},
		Host: HostConfig{
			FallbackResponse:          "No specialist is available for that request right now.",
			TryAlternateOnUnreachable: true,
		},
		Log: LogConfig{
			Level:        "info",
			Format:       "json",
			EnableCaller: true,
		},
	}
}

// Validate reports structural problems a running host cannot tolerate.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Addr == "" {
		errs = append(errs, "server.addr must not be empty")
	}
	if c.Discovery.EndpointTimeout <= 0 {
		errs = append(errs, "discovery.endpoint_timeout must be positive")
	}
	if c.Discovery.Budget < c.Discovery.EndpointTimeout {
		errs = append(errs, "discovery.budget must cover at least one endpoint timeout")
	}
	if c.Discovery.MaxConcurrency <= 0 {
		errs = append(errs, "discovery.max_concurrency must be positive")
	}
	if c.Routing.MinScore <= 0 {
		errs = append(errs, "routing.min_score must be positive")
	}
	if c.Dispatch.CallTimeout <= 0 {
		errs = append(errs, "dispatch.call_timeout must be positive")
	}
	switch c.Session.Backend {
	case "memory", "redis", "hybrid":
	default:
		errs = append(errs, fmt.Sprintf("session.backend %q is not one of memory, redis, hybrid", c.Session.Backend))
	}
	if (c.Session.Backend == "redis" || c.Session.Backend == "hybrid") && c.Session.Redis.Addr == "" {
		errs = append(errs, "session.redis.addr required for the "+c.Session.Backend+" backend")
	}
	if c.Session.Backend == "hybrid" && c.Session.ArchivePath == "" {
		errs = append(errs, "session.archive_path required for the hybrid backend")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation: %s", strings.Join(errs, "; "))
	}
	return nil
}
