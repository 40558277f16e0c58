package discovery

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/a2ahost/a2ahost/protocol/a2a"
)

// FetcherConfig bounds how long and how wide discovery may run.
type FetcherConfig struct {
	// EndpointTimeout is the per-endpoint card fetch timeout.
	EndpointTimeout time.Duration `yaml:"endpoint_timeout"`

	// Budget caps the total wall time of one discovery pass. A slow or dead
	// endpoint must not delay discovery of the healthy ones beyond this.
	Budget time.Duration `yaml:"budget"`

	// MaxConcurrency bounds the discovery fan-out.
	MaxConcurrency int `yaml:"max_concurrency"`
}

// DefaultFetcherConfig returns the discovery defaults.
func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		EndpointTimeout: 5 * time.Second,
		Budget:          15 * time.Second,
		MaxConcurrency:  8,
	}
}

// Fetcher retrieves capability cards and feeds them into a registry.
type Fetcher struct {
	client   a2a.Client
	registry *Registry
	config   FetcherConfig
	logger   *zap.Logger
}

// NewFetcher creates a card fetcher bound to a registry.
func NewFetcher(client a2a.Client, registry *Registry, config FetcherConfig, logger *zap.Logger) *Fetcher {
	if config.EndpointTimeout <= 0 {
		config.EndpointTimeout = DefaultFetcherConfig().EndpointTimeout
	}
	if config.Budget <= 0 {
		config.Budget = DefaultFetcherConfig().Budget
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = DefaultFetcherConfig().MaxConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		client:   client,
		registry: registry,
		config:   config,
		logger:   logger.With(zap.String("component", "card_fetcher")),
	}
}

// Discover fetches cards from all endpoints concurrently and upserts the
// successes into the registry. One endpoint failing, timing out, or serving
// a malformed card never aborts the rest: failures are recorded and the
// pass continues. The whole pass is bounded by the configured budget.
func (f *Fetcher) Discover(ctx context.Context, endpoints []string) *Report {
	ctx, cancel := context.WithTimeout(ctx, f.config.Budget)
	defer cancel()

	report := &Report{Failed: make(map[string]error)}
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.config.MaxConcurrency)
	for _, endpoint := range endpoints {
		endpoint := endpoint
		g.Go(func() error {
			fetchCtx, fetchCancel := context.WithTimeout(ctx, f.config.EndpointTimeout)
			defer fetchCancel()

			card, err := f.client.FetchCard(fetchCtx, endpoint)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				f.registry.RecordFailure(endpoint, err)
				report.Failed[endpoint] = err
				return nil // partial registries are valid
			}
			f.registry.Upsert(*card)
			report.Discovered = append(report.Discovered, card.AgentID)
			return nil
		})
	}
	_ = g.Wait()

	f.logger.Info("discovery pass finished",
		zap.Int("endpoints", len(endpoints)),
		zap.Int("discovered", len(report.Discovered)),
		zap.Int("failed", len(report.Failed)),
	)
	return report
}

// Reprobe retries every endpoint whose last discovery attempt failed.
// Called once during host initialization; bounded by the same budget.
func (f *Fetcher) Reprobe(ctx context.Context) *Report {
	failed := f.registry.FailedEndpoints()
	if len(failed) == 0 {
		return &Report{Failed: map[string]error{}}
	}
	f.logger.Info("re-probing failed endpoints", zap.Int("count", len(failed)))
	return f.Discover(ctx, failed)
}
