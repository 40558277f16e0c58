// Package host composes discovery, routing, dispatch, and session state
// into the A2A routing host: the single façade callers use to discover
// specialist agents and route user messages to them.
package host

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/a2ahost/a2ahost/discovery"
	"github.com/a2ahost/a2ahost/dispatch"
	"github.com/a2ahost/a2ahost/internal/metrics"
	"github.com/a2ahost/a2ahost/protocol/a2a"
	"github.com/a2ahost/a2ahost/routing"
	"github.com/a2ahost/a2ahost/session"
)

// lifecycle states of the host.
type state int32

const (
	stateUninitialized state = iota
	stateDiscovering
	stateReady
)

// Request is one incoming user message with its propagated context. It is
// created per call and never persisted. An empty SessionID makes the turn
// ephemeral: no history is loaded or saved.
type Request struct {
	Message   string
	SessionID string
	UserID    string
	AuthToken string
}

// Config tunes host behavior.
type Config struct {
	// FallbackResponse is returned when no specialist matches the message.
	FallbackResponse string `yaml:"fallback_response"`

	// TryAlternateOnUnreachable dispatches to the router's best alternate
	// when the primary specialist is unreachable.
	TryAlternateOnUnreachable bool `yaml:"try_alternate_on_unreachable"`
}

// DefaultConfig returns the host defaults.
func DefaultConfig() Config {
	return Config{
		FallbackResponse:          "No specialist is available for that request right now.",
		TryAlternateOnUnreachable: true,
	}
}

// Host is the routing host façade. All methods are safe for concurrent
// use; calls for different sessions proceed fully in parallel, while calls
// sharing a session id serialize their conversation update.
type Host struct {
	registry   *discovery.Registry
	fetcher    *discovery.Fetcher
	selector   routing.Selector
	dispatcher *dispatch.Dispatcher
	sessions   *session.Manager
	collector  *metrics.Collector
	config     Config
	logger     *zap.Logger
	tracer     trace.Tracer

	mu    sync.Mutex
	state state
}

// New assembles a host from its collaborators. The collector may be nil.
func New(
	registry *discovery.Registry,
	fetcher *discovery.Fetcher,
	selector routing.Selector,
	dispatcher *dispatch.Dispatcher,
	sessions *session.Manager,
	collector *metrics.Collector,
	config Config,
	logger *zap.Logger,
) *Host {
	if config.FallbackResponse == "" {
		config.FallbackResponse = DefaultConfig().FallbackResponse
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Host{
		registry:   registry,
		fetcher:    fetcher,
		selector:   selector,
		dispatcher: dispatcher,
		sessions:   sessions,
		collector:  collector,
		config:     config,
		logger:     logger.With(zap.String("component", "routing_host")),
		tracer:     otel.Tracer("a2ahost/host"),
	}
}

// DiscoverAgents populates the registry from the given endpoints. The first
// call transitions Uninitialized -> Discovering -> Ready; later calls
// refresh the registry in place without leaving Ready, so in-flight
// requests keep being served from the previous snapshot. A partially
// failed pass still yields a Ready host: specialists deploy independently
// and partial registries are expected.
func (h *Host) DiscoverAgents(ctx context.Context, endpoints []string) (*discovery.Report, error) {
	h.mu.Lock()
	initial := h.state == stateUninitialized
	if initial {
		h.state = stateDiscovering
	}
	h.mu.Unlock()

	start := time.Now()
	report := h.fetcher.Discover(ctx, endpoints)

	if h.collector != nil {
		for range report.Discovered {
			h.collector.RecordDiscovery("ok")
		}
		for range report.Failed {
			h.collector.RecordDiscovery("failed")
		}
		h.collector.RecordDiscoveryPass(time.Since(start), h.registry.Len())
	}

	if initial {
		h.mu.Lock()
		h.state = stateReady
		h.mu.Unlock()
	}

	h.logger.Info("host ready",
		zap.Int("agents", h.registry.Len()),
		zap.Int("failed_endpoints", len(report.Failed)),
	)
	return report, nil
}

// Initialize warms the registry once after discovery by re-probing the
// endpoints that failed, bounded by the discovery budget. Calling it
// before DiscoverAgents is a programming error.
func (h *Host) Initialize(ctx context.Context) error {
	if !h.ready() {
		return ErrNotInitialized
	}
	report := h.fetcher.Reprobe(ctx)
	if len(report.Discovered) > 0 {
		h.logger.Info("initialization recovered endpoints", zap.Strings("agents", report.Discovered))
	}
	return nil
}

// ProcessUserMessage routes one user message to the best-matching
// specialist and returns its response text. Only valid once the host is
// Ready; earlier calls fail fast with ErrNotInitialized. A no-match
// outcome returns the configured fallback response with a nil error; all
// other failures return a typed *Failure.
func (h *Host) ProcessUserMessage(ctx context.Context, req Request) (string, error) {
	if !h.ready() {
		return "", ErrNotInitialized
	}

	ctx, span := h.tracer.Start(ctx, "host.process_user_message",
		trace.WithAttributes(attribute.String("a2a.session_id", req.SessionID)))
	defer span.End()

	// Same-session turns serialize their load-update-save; everything else
	// runs lock-free.
	var prior []session.Turn
	if req.SessionID != "" {
		unlock := h.sessions.LockSession(req.SessionID)
		defer unlock()
		prior = h.sessions.Load(ctx, req.SessionID, req.UserID)
	}

	decision := h.selector.Select(ctx, req.Message, h.registry.Snapshot())
	if h.collector != nil {
		h.collector.RecordRouting(decision.TargetAgentID)
	}

	if decision.Fallback {
		h.logger.Info("no matching specialist",
			zap.String("session_id", req.SessionID),
			zap.String("reason", decision.Reason),
		)
		h.saveTurns(ctx, req, prior, h.config.FallbackResponse)
		return h.config.FallbackResponse, nil
	}

	result := h.dispatchWithAlternate(ctx, decision, req)
	if !result.Success {
		return "", h.toFailure(result)
	}

	h.saveTurns(ctx, req, prior, result.ResponseText)
	return result.ResponseText, nil
}

// dispatchWithAlternate sends to the routed specialist, falling over to
// the router's best alternate when the primary is unreachable. Application
// errors are terminal on the first specialist that produced them.
func (h *Host) dispatchWithAlternate(ctx context.Context, decision routing.Decision, req Request) dispatch.Result {
	call := a2a.CallContext{SessionID: req.SessionID, UserID: req.UserID, AuthToken: req.AuthToken}

	result := h.dispatcher.Dispatch(ctx,
		dispatch.Target{AgentID: decision.TargetAgentID, Endpoint: decision.Endpoint},
		req.Message, call)
	if result.Success || result.ErrorKind != dispatch.ErrorKindUnreachable {
		return result
	}

	// The primary did not answer; remember that for the next routing pass.
	if err := h.registry.SetHealth(decision.TargetAgentID, discovery.HealthUnreachable); err != nil {
		h.logger.Warn("could not record unreachable specialist", zap.Error(err))
	}

	if !h.config.TryAlternateOnUnreachable || len(decision.Alternates) == 0 {
		return result
	}

	alt := decision.Alternates[0]
	h.logger.Info("primary specialist unreachable, trying alternate",
		zap.String("primary", decision.TargetAgentID),
		zap.String("alternate", alt.AgentID),
	)
	altResult := h.dispatcher.Dispatch(ctx,
		dispatch.Target{AgentID: alt.AgentID, Endpoint: alt.Endpoint},
		req.Message, call)
	if !altResult.Success && altResult.ErrorKind == dispatch.ErrorKindUnreachable {
		if err := h.registry.SetHealth(alt.AgentID, discovery.HealthUnreachable); err != nil {
			h.logger.Warn("could not record unreachable specialist", zap.Error(err))
		}
	}
	return altResult
}

// saveTurns appends the exchange and persists it. Persistence failures
// degrade the turn, never fail it: the user already has the answer.
func (h *Host) saveTurns(ctx context.Context, req Request, prior []session.Turn, response string) {
	if req.SessionID == "" {
		return
	}
	updated := append(prior,
		session.Turn{Role: session.RoleUser, Content: req.Message},
		session.Turn{Role: session.RoleAssistant, Content: response},
	)
	if err := h.sessions.Save(ctx, req.SessionID, updated); err != nil {
		h.logger.Warn("session save failed, turn not persisted",
			zap.String("session_id", req.SessionID),
			zap.Error(err),
		)
	}
}

func (h *Host) toFailure(result dispatch.Result) *Failure {
	switch result.ErrorKind {
	case dispatch.ErrorKindTimeout:
		return &Failure{Kind: FailureTimeout, Message: "the request timed out before a specialist answered"}
	case dispatch.ErrorKindApplication:
		return &Failure{Kind: FailureApplication, Message: result.ErrorMessage}
	default:
		return &Failure{Kind: FailureUnreachable, Message: "the specialist for this request is currently unavailable"}
	}
}

func (h *Host) ready() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state == stateReady
}

// Registry exposes the agent registry for observability surfaces.
func (h *Host) Registry() *discovery.Registry {
	return h.registry
}
