// Package dispatch forwards routed messages to specialist agents over the
// A2A wire protocol, owning the per-call timeout, the bounded retry policy,
// and the mapping of remote failures into the host's error taxonomy.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/a2ahost/a2ahost/internal/metrics"
	"github.com/a2ahost/a2ahost/protocol/a2a"
)

// ErrorKind classifies a failed dispatch for the caller.
type ErrorKind string

const (
	// ErrorKindNone marks a successful dispatch.
	ErrorKindNone ErrorKind = ""
	// ErrorKindUnreachable is a transport failure that survived the retry:
	// connection refused, timeout, or repeated 5xx.
	ErrorKindUnreachable ErrorKind = "unreachable"
	// ErrorKindApplication is a specialist-level refusal: an HTTP 4xx or a
	// JSON-RPC error body. Never retried.
	ErrorKindApplication ErrorKind = "application_error"
	// ErrorKindTimeout means the caller's deadline expired mid-call.
	ErrorKindTimeout ErrorKind = "timeout"
)

// Target identifies the specialist a message is dispatched to.
type Target struct {
	AgentID  string
	Endpoint string
}

// Result is the outcome of one dispatch. Every failure carries both a kind
// and a human-readable message; the dispatcher never swallows an error.
type Result struct {
	Success      bool
	AgentID      string
	ResponseText string
	ErrorKind    ErrorKind
	ErrorMessage string
	// Attempts is how many wire attempts were made (1 or 2).
	Attempts int
}

// Config tunes dispatch behavior.
type Config struct {
	// CallTimeout is the per-attempt deadline, distinct from the discovery
	// timeout.
	CallTimeout time.Duration `yaml:"call_timeout"`

	// RetryDelay is the pause before the single transient-failure retry.
	RetryDelay time.Duration `yaml:"retry_delay"`

	// RatePerSecond throttles outbound calls across all specialists.
	// Zero disables throttling.
	RatePerSecond float64 `yaml:"rate_per_second"`

	// RateBurst is the throttle burst size.
	RateBurst int `yaml:"rate_burst"`
}

// DefaultConfig returns the dispatch defaults.
func DefaultConfig() Config {
	return Config{
		CallTimeout:   30 * time.Second,
		RetryDelay:    250 * time.Millisecond,
		RatePerSecond: 100,
		RateBurst:     200,
	}
}

// Dispatcher issues routed calls over the protocol client. Transient
// network failures are retried exactly once; application-level errors are
// terminal, so a specialist's side effects are never duplicated.
type Dispatcher struct {
	client    a2a.Client
	config    Config
	limiter   *rate.Limiter
	logger    *zap.Logger
	tracer    trace.Tracer
	collector *metrics.Collector
}

// New creates a dispatcher. The collector may be nil in tests.
func New(client a2a.Client, config Config, collector *metrics.Collector, logger *zap.Logger) *Dispatcher {
	if config.CallTimeout <= 0 {
		config.CallTimeout = DefaultConfig().CallTimeout
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = DefaultConfig().RetryDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter *rate.Limiter
	if config.RatePerSecond > 0 {
		burst := config.RateBurst
		if burst <= 0 {
			burst = int(config.RatePerSecond)
		}
		limiter = rate.NewLimiter(rate.Limit(config.RatePerSecond), burst)
	}
	return &Dispatcher{
		client:    client,
		config:    config,
		limiter:   limiter,
		logger:    logger.With(zap.String("component", "dispatcher")),
		tracer:    otel.Tracer("a2ahost/dispatch"),
		collector: collector,
	}
}

// Dispatch sends the task to the target. The request id generated for the
// envelope is reused on the retry so specialists can deduplicate.
func (d *Dispatcher) Dispatch(ctx context.Context, target Target, task string, call a2a.CallContext) Result {
	ctx, span := d.tracer.Start(ctx, "dispatch.send_message",
		trace.WithAttributes(
			attribute.String("a2a.agent_id", target.AgentID),
			attribute.String("a2a.session_id", call.SessionID),
		))
	defer span.End()

	start := time.Now()
	res := d.dispatch(ctx, target, task, call)
	d.observe(target.AgentID, res, time.Since(start))
	return res
}

func (d *Dispatcher) dispatch(ctx context.Context, target Target, task string, call a2a.CallContext) Result {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return d.failure(target, 0, ErrorKindTimeout, fmt.Sprintf("deadline exceeded before dispatch: %v", err))
		}
	}

	envelope := a2a.NewRequest(task)

	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		if err := ctx.Err(); err != nil {
			return d.failure(target, attempt-1, ErrorKindTimeout, "caller deadline exceeded")
		}

		callCtx, cancel := context.WithTimeout(ctx, d.config.CallTimeout)
		resp, err := d.client.Send(callCtx, target.Endpoint, envelope, call)
		cancel()

		switch {
		case err == nil && resp.Error != nil:
			// The specialist processed and refused the call. Surfacing it
			// verbatim-ish; retrying would duplicate side effects.
			return d.failure(target, attempt, ErrorKindApplication,
				fmt.Sprintf("specialist %s returned an error: %s", target.AgentID, resp.Error.Message))

		case err == nil:
			return Result{
				Success:      true,
				AgentID:      target.AgentID,
				ResponseText: resp.ResultText(),
				Attempts:     attempt,
			}

		case errors.Is(err, a2a.ErrRejected), errors.Is(err, a2a.ErrMalformedResponse):
			return d.failure(target, attempt, ErrorKindApplication,
				fmt.Sprintf("specialist %s rejected the request: %v", target.AgentID, err))

		case ctx.Err() != nil:
			return d.failure(target, attempt, ErrorKindTimeout, "caller deadline exceeded")

		default:
			// Transient: connection error, per-attempt timeout, or 5xx.
			lastErr = err
			if attempt == 1 {
				if d.collector != nil {
					d.collector.RecordRetry()
				}
				d.logger.Warn("dispatch attempt failed, retrying once",
					zap.String("agent_id", target.AgentID),
					zap.Error(err),
				)
				select {
				case <-ctx.Done():
					return d.failure(target, attempt, ErrorKindTimeout, "caller deadline exceeded")
				case <-time.After(d.config.RetryDelay):
				}
			}
		}
	}

	return d.failure(target, 2, ErrorKindUnreachable,
		fmt.Sprintf("specialist %s unreachable after retry: %v", target.AgentID, lastErr))
}

func (d *Dispatcher) failure(target Target, attempts int, kind ErrorKind, msg string) Result {
	return Result{
		AgentID:      target.AgentID,
		ErrorKind:    kind,
		ErrorMessage: msg,
		Attempts:     attempts,
	}
}

func (d *Dispatcher) observe(agentID string, res Result, elapsed time.Duration) {
	outcome := "success"
	if !res.Success {
		outcome = string(res.ErrorKind)
		d.logger.Warn("dispatch failed",
			zap.String("agent_id", agentID),
			zap.String("error_kind", string(res.ErrorKind)),
			zap.String("error", res.ErrorMessage),
			zap.Int("attempts", res.Attempts),
		)
	} else {
		d.logger.Debug("dispatch succeeded",
			zap.String("agent_id", agentID),
			zap.Int("attempts", res.Attempts),
			zap.Duration("elapsed", elapsed),
		)
	}
	if d.collector != nil {
		d.collector.RecordDispatch(agentID, outcome, elapsed)
	}
}
