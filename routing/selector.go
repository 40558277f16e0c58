// Package routing decides which specialist agent should handle a user
// message. Selection is a pure function over a registry snapshot: selectors
// are stateless, side-effect free, and never mutate the registry.
package routing

import (
	"context"

	"github.com/a2ahost/a2ahost/discovery"
)

// Decision is the outcome of matching a message against the registry. It is
// consumed immediately by the dispatcher and never persisted.
type Decision struct {
	// TargetAgentID is the chosen specialist, empty when Fallback is set.
	TargetAgentID string

	// Endpoint is the chosen specialist's message endpoint.
	Endpoint string

	// Score is the raw match score that won the selection.
	Score float64

	// Confidence is the normalized confidence in the match (0-1).
	Confidence float64

	// Reason is a human-readable account of why this agent won.
	Reason string

	// Fallback marks the defined no-suitable-specialist outcome. A fallback
	// decision is a valid result, never an error.
	Fallback bool

	// Alternates lists further candidates above the threshold, best first,
	// for the dispatcher to try when the primary is unreachable.
	Alternates []Alternate
}

// Alternate is a runner-up candidate from the same selection.
type Alternate struct {
	AgentID  string
	Endpoint string
	Score    float64
}

// Fallback returns the defined no-match decision.
func Fallback(reason string) Decision {
	return Decision{Fallback: true, Reason: reason}
}

// Selector matches a user message to a specialist. KeywordSelector is the
// shipping strategy; a model-assisted selector can implement the same
// contract and be swapped in at host construction.
type Selector interface {
	Select(ctx context.Context, message string, snapshot *discovery.Snapshot) Decision
}
