package routing

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/a2ahost/a2ahost/discovery"
)

// KeywordConfig tunes the keyword selection strategy.
type KeywordConfig struct {
	// MinScore is the minimum raw score a candidate must reach. The default
	// of 1.0 means at least one declared keyword has to match.
	MinScore float64 `yaml:"min_score"`

	// DescriptionWeight is the per-token weight for description overlap.
	// Description hits refine ranking between keyword-qualified candidates
	// but can never qualify a candidate on their own.
	DescriptionWeight float64 `yaml:"description_weight"`

	// MaxAlternates bounds how many runner-ups a decision carries.
	MaxAlternates int `yaml:"max_alternates"`

	// IncludeUnknownHealth also considers agents that have never been
	// probed. Unreachable agents are always skipped.
	IncludeUnknownHealth bool `yaml:"include_unknown_health"`
}

// DefaultKeywordConfig returns the selection defaults.
func DefaultKeywordConfig() KeywordConfig {
	return KeywordConfig{
		MinScore:             1.0,
		DescriptionWeight:    0.25,
		MaxAlternates:        2,
		IncludeUnknownHealth: true,
	}
}

// KeywordSelector scores each healthy registry entry by token overlap
// between the message and the entry's declared keywords and description.
// Scoring is deterministic: the highest score wins and ties break by
// discovery order, first discovered first.
type KeywordSelector struct {
	config KeywordConfig
	logger *zap.Logger
}

// NewKeywordSelector creates the default selector.
func NewKeywordSelector(config KeywordConfig, logger *zap.Logger) *KeywordSelector {
	if config.MinScore <= 0 {
		config.MinScore = DefaultKeywordConfig().MinScore
	}
	if config.DescriptionWeight < 0 {
		config.DescriptionWeight = 0
	}
	if config.MaxAlternates < 0 {
		config.MaxAlternates = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KeywordSelector{
		config: config,
		logger: logger.With(zap.String("component", "keyword_selector")),
	}
}

type candidate struct {
	entry    discovery.Entry
	score    float64
	keywords int
	reason   string
}

// Select implements Selector.
func (s *KeywordSelector) Select(_ context.Context, message string, snapshot *discovery.Snapshot) Decision {
	tokens := tokenSet(message)
	if len(tokens) == 0 || snapshot == nil || snapshot.Len() == 0 {
		return Fallback("no registered specialists")
	}

	var candidates []candidate
	for _, entry := range snapshot.Entries() {
		switch entry.Health {
		case discovery.HealthUnreachable:
			continue
		case discovery.HealthUnknown:
			if !s.config.IncludeUnknownHealth {
				continue
			}
		}

		matched := 0
		for _, kw := range entry.Card.Keywords {
			if keywordMatches(kw, tokens) {
				matched++
			}
		}
		if matched == 0 {
			// Description overlap alone never qualifies an agent.
			continue
		}

		descHits := 0
		for tok := range tokenSet(entry.Card.Description) {
			if len(tok) < 4 {
				continue
			}
			if _, ok := tokens[tok]; ok {
				descHits++
			}
		}

		score := float64(matched) + s.config.DescriptionWeight*float64(descHits)
		if score < s.config.MinScore {
			continue
		}
		candidates = append(candidates, candidate{
			entry:    entry,
			score:    score,
			keywords: matched,
			reason:   fmt.Sprintf("matched %d keyword(s), %d description token(s)", matched, descHits),
		})
	}

	if len(candidates) == 0 {
		return Fallback("no specialist matched above threshold")
	}

	// Entries arrive in discovery order, so a strict greater-than keeps the
	// first-discovered winner on ties.
	best := 0
	for i := 1; i < len(candidates); i++ {
		if candidates[i].score > candidates[best].score {
			best = i
		}
	}
	winner := candidates[best]

	alternates := make([]Alternate, 0, s.config.MaxAlternates)
	for i, c := range candidates {
		if i == best || len(alternates) == s.config.MaxAlternates {
			continue
		}
		alternates = append(alternates, Alternate{
			AgentID:  c.entry.Card.AgentID,
			Endpoint: c.entry.Card.Endpoint,
			Score:    c.score,
		})
	}

	confidence := float64(winner.keywords) / float64(max(len(winner.entry.Card.Keywords), 1))
	if confidence > 1 {
		confidence = 1
	}

	s.logger.Debug("specialist selected",
		zap.String("agent_id", winner.entry.Card.AgentID),
		zap.Float64("score", winner.score),
		zap.Int("candidates", len(candidates)),
	)

	return Decision{
		TargetAgentID: winner.entry.Card.AgentID,
		Endpoint:      winner.entry.Card.Endpoint,
		Score:         winner.score,
		Confidence:    confidence,
		Reason:        winner.reason,
		Alternates:    alternates,
	}
}

// keywordMatches reports whether every token of the keyword appears in the
// message token set, so multi-word intents like "unit conversion" match.
func keywordMatches(keyword string, tokens map[string]struct{}) bool {
	kwTokens := tokenSet(keyword)
	if len(kwTokens) == 0 {
		return false
	}
	for tok := range kwTokens {
		if _, ok := tokens[tok]; !ok {
			return false
		}
	}
	return true
}

// tokenSet lowercases and splits on any non-alphanumeric rune.
func tokenSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		out[tok] = struct{}{}
	}
	return out
}

// Compile-time interface check.
var _ Selector = (*KeywordSelector)(nil)
