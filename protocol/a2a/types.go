// Package a2a implements the wire protocol spoken between the routing host
// and specialist agents: capability card discovery, the JSON-RPC 2.0 message
// envelope, and the context headers that carry session and authorization
// metadata across process boundaries.
package a2a

import (
	"net/url"
	"strings"
	"unicode"
)

// Context propagation headers. Session and user identity travel as
// transport metadata, never inside the JSON-RPC params, so specialists can
// enforce their own authorization without parsing payloads.
const (
	HeaderSessionID = "X-Session-ID"
	HeaderUserID    = "X-User-ID"
)

// CapabilityCard is a specialist agent's self-description, fetched from
// GET {endpoint}/card. A card is immutable once fetched; re-discovery
// replaces it wholesale.
type CapabilityCard struct {
	// AgentID is the stable identifier derived from the card name or the
	// endpoint host. It is not part of the wire format.
	AgentID string `json:"-"`

	// Name is the agent's declared display name.
	Name string `json:"name"`

	// Description is a human-readable summary of what the agent handles.
	Description string `json:"description"`

	// Keywords are the intents the agent declares it can serve.
	Keywords []string `json:"keywords"`

	// Endpoint is the base URL the card was fetched from. Not part of the
	// wire format.
	Endpoint string `json:"-"`
}

// Validate checks that the card carries the fields routing depends on.
func (c *CapabilityCard) Validate() error {
	if c.Name == "" {
		return ErrCardMissingName
	}
	if c.Endpoint == "" {
		return ErrCardMissingEndpoint
	}
	return nil
}

// HasKeyword reports whether the card declares the given keyword,
// case-insensitively.
func (c *CapabilityCard) HasKeyword(kw string) bool {
	for _, k := range c.Keywords {
		if strings.EqualFold(k, kw) {
			return true
		}
	}
	return false
}

// DeriveAgentID produces the registry key for a card: the slugified card
// name, or the endpoint host when the card has no name. Stable across
// re-discovery so repeated discovery upserts rather than duplicates.
func DeriveAgentID(name, endpoint string) string {
	if slug := slugify(name); slug != "" {
		return slug
	}
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		return strings.ToLower(u.Host)
	}
	return strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://"))
}

// slugify lowercases and collapses non-alphanumeric runs to single dashes.
func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
