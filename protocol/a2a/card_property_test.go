package a2a

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// Agent ids key the registry, so derivation has to be deterministic and
// produce the same id for the same card on every re-discovery.
func TestDeriveAgentID_Deterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		name := rapid.StringMatching(`[A-Za-z][A-Za-z0-9 _.-]{0,40}`).Draw(t, "name")
		endpoint := "http://" + rapid.StringMatching(`[a-z]{1,12}(\.[a-z]{2,6})?(:[0-9]{2,5})?`).Draw(t, "host")

		first := DeriveAgentID(name, endpoint)
		second := DeriveAgentID(name, endpoint)
		require.Equal(t, first, second)
		require.NotEmpty(t, first)
		assert.Equal(t, strings.ToLower(first), first, "ids are lowercase")
		assert.NotContains(t, first, " ")
	})
}

func TestDeriveAgentID_NameWins(t *testing.T) {
	assert.Equal(t, "math-agent", DeriveAgentID("Math Agent", "http://example.com:9000"))
	assert.Equal(t, "doc-agent", DeriveAgentID("  Doc   Agent  ", "http://x"))
}

func TestDeriveAgentID_EndpointFallback(t *testing.T) {
	assert.Equal(t, "agents.internal:8080", DeriveAgentID("", "http://agents.internal:8080"))
	assert.Equal(t, "agents.internal", DeriveAgentID("!!!", "https://agents.internal"))
}

func TestCardValidate(t *testing.T) {
	card := &CapabilityCard{Name: "A", Endpoint: "http://a"}
	require.NoError(t, card.Validate())

	assert.ErrorIs(t, (&CapabilityCard{Endpoint: "http://a"}).Validate(), ErrCardMissingName)
	assert.ErrorIs(t, (&CapabilityCard{Name: "A"}).Validate(), ErrCardMissingEndpoint)
}
