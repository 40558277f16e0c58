package routing

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/a2ahost/a2ahost/discovery"
	"github.com/a2ahost/a2ahost/protocol/a2a"
)

// For any set of agents with pairwise-disjoint keyword vocabularies, a
// message consisting exactly of one agent's keywords selects that agent.
func TestSelect_UniqueKeywordOwnerWins(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 6).Draw(t, "agents")

		reg := discovery.NewRegistry(zap.NewNop())
		keywords := make([][]string, n)
		for i := 0; i < n; i++ {
			k := rapid.IntRange(1, 3).Draw(t, fmt.Sprintf("kwcount%d", i))
			kws := make([]string, k)
			for j := range kws {
				// Disjoint by construction: every keyword embeds its owner.
				kws[j] = fmt.Sprintf("kw%dx%d", i, j)
			}
			keywords[i] = kws
			reg.Upsert(a2a.CapabilityCard{
				AgentID:  fmt.Sprintf("agent%d", i),
				Name:     fmt.Sprintf("Agent %d", i),
				Endpoint: fmt.Sprintf("http://agent%d", i),
				Keywords: kws,
			})
		}
		snap := reg.Snapshot()
		sel := defaultSelector()

		target := rapid.IntRange(0, n-1).Draw(t, "target")
		message := ""
		for _, kw := range keywords[target] {
			message += kw + " "
		}

		d := sel.Select(context.Background(), message, snap)
		require.False(t, d.Fallback)
		require.Equal(t, fmt.Sprintf("agent%d", target), d.TargetAgentID)
	})
}

// Selection never errors and never mutates the snapshot, whatever the input.
func TestSelect_TotalAndPure(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		reg := discovery.NewRegistry(zap.NewNop())
		if rapid.Bool().Draw(t, "populate") {
			reg.Upsert(a2a.CapabilityCard{
				AgentID:  "solo",
				Name:     "Solo",
				Endpoint: "http://solo",
				Keywords: []string{rapid.StringMatching(`[a-z]{2,10}`).Draw(t, "kw")},
			})
		}
		snap := reg.Snapshot()
		before := snap.Len()

		message := rapid.StringMatching(`[ -~]{0,80}`).Draw(t, "message")
		d := defaultSelector().Select(context.Background(), message, snap)

		require.Equal(t, before, snap.Len())
		if d.Fallback {
			require.Empty(t, d.TargetAgentID)
		} else {
			_, ok := snap.Get(d.TargetAgentID)
			require.True(t, ok, "decision must reference a registered agent")
		}
	})
}
