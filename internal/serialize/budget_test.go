package serialize

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/garrettyarmo/forge-sub000/internal/graph"
	"github.com/garrettyarmo/forge-sub000/internal/subgraph"
)

func scoredChain(t *testing.T, n int) []subgraph.ScoredNode {
	t.Helper()
	g := graph.New("forge-test", fixedNow)
	var out []subgraph.ScoredNode
	for i := 0; i < n; i++ {
		node := mustNode(t, g, graph.NodeService, "repo", string(rune('a'+i)))
		out = append(out, subgraph.ScoredNode{Node: node, Score: 1.0 - float64(i)*0.01})
	}
	return out
}

// TestSelectByBudgetForcedTopNodeIsChargedAgainstRemaining guards against a
// budget overrun: once the top node is force-included at Minimal detail
// because it didn't fit, its cost must still count against the remaining
// budget so later nodes aren't admitted as if that cost were never spent.
func TestSelectByBudgetForcedTopNodeIsChargedAgainstRemaining(t *testing.T) {
	nodes := scoredChain(t, 3)
	render := func(n subgraph.ScoredNode, detail DetailLevel) string {
		if detail == DetailMinimal {
			return "x"
		}
		return "xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx"
	}
	margin := func(n subgraph.ScoredNode) int { return 0 }

	// Budget so tight that headerReserve alone consumes it, forcing the
	// first node to Minimal; only 1 extra token of true remaining room.
	sel := selectByBudget(fakeCounter{}, headerReserve+1, nodes, render, margin)

	require.Len(t, sel.order, 1, "no node beyond the forced top node should fit a 1-token remainder")
	require.Equal(t, DetailMinimal, sel.detail[nodes[0].Node.ID])
}

func TestSelectByBudgetIncludesAllNodesWhenBudgetIsGenerous(t *testing.T) {
	nodes := scoredChain(t, 3)
	render := func(n subgraph.ScoredNode, detail DetailLevel) string { return "abc" }
	margin := func(n subgraph.ScoredNode) int { return 1 }

	sel := selectByBudget(fakeCounter{}, 1<<20, nodes, render, margin)

	require.Len(t, sel.order, 3)
	for _, n := range nodes {
		require.Contains(t, sel.order, n.Node.ID)
	}
}

func TestFilterEdgesDropsEdgesWithExcludedEndpoint(t *testing.T) {
	g, svc, db := buildGraph(t)
	sub := subgraph.Extract(g, subgraph.Config{SeedNodes: []graph.NodeId{svc}, MaxDepth: 3, MinRelevance: 0.01})

	sel := newSelection()
	sel.detail[svc] = DetailFull
	sel.text[svc] = "svc"
	sel.order = append(sel.order, svc)
	// db intentionally excluded.

	kept := filterEdges(sub.Edges, sel)
	require.Empty(t, kept)
	_ = db
}
