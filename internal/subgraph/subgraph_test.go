package subgraph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/garrettyarmo/forge-sub000/internal/graph"
)

var fixedNow = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func mustNode(t *testing.T, g *graph.Graph, nt graph.NodeType, repo, name string) graph.NodeId {
	t.Helper()
	id := graph.MustNodeId(nt, repo, name)
	n, err := graph.NewNode(id, nt, name, nil, graph.NewMetadata(graph.SourceJSParser, fixedNow))
	require.NoError(t, err)
	require.NoError(t, g.UpsertNode(n))
	return id
}

func mustEdge(t *testing.T, g *graph.Graph, src graph.NodeId, et graph.EdgeType, dst graph.NodeId) {
	t.Helper()
	e, err := graph.NewEdge(src, et, dst, fixedNow)
	require.NoError(t, err)
	require.NoError(t, g.UpsertEdge(e))
}

// TestRelevanceMonotonicity checks spec.md §8.1: a node's score is
// monotonically non-increasing as its decay-weighted distance from the seed
// grows, across a Calls -> Reads chain.
func TestRelevanceMonotonicity(t *testing.T) {
	g := graph.New("forge-test", fixedNow)
	svcA := mustNode(t, g, graph.NodeService, "repo", "a")
	svcB := mustNode(t, g, graph.NodeService, "repo", "b")
	db := mustNode(t, g, graph.NodeDatabase, "repo", "users")
	mustEdge(t, g, svcA, graph.EdgeCalls, svcB)
	mustEdge(t, g, svcB, graph.EdgeReads, db)

	result := Extract(g, Config{SeedNodes: []graph.NodeId{svcA}, MaxDepth: 5, MinRelevance: 0.01})
	scores := make(map[graph.NodeId]float64)
	for _, n := range result.Nodes {
		scores[n.Node.ID] = n.Score
	}
	require.Equal(t, 1.0, scores[svcA])
	require.InDelta(t, 0.8, scores[svcB], 1e-9)
	require.InDelta(t, 0.8*0.75, scores[db], 1e-9)
	require.True(t, scores[svcA] >= scores[svcB])
	require.True(t, scores[svcB] >= scores[db])
}

// TestMaxAcrossPaths checks spec.md §4.7: when a node is reached via two
// paths, its score is the maximum, not the sum.
func TestMaxAcrossPaths(t *testing.T) {
	g := graph.New("forge-test", fixedNow)
	seed := mustNode(t, g, graph.NodeService, "repo", "seed")
	mid := mustNode(t, g, graph.NodeService, "repo", "mid")
	target := mustNode(t, g, graph.NodeDatabase, "repo", "shared")
	mustEdge(t, g, seed, graph.EdgeReads, target) // direct: 0.75
	mustEdge(t, g, seed, graph.EdgeCalls, mid)    // 0.8
	mustEdge(t, g, mid, graph.EdgeReads, target)  // 0.8 * 0.75 = 0.6, less than direct

	result := Extract(g, Config{SeedNodes: []graph.NodeId{seed}, MaxDepth: 5, MinRelevance: 0.01})
	var targetScore float64
	for _, n := range result.Nodes {
		if n.Node.ID == target {
			targetScore = n.Score
		}
	}
	require.InDelta(t, 0.75, targetScore, 1e-9)
}

// TestMinRelevancePruning checks that nodes scoring below the floor are
// excluded entirely.
func TestMinRelevancePruning(t *testing.T) {
	g := graph.New("forge-test", fixedNow)
	seed := mustNode(t, g, graph.NodeService, "repo", "seed")
	q := mustNode(t, g, graph.NodeQueue, "repo", "q")
	mustEdge(t, g, seed, graph.EdgePublishes, q) // 0.65

	result := Extract(g, Config{SeedNodes: []graph.NodeId{seed}, MaxDepth: 5, MinRelevance: 0.7})
	for _, n := range result.Nodes {
		require.NotEqual(t, q, n.Node.ID)
	}
}

// TestMaxDepthStopsExpansion checks that expansion halts at MaxDepth even
// when relevance would otherwise permit further hops.
func TestMaxDepthStopsExpansion(t *testing.T) {
	g := graph.New("forge-test", fixedNow)
	a := mustNode(t, g, graph.NodeService, "repo", "a")
	b := mustNode(t, g, graph.NodeService, "repo", "b")
	c := mustNode(t, g, graph.NodeService, "repo", "c")
	mustEdge(t, g, a, graph.EdgeCalls, b)
	mustEdge(t, g, b, graph.EdgeCalls, c)

	result := Extract(g, Config{SeedNodes: []graph.NodeId{a}, MaxDepth: 1, MinRelevance: 0.01})
	found := make(map[graph.NodeId]bool)
	for _, n := range result.Nodes {
		found[n.Node.ID] = true
	}
	require.True(t, found[a])
	require.True(t, found[b])
	require.False(t, found[c])
}

// TestSortedByScoreThenID checks output ordering: score descending, ties
// broken by NodeId.
func TestSortedByScoreThenID(t *testing.T) {
	g := graph.New("forge-test", fixedNow)
	seed := mustNode(t, g, graph.NodeService, "repo", "seed")
	x := mustNode(t, g, graph.NodeDatabase, "repo", "x")
	y := mustNode(t, g, graph.NodeDatabase, "repo", "y")
	mustEdge(t, g, seed, graph.EdgeReads, x)
	mustEdge(t, g, seed, graph.EdgeReads, y)

	result := Extract(g, Config{SeedNodes: []graph.NodeId{seed}, MaxDepth: 5, MinRelevance: 0.01})
	require.Len(t, result.Nodes, 3)
	require.Equal(t, seed, result.Nodes[0].Node.ID)
	// x and y tie at 0.75; broken by NodeId ascending.
	require.True(t, result.Nodes[1].Node.ID < result.Nodes[2].Node.ID)
}

// TestEdgesRequireBothEndpointsIncluded checks that an edge to a pruned node
// is excluded from the result.
func TestEdgesRequireBothEndpointsIncluded(t *testing.T) {
	g := graph.New("forge-test", fixedNow)
	seed := mustNode(t, g, graph.NodeService, "repo", "seed")
	far := mustNode(t, g, graph.NodeService, "repo", "far")
	mustEdge(t, g, seed, graph.EdgeCalls, far)

	result := Extract(g, Config{SeedNodes: []graph.NodeId{seed}, MaxDepth: 0, MinRelevance: 0.01})
	require.Len(t, result.Nodes, 1)
	require.Empty(t, result.Edges)
}

// TestImplicitCouplingExcludedByDefault checks IncludeImplicitCouplings gates
// traversal across ImplicitlyCoupled edges.
func TestImplicitCouplingExcludedByDefault(t *testing.T) {
	g := graph.New("forge-test", fixedNow)
	a := mustNode(t, g, graph.NodeService, "repo", "a")
	b := mustNode(t, g, graph.NodeService, "repo", "b")
	mustEdge(t, g, a, graph.EdgeImplicitlyCoupled, b)

	result := Extract(g, Config{SeedNodes: []graph.NodeId{a}, MaxDepth: 5, MinRelevance: 0.01, IncludeImplicitCouplings: false})
	require.Len(t, result.Nodes, 1)

	result2 := Extract(g, Config{SeedNodes: []graph.NodeId{a}, MaxDepth: 5, MinRelevance: 0.01, IncludeImplicitCouplings: true})
	require.Len(t, result2.Nodes, 2)
}
