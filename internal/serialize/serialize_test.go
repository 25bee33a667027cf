package serialize

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/garrettyarmo/forge-sub000/internal/graph"
	"github.com/garrettyarmo/forge-sub000/internal/subgraph"
)

var fixedNow = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type fakeCounter struct{}

func (fakeCounter) Count(text string) int { return len(text) }

func mustNode(t *testing.T, g *graph.Graph, nt graph.NodeType, repo, name string) *graph.Node {
	t.Helper()
	id := graph.MustNodeId(nt, repo, name)
	n, err := graph.NewNode(id, nt, name, graph.Attributes{"language": "python"}, graph.NewMetadata(graph.SourceJSParser, fixedNow))
	require.NoError(t, err)
	require.NoError(t, g.UpsertNode(n))
	return g.Node(id)
}

func mustEdge(t *testing.T, g *graph.Graph, src graph.NodeId, et graph.EdgeType, dst graph.NodeId) {
	t.Helper()
	e, err := graph.NewEdge(src, et, dst, fixedNow)
	require.NoError(t, err)
	e.Meta.AddEvidence("repo/file.py:12")
	require.NoError(t, g.UpsertEdge(e))
}

func buildGraph(t *testing.T) (*graph.Graph, graph.NodeId, graph.NodeId) {
	t.Helper()
	g := graph.New("forge-test", fixedNow)
	svc := mustNode(t, g, graph.NodeService, "repo", "svc")
	db := mustNode(t, g, graph.NodeDatabase, "repo", "users")
	mustEdge(t, g, svc.ID, graph.EdgeWrites, db.ID)
	return g, svc.ID, db.ID
}

func TestDocumentIncludesSeedAndDependency(t *testing.T) {
	g, svc, db := buildGraph(t)
	sub := subgraph.Extract(g, subgraph.Config{SeedNodes: []graph.NodeId{svc}, MaxDepth: 3, MinRelevance: 0.01})
	out := Document(g, sub, fakeCounter{}, 0)
	require.Contains(t, out, "svc")
	require.Contains(t, out, "users")
	require.Contains(t, out, "Writes")
	_ = db
}

func TestDocumentMinimalFallbackWhenBudgetTiny(t *testing.T) {
	g, svc, _ := buildGraph(t)
	sub := subgraph.Extract(g, subgraph.Config{SeedNodes: []graph.NodeId{svc}, MaxDepth: 3, MinRelevance: 0.01})
	out := Document(g, sub, fakeCounter{}, 1)
	require.Contains(t, out, "svc")
}

func TestDataOmitsEmptyBusinessContext(t *testing.T) {
	g, svc, _ := buildGraph(t)
	sub := subgraph.Extract(g, subgraph.Config{SeedNodes: []graph.NodeId{svc}, MaxDepth: 3, MinRelevance: 0.01})
	doc := Data(sub, nil, fixedNow)
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "business_context")
	require.Equal(t, SchemaID, doc.Schema)
	require.Equal(t, len(sub.Nodes), doc.Summary.TotalNodes)
	require.Equal(t, len(sub.Edges), doc.Summary.TotalEdges)
}

func TestDataSummaryByType(t *testing.T) {
	g, svc, _ := buildGraph(t)
	sub := subgraph.Extract(g, subgraph.Config{SeedNodes: []graph.NodeId{svc}, MaxDepth: 3, MinRelevance: 0.01})
	doc := Data(sub, nil, fixedNow)
	require.Equal(t, 1, doc.Summary.ByType[graph.NodeService])
	require.Equal(t, 1, doc.Summary.ByType[graph.NodeDatabase])
}

func TestDiagramSanitizesNodeIDs(t *testing.T) {
	g, svc, _ := buildGraph(t)
	sub := subgraph.Extract(g, subgraph.Config{SeedNodes: []graph.NodeId{svc}, MaxDepth: 3, MinRelevance: 0.01})
	out := Diagram(sub, DirectionLR, fakeCounter{}, 0)
	require.NotContains(t, out, ":")
	require.Contains(t, out, "flowchart LR")
	require.Contains(t, out, "-->")
}

func TestDiagramUsesDottedArrowForImplicitCoupling(t *testing.T) {
	g := graph.New("forge-test", fixedNow)
	a := mustNode(t, g, graph.NodeService, "repo", "a")
	b := mustNode(t, g, graph.NodeService, "repo", "b")
	mustEdge(t, g, a.ID, graph.EdgeImplicitlyCoupled, b.ID)
	sub := subgraph.Extract(g, subgraph.Config{SeedNodes: []graph.NodeId{a.ID}, MaxDepth: 3, MinRelevance: 0.01, IncludeImplicitCouplings: true})
	out := Diagram(sub, DirectionLR, fakeCounter{}, 0)
	require.Contains(t, out, "-.->")
}

func TestTruncateEvidenceCollapsesBeyondCap(t *testing.T) {
	ev := []string{"a", "b", "c", "d", "e"}
	shown, more := truncateEvidence(ev)
	require.Len(t, shown, EvidenceCap)
	require.Equal(t, 2, more)
}

func TestDetailForThresholds(t *testing.T) {
	require.Equal(t, DetailFull, detailFor(0.71))
	require.Equal(t, DetailSummary, detailFor(0.41))
	require.Equal(t, DetailMinimal, detailFor(0.4))
}

func TestApproximateCounterNonZeroForNonEmpty(t *testing.T) {
	c := approximateCounter{}
	require.Greater(t, c.Count("hello world"), 0)
	require.Equal(t, 0, c.Count(""))
}

func TestDocumentOutputIsDeterministic(t *testing.T) {
	g, svc, _ := buildGraph(t)
	sub := subgraph.Extract(g, subgraph.Config{SeedNodes: []graph.NodeId{svc}, MaxDepth: 3, MinRelevance: 0.01})
	out1 := Document(g, sub, fakeCounter{}, 0)
	out2 := Document(g, sub, fakeCounter{}, 0)
	require.Equal(t, out1, out2)
	require.True(t, strings.HasPrefix(out1, "# Ecosystem survey"))
}
