package coupling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/garrettyarmo/forge-sub000/internal/graph"
)

var fixedNow = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newSvc(g *graph.Graph, repo, name string) graph.NodeId {
	id := graph.MustNodeId(graph.NodeService, repo, name)
	n, err := graph.NewNode(id, graph.NodeService, name, nil, graph.NewMetadata(graph.SourceJSParser, fixedNow))
	if err != nil {
		panic(err)
	}
	if err := g.UpsertNode(n); err != nil {
		panic(err)
	}
	return id
}

func newDB(g *graph.Graph, repo, name string) graph.NodeId {
	id := graph.MustNodeId(graph.NodeDatabase, repo, name)
	n, err := graph.NewNode(id, graph.NodeDatabase, name, nil, graph.NewMetadata(graph.SourceJSParser, fixedNow))
	if err != nil {
		panic(err)
	}
	if err := g.UpsertNode(n); err != nil {
		panic(err)
	}
	return id
}

func newCloudResource(g *graph.Graph, repo, name string) graph.NodeId {
	id := graph.MustNodeId(graph.NodeCloudResource, repo, name)
	n, err := graph.NewNode(id, graph.NodeCloudResource, name, nil, graph.NewMetadata(graph.SourceTerraformParser, fixedNow))
	if err != nil {
		panic(err)
	}
	if err := g.UpsertNode(n); err != nil {
		panic(err)
	}
	return id
}

func addEdge(t *testing.T, g *graph.Graph, src graph.NodeId, et graph.EdgeType, dst graph.NodeId) {
	t.Helper()
	e, err := graph.NewEdge(src, et, dst, fixedNow)
	require.NoError(t, err)
	e.Meta.AddEvidence("file.py:1")
	require.NoError(t, g.UpsertEdge(e))
}

// TestExclusiveWriterOwnershipAndMediumCoupling mirrors spec.md §8.2 Scenario 1:
// svc-a writes, svc-b reads the same table, svc-a becomes owner by exclusive
// writer at confidence 0.6, and the pair is coupled at Medium risk.
func TestExclusiveWriterOwnershipAndMediumCoupling(t *testing.T) {
	g := graph.New("forge-test", fixedNow)
	svcA := newSvc(g, "repo", "svc-a")
	svcB := newSvc(g, "repo", "svc-b")
	users := newDB(g, "repo", "users")
	addEdge(t, g, svcA, graph.EdgeWrites, users)
	addEdge(t, g, svcB, graph.EdgeReads, users)

	result := Analyze(g)
	require.Len(t, result.Ownership, 1)
	require.Equal(t, svcA, result.Ownership[0].Owner)
	require.Equal(t, 0.6, result.Ownership[0].Confidence)
	require.Equal(t, "ExclusiveWriter", result.Ownership[0].Reason)

	require.Len(t, result.Couplings, 1)
	require.Equal(t, graph.RiskMedium, result.Couplings[0].Risk)

	require.NoError(t, result.ApplyToGraph(g, fixedNow))
	owns := g.Edge(graph.Key{Source: svcA, Target: users, Type: graph.EdgeOwns})
	require.NotNil(t, owns)
	coupled := g.Edge(graph.Key{Source: svcA, Target: svcB, Type: graph.EdgeImplicitlyCoupled})
	if coupled == nil {
		coupled = g.Edge(graph.Key{Source: svcB, Target: svcA, Type: graph.EdgeImplicitlyCoupled})
	}
	require.NotNil(t, coupled)
}

// TestHighRiskBothWriters mirrors spec.md §8.2 Scenario 6: two writers to the
// same resource produce one High-risk ImplicitlyCoupled edge whose reason
// mentions the resource.
func TestHighRiskBothWriters(t *testing.T) {
	g := graph.New("forge-test", fixedNow)
	svcA := newSvc(g, "repo", "svc-a")
	svcB := newSvc(g, "repo", "svc-b")
	orders := newDB(g, "repo", "orders-table")
	addEdge(t, g, svcA, graph.EdgeWrites, orders)
	addEdge(t, g, svcB, graph.EdgeWrites, orders)

	result := Analyze(g)
	require.Len(t, result.Couplings, 1)
	require.Equal(t, graph.RiskHigh, result.Couplings[0].Risk)
	require.Contains(t, result.Couplings[0].Reason, "orders-table")
}

// TestOwnerIncludedInCouplingPairs checks the "coupling owner inclusion"
// property: a resource read by {A, B, O} where O is the inferred owner
// yields ImplicitlyCoupled edges for all three unordered pairs.
func TestOwnerIncludedInCouplingPairs(t *testing.T) {
	g := graph.New("forge-test", fixedNow)
	a := newSvc(g, "repo", "a")
	b := newSvc(g, "repo", "b")
	o := newSvc(g, "repo", "o")
	users := newDB(g, "repo", "users")
	addEdge(t, g, o, graph.EdgeWrites, users)
	addEdge(t, g, a, graph.EdgeReads, users)
	addEdge(t, g, b, graph.EdgeReads, users)

	result := Analyze(g)
	require.Len(t, result.Ownership, 1)
	require.Equal(t, o, result.Ownership[0].Owner)
	require.Len(t, result.Couplings, 3)

	pairs := make(map[[2]graph.NodeId]graph.CouplingRisk)
	for _, cp := range result.Couplings {
		pairs[[2]graph.NodeId{cp.A, cp.B}] = cp.Risk
	}
	pa, pb := canonicalPair(a, b)
	pao, pbo := canonicalPair(a, o)
	pbo2, po := canonicalPair(b, o)
	require.Contains(t, pairs, [2]graph.NodeId{pa, pb})
	require.Contains(t, pairs, [2]graph.NodeId{pao, pbo})
	require.Contains(t, pairs, [2]graph.NodeId{pbo2, po})
}

// TestSharedAccessEdgesSkipOwner checks Phase 3: a non-owner reader/writer of
// an owned resource gets a ReadsShared/WritesShared edge, the owner does not.
func TestSharedAccessEdgesSkipOwner(t *testing.T) {
	g := graph.New("forge-test", fixedNow)
	owner := newSvc(g, "repo", "owner")
	reader := newSvc(g, "repo", "reader")
	users := newDB(g, "repo", "users")
	addEdge(t, g, owner, graph.EdgeOwns, users)
	addEdge(t, g, owner, graph.EdgeWrites, users)
	addEdge(t, g, reader, graph.EdgeReads, users)

	result := Analyze(g)
	require.Len(t, result.SharedAccesses, 1)
	require.Equal(t, reader, result.SharedAccesses[0].Service)
	require.Equal(t, graph.EdgeReadsShared, result.SharedAccesses[0].EdgeType)

	require.NoError(t, result.ApplyToGraph(g, fixedNow))
	shared := g.Edge(graph.Key{Source: reader, Target: users, Type: graph.EdgeReadsShared})
	require.NotNil(t, shared)
	ownerShared := g.Edge(graph.Key{Source: owner, Target: users, Type: graph.EdgeReadsShared})
	require.Nil(t, ownerShared)
}

// TestConfirmedEdgeNotOverwritten checks that ApplyToGraph never clobbers a
// manually confirmed Owns edge (spec.md §4.6 "Application").
func TestConfirmedEdgeNotOverwritten(t *testing.T) {
	g := graph.New("forge-test", fixedNow)
	svcA := newSvc(g, "repo", "svc-a")
	svcB := newSvc(g, "repo", "svc-b")
	users := newDB(g, "repo", "users")
	addEdge(t, g, svcA, graph.EdgeWrites, users)

	manual, err := graph.NewEdge(svcB, graph.EdgeOwns, users, fixedNow)
	require.NoError(t, err)
	manual.Meta.Confirmed = true
	manual.Meta.Reason = "manually assigned"
	require.NoError(t, g.UpsertEdge(manual))

	result := Analyze(g)
	require.NoError(t, result.ApplyToGraph(g, fixedNow))

	owns := g.Edge(graph.Key{Source: svcB, Target: users, Type: graph.EdgeOwns})
	require.NotNil(t, owns)
	require.True(t, owns.Meta.Confirmed)
	require.Equal(t, "manually assigned", owns.Meta.Reason)
}

// TestCloudResourceNeverInfersOwnership reproduces a service/bucket naming
// collision ("orders" lambda alongside an "orders-uploads" S3 bucket): a
// CloudResource is not an eligible Owns target (spec.md §3.2), so Phase 1
// must skip it even though the naming-convention heuristic would otherwise
// match, and ApplyToGraph must not fail trying to build that edge.
func TestCloudResourceNeverInfersOwnership(t *testing.T) {
	g := graph.New("forge-test", fixedNow)
	orders := newSvc(g, "repo", "orders")
	uploads := newCloudResource(g, "repo", "orders-uploads")
	addEdge(t, g, orders, graph.EdgeUses, uploads)

	result := Analyze(g)
	require.Empty(t, result.Ownership)
	require.NoError(t, result.ApplyToGraph(g, fixedNow))

	owns := g.Edge(graph.Key{Source: orders, Target: uploads, Type: graph.EdgeOwns})
	require.Nil(t, owns)
}
