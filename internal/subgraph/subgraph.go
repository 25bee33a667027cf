// Package subgraph implements the BFS relevance-decay extraction of spec.md
// §4.7: given seed nodes, expand outward scoring each reached node by
// edge-type-specific decay, pruning below a relevance floor.
package subgraph

import (
	"sort"

	"github.com/garrettyarmo/forge-sub000/internal/graph"
)

// Config mirrors spec.md §4.7's SubgraphConfig.
type Config struct {
	SeedNodes                []graph.NodeId
	MaxDepth                 int
	IncludeImplicitCouplings bool
	MinRelevance             float64
	EdgeTypes                []graph.EdgeType // nil/empty means all types
}

// ScoredNode is a node annotated with its relevance score and BFS depth.
type ScoredNode struct {
	Node   *graph.Node
	Score  float64
	Depth  int
	IsSeed bool
}

// Result is the extracted subgraph: the scored node set plus every edge
// whose endpoints are both included.
type Result struct {
	Nodes []ScoredNode
	Edges []*graph.Edge
}

// decay gives the canonical per-edge-type relevance multiplier (spec.md
// §4.7). Unlisted edge types (shouldn't occur given the permitted-endpoint
// table) decay at the most conservative rate.
func decay(t graph.EdgeType) float64 {
	switch t {
	case graph.EdgeOwns:
		return 0.9
	case graph.EdgeCalls:
		return 0.8
	case graph.EdgeReads, graph.EdgeWrites:
		return 0.75
	case graph.EdgeReadsShared, graph.EdgeWritesShared:
		return 0.7
	case graph.EdgePublishes, graph.EdgeSubscribes:
		return 0.65
	case graph.EdgeUses:
		return 0.6
	case graph.EdgeImplicitlyCoupled:
		return 0.5
	default:
		return 0.5
	}
}

// incomingPenalty is the additional multiplier applied when a node is
// reached by traversing an edge against its natural direction (spec.md
// §4.7: "incoming context is relevant but secondary").
const incomingPenalty = 0.7

func allowedEdgeType(cfg Config, t graph.EdgeType) bool {
	if len(cfg.EdgeTypes) == 0 {
		return true
	}
	for _, et := range cfg.EdgeTypes {
		if et == t {
			return true
		}
	}
	return false
}

// frontierStep is one queued expansion: the node reached, its score, and its
// depth.
type frontierStep struct {
	id    graph.NodeId
	score float64
	depth int
}

// Extract runs breadth-first expansion from cfg.SeedNodes over g, scoring
// each node by the maximum-across-paths decayed relevance and pruning nodes
// below cfg.MinRelevance or beyond cfg.MaxDepth (spec.md §4.7).
func Extract(g *graph.Graph, cfg Config) *Result {
	best := make(map[graph.NodeId]float64)
	depthOf := make(map[graph.NodeId]int)
	isSeed := make(map[graph.NodeId]bool)

	var queue []frontierStep
	for _, seed := range cfg.SeedNodes {
		if !g.HasNode(seed) {
			continue
		}
		isSeed[seed] = true
		if cur, ok := best[seed]; !ok || 1.0 > cur {
			best[seed] = 1.0
		}
		depthOf[seed] = 0
		queue = append(queue, frontierStep{id: seed, score: 1.0, depth: 0})
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= cfg.MaxDepth {
			continue
		}
		for _, nb := range neighbors(g, cur.id, cfg) {
			next := cur.score * decay(nb.edgeType)
			if nb.incoming {
				next *= incomingPenalty
			}
			if next < cfg.MinRelevance {
				continue
			}
			if prev, ok := best[nb.id]; ok && prev >= next {
				continue
			}
			best[nb.id] = next
			depthOf[nb.id] = cur.depth + 1
			queue = append(queue, frontierStep{id: nb.id, score: next, depth: cur.depth + 1})
		}
	}

	var scored []ScoredNode
	for id, score := range best {
		if score < cfg.MinRelevance && !isSeed[id] {
			continue
		}
		n := g.Node(id)
		if n == nil {
			continue
		}
		scored = append(scored, ScoredNode{Node: n, Score: score, Depth: depthOf[id], IsSeed: isSeed[id]})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Node.ID < scored[j].Node.ID
	})

	included := make(map[graph.NodeId]bool, len(scored))
	for _, s := range scored {
		included[s.Node.ID] = true
	}

	var edges []*graph.Edge
	for _, e := range g.Edges() {
		if !allowedEdgeType(cfg, e.Type) {
			continue
		}
		if e.Type == graph.EdgeImplicitlyCoupled && !cfg.IncludeImplicitCouplings {
			continue
		}
		if included[e.Source] && included[e.Target] {
			edges = append(edges, e)
		}
	}

	return &Result{Nodes: scored, Edges: edges}
}

type neighbor struct {
	id       graph.NodeId
	edgeType graph.EdgeType
	incoming bool
}

// neighbors returns every node reachable from id by one hop, both outgoing
// and incoming. ImplicitlyCoupled edges are bidirectional and are already
// emitted in both directions by Graph.OutgoingEdges (via its synthetic
// reverse-key reconstruction), so the incoming pass skips them to avoid
// double-counting and to keep their decay penalty-free in either direction.
func neighbors(g *graph.Graph, id graph.NodeId, cfg Config) []neighbor {
	var out []neighbor
	for _, e := range g.OutgoingEdges(id) {
		if !allowedEdgeType(cfg, e.Type) {
			continue
		}
		if e.Type == graph.EdgeImplicitlyCoupled && !cfg.IncludeImplicitCouplings {
			continue
		}
		other := e.Target
		if other == id {
			other = e.Source
		}
		out = append(out, neighbor{id: other, edgeType: e.Type, incoming: false})
	}
	for _, e := range g.IncomingEdges(id) {
		if e.Type.IsBidirectional() {
			continue
		}
		if !allowedEdgeType(cfg, e.Type) {
			continue
		}
		out = append(out, neighbor{id: e.Source, edgeType: e.Type, incoming: true})
	}
	return out
}
