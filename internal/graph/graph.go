package graph

import (
	"fmt"
	"sort"
	"time"
)

// GraphMeta is the top-level metadata carried alongside the node/edge lists.
type GraphMeta struct {
	CreatorVersion string    `json:"creator_version"`
	CreatedAt      time.Time `json:"created_at"`
	ModifiedAt     time.Time `json:"modified_at"`
	SurveyCount    int       `json:"survey_count"`

	// Extra holds unknown top-level metadata fields, preserved across load/save.
	Extra map[string]interface{} `json:"-"`
}

// Graph is a labelled directed multigraph keyed by NodeId. It is the arena
// described in spec.md §9: nodes and edges are stored by key, never by
// pointer, so cycles (A calls B, B calls A) are trivially representable.
type Graph struct {
	Meta  GraphMeta
	nodes map[NodeId]*Node
	edges map[Key]*Edge
	// incident indexes outgoing/incoming edge keys per node for O(1) removal
	// and BFS traversal without scanning the full edge map.
	outgoing map[NodeId]map[Key]struct{}
	incoming map[NodeId]map[Key]struct{}
}

// New returns an empty Graph stamped with the given creator version and time.
func New(creatorVersion string, now time.Time) *Graph {
	return &Graph{
		Meta:     GraphMeta{CreatorVersion: creatorVersion, CreatedAt: now, ModifiedAt: now},
		nodes:    make(map[NodeId]*Node),
		edges:    make(map[Key]*Edge),
		outgoing: make(map[NodeId]map[Key]struct{}),
		incoming: make(map[NodeId]map[Key]struct{}),
	}
}

// UpsertNode inserts n, or merges attributes into an existing node sharing
// n's ID (dedup semantics live in internal/builder; this is the primitive
// the builder calls).
func (g *Graph) UpsertNode(n *Node) error {
	if err := n.Validate(); err != nil {
		return err
	}
	if existing, ok := g.nodes[n.ID]; ok {
		existing.MergeAttributesAndEvidence(n.Attributes, n.Meta.UpdatedAt)
		if existing.Context == nil && n.Context != nil {
			existing.Context = n.Context
		} else if existing.Context != nil && n.Context != nil {
			existing.Context.MergeFrom(n.Context)
		}
		return nil
	}
	g.nodes[n.ID] = n
	if _, ok := g.outgoing[n.ID]; !ok {
		g.outgoing[n.ID] = make(map[Key]struct{})
	}
	if _, ok := g.incoming[n.ID]; !ok {
		g.incoming[n.ID] = make(map[Key]struct{})
	}
	return nil
}

// Node returns the node with the given ID, or nil if absent.
func (g *Graph) Node(id NodeId) *Node { return g.nodes[id] }

// HasNode reports whether id is present.
func (g *Graph) HasNode(id NodeId) bool { _, ok := g.nodes[id]; return ok }

// Nodes returns all nodes, sorted by NodeId for deterministic iteration
// (spec.md §9: "every collection that iterates for serialization must be
// ordered").
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// NodesByType returns nodes of the given type, sorted by NodeId.
func (g *Graph) NodesByType(t NodeType) []*Node {
	var out []*Node
	for _, n := range g.nodes {
		if n.Type == t {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RemoveNode deletes n and, atomically from the caller's perspective, every
// incident edge (spec.md §3.2 invariant (d)).
func (g *Graph) RemoveNode(id NodeId) {
	if !g.HasNode(id) {
		return
	}
	for k := range g.outgoing[id] {
		g.removeEdgeKey(k)
	}
	for k := range g.incoming[id] {
		g.removeEdgeKey(k)
	}
	delete(g.nodes, id)
	delete(g.outgoing, id)
	delete(g.incoming, id)
}

func (g *Graph) removeEdgeKey(k Key) {
	delete(g.edges, k)
	if m, ok := g.outgoing[k.Source]; ok {
		delete(m, k)
	}
	if m, ok := g.incoming[k.Target]; ok {
		delete(m, k)
	}
	if k.Type.IsBidirectional() {
		rk := Key{Source: k.Target, Target: k.Source, Type: k.Type}
		delete(g.edges, rk)
		if m, ok := g.outgoing[k.Target]; ok {
			delete(m, rk)
		}
		if m, ok := g.incoming[k.Source]; ok {
			delete(m, rk)
		}
	}
}

// UpsertEdge inserts e, replacing in-place metadata for an existing edge
// sharing e's Key (spec.md §3.2 invariant (b): at most one edge per triple).
// Both endpoints must already be present (invariant (c)). Edges already
// marked Confirmed are never overwritten (spec.md §4.6 "Application").
func (g *Graph) UpsertEdge(e *Edge) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if !g.HasNode(e.Source) {
		return fmt.Errorf("graph: edge source %q not present in graph", e.Source)
	}
	if !g.HasNode(e.Target) {
		return fmt.Errorf("graph: edge target %q not present in graph", e.Target)
	}
	key := e.Key()
	if existing, ok := g.edges[key]; ok {
		if existing.Meta.Confirmed {
			return nil
		}
		*existing = *e
		existing.Meta.Confirmed = false
		return nil
	}
	g.edges[key] = e
	g.outgoing[e.Source][key] = struct{}{}
	g.incoming[e.Target][key] = struct{}{}
	if e.Type.IsBidirectional() {
		rk := Key{Source: e.Target, Target: e.Source, Type: e.Type}
		g.outgoing[e.Target][rk] = struct{}{}
		g.incoming[e.Source][rk] = struct{}{}
	}
	return nil
}

// Edge returns the edge for key, or nil if absent.
func (g *Graph) Edge(key Key) *Edge { return g.edges[key] }

// Edges returns all edges, sorted by (source, type, target) for determinism.
func (g *Graph) Edges() []*Edge {
	out := make([]*Edge, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Target < out[j].Target
	})
	return out
}

// OutgoingEdges returns edges whose source is id, plus any bidirectional
// edge stored under the other direction (returned as stored, so its Source
// is the other endpoint), sorted deterministically.
func (g *Graph) OutgoingEdges(id NodeId) []*Edge {
	keys := g.outgoing[id]
	out := make([]*Edge, 0, len(keys))
	for k := range keys {
		if e, ok := g.edges[k]; ok {
			out = append(out, e)
		} else if k.Source == id {
			// synthetic reverse key for a bidirectional edge stored under the
			// canonical (other) direction; return the stored edge as is.
			if orig, ok2 := g.edges[Key{Source: k.Target, Target: k.Source, Type: k.Type}]; ok2 {
				out = append(out, orig)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Target != out[j].Target {
			return out[i].Target < out[j].Target
		}
		return out[i].Type < out[j].Type
	})
	return out
}

// IncomingEdges returns edges whose target is id, sorted deterministically.
func (g *Graph) IncomingEdges(id NodeId) []*Edge {
	keys := g.incoming[id]
	out := make([]*Edge, 0, len(keys))
	for k := range keys {
		if e, ok := g.edges[k]; ok {
			out = append(out, e)
		} else if k.Target == id {
			if orig, ok2 := g.edges[Key{Source: k.Target, Target: k.Source, Type: k.Type}]; ok2 {
				out = append(out, orig)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Type < out[j].Type
	})
	return out
}

// NodeCount and EdgeCount support summary blocks in the serializers.
func (g *Graph) NodeCount() int { return len(g.nodes) }
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Touch advances ModifiedAt and increments SurveyCount; called once per
// completed survey run.
func (g *Graph) Touch(now time.Time) {
	g.Meta.ModifiedAt = now
	g.Meta.SurveyCount++
}
