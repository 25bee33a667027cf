package graph

import (
	"fmt"
	"time"
)

// Edge is a directed (except ImplicitlyCoupled, which is stored once per
// unordered pair) relationship between two nodes.
type Edge struct {
	Source NodeId       `json:"source"`
	Target NodeId       `json:"target"`
	Type   EdgeType     `json:"type"`
	Meta   EdgeMetadata `json:"metadata"`
}

// Key identifies an edge's (source, target, type) triple — at most one edge
// per key may exist in a Graph (spec.md §3.2 invariant (b)).
type Key struct {
	Source NodeId
	Target NodeId
	Type   EdgeType
}

func (e *Edge) Key() Key { return Key{Source: e.Source, Target: e.Target, Type: e.Type} }

// NewEdge validates the (source_type, edge_type, target_type) permitted
// table (spec.md §3.2 invariant (a)) and constructs an Edge.
func NewEdge(source NodeId, edgeType EdgeType, target NodeId, now time.Time) (*Edge, error) {
	st, tt := source.Type(), target.Type()
	if !ValidEndpoints(st, edgeType, tt) {
		return nil, fmt.Errorf("graph: edge type %s does not permit %s -> %s", edgeType, st, tt)
	}
	return &Edge{
		Source: source,
		Target: target,
		Type:   edgeType,
		Meta:   EdgeMetadata{DiscoveredAt: now},
	}, nil
}

// Validate re-checks the endpoint-type invariant, used on graph load.
func (e *Edge) Validate() error {
	if !ValidEndpoints(e.Source.Type(), e.Type, e.Target.Type()) {
		return fmt.Errorf("graph: edge %s -%s-> %s violates the permitted endpoint table", e.Source, e.Type, e.Target)
	}
	return nil
}

// canonicalPair returns (a, b) ordered so that an unordered pair always
// produces the same Key regardless of discovery order. Nothing in this
// package calls it; UpsertEdge stores an edge under the Key it is given.
func canonicalPair(a, b NodeId) (NodeId, NodeId) {
	if a <= b {
		return a, b
	}
	return b, a
}
