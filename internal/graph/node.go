package graph

import (
	"fmt"
	"time"
)

// Node is a vertex in the surveyed knowledge graph.
type Node struct {
	ID          NodeId           `json:"id"`
	Type        NodeType         `json:"type"`
	DisplayName string           `json:"display_name"`
	Attributes  Attributes       `json:"attributes,omitempty"`
	Context     *BusinessContext `json:"business_context,omitempty"`
	Meta        Metadata         `json:"metadata"`
}

// NewNode constructs a Node and validates spec.md §3.1 invariants (a) and (b):
// the NodeId's embedded type must agree with Type, and DisplayName must be
// non-empty.
func NewNode(id NodeId, t NodeType, displayName string, attrs Attributes, meta Metadata) (*Node, error) {
	if id.Type() != t {
		return nil, fmt.Errorf("graph: NodeId %q type disagrees with NodeType %q", id, t)
	}
	if displayName == "" {
		return nil, fmt.Errorf("graph: display_name must not be empty for node %q", id)
	}
	return &Node{
		ID:          id,
		Type:        t,
		DisplayName: displayName,
		Attributes:  attrs,
		Meta:        meta,
	}, nil
}

// Validate re-checks the node-level invariants, used on graph load.
func (n *Node) Validate() error {
	if n.ID.Type() != n.Type {
		return fmt.Errorf("graph: node %q: id type disagrees with node_type %q", n.ID, n.Type)
	}
	if n.DisplayName == "" {
		return fmt.Errorf("graph: node %q: display_name must not be empty", n.ID)
	}
	if n.Meta.CreatedAt.After(n.Meta.UpdatedAt) {
		return fmt.Errorf("graph: node %q: created_at is after updated_at", n.ID)
	}
	return nil
}

// MergeAttributesAndEvidence folds a later observation of the same logical
// node into n: attributes merge (incoming wins on conflicting keys, matching
// the dedup rule in spec.md §4.4), and n.Meta.UpdatedAt advances.
func (n *Node) MergeAttributesAndEvidence(attrs Attributes, now time.Time) {
	if n.Attributes == nil {
		n.Attributes = make(Attributes)
	}
	n.Attributes = n.Attributes.Merge(attrs)
	n.Meta.Touch(now)
}

// EnsureContext lazily allocates the BusinessContext so callers can set
// fields directly without nil-checking at every call site.
func (n *Node) EnsureContext() *BusinessContext {
	if n.Context == nil {
		n.Context = &BusinessContext{}
	}
	return n.Context
}
