// Package coupling infers resource ownership and synthesizes shared-access
// and implicit-coupling edges over an already-built graph (spec.md §4.5,
// §4.6).
package coupling

import (
	"sort"

	"github.com/garrettyarmo/forge-sub000/internal/graph"
)

// AccessEvidence records one observed (service, resource) access, carried
// forward from the edge that produced it.
type AccessEvidence struct {
	Evidence string
	EdgeType graph.EdgeType
}

// ResourceAccess is the per-resource row of the access map built in spec.md
// §4.5: who reads it, who writes it, who (if anyone) already owns it, and the
// evidence backing each (service, resource) pair.
type ResourceAccess struct {
	Resource graph.NodeId
	Readers  map[graph.NodeId]bool
	Writers  map[graph.NodeId]bool
	Owner    graph.NodeId // empty if none
	Evidence map[graph.NodeId][]AccessEvidence
}

func newResourceAccess(id graph.NodeId) *ResourceAccess {
	return &ResourceAccess{
		Resource: id,
		Readers:  make(map[graph.NodeId]bool),
		Writers:  make(map[graph.NodeId]bool),
		Evidence: make(map[graph.NodeId][]AccessEvidence),
	}
}

// Accessors returns the union of readers and writers (and the owner, if any),
// sorted for deterministic pair enumeration.
func (ra *ResourceAccess) Accessors() []graph.NodeId {
	set := make(map[graph.NodeId]bool, len(ra.Readers)+len(ra.Writers)+1)
	for id := range ra.Readers {
		set[id] = true
	}
	for id := range ra.Writers {
		set[id] = true
	}
	if ra.Owner != "" {
		set[ra.Owner] = true
	}
	out := make([]graph.NodeId, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (ra *ResourceAccess) addEvidence(service graph.NodeId, e *graph.Edge) {
	ev := AccessEvidence{EdgeType: e.Type}
	if len(e.Meta.Evidence) > 0 {
		ev.Evidence = e.Meta.Evidence[len(e.Meta.Evidence)-1]
	}
	ra.Evidence[service] = append(ra.Evidence[service], ev)
}

// BuildAccessMap walks every edge in g once, classifying contributions per
// spec.md §4.5: Reads/ReadsShared/Subscribes/Uses contribute to readers,
// Writes/WritesShared/Publishes to writers, and a pre-existing Owns edge
// seeds the owner.
func BuildAccessMap(g *graph.Graph) map[graph.NodeId]*ResourceAccess {
	access := make(map[graph.NodeId]*ResourceAccess)
	get := func(id graph.NodeId) *ResourceAccess {
		ra, ok := access[id]
		if !ok {
			ra = newResourceAccess(id)
			access[id] = ra
		}
		return ra
	}
	for _, e := range g.Edges() {
		switch e.Type {
		case graph.EdgeReads, graph.EdgeReadsShared, graph.EdgeSubscribes, graph.EdgeUses:
			ra := get(e.Target)
			ra.Readers[e.Source] = true
			ra.addEvidence(e.Source, e)
		case graph.EdgeWrites, graph.EdgeWritesShared, graph.EdgePublishes:
			ra := get(e.Target)
			ra.Writers[e.Source] = true
			ra.addEvidence(e.Source, e)
		case graph.EdgeOwns:
			ra := get(e.Target)
			ra.Owner = e.Source
		}
	}
	return access
}
