package serialize

import (
	"github.com/garrettyarmo/forge-sub000/internal/graph"
	"github.com/garrettyarmo/forge-sub000/internal/subgraph"
)

// headerReserve is the fixed token allowance spec.md §4.8 sets aside for a
// format's boilerplate (title, section headers, schema preamble) before the
// per-node walk begins.
const headerReserve = 40

// renderFunc renders a node at a given detail level; callers supply a
// format-specific renderer (document section, diagram node line, ...).
type renderFunc func(n subgraph.ScoredNode, detail DetailLevel) string

// edgeMarginFunc estimates the token cost the node's incident edges would
// add if included, reserved up front so a node is never accepted only to
// have all its edges dropped for lack of remaining budget.
type edgeMarginFunc func(n subgraph.ScoredNode) int

// selection records, per included node, the detail level it was rendered
// at and its rendered text (so callers don't re-render).
type selection struct {
	order  []graph.NodeId
	detail map[graph.NodeId]DetailLevel
	text   map[graph.NodeId]string
	tokens int
}

func newSelection() *selection {
	return &selection{detail: map[graph.NodeId]DetailLevel{}, text: map[graph.NodeId]string{}}
}

func (s *selection) includes(id graph.NodeId) bool {
	_, ok := s.detail[id]
	return ok
}

// selectByBudget walks nodes (already sorted relevance-descending, ties by
// NodeId, per subgraph.Extract's contract) choosing a detail level per
// spec.md §4.8's thresholds, including a node only if its rendered cost plus
// an edge margin still fits the remaining budget. If the budget is
// exhausted before the first (highest-relevance) node is included, that
// node is force-included at Minimal detail so the caller always gets at
// least the top seed, per spec.md §9's Open Question resolution.
func selectByBudget(counter Counter, budget int, nodes []subgraph.ScoredNode, render renderFunc, margin edgeMarginFunc) *selection {
	sel := newSelection()
	remaining := budget - headerReserve
	if remaining < 0 {
		remaining = 0
	}

	for i, n := range nodes {
		detail := detailFor(n.Score)
		text := render(n, detail)
		cost := counter.Count(text) + margin(n)

		if cost > remaining {
			if i == 0 && len(sel.order) == 0 {
				// Guarantee at least the top node, degraded to Minimal.
				minimalText := render(n, DetailMinimal)
				minimalCost := counter.Count(minimalText)
				sel.detail[n.Node.ID] = DetailMinimal
				sel.text[n.Node.ID] = minimalText
				sel.order = append(sel.order, n.Node.ID)
				sel.tokens += minimalCost
				remaining -= minimalCost
				if remaining < 0 {
					remaining = 0
				}
			}
			continue
		}

		sel.detail[n.Node.ID] = detail
		sel.text[n.Node.ID] = text
		sel.order = append(sel.order, n.Node.ID)
		sel.tokens += cost
		remaining -= cost
	}

	return sel
}

// filterEdges keeps only edges whose endpoints are both in sel.
func filterEdges(edges []*graph.Edge, sel *selection) []*graph.Edge {
	out := make([]*graph.Edge, 0, len(edges))
	for _, e := range edges {
		if sel.includes(e.Source) && sel.includes(e.Target) {
			out = append(out, e)
		}
	}
	return out
}
