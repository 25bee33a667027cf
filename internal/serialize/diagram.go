package serialize

import (
	"fmt"
	"sort"
	"strings"

	"github.com/garrettyarmo/forge-sub000/internal/graph"
	"github.com/garrettyarmo/forge-sub000/internal/subgraph"
)

// Direction is the closed set of flowchart layout directions (spec.md
// §4.8(3)).
type Direction string

const (
	DirectionLR Direction = "LR"
	DirectionRL Direction = "RL"
	DirectionTB Direction = "TB"
	DirectionBT Direction = "BT"
)

// shapeFor returns the brackets around a node's label per its type, matching the
// mermaid-style shape vocabulary spec.md §4.8(3) names: rectangle,
// cylinder, asymmetric (flag), hexagon, stadium.
func shapeFor(t graph.NodeType) (open, close string) {
	switch t {
	case graph.NodeService:
		return "[", "]" // rectangle
	case graph.NodeDatabase:
		return "[(", ")]" // cylinder
	case graph.NodeAPI:
		return ">", "]" // asymmetric/flag
	case graph.NodeQueue:
		return "{{", "}}" // hexagon
	case graph.NodeCloudResource:
		return "([", "])" // stadium
	default:
		return "[", "]"
	}
}

var sanitizer = strings.NewReplacer(":", "_", "-", "_", "/", "_")

func sanitizeID(id graph.NodeId) string {
	return sanitizer.Replace(string(id))
}

// Diagram renders the flowchart format of spec.md §4.8(3), truncated to fit
// budget tokens; pass budget <= 0 for an unbounded render.
func Diagram(sub *subgraph.Result, direction Direction, counter Counter, budget int) string {
	render := func(n subgraph.ScoredNode, detail DetailLevel) string {
		return diagramNodeLine(n, detail)
	}
	margin := func(n subgraph.ScoredNode) int { return 6 }

	effectiveBudget := budget
	if effectiveBudget <= 0 {
		effectiveBudget = 1 << 30
	}
	sel := selectByBudget(counter, effectiveBudget, sub.Nodes, render, margin)
	finalEdges := filterEdges(sub.Edges, sel)

	byType := make(map[graph.NodeType][]graph.NodeId)
	for _, id := range sel.order {
		n := nodeByID(sub.Nodes, id)
		byType[n.Node.Type] = append(byType[n.Node.Type], id)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "flowchart %s\n", direction)

	for _, nt := range nodeTypeOrder {
		ids := byType[nt]
		if len(ids) == 0 {
			continue
		}
		fmt.Fprintf(&b, "  subgraph %s[%ss]\n", strings.ToLower(string(nt)), nt)
		for _, id := range ids {
			b.WriteString("    ")
			b.WriteString(sel.text[id])
			b.WriteString("\n")
		}
		b.WriteString("  end\n")
	}

	sort.Slice(finalEdges, func(i, j int) bool {
		if finalEdges[i].Source != finalEdges[j].Source {
			return finalEdges[i].Source < finalEdges[j].Source
		}
		return finalEdges[i].Target < finalEdges[j].Target
	})
	for _, e := range finalEdges {
		arrow := "-->"
		if e.Type == graph.EdgeImplicitlyCoupled {
			arrow = "-.->"
		}
		fmt.Fprintf(&b, "  %s %s|%s| %s\n", sanitizeID(e.Source), arrow, e.Type, sanitizeID(e.Target))
	}

	return b.String()
}

func diagramNodeLine(n subgraph.ScoredNode, detail DetailLevel) string {
	open, close := shapeFor(n.Node.Type)
	label := n.Node.DisplayName
	if detail == DetailFull {
		label = fmt.Sprintf("%s (%.2f)", n.Node.DisplayName, n.Score)
	}
	return fmt.Sprintf("%s%s%s%s", sanitizeID(n.Node.ID), open, label, close)
}

func nodeByID(nodes []subgraph.ScoredNode, id graph.NodeId) subgraph.ScoredNode {
	for _, n := range nodes {
		if n.Node.ID == id {
			return n
		}
	}
	return subgraph.ScoredNode{}
}
