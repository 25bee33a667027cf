package serialize

import (
	"fmt"
	"sort"
	"strings"

	"github.com/garrettyarmo/forge-sub000/internal/coupling"
	"github.com/garrettyarmo/forge-sub000/internal/graph"
	"github.com/garrettyarmo/forge-sub000/internal/subgraph"
)

// nodeTypeOrder fixes the section order of the structured document: services
// first (the primary unit of ownership), then the resources they depend on.
var nodeTypeOrder = []graph.NodeType{
	graph.NodeService, graph.NodeAPI, graph.NodeDatabase, graph.NodeQueue, graph.NodeCloudResource,
}

func riskFromConfidence(confidence *float64) graph.CouplingRisk {
	if confidence == nil {
		return graph.RiskLow
	}
	switch {
	case *confidence >= graph.RiskHigh.Confidence():
		return graph.RiskHigh
	case *confidence >= graph.RiskMedium.Confidence():
		return graph.RiskMedium
	default:
		return graph.RiskLow
	}
}

// Document renders the structured-document format of spec.md §4.8(1),
// truncated to fit budget tokens (header + per-node walk); pass budget <= 0
// for an unbounded render.
func Document(g *graph.Graph, sub *subgraph.Result, counter Counter, budget int) string {
	nodeIndex := make(map[graph.NodeId]*graph.Node, len(sub.Nodes))
	for _, n := range sub.Nodes {
		nodeIndex[n.Node.ID] = n.Node
	}
	accessMap := coupling.BuildAccessMap(g)

	outOf := make(map[graph.NodeId][]*graph.Edge)
	inOf := make(map[graph.NodeId][]*graph.Edge)
	for _, e := range sub.Edges {
		outOf[e.Source] = append(outOf[e.Source], e)
		if e.Source != e.Target {
			inOf[e.Target] = append(inOf[e.Target], e)
		}
	}

	render := func(n subgraph.ScoredNode, detail DetailLevel) string {
		return renderNodeSection(n, detail, outOf[n.Node.ID], inOf[n.Node.ID], accessMap[n.Node.ID], nodeIndex)
	}
	margin := func(n subgraph.ScoredNode) int {
		return 8 * (len(outOf[n.Node.ID]) + len(inOf[n.Node.ID]))
	}

	effectiveBudget := budget
	if effectiveBudget <= 0 {
		effectiveBudget = 1 << 30
	}
	sel := selectByBudget(counter, effectiveBudget, sub.Nodes, render, margin)
	finalEdges := filterEdges(sub.Edges, sel)

	finalOutOf := make(map[graph.NodeId][]*graph.Edge)
	finalInOf := make(map[graph.NodeId][]*graph.Edge)
	for _, e := range finalEdges {
		finalOutOf[e.Source] = append(finalOutOf[e.Source], e)
		if e.Source != e.Target {
			finalInOf[e.Target] = append(finalInOf[e.Target], e)
		}
	}

	byType := make(map[graph.NodeType][]subgraph.ScoredNode)
	scoredByID := make(map[graph.NodeId]subgraph.ScoredNode, len(sub.Nodes))
	for _, n := range sub.Nodes {
		scoredByID[n.Node.ID] = n
	}
	for _, id := range sel.order {
		n := scoredByID[id]
		byType[n.Node.Type] = append(byType[n.Node.Type], n)
	}

	var b strings.Builder
	b.WriteString("# Ecosystem survey\n\n")

	for _, nt := range nodeTypeOrder {
		nodes := byType[nt]
		if len(nodes) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %ss\n\n", nt)
		for _, n := range nodes {
			detail := sel.detail[n.Node.ID]
			b.WriteString(renderNodeSection(n, detail, finalOutOf[n.Node.ID], finalInOf[n.Node.ID], accessMap[n.Node.ID], nodeIndex))
			b.WriteString("\n")
		}
	}

	b.WriteString("## Implicit coupling risk summary\n\n")
	b.WriteString("| A | B | risk | reason |\n|---|---|---|---|\n")
	for _, e := range finalEdges {
		if e.Type != graph.EdgeImplicitlyCoupled {
			continue
		}
		risk := riskFromConfidence(e.Meta.Confidence)
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", e.Source, e.Target, risk, e.Meta.Reason)
	}

	return b.String()
}

func renderNodeSection(n subgraph.ScoredNode, detail DetailLevel, outEdges, inEdges []*graph.Edge, access *coupling.ResourceAccess, nodeIndex map[graph.NodeId]*graph.Node) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### %s (%s)\n", n.Node.DisplayName, n.Node.Type)

	if detail == DetailMinimal {
		fmt.Fprintf(&b, "- id: %s\n", n.Node.ID)
		return b.String()
	}

	fmt.Fprintf(&b, "- id: %s\n- relevance: %.2f\n", n.Node.ID, n.Score)

	if detail == DetailFull {
		for _, k := range n.Node.Attributes.SortedKeys() {
			fmt.Fprintf(&b, "- %s: %v\n", k, n.Node.Attributes[k])
		}
		if n.Node.Context != nil && !n.Node.Context.IsEmpty() {
			if n.Node.Context.Purpose != "" {
				fmt.Fprintf(&b, "- purpose: %s\n", n.Node.Context.Purpose)
			}
			if n.Node.Context.Owner != "" {
				fmt.Fprintf(&b, "- owner: %s\n", n.Node.Context.Owner)
			}
		}
	}

	if len(outEdges) > 0 {
		b.WriteString("\nDependencies:\n\n| target | type | evidence |\n|---|---|---|\n")
		for _, e := range sortEdgesByTarget(outEdges) {
			target := e.Target
			if e.Target == n.Node.ID {
				target = e.Source
			}
			shown, more := truncateEvidence(e.Meta.Evidence)
			ev := strings.Join(shown, "; ")
			if more > 0 {
				ev = fmt.Sprintf("%s (+%d more)", ev, more)
			}
			fmt.Fprintf(&b, "| %s | %s | %s |\n", displayOf(target, nodeIndex), e.Type, ev)
		}
	}

	if detail == DetailFull && len(inEdges) > 0 {
		b.WriteString("\nDependents:\n\n| source | type |\n|---|---|\n")
		for _, e := range sortEdgesBySource(inEdges) {
			source := e.Source
			if e.Source == n.Node.ID {
				source = e.Target
			}
			fmt.Fprintf(&b, "| %s | %s |\n", displayOf(source, nodeIndex), e.Type)
		}
	}

	if detail == DetailFull && (n.Node.Type == graph.NodeDatabase || n.Node.Type == graph.NodeQueue) && access != nil {
		if access.Owner != "" {
			fmt.Fprintf(&b, "\nOwner: %s\n", displayOf(access.Owner, nodeIndex))
		}
		if accessors := access.Accessors(); len(accessors) > 0 {
			names := make([]string, 0, len(accessors))
			for _, a := range accessors {
				names = append(names, displayOf(a, nodeIndex))
			}
			fmt.Fprintf(&b, "Accessors: %s\n", strings.Join(names, ", "))
		}
	}

	couplings := couplingsFor(outEdges, inEdges, n.Node.ID)
	if detail == DetailFull && len(couplings) > 0 {
		b.WriteString("\nImplicit couplings:\n\n")
		for _, c := range couplings {
			other := c.Target
			if c.Target == n.Node.ID {
				other = c.Source
			}
			risk := riskFromConfidence(c.Meta.Confidence)
			fmt.Fprintf(&b, "- %s (risk: %s)\n", displayOf(other, nodeIndex), risk)
		}
	}

	return b.String()
}

func couplingsFor(outEdges, inEdges []*graph.Edge, id graph.NodeId) []*graph.Edge {
	var out []*graph.Edge
	seen := make(map[graph.Key]bool)
	for _, e := range append(append([]*graph.Edge{}, outEdges...), inEdges...) {
		if e.Type != graph.EdgeImplicitlyCoupled {
			continue
		}
		key := e.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	return out
}

func displayOf(id graph.NodeId, nodeIndex map[graph.NodeId]*graph.Node) string {
	if n, ok := nodeIndex[id]; ok {
		return n.DisplayName
	}
	return string(id)
}

func sortEdgesByTarget(edges []*graph.Edge) []*graph.Edge {
	out := append([]*graph.Edge{}, edges...)
	sort.Slice(out, func(i, j int) bool { return out[i].Target < out[j].Target })
	return out
}

func sortEdgesBySource(edges []*graph.Edge) []*graph.Edge {
	out := append([]*graph.Edge{}, edges...)
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}
