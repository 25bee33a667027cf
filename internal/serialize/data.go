package serialize

import (
	"time"

	"github.com/garrettyarmo/forge-sub000/internal/graph"
	"github.com/garrettyarmo/forge-sub000/internal/subgraph"
)

// SchemaID identifies the structured-data document's wire shape so
// consumers can detect format drift across forge versions.
const SchemaID = "forge.ecosystem_graph/v1"

// DataDocument is the structured-data format of spec.md §4.8(2). It is
// never truncated: every node and edge in the input subgraph appears.
type DataDocument struct {
	Schema      string       `json:"schema"`
	GeneratedAt time.Time    `json:"generated_at"`
	Query       *DataQuery   `json:"query,omitempty"`
	Nodes       []DataNode   `json:"nodes"`
	Edges       []DataEdge   `json:"edges"`
	Summary     DataSummary  `json:"summary"`
}

// DataQuery records the subgraph extraction parameters that produced this
// document, when it was seeded (omitted for a full-graph dump).
type DataQuery struct {
	Seeds    []graph.NodeId `json:"seeds,omitempty"`
	MaxDepth int            `json:"max_depth,omitempty"`
}

// DataNode is one node's wire representation; fields holding a zero value
// are omitted by the json tags below, per spec.md §4.8's "omit None/empty".
type DataNode struct {
	ID              graph.NodeId            `json:"id"`
	Type            graph.NodeType          `json:"type"`
	DisplayName     string                  `json:"display_name"`
	Relevance       *float64                `json:"relevance,omitempty"`
	Attributes      graph.Attributes        `json:"attributes,omitempty"`
	BusinessContext *graph.BusinessContext  `json:"business_context,omitempty"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
}

// DataEdge is one edge's wire representation.
type DataEdge struct {
	Source   graph.NodeId        `json:"source"`
	Target   graph.NodeId        `json:"target"`
	Type     graph.EdgeType      `json:"type"`
	Metadata graph.EdgeMetadata  `json:"metadata"`
}

// DataSummary reports aggregate counts for quick consumption without
// walking the full node/edge arrays.
type DataSummary struct {
	TotalNodes int                      `json:"total_nodes"`
	TotalEdges int                      `json:"total_edges"`
	ByType     map[graph.NodeType]int   `json:"by_type,omitempty"`
}

// Data builds the structured-data document from sub, optionally recording
// query as the seeds/depth that produced it (pass nil for a full dump).
func Data(sub *subgraph.Result, query *DataQuery, now time.Time) *DataDocument {
	doc := &DataDocument{
		Schema:      SchemaID,
		GeneratedAt: now,
		Query:       query,
		Summary:     DataSummary{ByType: map[graph.NodeType]int{}},
	}

	for _, n := range sub.Nodes {
		score := n.Score
		relevance := &score
		var bc *graph.BusinessContext
		if n.Node.Context != nil && !n.Node.Context.IsEmpty() {
			bc = n.Node.Context
		}
		doc.Nodes = append(doc.Nodes, DataNode{
			ID:              n.Node.ID,
			Type:            n.Node.Type,
			DisplayName:     n.Node.DisplayName,
			Relevance:       relevance,
			Attributes:      n.Node.Attributes,
			BusinessContext: bc,
			CreatedAt:       n.Node.Meta.CreatedAt,
			UpdatedAt:       n.Node.Meta.UpdatedAt,
		})
		doc.Summary.ByType[n.Node.Type]++
	}
	doc.Summary.TotalNodes = len(doc.Nodes)

	for _, e := range sub.Edges {
		doc.Edges = append(doc.Edges, DataEdge{
			Source:   e.Source,
			Target:   e.Target,
			Type:     e.Type,
			Metadata: e.Meta,
		})
	}
	doc.Summary.TotalEdges = len(doc.Edges)

	return doc
}
