// Package graph implements the surveyed knowledge graph: nodes, edges, their
// type-validated construction, and deterministic persistence.
package graph

import "fmt"

// NodeType is a closed enumeration of the kinds of vertex the graph holds.
type NodeType string

const (
	NodeService       NodeType = "Service"
	NodeAPI           NodeType = "Api"
	NodeDatabase      NodeType = "Database"
	NodeQueue         NodeType = "Queue"
	NodeCloudResource NodeType = "CloudResource"
)

// Tag returns the lowercased tag used in NodeId construction and on-disk
// serialization (e.g. "service", "cloud_resource").
func (t NodeType) Tag() string {
	switch t {
	case NodeService:
		return "service"
	case NodeAPI:
		return "api"
	case NodeDatabase:
		return "database"
	case NodeQueue:
		return "queue"
	case NodeCloudResource:
		return "cloud_resource"
	default:
		return ""
	}
}

// ParseNodeType parses a lowercased tag back into a NodeType.
func ParseNodeType(tag string) (NodeType, error) {
	switch tag {
	case "service":
		return NodeService, nil
	case "api":
		return NodeAPI, nil
	case "database":
		return NodeDatabase, nil
	case "queue":
		return NodeQueue, nil
	case "cloud_resource":
		return NodeCloudResource, nil
	default:
		return "", fmt.Errorf("graph: unknown node type tag %q", tag)
	}
}

func (t NodeType) Valid() bool { return t.Tag() != "" }

// EdgeType is a closed enumeration of relationship kinds between nodes.
type EdgeType string

const (
	EdgeCalls              EdgeType = "Calls"
	EdgeOwns               EdgeType = "Owns"
	EdgeReads              EdgeType = "Reads"
	EdgeWrites             EdgeType = "Writes"
	EdgePublishes          EdgeType = "Publishes"
	EdgeSubscribes         EdgeType = "Subscribes"
	EdgeUses               EdgeType = "Uses"
	EdgeReadsShared        EdgeType = "ReadsShared"
	EdgeWritesShared       EdgeType = "WritesShared"
	EdgeImplicitlyCoupled  EdgeType = "ImplicitlyCoupled"
)

// Wire returns the SCREAMING_SNAKE_CASE on-disk spelling for an edge type.
func (t EdgeType) Wire() string {
	switch t {
	case EdgeCalls:
		return "CALLS"
	case EdgeOwns:
		return "OWNS"
	case EdgeReads:
		return "READS"
	case EdgeWrites:
		return "WRITES"
	case EdgePublishes:
		return "PUBLISHES"
	case EdgeSubscribes:
		return "SUBSCRIBES"
	case EdgeUses:
		return "USES"
	case EdgeReadsShared:
		return "READS_SHARED"
	case EdgeWritesShared:
		return "WRITES_SHARED"
	case EdgeImplicitlyCoupled:
		return "IMPLICITLY_COUPLED"
	default:
		return ""
	}
}

// ParseEdgeType parses the SCREAMING_SNAKE_CASE wire spelling back to an EdgeType.
func ParseEdgeType(wire string) (EdgeType, error) {
	for _, t := range []EdgeType{
		EdgeCalls, EdgeOwns, EdgeReads, EdgeWrites, EdgePublishes,
		EdgeSubscribes, EdgeUses, EdgeReadsShared, EdgeWritesShared, EdgeImplicitlyCoupled,
	} {
		if t.Wire() == wire {
			return t, nil
		}
	}
	return "", fmt.Errorf("graph: unknown edge type wire form %q", wire)
}

// permittedEndpoints enumerates, per EdgeType, the allowed (source, target)
// NodeType combinations. Construction of an Edge validates against this table.
var permittedEndpoints = map[EdgeType]struct {
	sources []NodeType
	targets []NodeType
}{
	EdgeCalls:             {[]NodeType{NodeService}, []NodeType{NodeService, NodeAPI}},
	EdgeOwns:              {[]NodeType{NodeService}, []NodeType{NodeAPI, NodeDatabase, NodeQueue}},
	EdgeReads:             {[]NodeType{NodeService}, []NodeType{NodeDatabase}},
	EdgeWrites:            {[]NodeType{NodeService}, []NodeType{NodeDatabase}},
	EdgePublishes:         {[]NodeType{NodeService}, []NodeType{NodeQueue}},
	EdgeSubscribes:        {[]NodeType{NodeService}, []NodeType{NodeQueue}},
	EdgeUses:              {[]NodeType{NodeService}, []NodeType{NodeCloudResource}},
	EdgeReadsShared:       {[]NodeType{NodeService}, []NodeType{NodeDatabase, NodeQueue}},
	EdgeWritesShared:      {[]NodeType{NodeService}, []NodeType{NodeDatabase, NodeQueue}},
	EdgeImplicitlyCoupled: {[]NodeType{NodeService}, []NodeType{NodeService}},
}

// ValidEndpoints reports whether (source, edge, target) satisfies the
// permitted-type table in spec.md §3.2.
func ValidEndpoints(source NodeType, edge EdgeType, target NodeType) bool {
	rule, ok := permittedEndpoints[edge]
	if !ok {
		return false
	}
	return containsType(rule.sources, source) && containsType(rule.targets, target)
}

func containsType(list []NodeType, t NodeType) bool {
	for _, v := range list {
		if v == t {
			return true
		}
	}
	return false
}

// IsBidirectional reports whether the edge type is semantically symmetric.
// Only ImplicitlyCoupled is; it is stored once per unordered pair.
func (t EdgeType) IsBidirectional() bool { return t == EdgeImplicitlyCoupled }

// DiscoverySource tags which phase/parser discovered a node or fact.
type DiscoverySource string

const (
	SourceJSParser       DiscoverySource = "js_ts_parser"
	SourcePythonParser    DiscoverySource = "python_parser"
	SourceTerraformParser DiscoverySource = "terraform_parser"
	SourceCloudFormation  DiscoverySource = "cloudformation_parser"
	SourceCouplingAnalyzer DiscoverySource = "coupling_analyzer"
	SourceAnnotation      DiscoverySource = "annotation"
	SourceUnknown         DiscoverySource = "unknown"
)

// CouplingRisk is the closed risk classification for implicit coupling edges.
type CouplingRisk string

const (
	RiskHigh   CouplingRisk = "High"
	RiskMedium CouplingRisk = "Medium"
	RiskLow    CouplingRisk = "Low"
)

func (r CouplingRisk) Confidence() float64 {
	switch r {
	case RiskHigh:
		return 0.95
	case RiskMedium:
		return 0.80
	case RiskLow:
		return 0.60
	default:
		return 0
	}
}
