package coupling

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/garrettyarmo/forge-sub000/internal/graph"
	"github.com/garrettyarmo/forge-sub000/internal/logging"
)

// OwnershipInference is one Phase-1 result: a resource assigned an owner by
// one of the heuristics in spec.md §4.6.
type OwnershipInference struct {
	Resource   graph.NodeId
	Owner      graph.NodeId
	Confidence float64
	Reason     string
}

// CouplingPair is one Phase-2 result: an unordered service pair sharing one
// or more resources, with an accumulated risk classification.
type CouplingPair struct {
	A, B      graph.NodeId // A < B, canonical ordering
	Risk      graph.CouplingRisk
	Resources []graph.NodeId
	Reason    string
}

// SharedAccess is one Phase-3 result: a ReadsShared/WritesShared edge to
// synthesize for a non-owner accessor of an owned resource.
type SharedAccess struct {
	Service  graph.NodeId
	Resource graph.NodeId
	EdgeType graph.EdgeType
	Evidence []string
}

// Result bundles all three phases' output. It is a pure value; nothing is
// mutated in the graph until ApplyToGraph runs (spec.md §4.6: "returns a
// result object that, when applied, mutates the graph").
type Result struct {
	Ownership      []OwnershipInference
	Couplings      []CouplingPair
	SharedAccesses []SharedAccess
}

// riskRank orders risk classes so multi-resource accumulation (the same pair
// reached via several shared resources) keeps the highest observed risk.
func riskRank(r graph.CouplingRisk) int {
	switch r {
	case graph.RiskHigh:
		return 2
	case graph.RiskMedium:
		return 1
	default:
		return 0
	}
}

func canonicalPair(a, b graph.NodeId) (graph.NodeId, graph.NodeId) {
	if a <= b {
		return a, b
	}
	return b, a
}

// isOwnsEligible reports whether nt may be the target of an Owns edge
// (spec.md §3.2: Owns | Service | Api, Database, Queue).
func isOwnsEligible(nt graph.NodeType) bool {
	switch nt {
	case graph.NodeAPI, graph.NodeDatabase, graph.NodeQueue:
		return true
	default:
		return false
	}
}

// inferOwner runs the Phase-1 heuristics in order, returning the first that
// succeeds. The IaC-colocation heuristic spec.md §4.6 lists first is not
// implemented here: every resource that processCloudResourceUsage classifies
// as Database/Queue/Api already arrives with an Owns edge pre-assigned from
// its IaC definition (internal/builder/builder.go), so by the time a resource
// reaches Phase 1 with no owner, it was never IaC-defined in the first place
// and the heuristic could never fire.
func inferOwner(g *graph.Graph, resource *graph.Node, accessors []graph.NodeId, writers map[graph.NodeId]bool) (graph.NodeId, float64, string, bool) {
	// 1. Naming convention: resource display name and a service's display
	// name are equal or one contains the other (case-insensitive).
	resName := strings.ToLower(resource.DisplayName)
	for _, a := range accessors {
		svc := g.Node(a)
		if svc == nil {
			continue
		}
		svcName := strings.ToLower(svc.DisplayName)
		if svcName == "" {
			continue
		}
		if resName == svcName || strings.Contains(resName, svcName) || strings.Contains(svcName, resName) ||
			strings.HasPrefix(resName, svcName+"-") || strings.HasPrefix(resName, svcName+"_") ||
			strings.HasPrefix(svcName, resName+"-") || strings.HasPrefix(svcName, resName+"_") {
			return a, 0.7, "NamingConvention", true
		}
	}

	// 2. Exclusive writer: exactly one service writes to the resource.
	if len(writers) == 1 {
		for w := range writers {
			return w, 0.6, "ExclusiveWriter", true
		}
	}
	return "", 0, "", false
}

// Analyze runs the three-phase coupling analysis over a read-only view of g
// (spec.md §4.6). It never mutates g; call Result.ApplyToGraph to do so.
func Analyze(g *graph.Graph) *Result {
	access := BuildAccessMap(g)
	result := &Result{}

	ownerOf := make(map[graph.NodeId]graph.NodeId)
	resourceIDs := make([]graph.NodeId, 0, len(access))
	for id := range access {
		resourceIDs = append(resourceIDs, id)
	}
	sort.Slice(resourceIDs, func(i, j int) bool { return resourceIDs[i] < resourceIDs[j] })

	// Phase 1: ownership inference. Only Api/Database/Queue resources are
	// eligible Owns targets (spec.md §3.2: Owns | Service | Api, Database,
	// Queue) — CloudResource nodes reach the access map via Uses edges but
	// must never be inferred owners, or ApplyToGraph's NewEdge would reject
	// the resulting Owns edge and abort every phase's application.
	for _, id := range resourceIDs {
		ra := access[id]
		if ra.Owner != "" {
			ownerOf[id] = ra.Owner
			continue
		}
		if !isOwnsEligible(id.Type()) {
			continue
		}
		node := g.Node(id)
		if node == nil {
			continue
		}
		owner, conf, reason, ok := inferOwner(g, node, ra.Accessors(), ra.Writers)
		if !ok {
			continue
		}
		ownerOf[id] = owner
		result.Ownership = append(result.Ownership, OwnershipInference{
			Resource: id, Owner: owner, Confidence: conf, Reason: reason,
		})
	}

	// Phase 2: implicit coupling, keyed by canonical pair so resources
	// accumulate onto one CouplingPair.
	pairIndex := make(map[[2]graph.NodeId]int)
	for _, id := range resourceIDs {
		ra := access[id]
		accessors := ra.Accessors()
		if len(accessors) < 2 {
			continue
		}
		for i := 0; i < len(accessors); i++ {
			for j := i + 1; j < len(accessors); j++ {
				a, b := canonicalPair(accessors[i], accessors[j])
				writesA, writesB := ra.Writers[a], ra.Writers[b]
				var risk graph.CouplingRisk
				switch {
				case writesA && writesB:
					risk = graph.RiskHigh
				case writesA || writesB:
					risk = graph.RiskMedium
				default:
					risk = graph.RiskLow
				}
				key := [2]graph.NodeId{a, b}
				if idx, ok := pairIndex[key]; ok {
					cp := &result.Couplings[idx]
					cp.Resources = append(cp.Resources, id)
					if riskRank(risk) > riskRank(cp.Risk) {
						cp.Risk = risk
					}
				} else {
					pairIndex[key] = len(result.Couplings)
					result.Couplings = append(result.Couplings, CouplingPair{
						A: a, B: b, Risk: risk, Resources: []graph.NodeId{id},
					})
				}
			}
		}
	}
	for i := range result.Couplings {
		result.Couplings[i].Reason = couplingReason(g, &result.Couplings[i])
	}

	// Phase 3: shared-access edges for every resource with an owner.
	for _, id := range resourceIDs {
		owner, hasOwner := ownerOf[id]
		if !hasOwner {
			continue
		}
		ra := access[id]
		for reader := range ra.Readers {
			if reader == owner {
				continue
			}
			result.SharedAccesses = append(result.SharedAccesses, SharedAccess{
				Service: reader, Resource: id, EdgeType: graph.EdgeReadsShared, Evidence: evidenceStrings(ra.Evidence[reader]),
			})
		}
		for writer := range ra.Writers {
			if writer == owner {
				continue
			}
			result.SharedAccesses = append(result.SharedAccesses, SharedAccess{
				Service: writer, Resource: id, EdgeType: graph.EdgeWritesShared, Evidence: evidenceStrings(ra.Evidence[writer]),
			})
		}
	}

	sort.Slice(result.Ownership, func(i, j int) bool { return result.Ownership[i].Resource < result.Ownership[j].Resource })
	sort.Slice(result.Couplings, func(i, j int) bool {
		if result.Couplings[i].A != result.Couplings[j].A {
			return result.Couplings[i].A < result.Couplings[j].A
		}
		return result.Couplings[i].B < result.Couplings[j].B
	})
	sort.Slice(result.SharedAccesses, func(i, j int) bool {
		if result.SharedAccesses[i].Service != result.SharedAccesses[j].Service {
			return result.SharedAccesses[i].Service < result.SharedAccesses[j].Service
		}
		return result.SharedAccesses[i].Resource < result.SharedAccesses[j].Resource
	})
	for i := range result.Couplings {
		sort.Slice(result.Couplings[i].Resources, func(a, b int) bool {
			return result.Couplings[i].Resources[a] < result.Couplings[i].Resources[b]
		})
	}
	return result
}

func evidenceStrings(evs []AccessEvidence) []string {
	out := make([]string, 0, len(evs))
	for _, e := range evs {
		if e.Evidence != "" {
			out = append(out, e.Evidence)
		}
	}
	return out
}

func couplingReason(g *graph.Graph, cp *CouplingPair) string {
	names := make([]string, 0, len(cp.Resources))
	for _, r := range cp.Resources {
		if n := g.Node(r); n != nil {
			names = append(names, n.DisplayName)
		} else {
			names = append(names, string(r))
		}
	}
	return fmt.Sprintf("shares %s (risk: %s)", strings.Join(names, ", "), cp.Risk)
}

// ApplyToGraph upserts Owns, ReadsShared, WritesShared, and ImplicitlyCoupled
// edges from r into g (spec.md §4.6 "Application"). Edges already marked
// Confirmed are left untouched by Graph.UpsertEdge. High-risk couplings are
// logged at warning level; nothing else observes the log.
func (r *Result) ApplyToGraph(g *graph.Graph, now time.Time) error {
	for _, o := range r.Ownership {
		e, err := graph.NewEdge(o.Owner, graph.EdgeOwns, o.Resource, now)
		if err != nil {
			return err
		}
		conf := o.Confidence
		e.Meta.Confidence = &conf
		e.Meta.Reason = o.Reason
		if err := g.UpsertEdge(e); err != nil {
			return err
		}
	}

	for _, sa := range r.SharedAccesses {
		e, err := graph.NewEdge(sa.Service, sa.EdgeType, sa.Resource, now)
		if err != nil {
			return err
		}
		e.Meta.AddEvidence(sa.Evidence...)
		if err := g.UpsertEdge(e); err != nil {
			return err
		}
	}

	for _, cp := range r.Couplings {
		e, err := graph.NewEdge(cp.A, graph.EdgeImplicitlyCoupled, cp.B, now)
		if err != nil {
			return err
		}
		conf := cp.Risk.Confidence()
		e.Meta.Confidence = &conf
		e.Meta.Reason = cp.Reason
		if err := g.UpsertEdge(e); err != nil {
			return err
		}
		if cp.Risk == graph.RiskHigh {
			logging.CouplingWarn("high-risk implicit coupling between %s and %s: %s", cp.A, cp.B, cp.Reason)
		}
	}
	return nil
}
