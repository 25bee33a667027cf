// Package builder folds a flat discovery stream into the graph: nodes keyed
// by deterministic NodeId, edges validated against the permitted endpoint
// table, with cross-language deduplication falling out of NodeId construction
// plus Graph.UpsertNode's merge semantics (spec.md §4.4).
package builder

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/garrettyarmo/forge-sub000/internal/discovery"
	"github.com/garrettyarmo/forge-sub000/internal/graph"
)

// nodeKey is the logical identity a repeated discovery resolves against,
// independent of display-name casing (spec.md §4.4: "keys on (node_type,
// normalized_name)").
type nodeKey struct {
	Type graph.NodeType
	Repo string
	Name string
}

// Builder accumulates discoveries into a Graph. It is single-threaded by
// contract (spec.md §5: "the builder is a single-threaded consumer of the
// discovery stream").
type Builder struct {
	g     *graph.Graph
	now   time.Time
	index map[nodeKey]graph.NodeId
}

// New returns a builder seeded with an empty graph.
func New(now time.Time) *Builder {
	return &Builder{g: graph.New("forge", now), now: now, index: make(map[nodeKey]graph.NodeId)}
}

// FromGraph seeds the builder from an already-persisted graph so that
// subsequent discoveries deduplicate against it (spec.md §4.4 "from_graph",
// used by the incremental survey driver).
func FromGraph(existing *graph.Graph, now time.Time) *Builder {
	b := &Builder{g: existing, now: now, index: make(map[nodeKey]graph.NodeId)}
	for _, n := range existing.Nodes() {
		p, err := graph.ParseNodeId(n.ID)
		if err != nil {
			continue
		}
		b.index[nodeKey{Type: p.Type, Repo: p.Namespace, Name: p.Name}] = n.ID
	}
	return b
}

// Build returns the accumulated graph.
func (b *Builder) Build() *graph.Graph { return b.g }

func normalizeName(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// nodeID resolves (or mints) the canonical NodeId for a logical resource.
// An empty rawName falls back to the hyphen-delimited synthetic placeholder
// keyed by repo and kind (spec.md §4.4).
func (b *Builder) nodeID(repoName string, t graph.NodeType, rawName, kind string) graph.NodeId {
	name := normalizeName(rawName)
	if name == "" {
		name = graph.SyntheticName(repoName, kind)
	}
	key := nodeKey{Type: t, Repo: repoName, Name: name}
	if id, ok := b.index[key]; ok {
		return id
	}
	id := graph.MustNodeId(t, repoName, name)
	b.index[key] = id
	return id
}

func sourceForFile(path string) graph.DiscoverySource {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js", ".jsx", ".mjs", ".cjs", ".ts", ".tsx":
		return graph.SourceJSParser
	case ".py", ".pyw":
		return graph.SourcePythonParser
	case ".tf":
		return graph.SourceTerraformParser
	case ".yaml", ".yml", ".json":
		return graph.SourceCloudFormation
	default:
		return graph.SourceUnknown
	}
}

func (b *Builder) metaFor(loc discovery.Location) graph.Metadata {
	m := graph.NewMetadata(sourceForFile(loc.File), b.now)
	m.SourceFile = loc.File
	m.SourceLine = loc.Line
	return m
}

// upsertNode merges attrs into the node at id, creating it with displayName
// if absent.
func (b *Builder) upsertNode(id graph.NodeId, t graph.NodeType, displayName string, attrs graph.Attributes, loc discovery.Location) error {
	n, err := graph.NewNode(id, t, displayName, attrs, b.metaFor(loc))
	if err != nil {
		return err
	}
	return b.g.UpsertNode(n)
}

// upsertEdge creates or updates the edge (source, et, target), accumulating
// evidence across repeated calls rather than discarding prior observations.
// mutate, if non-nil, adjusts edge-specific metadata (HTTPMethod, etc.)
// before the edge is stored. Confirmed edges (spec.md §4.6 "Application")
// are left untouched by Graph.UpsertEdge.
func (b *Builder) upsertEdge(source graph.NodeId, et graph.EdgeType, target graph.NodeId, evidence string, mutate func(*graph.EdgeMetadata)) error {
	e, err := graph.NewEdge(source, et, target, b.now)
	if err != nil {
		return err
	}
	if existing := b.g.Edge(e.Key()); existing != nil {
		e.Meta = existing.Meta
	}
	e.Meta.AddEvidence(evidence)
	e.Meta.DiscoveredAt = b.now
	if mutate != nil {
		mutate(&e.Meta)
	}
	return b.g.UpsertEdge(e)
}

// AddService creates or merges a Service node for d, namespaced under
// repoName (spec.md §4.4 "add_service").
func (b *Builder) AddService(repoName string, d discovery.ServiceDiscovery, loc discovery.Location) (graph.NodeId, error) {
	displayName := d.Name
	if displayName == "" {
		displayName = repoName
	}
	id := b.nodeID(repoName, graph.NodeService, d.Name, "service")

	attrs := make(graph.Attributes, len(d.Attributes)+3)
	for k, v := range d.Attributes {
		attrs[k] = v
	}
	if d.Language != "" {
		attrs["language"] = d.Language
	}
	if d.Framework != "" {
		attrs["framework"] = d.Framework
	}
	if d.EntryPoint != "" {
		attrs["entry_point"] = d.EntryPoint
	}
	if err := b.upsertNode(id, graph.NodeService, displayName, attrs, loc); err != nil {
		return "", err
	}
	return id, nil
}

// cloudResourceKind classifies a CloudResourceUsageDiscovery's ResourceType
// tag (emitted by the Terraform and CloudFormation/SAM parsers) into the
// NodeType it produces (spec.md §4.2's per-resource-type table).
func cloudResourceKind(resourceType string) graph.NodeType {
	switch resourceType {
	case "dynamodb_table":
		return graph.NodeDatabase
	case "sqs_queue", "sns_topic":
		return graph.NodeQueue
	case "serverless_api":
		return graph.NodeAPI
	default:
		return graph.NodeCloudResource
	}
}

// ProcessDiscoveries folds a flat discovery list into nodes and edges
// attached to owner (spec.md §4.4 "process_discoveries"). Discoveries of
// Kind Service and Import have no direct graph effect here: services are
// added via AddService by the caller, and import-only evidence never
// synthesizes a resource node (spec.md §4.4, "Import-only isolation"
// property, §8.1).
func (b *Builder) ProcessDiscoveries(repoName string, owner graph.NodeId, discs []discovery.Discovery) error {
	for _, d := range discs {
		var err error
		switch d.Kind {
		case discovery.KindAPICall:
			err = b.processAPICall(repoName, owner, d)
		case discovery.KindDatabaseAccess:
			err = b.processDatabaseAccess(repoName, owner, d)
		case discovery.KindQueueOperation:
			err = b.processQueueOperation(repoName, owner, d)
		case discovery.KindCloudResourceUsage:
			err = b.processCloudResourceUsage(repoName, owner, d)
		case discovery.KindService, discovery.KindImport:
			// no direct graph effect
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) processAPICall(repoName string, owner graph.NodeId, d discovery.Discovery) error {
	ac := d.APICall
	if ac.Target == "" {
		return nil
	}
	id := b.nodeID(repoName, graph.NodeAPI, ac.Target, "api")
	attrs := graph.Attributes{"path": ac.Target, "service_id": string(owner)}
	if ac.Method != "" {
		attrs["method"] = ac.Method
	}
	if err := b.upsertNode(id, graph.NodeAPI, ac.Target, attrs, d.Location); err != nil {
		return err
	}
	return b.upsertEdge(owner, graph.EdgeCalls, id, d.Location.Evidence(), func(m *graph.EdgeMetadata) {
		if ac.Method != "" {
			m.HTTPMethod = ac.Method
		}
		m.EndpointPath = ac.Target
	})
}

func (b *Builder) processDatabaseAccess(repoName string, owner graph.NodeId, d discovery.Discovery) error {
	da := d.DatabaseAccess
	kind := da.DBType
	if kind == "" {
		kind = "database"
	}
	id := b.nodeID(repoName, graph.NodeDatabase, da.TableName, kind)
	displayName := da.TableName
	if displayName == "" {
		p, _ := graph.ParseNodeId(id)
		displayName = p.Name
	}
	attrs := graph.Attributes{}
	if da.DBType != "" {
		attrs["db_type"] = da.DBType
	}
	if da.TableName != "" {
		attrs["table_name"] = da.TableName
	}
	if err := b.upsertNode(id, graph.NodeDatabase, displayName, attrs, d.Location); err != nil {
		return err
	}
	ev := d.Location.Evidence()
	switch da.Operation {
	case discovery.OpRead:
		return b.upsertEdge(owner, graph.EdgeReads, id, ev, nil)
	case discovery.OpWrite:
		return b.upsertEdge(owner, graph.EdgeWrites, id, ev, nil)
	case discovery.OpReadWrite:
		// spec.md §8.1 "ReadWrite duality": both edges share identical evidence.
		if err := b.upsertEdge(owner, graph.EdgeReads, id, ev, nil); err != nil {
			return err
		}
		return b.upsertEdge(owner, graph.EdgeWrites, id, ev, nil)
	case discovery.OpUnknown:
		// spec.md §4.4: an unknown-operation database access emits no edge.
		return nil
	}
	return nil
}

func (b *Builder) processQueueOperation(repoName string, owner graph.NodeId, d discovery.Discovery) error {
	qo := d.QueueOperation
	kind := qo.QueueType
	if kind == "" {
		kind = "queue"
	}
	id := b.nodeID(repoName, graph.NodeQueue, qo.Name, kind)
	displayName := qo.Name
	if displayName == "" {
		p, _ := graph.ParseNodeId(id)
		displayName = p.Name
	}
	attrs := graph.Attributes{}
	if qo.QueueType != "" {
		attrs["queue_type"] = qo.QueueType
	}
	if err := b.upsertNode(id, graph.NodeQueue, displayName, attrs, d.Location); err != nil {
		return err
	}
	ev := d.Location.Evidence()
	op := qo.Operation
	if op == discovery.OpUnknown {
		// spec.md §4.4: ambiguous queue intent defaults to Publishes.
		op = discovery.OpPublish
	}
	switch op {
	case discovery.OpPublish:
		return b.upsertEdge(owner, graph.EdgePublishes, id, ev, nil)
	case discovery.OpSubscribe:
		return b.upsertEdge(owner, graph.EdgeSubscribes, id, ev, nil)
	}
	return nil
}

func (b *Builder) processCloudResourceUsage(repoName string, owner graph.NodeId, d discovery.Discovery) error {
	cr := d.CloudResourceUsage
	nt := cloudResourceKind(cr.ResourceType)
	id := b.nodeID(repoName, nt, cr.Name, cr.ResourceType)
	displayName := cr.Name
	if displayName == "" {
		p, _ := graph.ParseNodeId(id)
		displayName = p.Name
	}
	attrs := graph.Attributes{"resource_type": cr.ResourceType}
	switch nt {
	case graph.NodeDatabase:
		attrs["db_type"] = "dynamodb"
	case graph.NodeQueue:
		if cr.ResourceType == "sns_topic" {
			attrs["queue_type"] = "sns"
		} else {
			attrs["queue_type"] = "sqs"
		}
	}
	if err := b.upsertNode(id, nt, displayName, attrs, d.Location); err != nil {
		return err
	}
	ev := d.Location.Evidence()
	if nt == graph.NodeCloudResource {
		return b.upsertEdge(owner, graph.EdgeUses, id, ev, nil)
	}
	// IaC co-location asserts ownership directly; the coupling analyzer's
	// phase 1 only infers ownership for resources that still lack one
	// (spec.md §4.6).
	return b.upsertEdge(owner, graph.EdgeOwns, id, ev, func(m *graph.EdgeMetadata) {
		m.Reason = "defined alongside owning service in infrastructure-as-code"
	})
}
