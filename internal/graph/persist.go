package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// document is the on-disk shape described in spec.md §3.3/§6.3: metadata
// plus ordered node and edge lists. Field names are lowercase snake_case.
type document struct {
	Metadata docMeta       `json:"metadata"`
	Nodes    []docNode     `json:"nodes"`
	Edges    []docEdge     `json:"edges"`
	Extra    map[string]json.RawMessage `json:"-"`
}

type docMeta struct {
	CreatorVersion string    `json:"creator_version"`
	CreatedAt      time.Time `json:"created_at"`
	ModifiedAt     time.Time `json:"modified_at"`
	SurveyCount    int       `json:"survey_count"`
}

type docNode struct {
	ID          NodeId                     `json:"id"`
	Type        string                     `json:"type"`
	DisplayName string                     `json:"display_name"`
	Attributes  Attributes                 `json:"attributes,omitempty"`
	Context     *BusinessContext           `json:"business_context,omitempty"`
	Metadata    docNodeMeta                `json:"metadata"`
	Extra       map[string]json.RawMessage `json:"-"`
}

type docNodeMeta struct {
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Source     string    `json:"source"`
	CommitSHA  string    `json:"commit_sha,omitempty"`
	SourceFile string    `json:"source_file,omitempty"`
	SourceLine int       `json:"source_line,omitempty"`
}

type docEdge struct {
	Source   NodeId                     `json:"source"`
	Target   NodeId                     `json:"target"`
	Type     string                     `json:"type"`
	Metadata docEdgeMeta                `json:"metadata"`
	Extra    map[string]json.RawMessage `json:"-"`
}

type docEdgeMeta struct {
	Confidence   *float64  `json:"confidence,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	Evidence     []string  `json:"evidence,omitempty"`
	HTTPMethod   string    `json:"http_method,omitempty"`
	EndpointPath string    `json:"endpoint_path,omitempty"`
	DiscoveredAt time.Time `json:"discovered_at"`
	Confirmed    bool      `json:"confirmed,omitempty"`
}

// knownDocumentKeys/knownNodeKeys/knownEdgeKeys list the fields this version
// understands; anything else round-trips through Extra.
var knownDocumentKeys = map[string]bool{"metadata": true, "nodes": true, "edges": true}
var knownNodeKeys = map[string]bool{"id": true, "type": true, "display_name": true, "attributes": true, "business_context": true, "metadata": true}
var knownEdgeKeys = map[string]bool{"source": true, "target": true, "type": true, "metadata": true}

func extractExtra(raw []byte, known map[string]bool) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil, err
	}
	extra := make(map[string]json.RawMessage)
	for k, v := range all {
		if !known[k] {
			extra[k] = v
		}
	}
	if len(extra) == 0 {
		return nil, nil
	}
	return extra, nil
}

// mergeExtraIntoMessage marshals known onto a plain map, layers extra over
// the top, and returns the combined JSON object. Extra never overwrites a
// known field name since callers only ever populate it with keys already
// filtered out of the known set.
func mergeExtraIntoMessage(known interface{}, extra map[string]json.RawMessage) ([]byte, error) {
	knownBytes, err := json.Marshal(known)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return knownBytes, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(knownBytes, &obj); err != nil {
		return nil, err
	}
	for k, v := range extra {
		obj[k] = v
	}
	return json.Marshal(obj)
}

// docNodeAlias/docEdgeAlias/documentAlias exist so Unmarshal/MarshalJSON can
// decode and encode the known fields without recursing into themselves.
type docNodeAlias docNode
type docEdgeAlias docEdge
type documentAlias document

func (dn *docNode) UnmarshalJSON(raw []byte) error {
	var alias docNodeAlias
	if err := json.Unmarshal(raw, &alias); err != nil {
		return err
	}
	extra, err := extractExtra(raw, knownNodeKeys)
	if err != nil {
		return err
	}
	*dn = docNode(alias)
	dn.Extra = extra
	return nil
}

func (dn docNode) MarshalJSON() ([]byte, error) {
	return mergeExtraIntoMessage(docNodeAlias(dn), dn.Extra)
}

func (de *docEdge) UnmarshalJSON(raw []byte) error {
	var alias docEdgeAlias
	if err := json.Unmarshal(raw, &alias); err != nil {
		return err
	}
	extra, err := extractExtra(raw, knownEdgeKeys)
	if err != nil {
		return err
	}
	*de = docEdge(alias)
	de.Extra = extra
	return nil
}

func (de docEdge) MarshalJSON() ([]byte, error) {
	return mergeExtraIntoMessage(docEdgeAlias(de), de.Extra)
}

func (d *document) UnmarshalJSON(raw []byte) error {
	var alias documentAlias
	if err := json.Unmarshal(raw, &alias); err != nil {
		return err
	}
	extra, err := extractExtra(raw, knownDocumentKeys)
	if err != nil {
		return err
	}
	*d = document(alias)
	d.Extra = extra
	return nil
}

func (d document) MarshalJSON() ([]byte, error) {
	return mergeExtraIntoMessage(documentAlias(d), d.Extra)
}

// ToGraph converts the (already-validated) on-disk document into a Graph,
// failing loudly on any graph-invariant violation (spec.md §7 kind 4).
func (d *document) ToGraph() (*Graph, error) {
	g := &Graph{
		Meta: GraphMeta{
			CreatorVersion: d.Metadata.CreatorVersion,
			CreatedAt:      d.Metadata.CreatedAt,
			ModifiedAt:     d.Metadata.ModifiedAt,
			SurveyCount:    d.Metadata.SurveyCount,
			Extra:          rawMapToInterface(d.Extra),
		},
		nodes:    make(map[NodeId]*Node),
		edges:    make(map[Key]*Edge),
		outgoing: make(map[NodeId]map[Key]struct{}),
		incoming: make(map[NodeId]map[Key]struct{}),
	}
	for _, dn := range d.Nodes {
		t, err := ParseNodeType(dn.Type)
		if err != nil {
			return nil, fmt.Errorf("graph: load: node %q: %w", dn.ID, err)
		}
		n := &Node{
			ID:          dn.ID,
			Type:        t,
			DisplayName: dn.DisplayName,
			Attributes:  dn.Attributes,
			Context:     dn.Context,
			Meta: Metadata{
				CreatedAt:  dn.Metadata.CreatedAt,
				UpdatedAt:  dn.Metadata.UpdatedAt,
				Source:     DiscoverySource(dn.Metadata.Source),
				CommitSHA:  dn.Metadata.CommitSHA,
				SourceFile: dn.Metadata.SourceFile,
				SourceLine: dn.Metadata.SourceLine,
			},
		}
		if len(dn.Extra) > 0 {
			if n.Attributes == nil {
				n.Attributes = make(Attributes)
			}
			n.Attributes["__unknown_fields__"] = rawMapToInterface(dn.Extra)
		}
		if err := n.Validate(); err != nil {
			return nil, fmt.Errorf("graph: load: %w", err)
		}
		g.nodes[n.ID] = n
		g.outgoing[n.ID] = make(map[Key]struct{})
		g.incoming[n.ID] = make(map[Key]struct{})
	}
	for _, de := range d.Edges {
		et, err := ParseEdgeType(de.Type)
		if err != nil {
			return nil, fmt.Errorf("graph: load: edge %s->%s: %w", de.Source, de.Target, err)
		}
		if !g.HasNode(de.Source) {
			return nil, fmt.Errorf("graph: load: edge source %q missing from graph", de.Source)
		}
		if !g.HasNode(de.Target) {
			return nil, fmt.Errorf("graph: load: edge target %q missing from graph", de.Target)
		}
		e := &Edge{
			Source: de.Source,
			Target: de.Target,
			Type:   et,
			Meta: EdgeMetadata{
				Confidence:   de.Metadata.Confidence,
				Reason:       de.Metadata.Reason,
				Evidence:     de.Metadata.Evidence,
				HTTPMethod:   de.Metadata.HTTPMethod,
				EndpointPath: de.Metadata.EndpointPath,
				DiscoveredAt: de.Metadata.DiscoveredAt,
				Confirmed:    de.Metadata.Confirmed,
				Extra:        rawMapToInterface(de.Extra),
			},
		}
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("graph: load: %w", err)
		}
		key := e.Key()
		if _, dup := g.edges[key]; dup {
			return nil, fmt.Errorf("graph: load: duplicate edge %s-%s->%s", e.Source, e.Type, e.Target)
		}
		g.edges[key] = e
		g.outgoing[e.Source][key] = struct{}{}
		g.incoming[e.Target][key] = struct{}{}
		if et.IsBidirectional() {
			rk := Key{Source: e.Target, Target: e.Source, Type: et}
			g.outgoing[e.Target][rk] = struct{}{}
			g.incoming[e.Source][rk] = struct{}{}
		}
	}
	return g, nil
}

func rawMapToInterface(m map[string]json.RawMessage) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		var iv interface{}
		_ = json.Unmarshal(v, &iv)
		out[k] = iv
	}
	return out
}

// toDocument renders g into the deterministic on-disk shape: stable node and
// edge ordering via g.Nodes()/g.Edges(), which already sort by key.
func (g *Graph) toDocument() *document {
	d := &document{
		Metadata: docMeta{
			CreatorVersion: g.Meta.CreatorVersion,
			CreatedAt:      g.Meta.CreatedAt.UTC(),
			ModifiedAt:     g.Meta.ModifiedAt.UTC(),
			SurveyCount:    g.Meta.SurveyCount,
		},
		Extra: interfaceMapToRaw(g.Meta.Extra),
	}
	for _, n := range g.Nodes() {
		attrs := n.Attributes
		var extra map[string]json.RawMessage
		if attrs != nil {
			if uf, ok := attrs["__unknown_fields__"].(map[string]interface{}); ok {
				attrs = attrs.Clone()
				delete(attrs, "__unknown_fields__")
				extra = make(map[string]json.RawMessage, len(uf))
				for k, v := range uf {
					if b, err := json.Marshal(v); err == nil {
						extra[k] = b
					}
				}
			}
		}
		d.Nodes = append(d.Nodes, docNode{
			ID:          n.ID,
			Type:        n.Type.Tag(),
			DisplayName: n.DisplayName,
			Attributes:  attrs,
			Context:     n.Context,
			Metadata: docNodeMeta{
				CreatedAt:  n.Meta.CreatedAt.UTC(),
				UpdatedAt:  n.Meta.UpdatedAt.UTC(),
				Source:     string(n.Meta.Source),
				CommitSHA:  n.Meta.CommitSHA,
				SourceFile: n.Meta.SourceFile,
				SourceLine: n.Meta.SourceLine,
			},
			Extra: extra,
		})
	}
	for _, e := range g.Edges() {
		d.Edges = append(d.Edges, docEdge{
			Source: e.Source,
			Target: e.Target,
			Type:   e.Type.Wire(),
			Metadata: docEdgeMeta{
				Confidence:   e.Meta.Confidence,
				Reason:       e.Meta.Reason,
				Evidence:     e.Meta.Evidence,
				HTTPMethod:   e.Meta.HTTPMethod,
				EndpointPath: e.Meta.EndpointPath,
				DiscoveredAt: e.Meta.DiscoveredAt.UTC(),
				Confirmed:    e.Meta.Confirmed,
			},
			Extra: interfaceMapToRaw(e.Meta.Extra),
		})
	}
	return d
}

func interfaceMapToRaw(m map[string]interface{}) map[string]json.RawMessage {
	if m == nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(m))
	for k, v := range m {
		if b, err := json.Marshal(v); err == nil {
			out[k] = b
		}
	}
	return out
}

// Save writes g to path deterministically, using rename-over-temp so a
// crash mid-write never leaves a partial file (spec.md §5 ordering
// guarantees). Output is stable-key-ordered JSON, indented for readability.
func (g *Graph) Save(path string) error {
	doc := g.toDocument()
	buf, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("graph: marshal: %w", err)
	}
	return writeAtomic(path, buf)
}

// Load reads and strictly validates a graph document from path.
func Load(path string) (*Graph, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var d document
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("graph: parse %s: %w", path, err)
	}
	return d.ToGraph()
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}

// Equal reports structural equality ignoring ModifiedAt, for the load-save
// round-trip property in spec.md §8.1.
func (g *Graph) Equal(other *Graph) bool {
	if g.NodeCount() != other.NodeCount() || g.EdgeCount() != other.EdgeCount() {
		return false
	}
	a, _ := json.Marshal(normalizeForCompare(g))
	b, _ := json.Marshal(normalizeForCompare(other))
	return bytes.Equal(a, b)
}

func normalizeForCompare(g *Graph) *document {
	d := g.toDocument()
	d.Metadata.ModifiedAt = time.Time{}
	return d
}
