package graph

import (
	"fmt"
	"strings"
)

const maxSegmentLen = 256

// NodeId is the canonical string identifier "<type>:<namespace>:<name>".
// Construction is total: colons inside namespace/name are escaped so the
// identifier always round-trips through ParseNodeId.
type NodeId string

// escapeColon replaces ':' with a reversible escape sequence so upstream
// identifiers containing colons (ARNs, URLs) don't corrupt the 3-segment form.
const colonEscape = "__COLON__"

func escapeColon(s string) string {
	return strings.ReplaceAll(s, ":", colonEscape)
}

func unescapeColon(s string) string {
	return strings.ReplaceAll(s, colonEscape, ":")
}

// NewNodeId constructs a validated, round-trippable NodeId.
func NewNodeId(t NodeType, namespace, name string) (NodeId, error) {
	if !t.Valid() {
		return "", fmt.Errorf("graph: invalid node type %q", t)
	}
	ns := escapeColon(namespace)
	nm := escapeColon(name)
	if ns == "" {
		return "", fmt.Errorf("graph: namespace must not be empty")
	}
	if nm == "" {
		return "", fmt.Errorf("graph: name must not be empty")
	}
	if len(ns) > maxSegmentLen {
		return "", fmt.Errorf("graph: namespace exceeds %d chars", maxSegmentLen)
	}
	if len(nm) > maxSegmentLen {
		return "", fmt.Errorf("graph: name exceeds %d chars", maxSegmentLen)
	}
	return NodeId(fmt.Sprintf("%s:%s:%s", t.Tag(), ns, nm)), nil
}

// MustNodeId panics on invalid input; reserved for call sites that already
// validated their inputs (e.g. deserializing a NodeId that round-tripped).
func MustNodeId(t NodeType, namespace, name string) NodeId {
	id, err := NewNodeId(t, namespace, name)
	if err != nil {
		panic(err)
	}
	return id
}

// Parsed is the decomposed form of a NodeId.
type Parsed struct {
	Type      NodeType
	Namespace string
	Name      string
}

// ParseNodeId decomposes a NodeId string into its type/namespace/name parts,
// unescaping colons that were substituted at construction time.
func ParseNodeId(id NodeId) (Parsed, error) {
	parts := strings.SplitN(string(id), ":", 3)
	if len(parts) != 3 {
		return Parsed{}, fmt.Errorf("graph: malformed NodeId %q", id)
	}
	t, err := ParseNodeType(parts[0])
	if err != nil {
		return Parsed{}, err
	}
	ns := unescapeColon(parts[1])
	nm := unescapeColon(parts[2])
	if ns == "" || nm == "" {
		return Parsed{}, fmt.Errorf("graph: malformed NodeId %q: empty segment", id)
	}
	return Parsed{Type: t, Namespace: ns, Name: nm}, nil
}

// Type returns the NodeType embedded in id, or "" if id is malformed.
func (id NodeId) Type() NodeType {
	p, err := ParseNodeId(id)
	if err != nil {
		return ""
	}
	return p.Type
}

// Valid reports whether id is a well-formed NodeId.
func (id NodeId) Valid() bool {
	_, err := ParseNodeId(id)
	return err == nil
}

// syntheticName builds a hyphen-delimited placeholder name for discoveries
// without an explicit resource name (spec.md §4.4). Hyphens, never colons,
// keep the result a valid NodeId name segment.
func syntheticName(repoName, kind string) string {
	return fmt.Sprintf("%s-%s-unnamed", repoName, kind)
}

// SyntheticName is the exported form used by the graph builder.
func SyntheticName(repoName, kind string) string { return syntheticName(repoName, kind) }
