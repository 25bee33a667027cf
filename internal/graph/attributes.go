package graph

import "sort"

// Attributes is an open string-keyed map of recursive values. Parser output
// varies in shape, so the bag stays dynamic; typed views (at the end of this file)
// provide ergonomic access to the well-known keys from spec.md §3.1 without
// closing off the schema.
type Attributes map[string]interface{}

// Clone returns a deep copy: nested map[string]interface{} and
// []interface{} values are copied recursively; other values are shared.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, vv := range val {
			out[k] = cloneValue(vv)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, vv := range val {
			out[i] = cloneValue(vv)
		}
		return out
	default:
		return val
	}
}

// Merge returns a new Attributes with other's keys overlaid on a (other wins
// on conflict). Used when folding repeated discoveries into one node.
func (a Attributes) Merge(other Attributes) Attributes {
	out := a.Clone()
	if out == nil {
		out = make(Attributes)
	}
	for k, v := range other {
		out[k] = cloneValue(v)
	}
	return out
}

// SortedKeys returns the attribute keys in stable (sorted) order, required
// for deterministic serialization per spec.md §9.
func (a Attributes) SortedKeys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String returns the string-typed attribute at key, or "" if absent/wrong type.
func (a Attributes) String(key string) string {
	if v, ok := a[key].(string); ok {
		return v
	}
	return ""
}

// SetIfAbsent sets key only if it does not already hold a non-empty value.
// This backs the "first present tag wins" / "unset only" merge rules used by
// IaC parsers and attribute normalization.
func (a Attributes) SetIfAbsent(key, value string) {
	if value == "" {
		return
	}
	if existing, ok := a[key]; ok {
		if s, isStr := existing.(string); isStr && s != "" {
			return
		}
	}
	a[key] = value
}

// Typed views onto common attributes (spec.md design notes §9: "implementers
// should provide typed views rather than fighting the openness").

func (a Attributes) Language() string         { return a.String("language") }
func (a Attributes) Framework() string        { return a.String("framework") }
func (a Attributes) DeploymentMethod() string  { return a.String("deployment_method") }
func (a Attributes) Environment() string      { return a.String("environment") }
func (a Attributes) RepoURL() string          { return a.String("repo_url") }
func (a Attributes) TerraformWorkspace() string { return a.String("terraform_workspace") }
func (a Attributes) AWSAccountID() string      { return a.String("aws_account_id") }
