// Package domain is the property-graph data model shared by every
// ingestion-pipeline component: Node and Relationship are the uniform
// representation of everything spec.md §3 names (Project, File, Directory,
// Scope, the document variants, Entity, EmbeddingChunk) rather than one Go
// struct per entity kind. This mirrors how the graph store itself, and the
// parser dispatcher's ParsedGraph contract, already think about the data:
// labels plus a property bag. Typed constructors and accessors below give
// call sites the readability of per-kind structs without losing the
// ability to iterate generically by label, which C7's view table and C8's
// candidate queries both depend on.
package domain

import "fmt"

// Node is a single property-graph vertex. UUID is always present and is the
// store's uniqueness key alongside the first label (§6.3: "the only global
// uniqueness key enforced by the store is (label, uuid)").
type Node struct {
	UUID       string
	Labels     []string
	Properties map[string]any
}

func NewNode(uuid string, labels ...string) *Node {
	n := &Node{
		UUID:       uuid,
		Labels:     append([]string(nil), labels...),
		Properties: make(map[string]any),
	}
	n.Properties[PropUUID] = uuid
	return n
}

func (n *Node) HasLabel(label string) bool {
	for _, l := range n.Labels {
		if l == label {
			return true
		}
	}
	return false
}

func (n *Node) PrimaryLabel() string {
	if len(n.Labels) == 0 {
		return ""
	}
	return n.Labels[0]
}

func (n *Node) Set(key string, val any) *Node {
	if n.Properties == nil {
		n.Properties = make(map[string]any)
	}
	n.Properties[key] = val
	return n
}

func (n *Node) GetString(key string) string {
	if n.Properties == nil {
		return ""
	}
	if v, ok := n.Properties[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func (n *Node) GetStringPtr(key string) *string {
	if n.Properties == nil {
		return nil
	}
	v, ok := n.Properties[key]
	if !ok || v == nil {
		return nil
	}
	if s, ok := v.(string); ok {
		return &s
	}
	return nil
}

func (n *Node) GetBool(key string) bool {
	if n.Properties == nil {
		return false
	}
	if v, ok := n.Properties[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

func (n *Node) GetInt(key string) int {
	if n.Properties == nil {
		return 0
	}
	switch v := n.Properties[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// Clone returns a deep-enough copy (property map is copied; property values
// are not) for use when snapshotting for the Metadata Preserver (§4.4).
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := &Node{
		UUID:       n.UUID,
		Labels:     append([]string(nil), n.Labels...),
		Properties: make(map[string]any, len(n.Properties)),
	}
	for k, v := range n.Properties {
		c.Properties[k] = v
	}
	return c
}

func (n *Node) String() string {
	return fmt.Sprintf("Node(%v %s)", n.Labels, n.UUID)
}

// Relationship is a directed, typed property-graph edge. ToUUID may be
// empty for a PENDING_IMPORT edge, whose real target is only known by name
// until the Relationship Resolver's sweep (§4.6) finds it.
type Relationship struct {
	Type       string
	FromUUID   string
	ToUUID     string
	Properties map[string]any
}

func NewRelationship(relType, fromUUID, toUUID string) *Relationship {
	return &Relationship{
		Type:       relType,
		FromUUID:   fromUUID,
		ToUUID:     toUUID,
		Properties: make(map[string]any),
	}
}

func (r *Relationship) Set(key string, val any) *Relationship {
	if r.Properties == nil {
		r.Properties = make(map[string]any)
	}
	r.Properties[key] = val
	return r
}
