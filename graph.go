// Package ontograph is an indexed labeled property graph for ontology
// data: CURIE-identified nodes with merged property bags and category
// labels, deduplicated edges, alias lookups for collapsed equivalence
// classes, and secondary indices over configured properties. Reads are
// served from immutable snapshots so queries never observe an
// in-progress merge.
package ontograph

import "bitbucket.org/creachadair/stringset"

// Node is a graph vertex. Nodes are created during graph build and
// mutated only by merges from additional sources: later merges append to
// categories and property values, they never replace them.
type Node struct {
	// ID is the CURIE-normalized identifier.
	ID string
	// Label is the preferred display label, first one discovered wins.
	Label string
	// Categories holds human-readable category labels, ordered by first
	// discovery, deduplicated.
	Categories []string
	// Properties maps canonical property names to ordered, deduplicated
	// value lists.
	Properties map[string][]string
	// Deprecated marks nodes whose class is deprecated in the ontology.
	Deprecated bool
}

// NewNode returns an empty node with an initialized property bag.
func NewNode(id string) *Node {
	return &Node{ID: id, Properties: make(map[string][]string)}
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	out := &Node{
		ID:         n.ID,
		Label:      n.Label,
		Categories: append([]string(nil), n.Categories...),
		Properties: make(map[string][]string, len(n.Properties)),
		Deprecated: n.Deprecated,
	}
	for name, values := range n.Properties {
		out.Properties[name] = append([]string(nil), values...)
	}
	return out
}

// AddProperty appends a value under the named property, preserving
// discovery order and dropping duplicates.
func (n *Node) AddProperty(name, value string) {
	for _, v := range n.Properties[name] {
		if v == value {
			return
		}
	}
	n.Properties[name] = append(n.Properties[name], value)
}

// AddCategory appends a category label if not already present.
func (n *Node) AddCategory(label string) {
	for _, c := range n.Categories {
		if c == label {
			return
		}
	}
	n.Categories = append(n.Categories, label)
}

// mergeFrom unions the other node into n: properties and categories are
// appended (never replaced), the label is kept if already set, and a
// deprecation flag never un-sets.
func (n *Node) mergeFrom(other *Node) {
	if n.Label == "" {
		n.Label = other.Label
	}
	for _, c := range other.Categories {
		n.AddCategory(c)
	}
	for name, values := range other.Properties {
		for _, v := range values {
			n.AddProperty(name, v)
		}
	}
	if other.Deprecated {
		n.Deprecated = true
	}
}

// Edge is a directed, immutable relationship between two nodes.
// Duplicates with the same subject, predicate and object collapse to one.
type Edge struct {
	// Sub and Obj are CURIE-normalized node identifiers.
	Sub string
	Obj string
	// Pred is the relationship predicate, CURIE or URI form.
	Pred string
	// Meta carries edge metadata such as provenance or inference marks.
	Meta map[string]string
}

// Key is the deduplication key for an edge.
func (e *Edge) Key() string {
	return e.Sub + "\x00" + e.Pred + "\x00" + e.Obj
}

// valuesFor returns the node's values for an indexable property name.
// "label" and "category" address the dedicated node fields; every other
// name addresses the property bag.
func valuesFor(n *Node, name string) []string {
	switch name {
	case "label":
		values := n.Properties[name]
		if n.Label != "" && !stringset.New(values...).Contains(n.Label) {
			values = append([]string{n.Label}, values...)
		}
		return values
	case "category":
		return n.Categories
	default:
		return n.Properties[name]
	}
}
