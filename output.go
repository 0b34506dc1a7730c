package ontograph

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/go-json-experiment/json"

	"github.com/twinfer/ontograph/curie"
)

// GraphJSON is the graph query output shape consumed by the external
// API layer: nodes as {id, lbl, meta} and edges as {sub, obj, pred,
// meta}, all identifiers in CURIE form.
type GraphJSON struct {
	Nodes []NodeJSON `json:"nodes"`
	Edges []EdgeJSON `json:"edges"`
}

// NodeJSON is one graph-output node.
type NodeJSON struct {
	ID    string              `json:"id"`
	Label string              `json:"lbl"`
	Meta  map[string][]string `json:"meta"`
}

// EdgeJSON is one graph-output edge.
type EdgeJSON struct {
	Sub  string            `json:"sub"`
	Obj  string            `json:"obj"`
	Pred string            `json:"pred"`
	Meta map[string]string `json:"meta"`
}

// GraphResult projects the given node ids and the edges among them into
// the graph output shape. Unknown ids are skipped.
func (s *Snapshot) GraphResult(ids []string) GraphJSON {
	out := GraphJSON{Nodes: []NodeJSON{}, Edges: []EdgeJSON{}}

	included := make(map[string]bool, len(ids))
	for _, id := range ids {
		n, ok := s.Node(id)
		if !ok || included[n.ID] {
			continue
		}
		included[n.ID] = true
		out.Nodes = append(out.Nodes, nodeJSON(n))
	}

	for _, e := range s.Edges() {
		if included[e.Sub] && included[e.Obj] {
			out.Edges = append(out.Edges, EdgeJSON{Sub: e.Sub, Obj: e.Obj, Pred: e.Pred, Meta: e.Meta})
		}
	}
	return out
}

func nodeJSON(n *Node) NodeJSON {
	meta := make(map[string][]string, len(n.Properties)+2)
	for name, values := range n.Properties {
		meta[name] = values
	}
	if len(n.Categories) > 0 {
		meta["category"] = n.Categories
	}
	if n.Deprecated {
		meta["deprecated"] = []string{"true"}
	}
	return NodeJSON{ID: n.ID, Label: n.Label, Meta: meta}
}

// Write serializes the graph result as JSON.
func (g GraphJSON) Write(w io.Writer) error {
	return json.MarshalWrite(w, g)
}

// Concept is the vocabulary query output shape for one node.
type Concept struct {
	URI           string   `json:"uri"`
	Labels        []string `json:"labels"`
	Fragment      string   `json:"fragment"`
	Curie         string   `json:"curie"`
	Categories    []string `json:"categories"`
	Synonyms      []string `json:"synonyms"`
	Acronyms      []string `json:"acronyms"`
	Abbreviations []string `json:"abbreviations"`
	Deprecated    bool     `json:"deprecated"`
	Definitions   []string `json:"definitions"`
}

// ConceptList is the vocabulary query response envelope.
type ConceptList struct {
	Concepts []Concept `json:"concepts"`
}

// Write serializes the concept list as JSON.
func (c ConceptList) Write(w io.Writer) error {
	return json.MarshalWrite(w, c)
}

// Vocabulary answers vocabulary queries over a store, translating
// identifiers between URI and CURIE form at the boundary.
type Vocabulary struct {
	store    *Store
	resolver *curie.Resolver
	logger   *slog.Logger
}

// NewVocabulary wires a vocabulary query surface over the store.
func NewVocabulary(store *Store, resolver *curie.Resolver, logger *slog.Logger) *Vocabulary {
	if logger == nil {
		logger = slog.Default()
	}
	return &Vocabulary{store: store, resolver: resolver, logger: logger}
}

// Concept looks up one identifier, accepted in URI or CURIE form.
// Unknown identifiers return ok=false; malformed CURIEs return the
// resolution error for the caller to surface as a user error.
func (v *Vocabulary) Concept(id string) (Concept, bool, error) {
	normalized, err := v.resolver.Normalize(id)
	if err != nil {
		return Concept{}, false, err
	}
	snap := v.store.Snapshot()
	n, ok := snap.Node(normalized)
	if !ok {
		return Concept{}, false, nil
	}
	return v.concept(n), true, nil
}

// Concepts resolves a batch of identifiers, skipping unknown ones.
func (v *Vocabulary) Concepts(ids []string) (ConceptList, error) {
	out := ConceptList{Concepts: []Concept{}}
	for _, id := range ids {
		c, ok, err := v.Concept(id)
		if err != nil {
			return ConceptList{}, err
		}
		if ok {
			out.Concepts = append(out.Concepts, c)
		}
	}
	return out, nil
}

// FindByProperty answers a vocabulary search: exact property match,
// optionally broadened by hierarchy expansion of the hits. A cycle in
// the hierarchy degrades to the partial closure with a logged warning,
// never an empty result.
func (v *Vocabulary) FindByProperty(name, value string, mode ExpandMode) (ConceptList, error) {
	snap := v.store.Snapshot()
	ids := snap.QueryByProperty(name, value)

	expanded, err := snap.Expand(ids, mode)
	if err != nil {
		if !errors.Is(err, ErrCycleDetected) {
			return ConceptList{}, err
		}
		v.logger.Warn("hierarchy cycle during query expansion",
			slog.String("property", name),
			slog.String("mode", mode.String()))
	}

	out := ConceptList{Concepts: make([]Concept, 0, len(expanded))}
	for _, id := range expanded {
		if n, ok := snap.Node(id); ok {
			out.Concepts = append(out.Concepts, v.concept(n))
		}
	}
	return out, nil
}

func (v *Vocabulary) concept(n *Node) Concept {
	uri, err := v.resolver.Expand(n.ID)
	if err != nil {
		// Unmapped raw identifiers stay in their stored form.
		uri = n.ID
	}

	labels := valuesFor(n, "label")
	if labels == nil {
		labels = []string{}
	}

	return Concept{
		URI:           uri,
		Labels:        labels,
		Fragment:      fragmentOf(uri),
		Curie:         n.ID,
		Categories:    orEmpty(n.Categories),
		Synonyms:      orEmpty(n.Properties["synonym"]),
		Acronyms:      orEmpty(n.Properties["acronym"]),
		Abbreviations: orEmpty(n.Properties["abbreviation"]),
		Deprecated:    n.Deprecated,
		Definitions:   orEmpty(n.Properties["definition"]),
	}
}

// fragmentOf returns the local part of a URI: the substring after the
// last '#' or, failing that, the last '/'.
func fragmentOf(uri string) string {
	if idx := strings.LastIndex(uri, "#"); idx >= 0 {
		return uri[idx+1:]
	}
	if idx := strings.LastIndex(uri, "/"); idx >= 0 {
		return uri[idx+1:]
	}
	return uri
}

func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// String implements fmt.Stringer for ExpandMode, mostly for logs.
func (m ExpandMode) String() string {
	switch m {
	case ExpandNone:
		return "none"
	case ExpandAncestors:
		return "ancestors"
	case ExpandDescendants:
		return "descendants"
	default:
		return fmt.Sprintf("ExpandMode(%d)", int(m))
	}
}
