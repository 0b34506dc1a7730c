// Package ingest turns reasoned ontology sources into graph fragments
// and drives the concurrent multi-source ingestion run.
package ingest

import (
	"log/slog"
	"sort"
	"strings"

	"bitbucket.org/creachadair/stringset"

	"github.com/twinfer/ontograph"
	"github.com/twinfer/ontograph/curie"
	"github.com/twinfer/ontograph/mapping"
	"github.com/twinfer/ontograph/ontology"
	"github.com/twinfer/ontograph/reasoner"
)

// Fragment is the graph contribution of one reasoned source, ready to be
// merged into the store.
type Fragment struct {
	Nodes   []*ontograph.Node
	Edges   []*ontograph.Edge
	Aliases map[string]string
	// RemovedUnsatisfiable counts classes dropped because the reasoner
	// proved them unsatisfiable.
	RemovedUnsatisfiable int
}

// Builder converts statements plus their reasoned closure into a graph
// fragment: CURIE-normalized nodes with canonical properties and category
// labels, deduplicated edges, and equivalence aliases.
type Builder struct {
	resolver   *curie.Resolver
	properties *mapping.PropertyMapper
	categories *mapping.CategoryAssigner
	logger     *slog.Logger
}

// NewBuilder wires a fragment builder.
func NewBuilder(resolver *curie.Resolver, properties *mapping.PropertyMapper, categories *mapping.CategoryAssigner, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		resolver:   resolver,
		properties: properties,
		categories: categories,
		logger:     logger,
	}
}

// Build assembles the fragment for one source. cfg controls which
// inferences materialize: direct inferred parent edges, equivalence
// aliasing, and unsatisfiable-class removal.
//
// Property mapping failures (a raw URI configured under two canonical
// names) abort the build; they indicate broken configuration, not broken
// source data.
func (b *Builder) Build(stmts []ontology.Statement, closure *reasoner.Closure, cfg ontology.ReasonerConfig) (*Fragment, error) {
	classes := collectClasses(stmts)

	removed := 0
	if cfg.RemoveUnsatisfiableClasses && !closure.Unsatisfiable.Empty() {
		for uri := range classes {
			if closure.Unsatisfiable.Contains(uri) {
				classes.Discard(uri)
				removed++
			}
		}
		if removed > 0 {
			b.logger.Warn("removed unsatisfiable classes", slog.Int("count", removed))
		}
	}

	frag := &Fragment{Aliases: map[string]string{}, RemovedUnsatisfiable: removed}
	nodes := make(map[string]*ontograph.Node, len(classes))

	nodeFor := func(uri string) *ontograph.Node {
		id := b.normalize(uri)
		n, ok := nodes[id]
		if !ok {
			n = ontograph.NewNode(id)
			nodes[id] = n
		}
		return n
	}
	for uri := range classes {
		nodeFor(uri)
	}

	edgeSeen := stringset.New()
	addEdge := func(e *ontograph.Edge) {
		if edgeSeen.Add(e.Key()) {
			frag.Edges = append(frag.Edges, e)
		}
	}

	for _, stmt := range stmts {
		if !classes.Contains(stmt.Subject) {
			continue
		}
		if stmt.IsLiteral {
			if err := b.applyLiteral(nodeFor(stmt.Subject), stmt); err != nil {
				return nil, err
			}
			continue
		}
		// IRI objects become edges when both ends are kept classes. Type
		// assertions and links into filtered territory (blank nodes,
		// owl:Thing) carry no graph information.
		if stmt.Predicate == ontology.RDFType || !classes.Contains(stmt.Object) {
			continue
		}
		addEdge(&ontograph.Edge{
			Sub:  b.normalize(stmt.Subject),
			Obj:  b.normalize(stmt.Object),
			Pred: b.normalize(stmt.Predicate),
		})
	}

	for uri := range classes {
		n := nodeFor(uri)
		for _, label := range b.categories.CategoriesFor(uri, closure.Ancestors[uri]) {
			n.AddCategory(label)
		}
	}

	if cfg.AddDirectInferredEdges {
		subClassOf := b.normalize(ontology.RDFSSubClassOf)
		for uri := range classes {
			for _, parent := range closure.InferredParents[uri] {
				if !classes.Contains(parent) {
					continue
				}
				addEdge(&ontograph.Edge{
					Sub:  b.normalize(uri),
					Obj:  b.normalize(parent),
					Pred: subClassOf,
					Meta: map[string]string{"inferred": "true"},
				})
			}
		}
	}

	if cfg.AddInferredEquivalences {
		b.collapseEquivalences(classes, closure, frag)
	}

	frag.Nodes = make([]*ontograph.Node, 0, len(nodes))
	for _, n := range nodes {
		frag.Nodes = append(frag.Nodes, n)
	}
	sort.Slice(frag.Nodes, func(i, j int) bool { return frag.Nodes[i].ID < frag.Nodes[j].ID })
	return frag, nil
}

// collectClasses gathers the class URIs a fragment will materialize:
// everything typed owl:Class plus both ends of subClassOf assertions.
// Blank nodes and the owl:Thing/owl:Nothing poles stay out of the graph.
func collectClasses(stmts []ontology.Statement) stringset.Set {
	classes := stringset.New()
	add := func(uri string) {
		if isBlank(uri) || uri == ontology.OWLThing || uri == ontology.OWLNothing {
			return
		}
		classes.Add(uri)
	}
	for _, stmt := range stmts {
		switch {
		case stmt.Predicate == ontology.RDFType && stmt.Object == ontology.OWLClass:
			add(stmt.Subject)
		case stmt.Predicate == ontology.RDFSSubClassOf && !stmt.IsLiteral:
			add(stmt.Subject)
			add(stmt.Object)
		}
	}
	return classes
}

// applyLiteral folds one literal statement into the node: the first
// rdfs:label becomes the display label, owl:deprecated flips the flag,
// everything else lands in the property bag under its canonical name.
func (b *Builder) applyLiteral(n *ontograph.Node, stmt ontology.Statement) error {
	switch stmt.Predicate {
	case ontology.RDFSLabel:
		if n.Label == "" {
			n.Label = stmt.Object
		} else if n.Label != stmt.Object {
			n.AddProperty("label", stmt.Object)
		}
		return nil
	case ontology.OWLDeprecated:
		if strings.EqualFold(stmt.Object, "true") {
			n.Deprecated = true
		}
		return nil
	}

	name, err := b.properties.Canonicalize(stmt.Predicate)
	if err != nil {
		return err
	}
	if name == stmt.Predicate {
		// Unmapped raw predicates pass through under their CURIE form.
		name = b.normalize(stmt.Predicate)
	}
	n.AddProperty(name, stmt.Object)
	return nil
}

// collapseEquivalences folds each equivalence class onto its canonical
// member, the lexicographically smallest CURIE. The other members become
// alias lookups; their content merges into the canonical node at store
// merge time.
func (b *Builder) collapseEquivalences(classes stringset.Set, closure *reasoner.Closure, frag *Fragment) {
	for uri := range classes {
		others := closure.Equivalent[uri]
		if len(others) == 0 {
			continue
		}
		canonical := b.normalize(uri)
		members := []string{canonical}
		for _, other := range others {
			if !classes.Contains(other) {
				continue
			}
			id := b.normalize(other)
			members = append(members, id)
			if id < canonical {
				canonical = id
			}
		}
		for _, id := range members {
			if id != canonical {
				frag.Aliases[id] = canonical
			}
		}
	}
}

func isBlank(uri string) bool {
	return strings.HasPrefix(uri, "_:")
}

// normalize maps a URI to the CURIE-normalized identifier space. URIs
// with no configured prefix stay in full form, which Normalize never
// reports as an error.
func (b *Builder) normalize(uri string) string {
	id, err := b.resolver.Normalize(uri)
	if err != nil {
		return uri
	}
	return id
}
