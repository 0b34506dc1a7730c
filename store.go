package ontograph

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"bitbucket.org/creachadair/stringset"

	"github.com/twinfer/ontograph/ontology"
)

// Store is the indexed property graph. Writers are serialized through a
// single mutex; every merge produces a fresh immutable snapshot that is
// swapped in atomically, so readers always see the last fully-merged
// state and never an in-progress mutation.
type Store struct {
	mu   sync.Mutex
	snap atomic.Pointer[Snapshot]
}

// Snapshot is an immutable view of the graph at one merge boundary.
// All read operations are served from a snapshot. Returned nodes and
// edges are shared with the snapshot and must not be mutated.
type Snapshot struct {
	nodes   map[string]*Node
	edges   map[string]*Edge
	aliases map[string]string

	// indexed names the properties carrying a secondary index.
	indexed stringset.Set
	// index and fold map property name -> value -> node id set; fold
	// keys are case-folded for case-insensitive exact lookup.
	index map[string]map[string]stringset.Set
	fold  map[string]map[string]stringset.Set

	// closurePreds are the edge predicates that participate in
	// hierarchy expansion; parents/children hold their adjacency.
	closurePreds stringset.Set
	parents      map[string][]string
	children     map[string][]string
}

// StoreOption configures a Store at construction time.
type StoreOption func(*Snapshot)

// WithIndexedProperties sets the properties indexed from the start.
func WithIndexedProperties(names ...string) StoreOption {
	return func(s *Snapshot) {
		s.indexed = stringset.New(names...)
	}
}

// WithClosurePredicates sets the edge predicates treated as
// subsumption relations during query expansion.
func WithClosurePredicates(preds ...string) StoreOption {
	return func(s *Snapshot) {
		s.closurePreds = stringset.New(preds...)
	}
}

// NewStore creates an empty store. Without options it indexes label,
// synonym and category, and expands over subClassOf edges in both CURIE
// and full-URI form.
func NewStore(opts ...StoreOption) *Store {
	snap := emptySnapshot()
	snap.indexed = stringset.New("label", "synonym", "category")
	snap.closurePreds = stringset.New(ontology.RDFSSubClassOf, "rdfs:subClassOf", "subClassOf")
	for _, opt := range opts {
		opt(snap)
	}
	store := &Store{}
	store.snap.Store(snap)
	return store
}

func emptySnapshot() *Snapshot {
	return &Snapshot{
		nodes:    make(map[string]*Node),
		edges:    make(map[string]*Edge),
		aliases:  make(map[string]string),
		index:    make(map[string]map[string]stringset.Set),
		fold:     make(map[string]map[string]stringset.Set),
		parents:  make(map[string][]string),
		children: make(map[string][]string),
	}
}

// clone makes a copy of the snapshot that shares node and edge values
// but owns all container maps, so the copy can be mutated while readers
// keep using the original.
func (s *Snapshot) clone() *Snapshot {
	out := &Snapshot{
		nodes:        make(map[string]*Node, len(s.nodes)),
		edges:        make(map[string]*Edge, len(s.edges)),
		aliases:      make(map[string]string, len(s.aliases)),
		indexed:      stringset.New(s.indexed.Elements()...),
		index:        make(map[string]map[string]stringset.Set, len(s.index)),
		fold:         make(map[string]map[string]stringset.Set, len(s.fold)),
		closurePreds: stringset.New(s.closurePreds.Elements()...),
		parents:      make(map[string][]string, len(s.parents)),
		children:     make(map[string][]string, len(s.children)),
	}
	for id, n := range s.nodes {
		out.nodes[id] = n
	}
	for k, e := range s.edges {
		out.edges[k] = e
	}
	for a, c := range s.aliases {
		out.aliases[a] = c
	}
	for name, postings := range s.index {
		cp := make(map[string]stringset.Set, len(postings))
		for value, ids := range postings {
			cp[value] = stringset.New(ids.Elements()...)
		}
		out.index[name] = cp
	}
	for name, postings := range s.fold {
		cp := make(map[string]stringset.Set, len(postings))
		for value, ids := range postings {
			cp[value] = stringset.New(ids.Elements()...)
		}
		out.fold[name] = cp
	}
	for id, ps := range s.parents {
		out.parents[id] = append([]string(nil), ps...)
	}
	for id, cs := range s.children {
		out.children[id] = append([]string(nil), cs...)
	}
	return out
}

// Snapshot returns the current immutable read view.
func (s *Store) Snapshot() *Snapshot {
	return s.snap.Load()
}

// Merge adds the given nodes, edges and equivalence aliases to the
// graph, applying the union rules: node properties and categories are
// appended and deduplicated, edges collapse on (sub, pred, obj), and
// alias identifiers resolve to their canonical node. Indices and
// expansion adjacency are updated in the same snapshot swap, so reads
// are never served from a stale index.
func (s *Store) Merge(nodes []*Node, edges []*Edge, aliases map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.snap.Load().clone()

	for alias, canonical := range aliases {
		next.registerAlias(alias, canonical)
	}
	for _, n := range nodes {
		next.mergeNode(n)
	}
	for _, e := range edges {
		next.mergeEdge(e)
	}

	s.snap.Store(next)
}

// IndexProperty builds (or rebuilds) the secondary index for the named
// property over the current graph and keeps it maintained by future
// merges.
func (s *Store) IndexProperty(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.snap.Load().clone()
	next.indexed.Add(name)
	delete(next.index, name)
	delete(next.fold, name)
	for _, n := range next.nodes {
		next.indexNode(n, name)
	}
	s.snap.Store(next)
}

// registerAlias records alias -> canonical. If a node was previously
// merged under the alias identifier, its content moves to the canonical
// node and the indices are rebuilt to drop the stale postings.
func (s *Snapshot) registerAlias(alias, canonical string) {
	if alias == canonical {
		return
	}
	s.aliases[alias] = canonical

	orphan, ok := s.nodes[alias]
	if !ok {
		return
	}
	delete(s.nodes, alias)
	s.mergeNode(&Node{
		ID:         canonical,
		Label:      orphan.Label,
		Categories: orphan.Categories,
		Properties: orphan.Properties,
		Deprecated: orphan.Deprecated,
	})
	s.rebuildIndices()
}

// Resolve maps an identifier through the alias table to its canonical
// node id. Non-aliased identifiers map to themselves.
func (s *Snapshot) Resolve(id string) string {
	seen := stringset.New(id)
	for {
		canonical, ok := s.aliases[id]
		if !ok || !seen.Add(canonical) {
			return id
		}
		id = canonical
	}
}

func (s *Snapshot) mergeNode(incoming *Node) {
	id := s.Resolve(incoming.ID)
	existing, ok := s.nodes[id]
	if !ok {
		n := incoming.Clone()
		n.ID = id
		s.nodes[id] = n
		s.indexNodeAll(n)
		return
	}
	// Copy-on-write: the node value may be shared with older snapshots.
	merged := existing.Clone()
	merged.mergeFrom(incoming)
	s.nodes[id] = merged
	s.indexNodeAll(merged)
}

func (s *Snapshot) mergeEdge(incoming *Edge) {
	e := &Edge{
		Sub:  s.Resolve(incoming.Sub),
		Obj:  s.Resolve(incoming.Obj),
		Pred: incoming.Pred,
		Meta: incoming.Meta,
	}
	key := e.Key()
	if _, ok := s.edges[key]; ok {
		return
	}
	s.edges[key] = e

	if s.closurePreds.Contains(e.Pred) {
		s.parents[e.Sub] = appendUnique(s.parents[e.Sub], e.Obj)
		s.children[e.Obj] = appendUnique(s.children[e.Obj], e.Sub)
	}
}

// indexNodeAll refreshes postings for every indexed property of a node.
// Property values only grow, so adding postings is sufficient.
func (s *Snapshot) indexNodeAll(n *Node) {
	for name := range s.indexed {
		s.indexNode(n, name)
	}
}

func (s *Snapshot) indexNode(n *Node, name string) {
	for _, value := range valuesFor(n, name) {
		addPosting(s.index, name, value, n.ID)
		addPosting(s.fold, name, foldValue(value), n.ID)
	}
}

func (s *Snapshot) rebuildIndices() {
	s.index = make(map[string]map[string]stringset.Set)
	s.fold = make(map[string]map[string]stringset.Set)
	for _, n := range s.nodes {
		s.indexNodeAll(n)
	}
}

func addPosting(index map[string]map[string]stringset.Set, name, value, id string) {
	postings, ok := index[name]
	if !ok {
		postings = make(map[string]stringset.Set)
		index[name] = postings
	}
	ids := postings[value]
	ids.Add(id)
	postings[value] = ids
}

// Node returns the node for an identifier, resolving aliases.
func (s *Snapshot) Node(id string) (*Node, bool) {
	n, ok := s.nodes[s.Resolve(id)]
	return n, ok
}

// NodeCount returns the number of canonical nodes.
func (s *Snapshot) NodeCount() int { return len(s.nodes) }

// EdgeCount returns the number of distinct edges.
func (s *Snapshot) EdgeCount() int { return len(s.edges) }

// EdgesBetween returns all edges connecting sub to obj in either
// direction, sorted by predicate for deterministic output.
func (s *Snapshot) EdgesBetween(sub, obj string) []*Edge {
	sub, obj = s.Resolve(sub), s.Resolve(obj)
	var out []*Edge
	for _, e := range s.edges {
		if (e.Sub == sub && e.Obj == obj) || (e.Sub == obj && e.Obj == sub) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pred != out[j].Pred {
			return out[i].Pred < out[j].Pred
		}
		return out[i].Sub < out[j].Sub
	})
	return out
}

// QueryByProperty returns the ids of nodes holding the exact
// (case-sensitive) value under the named indexed property.
func (s *Snapshot) QueryByProperty(name, value string) []string {
	return postingIDs(s.index, name, value)
}

// QueryByPropertyFold is QueryByProperty with case-insensitive matching.
func (s *Snapshot) QueryByPropertyFold(name, value string) []string {
	return postingIDs(s.fold, name, foldValue(value))
}

func postingIDs(index map[string]map[string]stringset.Set, name, value string) []string {
	postings, ok := index[name]
	if !ok {
		return nil
	}
	ids, ok := postings[value]
	if !ok {
		return nil
	}
	out := ids.Elements()
	sort.Strings(out)
	return out
}

// foldValue is the case-folding used by the fold index.
func foldValue(v string) string { return strings.ToLower(v) }

// Nodes returns all canonical nodes sorted by id.
func (s *Snapshot) Nodes() []*Node {
	out := make([]*Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Edges returns all edges sorted by (sub, pred, obj).
func (s *Snapshot) Edges() []*Edge {
	out := make([]*Edge, 0, len(s.edges))
	for _, e := range s.edges {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Sub != b.Sub {
			return a.Sub < b.Sub
		}
		if a.Pred != b.Pred {
			return a.Pred < b.Pred
		}
		return a.Obj < b.Obj
	})
	return out
}

// Aliases returns a copy of the alias table.
func (s *Snapshot) Aliases() map[string]string {
	out := make(map[string]string, len(s.aliases))
	for a, c := range s.aliases {
		out[a] = c
	}
	return out
}

func appendUnique(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}
