package ontograph

import (
	"bytes"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"github.com/go-json-experiment/json"

	"github.com/twinfer/ontograph/curie"
)

func testResolver() *curie.Resolver {
	return curie.New([]curie.Binding{
		{Prefix: "DOID", Namespace: "http://purl.obolibrary.org/obo/DOID_"},
	}, slog.Default())
}

func vocabularyFixture() *Vocabulary {
	store := NewStore()
	disease := NewNode("DOID:4")
	disease.Label = "disease"
	disease.AddCategory("disease")
	disease.AddProperty("synonym", "disorder")
	disease.AddProperty("definition", "a disposition to undergo pathological processes")

	angio := NewNode("DOID:1781")
	angio.Label = "thyroid angiosarcoma"
	angio.Deprecated = true

	store.Merge(
		[]*Node{disease, angio},
		[]*Edge{{Sub: "DOID:1781", Obj: "DOID:4", Pred: "rdfs:subClassOf"}},
		nil,
	)
	return NewVocabulary(store, testResolver(), nil)
}

func TestGraphResultShape(t *testing.T) {
	v := vocabularyFixture()
	snap := v.store.Snapshot()

	g := snap.GraphResult([]string{"DOID:1781", "DOID:4", "DOID:999999"})
	if len(g.Nodes) != 2 {
		t.Fatalf("got %d nodes, want 2 (unknown ids skipped)", len(g.Nodes))
	}
	if len(g.Edges) != 1 {
		t.Fatalf("got %d edges, want 1", len(g.Edges))
	}
	if g.Edges[0].Sub != "DOID:1781" || g.Edges[0].Pred != "rdfs:subClassOf" {
		t.Errorf("edge = %+v", g.Edges[0])
	}

	// Edges between nodes outside the id set are excluded.
	g = snap.GraphResult([]string{"DOID:1781"})
	if len(g.Nodes) != 1 || len(g.Edges) != 0 {
		t.Errorf("got %d nodes, %d edges; want 1, 0", len(g.Nodes), len(g.Edges))
	}
}

func TestGraphResultJSONFieldNames(t *testing.T) {
	v := vocabularyFixture()
	g := v.store.Snapshot().GraphResult([]string{"DOID:1781", "DOID:4"})

	var buf bytes.Buffer
	if err := g.Write(&buf); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	var doc struct {
		Nodes []map[string]any `json:"nodes"`
		Edges []map[string]any `json:"edges"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	for _, key := range []string{"id", "lbl", "meta"} {
		if _, ok := doc.Nodes[0][key]; !ok {
			t.Errorf("node output is missing %q: %v", key, doc.Nodes[0])
		}
	}
	for _, key := range []string{"sub", "obj", "pred"} {
		if _, ok := doc.Edges[0][key]; !ok {
			t.Errorf("edge output is missing %q: %v", key, doc.Edges[0])
		}
	}
	// Deprecation shows up in node meta.
	for _, n := range doc.Nodes {
		if n["id"] == "DOID:1781" {
			meta := n["meta"].(map[string]any)
			if _, ok := meta["deprecated"]; !ok {
				t.Errorf("deprecated node lacks meta marker: %v", meta)
			}
		}
	}
}

func TestVocabularyConcept(t *testing.T) {
	v := vocabularyFixture()

	c, ok, err := v.Concept("DOID:4")
	if err != nil || !ok {
		t.Fatalf("Concept(DOID:4) = %v, %v", ok, err)
	}
	if c.URI != "http://purl.obolibrary.org/obo/DOID_4" {
		t.Errorf("uri = %q", c.URI)
	}
	if c.Curie != "DOID:4" {
		t.Errorf("curie = %q", c.Curie)
	}
	if c.Fragment != "DOID_4" {
		t.Errorf("fragment = %q, want DOID_4", c.Fragment)
	}
	if !reflect.DeepEqual(c.Labels, []string{"disease"}) {
		t.Errorf("labels = %v", c.Labels)
	}
	if !reflect.DeepEqual(c.Synonyms, []string{"disorder"}) {
		t.Errorf("synonyms = %v", c.Synonyms)
	}
	// Unpopulated list fields serialize as [] rather than null.
	if c.Acronyms == nil || c.Abbreviations == nil {
		t.Error("empty list fields must be non-nil")
	}

	// URI input resolves to the same concept.
	byURI, ok, err := v.Concept("http://purl.obolibrary.org/obo/DOID_4")
	if err != nil || !ok {
		t.Fatalf("Concept by URI = %v, %v", ok, err)
	}
	if byURI.Curie != c.Curie {
		t.Errorf("URI lookup resolved to %q, want %q", byURI.Curie, c.Curie)
	}

	// Unknown identifier: not found, no error.
	if _, ok, err := v.Concept("DOID:999999"); ok || err != nil {
		t.Errorf("unknown id = %v, %v; want false, nil", ok, err)
	}

	// Unknown CURIE prefix is a user error.
	if _, _, err := v.Concept("NOPE:1"); err == nil {
		t.Error("unknown prefix should return an error")
	}
}

func TestVocabularyConceptJSONFieldNames(t *testing.T) {
	v := vocabularyFixture()
	list, err := v.Concepts([]string{"DOID:4"})
	if err != nil {
		t.Fatalf("Concepts failed: %v", err)
	}

	var buf bytes.Buffer
	if err := list.Write(&buf); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	out := buf.String()
	for _, key := range []string{
		`"concepts"`, `"uri"`, `"labels"`, `"fragment"`, `"curie"`,
		`"categories"`, `"synonyms"`, `"acronyms"`, `"abbreviations"`,
		`"deprecated"`, `"definitions"`,
	} {
		if !strings.Contains(out, key) {
			t.Errorf("concept output is missing %s: %s", key, out)
		}
	}
}

func TestVocabularyFindByProperty(t *testing.T) {
	v := vocabularyFixture()

	list, err := v.FindByProperty("synonym", "disorder", ExpandNone)
	if err != nil {
		t.Fatalf("FindByProperty failed: %v", err)
	}
	if len(list.Concepts) != 1 || list.Concepts[0].Curie != "DOID:4" {
		t.Fatalf("concepts = %+v", list.Concepts)
	}

	// Descendant expansion pulls in the subclass.
	list, err = v.FindByProperty("synonym", "disorder", ExpandDescendants)
	if err != nil {
		t.Fatalf("FindByProperty with expansion failed: %v", err)
	}
	if len(list.Concepts) != 2 {
		t.Errorf("expanded concepts = %+v, want 2", list.Concepts)
	}
}

func TestVocabularyFindByPropertySurvivesCycle(t *testing.T) {
	store := NewStore()
	a := NewNode("X:A")
	a.Label = "alpha"
	store.Merge([]*Node{a, NewNode("X:B")}, []*Edge{
		{Sub: "X:A", Obj: "X:B", Pred: "rdfs:subClassOf"},
		{Sub: "X:B", Obj: "X:A", Pred: "rdfs:subClassOf"},
	}, nil)
	var buf bytes.Buffer
	v := NewVocabulary(store, testResolver(), slog.New(slog.NewTextHandler(&buf, nil)))

	list, err := v.FindByProperty("label", "alpha", ExpandAncestors)
	if err != nil {
		t.Fatalf("cyclic data must degrade, not fail: %v", err)
	}
	if len(list.Concepts) != 2 {
		t.Errorf("concepts = %+v, want the full reachable closure", list.Concepts)
	}
	if !strings.Contains(buf.String(), "cycle") {
		t.Errorf("expected a cycle warning in the log, got %q", buf.String())
	}
}
