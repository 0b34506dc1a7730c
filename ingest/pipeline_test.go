package ingest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twinfer/ontograph"
	"github.com/twinfer/ontograph/mapping"
	"github.com/twinfer/ontograph/ontology"
)

// fakeLoader serves canned statements per URL and fails for URLs it does
// not know, mimicking an unreachable source.
type fakeLoader struct {
	docs map[string][]ontology.Statement
}

func (f *fakeLoader) Load(_ context.Context, src ontology.Source) ([]ontology.Statement, error) {
	stmts, ok := f.docs[src.URL]
	if !ok {
		return nil, fmt.Errorf("%w: %s: connection refused", ontology.ErrSourceLoadFailed, src.URL)
	}
	return stmts, nil
}

func TestPipelineRun(t *testing.T) {
	loader := &fakeLoader{docs: map[string][]ontology.Statement{
		"https://example.org/doid.json": {
			classOf(doid4),
			literal(doid4, ontology.RDFSLabel, "disease"),
			classOf(doid1781),
			literal(doid1781, ontology.RDFSLabel, "thyroid angiosarcoma"),
			subClassOf(doid1781, doid4),
		},
		"https://example.org/ext.json": {
			classOf(doid9999),
			literal(doid9999, ontology.RDFSLabel, "synthetic disease"),
			subClassOf(doid9999, doid4),
		},
	}}

	store := ontograph.NewStore()
	p := NewPipeline(loader, testBuilder(t), store, 4, nil)

	summary, err := p.Run(context.Background(), []ontology.Source{
		{URL: "https://example.org/doid.json", Reasoner: ontology.ReasonerConfig{Factory: "structural"}},
		{URL: "https://example.org/ext.json", Reasoner: ontology.ReasonerConfig{Factory: "structural"}},
		{URL: "https://example.org/missing.json"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://example.org/doid.json",
		"https://example.org/ext.json",
	}, summary.Loaded)
	require.Len(t, summary.Skipped, 1)
	assert.Equal(t, "https://example.org/missing.json", summary.Skipped[0].URL)
	assert.Contains(t, summary.Skipped[0].Reason, "connection refused")

	// Both loaded sources contribute to one graph: DOID:4 is shared.
	assert.Equal(t, 3, summary.Nodes)
	assert.Equal(t, 2, summary.Edges)

	snap := store.Snapshot()
	n, ok := snap.Node("DOID:4")
	require.True(t, ok)
	assert.Equal(t, "disease", n.Label)

	// Expansion works over the merged hierarchy.
	out, err := snap.Expand([]string{"DOID:1781"}, ontograph.ExpandAncestors)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"DOID:1781", "DOID:4"}, out)
}

func TestPipelineMergeOrderIndependence(t *testing.T) {
	docs := map[string][]ontology.Statement{
		"a": {classOf(doid4), literal(doid4, ontology.RDFSLabel, "disease"), literal(doid4, synPred, "disorder")},
		"b": {classOf(doid4), literal(doid4, synPred, "illness")},
	}
	sources := []ontology.Source{
		{URL: "a", Reasoner: ontology.ReasonerConfig{Factory: "structural"}},
		{URL: "b", Reasoner: ontology.ReasonerConfig{Factory: "structural"}},
	}

	// Sequential runs in both orders yield the same value sets.
	run := func(order []ontology.Source) *ontograph.Node {
		store := ontograph.NewStore()
		p := NewPipeline(&fakeLoader{docs: docs}, testBuilder(t), store, 1, nil)
		_, err := p.Run(context.Background(), order)
		require.NoError(t, err)
		n, ok := store.Snapshot().Node("DOID:4")
		require.True(t, ok)
		return n
	}

	forward := run(sources)
	reversed := run([]ontology.Source{sources[1], sources[0]})

	assert.ElementsMatch(t, forward.Properties["synonym"], reversed.Properties["synonym"])
	assert.Len(t, forward.Properties["synonym"], 2)
}

func TestPipelineAbortsOnBrokenMapping(t *testing.T) {
	loader := &fakeLoader{docs: map[string][]ontology.Statement{
		"a": {classOf(doid4), literal(doid4, synPred, "growth")},
	}}
	builder := NewBuilder(
		testResolver(t),
		mapping.NewPropertyMapper(map[string][]string{
			"synonym":      {synPred},
			"abbreviation": {synPred},
		}),
		mapping.NewCategoryAssigner(nil),
		nil,
	)
	p := NewPipeline(loader, builder, ontograph.NewStore(), 2, nil)

	_, err := p.Run(context.Background(), []ontology.Source{
		{URL: "a", Reasoner: ontology.ReasonerConfig{Factory: "structural"}},
	})
	assert.ErrorIs(t, err, mapping.ErrAmbiguousMapping)
}

func TestPipelineSkipsInconsistentSource(t *testing.T) {
	loader := &fakeLoader{docs: map[string][]ontology.Statement{
		"good": {classOf(doid4), literal(doid4, ontology.RDFSLabel, "disease")},
		"bad":  {subClassOf(ontology.OWLThing, ontology.OWLNothing)},
	}}
	store := ontograph.NewStore()
	p := NewPipeline(loader, testBuilder(t), store, 2, nil)

	summary, err := p.Run(context.Background(), []ontology.Source{
		{URL: "good", Reasoner: ontology.ReasonerConfig{Factory: "structural"}},
		{URL: "bad", Reasoner: ontology.ReasonerConfig{Factory: "mangle"}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"good"}, summary.Loaded)
	require.Len(t, summary.Skipped, 1)
	assert.Equal(t, "bad", summary.Skipped[0].URL)
	assert.Contains(t, summary.Skipped[0].Reason, "inconsistent")
	assert.Equal(t, 1, summary.Nodes)
}

func TestPipelineUnknownReasonerFactory(t *testing.T) {
	loader := &fakeLoader{docs: map[string][]ontology.Statement{"a": {classOf(doid4)}}}
	p := NewPipeline(loader, testBuilder(t), ontograph.NewStore(), 1, nil)

	_, err := p.Run(context.Background(), []ontology.Source{
		{URL: "a", Reasoner: ontology.ReasonerConfig{Factory: "elk"}},
	})
	assert.Error(t, err)
}
