package reasoner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twinfer/ontograph/ontology"
)

func subClassOf(sub, sup string) ontology.Statement {
	return ontology.Statement{Subject: sub, Predicate: ontology.RDFSSubClassOf, Object: sup}
}

func equivalentTo(a, b string) ontology.Statement {
	return ontology.Statement{Subject: a, Predicate: ontology.OWLEquivalentClass, Object: b}
}

func disjointWith(a, b string) ontology.Statement {
	return ontology.Statement{Subject: a, Predicate: ontology.OWLDisjointWith, Object: b}
}

const (
	clsA = "http://example.org/A"
	clsB = "http://example.org/B"
	clsC = "http://example.org/C"
	clsD = "http://example.org/D"
)

func TestMangleAncestors(t *testing.T) {
	r := NewMangleReasoner()
	closure, err := r.Classify(context.Background(), []ontology.Statement{
		subClassOf(clsA, clsB),
		subClassOf(clsB, clsC),
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{clsB, clsC}, closure.Ancestors[clsA])
	assert.ElementsMatch(t, []string{clsC}, closure.Ancestors[clsB])
	assert.Empty(t, closure.Ancestors[clsC])

	assert.Equal(t, []string{clsB}, closure.DirectParents[clsA])
	assert.True(t, closure.Unsatisfiable.Empty())
}

func TestMangleAncestorsNearestFirst(t *testing.T) {
	// zz-near sorts after aa-far; the order must follow hierarchy depth,
	// not the identifier sort.
	const (
		child = "http://example.org/child"
		near  = "http://example.org/zz-near"
		far   = "http://example.org/aa-far"
	)
	r := NewMangleReasoner()
	closure, err := r.Classify(context.Background(), []ontology.Statement{
		subClassOf(child, near),
		subClassOf(near, far),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{near, far}, closure.Ancestors[child])
}

func TestMangleEquivalence(t *testing.T) {
	r := NewMangleReasoner()
	closure, err := r.Classify(context.Background(), []ontology.Statement{
		equivalentTo(clsA, clsB),
		equivalentTo(clsB, clsC),
	})
	require.NoError(t, err)

	// Symmetric-transitive closure, excluding the class itself.
	assert.ElementsMatch(t, []string{clsB, clsC}, closure.Equivalent[clsA])
	assert.ElementsMatch(t, []string{clsA, clsC}, closure.Equivalent[clsB])
	assert.ElementsMatch(t, []string{clsA, clsB}, closure.Equivalent[clsC])
}

func TestMangleInferredParents(t *testing.T) {
	r := NewMangleReasoner()
	closure, err := r.Classify(context.Background(), []ontology.Statement{
		equivalentTo(clsA, clsB),
		subClassOf(clsB, clsC),
	})
	require.NoError(t, err)

	// A gains B's direct parent through the equivalence; B gains nothing
	// beyond its asserted parent.
	assert.ElementsMatch(t, []string{clsC}, closure.InferredParents[clsA])
	assert.Empty(t, closure.InferredParents[clsB])
}

func TestMangleUnsatisfiable(t *testing.T) {
	r := NewMangleReasoner()
	closure, err := r.Classify(context.Background(), []ontology.Statement{
		subClassOf(clsA, clsB),
		subClassOf(clsA, clsC),
		disjointWith(clsB, clsC),
		subClassOf(clsD, clsA), // subclasses of unsatisfiable classes are unsatisfiable
	})
	require.NoError(t, err)

	assert.True(t, closure.Unsatisfiable.Contains(clsA))
	assert.True(t, closure.Unsatisfiable.Contains(clsD))
	assert.False(t, closure.Unsatisfiable.Contains(clsB))
	assert.False(t, closure.Unsatisfiable.Contains(clsC))
}

func TestMangleSubclassOfNothing(t *testing.T) {
	r := NewMangleReasoner()
	closure, err := r.Classify(context.Background(), []ontology.Statement{
		subClassOf(clsA, ontology.OWLNothing),
	})
	require.NoError(t, err)

	assert.True(t, closure.Unsatisfiable.Contains(clsA))
}

func TestMangleInconsistentOntology(t *testing.T) {
	r := NewMangleReasoner()
	_, err := r.Classify(context.Background(), []ontology.Statement{
		subClassOf(ontology.OWLThing, ontology.OWLNothing),
	})
	assert.ErrorIs(t, err, ErrOntologyInconsistent)
}

func TestMangleEmptyInput(t *testing.T) {
	r := NewMangleReasoner()
	closure, err := r.Classify(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, closure.Equivalent)
	assert.True(t, closure.Unsatisfiable.Empty())
}

func TestStructuralClosure(t *testing.T) {
	r := NewStructuralReasoner()
	closure, err := r.Classify(context.Background(), []ontology.Statement{
		subClassOf(clsA, clsB),
		subClassOf(clsB, clsC),
		equivalentTo(clsA, clsD), // ignored by the structural reasoner
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{clsB, clsC}, closure.Ancestors[clsA])
	assert.Empty(t, closure.Equivalent)
	assert.True(t, closure.Unsatisfiable.Empty())
}

func TestStructuralAncestorsNearestFirst(t *testing.T) {
	const (
		child = "http://example.org/child"
		near  = "http://example.org/zz-near"
		far   = "http://example.org/aa-far"
	)
	r := NewStructuralReasoner()
	closure, err := r.Classify(context.Background(), []ontology.Statement{
		subClassOf(child, near),
		subClassOf(near, far),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{near, far}, closure.Ancestors[child])
}

func TestStructuralCyclicAssertions(t *testing.T) {
	r := NewStructuralReasoner()
	closure, err := r.Classify(context.Background(), []ontology.Statement{
		subClassOf(clsA, clsB),
		subClassOf(clsB, clsA),
	})
	require.NoError(t, err)

	// Must terminate; each class sees the other as an ancestor.
	assert.ElementsMatch(t, []string{clsB}, closure.Ancestors[clsA])
	assert.ElementsMatch(t, []string{clsA}, closure.Ancestors[clsB])
}

func TestFactoryRegistry(t *testing.T) {
	for _, name := range []string{"", "mangle", "structural"} {
		r, err := New(name)
		require.NoError(t, err, "factory %q", name)
		require.NotNil(t, r)
	}
	_, err := New("elk")
	assert.Error(t, err)
	assert.False(t, Known("elk"))
	assert.True(t, Known("mangle"))
}
