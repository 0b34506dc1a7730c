// Package reasoner computes logical entailments (subsumption closure,
// equivalences, unsatisfiability) over the class axioms of one ontology
// source. Implementations are selected by a factory identifier from the
// source configuration; the ingestion pipeline depends only on the
// Reasoner interface.
package reasoner

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"bitbucket.org/creachadair/stringset"

	"github.com/twinfer/ontograph/ontology"
)

// ErrOntologyInconsistent is returned when the ontology is logically
// unsatisfiable as a whole. The pipeline skips the source with a warning;
// other sources still load.
var ErrOntologyInconsistent = errors.New("ontology is inconsistent")

// Closure is the reasoner output for one source. All identifiers are
// full URIs; CURIE normalization happens later, during graph building.
type Closure struct {
	// DirectParents maps a class to its asserted direct superclasses.
	DirectParents map[string][]string
	// InferredParents maps a class to direct superclasses the reasoner
	// derived beyond the asserted ones.
	InferredParents map[string][]string
	// Ancestors maps a class to its full transitive superclass set,
	// ordered nearest-first by a breadth-first walk from the class.
	Ancestors map[string][]string
	// Equivalent maps a class to the other members of its equivalence
	// class (symmetric-transitive closure of equivalentClass axioms).
	Equivalent map[string][]string
	// Unsatisfiable holds classes that cannot have instances.
	Unsatisfiable stringset.Set
}

// Reasoner classifies the statements of a single ontology source.
type Reasoner interface {
	Classify(ctx context.Context, statements []ontology.Statement) (*Closure, error)
}

// DefaultFactory is used when a source does not name a reasoner.
const DefaultFactory = "mangle"

// New returns the reasoner implementation registered under factory.
// The empty string selects DefaultFactory.
func New(factory string) (Reasoner, error) {
	switch factory {
	case "", DefaultFactory:
		return NewMangleReasoner(), nil
	case "structural":
		return NewStructuralReasoner(), nil
	default:
		return nil, fmt.Errorf("unknown reasoner factory %q", factory)
	}
}

// Known reports whether factory names a registered reasoner.
func Known(factory string) bool {
	_, err := New(factory)
	return err == nil
}

// newClosure returns an empty, fully-initialized closure.
func newClosure() *Closure {
	return &Closure{
		DirectParents:   make(map[string][]string),
		InferredParents: make(map[string][]string),
		Ancestors:       make(map[string][]string),
		Equivalent:      make(map[string][]string),
		Unsatisfiable:   stringset.New(),
	}
}

// orderAncestors arranges an ancestor set nearest-first: a breadth-first
// walk over direct parents starting at class. Ancestors the walk cannot
// reach through asserted parents follow in sorted order at the tail.
func orderAncestors(class string, direct map[string][]string, ancestors []string) []string {
	remaining := stringset.New(ancestors...)
	out := make([]string, 0, len(ancestors))
	visited := stringset.New()
	queue := append([]string(nil), direct[class]...)

	for len(queue) > 0 && !remaining.Empty() {
		next := queue[0]
		queue = queue[1:]
		if next == class || !visited.Add(next) {
			continue
		}
		if remaining.Contains(next) {
			remaining.Discard(next)
			out = append(out, next)
		}
		queue = append(queue, direct[next]...)
	}

	rest := remaining.Elements()
	sort.Strings(rest)
	return append(out, rest...)
}
