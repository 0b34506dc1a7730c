package reasoner

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"bitbucket.org/creachadair/stringset"
	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	"github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"

	"github.com/twinfer/ontograph/ontology"
)

// subsumptionRules derives the closure from asserted axioms. The seed
// facts are OWL tautologies (Nothing is a subclass of Thing, disjoint
// with Thing, and Thing is equivalent to itself); they guarantee every
// extensional predicate has at least one clause regardless of input.
const subsumptionRules = `
ancestor(X, Y) :- subclass_of(X, Y).
ancestor(X, Z) :- subclass_of(X, Y), ancestor(Y, Z).

equiv(X, Y) :- equivalent_to(X, Y).
equiv(X, Y) :- equivalent_to(Y, X).
equiv(X, Z) :- equiv(X, Y), equiv(Y, Z).

disjoint(X, Y) :- disjoint_with(X, Y).
disjoint(X, Y) :- disjoint_with(Y, X).

inferred_parent(X, Z) :- equiv(X, Y), subclass_of(Y, Z).

unsat(X) :- ancestor(X, "http://www.w3.org/2002/07/owl#Nothing").
unsat(X) :- ancestor(X, A), ancestor(X, B), disjoint(A, B).
unsat(X) :- ancestor(X, A), disjoint(X, A).
unsat(X) :- ancestor(X, Y), unsat(Y).
unsat(X) :- equiv(X, Y), unsat(Y).
`

// MangleReasoner evaluates subsumption axioms with the Mangle datalog
// engine. Axioms become extensional facts, the rules above become the
// intensional program, and the closure is read back out of the store.
type MangleReasoner struct{}

// NewMangleReasoner returns the default, datalog-backed reasoner.
func NewMangleReasoner() *MangleReasoner {
	return &MangleReasoner{}
}

var _ Reasoner = (*MangleReasoner)(nil)

// Classify evaluates the datalog program for the given statements.
func (r *MangleReasoner) Classify(ctx context.Context, statements []ontology.Statement) (*Closure, error) {
	program := buildProgram(statements)

	unit, err := parse.Unit(strings.NewReader(program))
	if err != nil {
		return nil, fmt.Errorf("failed to parse reasoner program: %w", err)
	}
	programInfo, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze reasoner program: %w", err)
	}

	store := factstore.NewSimpleInMemoryStore()
	if err := engine.EvalProgram(programInfo, store); err != nil {
		return nil, fmt.Errorf("failed to evaluate reasoner program: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return extractClosure(store)
}

// buildProgram renders axiom statements as datalog facts followed by the
// fixed rule set. Only subsumption-relevant predicates are translated.
func buildProgram(statements []ontology.Statement) string {
	var b strings.Builder

	// Tautological seeds, see subsumptionRules.
	writeFact(&b, "subclass_of", ontology.OWLNothing, ontology.OWLThing)
	writeFact(&b, "equivalent_to", ontology.OWLThing, ontology.OWLThing)
	writeFact(&b, "disjoint_with", ontology.OWLNothing, ontology.OWLThing)

	for _, stmt := range statements {
		if stmt.IsLiteral || isBlank(stmt.Subject) || isBlank(stmt.Object) {
			continue
		}
		switch stmt.Predicate {
		case ontology.RDFSSubClassOf:
			writeFact(&b, "subclass_of", stmt.Subject, stmt.Object)
		case ontology.OWLEquivalentClass:
			writeFact(&b, "equivalent_to", stmt.Subject, stmt.Object)
		case ontology.OWLDisjointWith:
			writeFact(&b, "disjoint_with", stmt.Subject, stmt.Object)
		}
	}

	b.WriteString(subsumptionRules)
	return b.String()
}

func writeFact(b *strings.Builder, predicate, subject, object string) {
	fmt.Fprintf(b, "%s(%s, %s).\n", predicate, strconv.Quote(subject), strconv.Quote(object))
}

func isBlank(id string) bool {
	return strings.HasPrefix(id, "_:")
}

// extractClosure reads the evaluated relations back into a Closure and
// applies the whole-ontology consistency check.
func extractClosure(store factstore.FactStore) (*Closure, error) {
	c := newClosure()

	directParents, err := collectPairs(store, "subclass_of")
	if err != nil {
		return nil, err
	}
	// Drop the tautological seed before exposing asserted parents.
	delete(directParents, ontology.OWLNothing)
	c.DirectParents = directParents

	if c.Ancestors, err = collectPairs(store, "ancestor"); err != nil {
		return nil, err
	}
	delete(c.Ancestors, ontology.OWLNothing)
	// The datalog store hands facts back in arbitrary order; rearrange
	// each ancestor set nearest-first so downstream consumers see close
	// ancestors before distant ones.
	for class, ancestors := range c.Ancestors {
		c.Ancestors[class] = orderAncestors(class, c.DirectParents, ancestors)
	}

	equiv, err := collectPairs(store, "equiv")
	if err != nil {
		return nil, err
	}
	for class, members := range equiv {
		others := members[:0]
		for _, m := range members {
			if m != class {
				others = append(others, m)
			}
		}
		if len(others) > 0 {
			c.Equivalent[class] = others
		}
	}
	delete(c.Equivalent, ontology.OWLThing)

	inferred, err := collectPairs(store, "inferred_parent")
	if err != nil {
		return nil, err
	}
	for class, parents := range inferred {
		asserted := stringset.New(c.DirectParents[class]...)
		var extra []string
		for _, p := range parents {
			if p != class && !asserted.Contains(p) {
				extra = append(extra, p)
			}
		}
		if len(extra) > 0 {
			c.InferredParents[class] = extra
		}
	}

	if err := collectUnary(store, "unsat", c.Unsatisfiable); err != nil {
		return nil, err
	}
	c.Unsatisfiable.Discard(ontology.OWLNothing)

	if c.Unsatisfiable.Contains(ontology.OWLThing) {
		return nil, ErrOntologyInconsistent
	}
	return c, nil
}

// collectPairs gathers all facts of a binary predicate into a
// subject-to-objects map with sorted, deduplicated values.
func collectPairs(store factstore.FactStore, name string) (map[string][]string, error) {
	pred := ast.PredicateSym{Symbol: name, Arity: 2}
	sets := make(map[string]stringset.Set)

	err := store.GetFacts(ast.NewQuery(pred), func(a ast.Atom) error {
		subject, err := a.Args[0].(ast.Constant).StringValue()
		if err != nil {
			return err
		}
		object, err := a.Args[1].(ast.Constant).StringValue()
		if err != nil {
			return err
		}
		set := sets[subject]
		set.Add(object)
		sets[subject] = set
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect %s facts: %w", name, err)
	}

	out := make(map[string][]string, len(sets))
	for subject, set := range sets {
		values := set.Elements()
		sort.Strings(values)
		out[subject] = values
	}
	return out, nil
}

// collectUnary gathers all facts of a unary predicate into a set.
func collectUnary(store factstore.FactStore, name string, into stringset.Set) error {
	pred := ast.PredicateSym{Symbol: name, Arity: 1}
	err := store.GetFacts(ast.NewQuery(pred), func(a ast.Atom) error {
		value, err := a.Args[0].(ast.Constant).StringValue()
		if err != nil {
			return err
		}
		into.Add(value)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to collect %s facts: %w", name, err)
	}
	return nil
}
