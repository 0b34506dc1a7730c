package reasoner

import (
	"context"

	"bitbucket.org/creachadair/stringset"

	"github.com/twinfer/ontograph/ontology"
)

// StructuralReasoner computes the transitive subsumption closure from
// asserted subClassOf axioms only. It derives no equivalences, no
// inferred parents and no unsatisfiability; sources that only need
// hierarchy expansion can select it as a cheaper alternative.
type StructuralReasoner struct{}

// NewStructuralReasoner returns an asserted-hierarchy-only reasoner.
func NewStructuralReasoner() *StructuralReasoner {
	return &StructuralReasoner{}
}

var _ Reasoner = (*StructuralReasoner)(nil)

// Classify builds the ancestor closure by walking asserted parents.
// Ancestors come out in walk order, nearest-first. Cyclic assertions
// terminate via the visited set.
func (r *StructuralReasoner) Classify(ctx context.Context, statements []ontology.Statement) (*Closure, error) {
	c := newClosure()

	for _, stmt := range statements {
		if stmt.Predicate != ontology.RDFSSubClassOf || stmt.IsLiteral {
			continue
		}
		if isBlank(stmt.Subject) || isBlank(stmt.Object) {
			continue
		}
		c.DirectParents[stmt.Subject] = append(c.DirectParents[stmt.Subject], stmt.Object)
	}

	for class := range c.DirectParents {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		visited := stringset.New()
		var ancestors []string
		queue := append([]string(nil), c.DirectParents[class]...)
		for len(queue) > 0 {
			next := queue[0]
			queue = queue[1:]
			if next == class || !visited.Add(next) {
				continue
			}
			ancestors = append(ancestors, next)
			queue = append(queue, c.DirectParents[next]...)
		}
		c.Ancestors[class] = ancestors
	}

	return c, nil
}
