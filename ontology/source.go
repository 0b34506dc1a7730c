// Package ontology models configured ontology sources and loads them
// into plain subject/predicate/object statements via JSON-LD processing.
package ontology

// Well-known RDF/RDFS/OWL vocabulary.
const (
	RDFType = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"

	RDFSLabel      = "http://www.w3.org/2000/01/rdf-schema#label"
	RDFSSubClassOf = "http://www.w3.org/2000/01/rdf-schema#subClassOf"

	OWLClass           = "http://www.w3.org/2002/07/owl#Class"
	OWLThing           = "http://www.w3.org/2002/07/owl#Thing"
	OWLNothing         = "http://www.w3.org/2002/07/owl#Nothing"
	OWLEquivalentClass = "http://www.w3.org/2002/07/owl#equivalentClass"
	OWLDisjointWith    = "http://www.w3.org/2002/07/owl#disjointWith"
	OWLDeprecated      = "http://www.w3.org/2002/07/owl#deprecated"
)

// ReasonerConfig selects the reasoner factory for a source and the
// post-processing applied to its inferences.
type ReasonerConfig struct {
	// Factory identifies the reasoner implementation ("mangle",
	// "structural"). Empty selects the default.
	Factory string `yaml:"factory"`
	// AddDirectInferredEdges emits a subsumption edge for each direct
	// inferred parent beyond the asserted ones.
	AddDirectInferredEdges bool `yaml:"add_direct_inferred_edges"`
	// AddInferredEquivalences collapses equivalence-class members onto a
	// single canonical node, keeping the others as alias lookups.
	AddInferredEquivalences bool `yaml:"add_inferred_equivalences"`
	// RemoveUnsatisfiableClasses drops classes the reasoner proves
	// unsatisfiable before they reach the graph.
	RemoveUnsatisfiableClasses bool `yaml:"remove_unsatisfiable_classes"`
}

// Source is one configured ontology input: fetched and reasoned once per
// ingestion run, immutable thereafter.
type Source struct {
	URL      string         `yaml:"url"`
	Reasoner ReasonerConfig `yaml:"reasoner"`
}

// Statement is a single triple extracted from an ontology document.
// Object holds either an IRI/blank-node identifier or, when IsLiteral is
// set, the literal's lexical value.
type Statement struct {
	Subject   string
	Predicate string
	Object    string
	IsLiteral bool
	Datatype  string
	Language  string
}
