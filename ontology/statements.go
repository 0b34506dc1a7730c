package ontology

import (
	"fmt"

	"github.com/go-json-experiment/json"
	"github.com/piprate/json-gold/ld"
)

// ParseDocument converts a JSON-LD ontology document into statements.
// The document is expanded to an RDF dataset with json-gold and the
// default graph's quads are flattened into Statement triples.
func ParseDocument(data []byte) ([]Statement, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode ontology document: %w", err)
	}

	proc := ld.NewJsonLdProcessor()
	opts := ld.NewJsonLdOptions("")

	rdf, err := proc.ToRDF(doc, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to convert ontology document to RDF: %w", err)
	}
	dataset, ok := rdf.(*ld.RDFDataset)
	if !ok {
		return nil, fmt.Errorf("unexpected RDF conversion result type %T", rdf)
	}

	return datasetToStatements(dataset), nil
}

// datasetToStatements flattens the default graph of an RDF dataset.
func datasetToStatements(dataset *ld.RDFDataset) []Statement {
	quads := dataset.GetQuads("@default")
	statements := make([]Statement, 0, len(quads))

	for _, quad := range quads {
		stmt := Statement{
			Subject:   nodeValue(quad.Subject),
			Predicate: nodeValue(quad.Predicate),
		}
		switch lit := quad.Object.(type) {
		case *ld.Literal:
			stmt.Object = lit.Value
			stmt.IsLiteral = true
			stmt.Datatype = lit.Datatype
			stmt.Language = lit.Language
		case ld.Literal:
			stmt.Object = lit.Value
			stmt.IsLiteral = true
			stmt.Datatype = lit.Datatype
			stmt.Language = lit.Language
		default:
			stmt.Object = nodeValue(quad.Object)
		}
		statements = append(statements, stmt)
	}

	return statements
}

// nodeValue returns the identifier of an IRI or blank node. Blank nodes
// keep their "_:" prefix so downstream stages can skip them.
func nodeValue(node ld.Node) string {
	if node == nil {
		return ""
	}
	return node.GetValue()
}
