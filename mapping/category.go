package mapping

import "bitbucket.org/creachadair/stringset"

// CategoryAssigner attaches human-readable category labels to graph
// nodes based on class membership. The rule table maps class URIs to
// labels and is many-to-many: several classes may share a label and one
// class may carry several labels.
type CategoryAssigner struct {
	table map[string][]string
}

// NewCategoryAssigner builds an assigner from the configured class-URI
// to label table.
func NewCategoryAssigner(table map[string][]string) *CategoryAssigner {
	return &CategoryAssigner{table: table}
}

// CategoriesFor returns the union of category labels matching the class
// itself and any of its ancestors. The ancestors slice must be ordered by
// a breadth-first walk outward from the class; labels appear in the order
// of the first match encountered, duplicates removed. A class with no
// matching ancestor yields an empty (non-nil) set.
func (a *CategoryAssigner) CategoriesFor(classURI string, ancestors []string) []string {
	out := make([]string, 0, 2)
	seen := stringset.New()

	appendLabels := func(uri string) {
		for _, label := range a.table[uri] {
			if seen.Add(label) {
				out = append(out, label)
			}
		}
	}

	appendLabels(classURI)
	for _, ancestor := range ancestors {
		appendLabels(ancestor)
	}
	return out
}

// HasRules reports whether any category rules are configured.
func (a *CategoryAssigner) HasRules() bool {
	return len(a.table) > 0
}
