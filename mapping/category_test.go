package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	doid4    = "http://purl.obolibrary.org/obo/DOID_4"
	doid1781 = "http://purl.obolibrary.org/obo/DOID_1781"
	doid0050 = "http://purl.obolibrary.org/obo/DOID_0050686"
)

func TestCategoriesForManyToMany(t *testing.T) {
	// One class URI mapped to two labels, as in the DOID_4 rule table.
	a := NewCategoryAssigner(map[string][]string{
		doid4: {"disease", "Phenotype"},
	})

	got := a.CategoriesFor(doid1781, []string{doid0050, doid4})
	assert.Equal(t, []string{"disease", "Phenotype"}, got)
}

func TestCategoriesForInsertionOrder(t *testing.T) {
	a := NewCategoryAssigner(map[string][]string{
		doid0050: {"neoplasm", "disease"},
		doid4:    {"disease", "Phenotype"},
	})

	// First-discovered order during the breadth-first walk, duplicates
	// removed: "disease" appears where the nearer ancestor introduced it.
	got := a.CategoriesFor(doid1781, []string{doid0050, doid4})
	assert.Equal(t, []string{"neoplasm", "disease", "Phenotype"}, got)
}

func TestCategoriesForIdempotent(t *testing.T) {
	a := NewCategoryAssigner(map[string][]string{
		doid4: {"disease"},
	})

	ancestors := []string{doid0050, doid4}
	first := a.CategoriesFor(doid1781, ancestors)
	second := a.CategoriesFor(doid1781, ancestors)
	assert.Equal(t, first, second)
}

func TestCategoriesForNoMatch(t *testing.T) {
	a := NewCategoryAssigner(map[string][]string{
		doid4: {"disease"},
	})

	got := a.CategoriesFor("http://example.org/other", []string{"http://example.org/parent"})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
