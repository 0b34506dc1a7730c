// Package mapping normalizes raw ontology vocabulary into the canonical
// shape stored on graph nodes: canonical property names and
// human-readable category labels.
package mapping

import (
	"errors"
	"fmt"
	"sort"
)

// ErrAmbiguousMapping is returned when a raw property URI is configured
// under more than one canonical name. Configuration validation should
// catch this before ingestion; Canonicalize still guards at runtime.
var ErrAmbiguousMapping = errors.New("raw property mapped to multiple canonical names")

// PropertyMapper maps raw ontology property URIs onto canonical logical
// property names. All raw URIs listed under one canonical name have their
// values merged under that name; no listed URI is privileged.
type PropertyMapper struct {
	// byRaw holds every canonical name each raw URI was configured under,
	// in sorted order for deterministic error reporting.
	byRaw map[string][]string
}

// NewPropertyMapper builds a mapper from canonical-name to raw-URI-list
// groups, as they appear in the configuration document.
func NewPropertyMapper(groups map[string][]string) *PropertyMapper {
	byRaw := make(map[string][]string)
	for canonical, raws := range groups {
		for _, raw := range raws {
			byRaw[raw] = append(byRaw[raw], canonical)
		}
	}
	for raw := range byRaw {
		sort.Strings(byRaw[raw])
	}
	return &PropertyMapper{byRaw: byRaw}
}

// Canonicalize resolves a raw property URI to its canonical name.
//
// A raw URI found in exactly one group returns that group's name. A URI
// matching no group passes through under its raw name unchanged; that is
// not an error. A URI configured under two canonical names returns
// ErrAmbiguousMapping.
func (m *PropertyMapper) Canonicalize(rawURI string) (string, error) {
	names := m.byRaw[rawURI]
	switch len(names) {
	case 0:
		return rawURI, nil
	case 1:
		return names[0], nil
	default:
		return "", fmt.Errorf("%w: %q in %v", ErrAmbiguousMapping, rawURI, names)
	}
}

// Validate reports the first ambiguous raw property, if any. Intended to
// run at configuration load time so defects fail before ingestion starts.
func (m *PropertyMapper) Validate() error {
	raws := make([]string, 0, len(m.byRaw))
	for raw := range m.byRaw {
		raws = append(raws, raw)
	}
	sort.Strings(raws)
	for _, raw := range raws {
		if _, err := m.Canonicalize(raw); err != nil {
			return err
		}
	}
	return nil
}
