package ontograph

import (
	"errors"
	"fmt"

	"bitbucket.org/creachadair/stringset"
)

// ErrCycleDetected is returned when expansion encounters a cycle in the
// subsumption edges. The error is recoverable: the closure computed so
// far is still returned and the caller may log a warning. Well-formed
// ontologies are acyclic for subsumption, so a cycle flags malformed
// input rather than an expander failure.
var ErrCycleDetected = errors.New("cycle detected in hierarchy edges")

// ExpandMode selects the closure direction for query expansion.
type ExpandMode int

const (
	// ExpandNone returns the seed set unchanged.
	ExpandNone ExpandMode = iota
	// ExpandAncestors follows subsumption edges towards superclasses.
	ExpandAncestors
	// ExpandDescendants follows subsumption edges towards subclasses.
	ExpandDescendants
)

// ParseExpandMode maps the wire names ("none", "ancestors",
// "descendants") to an ExpandMode.
func ParseExpandMode(s string) (ExpandMode, error) {
	switch s {
	case "", "none":
		return ExpandNone, nil
	case "ancestors":
		return ExpandAncestors, nil
	case "descendants":
		return ExpandDescendants, nil
	default:
		return ExpandNone, fmt.Errorf("unknown expansion mode %q", s)
	}
}

// Expand broadens a seed identifier set along the configured closure
// predicates. The result always contains the (alias-resolved) seeds
// themselves, in deterministic depth-first discovery order.
//
// Cyclic edge data terminates via cycle detection: the full reachable
// closure is returned together with ErrCycleDetected so callers can
// surface a warning instead of hanging.
func (s *Snapshot) Expand(seeds []string, mode ExpandMode) ([]string, error) {
	resolved := make([]string, 0, len(seeds))
	seen := stringset.New()
	for _, seed := range seeds {
		id := s.Resolve(seed)
		if seen.Add(id) {
			resolved = append(resolved, id)
		}
	}
	if mode == ExpandNone {
		return resolved, nil
	}

	var adjacency map[string][]string
	switch mode {
	case ExpandAncestors:
		adjacency = s.parents
	case ExpandDescendants:
		adjacency = s.children
	default:
		return nil, fmt.Errorf("unknown expansion mode %d", mode)
	}

	out := make([]string, 0, len(resolved))
	visited := stringset.New()
	cyclic := false

	var walk func(id string, onPath stringset.Set)
	walk = func(id string, onPath stringset.Set) {
		out = append(out, id)
		onPath.Add(id)
		for _, next := range adjacency[id] {
			if onPath.Contains(next) {
				cyclic = true
				continue
			}
			if visited.Add(next) {
				walk(next, onPath)
			}
		}
		onPath.Discard(id)
	}

	for _, seed := range resolved {
		if visited.Add(seed) {
			walk(seed, stringset.New())
		}
	}

	if cyclic {
		return out, ErrCycleDetected
	}
	return out, nil
}
