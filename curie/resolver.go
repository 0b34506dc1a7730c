// Package curie provides bidirectional mapping between compact
// identifiers (CURIEs) and full URIs, driven by a configured
// prefix-to-namespace table.
package curie

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

var (
	// ErrNoMapping is returned when no configured namespace is a prefix of
	// the given URI.
	ErrNoMapping = errors.New("no curie mapping found")
	// ErrUnknownPrefix is returned when a CURIE uses a prefix that is not
	// configured.
	ErrUnknownPrefix = errors.New("unknown curie prefix")
)

// Binding associates a CURIE prefix with a URI namespace. The empty
// prefix is legal and denotes the base namespace.
type Binding struct {
	Prefix    string
	Namespace string
}

// Resolver converts identifiers between CURIE and URI forms.
//
// Conversion from URI to CURIE uses longest-namespace-match: when several
// configured namespaces are prefixes of a URI, the longest one wins.
// Duplicate prefix registrations resolve last-wins and are reported as a
// warning at construction time; they never fail startup.
type Resolver struct {
	byPrefix map[string]string
	// namespaces is sorted by descending namespace length so that the
	// first match during ToCURIE is the longest one.
	namespaces []nsEntry
}

type nsEntry struct {
	namespace string
	prefix    string
}

// New builds a Resolver from ordered prefix bindings. Later bindings for
// the same prefix override earlier ones; each conflict is logged through
// logger as a configuration-integrity warning.
func New(bindings []Binding, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}

	byPrefix := make(map[string]string, len(bindings))
	for _, b := range bindings {
		if prev, ok := byPrefix[b.Prefix]; ok && prev != b.Namespace {
			logger.Warn("duplicate curie prefix, keeping last registration",
				slog.String("prefix", b.Prefix),
				slog.String("discarded", prev),
				slog.String("kept", b.Namespace))
		}
		byPrefix[b.Prefix] = b.Namespace
	}

	// Invert the final table. When two prefixes share a namespace the
	// lexicographically smallest prefix is kept, which makes ToCURIE
	// deterministic.
	byNamespace := make(map[string]string, len(byPrefix))
	for prefix, ns := range byPrefix {
		if prev, ok := byNamespace[ns]; !ok || prefix < prev {
			byNamespace[ns] = prefix
		}
	}

	namespaces := make([]nsEntry, 0, len(byNamespace))
	for ns, prefix := range byNamespace {
		namespaces = append(namespaces, nsEntry{namespace: ns, prefix: prefix})
	}
	sort.Slice(namespaces, func(i, j int) bool {
		a, b := namespaces[i], namespaces[j]
		if len(a.namespace) != len(b.namespace) {
			return len(a.namespace) > len(b.namespace)
		}
		return a.namespace < b.namespace
	})

	return &Resolver{byPrefix: byPrefix, namespaces: namespaces}
}

// ToCURIE converts a full URI into prefix:localPart form using the
// longest matching configured namespace. It returns ErrNoMapping when no
// namespace prefixes the URI; callers may fall back to the raw URI.
// Bindings with the empty prefix produce the bare local part.
func (r *Resolver) ToCURIE(uri string) (string, error) {
	for _, e := range r.namespaces {
		if strings.HasPrefix(uri, e.namespace) {
			local := uri[len(e.namespace):]
			if e.prefix == "" {
				return local, nil
			}
			return e.prefix + ":" + local, nil
		}
	}
	return "", fmt.Errorf("%w for %q", ErrNoMapping, uri)
}

// ToURI converts a CURIE back to its full URI form. The CURIE is split on
// the first ':'; a missing ':' means the base (empty prefix) namespace.
func (r *Resolver) ToURI(curie string) (string, error) {
	prefix, local := "", curie
	if idx := strings.Index(curie, ":"); idx >= 0 {
		prefix, local = curie[:idx], curie[idx+1:]
	}
	ns, ok := r.byPrefix[prefix]
	if !ok {
		return "", fmt.Errorf("%w %q in %q", ErrUnknownPrefix, prefix, curie)
	}
	return ns + local, nil
}

// IsURI reports whether the identifier looks like a full URI rather than
// a CURIE. CURIE prefixes never contain "//".
func IsURI(id string) bool {
	return strings.Contains(id, "://") || strings.HasPrefix(id, "urn:")
}

// Normalize maps an identifier in either URI or CURIE form to the
// CURIE-normalized form used as node identity.
//
// URIs with no configured mapping pass through raw (not an error): the
// graph keeps unmapped identifiers in full form. CURIEs with an unknown
// prefix return ErrUnknownPrefix so callers can surface a user error.
func (r *Resolver) Normalize(id string) (string, error) {
	if IsURI(id) {
		c, err := r.ToCURIE(id)
		if err != nil {
			return id, nil
		}
		return c, nil
	}
	if _, err := r.ToURI(id); err != nil {
		return "", err
	}
	return id, nil
}

// Expand maps an identifier in either form to its full URI. Unmapped
// URIs pass through unchanged.
func (r *Resolver) Expand(id string) (string, error) {
	if IsURI(id) {
		return id, nil
	}
	return r.ToURI(id)
}
