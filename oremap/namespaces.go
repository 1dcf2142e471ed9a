package oremap

import (
	"errors"
	"fmt"
	"sort"
)

// Namespaces maps a namespace URI to the short prefix used for it when the
// graph is serialized.
type Namespaces map[string]string

// ErrNamespaceConflict reports a merge whose result would use one prefix
// for two different namespace URIs.
var ErrNamespaceConflict = errors.New("namespace prefix conflict")

// defaultNamespaces is the table every serialization starts from. Callers
// extend it through MergeNamespaces; the table itself is never mutated.
var defaultNamespaces = Namespaces{
	RDFNS:     "rdf",
	RDFSNS:    "rdfs",
	XSDNS:     "xsd",
	DCNS:      "dc",
	DCTermsNS: "dcterms",
	FOAFNS:    "foaf",
	ORENS:     "ore",
	CitoNS:    "cito",
	ProvNS:    "prov",
	ProvONENS: "provone",
}

// DefaultNamespaces returns a fresh copy of the default prefix table.
func DefaultNamespaces() Namespaces {
	ns := make(Namespaces, len(defaultNamespaces))
	for uri, prefix := range defaultNamespaces {
		ns[uri] = prefix
	}
	return ns
}

// MergeNamespaces combines the default table with caller-supplied entries.
// Callers may add new namespaces and may re-prefix a namespace they name
// explicitly, but a merge whose result gives one prefix to two different
// URIs is a configuration error, never a silent override.
func MergeNamespaces(overrides Namespaces) (Namespaces, error) {
	merged := DefaultNamespaces()
	for uri, prefix := range overrides {
		merged[uri] = prefix
	}
	// Reject two URIs sharing one prefix. URIs are visited in sorted
	// order so the reported pair does not depend on map iteration.
	uris := make([]string, 0, len(merged))
	for uri := range merged {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	byPrefix := make(map[string]string, len(merged))
	for _, uri := range uris {
		prefix := merged[uri]
		if other, ok := byPrefix[prefix]; ok {
			return nil, fmt.Errorf("%w: %q names both %s and %s",
				ErrNamespaceConflict, prefix, other, uri)
		}
		byPrefix[prefix] = uri
	}
	return merged, nil
}
