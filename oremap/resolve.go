package oremap

import (
	"net/url"
	"strings"
)

// DefaultResolveBase is the coordinating-node resolve endpoint identifiers
// are rewritten against when no other base is configured.
const DefaultResolveBase = "https://cn.dataone.org/cn/v1/resolve/"

// Resolve rewrites a bare object identifier into its network-resolvable
// URI by appending it, percent-encoded as a path segment, to base. An
// identifier already carrying the base prefix is returned unchanged, so
// resolving twice is a no-op. An empty base means DefaultResolveBase.
// Resolve is pure and never fails.
func Resolve(id, base string) string {
	if base == "" {
		base = DefaultResolveBase
	}
	if strings.HasPrefix(id, base) {
		return id
	}
	return base + url.PathEscape(id)
}

// isAbsoluteURI reports whether s already names a network resource, for
// example "https://orcid.org/0000-0002-1825-0097" or "doi:10.5063/F1".
// Such values pass through relation ingestion unrewritten unless they name
// a package member.
func isAbsoluteURI(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != ""
}
