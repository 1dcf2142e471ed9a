/*

Package oremap builds and serializes OAI-ORE resource maps.

A resource map is the RDF document describing one data package: which
objects belong to the package's aggregation, how the objects relate to one
another, and which identifiers resolve to which network locations. The
caller supplies the package's member identifiers plus an arbitrary table of
relation triples; the map derives the structural aggregation statements
itself and keeps everything in one insertion-ordered, append-only triple
set so that serializing the same map twice yields identical bytes.

Identifiers may arrive bare (a repository pid such as "doi:10.5063/F1") or
as already-resolved URIs. Bare member identifiers are rewritten against a
resolve endpoint; rewriting is idempotent, so an identifier carrying the
base prefix is never prefixed a second time.

The RDF term model and the syntax encoders come from
github.com/geoknoesis/rdf-go. This package owns the construction rules,
the vocabulary, the namespace prefix table, and the statement ordering.

A ResourceMap owns its triple set exclusively. Close releases it, and any
graph operation after Close fails with ErrReleased.

*/
package oremap
