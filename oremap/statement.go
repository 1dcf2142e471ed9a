package oremap

import "strings"

// Kind classifies a statement endpoint as a resource reference or a
// literal value.
type Kind int

const (
	Resource Kind = iota
	Literal
)

// String returns the lower-case name used in relation tables.
func (k Kind) String() string {
	if k == Literal {
		return "literal"
	}
	return "resource"
}

// ParseKind normalizes a relation-table kind name. Unknown names report
// false.
func ParseKind(value string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "resource", "uri":
		return Resource, true
	case "literal":
		return Literal, true
	default:
		return Resource, false
	}
}

// Statement is one RDF assertion held by a TripleSet. By the time a
// statement is appended, Subject and Predicate are URIs; Object is a URI
// when ObjectKind is Resource and a lexical value when ObjectKind is
// Literal. Datatype is set only for literals.
type Statement struct {
	Subject    string
	Predicate  string
	Object     string
	ObjectKind Kind
	Datatype   string
}

// Relation is one caller-supplied row of a package's relation table.
// Subject and Object may be bare member identifiers; AddRelations decides
// which endpoints are rewritten to resolvable URIs. A literal subject is
// invalid input, and a datatype is meaningful only when ObjectKind is
// Literal (it is ignored for resources, which is what the resolve
// endpoint's own tooling does with such rows).
type Relation struct {
	Subject     string
	Predicate   string
	Object      string
	SubjectKind Kind
	ObjectKind  Kind
	Datatype    string
}
