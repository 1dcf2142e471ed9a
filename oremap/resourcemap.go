package oremap

import (
	"io"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ResourceMap assembles and serializes the OAI-ORE description of one data
// package. It owns one triple set and one map identifier. The lifecycle is
// Empty, then Populated after AddRelations, then Serialized after the
// first Serialize; serialization only reads the triple set, so a populated
// map can be serialized any number of times with identical output. Close
// releases the owned graph; every graph operation after Close fails with
// ErrReleased.
type ResourceMap struct {
	id       string
	base     string
	triples  *TripleSet
	released bool
}

// Error values returned by resource map operations.
var (
	ErrInvalidInput = errors.New("invalid relation")
	ErrReleased     = errors.New("resource map has been released")
)

// NewMapID generates a resource map identifier of the form "resourceMap_"
// followed by a random UUID.
func NewMapID() string {
	return "resourceMap_" + uuid.New().String()
}

// New creates a ResourceMap with a generated identifier.
func New() *ResourceMap {
	return NewWithID(NewMapID())
}

// NewWithID creates a ResourceMap using the caller's identifier.
func NewWithID(id string) *ResourceMap {
	return &ResourceMap{
		id:      id,
		base:    DefaultResolveBase,
		triples: NewTripleSet(),
	}
}

// SetBase changes the resolve endpoint used to rewrite identifiers. It
// affects only statements appended afterward, so call it before
// AddRelations. An empty base is ignored.
func (rm *ResourceMap) SetBase(base string) {
	if base != "" {
		rm.base = base
	}
}

// ID returns the map identifier as supplied or generated.
func (rm *ResourceMap) ID() string {
	return rm.id
}

// URI returns the resolved form of the map identifier.
func (rm *ResourceMap) URI() string {
	return Resolve(rm.id, rm.base)
}

// AggregationURI returns the identifier of the aggregation the map
// describes.
func (rm *ResourceMap) AggregationURI() string {
	return rm.URI() + "#aggregation"
}

// Statements returns the map's statements in insertion order.
func (rm *ResourceMap) Statements() ([]Statement, error) {
	if rm.released {
		return nil, ErrReleased
	}
	return rm.triples.Statements(), nil
}

// AddRelations ingests the caller's relation table and then appends the
// derived aggregation triples for memberIDs. Relation subjects and
// resource-kind objects are rewritten to resolvable URIs when they name a
// member and are not already resolved; non-member endpoints that are
// already absolute URIs pass through, and bare non-member identifiers are
// tolerated and resolved anyway so the graph never holds a relative
// reference. The batch is atomic: every relation is validated before
// anything is appended, and a validation error leaves the triple set
// unchanged.
//
// Calling AddRelations twice with identical input duplicates statements
// harmlessly (the set is a multiset), but normal use is single-shot.
func (rm *ResourceMap) AddRelations(relations []Relation, memberIDs []string) error {
	if rm.released {
		return ErrReleased
	}
	members := make(map[string]bool, len(memberIDs))
	for _, id := range memberIDs {
		members[id] = true
	}
	batch := make([]Statement, 0, len(relations)+3*len(memberIDs)+5)
	for i, rel := range relations {
		st, err := rm.resolveRelation(rel, members)
		if err != nil {
			return errors.Wrapf(err, "relation %d", i)
		}
		batch = append(batch, st)
	}
	batch = append(batch, BuildAggregation(rm.id, rm.base, memberIDs)...)
	for _, st := range batch {
		rm.triples.Append(st)
	}
	return nil
}

func (rm *ResourceMap) resolveRelation(rel Relation, members map[string]bool) (Statement, error) {
	switch {
	case rel.Subject == "":
		return Statement{}, errors.Wrap(ErrInvalidInput, "empty subject")
	case rel.Predicate == "":
		return Statement{}, errors.Wrap(ErrInvalidInput, "empty predicate")
	case rel.Object == "":
		return Statement{}, errors.Wrap(ErrInvalidInput, "empty object")
	case rel.SubjectKind == Literal:
		return Statement{}, errors.Wrap(ErrInvalidInput, "literal subject")
	}
	st := Statement{
		Subject:    rm.resolveEndpoint(rel.Subject, members),
		Predicate:  rel.Predicate,
		Object:     rel.Object,
		ObjectKind: rel.ObjectKind,
	}
	if rel.ObjectKind == Literal {
		st.Datatype = rel.Datatype
	} else {
		st.Object = rm.resolveEndpoint(rel.Object, members)
	}
	return st, nil
}

func (rm *ResourceMap) resolveEndpoint(value string, members map[string]bool) string {
	if members[value] || !isAbsoluteURI(value) {
		return Resolve(value, rm.base)
	}
	return value
}

// Serialize encodes the graph to w in the named syntax, with ns merged
// into the default namespace table.
func (rm *ResourceMap) Serialize(w io.Writer, syntax string, ns Namespaces) error {
	if rm.released {
		return ErrReleased
	}
	s := Serializer{Syntax: syntax, Namespaces: ns}
	return s.Encode(w, rm.triples)
}

// SerializeFile writes the serialized graph to the file at path, creating
// or truncating it. The file handle is closed on every exit path.
func (rm *ResourceMap) SerializeFile(path, syntax string, ns Namespaces) error {
	if rm.released {
		return ErrReleased
	}
	s := Serializer{Syntax: syntax, Namespaces: ns}
	return s.EncodeFile(path, rm.triples)
}

// Close releases the graph owned by the map. Closing twice is harmless.
func (rm *ResourceMap) Close() error {
	rm.released = true
	rm.triples = nil
	return nil
}
