package pack

import (
	"io"

	"github.com/pkg/errors"

	"github.com/ndlib/parcel/oremap"
)

// ErrDuplicateMember means a member with the same identifier is already in
// the package.
var ErrDuplicateMember = errors.New("duplicate member identifier")

// A Package is an ordered collection of data objects plus the relation
// rows asserted over them. Members keep their insertion order, and
// identifiers are unique within a package. The zero Package is not usable;
// call New or NewWithID.
type Package struct {
	id         string
	base       string
	members    []*DataObject
	index      map[string]*DataObject
	relations  []oremap.Relation
	namespaces oremap.Namespaces
}

// New creates an empty package with a generated resource map identifier.
func New() *Package {
	return NewWithID(oremap.NewMapID())
}

// NewWithID creates an empty package using the caller's resource map
// identifier.
func NewWithID(id string) *Package {
	return &Package{
		id:    id,
		index: make(map[string]*DataObject),
	}
}

// ID returns the package's resource map identifier.
func (p *Package) ID() string {
	return p.id
}

// SetID replaces the package's resource map identifier. Empty is ignored.
func (p *Package) SetID(id string) {
	if id != "" {
		p.id = id
	}
}

// SetBase overrides the resolve endpoint used when member identifiers are
// rewritten to URIs. Empty is ignored.
func (p *Package) SetBase(base string) {
	if base != "" {
		p.base = base
	}
}

// Base returns the package's resolve endpoint override, empty when the
// default applies.
func (p *Package) Base() string {
	return p.base
}

// AddMember appends obj to the package. Member identifiers are unique
// within a package, so adding a second object with an identifier already
// present is an error and leaves the package unchanged.
func (p *Package) AddMember(obj *DataObject) error {
	if obj.Identifier == "" {
		return ErrNoIdentifier
	}
	if _, ok := p.index[obj.Identifier]; ok {
		return errors.Wrap(ErrDuplicateMember, obj.Identifier)
	}
	p.members = append(p.members, obj)
	p.index[obj.Identifier] = obj
	return nil
}

// Member returns the member having the given identifier, or nil if there
// is none.
func (p *Package) Member(id string) *DataObject {
	return p.index[id]
}

// Members returns the package's members in the order they were added.
func (p *Package) Members() []*DataObject {
	result := make([]*DataObject, len(p.members))
	copy(result, p.members)
	return result
}

// MemberIDs returns the member identifiers in the order they were added.
func (p *Package) MemberIDs() []string {
	ids := make([]string, len(p.members))
	for i, obj := range p.members {
		ids[i] = obj.Identifier
	}
	return ids
}

// InsertRelation records one fully specified relation row. Rows are not
// interpreted until the resource map is built; endpoints naming members
// are rewritten to resolvable URIs at that point.
func (p *Package) InsertRelation(rel oremap.Relation) error {
	if err := validateRelation(rel); err != nil {
		return err
	}
	p.relations = append(p.relations, rel)
	return nil
}

// InsertRelationship records a relation between subject and each object.
// All endpoints are resource references. Use InsertRelation for literal
// objects or explicit datatypes. Every row is validated before any is
// recorded.
func (p *Package) InsertRelationship(subject, predicate string, objects ...string) error {
	if len(objects) == 0 {
		return errors.Wrap(oremap.ErrInvalidInput, "no objects")
	}
	batch := make([]oremap.Relation, 0, len(objects))
	for _, o := range objects {
		rel := oremap.Relation{Subject: subject, Predicate: predicate, Object: o}
		if err := validateRelation(rel); err != nil {
			return err
		}
		batch = append(batch, rel)
	}
	p.relations = append(p.relations, batch...)
	return nil
}

// Document records that the metadata member describes each data member,
// asserting cito:documents and the reciprocal cito:isDocumentedBy for each
// pair.
func (p *Package) Document(metadataID string, dataIDs ...string) error {
	if len(dataIDs) == 0 {
		return errors.Wrap(oremap.ErrInvalidInput, "no objects")
	}
	for _, id := range dataIDs {
		err := p.InsertRelation(oremap.Relation{
			Subject:   metadataID,
			Predicate: oremap.CitoDocuments,
			Object:    id,
		})
		if err != nil {
			return err
		}
		err = p.InsertRelation(oremap.Relation{
			Subject:   id,
			Predicate: oremap.CitoIsDocumentedBy,
			Object:    metadataID,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// RecordDerivation records that each derived object was derived from
// source, asserting prov:wasDerivedFrom on each derived object.
func (p *Package) RecordDerivation(source string, derived ...string) error {
	if len(derived) == 0 {
		return errors.Wrap(oremap.ErrInvalidInput, "no objects")
	}
	for _, id := range derived {
		err := p.InsertRelation(oremap.Relation{
			Subject:   id,
			Predicate: oremap.ProvWasDerivedFrom,
			Object:    source,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Relations returns a copy of the accumulated relation rows.
func (p *Package) Relations() []oremap.Relation {
	result := make([]oremap.Relation, len(p.relations))
	copy(result, p.relations)
	return result
}

// AddNamespace maps the namespace URI to prefix in this package's
// serializations. A conflict with the default prefix table surfaces when
// the resource map is serialized.
func (p *Package) AddNamespace(uri, prefix string) {
	if p.namespaces == nil {
		p.namespaces = make(oremap.Namespaces)
	}
	p.namespaces[uri] = prefix
}

// Namespaces returns a copy of the package's extra namespace entries.
func (p *Package) Namespaces() oremap.Namespaces {
	result := make(oremap.Namespaces, len(p.namespaces))
	for uri, prefix := range p.namespaces {
		result[uri] = prefix
	}
	return result
}

// BuildResourceMap assembles the OAI-ORE resource map over the package's
// members and relation rows. The caller owns the returned map and must
// Close it.
func (p *Package) BuildResourceMap() (*oremap.ResourceMap, error) {
	rm := oremap.NewWithID(p.id)
	rm.SetBase(p.base)
	err := rm.AddRelations(p.relations, p.MemberIDs())
	if err != nil {
		rm.Close()
		return nil, err
	}
	return rm, nil
}

// WriteResourceMap serializes the package's resource map to w in the named
// syntax. Empty means the default RDF/XML.
func (p *Package) WriteResourceMap(w io.Writer, syntax string) error {
	rm, err := p.BuildResourceMap()
	if err != nil {
		return err
	}
	defer rm.Close()
	return rm.Serialize(w, syntax, p.namespaces)
}

func validateRelation(rel oremap.Relation) error {
	switch {
	case rel.Subject == "":
		return errors.Wrap(oremap.ErrInvalidInput, "empty subject")
	case rel.Predicate == "":
		return errors.Wrap(oremap.ErrInvalidInput, "empty predicate")
	case rel.Object == "":
		return errors.Wrap(oremap.ErrInvalidInput, "empty object")
	case rel.SubjectKind == oremap.Literal:
		return errors.Wrap(oremap.ErrInvalidInput, "literal subject")
	}
	return nil
}
