package pack

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ndlib/parcel/oremap"
)

// Manifest serialization data. The indirection lets Package and
// SystemMetadata change without breaking the ability to read manifests
// serialized earlier. Member content is never part of a manifest; it is
// carried separately, as staged uploads or bag payload.
type packageManifest struct {
	ID         string
	Base       string
	Namespaces map[string]string
	Members    []memberManifest
	Relations  []relationManifest
}

type memberManifest struct {
	Identifier        string
	FormatID          string
	Size              int64
	Checksum          string
	ChecksumAlgorithm string
	FileName          string
	RightsHolder      string
	Obsoletes         string
	ObsoletedBy       string
	DateUploaded      time.Time
	Access            []AccessRule
}

type relationManifest struct {
	Subject     string
	Predicate   string
	Object      string
	SubjectKind string
	ObjectKind  string
	Datatype    string
}

// MarshalJSON encodes the package in its manifest form.
func (p *Package) MarshalJSON() ([]byte, error) {
	m := packageManifest{
		ID:         p.id,
		Base:       p.base,
		Namespaces: p.namespaces,
	}
	for _, obj := range p.members {
		m.Members = append(m.Members, memberManifest{
			Identifier:        obj.Identifier,
			FormatID:          obj.FormatID,
			Size:              obj.Size,
			Checksum:          obj.Checksum,
			ChecksumAlgorithm: obj.ChecksumAlgorithm,
			FileName:          obj.FileName,
			RightsHolder:      obj.RightsHolder,
			Obsoletes:         obj.Obsoletes,
			ObsoletedBy:       obj.ObsoletedBy,
			DateUploaded:      obj.DateUploaded,
			Access:            obj.Access.Allow,
		})
	}
	for _, rel := range p.relations {
		m.Relations = append(m.Relations, relationManifest{
			Subject:     rel.Subject,
			Predicate:   rel.Predicate,
			Object:      rel.Object,
			SubjectKind: rel.SubjectKind.String(),
			ObjectKind:  rel.ObjectKind.String(),
			Datatype:    rel.Datatype,
		})
	}
	return json.Marshal(m)
}

// UnmarshalJSON rebuilds a package from its manifest form. Members come
// back without content; attach bytes through the stage or bag the manifest
// references. A manifest with no ID gets a generated one.
func (p *Package) UnmarshalJSON(data []byte) error {
	var m packageManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	id := m.ID
	if id == "" {
		id = oremap.NewMapID()
	}
	rebuilt := NewWithID(id)
	rebuilt.SetBase(m.Base)
	for uri, prefix := range m.Namespaces {
		rebuilt.AddNamespace(uri, prefix)
	}
	for _, mem := range m.Members {
		obj, err := NewObjectFromSysmeta(SystemMetadata{
			Identifier:        mem.Identifier,
			FormatID:          mem.FormatID,
			Size:              mem.Size,
			Checksum:          mem.Checksum,
			ChecksumAlgorithm: mem.ChecksumAlgorithm,
			FileName:          mem.FileName,
			RightsHolder:      mem.RightsHolder,
			Obsoletes:         mem.Obsoletes,
			ObsoletedBy:       mem.ObsoletedBy,
			DateUploaded:      mem.DateUploaded,
			Access:            AccessPolicy{Allow: mem.Access},
		}, nil)
		if err != nil {
			return err
		}
		if err := rebuilt.AddMember(obj); err != nil {
			return err
		}
	}
	for _, row := range m.Relations {
		skind, ok := oremap.ParseKind(row.SubjectKind)
		if !ok {
			return fmt.Errorf("relation %s %s: unknown kind %q",
				row.Subject, row.Predicate, row.SubjectKind)
		}
		okind, ok := oremap.ParseKind(row.ObjectKind)
		if !ok {
			return fmt.Errorf("relation %s %s: unknown kind %q",
				row.Subject, row.Predicate, row.ObjectKind)
		}
		err := rebuilt.InsertRelation(oremap.Relation{
			Subject:     row.Subject,
			Predicate:   row.Predicate,
			Object:      row.Object,
			SubjectKind: skind,
			ObjectKind:  okind,
			Datatype:    row.Datatype,
		})
		if err != nil {
			return err
		}
	}
	*p = *rebuilt
	return nil
}
