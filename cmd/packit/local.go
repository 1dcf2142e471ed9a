package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/ndlib/parcel/bagit"
	"github.com/ndlib/parcel/oremap"
	"github.com/ndlib/parcel/pack"
)

// A packageDescription is the TOML file format describing a package to be
// assembled. The id and base are optional, as is everything on a member
// except the file. Namespace entries map a prefix to a namespace URI and
// extend the default table used for serialization. Relation predicates
// may be written as "prefix:rest" shorthand using any prefix in the
// table.
//
//	id = "urn:uuid:0cf1b7a6-bfde-406e-9e91-31b6d1a7bc5e"
//
//	[namespaces]
//	example = "http://example.org/terms/"
//
//	[[member]]
//	file = "data/survey.csv"
//	identifier = "survey-2024.csv"
//	format = "text/csv"
//
//	[[member]]
//	file = "meta/survey.xml"
//	format = "https://eml.ecoinformatics.org/eml-2.2.0"
//	documents = ["survey-2024.csv"]
//
//	[[relation]]
//	subject = "survey-2024.csv"
//	predicate = "example:source"
//	object = "instrument-47"
type packageDescription struct {
	ID         string
	Base       string
	Namespaces map[string]string
	Member     []memberDescription
	Relation   []relationDescription
}

type memberDescription struct {
	File         string
	Identifier   string // default is the file's base name
	Format       string // default is the -mimetype flag
	RightsHolder string
	Documents    []string // identifiers this member documents
}

type relationDescription struct {
	Subject    string
	Predicate  string
	Object     string
	ObjectKind string // "resource" (default) or "literal"
	Datatype   string
}

// loadPackage reads a package description file and builds the package it
// describes. Each member is backed by its file, so the files must stay in
// place until the package has been exported or submitted.
func loadPackage(path string) (*pack.Package, error) {
	var desc packageDescription
	_, err := toml.DecodeFile(path, &desc)
	if err != nil {
		return nil, err
	}
	// member files are relative to the description file
	root := filepath.Dir(path)

	p := pack.New()
	p.SetID(desc.ID)
	p.SetBase(desc.Base)
	prefixes := prefixTable(desc.Namespaces)
	for prefix, uri := range desc.Namespaces {
		p.AddNamespace(uri, prefix)
	}
	for _, m := range desc.Member {
		if m.File == "" {
			return nil, fmt.Errorf("member %q has no file", m.Identifier)
		}
		id := m.Identifier
		if id == "" {
			id = filepath.Base(m.File)
		}
		formatID := m.Format
		if formatID == "" {
			formatID = *mimetype
		}
		obj, err := pack.NewObjectFromFile(id, formatID, filepath.Join(root, m.File))
		if err != nil {
			return nil, err
		}
		obj.RightsHolder = m.RightsHolder
		err = p.AddMember(obj)
		if err != nil {
			return nil, err
		}
		if len(m.Documents) > 0 {
			err = p.Document(id, m.Documents...)
			if err != nil {
				return nil, err
			}
		}
	}
	for _, r := range desc.Relation {
		kind, ok := oremap.ParseKind(r.ObjectKind)
		if !ok {
			return nil, fmt.Errorf("relation %s %s: unknown kind %q",
				r.Subject, r.Predicate, r.ObjectKind)
		}
		err = p.InsertRelation(oremap.Relation{
			Subject:    r.Subject,
			Predicate:  expand(r.Predicate, prefixes),
			Object:     r.Object,
			ObjectKind: kind,
			Datatype:   expand(r.Datatype, prefixes),
		})
		if err != nil {
			return nil, err
		}
	}
	return p, nil
}

// prefixTable combines the default namespace table with the description's
// entries, oriented prefix to URI.
func prefixTable(extra map[string]string) map[string]string {
	table := make(map[string]string)
	for uri, prefix := range oremap.DefaultNamespaces() {
		table[prefix] = uri
	}
	for prefix, uri := range extra {
		table[prefix] = uri
	}
	return table
}

// expand rewrites a "prefix:rest" shorthand into a full URI. Values with
// no colon or an unknown prefix pass through unchanged, so full URIs and
// URNs are not touched.
func expand(value string, prefixes map[string]string) string {
	i := strings.Index(value, ":")
	if i <= 0 {
		return value
	}
	uri, ok := prefixes[value[:i]]
	if !ok {
		return value
	}
	return uri + value[i+1:]
}

// doassemble builds the package described by the manifest file and writes
// its bag.
func doassemble(manifest, target string) {
	p, err := loadPackage(manifest)
	if err != nil {
		fmt.Println(err)
		return
	}
	f, err := os.Create(target)
	if err != nil {
		fmt.Println(err)
		return
	}
	err = p.ExportBag(f, *format)
	err2 := f.Close()
	if err == nil {
		err = err2
	}
	if err != nil {
		os.Remove(target)
		fmt.Println(err)
		return
	}
	fmt.Printf("created %s as %s\n", p.ID(), target)
}

// doverify checks every checksum in a local bag file.
func doverify(bagfile string) {
	f, err := os.Open(bagfile)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		fmt.Println(err)
		return
	}
	r, err := bagit.NewReader(f, fi.Size())
	if err != nil {
		fmt.Println(err)
		return
	}
	err = r.Verify()
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("%s is valid, %d payload files\n", bagfile, len(r.Files()))
}
