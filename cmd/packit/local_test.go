package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ndlib/parcel/bagit"
	"github.com/ndlib/parcel/oremap"
	"github.com/ndlib/parcel/pack"
)

const testDescription = `
id = "urn:uuid:4416a051-a245-49f0-b014-9f3432b6aa34"

[namespaces]
example = "http://example.org/terms/"

[[member]]
file = "survey.csv"
identifier = "survey-2024.csv"
format = "text/csv"

[[member]]
file = "survey.xml"
format = "https://eml.ecoinformatics.org/eml-2.2.0"
documents = ["survey-2024.csv"]

[[relation]]
subject = "survey-2024.csv"
predicate = "example:source"
object = "instrument-47"

[[relation]]
subject = "survey-2024.csv"
predicate = "dcterms:title"
object = "2024 Survey"
objectkind = "literal"
datatype = "xsd:string"
`

const testCSV = "a,b\n1,2\n"

// writeDescription puts a package description and its member files into a
// temporary directory and returns the description's path.
func writeDescription(t *testing.T) string {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"package.toml": testDescription,
		"survey.csv":   testCSV,
		"survey.xml":   "<metadata/>",
	} {
		err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644)
		if err != nil {
			t.Fatal(err)
		}
	}
	return filepath.Join(dir, "package.toml")
}

func TestLoadPackage(t *testing.T) {
	p, err := loadPackage(writeDescription(t))
	if err != nil {
		t.Fatal(err)
	}
	if p.ID() != "urn:uuid:4416a051-a245-49f0-b014-9f3432b6aa34" {
		t.Errorf("Received id %s", p.ID())
	}
	ids := p.MemberIDs()
	if len(ids) != 2 || ids[0] != "survey-2024.csv" || ids[1] != "survey.xml" {
		t.Fatalf("Received members %v", ids)
	}
	obj := p.Member("survey-2024.csv")
	if obj.Size != int64(len(testCSV)) {
		t.Errorf("Received size %d, expected %d", obj.Size, len(testCSV))
	}
	if obj.FormatID != "text/csv" {
		t.Errorf("Received format %s", obj.FormatID)
	}
	// the second member gets its defaults filled in
	obj = p.Member("survey.xml")
	if obj == nil {
		t.Fatal("survey.xml was not added under its base name")
	}

	rels := p.Relations()
	// a documents pair plus the two relation rows
	if len(rels) != 4 {
		t.Fatalf("Received %d relations, expected 4", len(rels))
	}
	if rels[0].Predicate != oremap.CitoDocuments ||
		rels[0].Subject != "survey.xml" ||
		rels[0].Object != "survey-2024.csv" {
		t.Errorf("Received relation %v", rels[0])
	}
	if rels[1].Predicate != oremap.CitoIsDocumentedBy {
		t.Errorf("Received relation %v", rels[1])
	}
	if rels[2].Predicate != "http://example.org/terms/source" {
		t.Errorf("Received predicate %s", rels[2].Predicate)
	}
	if rels[3].Predicate != oremap.DCTermsTitle ||
		rels[3].ObjectKind != oremap.Literal ||
		rels[3].Datatype != oremap.XSDString {
		t.Errorf("Received relation %v", rels[3])
	}
}

func TestExpand(t *testing.T) {
	prefixes := prefixTable(map[string]string{
		"example": "http://example.org/terms/",
	})
	var table = []struct {
		input  string
		output string
	}{
		{"dcterms:title", oremap.DCTermsTitle},
		{"example:source", "http://example.org/terms/source"},
		{"urn:uuid:1234", "urn:uuid:1234"},
		{"http://example.com/x", "http://example.com/x"},
		{"plain", "plain"},
		{":odd", ":odd"},
		{"", ""},
	}
	for _, row := range table {
		result := expand(row.input, prefixes)
		if result != row.output {
			t.Errorf("Received %s, expected %s", result, row.output)
		}
	}
}

func TestAssembleRoundTrip(t *testing.T) {
	p, err := loadPackage(writeDescription(t))
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	err = p.ExportBag(&buf, "turtle")
	if err != nil {
		t.Fatal(err)
	}
	r, err := bagit.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	err = r.Verify()
	if err != nil {
		t.Error("Verify:", err)
	}
	files := r.Files()
	if len(files) != 2 {
		t.Fatalf("Received payload %v", files)
	}
	rebuilt, err := pack.ReadBagManifest(r)
	if err != nil {
		t.Fatal(err)
	}
	if rebuilt.ID() != p.ID() {
		t.Errorf("Received id %s, expected %s", rebuilt.ID(), p.ID())
	}
	if len(rebuilt.Relations()) != 4 {
		t.Errorf("Received %d relations", len(rebuilt.Relations()))
	}
}
