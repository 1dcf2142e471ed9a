package pack

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/ndlib/parcel/bagit"
)

func TestPayloadName(t *testing.T) {
	var table = []struct {
		input  string
		output string
	}{
		{"readings.1.1", "readings.1.1"},
		{"urn:uuid:0e02ffde", "urn:uuid:0e02ffde"},
		{"doi:10.5063/F1", "doi:10.5063%2FF1"},
		{"has space", "has%20space"},
	}

	for _, tab := range table {
		out := PayloadName(tab.input)
		if out != tab.output {
			t.Errorf("Received %s, expected %s", out, tab.output)
		}
	}
}

func TestExportBag(t *testing.T) {
	p := testPackage(t)
	err := p.Document("meta.1.1", "readings.1.1")
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	err = p.ExportBag(&buf, "")
	if err != nil {
		t.Fatal(err)
	}

	r, err := bagit.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Verify(); err != nil {
		t.Errorf("Valid returned %s", err.Error())
	}

	files := r.Files()
	if len(files) != 2 || files[0] != "meta.1.1" || files[1] != "readings.1.1" {
		t.Errorf("Received %v, expected the two members", files)
	}
	if r.Tags()["External-Identifier"] != p.ID() {
		t.Errorf("Received %s, expected %s",
			r.Tags()["External-Identifier"], p.ID())
	}

	// payload content survives
	in, err := r.Open(PayloadName("readings.1.1"))
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(in)
	in.Close()
	if string(body) != fixtureContent {
		t.Errorf("Received %s, expected %s", string(body), fixtureContent)
	}

	// the resource map rides along as a tag file
	in, err = r.OpenTag("oremap.xml")
	if err != nil {
		t.Fatal(err)
	}
	rdfbody, _ := io.ReadAll(in)
	in.Close()
	if !strings.Contains(string(rdfbody), ":isAggregatedBy") {
		t.Errorf("Resource map tag file lacks isAggregatedBy")
	}

	// the manifest rebuilds the package metadata
	back, err := ReadBagManifest(r)
	if err != nil {
		t.Fatal(err)
	}
	if back.ID() != p.ID() {
		t.Errorf("Received %s, expected %s", back.ID(), p.ID())
	}
	ids := back.MemberIDs()
	if len(ids) != 2 || ids[0] != "meta.1.1" || ids[1] != "readings.1.1" {
		t.Errorf("Received %v, expected [meta.1.1 readings.1.1]", ids)
	}
	if len(back.Relations()) != 2 {
		t.Errorf("Received %d relations, expected 2", len(back.Relations()))
	}
}

func TestExportBagSyntax(t *testing.T) {
	p := testPackage(t)
	var buf bytes.Buffer
	err := p.ExportBag(&buf, "turtle")
	if err != nil {
		t.Fatal(err)
	}
	r, err := bagit.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	in, err := r.OpenTag("oremap.ttl")
	if err != nil {
		t.Fatal(err)
	}
	in.Close()
}

func TestExportBagBadSyntax(t *testing.T) {
	p := testPackage(t)
	var buf bytes.Buffer
	err := p.ExportBag(&buf, "bogus")
	if err == nil {
		t.Errorf("Received nil, expected an error for syntax bogus")
	}
	if buf.Len() != 0 {
		t.Errorf("Received %d bytes, expected none written", buf.Len())
	}
}

func TestExportBagNoContent(t *testing.T) {
	p := NewWithID("resourceMap_bare")
	obj, err := NewObjectFromSysmeta(SystemMetadata{Identifier: "ghost.1.1"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.AddMember(obj); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	err = p.ExportBag(&buf, "")
	if !errors.Is(err, ErrNoContent) {
		t.Errorf("Received %v, expected %v", err, ErrNoContent)
	}
	if buf.Len() != 0 {
		t.Errorf("Received %d bytes, expected none written", buf.Len())
	}
}
