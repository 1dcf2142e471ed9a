package oremap

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/geoknoesis/rdf-go/rdf"
)

func sampleTriples() *TripleSet {
	ts := NewTripleSet()
	ts.Append(Statement{
		Subject:   "https://cn.dataone.org/cn/v1/resolve/map1",
		Predicate: RDFType,
		Object:    OREResourceMap,
	})
	ts.Append(Statement{
		Subject:    "https://cn.dataone.org/cn/v1/resolve/map1",
		Predicate:  DCTermsIdentifier,
		Object:     "map1",
		ObjectKind: Literal,
		Datatype:   XSDString,
	})
	return ts
}

func TestSerializerUnknownSyntax(t *testing.T) {
	// "auto" is a valid parse target but not an encoding
	for _, syntax := range []string{"bogus", "auto"} {
		s := &Serializer{Syntax: syntax}
		var buf bytes.Buffer
		err := s.Encode(&buf, sampleTriples())
		if err == nil {
			t.Fatalf("expected an error for syntax %q", syntax)
		}
		var serr *SerializationError
		if !errors.As(err, &serr) {
			t.Fatalf("received %T, expected *SerializationError", err)
		}
		if serr.Syntax != syntax {
			t.Errorf("Received %q, expected %q", serr.Syntax, syntax)
		}
		if !errors.Is(err, rdf.ErrUnsupportedFormat) {
			t.Errorf("error does not unwrap to ErrUnsupportedFormat: %v", err)
		}
		if buf.Len() != 0 {
			t.Errorf("Received %d bytes on failed encode, expected 0", buf.Len())
		}
	}
}

func TestSerializerSyntaxAliases(t *testing.T) {
	// ttl and nt are common aliases, and an empty syntax means the default
	for _, syntax := range []string{"", "rdfxml", "xml", "turtle", "ttl", "ntriples", "nt", "nquads", "trig", "jsonld"} {
		s := &Serializer{Syntax: syntax}
		var buf bytes.Buffer
		if err := s.Encode(&buf, sampleTriples()); err != nil {
			t.Errorf("syntax %q: %v", syntax, err)
		}
		if buf.Len() == 0 {
			t.Errorf("syntax %q: empty output", syntax)
		}
	}
}

func TestSerializerNTriplesShape(t *testing.T) {
	s := &Serializer{Syntax: "ntriples"}
	var buf bytes.Buffer
	if err := s.Encode(&buf, sampleTriples()); err != nil {
		t.Fatal(err)
	}
	expected := fmt.Sprintf("<%s> <%s> <%s> .\n", "https://cn.dataone.org/cn/v1/resolve/map1", RDFType, OREResourceMap) +
		fmt.Sprintf("<%s> <%s> %q^^<%s> .\n", "https://cn.dataone.org/cn/v1/resolve/map1", DCTermsIdentifier, "map1", XSDString)
	if buf.String() != expected {
		t.Errorf("Received %q, expected %q", buf.String(), expected)
	}
}

func TestSerializerRDFXMLShape(t *testing.T) {
	s := &Serializer{}
	var buf bytes.Buffer
	if err := s.Encode(&buf, sampleTriples()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, `<?xml version="1.0" encoding="UTF-8"?>`) {
		t.Error("output is missing the XML declaration")
	}
	// the encoder picks its own prefixes, so check for the namespace
	// declarations and the abbreviated local names rather than spellings
	for _, want := range []string{
		`="` + DCTermsNS + `"`,
		`rdf:about="https://cn.dataone.org/cn/v1/resolve/map1"`,
		`rdf:resource="` + OREResourceMap + `"`,
		`:identifier`,
		`</rdf:RDF>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output is missing %q", want)
		}
	}
}

func TestSerializerCustomNamespace(t *testing.T) {
	s := &Serializer{
		Namespaces: Namespaces{"http://example.com/vocab/": "ex"},
	}
	ts := NewTripleSet()
	ts.Append(Statement{
		Subject:   "https://cn.dataone.org/cn/v1/resolve/a",
		Predicate: "http://example.com/vocab/knows",
		Object:    "https://cn.dataone.org/cn/v1/resolve/b",
	})
	var buf bytes.Buffer
	if err := s.Encode(&buf, ts); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, `="http://example.com/vocab/"`) {
		t.Error("output is missing the custom namespace declaration")
	}
	if !strings.Contains(out, ":knows") {
		t.Error("output is missing the abbreviated knows predicate")
	}
}

func TestSerializerNamespaceConflict(t *testing.T) {
	s := &Serializer{
		Namespaces: Namespaces{"http://example.com/other/": "ore"},
	}
	var buf bytes.Buffer
	err := s.Encode(&buf, sampleTriples())
	if !errors.Is(err, ErrNamespaceConflict) {
		t.Errorf("received %v, expected ErrNamespaceConflict", err)
	}
}

func TestSerializerEncodeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.nt")
	s := &Serializer{Syntax: "ntriples"}
	if err := s.EncodeFile(path, sampleTriples()); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var direct bytes.Buffer
	if err := s.Encode(&direct, sampleTriples()); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, direct.Bytes()) {
		t.Error("file contents differ from direct encoding")
	}
}

func TestSerializerEncodeFileBadPath(t *testing.T) {
	s := &Serializer{Syntax: "ntriples"}
	err := s.EncodeFile("/nonexistent/dir/map.nt", sampleTriples())
	var serr *SerializationError
	if !errors.As(err, &serr) {
		t.Fatalf("received %T, expected *SerializationError", err)
	}
	if serr.Destination == "" {
		t.Error("expected the destination path in the error")
	}
}

func TestSyntaxes(t *testing.T) {
	list := Syntaxes()
	if len(list) == 0 {
		t.Fatal("expected a nonempty syntax list")
	}
	var found bool
	for _, s := range list {
		if s == DefaultSyntax {
			found = true
		}
	}
	if !found {
		t.Errorf("syntax list %v is missing the default %q", list, DefaultSyntax)
	}
	for i := 1; i < len(list); i++ {
		if list[i-1] >= list[i] {
			t.Errorf("syntax list is not sorted: %v", list)
		}
	}
}

func TestCanonical(t *testing.T) {
	var table = []struct {
		syntax string
		name   string
		ok     bool
	}{
		{"rdfxml", "rdfxml", true},
		{"xml", "rdfxml", true},
		{"rdf", "rdfxml", true},
		{"ttl", "turtle", true},
		{"nt", "ntriples", true},
		{"json-ld", "jsonld", true},
		{"", "rdfxml", true},
		{"auto", "", false},
		{"bogus", "", false},
	}
	for _, test := range table {
		name, ok := Canonical(test.syntax)
		if name != test.name || ok != test.ok {
			t.Errorf("Canonical(%q): received (%q, %v), expected (%q, %v)",
				test.syntax, name, ok, test.name, test.ok)
		}
	}
}

func TestContentType(t *testing.T) {
	var table = []struct {
		syntax string
		ct     string
		ok     bool
	}{
		{"rdfxml", "application/rdf+xml", true},
		{"turtle", "text/turtle", true},
		{"ntriples", "application/n-triples", true},
		{"nquads", "application/n-quads", true},
		{"trig", "application/trig", true},
		{"jsonld", "application/ld+json", true},
		{"", "application/rdf+xml", true},
		{"auto", "", false},
		{"bogus", "", false},
	}
	for _, test := range table {
		ct, ok := ContentType(test.syntax)
		if ct != test.ct || ok != test.ok {
			t.Errorf("ContentType(%q): received (%q, %v), expected (%q, %v)",
				test.syntax, ct, ok, test.ct, test.ok)
		}
	}
}
