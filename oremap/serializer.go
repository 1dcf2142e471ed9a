package oremap

import (
	"fmt"
	"io"
	"os"
	"sort"

	rdf "github.com/geoknoesis/rdf-go/rdf"
)

// DefaultSyntax is the serialization used when the caller names none.
const DefaultSyntax = "rdfxml"

// SerializationError reports a failed encoding, carrying the syntax and
// destination the caller asked for so a retry can use different
// parameters. No automatic retry happens; these failures are typically
// permanent (bad syntax name, unwritable path).
type SerializationError struct {
	Syntax      string
	Destination string
	Err         error
}

func (e *SerializationError) Error() string {
	if e.Destination == "" {
		return fmt.Sprintf("serialize %s: %v", e.Syntax, e.Err)
	}
	return fmt.Sprintf("serialize %s to %s: %v", e.Syntax, e.Destination, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// A Serializer encodes a TripleSet into one concrete RDF syntax. Syntax
// accepts the usual aliases (rdfxml, rdf, xml, turtle, ttl, ntriples, nt,
// nquads, nq, trig, jsonld); empty means DefaultSyntax. Namespaces is
// merged with the default table before emission, which rejects a table
// giving one prefix to two URIs; the encoders declare the namespaces
// they abbreviate. Encoding writes every statement in insertion order
// and never skips, reorders, or mutates.
type Serializer struct {
	Syntax     string
	Namespaces Namespaces
}

// Encode writes the statements of ts to w. The unrecognized-syntax and
// write failures surface as a *SerializationError; a namespace prefix
// collision surfaces as the configuration error from MergeNamespaces.
func (s Serializer) Encode(w io.Writer, ts *TripleSet) error {
	return s.encode(w, ts, "")
}

// EncodeFile writes the statements of ts to the file at path, creating or
// truncating it. The handle is closed on all exit paths, and close errors
// are reported when encoding itself succeeded.
func (s Serializer) EncodeFile(path string, ts *TripleSet) error {
	f, err := os.Create(path)
	if err != nil {
		return &SerializationError{Syntax: s.syntax(), Destination: path, Err: err}
	}
	err = s.encode(f, ts, path)
	cerr := f.Close()
	if err != nil {
		return err
	}
	if cerr != nil {
		return &SerializationError{Syntax: s.syntax(), Destination: path, Err: cerr}
	}
	return nil
}

func (s Serializer) syntax() string {
	if s.Syntax == "" {
		return DefaultSyntax
	}
	return s.Syntax
}

func (s Serializer) encode(w io.Writer, ts *TripleSet, dest string) error {
	format, ok := rdf.ParseFormat(s.syntax())
	if !ok || format == rdf.FormatAuto {
		// "auto" parses, but only makes sense for decoding
		return &SerializationError{Syntax: s.syntax(), Destination: dest, Err: rdf.ErrUnsupportedFormat}
	}
	// The encoders assign prefixes on their own, so the merged table is
	// not handed over; the merge still rejects conflicting configuration.
	if _, err := MergeNamespaces(s.Namespaces); err != nil {
		return err
	}
	enc, err := rdf.NewWriter(w, format)
	if err != nil {
		return &SerializationError{Syntax: s.syntax(), Destination: dest, Err: err}
	}
	for _, st := range ts.Statements() {
		if err := enc.Write(triple(st)); err != nil {
			enc.Close()
			return &SerializationError{Syntax: s.syntax(), Destination: dest, Err: err}
		}
	}
	if err := enc.Close(); err != nil {
		return &SerializationError{Syntax: s.syntax(), Destination: dest, Err: err}
	}
	return nil
}

// triple converts one statement into the term model the encoders consume.
func triple(st Statement) rdf.Statement {
	out := rdf.Statement{
		S: rdf.IRI{Value: st.Subject},
		P: rdf.IRI{Value: st.Predicate},
	}
	if st.ObjectKind == Literal {
		lit := rdf.Literal{Lexical: st.Object}
		if st.Datatype != "" {
			lit.Datatype = rdf.IRI{Value: st.Datatype}
		}
		out.O = lit
	} else {
		out.O = rdf.IRI{Value: st.Object}
	}
	return out
}

// Syntaxes lists the serialization names accepted by Serializer, sorted.
func Syntaxes() []string {
	names := []string{
		string(rdf.FormatRDFXML),
		string(rdf.FormatTurtle),
		string(rdf.FormatNTriples),
		string(rdf.FormatNQuads),
		string(rdf.FormatTriG),
		string(rdf.FormatJSONLD),
	}
	sort.Strings(names)
	return names
}

// Canonical maps a syntax name or alias ("xml", "ttl", "nt") to the
// canonical name Syntaxes lists. An empty name means DefaultSyntax;
// unknown names report false, as does "auto", which only names a
// decoding mode. Callers keying caches or file names by syntax should
// canonicalize first so aliases land on the same entry.
func Canonical(syntax string) (string, bool) {
	if syntax == "" {
		syntax = DefaultSyntax
	}
	format, ok := rdf.ParseFormat(syntax)
	if !ok || format == rdf.FormatAuto {
		return "", false
	}
	return string(format), true
}

// ContentType maps a syntax name to the media type its output should be
// served with. An empty name means DefaultSyntax; unknown names report
// false.
func ContentType(syntax string) (string, bool) {
	if syntax == "" {
		syntax = DefaultSyntax
	}
	format, ok := rdf.ParseFormat(syntax)
	if !ok {
		return "", false
	}
	switch format {
	case rdf.FormatRDFXML:
		return "application/rdf+xml", true
	case rdf.FormatTurtle:
		return "text/turtle", true
	case rdf.FormatNTriples:
		return "application/n-triples", true
	case rdf.FormatNQuads:
		return "application/n-quads", true
	case rdf.FormatTriG:
		return "application/trig", true
	case rdf.FormatJSONLD:
		return "application/ld+json", true
	}
	return "", false
}

// Extension maps a syntax name to the conventional file extension for its
// output, dot included. An empty name means DefaultSyntax; unknown names
// report false.
func Extension(syntax string) (string, bool) {
	if syntax == "" {
		syntax = DefaultSyntax
	}
	format, ok := rdf.ParseFormat(syntax)
	if !ok {
		return "", false
	}
	switch format {
	case rdf.FormatRDFXML:
		return ".xml", true
	case rdf.FormatTurtle:
		return ".ttl", true
	case rdf.FormatNTriples:
		return ".nt", true
	case rdf.FormatNQuads:
		return ".nq", true
	case rdf.FormatTriG:
		return ".trig", true
	case rdf.FormatJSONLD:
		return ".jsonld", true
	}
	return "", false
}
