package pack

import (
	"bytes"
	"encoding/json"
	"io"
	"net/url"

	"github.com/pkg/errors"

	"github.com/ndlib/parcel/bagit"
	"github.com/ndlib/parcel/oremap"
)

// ManifestTagFile is the name of the tag file holding the package manifest
// inside an exported bag. The resource map tag file is named "oremap" plus
// the extension for its syntax.
const ManifestTagFile = "manifest.json"

// PayloadName maps a member identifier to the name of its payload file
// inside a bag. Identifiers may contain path separators and other
// characters unfit for file names, so they are escaped.
func PayloadName(id string) string {
	return url.PathEscape(id)
}

// ExportBag writes the package to w as a BagIt zip bag. Every member's
// content is stored under data/ named by PayloadName, and two tag files
// ride along with their checksums in the tag manifest: the resource map
// serialized in the named syntax (empty means RDF/XML), and the package
// manifest.
func (p *Package) ExportBag(w io.Writer, syntax string) error {
	// Render the resource map up front so a bad syntax, a bad relation
	// row, or a content-less member fails before any bag bytes are
	// written.
	var mapbuf bytes.Buffer
	if err := p.WriteResourceMap(&mapbuf, syntax); err != nil {
		return err
	}
	ext, _ := oremap.Extension(syntax) // syntax was accepted above
	for _, obj := range p.members {
		if !obj.HasContent() {
			return errors.Wrap(ErrNoContent, obj.Identifier)
		}
	}

	bw := bagit.NewWriter(w, PayloadName(p.id))
	bw.SetTag("External-Identifier", p.id)
	for _, obj := range p.members {
		in, err := obj.Open()
		if err != nil {
			return err
		}
		out, err := bw.Create(PayloadName(obj.Identifier))
		if err != nil {
			in.Close()
			return err
		}
		_, err = io.Copy(out, in)
		in.Close()
		if err != nil {
			return errors.Wrap(err, obj.Identifier)
		}
	}
	out, err := bw.CreateTag("oremap" + ext)
	if err != nil {
		return err
	}
	if _, err = out.Write(mapbuf.Bytes()); err != nil {
		return err
	}
	out, err = bw.CreateTag(ManifestTagFile)
	if err != nil {
		return err
	}
	if err = json.NewEncoder(out).Encode(p); err != nil {
		return err
	}
	return bw.Close()
}

// ReadBagManifest loads the package manifest tag file out of a bag,
// rebuilding the package's member records, relations, and namespaces.
// Member content stays in the bag; stream it with bagit.Reader.Open and
// PayloadName.
func ReadBagManifest(r *bagit.Reader) (*Package, error) {
	rc, err := r.OpenTag(ManifestTagFile)
	if err != nil {
		return nil, errors.Wrap(err, ManifestTagFile)
	}
	defer rc.Close()
	result := new(Package)
	err = json.NewDecoder(rc).Decode(result)
	if err != nil {
		return nil, errors.Wrap(err, ManifestTagFile)
	}
	return result, nil
}
