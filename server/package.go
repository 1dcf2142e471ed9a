package server

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/ndlib/parcel/bagit"
	"github.com/ndlib/parcel/mapcache"
	"github.com/ndlib/parcel/oremap"
	"github.com/ndlib/parcel/pack"
	"github.com/ndlib/parcel/stage"
	"github.com/ndlib/parcel/store"
)

// bagKey maps a package identifier to the key its bag is stored under.
func bagKey(id string) string {
	return url.PathEscape(id) + ".zip"
}

// ListPackagesHandler handles requests to GET /package
func (s *RESTServer) ListPackagesHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	writeHTMLorJSON(w, r, listPackagesTemplate, s.Registry.List())
}

var (
	listPackagesTemplate = template.Must(template.New("listpackages").Parse(`<html>
<h1>Packages</h1>
<ol>
{{ range . }}
	<li><a href="/package/{{ . }}">{{ . }}</a></li>
{{ else }}
	<li>No Packages</li>
{{ end }}
</ol>
</html>`))
)

// PackageHandler handles requests to GET /package/:id
func (s *RESTServer) PackageHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	p := s.Registry.Lookup(id)
	if p == nil {
		w.WriteHeader(404)
		fmt.Fprintln(w, "Unknown package identifier")
		return
	}
	writeHTMLorJSON(w, r, packageTemplate, p)
}

var (
	packageTemplate = template.Must(template.New("package").Parse(`<html>
<h1>Package {{ .ID }}</h1>
{{ $id := .ID }}
<h2>Members</h2>
<table>
<tr><th>Identifier</th><th>Format</th><th>Size</th><th>Checksum</th></tr>
{{ range .Members }}
	<tr><td><a href="/package/{{ $id }}/member/{{ .Identifier }}">{{ .Identifier }}</a></td>
	<td>{{ .FormatID }}</td>
	<td>{{ .Size }}</td>
	<td>{{ .ChecksumAlgorithm }} {{ .Checksum }}</td></tr>
{{ end }}
</table>
<h2>Relations</h2>
<ul>
{{ range .Relations }}
	<li>{{ .Subject }} -- {{ .Predicate }} -- {{ .Object }}</li>
{{ else }}
	<li>No Relations</li>
{{ end }}
</ul>
<a href="/package/{{ $id }}/resourcemap">Resource Map</a></br>
<a href="/package/{{ $id }}/bag">Download Bag</a></br>
<a href="/package">Back</a>
</html>`))
)

// SubmitPackageHandler handles requests to POST /package. The body is a
// package manifest. Each member must have content waiting in the staging
// area under its identifier; a member disagreeing with its upload on size
// or checksum rejects the whole submission. On success the package is
// exported to bag storage, its manifest is registered, a fixity check is
// scheduled, and the staged entries consumed are deleted.
func (s *RESTServer) SubmitPackageHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	p := new(pack.Package)
	err := json.NewDecoder(r.Body).Decode(p)
	if err != nil {
		w.WriteHeader(400)
		fmt.Fprintln(w, err.Error())
		return
	}
	if len(p.Members()) == 0 {
		w.WriteHeader(400)
		fmt.Fprintln(w, "package has no members")
		return
	}
	if s.Registry.Lookup(p.ID()) != nil {
		w.WriteHeader(409)
		fmt.Fprintf(w, "package %s is already registered\n", p.ID())
		return
	}
	// The resolve base in effect now is stamped into the manifest, so the
	// archived bag and later renderings always agree.
	if p.Base() == "" {
		p.SetBase(s.ResolveBase)
	}
	staged := s.stagedByIdentifier()
	var used []string
	for _, obj := range p.Members() {
		e := staged[obj.Identifier]
		if e == nil {
			w.WriteHeader(400)
			fmt.Fprintf(w, "no uploaded content for member %s\n", obj.Identifier)
			return
		}
		err = mergeStagedContent(obj, e)
		if err != nil {
			w.WriteHeader(412)
			fmt.Fprintln(w, err.Error())
			return
		}
		used = append(used, e.Stat().ID)
	}
	key := bagKey(p.ID())
	s.BagStore.Delete(key) // remove any leftover from an earlier failure
	wr, err := s.BagStore.Create(key)
	if err != nil {
		w.WriteHeader(500)
		fmt.Fprintln(w, err.Error())
		return
	}
	err = p.ExportBag(wr, oremap.DefaultSyntax)
	err2 := wr.Close()
	if err == nil {
		err = err2
	}
	if err != nil {
		s.BagStore.Delete(key)
		if errors.Is(err, oremap.ErrInvalidInput) {
			w.WriteHeader(400)
		} else {
			w.WriteHeader(500)
		}
		fmt.Fprintln(w, err.Error())
		return
	}
	s.Registry.Set(p.ID(), p)
	if s.FixityDatabase != nil {
		_, err = s.FixityDatabase.UpdateFixity(Fixity{
			Package:       p.ID(),
			ScheduledTime: time.Now().Add(s.FixityInterval),
		})
		if err != nil {
			log.Println("fixity:", p.ID(), err)
		}
	}
	for _, id := range used {
		s.Stage.Delete(id)
	}
	w.Header().Set("Location", "/package/"+url.PathEscape(p.ID()))
	w.WriteHeader(201)
	json.NewEncoder(w).Encode(p)
}

// stagedByIdentifier indexes the entries in the staging area by the
// identifier each one claims in its system metadata. Entries claiming no
// identifier are indexed by their upload id. Entries with no content yet
// are skipped.
func (s *RESTServer) stagedByIdentifier() map[string]stage.Entry {
	result := make(map[string]stage.Entry)
	for _, id := range s.Stage.List() {
		e := s.Stage.Lookup(id)
		if e == nil {
			continue
		}
		info := e.Stat()
		if !info.Stored {
			continue
		}
		key := info.Sysmeta.Identifier
		if key == "" {
			key = info.ID
		}
		result[key] = e
	}
	return result
}

// mergeStagedContent checks a manifest member against the staged entry
// claiming its identifier and fills in whatever the manifest left out. A
// disagreement on size or checksum means the upload is not the content the
// manifest describes, and is an error.
func mergeStagedContent(obj *pack.DataObject, e stage.Entry) error {
	info := e.Stat()
	if obj.Size != 0 && obj.Size != info.Size {
		return fmt.Errorf("member %s: manifest says %d bytes, upload has %d",
			obj.Identifier, obj.Size, info.Size)
	}
	if len(obj.MD5) > 0 && !bytes.Equal(obj.MD5, info.MD5) {
		return fmt.Errorf("member %s: MD5 does not match upload", obj.Identifier)
	}
	if len(obj.SHA256) > 0 && !bytes.Equal(obj.SHA256, info.SHA256) {
		return fmt.Errorf("member %s: SHA256 does not match upload", obj.Identifier)
	}
	obj.Size = info.Size
	obj.MD5 = info.MD5
	obj.SHA256 = info.SHA256
	if obj.Checksum == "" {
		obj.Checksum = hex.EncodeToString(info.MD5)
		obj.ChecksumAlgorithm = pack.MD5Algorithm
	}
	if obj.DateUploaded.IsZero() {
		obj.DateUploaded = info.Created
	}
	obj.SetContentSource(e.Open)
	return nil
}

// DeletePackageHandler handles requests to DELETE /package/:id. The bag,
// the registry record, any cached renderings, and any pending fixity checks
// for the package are all removed.
func (s *RESTServer) DeletePackageHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if s.Registry.Lookup(id) == nil {
		w.WriteHeader(404)
		fmt.Fprintln(w, "Unknown package identifier")
		return
	}
	err := s.BagStore.Delete(bagKey(id))
	if err != nil {
		w.WriteHeader(500)
		fmt.Fprintln(w, err.Error())
		return
	}
	err = s.Registry.Delete(id)
	if err != nil {
		w.WriteHeader(500)
		fmt.Fprintln(w, err.Error())
		return
	}
	for _, syntax := range oremap.Syntaxes() {
		s.MapCache.Delete(mapcache.Key(id, syntax))
	}
	if s.FixityDatabase != nil {
		var zero time.Time
		for _, fx := range s.FixityDatabase.SearchFixity(zero, zero, id, "scheduled") {
			s.FixityDatabase.DeleteFixity(fx.ID)
		}
	}
}

// ResourceMapHandler handles requests to GET /package/:id/resourcemap.
// The serialization syntax is chosen with the "format" query parameter;
// the default is RDF/XML. Renderings are cached, and concurrent requests
// for the same rendering share one construction.
func (s *RESTServer) ResourceMapHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	syntax, ok := oremap.Canonical(r.FormValue("format"))
	if !ok {
		w.WriteHeader(400)
		fmt.Fprintf(w, "unknown format %s\n", r.FormValue("format"))
		return
	}
	contentType, _ := oremap.ContentType(syntax)
	key := mapcache.Key(id, syntax)
	rac, size, err := s.MapCache.Get(key)
	if err != nil {
		log.Println("mapcache:", key, err)
	}
	if rac != nil {
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		io.Copy(w, store.NewReader(rac))
		rac.Close()
		return
	}
	p := s.Registry.Lookup(id)
	if p == nil {
		w.WriteHeader(404)
		fmt.Fprintln(w, "Unknown package identifier")
		return
	}
	body, err := s.maps.Do(key, func() (interface{}, error) {
		var buf bytes.Buffer
		err := p.WriteResourceMap(&buf, syntax)
		if err != nil {
			return nil, err
		}
		s.cacheRendering(key, buf.Bytes())
		return buf.Bytes(), nil
	})
	if err != nil {
		w.WriteHeader(500)
		fmt.Fprintln(w, err.Error())
		return
	}
	data := body.([]byte)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

// cacheRendering saves one rendered resource map into the cache. Failures
// only cost us a rerender, so they are logged and not returned.
func (s *RESTServer) cacheRendering(key string, data []byte) {
	wr, err := s.MapCache.Put(key)
	if err != nil {
		log.Println("mapcache:", key, err)
		return
	}
	_, err = wr.Write(data)
	err2 := wr.Close()
	if err == nil {
		err = err2
	}
	if err != nil && err != mapcache.ErrCacheFull {
		log.Println("mapcache:", key, err)
	}
}

// BagHandler handles requests to GET and HEAD /package/:id/bag, serving
// the archived bag as a zip file.
func (s *RESTServer) BagHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if s.Registry.Lookup(id) == nil {
		w.WriteHeader(404)
		fmt.Fprintln(w, "Unknown package identifier")
		return
	}
	key := bagKey(id)
	rac, size, err := s.BagStore.Open(key)
	if err != nil {
		w.WriteHeader(404)
		fmt.Fprintln(w, err.Error())
		return
	}
	defer rac.Close()
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, key))
	// ServeContent gets us range requests and HEAD for free
	http.ServeContent(w, r, key, time.Time{}, io.NewSectionReader(rac, 0, size))
}

// MemberHandler handles requests to GET and HEAD
// /package/:id/member/*memberid, streaming one member's content out of the
// archived bag.
func (s *RESTServer) MemberHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	// the star parameter in httprouter returns the leading slash
	memberid := strings.TrimPrefix(ps.ByName("memberid"), "/")
	p := s.Registry.Lookup(id)
	if p == nil {
		w.WriteHeader(404)
		fmt.Fprintln(w, "Unknown package identifier")
		return
	}
	obj := p.Member(memberid)
	if obj == nil {
		w.WriteHeader(404)
		fmt.Fprintln(w, "Unknown member identifier")
		return
	}
	if obj.Checksum != "" {
		w.Header().Set("ETag", `"`+obj.Checksum+`"`)
	}
	w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	if r.Method == "HEAD" {
		return
	}
	rac, size, err := s.BagStore.Open(bagKey(id))
	if err != nil {
		w.WriteHeader(404)
		fmt.Fprintln(w, err.Error())
		return
	}
	defer rac.Close()
	bag, err := bagit.NewReader(rac, size)
	if err != nil {
		w.WriteHeader(500)
		fmt.Fprintln(w, err.Error())
		return
	}
	rc, err := bag.Open(pack.PayloadName(memberid))
	if err != nil {
		w.WriteHeader(404)
		fmt.Fprintln(w, err.Error())
		return
	}
	io.Copy(w, rc)
	rc.Close()
}

// FormatsHandler handles requests to GET /formats, listing the resource
// map serialization syntaxes the server understands.
func (s *RESTServer) FormatsHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var result []formatInfo
	for _, syntax := range oremap.Syntaxes() {
		mt, _ := oremap.ContentType(syntax)
		ext, _ := oremap.Extension(syntax)
		result = append(result, formatInfo{
			Name:        syntax,
			ContentType: mt,
			Extension:   ext,
		})
	}
	writeHTMLorJSON(w, r, formatsTemplate, result)
}

type formatInfo struct {
	Name        string
	ContentType string
	Extension   string
}

var (
	formatsTemplate = template.Must(template.New("formats").Parse(`<html>
<h1>Resource Map Formats</h1>
<table>
<tr><th>Name</th><th>Content-Type</th><th>Extension</th></tr>
{{ range . }}
	<tr><td>{{ .Name }}</td><td>{{ .ContentType }}</td><td>{{ .Extension }}</td></tr>
{{ end }}
</table>
</html>`))
)
