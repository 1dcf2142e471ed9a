package server

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"math/rand"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"github.com/ndlib/parcel/pack"
	"github.com/ndlib/parcel/stage"
)

// ListFileHandler handles requests to GET /upload
func (s *RESTServer) ListFileHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	writeHTMLorJSON(w, r, listFileTemplate, s.Stage.List())
}

var listFileTemplate = template.Must(template.New("listfile").Parse(`<html>
<h1>Staged Uploads</h1>
<ol>
{{ range . }}
	<li><a href="/upload/{{ . }}/metadata">{{ . }}</a></li>
{{ else }}
	<li>nothing is staged</li>
{{ end }}
</ol>
</html>`))

// GetFileInfoHandler handles requests to GET /upload/:fileid/metadata
func (s *RESTServer) GetFileInfoHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	f := s.Stage.Lookup(ps.ByName("fileid"))
	if f == nil {
		w.WriteHeader(404)
		fmt.Fprintln(w, "no such file")
		return
	}
	writeHTMLorJSON(w, r, fileInfoTemplate, f.Stat())
}

var fileInfoTemplate = template.Must(template.New("fileinfo").Parse(`<html>
<h1>File Info</h1>
{{ $fileid := .ID }}
<dl>
<dt>ID</dt><dd>{{ .ID }}</dd>
<dt>Size</dt><dd>{{ .Size }}</dd>
<dt>Stored</dt><dd>{{ .Stored }}</dd>
<dt>Created</dt><dd>{{ .Created }}</dd>
<dt>Modified</dt><dd>{{ .Modified }}</dd>
<dt>Creator</dt><dd>{{ .Creator }}</dd>
<dt>MD5</dt><dd>{{ printf "%x" .MD5 }}</dd>
<dt>SHA256</dt><dd>{{ printf "%x" .SHA256 }}</dd>
<dt>Identifier</dt><dd>{{ .Sysmeta.Identifier }}</dd>
<dt>Format</dt><dd>{{ .Sysmeta.FormatID }}</dd>
</dl>
<a href="/upload/{{ $fileid }}">View content</a></br>
<a href="/upload">Back</a>
</html>`))

// UploadFileHandler handles requests to POST /upload and PUT
// /upload/:fileid. The request body is the complete content, and uploading
// to an existing file replaces its content. At least one of the
// X-Upload-Md5 or X-Upload-Sha256 headers must be given; the staged
// content is compared against them, and a disagreement means a 412
// response and a rollback.
func (s *RESTServer) UploadFileHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	md5goal, err := hashHeader(r, "X-Upload-Md5")
	if err != nil {
		w.WriteHeader(400)
		fmt.Fprintln(w, err.Error())
		return
	}
	sha256goal, err := hashHeader(r, "X-Upload-Sha256")
	if err != nil {
		w.WriteHeader(400)
		fmt.Fprintln(w, err.Error())
		return
	}
	if md5goal == nil && sha256goal == nil {
		w.WriteHeader(400)
		fmt.Fprintln(w, "need at least one of X-Upload-Md5 or X-Upload-Sha256")
		return
	}
	if r.Body == nil {
		w.WriteHeader(400)
		fmt.Fprintln(w, "no body")
		return
	}

	f := s.stagedEntry(ps.ByName("fileid"))
	if f == nil {
		w.WriteHeader(500)
		fmt.Fprintln(w, "could not make a staging entry")
		return
	}
	if creator := r.Header.Get("X-Parcel-Creator"); creator != "" {
		f.SetCreator(creator)
	}

	wr, err := f.Create()
	if err != nil {
		w.WriteHeader(500)
		fmt.Fprintln(w, err.Error())
		return
	}
	_, copyErr := io.Copy(wr, r.Body)
	closeErr := wr.Close()
	r.Body.Close()
	w.Header().Set("Location", "/upload/"+f.Stat().ID)
	for _, err := range []error{copyErr, closeErr} {
		if err != nil {
			w.WriteHeader(500)
			fmt.Fprintln(w, err.Error())
			return
		}
	}

	stat := f.Stat()
	if md5goal != nil && !bytes.Equal(md5goal, stat.MD5) {
		w.WriteHeader(412)
		fmt.Fprintln(w, "MD5 disagrees with the content")
		f.Rollback()
		return
	}
	if sha256goal != nil && !bytes.Equal(sha256goal, stat.SHA256) {
		w.WriteHeader(412)
		fmt.Fprintln(w, "SHA256 disagrees with the content")
		f.Rollback()
		return
	}
}

// hashHeader decodes the named hex-encoded request header. A missing
// header gives a nil slice and no error.
func hashHeader(r *http.Request, name string) ([]byte, error) {
	value := r.Header.Get(name)
	if value == "" {
		return nil, nil
	}
	h, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%s is not hex encoded", name)
	}
	return h, nil
}

// stagedEntry returns the staging entry to upload into, creating it when
// needed. With no id it picks a fresh random one. It returns nil when an
// entry can neither be created nor found.
func (s *RESTServer) stagedEntry(fileid string) stage.Entry {
	if fileid == "" {
		for {
			if f := s.Stage.New(randomid()); f != nil {
				return f
			}
		}
	}
	// New returns nil when the id is already taken
	if f := s.Stage.New(fileid); f != nil {
		return f
	}
	return s.Stage.Lookup(fileid)
}

// randomid gives a short random identifier for a staged upload.
func randomid() string {
	return strconv.FormatInt(int64(rand.Int31()), 36)
}

// DeleteFileHandler handles requests to DELETE /upload/:fileid, removing
// the staged entry and its content.
func (s *RESTServer) DeleteFileHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	err := s.Stage.Delete(ps.ByName("fileid"))
	if err != nil {
		w.WriteHeader(500)
		fmt.Fprintln(w, err.Error())
	}
}

// SetFileInfoHandler handles requests to PUT /upload/:fileid/metadata. The
// body is the system metadata record for the staged content. The record's
// Identifier is what ties the upload to a package member at submission.
func (s *RESTServer) SetFileInfoHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	f := s.Stage.Lookup(ps.ByName("fileid"))
	if f == nil {
		w.WriteHeader(404)
		fmt.Fprintln(w, "no such file")
		return
	}
	// TODO: wrap the body in a limit reader, 1MB should be plenty
	var metadata pack.SystemMetadata
	err := json.NewDecoder(r.Body).Decode(&metadata)
	if err != nil {
		w.WriteHeader(400)
		fmt.Fprintln(w, err.Error())
		return
	}
	f.SetSysmeta(metadata)
}

// GetFileHandler handles requests to GET /upload/:fileid, streaming back
// the staged content.
func (s *RESTServer) GetFileHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	f := s.Stage.Lookup(ps.ByName("fileid"))
	if f == nil {
		w.WriteHeader(404)
		fmt.Fprintln(w, "no such file")
		return
	}
	fd, err := f.Open()
	if err != nil {
		code := 500
		if errors.Is(err, stage.ErrNoContent) {
			code = 404
		}
		w.WriteHeader(code)
		fmt.Fprintln(w, err.Error())
		return
	}
	io.Copy(w, fd)
	fd.Close()
}
