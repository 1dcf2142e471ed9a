package clientapi

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/antonholmquist/jason"

	"github.com/ndlib/parcel/pack"
)

// A FileInfo describes one staged upload on the server.
type FileInfo struct {
	ID         string
	Size       int64
	MD5        []byte
	SHA256     []byte
	Identifier string // identifier claimed by the upload's metadata
	FormatID   string
}

// ListPackages returns the identifiers of every package on the server.
func (c *Connection) ListPackages() ([]string, error) {
	return c.doJasonList("/package")
}

// ListUploads returns the ids of the uploads waiting in the server's
// staging area.
func (c *Connection) ListUploads() ([]string, error) {
	return c.doJasonList("/upload")
}

// PackageInfo returns the manifest record of the given package.
func (c *Connection) PackageInfo(id string) (*jason.Object, error) {
	return c.doJasonGet("/package/" + url.PathEscape(id))
}

// UploadInfo returns information for an uploaded file, if it exists.
func (c *Connection) UploadInfo(uploadid string) (FileInfo, error) {
	var result FileInfo
	v, err := c.doJasonGet("/upload/" + url.PathEscape(uploadid) + "/metadata")
	if err != nil {
		return result, err
	}
	result.ID, _ = v.GetString("ID")
	result.Size, _ = v.GetInt64("Size")
	if vv, _ := v.GetString("MD5"); vv != "" {
		result.MD5, _ = base64.StdEncoding.DecodeString(vv)
	}
	if vv, _ := v.GetString("SHA256"); vv != "" {
		result.SHA256, _ = base64.StdEncoding.DecodeString(vv)
	}
	result.Identifier, _ = v.GetString("Sysmeta", "Identifier")
	result.FormatID, _ = v.GetString("Sysmeta", "FormatID")
	return result, nil
}

// Upload sends content to the server's staging area. If uploadid is empty
// the server picks a new id; otherwise the upload replaces the content of
// the given id, creating it if needed. The MD5 hash of the content must be
// supplied since the server verifies what it received against it. Returns
// the upload id.
func (c *Connection) Upload(uploadid string, r io.Reader, contentMD5 []byte) (string, error) {
	verb, route := "POST", "/upload"
	if uploadid != "" {
		verb, route = "PUT", "/upload/"+url.PathEscape(uploadid)
	}
	req, err := http.NewRequest(verb, c.HostURL+route, r)
	if err != nil {
		return "", err
	}
	req.Header.Set("X-Upload-Md5", hex.EncodeToString(contentMD5))
	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case 200:
		return path.Base(resp.Header.Get("Location")), nil
	case 412:
		return "", ErrChecksumMismatch
	default:
		log.Printf("Received HTTP status %d for %s %s", resp.StatusCode, verb, route)
		return "", ErrUnexpectedResp
	}
}

// SetUploadMeta attaches a system metadata record to a staged upload. The
// record's Identifier is what ties the upload to a package member at
// submission time.
func (c *Connection) SetUploadMeta(uploadid string, sm pack.SystemMetadata) error {
	buf, err := json.Marshal(sm)
	if err != nil {
		return err
	}
	route := "/upload/" + url.PathEscape(uploadid) + "/metadata"
	req, err := http.NewRequest("PUT", c.HostURL+route, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case 200:
		return nil
	case 404:
		return ErrNotFound
	default:
		log.Printf("Received HTTP status %d for PUT %s", resp.StatusCode, route)
		return ErrUnexpectedResp
	}
}

// DeleteUpload removes a staged upload from the server.
func (c *Connection) DeleteUpload(uploadid string) error {
	route := "/upload/" + url.PathEscape(uploadid)
	req, err := http.NewRequest("DELETE", c.HostURL+route, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		log.Printf("Received HTTP status %d for DELETE %s", resp.StatusCode, route)
		return ErrUnexpectedResp
	}
	return nil
}

// Submit asks the server to archive a package. Each member of the manifest
// must already have staged content under its identifier. Returns the path
// of the new package.
func (c *Connection) Submit(p *pack.Package) (string, error) {
	buf, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequest("POST", c.HostURL+"/package", bytes.NewReader(buf))
	if err != nil {
		return "", err
	}
	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case 201:
		return resp.Header.Get("Location"), nil
	case 400:
		// the body says which member was the problem
		msg, _ := ioutil.ReadAll(resp.Body)
		return "", fmt.Errorf("submission rejected: %s", strings.TrimSpace(string(msg)))
	case 409:
		return "", ErrExists
	case 412:
		return "", ErrChecksumMismatch
	default:
		log.Printf("Received HTTP status %d for POST /package", resp.StatusCode)
		return "", ErrUnexpectedResp
	}
}

// DeletePackage removes a package, its archived bag, and its pending
// fixity checks from the server.
func (c *Connection) DeletePackage(id string) error {
	route := "/package/" + url.PathEscape(id)
	req, err := http.NewRequest("DELETE", c.HostURL+route, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case 200:
		return nil
	case 404:
		return ErrNotFound
	default:
		log.Printf("Received HTTP status %d for DELETE %s", resp.StatusCode, route)
		return ErrUnexpectedResp
	}
}

// DownloadBag copies the archived bag of the given package to w.
func (c *Connection) DownloadBag(w io.Writer, id string) error {
	return c.download(w, "/package/"+url.PathEscape(id)+"/bag")
}

// DownloadResourceMap copies the resource map of the given package,
// serialized in the given syntax, to w. An empty syntax means the server
// default.
func (c *Connection) DownloadResourceMap(w io.Writer, id string, syntax string) error {
	route := "/package/" + url.PathEscape(id) + "/resourcemap"
	if syntax != "" {
		route += "?format=" + url.QueryEscape(syntax)
	}
	return c.download(w, route)
}

// DownloadMember copies one member's content out of the given package's
// bag to w.
func (c *Connection) DownloadMember(w io.Writer, id string, memberid string) error {
	return c.download(w, "/package/"+url.PathEscape(id)+"/member/"+url.PathEscape(memberid))
}

// download copies the body of the given route to w.
func (c *Connection) download(w io.Writer, route string) error {
	req, err := http.NewRequest("GET", c.HostURL+route, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case 200:
		break
	case 404:
		log.Println("returned 404", route)
		return ErrNotFound
	default:
		return fmt.Errorf("Received status %d from Parcel", resp.StatusCode)
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

// ScheduleFixity asks the server to verify the given package's bag at its
// next opportunity. Returns the path of the new fixity record.
func (c *Connection) ScheduleFixity(pkg string) (string, error) {
	buf, err := json.Marshal(struct{ Package string }{pkg})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequest("POST", c.HostURL+"/fixity", bytes.NewReader(buf))
	if err != nil {
		return "", err
	}
	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case 201:
		return resp.Header.Get("Location"), nil
	case 404:
		return "", ErrNotFound
	default:
		log.Printf("Received HTTP status %d for POST /fixity", resp.StatusCode)
		return "", ErrUnexpectedResp
	}
}

// FixityRecords returns the verification records matching the given
// package and status. Empty strings match everything.
func (c *Connection) FixityRecords(pkg string, status string) ([]*jason.Object, error) {
	route := "/fixity"
	q := url.Values{}
	if pkg != "" {
		q.Set("package", pkg)
	}
	if status != "" {
		q.Set("status", status)
	}
	if len(q) > 0 {
		route += "?" + q.Encode()
	}
	v, err := c.doJasonGetValue(route)
	if err != nil {
		return nil, err
	}
	if v.Null() == nil {
		return nil, nil
	}
	values, err := v.Array()
	if err != nil {
		return nil, err
	}
	var result []*jason.Object
	for _, vv := range values {
		obj, err := vv.Object()
		if err != nil {
			return nil, err
		}
		result = append(result, obj)
	}
	return result, nil
}

// doJasonGet does a GET expecting a JSON object back.
func (c *Connection) doJasonGet(route string) (*jason.Object, error) {
	v, err := c.doJasonGetValue(route)
	if err != nil {
		return nil, err
	}
	return v.Object()
}

// doJasonList does a GET expecting a JSON list of strings back.
func (c *Connection) doJasonList(route string) ([]string, error) {
	v, err := c.doJasonGetValue(route)
	if err != nil {
		return nil, err
	}
	// an empty list may arrive as null
	if v.Null() == nil {
		return nil, nil
	}
	values, err := v.Array()
	if err != nil {
		return nil, err
	}
	var result []string
	for _, vv := range values {
		s, err := vv.String()
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, nil
}

// doJasonGetValue does a GET asking for JSON and parses what comes back.
func (c *Connection) doJasonGetValue(route string) (*jason.Value, error) {
	req, err := http.NewRequest("GET", c.HostURL+route, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case 200:
		return jason.NewValueFromReader(resp.Body)
	case 404:
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("Received status %d from Parcel", resp.StatusCode)
	}
}
