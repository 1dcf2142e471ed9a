package clientapi

import (
	"bytes"
	"crypto/md5"
	"strings"
	"testing"

	"github.com/ndlib/parcel/pack"
)

func TestRoundTrip(t *testing.T) {
	_, remote := NewLocalParcelServer()
	conn := &Connection{HostURL: remote.URL}

	const content = "0123456789abcdefghijklmnopqrstuvwxyz"
	contentMD5 := md5.Sum([]byte(content))

	// stage the content and claim an identifier for it
	upid, err := conn.Upload("", strings.NewReader(content), contentMD5[:])
	if err != nil {
		t.Fatalf("Received %s", err.Error())
	}
	t.Log("uploaded", upid)
	err = conn.SetUploadMeta(upid, pack.SystemMetadata{
		Identifier: "qwerty-data",
		FormatID:   "text/plain",
	})
	if err != nil {
		t.Fatalf("Received %s", err.Error())
	}
	info, err := conn.UploadInfo(upid)
	if err != nil {
		t.Fatalf("Received %s", err.Error())
	}
	if info.Size != int64(len(content)) {
		t.Errorf("Received %d, expected %d", info.Size, len(content))
	}
	if !bytes.Equal(info.MD5, contentMD5[:]) {
		t.Errorf("Received %x, expected %x", info.MD5, contentMD5)
	}
	if info.Identifier != "qwerty-data" {
		t.Errorf("Received %s, expected qwerty-data", info.Identifier)
	}
	uploads, err := conn.ListUploads()
	if err != nil {
		t.Fatalf("Received %s", err.Error())
	}
	if !containsString(uploads, upid) {
		t.Errorf("Received %v, expected %s to be listed", uploads, upid)
	}

	// submit a package naming the upload
	p := pack.New()
	obj, err := pack.NewObject("qwerty-data", "text/plain", []byte(content))
	if err != nil {
		t.Fatalf("Received %s", err.Error())
	}
	p.AddMember(obj)
	loc, err := conn.Submit(p)
	if err != nil {
		t.Fatalf("Received %s", err.Error())
	}
	t.Log("package at", loc)

	// a second submission is refused
	_, err = conn.Submit(p)
	if err != ErrExists {
		t.Errorf("Received %v, expected %v", err, ErrExists)
	}

	list, err := conn.ListPackages()
	if err != nil {
		t.Fatalf("Received %s", err.Error())
	}
	if !containsString(list, p.ID()) {
		t.Errorf("Received %v, expected %s to be listed", list, p.ID())
	}
	v, err := conn.PackageInfo(p.ID())
	if err != nil {
		t.Fatalf("Received %s", err.Error())
	}
	if id, _ := v.GetString("ID"); id != p.ID() {
		t.Errorf("Received %s, expected %s", id, p.ID())
	}

	// the bag, the member, and the resource map all come back
	var bag bytes.Buffer
	err = conn.DownloadBag(&bag, p.ID())
	if err != nil {
		t.Fatalf("Received %s", err.Error())
	}
	if !bytes.HasPrefix(bag.Bytes(), []byte("PK")) {
		t.Errorf("bag does not look like a zip file")
	}
	var member bytes.Buffer
	err = conn.DownloadMember(&member, p.ID(), "qwerty-data")
	if err != nil {
		t.Fatalf("Received %s", err.Error())
	}
	if member.String() != content {
		t.Errorf("Received %#v, expected %#v", member.String(), content)
	}
	var resmap bytes.Buffer
	err = conn.DownloadResourceMap(&resmap, p.ID(), "turtle")
	if err != nil {
		t.Fatalf("Received %s", err.Error())
	}
	if !strings.Contains(resmap.String(), "describes") {
		t.Errorf("Received %#v, expected a resource map", resmap.String())
	}

	// fixity was scheduled at submit, and more checks can be added
	records, err := conn.FixityRecords(p.ID(), "scheduled")
	if err != nil {
		t.Fatalf("Received %s", err.Error())
	}
	if len(records) != 1 {
		t.Fatalf("Received %d records, expected 1", len(records))
	}
	fxloc, err := conn.ScheduleFixity(p.ID())
	if err != nil {
		t.Fatalf("Received %s", err.Error())
	}
	t.Log("fixity at", fxloc)
	records, err = conn.FixityRecords(p.ID(), "")
	if err != nil {
		t.Fatalf("Received %s", err.Error())
	}
	if len(records) != 2 {
		t.Errorf("Received %d records, expected 2", len(records))
	}

	// unknown packages cannot be scheduled
	_, err = conn.ScheduleFixity("zxcv-unknown")
	if err != ErrNotFound {
		t.Errorf("Received %v, expected %v", err, ErrNotFound)
	}

	err = conn.DeletePackage(p.ID())
	if err != nil {
		t.Fatalf("Received %s", err.Error())
	}
	_, err = conn.PackageInfo(p.ID())
	if err != ErrNotFound {
		t.Errorf("Received %v, expected %v", err, ErrNotFound)
	}
}

func TestUploadDelete(t *testing.T) {
	_, remote := NewLocalParcelServer()
	conn := &Connection{HostURL: remote.URL}

	const content = "delete me"
	contentMD5 := md5.Sum([]byte(content))

	// uploads can name their own id
	upid, err := conn.Upload("qwerty-chosen", strings.NewReader(content), contentMD5[:])
	if err != nil {
		t.Fatalf("Received %s", err.Error())
	}
	if upid != "qwerty-chosen" {
		t.Errorf("Received %s, expected qwerty-chosen", upid)
	}
	err = conn.DeleteUpload(upid)
	if err != nil {
		t.Fatalf("Received %s", err.Error())
	}
	_, err = conn.UploadInfo(upid)
	if err != ErrNotFound {
		t.Errorf("Received %v, expected %v", err, ErrNotFound)
	}
}

func TestInjectedErrors(t *testing.T) {
	eserver, remote := NewLocalParcelServer()
	conn := &Connection{HostURL: remote.URL}

	// server errors surface as errors
	eserver.Reset([]Play{{When: 0, Status: 500, Body: "kaboom"}})
	_, err := conn.PackageInfo("zxcv")
	if err == nil {
		t.Errorf("Received nil, expected an error")
	}

	// an injected mismatch and a real one look the same to callers
	eserver.Reset([]Play{{When: 0, Status: 412}})
	_, err = conn.Upload("", strings.NewReader("qwe"), []byte{1, 2, 3})
	if err != ErrChecksumMismatch {
		t.Errorf("Received %v, expected %v", err, ErrChecksumMismatch)
	}
	_, err = conn.Upload("", strings.NewReader("qwe"), []byte{1, 2, 3})
	if err != ErrChecksumMismatch {
		t.Errorf("Received %v, expected %v", err, ErrChecksumMismatch)
	}

	_, err = conn.PackageInfo("zxcv-no-such-package")
	if err != ErrNotFound {
		t.Errorf("Received %v, expected %v", err, ErrNotFound)
	}
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
