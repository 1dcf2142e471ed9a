package pack

import (
	"bytes"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/ndlib/parcel/util"
)

// Checksum algorithm names as they appear in system metadata records.
const (
	MD5Algorithm    = "MD5"
	SHA256Algorithm = "SHA-256"
)

// Error values returned by object constructors and accessors.
var (
	ErrNoIdentifier = errors.New("object has no identifier")
	ErrNoContent    = errors.New("object has no content")
)

// A DataObject is one member of a package: a system metadata record plus
// the object's bytes, held either in memory or in a file. The raw MD5 and
// SHA256 hashes are kept alongside the hex checksum in the record so
// callers don't keep re-decoding it.
type DataObject struct {
	SystemMetadata
	MD5    []byte
	SHA256 []byte

	data   []byte // in-memory content; nil when file backed or absent
	path   string // file backing the content; empty when in memory
	opener func() (io.ReadCloser, error)
}

// NewObject creates an in-memory data object, computing its size and
// checksums from data. The system metadata checksum is the MD5 hash.
func NewObject(id, formatID string, data []byte) (*DataObject, error) {
	if id == "" {
		return nil, ErrNoIdentifier
	}
	hw := util.NewHashWriterPlain()
	hw.Write(data)
	md5hash, _ := hw.CheckMD5(nil)
	sha256hash, _ := hw.CheckSHA256(nil)
	return &DataObject{
		SystemMetadata: SystemMetadata{
			Identifier:        id,
			FormatID:          formatID,
			Size:              int64(len(data)),
			Checksum:          hex.EncodeToString(md5hash),
			ChecksumAlgorithm: MD5Algorithm,
			DateUploaded:      time.Now(),
		},
		MD5:    md5hash,
		SHA256: sha256hash,
		data:   data,
	}, nil
}

// NewObjectFromFile creates a file-backed data object. The file is read
// once to compute the size and checksums, and is opened again on each
// Open() call, so it must remain in place for the life of the object.
func NewObjectFromFile(id, formatID, path string) (*DataObject, error) {
	if id == "" {
		return nil, ErrNoIdentifier
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	hw := util.NewHashWriterPlain()
	size, err := io.Copy(hw, f)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	md5hash, _ := hw.CheckMD5(nil)
	sha256hash, _ := hw.CheckSHA256(nil)
	return &DataObject{
		SystemMetadata: SystemMetadata{
			Identifier:        id,
			FormatID:          formatID,
			Size:              size,
			Checksum:          hex.EncodeToString(md5hash),
			ChecksumAlgorithm: MD5Algorithm,
			FileName:          filepath.Base(path),
			DateUploaded:      time.Now(),
		},
		MD5:    md5hash,
		SHA256: sha256hash,
		path:   path,
	}, nil
}

// NewObjectFromSysmeta wraps an already-built system metadata record around
// content. The record is taken as authoritative: nothing is recomputed,
// and the raw hash matching the record's algorithm is decoded from its
// checksum. blob may be nil for a record-only member.
func NewObjectFromSysmeta(sm SystemMetadata, blob []byte) (*DataObject, error) {
	if sm.Identifier == "" {
		return nil, ErrNoIdentifier
	}
	obj := &DataObject{
		SystemMetadata: sm,
		data:           blob,
	}
	h, err := hex.DecodeString(sm.Checksum)
	if err == nil {
		switch sm.ChecksumAlgorithm {
		case MD5Algorithm:
			obj.MD5 = h
		case SHA256Algorithm:
			obj.SHA256 = h
		}
	}
	return obj, nil
}

// SetContentSource attaches a content source to a record-only object, for
// content held elsewhere (a staging area, an object store). The open
// function is called once for each Open of the object and must return a
// fresh reader positioned at the start.
func (obj *DataObject) SetContentSource(open func() (io.ReadCloser, error)) {
	obj.opener = open
}

// HasContent reports whether Open can produce the object's bytes.
func (obj *DataObject) HasContent() bool {
	return obj.opener != nil || obj.path != "" || obj.data != nil
}

// Open returns a fresh reader over the object's content. Each call gives
// an independent reader positioned at the start.
func (obj *DataObject) Open() (io.ReadCloser, error) {
	if obj.opener != nil {
		return obj.opener()
	}
	if obj.path != "" {
		return os.Open(obj.path)
	}
	if obj.data == nil {
		return nil, errors.Wrap(ErrNoContent, obj.Identifier)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}
