package pack

import (
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const (
	fixtureContent = "temperature,salinity\n21.5,34.1\n"
	fixtureMD5     = "20078f2fa3260c93d7be1c6d3b489679"
	fixtureSHA256  = "eae85ffbe58bb3186dbdb47d995402587bfe0e4649f4f1b21304a4a9f7a8a71d"
)

func TestNewObject(t *testing.T) {
	obj, err := NewObject("readings.1.1", "text/csv", []byte(fixtureContent))
	if err != nil {
		t.Fatal(err)
	}
	if obj.Identifier != "readings.1.1" {
		t.Errorf("Received %s, expected %s", obj.Identifier, "readings.1.1")
	}
	if obj.Size != int64(len(fixtureContent)) {
		t.Errorf("Received %d, expected %d", obj.Size, len(fixtureContent))
	}
	if obj.Checksum != fixtureMD5 {
		t.Errorf("Received %s, expected %s", obj.Checksum, fixtureMD5)
	}
	if obj.ChecksumAlgorithm != MD5Algorithm {
		t.Errorf("Received %s, expected %s", obj.ChecksumAlgorithm, MD5Algorithm)
	}
	if hex.EncodeToString(obj.SHA256) != fixtureSHA256 {
		t.Errorf("Received %s, expected %s", hex.EncodeToString(obj.SHA256), fixtureSHA256)
	}
	if obj.DateUploaded.IsZero() {
		t.Errorf("DateUploaded is zero")
	}

	// each Open gives a fresh reader
	for i := 0; i < 2; i++ {
		in, err := obj.Open()
		if err != nil {
			t.Fatal(err)
		}
		body, _ := io.ReadAll(in)
		in.Close()
		if string(body) != fixtureContent {
			t.Errorf("Received %s, expected %s", string(body), fixtureContent)
		}
	}
}

func TestNewObjectNoID(t *testing.T) {
	_, err := NewObject("", "text/csv", []byte("x"))
	if err != ErrNoIdentifier {
		t.Errorf("Received %v, expected %v", err, ErrNoIdentifier)
	}
}

func TestNewObjectFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "readings.csv")
	err := os.WriteFile(path, []byte(fixtureContent), 0644)
	if err != nil {
		t.Fatal(err)
	}

	obj, err := NewObjectFromFile("readings.1.1", "text/csv", path)
	if err != nil {
		t.Fatal(err)
	}
	if obj.FileName != "readings.csv" {
		t.Errorf("Received %s, expected %s", obj.FileName, "readings.csv")
	}
	if obj.Size != int64(len(fixtureContent)) {
		t.Errorf("Received %d, expected %d", obj.Size, len(fixtureContent))
	}
	if obj.Checksum != fixtureMD5 {
		t.Errorf("Received %s, expected %s", obj.Checksum, fixtureMD5)
	}

	in, err := obj.Open()
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(in)
	in.Close()
	if string(body) != fixtureContent {
		t.Errorf("Received %s, expected %s", string(body), fixtureContent)
	}
}

func TestNewObjectFromSysmeta(t *testing.T) {
	sm := SystemMetadata{
		Identifier:        "readings.1.1",
		FormatID:          "text/csv",
		Size:              int64(len(fixtureContent)),
		Checksum:          fixtureMD5,
		ChecksumAlgorithm: MD5Algorithm,
	}
	obj, err := NewObjectFromSysmeta(sm, []byte(fixtureContent))
	if err != nil {
		t.Fatal(err)
	}
	if hex.EncodeToString(obj.MD5) != fixtureMD5 {
		t.Errorf("Received %s, expected %s", hex.EncodeToString(obj.MD5), fixtureMD5)
	}
	if !obj.HasContent() {
		t.Errorf("HasContent is false, expected true")
	}

	// a record-only member has no content to open
	bare, err := NewObjectFromSysmeta(sm, nil)
	if err != nil {
		t.Fatal(err)
	}
	if bare.HasContent() {
		t.Errorf("HasContent is true, expected false")
	}
	_, err = bare.Open()
	if !errors.Is(err, ErrNoContent) {
		t.Errorf("Received %v, expected %v", err, ErrNoContent)
	}
}

func TestSetContentSource(t *testing.T) {
	sm := SystemMetadata{Identifier: "readings.1.1"}
	obj, err := NewObjectFromSysmeta(sm, nil)
	if err != nil {
		t.Fatal(err)
	}

	var opens int
	obj.SetContentSource(func() (io.ReadCloser, error) {
		opens++
		return io.NopCloser(strings.NewReader(fixtureContent)), nil
	})
	if !obj.HasContent() {
		t.Errorf("HasContent is false, expected true")
	}

	for i := 0; i < 2; i++ {
		in, err := obj.Open()
		if err != nil {
			t.Fatal(err)
		}
		body, _ := io.ReadAll(in)
		in.Close()
		if string(body) != fixtureContent {
			t.Errorf("Received %s, expected %s", string(body), fixtureContent)
		}
	}
	if opens != 2 {
		t.Errorf("Received %d opens, expected %d", opens, 2)
	}
}
