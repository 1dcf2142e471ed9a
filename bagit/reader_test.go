package bagit

import (
	"archive/zip"
	"bytes"
	"encoding/hex"
	"io"
	"reflect"
	"sort"
	"testing"
	"time"
)

// zdata maps file names to contents for building test bags by hand.
type zdata map[string]string

// newTestBag packs contents into an in-memory zip under a directory named
// "test" and opens a Reader over it.
func newTestBag(t *testing.T, contents zdata) *Reader {
	t.Helper()
	var buf bytes.Buffer
	z := zip.NewWriter(&buf)
	names := make([]string, 0, len(contents))
	for name := range contents {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		out, err := z.CreateHeader(&zip.FileHeader{
			Name:     "test/" + name,
			Method:   zip.Store,
			Modified: time.Now(),
		})
		if err != nil {
			t.Fatal(err)
		}
		io.WriteString(out, contents[name])
	}
	z.Close()
	r, err := NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestVerify(t *testing.T) {
	// the hex strings are the real md5 and sha256 hashes of "hello" and
	// of the manifest files exactly as given
	var table = []struct {
		name     string
		ok       bool
		contents zdata
	}{
		{"split-manifests", true, zdata{
			// payload files divided between the two manifests
			"data/hello1":         "hello",
			"data/hello2":         "hello",
			"manifest-md5.txt":    "5d41402abc4b2a76b9719d911017c592 data/hello1\n",
			"manifest-sha256.txt": "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824 data/hello2\n",
			"tagmanifest-md5.txt": "49ce66cef8d32ec33eca290c2c731185 manifest-md5.txt\nbd41f3fc8aa771760265275d3576a30a manifest-sha256.txt\n",
		}},
		{"unlisted-payload", false, zdata{
			// hello2 appears in no manifest
			"data/hello1":         "hello",
			"data/hello2":         "hello",
			"manifest-md5.txt":    "5d41402abc4b2a76b9719d911017c592 data/hello1\n",
			"tagmanifest-md5.txt": "49ce66cef8d32ec33eca290c2c731185 manifest-md5.txt\n",
		}},
		{"missing-payload", false, zdata{
			// hello2 is listed but absent from the bag
			"data/hello1":         "hello",
			"manifest-md5.txt":    "5d41402abc4b2a76b9719d911017c592 data/hello1\n",
			"manifest-sha256.txt": "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824 data/hello2\n",
			"tagmanifest-md5.txt": "49ce66cef8d32ec33eca290c2c731185 manifest-md5.txt\nbd41f3fc8aa771760265275d3576a30a manifest-sha256.txt\n",
		}},
		{"missing-tagfile-tolerated", true, zdata{
			// a listed tag file that is absent is not an error
			"data/hello1":         "hello",
			"data/hello2":         "hello",
			"manifest-md5.txt":    "5d41402abc4b2a76b9719d911017c592 data/hello1\n",
			"manifest-sha256.txt": "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824 data/hello2\n",
			"tagmanifest-md5.txt": "49ce66cef8d32ec33eca290c2c731185 manifest-md5.txt\nbd41f3fc8aa771760265275d3576a30a manifest-sha256.txt\nabcdef missing.txt\n",
		}},
		{"bad-payload-hash", false, zdata{
			"data/hello1":         "hello",
			"data/hello2":         "hello",
			"manifest-md5.txt":    "00000000000000000000000000000000 data/hello1\n",
			"manifest-sha256.txt": "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824 data/hello2\n",
			"tagmanifest-md5.txt": "d0d355c1ef01ef6a24b68112d62b1700 manifest-md5.txt\nbd41f3fc8aa771760265275d3576a30a manifest-sha256.txt\n",
		}},
		{"bad-tagfile-hash", false, zdata{
			"data/hello1":         "hello",
			"data/hello2":         "hello",
			"manifest-md5.txt":    "5d41402abc4b2a76b9719d911017c592 data/hello1\n",
			"manifest-sha256.txt": "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824 data/hello2\n",
			"tagmanifest-md5.txt": "00000000000000000000000000000000 manifest-md5.txt\nbd41f3fc8aa771760265275d3576a30a manifest-sha256.txt\n",
		}},
		{"unlisted-tagfile-tolerated", true, zdata{
			// tag files are not required to be in the tag manifest
			"data/hello1":         "hello",
			"data/hello2":         "hello",
			"tagfile.txt":         "extra tag file",
			"manifest-md5.txt":    "5d41402abc4b2a76b9719d911017c592 data/hello1\n",
			"manifest-sha256.txt": "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824 data/hello2\n",
			"tagmanifest-md5.txt": "49ce66cef8d32ec33eca290c2c731185 manifest-md5.txt\nbd41f3fc8aa771760265275d3576a30a manifest-sha256.txt\n",
		}},
		{"manifest-not-hex", false, zdata{
			"data/hello1":         "hello",
			"data/hello2":         "hello",
			"tagfile.txt":         "extra tag file",
			"manifest-md5.txt":    "thisisnothexdata0000000000000000 data/hello1\n",
			"manifest-sha256.txt": "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824 data/hello2\n",
			"tagmanifest-md5.txt": "f6c4e3fa0e551b551b1fc171f01c1bdf manifest-md5.txt\nbd41f3fc8aa771760265275d3576a30a manifest-sha256.txt\n",
		}},
		{"no-final-newline", true, zdata{
			"data/hello1":         "hello",
			"data/hello2":         "hello",
			"manifest-md5.txt":    "5d41402abc4b2a76b9719d911017c592 data/hello1",
			"manifest-sha256.txt": "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824 data/hello2\n",
			"tagmanifest-md5.txt": "2afc9fa64386fe74f0500bc6f83b9d9c manifest-md5.txt\nbd41f3fc8aa771760265275d3576a30a manifest-sha256.txt\n",
		}},
		{"hash-only-line", false, zdata{
			// a manifest line without a file name is malformed
			"data/hello1":         "hello",
			"data/hello2":         "hello",
			"manifest-md5.txt":    "5d41402abc4b2a76b9719d911017c592 data/hello1\n",
			"manifest-sha256.txt": "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824\n",
			"tagmanifest-md5.txt": "49ce66cef8d32ec33eca290c2c731185 manifest-md5.txt\n7f99901f307a7264f7be8560035dc166 manifest-sha256.txt\n",
		}},
	}

	for _, tab := range table {
		t.Run(tab.name, func(t *testing.T) {
			r := newTestBag(t, tab.contents)
			err := r.Verify()
			if tab.ok && err != nil {
				t.Error("Verify:", err)
			}
			if !tab.ok && err == nil {
				t.Error("Verify passed, expected a failure")
			}
		})
	}
}

func TestTagParsing(t *testing.T) {
	var table = []struct {
		name     string
		contents zdata
		tags     map[string]string
	}{
		{"continuation",
			zdata{
				"bag-info.txt": "a-tag: some text\nanother-tag: more text\n  extended line",
			},
			map[string]string{
				"a-tag":       "some text",
				"another-tag": "more text extended line",
			}},
		{"skipped-lines",
			zdata{
				"bag-info.txt": "first tag:important\nthis line is skipped\n\n this line continues the first\n",
			},
			map[string]string{
				"first tag": "important this line continues the first",
			}},
	}

	for _, tab := range table {
		t.Run(tab.name, func(t *testing.T) {
			r := newTestBag(t, tab.contents)
			if tags := r.Tags(); !reflect.DeepEqual(tags, tab.tags) {
				t.Errorf("Tags() = %#v, want %#v", tags, tab.tags)
			}
		})
	}
}

func TestChecksum(t *testing.T) {
	r := newTestBag(t, zdata{
		"data/hello1":         "hello",
		"data/hello2":         "hello",
		"manifest-md5.txt":    "5d41402abc4b2a76b9719d911017c592 data/hello1\n",
		"manifest-sha256.txt": "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824 data/hello2\n",
		"tagmanifest-md5.txt": "49ce66cef8d32ec33eca290c2c731185 manifest-md5.txt\nbd41f3fc8aa771760265275d3576a30a manifest-sha256.txt\n",
	})

	if r.Checksum("hello1") == nil {
		t.Error("no checksum for hello1")
	}
	ck := r.Checksum("hello2")
	if ck == nil {
		t.Fatal("no checksum for hello2")
	}
	want := "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if got := hex.EncodeToString(ck.SHA256); got != want {
		t.Errorf("hello2 SHA256 = %s, want %s", got, want)
	}
	if r.Checksum("hello3") != nil {
		t.Error("got a checksum for a file not in the bag")
	}
}

func TestFiles(t *testing.T) {
	r := newTestBag(t, zdata{
		"data/zebra":      "z",
		"data/apple":      "a",
		"data/sub/nested": "n",
		"bag-info.txt":    "Bag-Size: 3 Bytes\n",
	})

	want := []string{"apple", "sub/nested", "zebra"}
	if files := r.Files(); !reflect.DeepEqual(files, want) {
		t.Errorf("Files() = %v, want %v", files, want)
	}

	rc, err := r.Open("sub/nested")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(rc)
	rc.Close()
	if string(body) != "n" {
		t.Errorf("sub/nested = %q, want %q", body, "n")
	}

	_, err = r.Open("not-there")
	if err != ErrNotFound {
		t.Errorf("Open(not-there) = %v, want ErrNotFound", err)
	}
}
