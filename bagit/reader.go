package bagit

import (
	"archive/zip"
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ndlib/parcel/util"
)

// Reader provides read access to a bag serialized as a zip file.
type Reader struct {
	z       *zip.Reader
	dirname string // the directory the bag unserializes into, without trailing slash

	// manifest holds the expected checksums as read from the payload
	// and tag manifest files. It is loaded lazily; parse errors are kept
	// in manifestErr. Payload keys begin with "data/", tag files don't.
	manifest    map[string]*Checksum
	manifestErr error

	// tags from bagit.txt and bag-info.txt, loaded lazily
	tags map[string]string
}

var (
	// ErrNotFound means a stream inside the bag with the given name
	// could not be found.
	ErrNotFound = errors.New("stream not found")
)

// NewReader creates a bag reader which wraps r. It expects a zip
// datastream, and uses size to locate the zip manifest block, which is at
// the end.
//
// The checksums are not verified upon opening. Call Verify() to check all
// the checksums. Tags and manifests are loaded lazily.
//
// Closing a reader does not close the underlying ReaderAt.
func NewReader(r io.ReaderAt, size int64) (*Reader, error) {
	in, err := zip.NewReader(r, size)
	if err != nil {
		return nil, err
	}
	result := &Reader{z: in}
	if len(in.File) > 0 {
		paths := strings.SplitN(in.File[0].Name, "/", 2)
		if len(paths) == 2 {
			result.dirname = paths[0]
		}
	}
	return result, nil
}

// Files returns the names of the payload files in this bag, in sorted
// order. The "data/" prefix and the bag directory name are removed.
func (r *Reader) Files() []string {
	var result []string
	prefix := r.dirname + "/data/"
	for _, f := range r.z.File {
		if strings.HasPrefix(f.Name, prefix) {
			result = append(result, strings.TrimPrefix(f.Name, prefix))
		}
	}
	sort.Strings(result)
	return result
}

// Open returns a reader for the payload file having the given name.
// Inside the bag, the file is searched for from the path
// "<bag name>/data/<name>".
func (r *Reader) Open(name string) (io.ReadCloser, error) {
	return r.open("data/" + name)
}

// OpenTag returns a reader for the tag file having the given name at the
// top level of the bag, outside the payload directory.
func (r *Reader) OpenTag(name string) (io.ReadCloser, error) {
	return r.open(name)
}

// open will open any file, not necessarily one inside the data directory.
func (r *Reader) open(name string) (io.ReadCloser, error) {
	xname := r.dirname + "/" + name
	for _, f := range r.z.File {
		if f.Name == xname {
			return f.Open()
		}
	}
	return nil, ErrNotFound
}

// Tags returns the tags in this bag's control files. The keys are the tag
// names, and each value is the tag's content with continuation lines
// joined by a space.
func (r *Reader) Tags() map[string]string {
	if r.tags == nil {
		r.tags = make(map[string]string)
		r.loadtagfile("bagit.txt")
		r.loadtagfile("bag-info.txt")
	}
	return r.tags
}

func (r *Reader) loadtagfile(name string) {
	rc, err := r.open(name)
	if err != nil {
		return
	}
	defer rc.Close()
	var lastkey string
	scanner := bufio.NewScanner(rc)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		// a line beginning with white space continues the previous tag.
		// otherwise split on the first colon.
		if line[0] == ' ' || line[0] == '\t' {
			if lastkey != "" {
				r.tags[lastkey] += " " + strings.TrimSpace(line)
			}
			continue
		}
		idx := strings.Index(line, ":")
		if idx == -1 {
			// not a tag line. skip it, but keep the current tag so
			// any later continuation lines still have a home.
			continue
		}
		lastkey = strings.TrimSpace(line[:idx])
		r.tags[lastkey] = strings.TrimSpace(line[idx+1:])
	}
}

// Checksum returns the checksums the manifests list for the given payload
// file. It returns nil if the file appears in no manifest.
func (r *Reader) Checksum(name string) *Checksum {
	r.loadmanifests()
	return r.manifest["data/"+name]
}

// loadmanifests reads every payload and tag manifest in the bag. The first
// parse error is saved for Verify. It only does the work once.
func (r *Reader) loadmanifests() {
	if r.manifest != nil {
		return
	}
	r.manifest = make(map[string]*Checksum)
	for _, mname := range []string{"manifest-md5.txt", "manifest-sha256.txt",
		"tagmanifest-md5.txt", "tagmanifest-sha256.txt"} {
		err := r.readmanifest(mname)
		if err != nil && r.manifestErr == nil {
			r.manifestErr = err
		}
	}
}

// readmanifest parses a single manifest file. Each line has the form
// "<hash> <filename>", where the separator may be one or more spaces.
// A missing manifest file is not an error.
func (r *Reader) readmanifest(name string) error {
	rc, err := r.open(name)
	if err != nil {
		return nil
	}
	defer rc.Close()
	isSHA256 := strings.Contains(name, "sha256")
	scanner := bufio.NewScanner(rc)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		idx := strings.IndexAny(line, " \t")
		if idx == -1 {
			return fmt.Errorf("%s: malformed line %q", name, line)
		}
		h, err := hex.DecodeString(line[:idx])
		if err != nil {
			return fmt.Errorf("%s: bad hash for %q", name, line)
		}
		fname := strings.TrimLeft(line[idx:], " \t")
		if fname == "" {
			return fmt.Errorf("%s: malformed line %q", name, line)
		}
		ck := r.manifest[fname]
		if ck == nil {
			ck = new(Checksum)
			r.manifest[fname] = ck
		}
		if isSHA256 {
			ck.SHA256 = h
		} else {
			ck.MD5 = h
		}
	}
	return scanner.Err()
}

// Verify checksums every payload file and every tag file listed in the
// manifests, and returns an error describing each problem found. Every
// payload file must be listed in at least one payload manifest, and every
// file listed in a payload manifest must be present. Tag files listed in a
// tag manifest are checked only if they are present in the bag.
func (r *Reader) Verify() error {
	r.loadmanifests()
	if r.manifestErr != nil {
		return r.manifestErr
	}
	var problems []string

	// every payload file in the zip must appear in a manifest
	for _, f := range r.z.File {
		name := strings.TrimPrefix(f.Name, r.dirname+"/")
		if !strings.HasPrefix(name, "data/") {
			continue
		}
		if r.manifest[name] == nil {
			problems = append(problems, fmt.Sprintf("%s is not in any manifest", name))
		}
	}

	// check the hash of everything listed in a manifest
	fnames := make([]string, 0, len(r.manifest))
	for fname := range r.manifest {
		fnames = append(fnames, fname)
	}
	sort.Strings(fnames)
	for _, fname := range fnames {
		ck := r.manifest[fname]
		rc, err := r.open(fname)
		if err == ErrNotFound {
			// a missing tag file is tolerated. a missing payload
			// file is not.
			if strings.HasPrefix(fname, "data/") {
				problems = append(problems, fmt.Sprintf("%s is missing", fname))
			}
			continue
		} else if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %s", fname, err.Error()))
			continue
		}
		ok, err := util.VerifyStreamHash(rc, ck.MD5, ck.SHA256)
		rc.Close()
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %s", fname, err.Error()))
		} else if !ok {
			problems = append(problems, fmt.Sprintf("%s has a bad checksum", fname))
		}
	}

	if len(problems) > 0 {
		return errors.New("bag verification failed: " + strings.Join(problems, "; "))
	}
	return nil
}
