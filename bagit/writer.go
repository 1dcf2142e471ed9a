package bagit

import (
	"archive/zip"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/ndlib/parcel/util"
)

// Writer assembles a bag in zip form. Payload and tag files are added one
// at a time, and the control files and manifests are emitted when the
// writer is closed.
type Writer struct {
	z        *zip.Writer
	dirname  string               // directory the bag unpacks into, with trailing slash
	sums     map[string]*Checksum // one entry for every file written
	tags     map[string]string    // contents of bag-info.txt
	cur      *Checksum            // entry for the file currently open
	hw       *util.HashWriter     // hashes the file currently open
	npayload int                  // payload file count, for Payload-Oxum
	nbytes   int64                // payload byte count, for Payload-Oxum and Bag-Size
}

// NewWriter returns a bag writer that serializes the bag to w as a zip
// stream. The bag unpacks into a directory called name, per the BagIt
// specification.
func NewWriter(w io.Writer, name string) *Writer {
	return &Writer{
		z:       zip.NewWriter(w),
		dirname: name + "/",
		sums:    make(map[string]*Checksum),
		tags:    make(map[string]string),
	}
}

// Close emits the bag's control files and manifests and finishes the zip
// stream. It does not close the io.Writer given to NewWriter. A write
// error on an earlier file resurfaces here, since the zip writer latches
// errors.
func (w *Writer) Close() error {
	w.tags["Payload-Oxum"] = fmt.Sprintf("%d.%d", w.nbytes, w.npayload)
	w.tags["Bagging-Date"] = time.Now().Format("2006-01-02")
	w.tags["Bag-Size"] = humansize(w.nbytes)

	err := w.writeTagFiles()
	if err == nil {
		err = w.writeManifest("manifest-md5.txt", true, func(c *Checksum) []byte { return c.MD5 })
	}
	if err == nil {
		err = w.writeManifest("manifest-sha256.txt", true, func(c *Checksum) []byte { return c.SHA256 })
	}
	if err == nil {
		// written last so it also covers the payload manifests
		err = w.writeManifest("tagmanifest-md5.txt", false, func(c *Checksum) []byte { return c.MD5 })
	}
	if err != nil {
		return err
	}
	return w.z.Close()
}

// SetTag records a tag to be written to bag-info.txt. The writer supplies
// "Payload-Oxum", "Bagging-Date", and "Bag-Size" itself. Other useful tags
// are listed in the BagIt specification.
func (w *Writer) SetTag(tag, content string) {
	w.tags[tag] = content
}

// Create adds a payload file to the bag, inside the "data/" directory. The
// returned writer is valid until the next call to Create, CreateTag, or
// Close.
func (w *Writer) Create(name string) (io.Writer, error) {
	out, err := w.newEntry("data/" + name)
	w.npayload++
	return &payloadWriter{w: out, total: &w.nbytes}, err
}

// CreateTag adds a tag file at the top level of the bag, outside the
// payload directory. Its checksum is recorded in the tag manifest. The
// returned writer is valid until the next call to Create, CreateTag, or
// Close.
func (w *Writer) CreateTag(name string) (io.Writer, error) {
	return w.newEntry(name)
}

// newEntry opens the named file in the zip stream and starts hashing it.
// The hashes of the previous entry, if one is open, are recorded first.
func (w *Writer) newEntry(name string) (io.Writer, error) {
	w.Checksum()
	ck := new(Checksum)
	w.sums[name] = ck
	w.cur = ck
	out, err := w.z.CreateHeader(&zip.FileHeader{
		Name:     w.dirname + name,
		Method:   zip.Store,
		Modified: time.Now(),
	})
	w.hw = util.NewHashWriter(out)
	return w.hw, err
}

// Checksum returns the checksums of what has been written so far to the
// writer most recently returned by Create or CreateTag.
func (w *Writer) Checksum() *Checksum {
	if w.hw != nil && w.cur != nil {
		w.cur.MD5, _ = w.hw.CheckMD5(nil)
		w.cur.SHA256, _ = w.hw.CheckSHA256(nil)
	}
	return w.cur
}

// writeTagFiles emits the bagit.txt version marker and the bag-info.txt
// tag file. Tags are sorted so identical inputs give identical bags.
func (w *Writer) writeTagFiles() error {
	out, err := w.newEntry("bagit.txt")
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "BagIt-Version: %s\nTag-File-Character-Encoding: UTF-8\n", Version)

	out, err = w.newEntry("bag-info.txt")
	if err != nil {
		return err
	}
	names := make([]string, 0, len(w.tags))
	for name := range w.tags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "%s: %s\n", name, w.tags[name])
	}
	return nil
}

// writeManifest emits one manifest file. With payload set it lists the
// files under "data/", otherwise the tag files. Files without a hash of
// the wanted kind are left out, and no manifest is written when nothing
// qualifies.
func (w *Writer) writeManifest(mname string, payload bool, hash func(*Checksum) []byte) error {
	w.Checksum()
	var names []string
	for name := range w.sums {
		if strings.HasPrefix(name, "data/") != payload {
			continue
		}
		if len(hash(w.sums[name])) > 0 {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	sort.Strings(names)
	out, err := w.newEntry(mname)
	if err != nil {
		return err
	}
	for _, name := range names {
		// two spaces between hash and name, matching md5sum output
		fmt.Fprintf(out, "%s  %s\n", hex.EncodeToString(hash(w.sums[name])), name)
	}
	return nil
}

// payloadWriter tracks how many bytes pass through it, for Payload-Oxum.
type payloadWriter struct {
	w     io.Writer
	total *int64
}

func (pw *payloadWriter) Write(p []byte) (int, error) {
	n, err := pw.w.Write(p)
	*pw.total += int64(n)
	return n, err
}

// humansize renders size using the largest decimal unit that keeps the
// quantity at one or above, truncating any fraction.
func humansize(size int64) string {
	units := []string{"Bytes", "KB", "MB", "GB", "TB"}
	var i int
	for size >= 1000 && i < len(units)-1 {
		size /= 1000
		i++
	}
	return fmt.Sprintf("%d %s", size, units[i])
}
