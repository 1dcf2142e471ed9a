// Package store provides a simple, goroutine safe key-value interface.
// Instead of values being an opaque array of bytes, though, they are a
// stream. This approach lets large items, such as archive bags, be stored
// and read back without staging them in memory.
//
// The FileSystem store is the usual choice for production. Memory is for
// testing, and S3 keeps content in an (s3 compatible) object store.
package store

import (
	"io"
)

// ReadAtCloser combines the io.ReaderAt and io.Closer interfaces.
type ReadAtCloser interface {
	io.ReaderAt
	io.Closer
}

// A Store is a stream based key-value store. Items are immutable once
// written, although an item may be deleted and a new value stored under
// the same key.
//
// The FileSystem store uses keys as file names, so keys should avoid
// characters forbidden in file names, such as '/'.
//
// Open() returns a ReadAtCloser instead of a ReadCloser so a stored zip
// file can be handed directly to a zip reader.
type Store interface {
	ROStore
	Create(key string) (io.WriteCloser, error)
	Delete(key string) error
}

// ROStore is the read-only half of a Store: listing keys and reading
// items back.
type ROStore interface {
	List() <-chan string
	ListPrefix(prefix string) ([]string, error)
	Open(key string) (ReadAtCloser, int64, error)
}

// NewReader adapts a ReaderAt into an io.Reader, for working with the
// ReadAtCloser that Open returns.
func NewReader(r io.ReaderAt) io.Reader {
	return &reader{r: r}
}

type reader struct {
	r   io.ReaderAt
	off int64
}

func (r *reader) Read(p []byte) (int, error) {
	n, err := r.r.ReadAt(p, r.off)
	r.off += int64(n)
	if n > 0 && err == io.EOF {
		// a short read is fine for an io.Reader; the EOF will come
		// back around on the next call
		err = nil
	}
	return n, err
}
