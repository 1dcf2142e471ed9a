package mapcache

import (
	"io"

	"github.com/ndlib/parcel/store"
)

// EmptyCache is a Cache that holds nothing. Every Get is a miss, and
// items Put into it are discarded. Use it to disable caching.
type EmptyCache struct{}

// Contains always returns false.
func (EmptyCache) Contains(key string) bool { return false }

// Get always misses.
func (EmptyCache) Get(key string) (store.ReadAtCloser, int64, error) {
	return nil, 0, nil
}

// Put returns a writer which throws away everything written to it.
func (EmptyCache) Put(key string) (io.WriteCloser, error) {
	return nopCloser{io.Discard}, nil
}

// Delete does nothing.
func (EmptyCache) Delete(key string) error { return nil }

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
