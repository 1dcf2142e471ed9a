package store

import (
	"io"
	"strings"
)

// NewWithPrefix namespaces the keys of a store. The returned store sees
// only the keys of s beginning with prefix, with the prefix removed, and
// puts the prefix back on every key it writes. Several prefixed stores
// can share one underlying store without touching each other's content.
func NewWithPrefix(s Store, prefix string) Store {
	return prefixed{inner: s, prefix: prefix}
}

type prefixed struct {
	inner  Store
	prefix string
}

func (ps prefixed) List() <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		for key := range ps.inner.List() {
			if short, ok := ps.strip(key); ok {
				out <- short
			}
		}
	}()
	return out
}

func (ps prefixed) ListPrefix(prefix string) ([]string, error) {
	keys, err := ps.inner.ListPrefix(ps.prefix + prefix)
	var result []string
	for _, key := range keys {
		if short, ok := ps.strip(key); ok {
			result = append(result, short)
		}
	}
	return result, err
}

// strip removes our prefix from key. Keys outside our namespace return
// false, although the underlying store should not be giving us any.
func (ps prefixed) strip(key string) (string, bool) {
	short := strings.TrimPrefix(key, ps.prefix)
	return short, len(short) != len(key) || ps.prefix == ""
}

func (ps prefixed) Open(key string) (ReadAtCloser, int64, error) {
	return ps.inner.Open(ps.prefix + key)
}

func (ps prefixed) Create(key string) (io.WriteCloser, error) {
	return ps.inner.Create(ps.prefix + key)
}

func (ps prefixed) Delete(key string) error {
	return ps.inner.Delete(ps.prefix + key)
}
