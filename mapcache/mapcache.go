// Package mapcache caches rendered resource maps. It is backed by a store,
// so it can be entirely in memory or disk-backed. Cache keys name one
// rendering: a package identifier plus the serialization syntax.
//
// While the cached renderings are kept in the store, the list recording
// usage information is kept only in memory. On startup Scan() enumerates
// the store and populates the list in an undetermined order.
//
// The cache uses an LRU item replacement policy.
package mapcache

import (
	"container/list"
	"io"
	"net/url"
	"sync"

	"github.com/pkg/errors"

	"github.com/ndlib/parcel/store"
)

// A Cache holds rendered resource maps keyed by package id and syntax.
// Misses are not errors: Get returns a nil ReadAtCloser for a missing
// item. Use Key to build keys.
type Cache interface {
	// Contains returns true if the given item is in the cache. It does
	// not update the LRU status, and does not guarantee the item will
	// still be present when Get is called.
	Contains(key string) bool
	// Get returns a reader for the given item, updating the LRU
	// status. A nil ReadAtCloser (and nil error) means a miss.
	Get(key string) (store.ReadAtCloser, int64, error)
	// Put returns a writer which saves what is written to it under the
	// given key. The item is not added to the cache until the writer
	// is closed.
	Put(key string) (io.WriteCloser, error)
	// Delete removes an item. Removing a missing item is not an error.
	Delete(key string) error
}

// Key builds the cache key for one rendering of a package's resource map.
// The package id is escaped so keys stay safe as store file names.
func Key(packageID, syntax string) string {
	return url.PathEscape(packageID) + "|" + syntax
}

// ErrCacheFull means an item cannot fit in the cache even after evicting
// everything else.
var ErrCacheFull = errors.New("cache is full and no more items can be removed")

var (
	// ensure the implementations satisfy the Cache interface
	_ Cache = (*LRU)(nil)
	_ Cache = EmptyCache{}
)

// LRU is a Cache with a least-recently-used replacement policy and a
// maximum total byte size.
type LRU struct {
	// this is the place where cached items are stored
	s store.Store

	m sync.RWMutex // protects everything below

	// total size of the items in the cache
	size int64

	maxSize int64 // the maximum amount of space we may use

	// front of list is MRU, tail is LRU
	lru *list.List
}

type centry struct {
	key  string
	size int64
}

// NewLRU creates and initializes a new cache structure backed by s. The
// store may already have items in it; call Scan() either inline or in a
// goroutine to add them to the LRU list.
func NewLRU(s store.Store, maxSize int64) *LRU {
	return &LRU{s: s, maxSize: maxSize, lru: list.New()}
}

// Scan enumerates the items in the backing store and adds them to the LRU
// list. Items too big for the cache are deleted. Blocks until finished.
func (t *LRU) Scan() {
	for key := range t.s.List() {
		if t.Contains(key) {
			continue
		}
		rc, size, err := t.s.Open(key)
		if err != nil {
			continue
		}
		rc.Close()
		err = t.reserve(size)
		if err != nil {
			// this item is too big for the cache
			t.s.Delete(key)
			continue
		}
		t.linkEntry(centry{key: key, size: size})
	}
}

// Contains returns true if the given item is in the cache.
func (t *LRU) Contains(key string) bool {
	return t.find(key) != nil
}

// Get returns a reader for the given item and updates the LRU list. A nil
// ReadAtCloser means the item is not in the cache.
func (t *LRU) Get(key string) (store.ReadAtCloser, int64, error) {
	e := t.find(key)
	if e == nil {
		return nil, 0, nil
	}
	t.m.Lock()
	t.lru.MoveToFront(e)
	t.m.Unlock()
	return t.s.Open(key)
}

// Put returns a WriteCloser which saves writes to it in the cache under
// the given key. Items are evicted as content is written, so the cache
// never holds more than maxSize. The item is not added to the LRU list
// until the writer is closed; an item too large for the cache is dropped
// at close instead.
//
// Only one writer to a given key can be active at a time, and a key
// already in the cache cannot be Put again until it is evicted or deleted.
func (t *LRU) Put(key string) (io.WriteCloser, error) {
	w, err := t.s.Create(key)
	if err != nil {
		return nil, err
	}
	return &writer{parent: t, key: key, w: w}, nil
}

// Delete removes an item from the cache. Removing a missing item is not
// an error.
func (t *LRU) Delete(key string) error {
	e := t.find(key)
	if e == nil {
		return nil
	}
	t.m.Lock()
	entry := t.lru.Remove(e).(centry)
	t.size -= entry.size
	t.m.Unlock()
	return t.s.Delete(entry.key)
}

// MaxSize returns the cache's size bound in bytes.
func (t *LRU) MaxSize() int64 {
	return t.maxSize
}

func (t *LRU) find(key string) *list.Element {
	t.m.RLock()
	defer t.m.RUnlock()
	for e := t.lru.Front(); e != nil; e = e.Next() {
		if e.Value.(centry).key == key {
			return e
		}
	}
	return nil
}

// linkEntry adds the given entry into our LRU list.
func (t *LRU) linkEntry(entry centry) {
	t.m.Lock()
	defer t.m.Unlock()
	t.lru.PushFront(entry)
}

// save is called by a writer when a new item has been completely copied
// into the backing store.
func (t *LRU) save(w *writer) {
	t.linkEntry(centry{key: w.key, size: w.size})
}

// discard is called by a writer when a new item failed on the way in. The
// reservation is returned and the partial item removed.
func (t *LRU) discard(w *writer) {
	t.reserve(-w.size)
	t.s.Delete(w.key)
}

// reserve space for the passed in size, evicting items if necessary to
// stay under maxSize. Size can be negative to cancel a previous
// reservation. Nothing is reserved if there is an error.
func (t *LRU) reserve(size int64) error {
	t.m.Lock()
	defer t.m.Unlock()

	t.size += size
	for t.size > t.maxSize {
		// LRU eviction
		e := t.lru.Back()
		if e == nil {
			t.size -= size
			return ErrCacheFull
		}
		entry := t.lru.Remove(e).(centry)
		err := t.s.Delete(entry.key)
		if err != nil {
			t.size -= size
			return err
		}
		t.size -= entry.size
	}
	return nil
}
