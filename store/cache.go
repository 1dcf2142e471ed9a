package store

// The S3 store would otherwise pay a HEAD request on every Open to learn
// the object's size. This file remembers the sizes it has already seen.

import (
	"sync"
	"time"
)

// A sizecache maps keys to object sizes. A positive size is believed for
// hitTTL, a deleted marker for missTTL, and a size of 0 means we don't
// know, which is never believed. Stale entries are swept out during use.
type sizecache struct {
	m     sync.Mutex
	sizes map[string]sizeEntry
	sweep time.Time // when the next full expiry pass is due
}

type sizeEntry struct {
	size    int64
	expires time.Time
}

const (
	// sizeDeleted marks a key known to not exist. (Any negative size works.)
	sizeDeleted int64 = -1

	missTTL = 3 * time.Hour
	hitTTL  = 240 * time.Hour // 10 days
)

func newSizeCache() *sizecache {
	return &sizecache{
		sizes: make(map[string]sizeEntry),
	}
}

// Get returns the size cached for key. On a cache miss fill is called to
// learn the size, and its answer is cached. Keys marked deleted return
// ErrNotExist.
func (s *sizecache) Get(key string, fill func(key string) (int64, error)) (int64, error) {
	s.m.Lock()
	defer s.m.Unlock()
	s.expire()
	e, ok := s.sizes[key]
	if ok && time.Now().Before(e.expires) {
		if e.size < 0 {
			return 0, ErrNotExist
		}
		if e.size > 0 {
			return e.size, nil
		}
		// size 0 means unknown, fall through and ask
	}
	if fill == nil {
		return 0, nil
	}
	// The lock is held across the fill so a concurrent delete cannot
	// slip in between the answer and the update.
	size, err := fill(key)
	s.put(key, size)
	return size, err
}

// Set caches a size for the given key. Use sizeDeleted to mark the key as
// not existing.
func (s *sizecache) Set(key string, size int64) {
	s.m.Lock()
	s.put(key, size)
	s.m.Unlock()
}

// put stores one entry. The caller must hold s.m.
func (s *sizecache) put(key string, size int64) {
	ttl := hitTTL
	switch {
	case size < 0:
		ttl = missTTL
	case size == 0:
		ttl = 0 // immediately stale
	}
	s.sizes[key] = sizeEntry{size: size, expires: time.Now().Add(ttl)}
}

// expire removes entries past their lifetime. A full pass runs at most
// once an hour. The caller must hold s.m.
func (s *sizecache) expire() {
	now := time.Now()
	if now.Before(s.sweep) {
		return
	}
	s.sweep = now.Add(time.Hour)
	for k, e := range s.sizes {
		if now.After(e.expires) {
			delete(s.sizes, k)
		}
	}
}
