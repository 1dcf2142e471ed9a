package store

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Memory keeps everything in process memory. It is intended mainly for
// testing. Content appears in the store when the writer filling it is
// closed, and a reader keeps the content it was opened on even if the key
// is deleted or replaced underneath it.
type Memory struct {
	m    sync.RWMutex
	blob map[string][]byte
}

var (
	// ensure Memory satisfies the Store interface
	_ Store = &Memory{}
)

// NewMemory returns a new, empty memory store.
func NewMemory() *Memory {
	return &Memory{blob: make(map[string][]byte)}
}

// List returns a channel giving the key of every item in the store. The
// keys are a snapshot taken when List is called.
func (ms *Memory) List() <-chan string {
	ms.m.RLock()
	keys := make([]string, 0, len(ms.blob))
	for k := range ms.blob {
		keys = append(keys, k)
	}
	ms.m.RUnlock()
	c := make(chan string)
	go func() {
		for _, k := range keys {
			c <- k
		}
		close(c)
	}()
	return c
}

// ListPrefix returns every key beginning with the given prefix.
func (ms *Memory) ListPrefix(prefix string) ([]string, error) {
	var result []string
	ms.m.RLock()
	for k := range ms.blob {
		if strings.HasPrefix(k, prefix) {
			result = append(result, k)
		}
	}
	ms.m.RUnlock()
	return result, nil
}

// Open returns a reader over the content stored under key, and its size.
func (ms *Memory) Open(key string) (ReadAtCloser, int64, error) {
	ms.m.RLock()
	b, ok := ms.blob[key]
	ms.m.RUnlock()
	if !ok {
		return nil, 0, fmt.Errorf("no item %s", key)
	}
	return memreader{bytes.NewReader(b)}, int64(len(b)), nil
}

// Create makes a new entry under key and returns a writer to fill it. The
// entry is saved when the writer is closed, replacing whatever was stored
// under the key before.
func (ms *Memory) Create(key string) (io.WriteCloser, error) {
	return &memwriter{ms: ms, key: key}, nil
}

// Delete removes the given key from the store. It is not an error if the
// item does not exist in the store.
func (ms *Memory) Delete(key string) error {
	ms.m.Lock()
	delete(ms.blob, key)
	ms.m.Unlock()
	return nil
}

type memreader struct {
	*bytes.Reader
}

func (memreader) Close() error { return nil }

type memwriter struct {
	ms  *Memory
	key string
	buf []byte
}

func (w *memwriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (w *memwriter) Close() error {
	w.ms.m.Lock()
	w.ms.blob[w.key] = w.buf
	w.ms.m.Unlock()
	return nil
}
