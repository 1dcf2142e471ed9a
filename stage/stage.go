/*
Package stage manages the staging area used to upload member content to
the server. Each staged entry is a single content stream plus the system
metadata record for the member it will become. A package submission reads
its members out of the staging area; the entries are deleted afterward.

Uploads are single-shot: writing an entry's content replaces whatever was
there before, so a failed or mismatched upload can simply try again.
*/
package stage

import (
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/ndlib/parcel/pack"
	"github.com/ndlib/parcel/store"
	"github.com/ndlib/parcel/util"
)

// Store wraps a store.Store and provides the staging area. Entry records
// are kept in memory and mirrored into the store so they survive server
// restarts.
type Store struct {
	meta    store.JSONStore // for the entry records
	cstore  store.Store     // for the entry content
	m       sync.RWMutex    // protects entries
	entries map[string]*entry
}

const (
	// There are two kinds of information in the store: entry records and
	// entry content. They are distinguished by the prefix of their keys:
	// records start with "md" and content streams start with "c".
	recordKeyPrefix  = "md"
	contentKeyPrefix = "c"
)

// ErrNoContent means nothing has been uploaded into a staged entry yet.
var ErrNoContent = errors.New("no content staged")

// An Entry is one staged upload.
type Entry interface {
	// Create returns a writer replacing the entry's content. The bytes
	// are hashed on the way through; the size and checksums are
	// recorded when the writer is closed.
	Create() (io.WriteCloser, error)
	// Open returns a reader over the entry's content.
	Open() (io.ReadCloser, error)
	Stat() Stat
	// Rollback removes the entry's content, keeping the record, so a
	// failed upload can try again.
	Rollback() error
	SetCreator(name string)
	SetSysmeta(sm pack.SystemMetadata)
}

// Stat is the metadata kept on each staged entry.
type Stat struct {
	ID       string
	Size     int64
	MD5      []byte
	SHA256   []byte
	Stored   bool // true if content has been uploaded
	Created  time.Time
	Modified time.Time
	Creator  string
	Sysmeta  pack.SystemMetadata
}

// The internal struct tracking one staged entry.
type entry struct {
	parent   *Store
	m        sync.RWMutex // protects everything below
	ID       string       // name in the parent stores
	Size     int64
	MD5      []byte
	SHA256   []byte
	Stored   bool
	Created  time.Time
	Modified time.Time
	Creator  string // the user who created this entry
	Sysmeta  pack.SystemMetadata
}

// New creates a staging area wrapping a store.Store. Call Load() before
// using it.
func New(s store.Store) *Store {
	return &Store{
		meta:    store.NewJSON(store.NewWithPrefix(s, recordKeyPrefix)),
		cstore:  store.NewWithPrefix(s, contentKeyPrefix),
		entries: make(map[string]*entry),
	}
}

// Load initializes the in-memory records from the entries stored inside.
// Must be called before using this store.
func (s *Store) Load() error {
	records, err := s.meta.ListPrefix("")
	if err != nil {
		return err
	}
	s.m.Lock()
	defer s.m.Unlock()
	for _, key := range records {
		e := new(entry)
		err := s.meta.Open(key, e)
		if err != nil {
			// TODO: a corrupt record here fails the whole load;
			// consider skipping the entry instead
			return err
		}
		e.parent = s
		s.entries[e.ID] = e
	}
	return nil
}

// List returns the ids of all the staged entries.
func (s *Store) List() []string {
	s.m.RLock()
	defer s.m.RUnlock()
	result := make([]string, 0, len(s.entries))
	for k := range s.entries {
		result = append(result, k)
	}
	return result
}

// New creates a staged entry with the given id, and returns it. The entry
// is not persisted until its content or metadata is first written. If an
// entry with the id already exists, nil is returned.
func (s *Store) New(id string) Entry {
	s.m.Lock()
	defer s.m.Unlock()
	if _, ok := s.entries[id]; ok {
		return nil
	}
	e := &entry{
		ID:       id,
		parent:   s,
		Created:  time.Now(),
		Modified: time.Now(),
	}
	s.entries[id] = e
	return e
}

// Lookup returns the staged entry with the given id. Returns nil if none
// exists with that id.
func (s *Store) Lookup(id string) Entry {
	s.m.RLock()
	defer s.m.RUnlock()
	result, ok := s.entries[id]
	if !ok {
		// explicitly return nil otherwise we get a nil wrapped as
		// a valid interface...see https://golang.org/doc/faq#nil_error
		return nil
	}
	return result
}

// Delete removes a staged entry, record and content both. It is not an
// error to delete an entry that does not exist.
func (s *Store) Delete(id string) error {
	s.m.Lock()
	e := s.entries[id]
	delete(s.entries, id)
	s.m.Unlock()

	if e == nil {
		return nil
	}

	// don't need the lock for the following
	err := s.meta.Delete(e.ID)
	if e.Stored {
		er := s.cstore.Delete(e.ID)
		if err == nil {
			err = er
		}
	}
	return err
}

func (e *entry) Stat() Stat {
	e.m.RLock()
	defer e.m.RUnlock()
	return Stat{
		ID:       e.ID,
		Size:     e.Size,
		MD5:      e.MD5,
		SHA256:   e.SHA256,
		Stored:   e.Stored,
		Created:  e.Created,
		Modified: e.Modified,
		Creator:  e.Creator,
		Sysmeta:  e.Sysmeta,
	}
}

// Create opens the entry's content for writing, replacing any content
// already there.
func (e *entry) Create() (io.WriteCloser, error) {
	e.m.Lock()
	defer e.m.Unlock()
	if e.Stored {
		err := e.parent.cstore.Delete(e.ID)
		if err != nil {
			return nil, err
		}
		e.Stored = false
	}
	w, err := e.parent.cstore.Create(e.ID)
	if err != nil {
		return nil, err
	}
	return &entrywriter{
		w:      w,
		hw:     util.NewHashWriter(w),
		parent: e,
	}, nil
}

type entrywriter struct {
	w      io.WriteCloser // the underlying store stream
	hw     *util.HashWriter
	size   int64
	parent *entry
}

func (ew *entrywriter) Write(p []byte) (int, error) {
	n, err := ew.hw.Write(p)
	ew.size += int64(n)
	return n, err
}

func (ew *entrywriter) Close() error {
	err := ew.w.Close()
	if err != nil {
		return err
	}
	e := ew.parent
	e.m.Lock()
	defer e.m.Unlock()
	e.Size = ew.size
	e.MD5, _ = ew.hw.CheckMD5(nil)
	e.SHA256, _ = ew.hw.CheckSHA256(nil)
	e.Stored = true
	return e.save()
}

// Open the entry's content for reading from the beginning.
func (e *entry) Open() (io.ReadCloser, error) {
	e.m.RLock()
	defer e.m.RUnlock()
	if !e.Stored {
		return nil, errors.Wrap(ErrNoContent, e.ID)
	}
	rac, _, err := e.parent.cstore.Open(e.ID)
	if err != nil {
		return nil, err
	}
	return &entryreader{
		Reader: store.NewReader(rac),
		rac:    rac,
	}, nil
}

// entryreader adds the close of the underlying store stream to the
// sequential reader wrapped around it.
type entryreader struct {
	io.Reader
	rac store.ReadAtCloser
}

func (r *entryreader) Close() error {
	return r.rac.Close()
}

// Rollback removes the entry's content, so a failed upload can try again.
// The record, with its creator and system metadata, stays.
func (e *entry) Rollback() error {
	e.m.Lock()
	defer e.m.Unlock()
	if !e.Stored {
		return nil
	}
	err := e.parent.cstore.Delete(e.ID)
	if err != nil {
		return err
	}
	e.Stored = false
	e.Size = 0
	e.MD5 = nil
	e.SHA256 = nil
	return e.save()
}

// Save the record for this entry.
// Must hold a write lock on e to call this.
func (e *entry) save() error {
	e.Modified = time.Now()
	return e.parent.meta.Save(e.ID, e)
}

func (e *entry) SetCreator(name string) {
	e.m.Lock()
	defer e.m.Unlock()
	e.Creator = name
	e.save()
}

// SetSysmeta replaces the system metadata record carried by this entry.
func (e *entry) SetSysmeta(sm pack.SystemMetadata) {
	e.m.Lock()
	defer e.m.Unlock()
	e.Sysmeta = sm
	e.save()
}
