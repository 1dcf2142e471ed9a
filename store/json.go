package store

import (
	"encoding/json"
	"log"
)

// A JSONStore layers JSON serialization over a Store. Items are read and
// written as values rather than streams, so a JSONStore does not itself
// satisfy the Store interface. Nothing is cached; every Open decodes the
// stored bytes again.
type JSONStore struct {
	Store
}

// NewJSON wraps s, keeping items as JSON.
func NewJSON(s Store) JSONStore {
	return JSONStore{s}
}

// Open decodes the item under key into value.
func (js JSONStore) Open(key string, value interface{}) error {
	r, _, err := js.Store.Open(key)
	if err != nil {
		return err
	}
	return mergeclose(key, json.NewDecoder(NewReader(r)).Decode(value), r.Close())
}

// Save serializes value under key, deleting any previous item first.
func (js JSONStore) Save(key string, value interface{}) error {
	if err := js.Delete(key); err != nil {
		return err
	}
	w, err := js.Store.Create(key)
	if err != nil {
		return err
	}
	return mergeclose(key, json.NewEncoder(w).Encode(value), w.Close())
}

// mergeclose merges a codec error with the close error following it. The
// close error only matters when the codec succeeded; otherwise it is
// logged and the codec error wins.
func mergeclose(key string, err, cerr error) error {
	switch {
	case err == nil:
		return cerr
	case cerr != nil:
		log.Println(key, cerr)
	}
	return err
}
