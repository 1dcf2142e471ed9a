package mapcache

import (
	"io"
)

// saver is the interface writers use to talk to their parent cache.
type saver interface {
	// save records the new item as completely written.
	save(w *writer)
	// reserve asks for space. It may return ErrCacheFull.
	reserve(size int64) error
	// discard releases reservations and removes the partial item.
	discard(w *writer)
}

// writer copies an item into the cache, reserving space as content is
// written so the cache never holds more than its bound.
type writer struct {
	parent saver
	key    string
	w      io.WriteCloser
	size   int64
	// set when the item cannot fit; Close removes it instead of saving
	deleteOnClose bool
}

func (w *writer) Write(p []byte) (int, error) {
	if w.deleteOnClose {
		return 0, ErrCacheFull
	}
	// reserve space before writing it
	err := w.parent.reserve(int64(len(p)))
	if err != nil {
		w.deleteOnClose = true
		return 0, err
	}
	n, err := w.w.Write(p)
	w.size += int64(n)
	if n != len(p) {
		// return the space we reserved but did not fill
		w.parent.reserve(int64(n - len(p)))
	}
	return n, err
}

func (w *writer) Close() error {
	err := w.w.Close()
	if w.deleteOnClose || err != nil {
		w.parent.discard(w)
		return err
	}
	w.parent.save(w)
	return nil
}
