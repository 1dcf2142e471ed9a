// Package storetest contains helpers shared by the tests of Store
// implementations.
package storetest

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"io"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/ndlib/parcel/store"
)

// Stress exercises a store with concurrent writers and readers, and is
// intended to be run under the race detector. Blobs of random content are
// uploaded until roughly totalsize bytes have been written. Every blob is
// read back and verified at least once, by a different goroutine than the
// one that wrote it, and is deleted after its last read. List and
// ListPrefix are not exercised.
func Stress(t *testing.T, s store.Store, totalsize int64) {
	if totalsize == 0 {
		totalsize = 1 << 30
	}
	const (
		nwriters = 4
		nreaders = 8
	)
	sizes := make(chan int64)
	verify := make(chan blob, 1000)
	quit := make(chan struct{})
	var writers, readers sync.WaitGroup
	for i := 0; i < nwriters; i++ {
		writers.Add(1)
		go func() {
			defer writers.Done()
			writeBlobs(t, s, sizes, verify)
		}()
	}
	for i := 0; i < nreaders; i++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			verifyBlobs(t, s, verify, quit)
		}()
	}
	for totalsize > 0 {
		// sizes spanning several orders of magnitude hit both the
		// small-buffer and the chunked upload paths of the stores
		size := int64(math.Trunc(math.Exp(20 * rand.Float64())))
		sizes <- size
		totalsize -= size
	}
	close(sizes)
	writers.Wait()
	close(quit)
	readers.Wait()
}

type blob struct {
	key   string
	md5   []byte
	size  int64
	reads int // verifications left before the blob is deleted
}

func writeBlobs(t *testing.T, s store.Store, sizes <-chan int64, out chan<- blob) {
	block := make([]byte, 32*1024)
	rand.Read(block)
	h := md5.New()
	for size := range sizes {
		key := randomKey()
		w, err := s.Create(key)
		for err == store.ErrKeyExists {
			key = randomKey()
			w, err = s.Create(key)
		}
		if err != nil {
			t.Error(err)
			continue
		}
		h.Reset()
		n, err := io.Copy(io.MultiWriter(h, w), &loopReader{block: block, remaining: size})
		if err != nil {
			t.Error(key, err)
		}
		if n != size {
			t.Error(key, "wrote", n, "bytes, expected", size)
		}
		err = w.Close()
		if err != nil {
			t.Error(key, err)
			continue
		}
		out <- blob{key: key, md5: h.Sum(nil), size: size, reads: 1 + rand.Intn(2)}
	}
}

func randomKey() string {
	return fmt.Sprintf("stress-%06x", rand.Intn(1<<24))
}

func verifyBlobs(t *testing.T, s store.Store, in chan blob, quit <-chan struct{}) {
	h := md5.New()
	for {
		var b blob
		select {
		case <-quit:
			return
		case b = <-in:
		}
		rac, size, err := s.Open(b.key)
		if err != nil {
			t.Error(b.key, err)
			continue
		}
		if size != b.size {
			t.Error(b.key, "opened with size", size, "expected", b.size)
		}
		h.Reset()
		n, err := io.Copy(h, store.NewReader(rac))
		if err != nil {
			t.Error(b.key, err)
		}
		if n != size {
			t.Error(b.key, "read", n, "bytes, expected", size)
		}
		err = rac.Close()
		if err != nil {
			t.Error(b.key, err)
		}
		if !bytes.Equal(b.md5, h.Sum(nil)) {
			// leave the blob in the store for postmortems
			t.Errorf("%s: content hash %x, expected %x", b.key, h.Sum(nil), b.md5)
			continue
		}
		b.reads--
		if b.reads > 0 {
			in <- b
			continue
		}
		err = s.Delete(b.key)
		if err != nil {
			t.Error(b.key, err)
		}
	}
}

// loopReader yields remaining bytes by cycling through block.
type loopReader struct {
	block     []byte
	remaining int64
	off       int
}

func (r *loopReader) Read(p []byte) (int, error) {
	if r.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > r.remaining {
		p = p[:r.remaining]
	}
	total := 0
	for len(p) > 0 {
		n := copy(p, r.block[r.off:])
		p = p[n:]
		total += n
		r.off += n
		if r.off == len(r.block) {
			r.off = 0
		}
	}
	r.remaining -= int64(total)
	return total, nil
}
