package store

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	raven "github.com/getsentry/raven-go"
)

// An S3 store keeps its content in an S3 bucket, under an optional key
// prefix. Do not change Bucket or Prefix while other calls are in flight.
type S3 struct {
	svc    *s3.S3
	Bucket string
	Prefix string
	sizes  *sizecache // remembers object sizes so Open can skip the HEAD
}

var (
	// ErrNoETag means AWS accepted an uploaded part but did not return
	// an ETag for it. Without the ETag the upload cannot be completed.
	ErrNoETag = errors.New("No ETag was returned from AWS")

	// ErrNotExist means the key does not exist in the store.
	ErrNotExist = errors.New("Key does not exist")
)

// NewS3 creates a store on the given bucket. Every key is prepended with
// prefix, so several stores can share one bucket, e.g. with prefix "bags/"
// an Open("x") reads the object "bags/x". All requests use the credentials
// of the given session.
func NewS3(bucket, prefix string, awsSession *session.Session) *S3 {
	return &S3{
		Bucket: bucket,
		Prefix: prefix,
		svc:    s3.New(awsSession),
		sizes:  newSizeCache(),
	}
}

// List returns a channel enumerating every key in this store. Keys outside
// the store's prefix are not listed, so a shared bucket is fine.
func (s *S3) List() <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		err := s.forEachKey(s.Prefix, func(key string) {
			out <- key
		})
		if err != nil {
			log.Println("S3 List:", s.Prefix, err)
			raven.CaptureError(err, map[string]string{"Bucket": s.Bucket, "Prefix": s.Prefix})
		}
	}()
	return out
}

// ListPrefix returns the keys in this store beginning with prefix. The
// store's own prefix is prepended for the search and removed again in the
// result.
func (s *S3) ListPrefix(prefix string) ([]string, error) {
	var result []string
	err := s.forEachKey(s.Prefix+prefix, func(key string) {
		result = append(result, key)
	})
	if err != nil {
		log.Println("S3 ListPrefix:", s.Prefix, prefix, err)
		raven.CaptureError(err, map[string]string{"Bucket": s.Bucket, "Prefix": s.Prefix, "Pattern": prefix})
	}
	return result, err
}

// forEachKey pages through the bucket listing for fullprefix and calls f
// with each key, the store prefix removed.
func (s *S3) forEachKey(fullprefix string, f func(string)) error {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.Bucket),
		Prefix: aws.String(fullprefix),
	}
	return s.svc.ListObjectsV2Pages(input,
		func(page *s3.ListObjectsV2Output, lastpage bool) bool {
			for _, item := range page.Contents {
				f(strings.TrimPrefix(*item.Key, s.Prefix))
			}
			return !lastpage
		})
}

// Open returns a ReadAtCloser over the content of the given key. Content is
// ranged in on demand; at most spanCacheLen*spanSize bytes are held at once.
func (s *S3) Open(key string) (ReadAtCloser, int64, error) {
	size, err := s.stat(key)
	if err != nil {
		return nil, 0, err
	}
	result := &s3reader{
		svc:    s.svc,
		bucket: s.Bucket,
		key:    s.Prefix + key,
		size:   size,
	}
	return result, size, nil
}

// Create returns a WriteCloser uploading content to the given key. The
// upload switches to the multipart interface once the content outgrows a
// single part, and the parts grow in size, so anything up to the 5 TB S3
// object limit should work.
func (s *S3) Create(key string) (io.WriteCloser, error) {
	_, err := s.stat(key)
	if err == nil {
		return nil, ErrKeyExists
	}
	s.sizes.Set(key, 0) // the key may have been cached as deleted
	return &s3writer{
		svc:    s.svc,
		bucket: s.Bucket,
		key:    s.Prefix + key,
	}, nil
}

// Delete removes the given key from the store. Deleting a key that does not
// exist is not an error.
func (s *S3) Delete(key string) error {
	_, err := s.svc.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Prefix + key),
	})
	if err != nil {
		log.Println("S3 Delete:", s.Prefix, key, err)
		raven.CaptureError(err, map[string]string{"Bucket": s.Bucket, "Prefix": s.Prefix, "Key": key})
	} else {
		s.sizes.Set(key, sizeDeleted)
	}
	return err
}

// stat returns the size of the object stored under key, or an error if
// there is no such object. Sizes are cached, so most calls cost nothing.
func (s *S3) stat(key string) (int64, error) {
	return s.sizes.Get(key, s.head)
}

// head asks S3 for the size of the object under key. Callers should prefer
// stat.
func (s *S3) head(key string) (int64, error) {
	info, err := s.svc.HeadObject(&s3.HeadObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Prefix + key),
	})
	if err != nil {
		return 0, err
	}
	return *info.ContentLength, nil
}

const (
	// spanSize is how much data one ranged GET asks for.
	spanSize = 10 * 1024 * 1024 // 10 MiB

	// spanCacheLen is how many spans a reader holds before dropping the
	// least recently used one.
	spanCacheLen = 5
)

// s3reader adapts ranged GET requests to the io.ReaderAt interface. Spans
// already downloaded are kept in most-recently-used order. Span boundaries
// are aligned to multiples of spanSize, so cached spans never overlap.
//
// Not safe for concurrent use.
type s3reader struct {
	svc    *s3.S3
	bucket string
	key    string
	spans  []span // most recently used first
	size   int64
}

// A span is one downloaded run of bytes starting at offset.
type span struct {
	offset int64
	data   []byte
}

func (r *s3reader) ReadAt(p []byte, offset int64) (int, error) {
	var err error
	start := offset
	for len(p) > 0 && offset < r.size {
		var sp span
		sp, err = r.span(offset)
		if err != nil {
			// keep whatever was copied on earlier iterations
			break
		}
		n := copy(p, sp.data[offset-sp.offset:])
		p = p[n:]
		offset += int64(n)
	}
	// An EOF from the middle of a partial read is not reported yet; the
	// caller will see it on the next call. And a read that made no
	// progress without an error can only mean the end of the object.
	if err == io.EOF && offset != start {
		err = nil
	} else if err == nil && offset == start {
		err = io.EOF
	}
	return int(offset - start), err
}

func (r *s3reader) Close() error {
	return nil
}

// span returns the cached span covering offset, downloading it if no cached
// span does. The span returned is moved to the front of the cache.
func (r *s3reader) span(offset int64) (span, error) {
	for i, sp := range r.spans {
		if sp.offset <= offset && offset < sp.offset+int64(len(sp.data)) {
			// rotate the hit to the front
			copy(r.spans[1:i+1], r.spans[:i])
			r.spans[0] = sp
			return sp, nil
		}
	}
	sp, err := r.fetch(offset)
	if err != nil {
		return span{}, err
	}
	if len(r.spans) < spanCacheLen {
		r.spans = append(r.spans, span{})
	}
	copy(r.spans[1:], r.spans)
	r.spans[0] = sp
	return sp, nil
}

// fetch downloads the span containing offset. The span begins at the
// greatest multiple of spanSize not after offset, and is spanSize long
// unless the object ends first.
func (r *s3reader) fetch(offset int64) (span, error) {
	base := (offset / spanSize) * spanSize
	output, err := r.svc.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", base, base+spanSize-1)),
	})
	if err != nil {
		log.Println("S3 fetch:", r.key, offset, err)
		// an unsatisfiable range means we asked past the end
		e, ok := err.(awserr.RequestFailure)
		if ok && e.StatusCode() == http.StatusRequestedRangeNotSatisfiable {
			err = io.EOF
		}
		return span{}, err
	}
	var buf bytes.Buffer
	n, err := io.Copy(&buf, output.Body)
	output.Body.Close()
	if n == 0 && err == nil {
		// no data and no error, call it the end
		err = io.EOF
	}
	return span{offset: base, data: buf.Bytes()}, err
}

// s3writer uploads one object. Content small enough for a single buffer is
// sent with one PUT; everything bigger goes through the multipart upload
// interface.
//
// The final size of an object is unknown while it is being written, and AWS
// limits an upload to 10,000 parts of between 5 MB and 5 GB each. So the
// part size starts at firstPartSize and doubles per part until it reaches
// maxPartSize, which makes small objects cheap and still leaves room for
// multi-terabyte ones.
type s3writer struct {
	svc      *s3.S3
	bucket   string
	key      string
	buf      *bytes.Buffer // part being filled
	part     int           // number of parts already uploaded
	uploadID string        // assigned by S3 when the multipart upload starts
	etags    []string      // etags[i] belongs to part i
	isMulti  bool          // a multipart upload has been started
	abort    bool          // give up at Close
}

const (
	firstPartSize = 64 * 1024 * 1024
	maxPartSize   = 4 * 1024 * 1024 * 1024
)

// partlimit is the size at which part number i (0-based) is sent.
func partlimit(i int) int {
	// doubling from 64 MB reaches the 4 GB ceiling at part 6
	if i < 6 {
		return firstPartSize << uint(i)
	}
	return maxPartSize
}

// s3bufpool holds spare part buffers, shared by all s3writer instances.
var s3bufpool sync.Pool

func (wc *s3writer) Write(p []byte) (int, error) {
	if wc.buf == nil {
		wc.buf = takebuf()
	}
	n, err := wc.buf.Write(p)
	if n == 0 && err != nil {
		wc.abort = true
		return n, err
	}
	if wc.buf.Len() > partlimit(wc.part) {
		err = wc.putPart(wc.part, wc.buf)
		wc.buf.Reset()
		if err != nil {
			wc.abort = true
			return 0, err
		}
		wc.part++
	}
	return n, nil
}

// Close flushes anything buffered and completes the upload. If any Write
// failed, or the multipart completion fails, the entire upload is
// abandoned and nothing is stored.
func (wc *s3writer) Close() error {
	if wc.buf != nil {
		defer func() {
			s3bufpool.Put(wc.buf)
			wc.buf = nil
		}()
	}

	// content that never grew past the first part is sent as one object
	if !wc.isMulti {
		if wc.abort {
			return nil
		}
		return wc.putAll(wc.buf)
	}

	var err error
	if !wc.abort && wc.buf.Len() > 0 {
		err = wc.putPart(wc.part, wc.buf)
		if err != nil {
			wc.abort = true
		}
	}
	if wc.abort {
		err2 := wc.abandon()
		if err == nil {
			err = err2
		}
		return err
	}
	err = wc.completeMulti()
	if err != nil {
		log.Println("S3 Complete Close:", wc.key, err)
	}
	return err
}

func takebuf() *bytes.Buffer {
	b, ok := s3bufpool.Get().(*bytes.Buffer)
	if !ok {
		b = &bytes.Buffer{}
		b.Grow(2 * firstPartSize)
	}
	b.Reset()
	return b
}

// abandon tells S3 to discard the parts uploaded so far.
func (wc *s3writer) abandon() error {
	_, err := wc.svc.AbortMultipartUpload(&s3.AbortMultipartUploadInput{
		Bucket:   aws.String(wc.bucket),
		Key:      aws.String(wc.key),
		UploadId: aws.String(wc.uploadID),
	})
	if err != nil {
		log.Println("S3 Abort Close:", wc.key, err)
	}
	return err
}

func (wc *s3writer) beginMulti() error {
	if wc.isMulti {
		return nil
	}
	result, err := wc.svc.CreateMultipartUpload(&s3.CreateMultipartUploadInput{
		Bucket: aws.String(wc.bucket),
		Key:    aws.String(wc.key),
	})
	if err != nil {
		log.Println("S3 beginMulti:", wc.key, err)
		raven.CaptureError(err, map[string]string{"Bucket": wc.bucket, "Key": wc.key})
		return err
	}
	wc.isMulti = true
	wc.uploadID = *result.UploadId
	return nil
}

func (wc *s3writer) completeMulti() error {
	var completed []*s3.CompletedPart
	for i, etag := range wc.etags {
		completed = append(completed, &s3.CompletedPart{
			ETag:       aws.String(etag),
			PartNumber: aws.Int64(int64(i + 1)), // AWS part numbers are 1-based
		})
	}
	_, err := wc.svc.CompleteMultipartUpload(
		&s3.CompleteMultipartUploadInput{
			Bucket:   aws.String(wc.bucket),
			Key:      aws.String(wc.key),
			UploadId: aws.String(wc.uploadID),
			MultipartUpload: &s3.CompletedMultipartUpload{
				Parts: completed,
			},
		})
	return err
}

func (wc *s3writer) putPart(partno int, buf *bytes.Buffer) error {
	if !wc.isMulti {
		err := wc.beginMulti()
		if err != nil {
			return err
		}
	}
	output, err := wc.svc.UploadPart(&s3.UploadPartInput{
		Body:       bytes.NewReader(buf.Bytes()), // UploadPart needs a Seek()
		Bucket:     aws.String(wc.bucket),
		Key:        aws.String(wc.key),
		PartNumber: aws.Int64(int64(partno + 1)),
		UploadId:   aws.String(wc.uploadID),
	})
	if err != nil {
		log.Println("S3 putPart:", wc.key, partno+1, err)
		return err
	}
	if output.ETag == nil {
		log.Println("S3 nil ETag for part", partno, "key=", wc.key)
		return ErrNoETag
	}
	wc.etags = append(wc.etags, *output.ETag)
	return nil
}

func (wc *s3writer) putAll(buf *bytes.Buffer) error {
	// buf is nil when Close comes before any Write; store an empty object
	source := &bytes.Reader{} // PutObject needs a Seek(), which Buffer lacks
	if buf != nil {
		source.Reset(buf.Bytes())
	}
	_, err := wc.svc.PutObject(&s3.PutObjectInput{
		Body:          source,
		Bucket:        aws.String(wc.bucket),
		Key:           aws.String(wc.key),
		ContentLength: aws.Int64(int64(source.Len())),
	})
	if err != nil {
		log.Println("S3 putAll:", wc.key, err)
	}
	return err
}
