package server

import (
	"log"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"

	"github.com/ndlib/parcel/store"
)

// cachepath returns CacheDir as a local filesystem path, when it is one.
// Cache locations on an object store have no local path.
func (s *RESTServer) cachepath() (string, bool) {
	u, err := url.Parse(s.CacheDir)
	if err != nil || s.CacheDir == "" {
		return "", false
	}
	switch u.Scheme {
	case "":
		return u.Path, true
	case "file":
		if u.Opaque != "" {
			return u.Opaque, true
		}
		return u.Path, true
	}
	return "", false
}

// getcachestore returns a store rooted at the given subdirectory of the
// cache location. CacheDir may be a plain directory path, a "file:" path,
// or an "s3:" URL naming a bucket and key prefix. An empty CacheDir gives
// a memory store. In case of an error, nil is returned.
func (s *RESTServer) getcachestore(subdir string) store.Store {
	if s.CacheDir == "" {
		return store.NewMemory()
	}
	if dir, ok := s.cachepath(); ok {
		dir = filepath.Join(dir, subdir)
		os.MkdirAll(dir, 0755)
		return store.NewFileSystem(dir)
	}
	u, _ := url.Parse(s.CacheDir)
	if u == nil || u.Scheme != "s3" {
		log.Println("Problem parsing cache location", s.CacheDir)
		return nil
	}
	return s.s3cachestore(u, subdir)
}

// s3cachestore builds the store for an "s3:" cache location. A host in
// the URL selects a non-AWS endpoint, say a local minio.
func (s *RESTServer) s3cachestore(u *url.URL, subdir string) store.Store {
	conf := &aws.Config{}
	if u.Host != "" {
		conf.Endpoint = aws.String(u.Host)
		conf.Region = aws.String("us-east-1")
		// local development endpoints are not behind TLS
		if strings.Contains(u.Host, "localhost") {
			conf.DisableSSL = aws.Bool(true)
			conf.S3ForcePathStyle = aws.Bool(true)
		}
	}
	bucket, prefix := splitBucketPrefix(u.Path, subdir)
	if bucket == "" {
		log.Println("Error parsing cache location, no bucket name", s.CacheDir)
		return nil
	}
	return store.NewS3(bucket, prefix, session.New(conf))
}

// splitBucketPrefix pulls the bucket name off the front of an S3 path
// and returns the rest as the key prefix. The addition is joined onto
// the prefix, and a nonempty prefix always comes back ending in "/".
//
//	""                    -> ("", "")
//	"bucket"              -> ("bucket", "")
//	"bucket/and/a/prefix" -> ("bucket", "and/a/prefix/")
func splitBucketPrefix(location string, addition string) (bucket, prefix string) {
	if location == "" {
		return "", ""
	}
	bucket, prefix, _ = strings.Cut(strings.TrimPrefix(location, "/"), "/")
	if addition != "" {
		prefix = path.Join(prefix, addition)
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return bucket, prefix
}
