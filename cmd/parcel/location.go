package main

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

// parselocation turns a location string from the configuration into a
// store. An empty location gives a memory store, a bare path or "file:"
// URL gives a filesystem store rooted there, and an "s3:" URL gives an
// S3 store. The addition is appended to the path so several stores can
// share one location. Returns nil if the location cannot be understood.
func parselocation(location string, addition string) store.Store {
	if location == "" {
		return store.NewMemory()
	}
	u, _ := url.Parse(location)
	switch u.Scheme {
	case "", "file":
		dir := filepath.Join(u.Path, addition)
		os.MkdirAll(dir, 0755)
		return store.NewFileSystem(dir)
	case "s3":
		return s3store(u, addition)
	}
	log.Println("Problem parsing location", location)
	return nil
}

// s3store builds a store from a URL of the form s3://host/bucket/prefix.
// The host is only given for non-AWS endpoints, say a local minio.
func s3store(u *url.URL, addition string) store.Store {
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
	bucket, prefix := splitBucketPrefix(u.Path, addition)
	if bucket == "" {
		log.Println("Error parsing location, no bucket name", u)
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
