// Package objstore is the object storage capability used by seedsync.
//
// The sync stage lists and retrieves seed objects through a Client and the
// repackager uploads through one. Credentials are resolved when a backend is
// constructed; nothing downstream of the constructor touches them.
//
// Backends:
//   - S3: AWS S3 or any S3 compatible endpoint via aws-sdk-go-v2
//   - Minio: MinIO or S3 compatible endpoints with static keys via minio-go
//   - Memory: in-process store for tests and dry runs
package objstore

import (
	"context"
	"io"
	"time"
)

const (
	// ContentTypeCSV is the content type of uploaded seed snapshots.
	ContentTypeCSV = "text/csv"
	// ContentEncodingGzip is the content encoding of uploaded seed snapshots.
	ContentEncodingGzip = "gzip"
)

// Object is one entry of a listing.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// PutOptions carries object metadata for uploads.
type PutOptions struct {
	ContentType     string
	ContentEncoding string
	// Size is the body length, or -1 when unknown
	Size int64
}

// Client lists, retrieves and stores objects.
type Client interface {
	// List returns every object under prefix, across all pages, in the
	// order the store returns them.
	List(ctx context.Context, bucket, prefix string) ([]Object, error)
	// Get opens an object for reading. The caller closes the reader.
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	// Put uploads body under key.
	Put(ctx context.Context, bucket, key string, body io.Reader, opts PutOptions) error
}
