package storage

import (
	"context"
	"io"
	"time"
)

// Package storage holds submission attachments in an S3-compatible object store.
// Uploads stream straight through; downloads go out as presigned URLs.

// PutObjectOptions define optional parameters for uploading objects.
// Size should be the exact number of bytes if known, or -1 to let the client chunk.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about an object in storage.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Storage is the object store used for attachments. Implementations must be safe for concurrent use.
type Storage interface {
	// Put uploads an object under the given key using the provided reader and options.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Delete removes an object by key.
	Delete(ctx context.Context, key string) error
	// PresignGet returns a time-limited download URL. When downloadName is set the
	// response carries it as the attachment filename.
	PresignGet(ctx context.Context, key string, expiry time.Duration, downloadName string) (string, error)
}
