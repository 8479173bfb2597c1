// Package storage defines the Backend interface for durable content
// storage and a factory selecting the configured implementation.
package storage

import (
	"context"
	"io"
)

// Backend is the interface for content storage backends.
// Implementations handle raw object I/O (local filesystem, S3).
// Metadata (the file hierarchy) is handled separately by the metadata
// store: a backend key is only ever reachable through a metadata record.
type Backend interface {
	// GetObject retrieves an object by key. The returned size is the
	// object's total length.
	GetObject(ctx context.Context, key string) (io.ReadCloser, int64, error)

	// PutObject uploads content to the given key, overwriting any
	// existing object. The write is atomic: readers never observe a
	// partially written object.
	PutObject(ctx context.Context, key string, body io.Reader, size int64) error

	// ObjectExists checks if an object exists at the given key.
	ObjectExists(ctx context.Context, key string) (bool, error)

	// Type returns the backend type identifier ("local", "s3").
	Type() string

	// Close releases any resources held by the backend.
	Close() error
}
