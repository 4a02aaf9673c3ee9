// Package blob stores uploaded and converted document files. MinIO is the
// primary backend; a local directory serves when no object store is
// configured.
package blob

import (
	"context"
	"io"
)

// Store is the file storage interface consumed by the app service.
type Store interface {
	Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, name string) error
}
