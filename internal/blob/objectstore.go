package blob

import (
	"context"
	"io"
)

// ObjectStore is the slice of the object storage backend the relay needs.
// MinioStore implements it in production; tests use an in-memory fake.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}
