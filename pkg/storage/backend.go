// Package storage provides the blob backends a level directory can live on.
package storage

import (
	"context"
	"errors"
)

// ErrNotExist is returned by Get when the key is absent.
var ErrNotExist = errors.New("storage: key does not exist")

// BlobStore defines the interface for abstract storage backends. Keys are
// slash separated and relative to the store root.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
