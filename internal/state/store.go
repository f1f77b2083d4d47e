package state

import (
	"context"
	"errors"
)

// ErrNotFound indicates absent snapshot key.
var ErrNotFound = errors.New("not found")

// Store provides instance snapshot persistence.
// Params: get/put/delete by StoreKey and prefix listing.
// Returns: backend persistence behavior.
type Store interface {
	Get(ctx context.Context, key string) (Snapshot, uint64, error)
	Put(ctx context.Context, key string, snap Snapshot) (uint64, error)
	Delete(ctx context.Context, key string) error
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}
