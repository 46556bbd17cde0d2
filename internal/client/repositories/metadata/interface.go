// Package metadata stores small key/value records next to the cache: the
// active session, per-collection schema hashes and sync bookkeeping.
package metadata

import (
	"context"
)

// Well-known keys.
const (
	KeyActiveUser     = "session.user"
	KeySchemaPrefix   = "schema."
	KeyLastPullPrefix = "pull."
)

// SchemaKey is the key under which the schema hash of collection is kept.
func SchemaKey(collection string) string { return KeySchemaPrefix + collection }

// LastPullKey is the key recording the time of the last successful pull.
func LastPullKey(collection string) string { return KeyLastPullPrefix + collection }

type Repository interface {
	// Get returns (nil, nil) when key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error

	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, v any) error
}
