// Package parcel provides a provider-agnostic object store wrapper and a
// publish operation that packages in-memory payloads into a single stored
// object, optionally zipped, and hands back a time-limited signed URL.
//
// Providers (s3, minio, gcs, azure) satisfy BucketProvider and are bound to
// one bucket. A Store layers a key prefix and a fixed write policy over a
// provider. A Publisher resolves Stores per bucket and day and drives the
// validate, convert, store sequence.
package parcel

import (
	"context"
	"time"

	"github.com/zoobzio/parcel/internal/shared"
)

// Semantic errors for storage operations (re-exported from internal/shared).
var (
	ErrNotFound   = shared.ErrNotFound
	ErrInvalidKey = shared.ErrInvalidKey
	ErrNoProvider = shared.ErrNoProvider
	ErrArchive    = shared.ErrArchive
)

// PutOptions is re-exported from internal/shared for the public API.
type PutOptions = shared.PutOptions

// BucketProvider defines raw object storage operations against one bucket.
// Implementations (s3, minio, gcs, azure) satisfy this interface.
type BucketProvider interface {
	// Put stores data at key, overwriting any existing object.
	Put(ctx context.Context, key string, data []byte, opts *PutOptions) error

	// Get retrieves the object at key.
	// Returns ErrNotFound if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the object at key.
	// Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// PresignGet returns a URL granting read access to key until expiry elapses.
	// Expiry limits are enforced by the backend, not the caller.
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}
