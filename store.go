package parcel

import (
	"context"
	"errors"
	"time"

	"github.com/zoobzio/capitan"
)

// DefaultURLExpiry is the lifetime of a signed URL when none is given.
// It equals MaxURLExpiry, the longest lifetime S3-compatible backends accept.
const (
	DefaultURLExpiry = 7 * 24 * time.Hour
	MaxURLExpiry     = 7 * 24 * time.Hour
)

// ObjectOptions holds the per-call attributes of a write.
type ObjectOptions struct {
	ContentType        string
	ContentDisposition string
}

// Store wraps a BucketProvider in a simple key/value API.
// Every key is prefixed and every write carries the store's WriteOptions.
// A Store is immutable after construction and safe for concurrent use.
type Store struct {
	provider BucketProvider
	prefix   string
	write    WriteOptions
}

// NewStore creates a Store backed by the given provider.
// Writes default to a private ACL with KMS server-side encryption.
func NewStore(provider BucketProvider, opts ...StoreOption) *Store {
	s := &Store{
		provider: provider,
		write:    DefaultWriteOptions(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Prefix returns the prefix applied to every key.
func (s *Store) Prefix() string {
	return s.prefix
}

// WriteOptions returns the fixed write policy.
func (s *Store) WriteOptions() WriteOptions {
	return s.write
}

// Path returns the fully qualified storage path for key.
func (s *Store) Path(key string) string {
	return s.prefix + key
}

// Put stores value at key, overwriting any existing object, and returns
// the fully qualified path.
func (s *Store) Put(ctx context.Context, key string, value []byte, opts ObjectOptions) (string, error) {
	if s.provider == nil {
		return "", ErrNoProvider
	}
	if key == "" {
		return "", ErrInvalidKey
	}
	path := s.Path(key)
	start := time.Now()
	capitan.Emit(ctx, PutStarted, FieldKey.Field(key), FieldPath.Field(path))

	err := s.provider.Put(ctx, path, value, &PutOptions{
		ContentType:          opts.ContentType,
		ContentDisposition:   opts.ContentDisposition,
		ACL:                  s.write.ACL,
		ServerSideEncryption: s.write.ServerSideEncryption,
		KMSKeyID:             s.write.KMSKeyID,
	})
	if err != nil {
		capitan.Emit(ctx, PutFailed,
			FieldPath.Field(path),
			FieldError.Field(err),
			FieldDuration.Field(time.Since(start)),
		)
		return "", err
	}

	capitan.Emit(ctx, PutCompleted,
		FieldPath.Field(path),
		FieldSize.Field(int64(len(value))),
		FieldDuration.Field(time.Since(start)),
	)
	return path, nil
}

// Get retrieves the value stored at key.
// The boolean is false, with a nil error, when no object exists at key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.provider == nil {
		return nil, false, ErrNoProvider
	}
	if key == "" {
		return nil, false, ErrInvalidKey
	}
	path := s.Path(key)
	start := time.Now()

	data, err := s.provider.Get(ctx, path)
	if err != nil && !errors.Is(err, ErrNotFound) {
		capitan.Emit(ctx, GetFailed,
			FieldPath.Field(path),
			FieldError.Field(err),
			FieldDuration.Field(time.Since(start)),
		)
		return nil, false, err
	}
	found := err == nil

	capitan.Emit(ctx, GetCompleted,
		FieldPath.Field(path),
		FieldFound.Field(found),
		FieldDuration.Field(time.Since(start)),
	)
	if !found {
		return nil, false, nil
	}
	return data, true, nil
}

// Delete removes the object at key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if s.provider == nil {
		return ErrNoProvider
	}
	if key == "" {
		return ErrInvalidKey
	}
	path := s.Path(key)
	start := time.Now()

	if err := s.provider.Delete(ctx, path); err != nil {
		capitan.Emit(ctx, DeleteFailed,
			FieldPath.Field(path),
			FieldError.Field(err),
			FieldDuration.Field(time.Since(start)),
		)
		return err
	}

	capitan.Emit(ctx, DeleteCompleted,
		FieldPath.Field(path),
		FieldDuration.Field(time.Since(start)),
	)
	return nil
}

// PublicURL returns a URL that grants read access to the object at key
// until expiry elapses. An expiry of zero or less means DefaultURLExpiry.
// Lifetimes above MaxURLExpiry are left to the backend to clamp or reject.
func (s *Store) PublicURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if s.provider == nil {
		return "", ErrNoProvider
	}
	if key == "" {
		return "", ErrInvalidKey
	}
	if expiry <= 0 {
		expiry = DefaultURLExpiry
	}
	path := s.Path(key)
	start := time.Now()

	url, err := s.provider.PresignGet(ctx, path, expiry)
	if err != nil {
		capitan.Emit(ctx, PresignFailed,
			FieldPath.Field(path),
			FieldError.Field(err),
			FieldDuration.Field(time.Since(start)),
		)
		return "", err
	}

	capitan.Emit(ctx, PresignCompleted,
		FieldPath.Field(path),
		FieldDuration.Field(time.Since(start)),
	)
	return url, nil
}
