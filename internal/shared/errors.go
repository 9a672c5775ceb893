// Package shared contains canonical type definitions shared across parcel.
package shared //nolint:revive // internal shared package is intentional

import "errors"

// Semantic errors for storage operations.
var (
	// ErrNotFound indicates the requested object does not exist.
	ErrNotFound = errors.New("parcel: object not found")

	// ErrInvalidKey indicates the provided key is malformed or empty.
	ErrInvalidKey = errors.New("parcel: invalid key")

	// ErrNoProvider indicates a store was built without a backing provider.
	ErrNoProvider = errors.New("parcel: no bucket provider")

	// ErrArchive indicates the payload could not be packaged into an archive.
	ErrArchive = errors.New("parcel: archive construction failed")
)
