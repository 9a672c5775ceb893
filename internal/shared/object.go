// Package shared provides canonical type definitions used across parcel modules.
package shared //nolint:revive // internal shared package is intentional

// PutOptions holds the attributes applied to a single object write.
// ContentType and ContentDisposition vary per call; ACL,
// ServerSideEncryption and KMSKeyID come from the owning store.
type PutOptions struct {
	ContentType          string
	ContentDisposition   string
	ACL                  string
	ServerSideEncryption string
	KMSKeyID             string
}
