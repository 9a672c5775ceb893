package parcel

// Server-side encryption modes understood by the providers.
const (
	SSEKMS    = "aws:kms"
	SSEAES256 = "AES256"
)

// ACLPrivate is the default canned access control applied to writes.
const ACLPrivate = "private"

// WriteOptions is the fixed write policy a Store applies to every Put.
type WriteOptions struct {
	ACL                  string
	ServerSideEncryption string
	KMSKeyID             string
}

// DefaultWriteOptions returns the policy used when no StoreOption overrides it:
// private ACL with KMS-managed server-side encryption.
func DefaultWriteOptions() WriteOptions {
	return WriteOptions{
		ACL:                  ACLPrivate,
		ServerSideEncryption: SSEKMS,
	}
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithPrefix sets the prefix prepended to every key.
func WithPrefix(prefix string) StoreOption {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithServerSideEncryption sets the server-side encryption mode.
// An empty mode disables server-side encryption headers.
func WithServerSideEncryption(mode string) StoreOption {
	return func(s *Store) {
		s.write.ServerSideEncryption = mode
	}
}

// WithKMSKeyID sets the key used when the encryption mode is SSEKMS.
// Empty means the backend-managed default key.
func WithKMSKeyID(id string) StoreOption {
	return func(s *Store) {
		s.write.KMSKeyID = id
	}
}

// WithACL sets the canned access control applied to writes.
func WithACL(acl string) StoreOption {
	return func(s *Store) {
		s.write.ACL = acl
	}
}

// WithWriteOptions replaces the whole write policy.
func WithWriteOptions(w WriteOptions) StoreOption {
	return func(s *Store) {
		s.write = w
	}
}
