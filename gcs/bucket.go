// Package gcs provides a parcel BucketProvider implementation for Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"github.com/zoobzio/parcel"
)

// predefinedACLs maps S3 canned ACL names to their GCS equivalents.
var predefinedACLs = map[string]string{
	"private":                   "private",
	"public-read":               "publicRead",
	"authenticated-read":        "authenticatedRead",
	"bucket-owner-read":         "bucketOwnerRead",
	"bucket-owner-full-control": "bucketOwnerFullControl",
}

// Option configures a Provider.
type Option func(*Provider)

// WithUniformAccess skips per-object ACLs, which buckets with uniform
// bucket-level access reject.
func WithUniformAccess() Option {
	return func(p *Provider) {
		p.uniform = true
	}
}

// WithSigner signs URLs with an explicit service account instead of the
// client's detected credentials.
func WithSigner(googleAccessID string, privateKey []byte) Option {
	return func(p *Provider) {
		p.accessID = googleAccessID
		p.privateKey = privateKey
	}
}

// Provider implements parcel.BucketProvider for Google Cloud Storage.
type Provider struct {
	client     *storage.Client
	bucket     string
	uniform    bool
	accessID   string
	privateKey []byte
}

// New creates a GCS provider with the given client and bucket name.
func New(client *storage.Client, bucket string, opts ...Option) *Provider {
	p := &Provider{
		client: client,
		bucket: bucket,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Bucket returns the bucket this provider writes to.
func (p *Provider) Bucket() string {
	return p.bucket
}

// Get retrieves the object at key.
func (p *Provider) Get(ctx context.Context, key string) ([]byte, error) {
	reader, err := p.client.Bucket(p.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, parcel.ErrNotFound
		}
		return nil, err
	}
	defer func() { _ = reader.Close() }()

	return io.ReadAll(reader)
}

// Put stores data at key.
func (p *Provider) Put(ctx context.Context, key string, data []byte, opts *parcel.PutOptions) error {
	w := p.client.Bucket(p.bucket).Object(key).NewWriter(ctx)
	p.applyOptions(&w.ObjectAttrs, opts)

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// Delete removes the object at key.
// A missing object is not an error.
func (p *Provider) Delete(ctx context.Context, key string) error {
	err := p.client.Bucket(p.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return err
	}
	return nil
}

// PresignGet returns a V4 signed GET URL for key.
// The storage library rejects lifetimes beyond seven days.
func (p *Provider) PresignGet(_ context.Context, key string, expiry time.Duration) (string, error) {
	opts := &storage.SignedURLOptions{
		Method:  http.MethodGet,
		Expires: time.Now().Add(expiry),
		Scheme:  storage.SigningSchemeV4,
	}
	if p.accessID != "" {
		opts.GoogleAccessID = p.accessID
		opts.PrivateKey = p.privateKey
	}
	return p.client.Bucket(p.bucket).SignedURL(key, opts)
}

// applyOptions copies write options onto the object attributes.
// Google encrypts every object at rest, so only a customer key name
// is forwarded for KMS encryption.
func (p *Provider) applyOptions(attrs *storage.ObjectAttrs, opts *parcel.PutOptions) {
	if opts == nil {
		return
	}
	attrs.ContentType = opts.ContentType
	attrs.ContentDisposition = opts.ContentDisposition
	if opts.ServerSideEncryption == parcel.SSEKMS && opts.KMSKeyID != "" {
		attrs.KMSKeyName = opts.KMSKeyID
	}
	if opts.ACL != "" && !p.uniform {
		if acl, ok := predefinedACLs[opts.ACL]; ok {
			attrs.PredefinedACL = acl
		} else {
			attrs.PredefinedACL = opts.ACL
		}
	}
}

var _ parcel.BucketProvider = (*Provider)(nil)
