// Package minio provides a parcel BucketProvider implementation for MinIO.
package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/encrypt"
	"github.com/zoobzio/parcel"
)

// aclHeader is forwarded verbatim by minio-go because of its x-amz- prefix.
const aclHeader = "x-amz-acl"

// Provider implements parcel.BucketProvider for MinIO.
type Provider struct {
	client *minio.Client
	bucket string
}

// New creates a MinIO provider with the given client and bucket name.
func New(client *minio.Client, bucket string) *Provider {
	return &Provider{
		client: client,
		bucket: bucket,
	}
}

// Bucket returns the bucket this provider writes to.
func (p *Provider) Bucket() string {
	return p.bucket
}

// Get retrieves the object at key.
func (p *Provider) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := p.client.GetObject(ctx, p.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = obj.Close() }()

	if _, err := obj.Stat(); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, parcel.ErrNotFound
		}
		return nil, err
	}

	return io.ReadAll(obj)
}

// Put stores data at key.
func (p *Provider) Put(ctx context.Context, key string, data []byte, opts *parcel.PutOptions) error {
	putOpts, err := putObjectOptions(opts)
	if err != nil {
		return err
	}
	_, err = p.client.PutObject(ctx, p.bucket, key, bytes.NewReader(data), int64(len(data)), putOpts)
	return err
}

// Delete removes the object at key.
func (p *Provider) Delete(ctx context.Context, key string) error {
	return p.client.RemoveObject(ctx, p.bucket, key, minio.RemoveObjectOptions{})
}

// PresignGet returns a presigned GET URL for key.
// MinIO rejects lifetimes outside one second to seven days.
func (p *Provider) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := p.client.PresignedGetObject(ctx, p.bucket, key, expiry, nil)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func putObjectOptions(opts *parcel.PutOptions) (minio.PutObjectOptions, error) {
	var out minio.PutObjectOptions
	if opts == nil {
		return out, nil
	}
	out.ContentType = opts.ContentType
	out.ContentDisposition = opts.ContentDisposition
	if opts.ACL != "" {
		out.UserMetadata = map[string]string{aclHeader: opts.ACL}
	}

	switch opts.ServerSideEncryption {
	case "":
	case parcel.SSEKMS:
		sse, err := encrypt.NewSSEKMS(opts.KMSKeyID, nil)
		if err != nil {
			return out, err
		}
		out.ServerSideEncryption = sse
	case parcel.SSEAES256:
		out.ServerSideEncryption = encrypt.NewSSE()
	default:
		return out, fmt.Errorf("minio: unsupported server-side encryption %q", opts.ServerSideEncryption)
	}
	return out, nil
}

var _ parcel.BucketProvider = (*Provider)(nil)
