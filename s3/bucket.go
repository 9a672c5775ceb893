// Package s3 provides a parcel BucketProvider implementation for AWS S3.
package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/zoobzio/parcel"
)

// Client defines the S3 client interface used by this provider.
// This allows for easy mocking in tests.
type Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Presigner defines the presign operations used by this provider.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Provider implements parcel.BucketProvider for AWS S3.
type Provider struct {
	client    Client
	presigner Presigner
	bucket    string
}

// New creates an S3 provider with the given client and bucket name.
func New(client *s3.Client, bucket string) *Provider {
	return &Provider{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    bucket,
	}
}

// NewWithClient creates an S3 provider from explicit client and presigner
// implementations.
func NewWithClient(client Client, presigner Presigner, bucket string) *Provider {
	return &Provider{
		client:    client,
		presigner: presigner,
		bucket:    bucket,
	}
}

// Bucket returns the bucket this provider writes to.
func (p *Provider) Bucket() string {
	return p.bucket
}

// Get retrieves the object at key.
func (p *Provider) Get(ctx context.Context, key string) ([]byte, error) {
	output, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, parcel.ErrNotFound
		}
		return nil, err
	}
	defer func() { _ = output.Body.Close() }()

	return io.ReadAll(output.Body)
}

// Put stores data at key.
func (p *Provider) Put(ctx context.Context, key string, data []byte, opts *parcel.PutOptions) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if opts != nil {
		if opts.ContentType != "" {
			input.ContentType = aws.String(opts.ContentType)
		}
		if opts.ContentDisposition != "" {
			input.ContentDisposition = aws.String(opts.ContentDisposition)
		}
		if opts.ACL != "" {
			input.ACL = types.ObjectCannedACL(opts.ACL)
		}
		if opts.ServerSideEncryption != "" {
			input.ServerSideEncryption = types.ServerSideEncryption(opts.ServerSideEncryption)
		}
		if opts.KMSKeyID != "" {
			input.SSEKMSKeyId = aws.String(opts.KMSKeyID)
		}
	}
	_, err := p.client.PutObject(ctx, input)
	return err
}

// Delete removes the object at key.
// S3 DeleteObject succeeds whether or not the key exists.
func (p *Provider) Delete(ctx context.Context, key string) error {
	_, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	return err
}

// PresignGet returns a SigV4 presigned GET URL for key.
func (p *Provider) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	req, err := p.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

var _ parcel.BucketProvider = (*Provider)(nil)
