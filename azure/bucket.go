// Package azure provides a parcel BucketProvider implementation for Azure Blob Storage.
package azure

import (
	"context"
	"io"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
	"github.com/zoobzio/parcel"
)

// Provider implements parcel.BucketProvider for Azure Blob Storage.
// Azure has no per-blob ACL, so PutOptions.ACL is ignored; a KMS key id
// selects the container's encryption scope.
type Provider struct {
	client        *azblob.Client
	containerName string
}

// New creates an Azure Blob provider with the given client and container name.
// Signed URLs require the client to be built from a shared key credential.
func New(client *azblob.Client, containerName string) *Provider {
	return &Provider{
		client:        client,
		containerName: containerName,
	}
}

// Bucket returns the container this provider writes to.
func (p *Provider) Bucket() string {
	return p.containerName
}

// Get retrieves the blob at key.
func (p *Provider) Get(ctx context.Context, key string) ([]byte, error) {
	resp, err := p.client.DownloadStream(ctx, p.containerName, key, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, parcel.ErrNotFound
		}
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	return io.ReadAll(resp.Body)
}

// Put stores data at key.
func (p *Provider) Put(ctx context.Context, key string, data []byte, opts *parcel.PutOptions) error {
	_, err := p.client.UploadBuffer(ctx, p.containerName, key, data, uploadOptions(opts))
	return err
}

// Delete removes the blob at key.
// A missing blob is not an error.
func (p *Provider) Delete(ctx context.Context, key string) error {
	_, err := p.client.DeleteBlob(ctx, p.containerName, key, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
		return err
	}
	return nil
}

// PresignGet returns a read-only SAS URL for key.
func (p *Provider) PresignGet(_ context.Context, key string, expiry time.Duration) (string, error) {
	blobClient := p.client.ServiceClient().NewContainerClient(p.containerName).NewBlobClient(key)
	return blobClient.GetSASURL(sas.BlobPermissions{Read: true}, time.Now().UTC().Add(expiry), nil)
}

func uploadOptions(opts *parcel.PutOptions) *azblob.UploadBufferOptions {
	out := &azblob.UploadBufferOptions{}
	if opts == nil {
		return out
	}
	if opts.ContentType != "" || opts.ContentDisposition != "" {
		headers := &blob.HTTPHeaders{}
		if opts.ContentType != "" {
			headers.BlobContentType = &opts.ContentType
		}
		if opts.ContentDisposition != "" {
			headers.BlobContentDisposition = &opts.ContentDisposition
		}
		out.HTTPHeaders = headers
	}
	if opts.ServerSideEncryption == parcel.SSEKMS && opts.KMSKeyID != "" {
		scope := opts.KMSKeyID
		out.CPKScopeInfo = &blob.CPKScopeInfo{EncryptionScope: &scope}
	}
	return out
}

var _ parcel.BucketProvider = (*Provider)(nil)
