package config

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/zoobzio/parcel"
	"github.com/zoobzio/parcel/azure"
	"github.com/zoobzio/parcel/gcs"
	parcelminio "github.com/zoobzio/parcel/minio"
	parcels3 "github.com/zoobzio/parcel/s3"
	"google.golang.org/api/option"
)

// Backend is an opened object store client that hands out Stores per bucket.
type Backend struct {
	name     string
	provider func(bucket string) parcel.BucketProvider
	opts     []parcel.StoreOption
	close    func() error
}

// Name returns the backend kind, one of the Backend* constants.
func (b *Backend) Name() string {
	return b.name
}

// Stores builds a Store for bucket with keys under prefix.
// It satisfies parcel.StoreFactory.
func (b *Backend) Stores(bucket, prefix string) (*parcel.Store, error) {
	if bucket == "" {
		return nil, parcel.ErrNoProvider
	}
	opts := append([]parcel.StoreOption{parcel.WithPrefix(prefix)}, b.opts...)
	return parcel.NewStore(b.provider(bucket), opts...), nil
}

// Close releases the underlying client.
func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// Open validates cfg and builds the client for its backend.
func Open(ctx context.Context, cfg Config) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := &Backend{name: cfg.Backend, opts: cfg.StoreOptions()}

	var err error
	switch cfg.Backend {
	case BackendS3:
		err = openS3(ctx, cfg, b)
	case BackendMinio:
		err = openMinio(cfg, b)
	case BackendGCS:
		err = openGCS(ctx, cfg, b)
	case BackendAzure:
		err = openAzure(cfg, b)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.Backend, err)
	}
	return b, nil
}

func openS3(ctx context.Context, cfg Config, b *Backend) error {
	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	b.provider = func(bucket string) parcel.BucketProvider {
		return parcels3.New(client, bucket)
	}
	return nil
}

func openMinio(cfg Config, b *Backend) error {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     miniocreds.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return err
	}
	b.provider = func(bucket string) parcel.BucketProvider {
		return parcelminio.New(client, bucket)
	}
	return nil
}

func openGCS(ctx context.Context, cfg Config, b *Backend) error {
	var clientOpts []option.ClientOption
	if cfg.Endpoint != "" {
		// Custom endpoints are emulators, which take no credentials.
		clientOpts = append(clientOpts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	}

	var providerOpts []gcs.Option
	if cfg.UniformAccess {
		providerOpts = append(providerOpts, gcs.WithUniformAccess())
	}
	if cfg.SignerEmail != "" {
		key, err := os.ReadFile(cfg.SignerKeyFile)
		if err != nil {
			return fmt.Errorf("read signer key: %w", err)
		}
		providerOpts = append(providerOpts, gcs.WithSigner(cfg.SignerEmail, key))
	}

	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return err
	}
	b.provider = func(bucket string) parcel.BucketProvider {
		return gcs.New(client, bucket, providerOpts...)
	}
	b.close = client.Close
	return nil
}

func openAzure(cfg Config, b *Backend) error {
	cred, err := azblob.NewSharedKeyCredential(cfg.Account, cfg.AccessKey)
	if err != nil {
		return err
	}
	serviceURL := cfg.Endpoint
	if serviceURL == "" {
		serviceURL = "https://" + cfg.Account + ".blob.core.windows.net/"
	}
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, &azblob.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{MaxRetries: 3},
		},
	})
	if err != nil {
		return err
	}
	b.provider = func(bucket string) parcel.BucketProvider {
		return azure.New(client, bucket)
	}
	return nil
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
