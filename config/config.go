// Package config loads parcel backend settings from a YAML file and the
// environment, and opens the configured object store backend.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/zoobzio/parcel"
	"github.com/zoobzio/parcel/internal/env"
	"gopkg.in/yaml.v3"
)

// Supported backends.
const (
	BackendS3    = "s3"
	BackendMinio = "minio"
	BackendGCS   = "gcs"
	BackendAzure = "azure"
)

// SSENone disables server-side encryption headers on writes.
const SSENone = "none"

// Config holds the settings needed to reach one object store backend.
type Config struct {
	Backend string `yaml:"backend"`
	Bucket  string `yaml:"bucket"`
	Prefix  string `yaml:"prefix"`

	URLExpiry            time.Duration `yaml:"url_expiry"`
	ACL                  string        `yaml:"acl"`
	ServerSideEncryption string        `yaml:"server_side_encryption"`
	KMSKeyID             string        `yaml:"kms_key_id"`

	// S3 and MinIO. Endpoint is a URL for s3 and host:port for minio.
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`

	// GCS.
	UniformAccess bool   `yaml:"uniform_access"`
	SignerEmail   string `yaml:"signer_email"`
	SignerKeyFile string `yaml:"signer_key_file"`

	// Azure. AccessKey holds the shared account key.
	Account string `yaml:"account"`
}

// Default returns the settings used before any file or environment override.
func Default() Config {
	return Config{
		Backend:              BackendS3,
		URLExpiry:            parcel.DefaultURLExpiry,
		ACL:                  parcel.ACLPrivate,
		ServerSideEncryption: parcel.SSEKMS,
		Region:               "us-east-1",
		UseSSL:               true,
	}
}

// Load reads path, if given, over the defaults, applies PARCEL_* environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Backend = env.String("PARCEL_BACKEND", c.Backend)
	c.Bucket = env.String("PARCEL_BUCKET", c.Bucket)
	c.Prefix = env.String("PARCEL_PREFIX", c.Prefix)
	c.ACL = env.String("PARCEL_ACL", c.ACL)
	c.ServerSideEncryption = env.String("PARCEL_SSE", c.ServerSideEncryption)
	c.KMSKeyID = env.String("PARCEL_KMS_KEY_ID", c.KMSKeyID)
	c.Region = env.String("PARCEL_REGION", c.Region)
	c.Endpoint = env.String("PARCEL_ENDPOINT", c.Endpoint)
	c.AccessKey = env.String("PARCEL_ACCESS_KEY", c.AccessKey)
	c.SecretKey = env.String("PARCEL_SECRET_KEY", c.SecretKey)
	c.SignerEmail = env.String("PARCEL_GCS_SIGNER_EMAIL", c.SignerEmail)
	c.SignerKeyFile = env.String("PARCEL_GCS_SIGNER_KEY_FILE", c.SignerKeyFile)
	c.Account = env.String("PARCEL_AZURE_ACCOUNT", c.Account)

	var err error
	if c.URLExpiry, err = env.Duration("PARCEL_URL_EXPIRY", c.URLExpiry); err != nil {
		return err
	}
	if c.UseSSL, err = env.Bool("PARCEL_USE_SSL", c.UseSSL); err != nil {
		return err
	}
	if c.UniformAccess, err = env.Bool("PARCEL_GCS_UNIFORM_ACCESS", c.UniformAccess); err != nil {
		return err
	}
	return nil
}

// Validate reports the first setting that cannot open a backend.
func (c Config) Validate() error {
	if c.URLExpiry < 0 || c.URLExpiry > parcel.MaxURLExpiry {
		return fmt.Errorf("url expiry must be between 0 and %s", parcel.MaxURLExpiry)
	}
	switch c.ServerSideEncryption {
	case "", SSENone, parcel.SSEKMS, parcel.SSEAES256:
	default:
		return fmt.Errorf("unsupported server side encryption %q", c.ServerSideEncryption)
	}

	switch c.Backend {
	case BackendS3:
		if c.Endpoint != "" && !strings.Contains(c.Endpoint, "://") {
			return fmt.Errorf("s3 endpoint must include scheme: %q", c.Endpoint)
		}
		if (c.AccessKey == "") != (c.SecretKey == "") {
			return errors.New("access key and secret key must be set together")
		}
	case BackendMinio:
		if strings.TrimSpace(c.Endpoint) == "" {
			return errors.New("endpoint is required")
		}
		if strings.Contains(c.Endpoint, "://") {
			return fmt.Errorf("endpoint must not include scheme: %q", c.Endpoint)
		}
		if strings.TrimSpace(c.AccessKey) == "" {
			return errors.New("access key is required")
		}
		if strings.TrimSpace(c.SecretKey) == "" {
			return errors.New("secret key is required")
		}
	case BackendGCS:
		if (c.SignerEmail == "") != (c.SignerKeyFile == "") {
			return errors.New("signer email and signer key file must be set together")
		}
	case BackendAzure:
		if strings.TrimSpace(c.Account) == "" {
			return errors.New("azure account is required")
		}
		if strings.TrimSpace(c.AccessKey) == "" {
			return errors.New("azure account key is required")
		}
	default:
		return fmt.Errorf("unsupported backend %q", c.Backend)
	}
	return nil
}

// StoreOptions returns the write policy every Store opened from c applies.
func (c Config) StoreOptions() []parcel.StoreOption {
	sse := c.ServerSideEncryption
	if sse == SSENone {
		sse = ""
	}
	return []parcel.StoreOption{
		parcel.WithWriteOptions(parcel.WriteOptions{
			ACL:                  c.ACL,
			ServerSideEncryption: sse,
			KMSKeyID:             c.KMSKeyID,
		}),
	}
}

// PublisherOptions returns the Publisher settings derived from c.
func (c Config) PublisherOptions() []parcel.PublisherOption {
	return []parcel.PublisherOption{parcel.WithURLExpiry(c.URLExpiry)}
}
