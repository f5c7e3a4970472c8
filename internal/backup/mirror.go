package backup

import (
	"context"
	"fmt"
	"strings"
)

// ArtifactMirror copies finished artifacts to an offsite object store.
// Mirroring is best effort: a failed upload is logged and does not change
// the run outcome.
type ArtifactMirror interface {
	// Upload copies one local artifact file to the remote store under the
	// given object name.
	Upload(ctx context.Context, localPath, objectName string) error

	// HealthCheck verifies that the remote store is reachable and writable
	HealthCheck(ctx context.Context) error

	// Location describes the remote target for logging
	Location() string
}

// MirrorConfig selects and configures the offsite mirror provider
type MirrorConfig struct {
	Provider string       `mapstructure:"provider" yaml:"provider"`
	S3       *S3Config    `mapstructure:"s3" yaml:"s3,omitempty"`
	Azure    *AzureConfig `mapstructure:"azure" yaml:"azure,omitempty"`
	GCS      *GCSConfig   `mapstructure:"gcs" yaml:"gcs,omitempty"`
}

// Enabled reports whether a mirror provider has been configured
func (c *MirrorConfig) Enabled() bool {
	return c != nil && c.Provider != "" && c.Provider != "none"
}

// S3Config holds Amazon S3 mirror settings
type S3Config struct {
	Region    string `mapstructure:"region" yaml:"region"`
	Bucket    string `mapstructure:"bucket" yaml:"bucket"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
}

// Validate checks the S3 mirror configuration
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("s3 bucket is required")
	}
	if c.Region == "" {
		return fmt.Errorf("s3 region is required")
	}
	return nil
}

// AzureConfig holds Azure Blob Storage mirror settings
type AzureConfig struct {
	AccountName   string `mapstructure:"account_name" yaml:"account_name"`
	AccountKey    string `mapstructure:"account_key" yaml:"account_key"`
	ContainerName string `mapstructure:"container_name" yaml:"container_name"`
}

// Validate checks the Azure mirror configuration
func (c *AzureConfig) Validate() error {
	if c.AccountName == "" || c.AccountKey == "" {
		return fmt.Errorf("azure account name and key are required")
	}
	if c.ContainerName == "" {
		return fmt.Errorf("azure container name is required")
	}
	return nil
}

// GCSConfig holds Google Cloud Storage mirror settings
type GCSConfig struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	CredentialsPath string `mapstructure:"credentials_path" yaml:"credentials_path"`
}

// Validate checks the GCS mirror configuration
func (c *GCSConfig) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("gcs bucket is required")
	}
	return nil
}

// NewArtifactMirror creates the configured mirror provider. A disabled
// configuration yields a nil mirror, which the runner treats as "do not
// mirror".
func NewArtifactMirror(ctx context.Context, config *MirrorConfig) (ArtifactMirror, error) {
	if !config.Enabled() {
		return nil, nil
	}

	switch strings.ToLower(config.Provider) {
	case "s3":
		return NewS3Mirror(config.S3)
	case "azure":
		return NewAzureMirror(config.Azure)
	case "gcs":
		return NewGCSMirror(ctx, config.GCS)
	default:
		return nil, fmt.Errorf("unsupported mirror provider: %s", config.Provider)
	}
}
