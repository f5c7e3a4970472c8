package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSMirror implements ArtifactMirror for Google Cloud Storage
type GCSMirror struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSMirror creates a new GCSMirror instance
func NewGCSMirror(ctx context.Context, config *GCSConfig) (*GCSMirror, error) {
	if config == nil {
		return nil, fmt.Errorf("gcs mirror configuration is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var client *storage.Client
	var err error
	if config.CredentialsPath != "" {
		client, err = storage.NewClient(ctx, option.WithCredentialsFile(config.CredentialsPath))
	} else {
		client, err = storage.NewClient(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSMirror{
		client: client,
		bucket: config.Bucket,
		prefix: "backups/",
	}, nil
}

// Upload copies one artifact file to Google Cloud Storage
func (m *GCSMirror) Upload(ctx context.Context, localPath, objectName string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open artifact: %w", err)
	}
	defer file.Close()

	writer := m.client.Bucket(m.bucket).Object(m.prefix + objectName).NewWriter(ctx)
	if _, err := io.Copy(writer, file); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write %s to GCS: %w", objectName, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to upload %s to GCS: %w", objectName, err)
	}
	return nil
}

// HealthCheck verifies the bucket is accessible
func (m *GCSMirror) HealthCheck(ctx context.Context) error {
	_, err := m.client.Bucket(m.bucket).Attrs(ctx)
	if err != nil {
		return fmt.Errorf("gcs bucket not accessible: %w", err)
	}
	return nil
}

// Location describes the remote target
func (m *GCSMirror) Location() string {
	return "gs://" + path.Join(m.bucket, m.prefix)
}
