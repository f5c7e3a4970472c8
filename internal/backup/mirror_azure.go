package backup

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"

	"github.com/Azure/azure-storage-blob-go/azblob"
)

// AzureMirror implements ArtifactMirror for Azure Blob Storage
type AzureMirror struct {
	serviceURL    azblob.ServiceURL
	containerName string
	prefix        string
}

// NewAzureMirror creates a new AzureMirror instance
func NewAzureMirror(config *AzureConfig) (*AzureMirror, error) {
	if config == nil {
		return nil, fmt.Errorf("azure mirror configuration is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	credential, err := azblob.NewSharedKeyCredential(config.AccountName, config.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credentials: %w", err)
	}

	pipeline := azblob.NewPipeline(credential, azblob.PipelineOptions{})

	serviceURL, err := url.Parse(fmt.Sprintf("https://%s.blob.core.windows.net", config.AccountName))
	if err != nil {
		return nil, fmt.Errorf("failed to parse Azure service URL: %w", err)
	}

	return &AzureMirror{
		serviceURL:    azblob.NewServiceURL(*serviceURL, pipeline),
		containerName: config.ContainerName,
		prefix:        "backups/",
	}, nil
}

// Upload copies one artifact file to Azure Blob Storage
func (m *AzureMirror) Upload(ctx context.Context, localPath, objectName string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("failed to read artifact: %w", err)
	}

	containerURL := m.serviceURL.NewContainerURL(m.containerName)
	blobURL := containerURL.NewBlockBlobURL(m.prefix + objectName)

	_, err = azblob.UploadBufferToBlockBlob(ctx, data, blobURL, azblob.UploadToBlockBlobOptions{
		BlockSize:   4 * 1024 * 1024,
		Parallelism: 16,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to Azure: %w", objectName, err)
	}
	return nil
}

// HealthCheck verifies the container is accessible
func (m *AzureMirror) HealthCheck(ctx context.Context) error {
	containerURL := m.serviceURL.NewContainerURL(m.containerName)
	_, err := containerURL.GetProperties(ctx, azblob.LeaseAccessConditions{})
	if err != nil {
		return fmt.Errorf("azure container not accessible: %w", err)
	}
	return nil
}

// Location describes the remote target
func (m *AzureMirror) Location() string {
	return "azure://" + path.Join(m.containerName, m.prefix)
}
