package backup

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// S3Mirror implements ArtifactMirror for Amazon S3
type S3Mirror struct {
	client *s3.S3
	bucket string
	prefix string
}

// NewS3Mirror creates a new S3Mirror instance
func NewS3Mirror(config *S3Config) (*S3Mirror, error) {
	if config == nil {
		return nil, fmt.Errorf("s3 mirror configuration is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(config.Region),
		Credentials: credentials.NewStaticCredentials(
			config.AccessKey,
			config.SecretKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &S3Mirror{
		client: s3.New(sess),
		bucket: config.Bucket,
		prefix: "backups/",
	}, nil
}

// Upload copies one artifact file to S3
func (m *S3Mirror) Upload(ctx context.Context, localPath, objectName string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open artifact: %w", err)
	}
	defer file.Close()

	_, err = m.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.prefix + objectName),
		Body:   file,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to S3: %w", objectName, err)
	}
	return nil
}

// HealthCheck verifies the bucket is accessible
func (m *S3Mirror) HealthCheck(ctx context.Context) error {
	_, err := m.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(m.bucket),
	})
	if err != nil {
		return fmt.Errorf("s3 bucket not accessible: %w", err)
	}
	return nil
}

// Location describes the remote target
func (m *S3Mirror) Location() string {
	return "s3://" + path.Join(m.bucket, m.prefix)
}
