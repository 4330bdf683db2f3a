package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"gridlake/internal/config"
)

// Uploader pushes finished export artifacts to an S3-compatible bucket.
type Uploader struct {
	client *s3.Client
	bucket string
	logger *slog.Logger
}

// NewUploader builds an uploader from static credentials. The endpoint is
// used path-style so MinIO and similar services work out of the box.
func NewUploader(cfg *config.S3Config, logger *slog.Logger) *Uploader {
	client := s3.New(s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.KeyID, cfg.Secret, ""),
		BaseEndpoint: aws.String(cfg.Endpoint),
		UsePathStyle: true,
	})
	return &Uploader{
		client: client,
		bucket: cfg.Bucket,
		logger: logger.With("component", "s3-uploader"),
	}
}

// Upload streams a local file to the configured bucket under key and
// returns the resulting s3:// URI.
func (u *Uploader) Upload(ctx context.Context, path, key string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close() //nolint:errcheck

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}

	uri := fmt.Sprintf("s3://%s/%s", u.bucket, key)
	u.logger.Info("uploaded export artifact", "key", key, "uri", uri)
	return uri, nil
}
