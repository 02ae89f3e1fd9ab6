// Package s3blob stores evidence images in an S3 bucket.
package s3blob

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// Bucket wraps an S3 client bound to one bucket.
type Bucket struct {
	client *s3.Client
	bucket string
	region string
	logger zerolog.Logger
}

// New loads the default AWS configuration for region and binds bucket.
func New(ctx context.Context, region, bucket string, logger zerolog.Logger) (*Bucket, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	return &Bucket{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		region: region,
		logger: logger.With().Str("component", "s3blob").Logger(),
	}, nil
}

// Name identifies the backend in stored evidence records.
func (b *Bucket) Name() string {
	return "s3"
}

// Put uploads data under key and returns the key and the object URL.
func (b *Bucket) Put(ctx context.Context, key, contentType string, data []byte) (string, string, error) {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to upload object: %w", err)
	}

	url := fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", b.bucket, b.region, key)
	b.logger.Debug().Str("key", key).Msg("evidence stored in s3")

	return key, url, nil
}

// Get downloads the object stored under key.
func (b *Bucket) Get(ctx context.Context, key, _ string) ([]byte, error) {
	output, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download object: %w", err)
	}
	defer output.Body.Close()

	return io.ReadAll(output.Body)
}
