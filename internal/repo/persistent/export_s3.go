package persistent

import (
	"context"
	"fmt"
	"io"

	"github.com/andreyxaxa/order-relay/pkg/s3client"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ExportRepo writes export files into one bucket.
type ExportRepo struct {
	*s3client.S3Client
	bucket string
}

func NewExportRepo(s3c *s3client.S3Client, bucket string) *ExportRepo {
	return &ExportRepo{s3c, bucket}
}

func (r *ExportRepo) Upload(ctx context.Context, key string, data io.Reader, contentType string, size int64) error {
	_, err := r.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(r.bucket),
		Key:           aws.String(key),
		Body:          data,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("ExportRepo - Upload - r.Client.PutObject: %w", err)
	}

	return nil
}
