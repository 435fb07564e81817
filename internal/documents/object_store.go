package documents

import (
	"bytes"
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	apperrors "machtms/internal/errors"
)

// ObjectStore abstracts the two buckets the pipeline reads and writes.
type ObjectStore interface {
	Put(ctx context.Context, bucket, key string, body []byte, contentType string) error
	Get(ctx context.Context, bucket, key string) ([]byte, error)
}

// S3ObjectStore talks to AWS S3.
type S3ObjectStore struct {
	client *s3.Client
}

// NewS3ObjectStore builds the store from the ambient AWS credential
// chain.
func NewS3ObjectStore(ctx context.Context, region string) (*S3ObjectStore, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInitializationFailure, err, "load aws config")
	}
	return &S3ObjectStore{client: s3.NewFromConfig(cfg)}, nil
}

// Put uploads the payload.
func (s *S3ObjectStore) Put(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return apperrors.Wrap(apperrors.CodeExternalService, err,
			"upload object "+key+" to "+bucket)
	}
	return nil
}

// Get downloads the full object.
func (s *S3ObjectStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeExternalService, err,
			"download object "+key+" from "+bucket)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeExternalService, err,
			"read object "+key)
	}
	return data, nil
}

var _ ObjectStore = (*S3ObjectStore)(nil)
