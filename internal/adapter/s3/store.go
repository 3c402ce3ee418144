package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/neomorfeo/taxireg/internal/domain"
	"github.com/neomorfeo/taxireg/internal/platform/config"
)

// Compile-time check: Store implements domain.ObjectStore.
var _ domain.ObjectStore = (*Store)(nil)

// Store implements domain.ObjectStore on Amazon S3 or any S3-compatible
// endpoint.
type Store struct {
	client *s3.Client
}

// New builds a store from the default AWS credential chain. A custom
// endpoint (e.g. MinIO or LocalStack) is used when configured.
func New(ctx context.Context, cfg config.S3Config) (*Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return NewFromClient(client), nil
}

// NewFromClient wraps a pre-configured S3 client.
func NewFromClient(client *s3.Client) *Store {
	return &Store{client: client}
}

// Head returns the user metadata of the object with lower-cased keys.
func (s *Store) Head(ctx context.Context, bucket, key string) (domain.ObjectMetadata, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapError("head", bucket, key, err)
	}

	meta := make(domain.ObjectMetadata, len(out.Metadata))
	for k, v := range out.Metadata {
		meta[strings.ToLower(k)] = v
	}
	return meta, nil
}

func (s *Store) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapError("get", bucket, key, err)
	}
	return out.Body, nil
}

func (s *Store) Put(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return mapError("put", bucket, key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, bucket, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return mapError("delete", bucket, key, err)
	}
	return nil
}

func mapError(op, bucket, key string, err error) error {
	var (
		noSuchKey *types.NoSuchKey
		notFound  *types.NotFound
	)
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return fmt.Errorf("%s s3://%s/%s: %w", op, bucket, key, domain.ErrObjectNotFound)
	}
	return fmt.Errorf("%s s3://%s/%s: %w", op, bucket, key, err)
}
