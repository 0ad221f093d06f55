// Package s3 uploads fileset members to an S3-compatible bucket.
package s3

import (
	"context"
	"fmt"
	"os"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Store writes objects to a single bucket.
type Store struct {
	client *s3.Client
	bucket string
}

// Config holds construction parameters. Empty credentials fall back to the
// default AWS credential chain.
type Config struct {
	Region          string
	Bucket          string
	Endpoint        string // optional, e.g. a MinIO URL
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	PathStyle       bool
}

// New creates an S3 store from Config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &Store{client: client, bucket: cfg.Bucket}, nil
}

// Bucket returns the target bucket name.
func (s *Store) Bucket() string { return s.bucket }

// Upload puts f under key, replacing any existing object.
func (s *Store) Upload(ctx context.Context, key string, f *os.File, size int64) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &s.bucket,
		Key:           &key,
		Body:          f,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// Close is a no-op; the S3 client holds no resources.
func (s *Store) Close() error { return nil }
