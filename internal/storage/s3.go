package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config selects the bucket shared generations go to.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // S3-compatible endpoint such as MinIO; path-style when set
	AccessKeyID     string // static credentials; the default AWS chain otherwise
	SecretAccessKey string
}

func (c S3Config) loadOptions() []func(*config.LoadOptions) error {
	opts := []func(*config.LoadOptions) error{config.WithRegion(c.Region)}
	if c.AccessKeyID != "" && c.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, ""),
		))
	}
	return opts
}

func (c S3Config) clientOptions() []func(*s3.Options) {
	if c.Endpoint == "" {
		return nil
	}
	return []func(*s3.Options){func(o *s3.Options) {
		o.BaseEndpoint = aws.String(c.Endpoint)
		o.UsePathStyle = true
	}}
}

// S3Storage keeps scratch files locally and publishes to a bucket.
type S3Storage struct {
	*LocalStorage
	client *s3.Client
	cfg    S3Config
}

// NewS3Storage builds the S3 client from cfg and the scratch area in tempDir.
func NewS3Storage(tempDir string, cfg S3Config) (*S3Storage, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, ErrBucketRequired
	}

	local, err := NewLocalStorage(tempDir)
	if err != nil {
		return nil, err
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), cfg.loadOptions()...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	return &S3Storage{
		LocalStorage: local,
		client:       s3.NewFromConfig(awsCfg, cfg.clientOptions()...),
		cfg:          cfg,
	}, nil
}

// S3Enabled reports true.
func (s *S3Storage) S3Enabled() bool { return true }

// UploadToS3 puts data at key and returns where it can be fetched.
func (s *S3Storage) UploadToS3(ctx context.Context, key, contentType string, data io.Reader) (string, error) {
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
		Body:   data,
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("upload %s to S3: %w", key, err)
	}
	return s.objectURL(key), nil
}

func (s *S3Storage) objectURL(key string) string {
	if s.cfg.Endpoint != "" {
		return s.cfg.Endpoint + "/" + s.cfg.Bucket + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, key)
}
