// Package s3 stores job inputs and outputs in an S3-compatible bucket.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/custodia-labs/imdeck/internal/core/domain"
	"github.com/custodia-labs/imdeck/internal/core/ports/driven"
	"github.com/custodia-labs/imdeck/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.BlobStore = (*Store)(nil)

// DefaultRegion is used when no region is configured.
const DefaultRegion = "us-east-1"

// Config holds S3 connection settings.
type Config struct {
	// Bucket is the bucket name (required).
	Bucket string

	// Region is the bucket region (default: us-east-1).
	Region string

	// Endpoint overrides the AWS endpoint, e.g. a MinIO server.
	// A custom endpoint switches to path-style addressing.
	Endpoint string

	// PublicEndpoint is the endpoint presigned URLs are issued for.
	// Defaults to Endpoint. Useful when the server reaches storage on an
	// internal host name that browsers cannot resolve.
	PublicEndpoint string

	// AccessKey and SecretKey are static credentials.
	// Both empty means anonymous access.
	AccessKey string
	SecretKey string

	// HTTPClient overrides the transport.
	HTTPClient *http.Client
}

// Store is a driven.BlobStore backed by S3.
type Store struct {
	client    *awss3.Client
	presigner *awss3.PresignClient
	bucket    string
}

// New creates an S3 blob store. No request is made.
func New(cfg Config) (*Store, error) {
	cfg.Bucket = strings.TrimSpace(cfg.Bucket)
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: s3 bucket is required", domain.ErrInvalidInput)
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if (cfg.AccessKey == "") != (cfg.SecretKey == "") {
		return nil, fmt.Errorf("%w: s3 access key and secret key must be set together", domain.ErrInvalidInput)
	}

	endpoint, err := normalizeEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	publicEndpoint := endpoint
	if cfg.PublicEndpoint != "" {
		if publicEndpoint, err = normalizeEndpoint(cfg.PublicEndpoint); err != nil {
			return nil, err
		}
	}

	client := awss3.New(clientOptions(cfg, endpoint))
	presignClient := client
	if publicEndpoint != endpoint {
		presignClient = awss3.New(clientOptions(cfg, publicEndpoint))
	}

	return &Store{
		client:    client,
		presigner: awss3.NewPresignClient(presignClient),
		bucket:    cfg.Bucket,
	}, nil
}

func clientOptions(cfg Config, endpoint string) awss3.Options {
	opts := awss3.Options{
		Region:                     cfg.Region,
		RetryMaxAttempts:           1,
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	}
	if cfg.AccessKey != "" {
		opts.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
	} else {
		opts.Credentials = aws.AnonymousCredentials{}
	}
	if endpoint != "" {
		opts.BaseEndpoint = aws.String(endpoint)
		opts.UsePathStyle = true
	}
	if cfg.HTTPClient != nil {
		opts.HTTPClient = cfg.HTTPClient
	}
	return opts
}

// normalizeEndpoint adds a scheme when missing and strips the trailing slash.
func normalizeEndpoint(raw string) (string, error) {
	endpoint := strings.TrimSpace(raw)
	if endpoint == "" {
		return "", nil
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	endpoint = strings.TrimSuffix(endpoint, "/")

	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Host == "" {
		return "", fmt.Errorf("%w: invalid s3 endpoint: %s", domain.ErrInvalidInput, raw)
	}
	return endpoint, nil
}

// EnsureBucket creates the bucket if it does not exist.
func (s *Store) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &awss3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("s3: head bucket %s: %w", s.bucket, err)
	}

	if _, err := s.client.CreateBucket(ctx, &awss3.CreateBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("s3: create bucket %s: %w", s.bucket, err)
	}
	logger.Info("Created bucket %s", s.bucket)
	return nil
}

// Put uploads data under key.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3: put %s: %w", key, err)
	}
	return nil
}

// Get downloads the object stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%s: %w", key, domain.ErrBlobNotFound)
		}
		return nil, fmt.Errorf("s3: get %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3: read %s: %w", key, err)
	}
	return data, nil
}

// Exists reports whether key is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("s3: head %s: %w", key, err)
}

// Delete removes the object. S3 reports success for missing keys.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("s3: delete %s: %w", key, err)
	}
	return nil
}

// PresignGet returns a time-limited download URL for key.
// The object must exist.
func (s *Store) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	ok, err := s.Exists(ctx, key)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%s: %w", key, domain.ErrBlobNotFound)
	}

	req, err := s.presigner.PresignGetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, awss3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("s3: presign %s: %w", key, err)
	}
	return req.URL, nil
}

// isNotFound matches NoSuchKey, NoSuchBucket and bodiless 404s from HEAD.
func isNotFound(err error) bool {
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		return re.HTTPStatusCode() == http.StatusNotFound
	}
	return false
}
