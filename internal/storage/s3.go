package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	cfg "github.com/templui/marketplace/internal/config"
)

var (
	// ErrStorage wraps every object-store backend failure.
	ErrStorage = errors.New("attachment storage failure")
)

const requestTimeout = 10 * time.Second

// AttachmentStore manages the image object of an item, keyed by item ID.
// Clients upload bytes straight to the pre-signed URL; the service never proxies them.
type AttachmentStore interface {
	// UploadURL returns a time-limited pre-signed PUT URL for the object.
	// contentType is bound into the signature when not empty.
	UploadURL(ctx context.Context, key, contentType string) (string, error)

	// Exists reports whether the object is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes the object.
	Delete(ctx context.Context, key string) error

	// PublicURL is the deterministic URL of the object, derived from bucket and key.
	PublicURL(key string) string
}

var _ AttachmentStore = (*S3Storage)(nil)

// S3Storage implements AttachmentStore for S3-compatible storage
// Works with AWS S3, MinIO, DigitalOcean Spaces, Cloudflare R2, etc.
type S3Storage struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	bucket        string
	publicURL     string // Base URL for generating object URLs
	uploadExpiry  time.Duration
}

// S3Config holds configuration for S3 storage
type S3Config struct {
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	Endpoint     string // Optional: for S3-compatible services
	PathStyle    bool
	UploadExpiry time.Duration
}

// New creates the attachment store from app config and makes sure the bucket exists.
// For development: Use MinIO
// For production: Use any S3-compatible cloud provider
func New(ctx context.Context, c *cfg.Config) (*S3Storage, error) {
	slog.Info("initializing S3 storage",
		"bucket", c.S3Bucket,
		"region", c.S3Region,
		"endpoint", c.S3Endpoint,
	)

	storage, err := NewS3Storage(ctx, S3Config{
		Region:       c.S3Region,
		Bucket:       c.S3Bucket,
		AccessKey:    c.S3AccessKey,
		SecretKey:    c.S3SecretKey,
		Endpoint:     c.S3Endpoint,
		PathStyle:    c.S3PathStyle,
		UploadExpiry: c.S3UploadExpiry,
	})
	if err != nil {
		return nil, err
	}

	err = storage.EnsureBucket(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure bucket exists: %w", err)
	}

	return storage, nil
}

// NewS3Storage creates a new S3 storage instance without touching the network
func NewS3Storage(ctx context.Context, c S3Config) (*S3Storage, error) {
	if c.Bucket == "" {
		return nil, errors.New("bucket is empty")
	}
	if c.UploadExpiry <= 0 {
		return nil, errors.New("upload expiry must be positive")
	}

	var opts []func(*config.LoadOptions) error
	opts = append(opts, config.WithRegion(c.Region))

	if c.AccessKey != "" && c.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
		}
		o.UsePathStyle = c.PathStyle
	})

	var publicURL string
	switch {
	case c.Endpoint == "":
		publicURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", c.Bucket, c.Region)
	case c.PathStyle:
		publicURL = strings.TrimSuffix(c.Endpoint, "/") + "/" + c.Bucket
	default:
		scheme, host, ok := strings.Cut(strings.TrimSuffix(c.Endpoint, "/"), "://")
		if !ok {
			return nil, fmt.Errorf("endpoint %q has no scheme", c.Endpoint)
		}
		publicURL = scheme + "://" + c.Bucket + "." + host
	}

	return &S3Storage{
		client:        client,
		presignClient: s3.NewPresignClient(client),
		bucket:        c.Bucket,
		publicURL:     publicURL,
		uploadExpiry:  c.UploadExpiry,
	}, nil
}

// EnsureBucket checks if bucket exists, creates it if not
func (s *S3Storage) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return nil
	}

	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("bucket %q does not exist and could not be created: %w", s.bucket, err)
	}

	slog.Info("created S3 bucket", "bucket", s.bucket)
	return nil
}

func (s *S3Storage) UploadURL(ctx context.Context, key, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}

	req, err := s.presignClient.PresignPutObject(ctx, input, func(opts *s3.PresignOptions) {
		opts.Expires = s.uploadExpiry
		if contentType != "" {
			opts.ClientOptions = append(opts.ClientOptions, func(o *s3.Options) {
				o.APIOptions = append(o.APIOptions, signContentType(contentType))
			})
		}
	})
	if err != nil {
		return "", fmt.Errorf("%w: presign put %s: %w", ErrStorage, key, err)
	}

	return req.URL, nil
}

// signContentType puts the Content-Type header back on the presign request
// after the SDK strips it from bodiless requests, so the signer covers it and
// S3 rejects an upload declaring any other type.
func signContentType(contentType string) func(*middleware.Stack) error {
	return func(stack *middleware.Stack) error {
		return stack.Build.Add(middleware.BuildMiddlewareFunc("SignContentType",
			func(ctx context.Context, in middleware.BuildInput, next middleware.BuildHandler) (middleware.BuildOutput, middleware.Metadata, error) {
				req, ok := in.Request.(*smithyhttp.Request)
				if !ok {
					return middleware.BuildOutput{}, middleware.Metadata{}, fmt.Errorf("unexpected transport type %T", in.Request)
				}
				req.Header.Set("Content-Type", contentType)
				return next.HandleBuild(ctx, in)
			}), middleware.After)
	}
}

func (s *S3Storage) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}

	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}

	return false, fmt.Errorf("%w: head %s: %w", ErrStorage, key, err)
}

func (s *S3Storage) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("%w: delete %s: %w", ErrStorage, key, err)
	}

	return nil
}

func (s *S3Storage) PublicURL(key string) string {
	return fmt.Sprintf("%s/%s", s.publicURL, key)
}
