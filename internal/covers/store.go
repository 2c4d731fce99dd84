// Package covers stores book cover images in S3-compatible object storage.
// For production, configure a real endpoint; for development and tests, an
// in-memory gofakes3 backend stands in.
package covers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/smillett/millettbooks/internal/errs"
)

// MaxCoverBytes caps uploaded cover size.
const MaxCoverBytes = 5 << 20 // 5 MiB

// Errors
var (
	ErrCoverNotFound = errs.New(errs.NotFound, "cover image not found")
	// ErrUnsupportedImage rejects uploads that are not JPEG, PNG, or WebP.
	ErrUnsupportedImage = errs.New(errs.InvalidArgument, "cover must be a JPEG, PNG, or WebP image")
	ErrCoverTooLarge    = errs.New(errs.InvalidArgument, "cover image exceeds the size limit")
)

// Store wraps an S3 client with bucket and URL configuration for cover
// image storage.
type Store struct {
	s3Client   *s3.Client
	bucketName string
	publicURL  string
}

// Config holds the configuration for creating a cover store.
type Config struct {
	// Endpoint is the S3 endpoint URL. Leave empty for default AWS S3.
	Endpoint string
	// Region is the AWS region ("auto" for S3-compatible providers).
	Region string
	// AccessKeyID is the S3 access key.
	AccessKeyID string
	// SecretAccessKey is the S3 secret key.
	SecretAccessKey string
	// BucketName is the bucket holding cover objects.
	BucketName string
	// PublicURL is the base URL for publicly accessible objects.
	PublicURL string
	// UsePathStyle enables path-style addressing (required for gofakes3).
	UsePathStyle bool
}

// New creates a cover store with the given configuration.
func New(ctx context.Context, cfg Config) (*Store, error) {
	var opts []func(*config.LoadOptions) error

	opts = append(opts, config.WithRegion(cfg.Region))

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	sdkConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(sdkConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return NewFromS3Client(s3Client, cfg.BucketName, cfg.PublicURL), nil
}

// NewFromS3Client creates a Store from an existing S3 client. Useful for
// tests backed by gofakes3.
func NewFromS3Client(s3Client *s3.Client, bucketName, publicURL string) *Store {
	return &Store{
		s3Client:   s3Client,
		bucketName: bucketName,
		publicURL:  strings.TrimSuffix(publicURL, "/"),
	}
}

// Upload validates and stores a cover image for a book, returning the
// object key to persist on the book record. Re-uploading replaces the
// previous cover at the same key.
func (s *Store) Upload(ctx context.Context, bookID string, content []byte) (string, error) {
	if len(content) > MaxCoverBytes {
		return "", ErrCoverTooLarge
	}
	contentType, ext, ok := sniffImage(content)
	if !ok {
		return "", ErrUnsupportedImage
	}

	key := "covers/" + bookID + ext
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
		ACL:         types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", fmt.Errorf("covers: failed to put object %q: %w", key, err)
	}
	return key, nil
}

// Get retrieves the cover stored under the given key.
// Returns ErrCoverNotFound if the key does not exist.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrCoverNotFound
		}
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return nil, ErrCoverNotFound
		}
		return nil, fmt.Errorf("covers: failed to get object %q: %w", key, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("covers: failed to read object body %q: %w", key, err)
	}
	return data, nil
}

// Delete removes the cover at the given key.
// Returns nil if the object was deleted or did not exist.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("covers: failed to delete object %q: %w", key, err)
	}
	return nil
}

// PublicURL returns the publicly accessible URL for the given key.
func (s *Store) PublicURL(key string) string {
	return s.publicURL + "/" + strings.TrimPrefix(key, "/")
}

// BucketName returns the configured bucket name.
func (s *Store) BucketName() string {
	return s.bucketName
}

// sniffImage identifies the image format from magic bytes. Client-supplied
// content types are not trusted.
func sniffImage(content []byte) (contentType, ext string, ok bool) {
	switch {
	case len(content) >= 3 && bytes.Equal(content[:3], []byte{0xFF, 0xD8, 0xFF}):
		return "image/jpeg", ".jpg", true
	case len(content) >= 8 && bytes.Equal(content[:8], []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}):
		return "image/png", ".png", true
	case len(content) >= 12 && bytes.Equal(content[:4], []byte("RIFF")) && bytes.Equal(content[8:12], []byte("WEBP")):
		return "image/webp", ".webp", true
	}
	return "", "", false
}
