// Package media stores user images (avatars, cover images) in S3-compatible
// object storage and hands back their public URLs.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

var (
	ErrEmpty       = errors.New("image is empty")
	ErrTooLarge    = errors.New("image is too large")
	ErrNotAnImage  = errors.New("file is not an image")
	ErrForeignURL  = errors.New("url does not belong to this store")
	ErrUnavailable = errors.New("media storage unavailable")
)

// Test seams over the AWS SDK.
var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}

	deleteObject = func(c *s3.Client, ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
		return c.DeleteObject(ctx, in, optFns...)
	}
)

type Config struct {
	AccessKey    string
	SecretKey    string
	Bucket       string
	Region       string
	BaseEndpoint string
	// PublicURL prefixes returned object URLs; BaseEndpoint when empty.
	PublicURL string
	MaxBytes  int64
}

// Image is an uploaded file as received from a client.
type Image struct {
	Filename string
	Data     []byte
}

type S3Store struct {
	client    *s3.Client
	bucket    string
	publicURL string
	maxBytes  int64
	now       func() time.Time
}

func NewS3Store(ctx context.Context, c Config) (*S3Store, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(c.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if c.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(c.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	public := c.PublicURL
	if public == "" {
		public = c.BaseEndpoint
	}

	return &S3Store{
		client:    client,
		bucket:    c.Bucket,
		publicURL: strings.TrimRight(public, "/"),
		maxBytes:  c.MaxBytes,
		now:       time.Now,
	}, nil
}

// Check validates img without uploading it and returns its content type.
func (s *S3Store) Check(img Image) (string, error) {
	if len(img.Data) == 0 {
		return "", ErrEmpty
	}
	if s.maxBytes > 0 && int64(len(img.Data)) > s.maxBytes {
		return "", fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, len(img.Data), s.maxBytes)
	}
	ct := http.DetectContentType(img.Data)
	if !strings.HasPrefix(ct, "image/") {
		return "", fmt.Errorf("%w: %s", ErrNotAnImage, ct)
	}
	return ct, nil
}

// Upload stores img under prefix and returns its public URL.
func (s *S3Store) Upload(ctx context.Context, prefix string, img Image) (string, error) {
	ct, err := s.Check(img)
	if err != nil {
		return "", err
	}

	key := s.objectKey(prefix, ct)
	_, err = putObject(s.client, ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(img.Data),
		ContentLength: aws.Int64(int64(len(img.Data))),
		ContentType:   aws.String(ct),
	})
	if err != nil {
		return "", fmt.Errorf("%w: put %s: %v", ErrUnavailable, key, err)
	}

	return s.publicURL + "/" + s.bucket + "/" + key, nil
}

// Delete removes the object behind a URL previously returned by Upload.
func (s *S3Store) Delete(ctx context.Context, url string) error {
	prefix := s.publicURL + "/" + s.bucket + "/"
	if !strings.HasPrefix(url, prefix) {
		return ErrForeignURL
	}
	key := strings.TrimPrefix(url, prefix)

	_, err := deleteObject(s.client, ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("%w: delete %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

func (s *S3Store) objectKey(prefix, contentType string) string {
	d := s.now()
	ext := ""
	if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
		ext = exts[0]
	}
	return fmt.Sprintf("%s/%d/%d/%d/%v%s", prefix, d.Year(), d.Month(), d.Day(), uuid.New(), ext)
}
