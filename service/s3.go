package service

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3MediaStore stores note images in S3. Notes reference objects by their
// fully-qualified virtual-hosted URL, so Delete maps a URL back to its key.
type S3MediaStore struct {
	client *s3.Client
	bucket string
	region string
}

func NewS3MediaStore(ctx context.Context, bucket, region, accessKeyID, secretAccessKey string) (*S3MediaStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("AWS_S3_BUCKET is required")
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if accessKeyID != "" && secretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &S3MediaStore{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		region: region,
	}, nil
}

// Upload stores an image under a key namespaced by the owner's email with a
// random component, so concurrent uploads of the same filename never collide.
// Returns the object URL recorded on the note.
func (s *S3MediaStore) Upload(ctx context.Context, ownerEmail, originalFilename string, body io.Reader, contentType string) (string, error) {
	key := "notes/" + ownerEmail + "/" + uuid.New().String() + "-" + filepath.Base(originalFilename)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", err
	}
	return s.objectURL(key), nil
}

// Delete removes the object behind a media URL.
func (s *S3MediaStore) Delete(ctx context.Context, mediaURL string) error {
	key, err := s.keyFromURL(mediaURL)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}

func (s *S3MediaStore) host() string {
	return s.bucket + ".s3." + s.region + ".amazonaws.com"
}

func (s *S3MediaStore) objectURL(key string) string {
	u := url.URL{Scheme: "https", Host: s.host(), Path: "/" + key}
	return u.String()
}

// keyFromURL rejects URLs that do not point into this bucket; a delete must
// never be redirected at a foreign object by a client-supplied URL.
func (s *S3MediaStore) keyFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid media url: %w", err)
	}
	if u.Host != s.host() {
		return "", fmt.Errorf("media url %q is not in bucket %s", raw, s.bucket)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", fmt.Errorf("media url %q has no object key", raw)
	}
	return key, nil
}
