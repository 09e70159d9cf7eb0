// Package objectstore wraps the S3-compatible backend behind the operations
// the ingestion services need: single-shot puts, multipart uploads for
// resumable sessions, server-side copies and deletes.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	sc "github.com/love-developer/eras/internal/server/config"
)

// Test seams over the SDK calls.
var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in)
	}
	createMultipartUpload = func(c *s3.Client, ctx context.Context, in *s3.CreateMultipartUploadInput) (*s3.CreateMultipartUploadOutput, error) {
		return c.CreateMultipartUpload(ctx, in)
	}
	uploadPart = func(c *s3.Client, ctx context.Context, in *s3.UploadPartInput) (*s3.UploadPartOutput, error) {
		return c.UploadPart(ctx, in)
	}
	completeMultipartUpload = func(c *s3.Client, ctx context.Context, in *s3.CompleteMultipartUploadInput) (*s3.CompleteMultipartUploadOutput, error) {
		return c.CompleteMultipartUpload(ctx, in)
	}
	abortMultipartUpload = func(c *s3.Client, ctx context.Context, in *s3.AbortMultipartUploadInput) (*s3.AbortMultipartUploadOutput, error) {
		return c.AbortMultipartUpload(ctx, in)
	}
	copyObject = func(c *s3.Client, ctx context.Context, in *s3.CopyObjectInput) (*s3.CopyObjectOutput, error) {
		return c.CopyObject(ctx, in)
	}
	headObject = func(c *s3.Client, ctx context.Context, in *s3.HeadObjectInput) (*s3.HeadObjectOutput, error) {
		return c.HeadObject(ctx, in)
	}
	getObject = func(c *s3.Client, ctx context.Context, in *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
		return c.GetObject(ctx, in)
	}
	deleteObject = func(c *s3.Client, ctx context.Context, in *s3.DeleteObjectInput) (*s3.DeleteObjectOutput, error) {
		return c.DeleteObject(ctx, in)
	}
)

// Store is the storage surface consumed by the services.
type Store interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) error
	InitMultipart(ctx context.Context, key, contentType string) (string, error)
	PutPart(ctx context.Context, key, uploadID string, partNumber int32, data []byte) (string, error)
	CompleteMultipart(ctx context.Context, key, uploadID string, etags []string) error
	AbortMultipart(ctx context.Context, key, uploadID string) error
	Copy(ctx context.Context, srcKey, dstKey string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	SizeOf(ctx context.Context, key string) (int64, error)
	Remove(ctx context.Context, key string) error
	PublicURL(key string) string
}

// S3Store implements Store on an S3-compatible backend.
type S3Store struct {
	client *s3.Client
	bucket string
	// publicBase is the externally reachable URL prefix for stored objects.
	publicBase string
}

func NewS3Store(ctx context.Context, c *sc.Config) (*S3Store, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(c.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.S3RootUser,
			c.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(c.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return &S3Store{
		client:     client,
		bucket:     c.S3Bucket,
		publicBase: strings.TrimRight(c.PublicBaseURL, "/"),
	}, nil
}

// RandomStorageKey generates a dated object key, keeping listings browsable
// by upload day.
func RandomStorageKey() string {
	d := time.Now()
	return fmt.Sprintf("media/%d/%02d/%02d/%v", d.Year(), d.Month(), d.Day(), uuid.New())
}

func (s *S3Store) Put(ctx context.Context, key, contentType string, r io.Reader) error {
	_, err := putObject(s.client, ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        r,
		ContentType: &contentType,
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

func (s *S3Store) InitMultipart(ctx context.Context, key, contentType string) (string, error) {
	out, err := createMultipartUpload(s.client, ctx, &s3.CreateMultipartUploadInput{
		Bucket:      &s.bucket,
		Key:         &key,
		ContentType: &contentType,
	})
	if err != nil {
		return "", fmt.Errorf("create multipart upload: %w", err)
	}
	return aws.ToString(out.UploadId), nil
}

func (s *S3Store) PutPart(ctx context.Context, key, uploadID string, partNumber int32, data []byte) (string, error) {
	out, err := uploadPart(s.client, ctx, &s3.UploadPartInput{
		Bucket:     &s.bucket,
		Key:        &key,
		UploadId:   &uploadID,
		PartNumber: aws.Int32(partNumber),
		Body:       bytes.NewReader(data),
	})
	if err != nil {
		return "", fmt.Errorf("upload part %d: %w", partNumber, err)
	}
	return aws.ToString(out.ETag), nil
}

func (s *S3Store) CompleteMultipart(ctx context.Context, key, uploadID string, etags []string) error {
	parts := make([]types.CompletedPart, 0, len(etags))
	for i, etag := range etags {
		parts = append(parts, types.CompletedPart{
			ETag:       aws.String(etag),
			PartNumber: aws.Int32(int32(i + 1)),
		})
	}

	_, err := completeMultipartUpload(s.client, ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          &s.bucket,
		Key:             &key,
		UploadId:        &uploadID,
		MultipartUpload: &types.CompletedMultipartUpload{Parts: parts},
	})
	if err != nil {
		return fmt.Errorf("complete multipart upload: %w", err)
	}
	return nil
}

func (s *S3Store) AbortMultipart(ctx context.Context, key, uploadID string) error {
	_, err := abortMultipartUpload(s.client, ctx, &s3.AbortMultipartUploadInput{
		Bucket:   &s.bucket,
		Key:      &key,
		UploadId: &uploadID,
	})
	if err != nil {
		return fmt.Errorf("abort multipart upload: %w", err)
	}
	return nil
}

func (s *S3Store) Copy(ctx context.Context, srcKey, dstKey string) error {
	source := s.bucket + "/" + srcKey
	_, err := copyObject(s.client, ctx, &s3.CopyObjectInput{
		Bucket:     &s.bucket,
		Key:        &dstKey,
		CopySource: &source,
	})
	if err != nil {
		return fmt.Errorf("copy object: %w", err)
	}
	return nil
}

// Get streams the stored object. The caller closes the reader.
func (s *S3Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := getObject(s.client, ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	return out.Body, nil
}

func (s *S3Store) SizeOf(ctx context.Context, key string) (int64, error) {
	out, err := headObject(s.client, ctx, &s3.HeadObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		return 0, fmt.Errorf("head object: %w", err)
	}
	return aws.ToInt64(out.ContentLength), nil
}

func (s *S3Store) Remove(ctx context.Context, key string) error {
	_, err := deleteObject(s.client, ctx, &s3.DeleteObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (s *S3Store) PublicURL(key string) string {
	return s.publicBase + "/" + key
}
