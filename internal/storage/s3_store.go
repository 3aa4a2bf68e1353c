package storage

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"path"
	"strings"
	"time"

	"dcspace-backend/internal/apperror"
	"dcspace-backend/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3Store stores documents in an S3-compatible bucket (Cloudflare R2).
type S3Store struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	timeout   time.Duration
	urlTTL    time.Duration
}

func NewS3Store(ctx context.Context, cfg *config.Config) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.Storage.AccessKey,
			cfg.Storage.SecretKey,
			"",
		)),
		awsconfig.WithRegion(cfg.Storage.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to configure storage client: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
		}
		o.UsePathStyle = true
	})

	return &S3Store{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.Storage.Bucket,
		timeout:   cfg.StorageTimeout(),
		urlTTL:    cfg.SignedURLTTL(),
	}, nil
}

func (s *S3Store) Store(ctx context.Context, data []byte, contentType, logicalPath string) (string, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	key := ObjectKey(logicalPath, uuid.NewString())
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		log.Printf("[Storage] Failed to upload %s: %v", key, err)
		return "", apperror.Unavailable("storage.store", err)
	}

	log.Printf("[Storage] Uploaded %s (%d bytes)", key, len(data))
	return key, nil
}

func (s *S3Store) Resolve(ctx context.Context, key string) (string, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.urlTTL))
	if err != nil {
		return "", apperror.Unavailable("storage.resolve", err)
	}
	return req.URL, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return apperror.Unavailable("storage.delete", err)
	}
	return nil
}

// ObjectKey joins a logical path with a unique suffix, keeping the
// original extension.
func ObjectKey(logicalPath, unique string) string {
	dir, file := path.Split(strings.TrimPrefix(logicalPath, "/"))
	ext := path.Ext(file)
	base := strings.TrimSuffix(file, ext)
	if base == "" {
		base = "document"
	}
	return path.Join(dir, base+"-"+unique+ext)
}
