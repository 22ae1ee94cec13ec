package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	appconfig "document-summarizer/internal/config"
)

// S3Storage mirrors document files to an S3 (or S3-compatible) bucket.
type S3Storage struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

// ObjectStorage mirrors files to a remote bucket. Implementations without
// credentials report false and no error.
type ObjectStorage interface {
	Enabled() bool
	Upload(ctx context.Context, localPath, key, contentType string) (bool, error)
	Download(ctx context.Context, key, localPath string) (bool, error)
	Delete(ctx context.Context, key string) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
	PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// New returns S3 storage when credentials and a bucket are configured,
// otherwise a NoopStorage.
func New(ctx context.Context, cfg *appconfig.Config) (ObjectStorage, error) {
	if !cfg.StorageEnabled() {
		slog.Info("S3 credentials not configured, object storage disabled")
		return NoopStorage{}, nil
	}
	s, err := NewS3Storage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func NewS3Storage(ctx context.Context, cfg *appconfig.Config) (*S3Storage, error) {
	if cfg.AWSAccessKeyID == "" || cfg.AWSSecretAccessKey == "" {
		return nil, fmt.Errorf("AWS credentials not set")
	}
	if cfg.S3BucketName == "" {
		return nil, fmt.Errorf("S3 bucket name not set")
	}

	awsCfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(cfg.AWSRegion),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})
	slog.Info("Object storage configured", "bucket", cfg.S3BucketName, "region", cfg.AWSRegion)

	return &S3Storage{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.S3BucketName,
	}, nil
}

func (s *S3Storage) Enabled() bool { return true }

func (s *S3Storage) Upload(ctx context.Context, localPath, key, contentType string) (bool, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return false, err
	}
	defer f.Close()

	ctxUpload, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	uploader := manager.NewUploader(s.client)
	_, err = uploader.Upload(ctxUpload, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return false, fmt.Errorf("s3 upload failed: %w", err)
	}
	return true, nil
}

func (s *S3Storage) Download(ctx context.Context, key, localPath string) (bool, error) {
	f, err := os.Create(localPath)
	if err != nil {
		return false, err
	}
	defer f.Close()

	ctxGet, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	downloader := manager.NewDownloader(s.client)
	_, err = downloader.Download(ctxGet, f, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("s3 download failed: %w", err)
	}
	return true, nil
}

func (s *S3Storage) Delete(ctx context.Context, key string) (bool, error) {
	ctxDel, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := s.client.DeleteObject(ctxDel, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return false, fmt.Errorf("s3 delete failed: %w", err)
	}
	return true, nil
}

func (s *S3Storage) Exists(ctx context.Context, key string) (bool, error) {
	ctxHead, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := s.client.HeadObject(ctxHead, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("s3 head failed: %w", err)
	}
	return true, nil
}

func (s *S3Storage) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if expiry <= 0 {
		expiry = time.Hour
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("s3 presign failed: %w", err)
	}
	return req.URL, nil
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	return errors.As(err, &notFound) || errors.As(err, &noSuchKey)
}

// NoopStorage is used when no bucket is configured. Every operation reports
// false without an error.
type NoopStorage struct{}

func (NoopStorage) Enabled() bool { return false }

func (NoopStorage) Upload(context.Context, string, string, string) (bool, error) { return false, nil }

func (NoopStorage) Download(context.Context, string, string) (bool, error) { return false, nil }

func (NoopStorage) Delete(context.Context, string) (bool, error) { return false, nil }

func (NoopStorage) Exists(context.Context, string) (bool, error) { return false, nil }

func (NoopStorage) PresignedURL(context.Context, string, time.Duration) (string, error) {
	return "", nil
}
