package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	conf "github.com/Rahul2570089/mp4-2-mp3/internal/config"
)

// S3Store stores blobs in an S3-compatible bucket (R2 included).
type S3Store struct {
	bucket string

	client   *s3.Client
	uploader *manager.Uploader
}

func NewS3Store(ctx context.Context, cfg *conf.S3Config) (*S3Store, error) {
	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretKey, "",
		)),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	endpoint := cfg.Endpoint
	if endpoint == "" && cfg.AccountID != "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = true
	})

	return &S3Store{
		bucket:   cfg.BucketName,
		client:   client,
		uploader: manager.NewUploader(client),
	}, nil
}

// Put is synchronous: when it returns without error the object is durably
// stored, which is what lets callers publish the ID downstream afterwards.
func (s *S3Store) Put(ctx context.Context, data []byte, contentType string) (ID, error) {
	id := NewID(data)

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(string(id)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %q: %w", id, err)
	}

	return id, nil
}

func (s *S3Store) Get(ctx context.Context, id ID) ([]byte, string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(string(id)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, "", fmt.Errorf("%q: %w", id, ErrNotFound)
		}
		return nil, "", fmt.Errorf("failed to download %q: %w", id, err)
	}
	defer out.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return nil, "", fmt.Errorf("failed to read body for %q: %w", id, err)
	}

	contentType := ""
	if out.ContentType != nil {
		contentType = *out.ContentType
	}

	return buf.Bytes(), contentType, nil
}

func (s *S3Store) Delete(ctx context.Context, id ID) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(string(id)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %q: %w", id, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}
