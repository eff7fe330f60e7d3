package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// DefaultS3Region is used when S3Config.Region is empty.
const DefaultS3Region = "us-east-1"

// S3Config holds the settings of an S3 snapshot store.
type S3Config struct {
	// Bucket is the bucket name (required).
	Bucket string `env:"SNAPSHOT_S3_BUCKET"`

	// AccessKey and SecretKey are static credentials (required).
	AccessKey string `env:"SNAPSHOT_S3_ACCESS_KEY"`
	SecretKey string `env:"SNAPSHOT_S3_SECRET_KEY"`

	// Endpoint is a custom endpoint for S3-compatible services such as MinIO.
	Endpoint string `env:"SNAPSHOT_S3_ENDPOINT"`

	// Region defaults to us-east-1.
	Region string `env:"SNAPSHOT_S3_REGION" envDefault:"us-east-1"`

	// Prefix is prepended to every object key.
	Prefix string `env:"SNAPSHOT_S3_PREFIX" envDefault:"snapshots/"`

	// PathStyle enables path-style addressing (required for MinIO).
	PathStyle bool `env:"SNAPSHOT_S3_PATH_STYLE" envDefault:"false"`
}

func (c *S3Config) applyDefaults() {
	if c.Region == "" {
		c.Region = DefaultS3Region
	}
}

func (c *S3Config) validate() error {
	switch {
	case c.Bucket == "":
		return fmt.Errorf("%w: bucket is required", ErrInvalidConfig)
	case c.AccessKey == "", c.SecretKey == "":
		return fmt.Errorf("%w: credentials are required", ErrInvalidConfig)
	}
	return nil
}

// S3 stores snapshot blobs as objects in an S3-compatible bucket.
type S3 struct {
	client *s3.Client
	cfg    S3Config
}

// NewS3 creates an S3 store.
func NewS3(cfg S3Config) (*S3, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opts := []func(*s3.Options){
		func(o *s3.Options) {
			o.Region = cfg.Region
			o.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		},
	}
	if cfg.Endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.PathStyle
		})
	}

	return &S3{
		client: s3.New(s3.Options{}, opts...),
		cfg:    cfg,
	}, nil
}

func (s *S3) Load(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return nil, wrapS3Error(err, ErrLoadFailed)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, errors.Join(ErrLoadFailed, err)
	}
	return data, nil
}

func (s *S3) Save(ctx context.Context, key string, data []byte) error {
	if key == "" {
		return ErrEmptyKey
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(s.objectKey(key)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/octet-stream"),
		ACL:           types.ObjectCannedACLPrivate,
	})
	if err != nil {
		return wrapS3Error(err, ErrSaveFailed)
	}
	return nil
}

func (s *S3) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if err = wrapS3Error(err, ErrDeleteFailed); errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	return nil
}

// Ping checks that the bucket is reachable with the configured credentials.
func (s *S3) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.cfg.Bucket)})
	if err != nil {
		return errors.Join(ErrHealthcheckFailed, wrapS3Error(err, ErrLoadFailed))
	}
	return nil
}

func (s *S3) objectKey(key string) string {
	key = strings.ReplaceAll(key, ":", "/")
	return s.cfg.Prefix + key
}

var _ Store = (*S3)(nil)

// wrapS3Error maps S3 errors onto the package sentinels.
// The original error is formatted with %v so callers match sentinels, not AWS types.
func wrapS3Error(err error, fallback error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case "AccessDenied", "Forbidden":
			return fmt.Errorf("%w: %v", ErrAccessDenied, err)
		}
	}

	var notFound *types.NoSuchKey
	if errors.As(err, &notFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	return fmt.Errorf("%w: %v", fallback, err)
}
