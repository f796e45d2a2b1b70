package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config carries what the S3 store needs from the process config.
type S3Config struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Region        string
	UseSSL        bool
	Bucket        string
	PublicBaseURL string
}

// S3 wraps MinIO/S3 interactions for the documentation bucket.
type S3 struct {
	client  *minio.Client
	bucket  string
	region  string
	baseURL string
	logger  *slog.Logger
}

// NewS3 creates a MinIO client from cfg.
func NewS3(cfg S3Config, logger *slog.Logger) (*S3, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &S3{
		client:  client,
		bucket:  cfg.Bucket,
		region:  cfg.Region,
		baseURL: BaseURL(cfg.PublicBaseURL, cfg.Bucket),
		logger:  logger.With("component", "blobstore.s3"),
	}, nil
}

// EnsureBucket makes sure the bucket exists before use.
func (s *S3) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("make bucket %s: %w", s.bucket, err)
		}
		s.logger.Info("created bucket", "bucket", s.bucket)
	}
	return nil
}

func (s *S3) List(ctx context.Context) ([]Object, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var out []Object
	for info := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{MaxKeys: MaxList}) {
		if info.Err != nil {
			return nil, fmt.Errorf("list bucket %s: %w", s.bucket, info.Err)
		}
		out = append(out, Object{Name: info.Key, Size: info.Size, UpdatedAt: info.LastModified})
		if len(out) == MaxList {
			break
		}
	}
	return out, nil
}

func (s *S3) Upload(ctx context.Context, name string, content []byte, overwrite bool) error {
	if !ValidName(name) {
		return ErrInvalidName
	}
	if !overwrite {
		_, err := s.client.StatObject(ctx, s.bucket, name, minio.StatObjectOptions{})
		if err == nil {
			return fmt.Errorf("upload %s: %w", name, ErrExists)
		}
		if !isNotFound(err) {
			return fmt.Errorf("stat %s: %w", name, err)
		}
	}
	opts := minio.PutObjectOptions{ContentType: "text/plain; charset=utf-8"}
	if _, err := s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(content), int64(len(content)), opts); err != nil {
		return fmt.Errorf("upload %s: %w", name, err)
	}
	return nil
}

func (s *S3) Remove(ctx context.Context, names []string) error {
	for _, name := range names {
		if err := s.client.RemoveObject(ctx, s.bucket, name, minio.RemoveObjectOptions{}); err != nil && !isNotFound(err) {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}
	return nil
}

func (s *S3) Download(ctx context.Context, name string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", name, err)
	}
	defer obj.Close()
	buf, err := io.ReadAll(obj)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("get %s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return buf, nil
}

func (s *S3) PublicURL(name string) string {
	return PublicURL(s.baseURL, name)
}

func (s *S3) BaseURL() string {
	return s.baseURL
}

func isNotFound(err error) bool {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
	}
	return false
}
