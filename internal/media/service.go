package media

import (
	"context"
	"fmt"
	"io"
	"log"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// allowed image content types for uploads from the editor.
var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ErrUnsupportedType is returned when the upload is not an accepted image format.
var ErrUnsupportedType = fmt.Errorf("unsupported media type")

// Upload describes a stored object.
type Upload struct {
	Key  string `json:"key"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// Service stores editor media in an S3-compatible bucket.
type Service struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// Config holds object storage settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL is the base URL clients use to fetch objects,
	// typically a CDN or reverse proxy in front of the bucket.
	PublicURL string
}

// NewService connects to the object store and ensures the bucket exists.
// Returns nil if storage is not configured (caller should proceed without it).
func NewService(ctx context.Context, cfg Config) *Service {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		log.Printf("media: connect %s: %v", cfg.Endpoint, err)
		return nil
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		log.Printf("media: bucket check %s: %v", cfg.Bucket, err)
		return nil
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			log.Printf("media: create bucket %s: %v", cfg.Bucket, err)
			return nil
		}
	}

	return &Service{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
	}
}

// Store uploads an image and returns its public location. Object keys are
// random so uploads never collide or expose original filenames.
func (s *Service) Store(ctx context.Context, r io.Reader, size int64, contentType string) (Upload, error) {
	ext, ok := allowedTypes[contentType]
	if !ok {
		return Upload{}, ErrUnsupportedType
	}

	key := path.Join("uploads", uuid.NewString()+ext)

	info, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return Upload{}, fmt.Errorf("put object: %w", err)
	}

	return Upload{
		Key:  key,
		URL:  s.publicURL + "/" + key,
		Size: info.Size,
	}, nil
}

// Remove deletes an object by key.
func (s *Service) Remove(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}
