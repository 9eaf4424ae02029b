package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/KingHippopotamus/pmax-helper/config"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOStore keeps preprocessed character images in a MinIO/S3 bucket.
type MinIOStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
	expiry    time.Duration
}

// NewMinIOStore connects to the bucket described by cfg, creating it when missing.
// It returns nil, nil when MinIO is not configured.
func NewMinIOStore(cfg config.MinIOConfig) (*MinIOStore, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: init minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("storage: check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("storage: create bucket: %w", err)
		}
	}

	publicURL := cfg.PublicURL
	if publicURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s", scheme, cfg.Endpoint)
	}

	return &MinIOStore{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimSuffix(publicURL, "/"),
		expiry:    defaultLinkExpiry,
	}, nil
}

func (s *MinIOStore) Name() string { return "minio" }

// Host uploads data as characters/<yyyy-mm-dd>/<uuid>.<ext> and returns a presigned GET URL
// so the video provider can read it without the bucket being public.
func (s *MinIOStore) Host(ctx context.Context, data []byte, contentType string) (string, error) {
	if s == nil || s.client == nil {
		return "", errors.New("storage: minio not configured")
	}
	contentType, err := checkImage(data, contentType)
	if err != nil {
		return "", err
	}

	objectName := objectKey(contentType)

	uploadCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	_, err = s.client.PutObject(uploadCtx, s.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "private, max-age=3600",
	})
	if err != nil {
		return "", fmt.Errorf("storage: upload character image: %w", err)
	}

	return s.PresignedURL(ctx, objectName, s.expiry)
}

// Remove deletes the object behind a URL previously returned by Host.
func (s *MinIOStore) Remove(ctx context.Context, rawURL string) error {
	if s == nil || s.client == nil {
		return nil
	}
	objectName, ok := s.objectNameFromURL(rawURL)
	if !ok {
		return nil
	}

	removeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return s.client.RemoveObject(removeCtx, s.bucket, objectName, minio.RemoveObjectOptions{})
}

// PresignedURL returns a temporary URL for an object name or a public object URL.
func (s *MinIOStore) PresignedURL(ctx context.Context, raw string, expiry time.Duration) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", nil
	}
	if expiry <= 0 {
		expiry = defaultLinkExpiry
	}

	objectName, ok := s.objectNameFromURL(trimmed)
	if !ok {
		return trimmed, nil
	}

	presignCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	signed, err := s.client.PresignedGetObject(presignCtx, s.bucket, objectName, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("storage: presign %s: %w", objectName, err)
	}
	return signed.String(), nil
}

// objectNameFromURL accepts a bare object name or a URL on the public host.
func (s *MinIOStore) objectNameFromURL(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}

	if !strings.Contains(trimmed, "://") {
		return trimBucket(trimmed, s.bucket)
	}

	target, err := url.Parse(trimmed)
	if err != nil {
		return "", false
	}
	base, err := url.Parse(s.publicURL)
	if err != nil || base.Host == "" || base.Host != target.Host {
		return "", false
	}
	return trimBucket(target.Path, s.bucket)
}

func trimBucket(p, bucket string) (string, bool) {
	candidate := strings.TrimPrefix(p, "/")
	candidate = strings.TrimPrefix(candidate, bucket+"/")
	candidate = strings.TrimPrefix(candidate, "/")
	return candidate, candidate != ""
}

func objectKey(contentType string) string {
	day := time.Now().UTC().Format("2006-01-02")
	return path.Join("characters", day, uuid.NewString()+imageExtension(contentType))
}

func checkImage(data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("storage: image data is empty")
	}
	if int64(len(data)) > maxImageBytes {
		return "", fmt.Errorf("storage: image size exceeds %d bytes", maxImageBytes)
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if imageExtension(contentType) == "" {
		return "", fmt.Errorf("storage: unsupported image content type %q", contentType)
	}
	return contentType, nil
}

func imageExtension(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "image/png", "image/x-png":
		return ".png"
	case "image/jpeg", "image/pjpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ""
	}
}
