package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// GCSStore keeps character images in a Google Cloud Storage bucket and hands out V4 signed URLs.
type GCSStore struct {
	client *storage.Client
	bucket string
	expiry time.Duration
}

func NewGCSStore(ctx context.Context, bucket string) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage: create gcs client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket, expiry: defaultLinkExpiry}, nil
}

func (s *GCSStore) Name() string { return "gcs" }

// Close releases the underlying GCS client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

func (s *GCSStore) Host(ctx context.Context, data []byte, contentType string) (string, error) {
	contentType, err := checkImage(data, contentType)
	if err != nil {
		return "", err
	}
	objectName := objectKey(contentType)

	uploadCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(objectName).NewWriter(uploadCtx)
	w.ContentType = contentType
	w.CacheControl = "private, max-age=3600"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("storage: write gcs object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("storage: finalize gcs object: %w", err)
	}

	signed, err := s.client.Bucket(s.bucket).SignedURL(objectName, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(s.expiry),
	})
	if err != nil {
		return "", fmt.Errorf("storage: sign gcs url: %w", err)
	}
	return signed, nil
}

func (s *GCSStore) Remove(ctx context.Context, hostedURL string) error {
	objectName, ok := gcsObjectName(hostedURL, s.bucket)
	if !ok {
		return nil
	}
	err := s.client.Bucket(s.bucket).Object(objectName).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}

// gcsObjectName understands storage.googleapis.com/<bucket>/<object> signed URLs.
func gcsObjectName(raw, bucket string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host != "storage.googleapis.com" {
		return "", false
	}
	prefix := "/" + bucket + "/"
	if !strings.HasPrefix(u.Path, prefix) {
		return "", false
	}
	name := strings.TrimPrefix(u.Path, prefix)
	return name, name != ""
}
