package storage

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/KingHippopotamus/pmax-helper/config"
	"github.com/KingHippopotamus/pmax-helper/logger"
	"go.uber.org/zap"
)

const (
	maxImageBytes     int64 = 10 * 1024 * 1024
	defaultLinkExpiry       = 2 * time.Hour
)

// ImageHost publishes an image at a URL the video provider can fetch.
type ImageHost interface {
	Host(ctx context.Context, data []byte, contentType string) (string, error)
	// Remove deletes an image previously published by Host. Unknown URLs are ignored.
	Remove(ctx context.Context, hostedURL string) error
	Name() string
}

// NewImageHost picks MinIO, then GCS, then inline data URIs, depending on what cfg configures.
func NewImageHost(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) ImageHost {
	log = logger.OrNop(log)
	if store, err := NewMinIOStore(cfg.MinIO); err != nil {
		log.Warnw("minio unavailable", "error", err)
	} else if store != nil {
		return store
	}

	if cfg.GCS.Bucket != "" {
		store, err := NewGCSStore(ctx, cfg.GCS.Bucket)
		if err != nil {
			log.Warnw("gcs unavailable", "bucket", cfg.GCS.Bucket, "error", err)
		} else {
			return store
		}
	}

	return DataURIHost{}
}

// DataURIHost embeds the image in a data: URL and stores nothing.
type DataURIHost struct{}

func (DataURIHost) Host(_ context.Context, data []byte, contentType string) (string, error) {
	contentType, err := checkImage(data, contentType)
	if err != nil {
		return "", err
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func (DataURIHost) Remove(context.Context, string) error { return nil }

func (DataURIHost) Name() string { return "data-uri" }
