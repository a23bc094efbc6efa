package storage

import (
	"context"
	"encoding/base64"
	"log/slog"
	"time"

	"marketplace/internal/logger"
)

type ImageCache interface {
	GetImage(ctx context.Context, key string) (string, bool, error)
	SetImage(ctx context.Context, key, dataURI string, ttl time.Duration) error
}

// Images turns storage paths into data URIs, optionally through a cache.
type Images struct {
	dl     Downloader
	cache  ImageCache
	bucket string
	ttl    time.Duration
	log    *slog.Logger
}

// NewImages builds a resolver for bucket. cache may be nil.
func NewImages(dl Downloader, cache ImageCache, bucket string, ttl time.Duration, log *slog.Logger) *Images {
	if log == nil {
		log = logger.Discard()
	}
	return &Images{dl: dl, cache: cache, bucket: bucket, ttl: ttl, log: log}
}

// Resolve downloads path and returns it as a data URI. Cache failures are logged and bypassed.
func (im *Images) Resolve(ctx context.Context, path string) (string, error) {
	key := im.bucket + "/" + path

	if im.cache != nil {
		v, ok, err := im.cache.GetImage(ctx, key)
		if err != nil {
			im.log.Warn("image cache read failed", slog.String("key", key), slog.Any("err", err))
		}
		if ok {
			return v, nil
		}
	}

	obj, err := im.dl.Download(ctx, im.bucket, path)
	if err != nil {
		return "", err
	}
	uri := DataURI(obj)

	if im.cache != nil {
		if err := im.cache.SetImage(ctx, key, uri, im.ttl); err != nil {
			im.log.Warn("image cache write failed", slog.String("key", key), slog.Any("err", err))
		}
	}
	return uri, nil
}

func DataURI(obj Object) string {
	return "data:" + obj.ContentType + ";base64," + base64.StdEncoding.EncodeToString(obj.Data)
}
