package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const maxObjectBytes = 10 << 20

var ErrObjectNotFound = errors.New("object not found")

// Object is a downloaded blob.
type Object struct {
	ContentType string
	Data        []byte
}

// Downloader fetches objects from a bucket.
type Downloader interface {
	Download(ctx context.Context, bucket, path string) (Object, error)
}

// Supabase reads objects through the storage REST API at {SUPABASE_URL}/storage/v1.
type Supabase struct {
	baseURL string
	key     string
	http    *http.Client
}

func NewSupabase(supabaseURL, key string, hc *http.Client) *Supabase {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Supabase{baseURL: strings.TrimRight(supabaseURL, "/") + "/storage/v1", key: key, http: hc}
}

func (s *Supabase) Download(ctx context.Context, bucket, path string) (Object, error) {
	path = strings.TrimLeft(strings.TrimSpace(path), "/")
	if path == "" {
		return Object{}, ErrObjectNotFound
	}

	u := s.baseURL + "/object/" + url.PathEscape(bucket) + "/" + escapePath(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Object{}, err
	}
	req.Header.Set("apikey", s.key)
	req.Header.Set("Authorization", "Bearer "+s.key)

	resp, err := s.http.Do(req)
	if err != nil {
		return Object{}, fmt.Errorf("download %s/%s: %w", bucket, path, err)
	}
	defer resp.Body.Close()

	// storage answers 400 with an "Object not found" body for missing keys
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest {
		return Object{}, fmt.Errorf("%s/%s: %w", bucket, path, ErrObjectNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return Object{}, fmt.Errorf("download %s/%s: status %d", bucket, path, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxObjectBytes))
	if err != nil {
		return Object{}, err
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(data)
	}
	return Object{ContentType: ct, Data: data}, nil
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
