package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"meetscribe/internal/config"
	"meetscribe/internal/stage"
)

// Supabase stores objects in a Supabase Storage bucket.
type Supabase struct {
	http   *resty.Client
	bucket string
}

// NewSupabase builds a bucket client from the [storage] config section.
func NewSupabase(cfg config.Storage) (*Supabase, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("storage: supabase backend requires storage.base_url")
	}
	if strings.TrimSpace(cfg.ServiceKey) == "" {
		return nil, errors.New("storage: supabase backend requires storage.service_key")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("storage: supabase backend requires storage.bucket")
	}
	client := resty.New().
		SetBaseURL(base+"/storage/v1").
		SetAuthToken(cfg.ServiceKey).
		SetHeader("apikey", cfg.ServiceKey)
	if cfg.RequestTimeout > 0 {
		client.SetTimeout(time.Duration(cfg.RequestTimeout) * time.Second)
	}
	return &Supabase{http: client, bucket: cfg.Bucket}, nil
}

func (b *Supabase) objectPath(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	segments := strings.Split(key, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return "/object/" + url.PathEscape(b.bucket) + "/" + strings.Join(segments, "/"), nil
}

// Put uploads body to key, replacing any existing object.
func (b *Supabase) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	objectPath, err := b.objectPath(key)
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	resp, err := b.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetHeader("x-upsert", "true").
		SetBody(body).
		Post(objectPath)
	if err != nil {
		return fmt.Errorf("storage: upload %s: %w", key, err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("storage: upload %s returned %d: %s", key, resp.StatusCode(), truncate(resp.String(), 200))
	}
	return nil
}

// Open streams the object at key.
func (b *Supabase) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	objectPath, err := b.objectPath(key)
	if err != nil {
		return nil, err
	}
	resp, err := b.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(objectPath)
	if err != nil {
		return nil, fmt.Errorf("storage: download %s: %w", key, err)
	}
	body := resp.RawBody()
	if resp.IsSuccess() && body != nil {
		return body, nil
	}
	if body != nil {
		_ = body.Close()
	}
	// Supabase reports missing objects as 400 with an error body on some versions.
	if resp.StatusCode() == http.StatusNotFound || resp.StatusCode() == http.StatusBadRequest {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return nil, fmt.Errorf("storage: download %s returned %d", key, resp.StatusCode())
}

// HealthCheck confirms the bucket exists and the service key is accepted.
func (b *Supabase) HealthCheck(ctx context.Context) stage.Health {
	resp, err := b.http.R().
		SetContext(ctx).
		Get("/bucket/" + url.PathEscape(b.bucket))
	if err != nil {
		return stage.FromError(stage.ComponentStorage, err)
	}
	if !resp.IsSuccess() {
		return stage.Unhealthy(stage.ComponentStorage, fmt.Sprintf("bucket %s returned %d", b.bucket, resp.StatusCode()))
	}
	return stage.Healthy(stage.ComponentStorage)
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if len(value) <= limit {
		return value
	}
	return value[:limit] + "..."
}
