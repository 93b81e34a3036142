package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// SupabasePublisher writes objects through the Supabase Storage REST API.
type SupabasePublisher struct {
	baseURL string
	apiKey  string
	bucket  string
	client  *http.Client
	log     zerolog.Logger
}

// NewSupabasePublisher creates a publisher for bucket on the project at baseURL.
func NewSupabasePublisher(baseURL, apiKey, bucket string, timeout time.Duration, log zerolog.Logger) *SupabasePublisher {
	if bucket == "" {
		bucket = DefaultBucket
	}
	return &SupabasePublisher{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		bucket:  bucket,
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
}

// Upload stores data under key, overwriting any object with the same key.
func (p *SupabasePublisher) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	endpoint := fmt.Sprintf("%s/storage/v1/object/%s/%s", p.baseURL, p.bucket, EscapeKey(key))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("apikey", p.apiKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upload object '%s': %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("upload object '%s' failed with status %d: %s", key, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	p.log.Debug().Str("bucket", p.bucket).Str("key", key).Int("bytes", len(data)).Msg("object uploaded")
	return nil
}

// PublicURL returns the anonymous download URL for key.
func (p *SupabasePublisher) PublicURL(key string) string {
	return PublicURL(p.baseURL, p.bucket, key)
}
