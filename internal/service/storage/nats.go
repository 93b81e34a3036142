package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// NATSPublisher keeps audio in a JetStream object store bucket. The API
// serves the objects itself under the public storage path.
type NATSPublisher struct {
	bucket  string
	baseURL string
	store   nats.ObjectStore
	log     zerolog.Logger
}

// NewNATSPublisher creates the bucket, or binds to it when it already exists.
func NewNATSPublisher(js nats.JetStreamContext, bucket, publicBaseURL string, log zerolog.Logger) (*NATSPublisher, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}

	store, err := js.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucket,
		Description: fmt.Sprintf("Synthesized replies for the %s bucket.", bucket),
		Storage:     nats.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			return nil, fmt.Errorf("failed to create object store bucket '%s': %w", bucket, err)
		}
		store, err = js.ObjectStore(bucket)
		if err != nil {
			return nil, fmt.Errorf("failed to bind to existing object store bucket '%s': %w", bucket, err)
		}
	}

	return &NATSPublisher{
		bucket:  bucket,
		baseURL: publicBaseURL,
		store:   store,
		log:     log,
	}, nil
}

// Bucket is the object store bucket name.
func (p *NATSPublisher) Bucket() string {
	return p.bucket
}

// Upload puts data under key, replacing an existing object.
func (p *NATSPublisher) Upload(_ context.Context, key string, data []byte, contentType string) error {
	headers := nats.Header{}
	headers.Set("Content-Type", contentType)

	if _, err := p.store.Put(&nats.ObjectMeta{Name: key, Headers: headers}, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to put object '%s' to bucket '%s': %w", key, p.bucket, err)
	}

	p.log.Debug().Str("bucket", p.bucket).Str("key", key).Int("bytes", len(data)).Msg("object uploaded")
	return nil
}

// Download returns the object body and its stored content type.
func (p *NATSPublisher) Download(_ context.Context, key string) ([]byte, string, error) {
	obj, err := p.store.Get(key)
	if err != nil {
		if errors.Is(err, nats.ErrObjectNotFound) {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("failed to get object '%s' from bucket '%s': %w", key, p.bucket, err)
	}

	data, readErr := io.ReadAll(obj)
	closeErr := obj.Close()
	if readErr != nil {
		return nil, "", fmt.Errorf("failed to read object '%s': %w", key, readErr)
	}
	if closeErr != nil {
		return nil, "", fmt.Errorf("failed to close object '%s': %w", key, closeErr)
	}

	contentType := "application/octet-stream"
	if info, err := obj.Info(); err == nil && info.Headers != nil {
		if ct := info.Headers.Get("Content-Type"); ct != "" {
			contentType = ct
		}
	}
	return data, contentType, nil
}

// PublicURL returns the URL this API serves key under.
func (p *NATSPublisher) PublicURL(key string) string {
	return PublicURL(p.baseURL, p.bucket, key)
}
