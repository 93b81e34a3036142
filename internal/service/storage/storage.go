// Package storage publishes synthesized audio and derives its public URL.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DefaultBucket holds every synthesized reply.
const DefaultBucket = "minibox"

// ErrNotFound is returned when a stored object does not exist.
var ErrNotFound = errors.New("object not found")

// Publisher uploads an object so it becomes publicly readable.
type Publisher interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	PublicURL(key string) string
}

// ObjectKey names the audio file for one reply: "{artifact}/{user}_{UTC yyyyMMddHHmmss}.mp3".
func ObjectKey(artifactID, userID string, at time.Time) string {
	return fmt.Sprintf("%s/%s_%s.mp3", artifactID, userID, at.UTC().Format("20060102150405"))
}

// PublicURL joins the storage base URL, bucket and key the way the public
// object endpoint expects.
func PublicURL(baseURL, bucket, key string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", strings.TrimRight(baseURL, "/"), bucket, EscapeKey(key))
}

// EscapeKey path-escapes each "/"-separated segment of key, so ids holding
// "?" or "#" still address the object they were uploaded under.
func EscapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}
