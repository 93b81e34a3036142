package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artifact-chatbot/backend/internal/config"
)

func TestObjectKey(t *testing.T) {
	seoul := time.FixedZone("KST", 9*60*60)
	at := time.Date(2024, 1, 1, 9, 0, 0, 0, seoul)

	assert.Equal(t, "a/u1_20240101000000.mp3", ObjectKey("a", "u1", at))
}

func TestPublicURL(t *testing.T) {
	assert.Equal(t,
		"https://x/storage/v1/object/public/minibox/a/u1_20240101000000.mp3",
		PublicURL("https://x/", "minibox", "a/u1_20240101000000.mp3"))

	assert.Equal(t,
		"https://x/storage/v1/object/public/minibox/a/u%3F1%23x_20240101000000.mp3",
		PublicURL("https://x", "minibox", "a/u?1#x_20240101000000.mp3"))
}

func TestSupabaseUpload(t *testing.T) {
	var (
		method, path, auth, apiKey, contentType, upsert string
		body                                            []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		apiKey = r.Header.Get("apikey")
		contentType = r.Header.Get("Content-Type")
		upsert = r.Header.Get("x-upsert")
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"Key":"minibox/a/u1.mp3"}`))
	}))
	defer srv.Close()

	p := NewSupabasePublisher(srv.URL, "service-key", "", 5*time.Second, zerolog.Nop())
	require.NoError(t, p.Upload(context.Background(), "a/u1.mp3", []byte("mp3"), "audio/mpeg"))

	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "/storage/v1/object/minibox/a/u1.mp3", path)
	assert.Equal(t, "Bearer service-key", auth)
	assert.Equal(t, "service-key", apiKey)
	assert.Equal(t, "audio/mpeg", contentType)
	assert.Equal(t, "true", upsert)
	assert.Equal(t, []byte("mp3"), body)

	assert.Equal(t, srv.URL+"/storage/v1/object/public/minibox/a/u1.mp3", p.PublicURL("a/u1.mp3"))
}

func TestSupabaseUploadEscapesKey(t *testing.T) {
	var path, rawQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		rawQuery = r.URL.RawQuery
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	key := ObjectKey("a", "u?1#x", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	p := NewSupabasePublisher(srv.URL, "service-key", "", 5*time.Second, zerolog.Nop())
	require.NoError(t, p.Upload(context.Background(), key, []byte("mp3"), "audio/mpeg"))

	assert.Equal(t, "/storage/v1/object/minibox/"+key, path)
	assert.Empty(t, rawQuery)

	public, err := url.Parse(p.PublicURL(key))
	require.NoError(t, err)
	assert.Equal(t, "/storage/v1/object/public/minibox/"+key, public.Path)
	assert.Empty(t, public.Fragment)
}

func TestSupabaseUploadRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewSupabasePublisher(srv.URL, "bad", "minibox", time.Second, zerolog.Nop())
	err := p.Upload(context.Background(), "a/u1.mp3", []byte("mp3"), "audio/mpeg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "Unauthorized")
}

func startNATS(t *testing.T) (*server.Server, *nats.Conn) {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	natsServer := test.RunServer(&opts)

	conn, err := nats.Connect(natsServer.ClientURL())
	if err != nil {
		natsServer.Shutdown()
		t.Fatalf("failed to connect to test NATS server: %v", err)
	}
	t.Cleanup(func() {
		conn.Close()
		natsServer.Shutdown()
	})
	return natsServer, conn
}

func TestNATSPublisherRoundTrip(t *testing.T) {
	_, conn := startNATS(t)
	js, err := conn.JetStream()
	require.NoError(t, err)

	p, err := NewNATSPublisher(js, "", "http://localhost:8000", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, DefaultBucket, p.Bucket())

	ctx := context.Background()
	require.NoError(t, p.Upload(ctx, "a/u1_20240101000000.mp3", []byte("first"), "audio/mpeg"))
	require.NoError(t, p.Upload(ctx, "a/u1_20240101000000.mp3", []byte("second"), "audio/mpeg"))

	data, contentType, err := p.Download(ctx, "a/u1_20240101000000.mp3")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data)
	assert.Equal(t, "audio/mpeg", contentType)

	assert.Equal(t,
		"http://localhost:8000/storage/v1/object/public/minibox/a/u1_20240101000000.mp3",
		p.PublicURL("a/u1_20240101000000.mp3"))
}

func TestNATSPublisherBindsExistingBucket(t *testing.T) {
	_, conn := startNATS(t)
	js, err := conn.JetStream()
	require.NoError(t, err)

	first, err := NewNATSPublisher(js, "audio", "http://localhost", zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, first.Upload(context.Background(), "k.mp3", []byte("x"), "audio/mpeg"))

	second, err := NewNATSPublisher(js, "audio", "http://localhost", zerolog.Nop())
	require.NoError(t, err)

	data, _, err := second.Download(context.Background(), "k.mp3")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), data)
}

func TestNATSPublisherMissingObject(t *testing.T) {
	_, conn := startNATS(t)
	js, err := conn.JetStream()
	require.NoError(t, err)

	p, err := NewNATSPublisher(js, "", "http://localhost", zerolog.Nop())
	require.NoError(t, err)

	_, _, err = p.Download(context.Background(), "missing.mp3")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenSelectsDriver(t *testing.T) {
	backend, err := Open(config.StorageConfig{Driver: config.StorageSupabase, SupabaseURL: "https://x", SupabaseKey: "k"}, zerolog.Nop())
	require.NoError(t, err)
	defer backend.Close()
	assert.IsType(t, &SupabasePublisher{}, backend.Publisher)
	assert.Nil(t, backend.NATS)

	natsServer, _ := startNATS(t)
	backend, err = Open(config.StorageConfig{
		Driver:        config.StorageNATS,
		NATSURL:       natsServer.ClientURL(),
		PublicBaseURL: "http://localhost:8080",
		Timeout:       5 * time.Second,
	}, zerolog.Nop())
	require.NoError(t, err)
	defer backend.Close()
	require.NotNil(t, backend.NATS)
	assert.Equal(t, "http://localhost:8080/storage/v1/object/public/minibox/k.mp3", backend.Publisher.PublicURL("k.mp3"))

	_, err = Open(config.StorageConfig{Driver: "s3"}, zerolog.Nop())
	assert.Error(t, err)
}
