package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artifact-chatbot/backend/internal/model/persona"
	"github.com/artifact-chatbot/backend/internal/model/speech"
	chatService "github.com/artifact-chatbot/backend/internal/service/chat"
	"github.com/artifact-chatbot/backend/internal/service/history"
)

type fakeTurns struct {
	result *chatService.TurnResult
	err    error

	calls int
	got   chatService.TurnRequest
}

func (f *fakeTurns) Turn(_ context.Context, req chatService.TurnRequest) (*chatService.TurnResult, error) {
	f.calls++
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func setupRouter(turns TurnRunner) *chi.Mux {
	r := chi.NewRouter()
	New(turns).RegisterRoutes(r)
	return r
}

func serve(r http.Handler, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	var body map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &body)
	return resp, body
}

func formRequest(values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func jsonRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func okTurns() *fakeTurns {
	audio := "https://x/minibox/a/u1_20240101000000.mp3"
	return &fakeTurns{result: &chatService.TurnResult{Response: "반갑습니다", AudioURL: &audio}}
}

func TestChatJSONCamelCase(t *testing.T) {
	turns := okTurns()
	resp, body := serve(setupRouter(turns), jsonRequest(`{"userId":"u1","message":"안녕","artifactId":"a"}`))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, chatService.TurnRequest{UserID: "u1", Message: "안녕", ArtifactID: "a"}, turns.got)
	assert.Equal(t, "반갑습니다", body["response"])
	assert.Equal(t, "https://x/minibox/a/u1_20240101000000.mp3", body["audio_url"])
	assert.NotContains(t, body, "error")
}

func TestChatJSONSnakeCase(t *testing.T) {
	turns := okTurns()
	resp, _ := serve(setupRouter(turns), jsonRequest(`{"user_id":"u2","message":"hi","artifact_id":"b"}`))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, chatService.TurnRequest{UserID: "u2", Message: "hi", ArtifactID: "b"}, turns.got)
}

func TestChatInvalidJSON(t *testing.T) {
	turns := okTurns()
	resp, body := serve(setupRouter(turns), jsonRequest(`not json`))

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "Invalid JSON body", body["error"])
	assert.Zero(t, turns.calls)

	resp, _ = serve(setupRouter(turns), jsonRequest(`"not json"`))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Zero(t, turns.calls)
}

func TestChatJSONTrailingData(t *testing.T) {
	for _, body := range []string{
		`{"userId":"u1","message":"hi","artifactId":"a"} garbage`,
		`{"userId":"u1","message":"hi","artifactId":"a"}{"userId":"u2"}`,
	} {
		turns := okTurns()
		resp, got := serve(setupRouter(turns), jsonRequest(body))

		assert.Equal(t, http.StatusBadRequest, resp.Code, body)
		assert.Equal(t, "Invalid JSON body", got["error"], body)
		assert.Zero(t, turns.calls, body)
	}

	turns := okTurns()
	resp, _ := serve(setupRouter(turns), jsonRequest("{\"userId\":\"u1\",\"message\":\"hi\",\"artifactId\":\"a\"}\n"))
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 1, turns.calls)
}

func TestChatMultipartForm(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("user_id", "u1"))
	require.NoError(t, mw.WriteField("message", "안녕"))
	require.NoError(t, mw.WriteField("artifact_id", "b"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/chat", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	turns := okTurns()
	resp, _ := serve(setupRouter(turns), req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, chatService.TurnRequest{UserID: "u1", Message: "안녕", ArtifactID: "b"}, turns.got)
}

func TestChatErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{fmt.Errorf("%w: missing artifact_id", chatService.ErrInvalidInput), http.StatusUnprocessableEntity, "Missing required fields: user_id, message, artifact_id"},
		{fmt.Errorf("%w %q", chatService.ErrUnknownArtifact, "z"), http.StatusUnprocessableEntity, "Unknown artifact_id"},
		{fmt.Errorf("%w: %w", chatService.ErrHistory, errors.New("db down")), http.StatusInternalServerError, "Failed to load chat history"},
		{fmt.Errorf("%w: %w", chatService.ErrCompletion, errors.New("429")), http.StatusInternalServerError, "Failed to generate reply"},
		{fmt.Errorf("%w: %w", chatService.ErrPersist, errors.New("disk full")), http.StatusInternalServerError, "Failed to save chat turns"},
		{errors.New("boom"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tc := range cases {
		t.Run(tc.msg, func(t *testing.T) {
			resp, body := serve(setupRouter(&fakeTurns{err: tc.err}), jsonRequest(`{"userId":"u1","message":"hi","artifactId":"a"}`))
			assert.Equal(t, tc.status, resp.Code)
			assert.Equal(t, tc.msg, body["error"])
		})
	}
}

func TestChatAudioSoftFailure(t *testing.T) {
	turns := &fakeTurns{result: &chatService.TurnResult{Response: "반갑습니다", AudioErr: errors.New("quota exceeded")}}
	resp, body := serve(setupRouter(turns), jsonRequest(`{"userId":"u1","message":"hi","artifactId":"a"}`))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "반갑습니다", body["response"])
	require.Contains(t, body, "audio_url")
	assert.Nil(t, body["audio_url"])
	assert.Equal(t, "quota exceeded", body["error"])
}

// End-to-end through the real orchestrator and a sqlite history store.

type stubCompleter struct{ answer string }

func (s stubCompleter) Complete(context.Context, string, []*schema.Message) (string, error) {
	return s.answer, nil
}

type stubSynth struct{}

func (stubSynth) Synthesize(context.Context, string, speech.Voice) ([]byte, error) {
	return []byte("mp3"), nil
}

type stubPublisher struct{ failWith error }

func (p stubPublisher) Upload(context.Context, string, []byte, string) error { return p.failWith }

func (stubPublisher) PublicURL(key string) string { return "https://x/minibox/" + key }

func newTurnService(t *testing.T, publisher stubPublisher, opts ...chatService.Option) (*chatService.Service, *history.Store) {
	t.Helper()

	store, err := history.Open(context.Background(), history.DriverSQLite, filepath.Join(t.TempDir(), "chat.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	base := []chatService.Option{
		chatService.WithVoiceOutput(stubSynth{}, publisher),
		chatService.WithClock(func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }),
	}
	svc := chatService.NewService(
		persona.NewMemoryStore(persona.Seed(nil)),
		chatService.StoreSessions(store),
		stubCompleter{answer: "반갑습니다"},
		zerolog.Nop(),
		append(base, opts...)...,
	)
	return svc, store
}

func countTurns(t *testing.T, store *history.Store, userID, artifactID string) int {
	t.Helper()
	sess, err := store.Session(context.Background())
	require.NoError(t, err)
	defer sess.Close()

	turns, err := sess.RecentHistory(context.Background(), userID, artifactID, 100)
	require.NoError(t, err)
	return len(turns)
}

func TestChatEndToEnd(t *testing.T) {
	svc, store := newTurnService(t, stubPublisher{})
	resp, body := serve(setupRouter(svc), jsonRequest(`{"userId":"u1","message":"안녕","artifactId":"a"}`))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, map[string]any{
		"response":  "반갑습니다",
		"audio_url": "https://x/minibox/a/u1_20240101000000.mp3",
	}, body)
	assert.Equal(t, 2, countTurns(t, store, "u1", "a"))
}

func TestChatEndToEndPublishFailure(t *testing.T) {
	svc, store := newTurnService(t, stubPublisher{failWith: errors.New("bucket not found")})
	resp, body := serve(setupRouter(svc), jsonRequest(`{"userId":"u1","message":"안녕","artifactId":"a"}`))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "반갑습니다", body["response"])
	assert.Nil(t, body["audio_url"])
	assert.Equal(t, "bucket not found", body["error"])
	assert.Equal(t, 2, countTurns(t, store, "u1", "a"))
}

func TestChatEndToEndWhitespaceMessage(t *testing.T) {
	svc, store := newTurnService(t, stubPublisher{})
	resp, body := serve(setupRouter(svc), formRequest(url.Values{"user_id": {"u1"}, "message": {" "}, "artifact_id": {"a"}}))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "반갑습니다", body["response"])
	assert.Equal(t, 2, countTurns(t, store, "u1", "a"))
}

func TestChatEndToEndMissingArtifact(t *testing.T) {
	svc, store := newTurnService(t, stubPublisher{})
	resp, body := serve(setupRouter(svc), formRequest(url.Values{"user_id": {"u1"}, "message": {"hi"}}))

	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.NotEmpty(t, body["error"])
	assert.Zero(t, countTurns(t, store, "u1", ""))
}

func TestChatEndToEndStrictArtifacts(t *testing.T) {
	svc, store := newTurnService(t, stubPublisher{}, chatService.WithStrictArtifacts(true))
	resp, body := serve(setupRouter(svc), formRequest(url.Values{"user_id": {"u1"}, "message": {"hi"}, "artifact_id": {"z"}}))

	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Equal(t, "Unknown artifact_id", body["error"])
	assert.Zero(t, countTurns(t, store, "u1", "z"))
}
