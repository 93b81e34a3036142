package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	chatService "github.com/artifact-chatbot/backend/internal/service/chat"
	"github.com/artifact-chatbot/backend/pkg/utils"
)

const maxMultipartMemory = 32 << 20

// TurnRunner 대화 한 턴 실행기
type TurnRunner interface {
	Turn(ctx context.Context, req chatService.TurnRequest) (*chatService.TurnResult, error)
}

// Handler 채팅 HTTP 처리기
type Handler struct {
	turns TurnRunner
}

// New 채팅 처리기 생성
func New(turns TurnRunner) *Handler {
	return &Handler{turns: turns}
}

// RegisterRoutes 채팅 라우트 등록
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
}

type chatResponse struct {
	Response string  `json:"response"`
	AudioURL *string `json:"audio_url"`
	Error    string  `json:"error,omitempty"`
}

// jsonPayload 프런트엔드의 camelCase 와 폼 필드의 snake_case 이름을 모두 허용
type jsonPayload struct {
	UserIDCamel     string `json:"userId"`
	UserID          string `json:"user_id"`
	Message         string `json:"message"`
	ArtifactIDCamel string `json:"artifactId"`
	ArtifactID      string `json:"artifact_id"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// handleChat 대화 한 턴 처리
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	req, status, msg := parseTurnRequest(r)
	if status != 0 {
		utils.RespondError(w, r, status, msg)
		return
	}

	result, err := h.turns.Turn(r.Context(), req)
	if err != nil {
		status, msg := statusFor(err)
		if status >= http.StatusInternalServerError {
			hlog.FromRequest(r).Error().Err(err).Msg("chat turn failed")
		}
		utils.RespondError(w, r, status, msg)
		return
	}

	resp := chatResponse{Response: result.Response, AudioURL: result.AudioURL}
	if result.AudioErr != nil {
		resp.Error = result.AudioErr.Error()
	}
	utils.RespondJSON(w, r, http.StatusOK, resp)
}

// parseTurnRequest JSON, multipart, urlencoded 본문에서 세 필드 추출
// 0 이 아닌 상태 코드는 본문 자체를 읽을 수 없다는 뜻
func parseTurnRequest(r *http.Request) (chatService.TurnRequest, int, string) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	mediaType = strings.ToLower(mediaType)

	switch {
	case mediaType == "application/json":
		var payload jsonPayload
		dec := json.NewDecoder(r.Body)
		if err := dec.Decode(&payload); err != nil {
			return chatService.TurnRequest{}, http.StatusBadRequest, "Invalid JSON body"
		}
		// 본문은 JSON 값 하나여야 함
		if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
			return chatService.TurnRequest{}, http.StatusBadRequest, "Invalid JSON body"
		}
		return chatService.TurnRequest{
			UserID:     firstNonEmpty(payload.UserIDCamel, payload.UserID),
			Message:    payload.Message,
			ArtifactID: firstNonEmpty(payload.ArtifactIDCamel, payload.ArtifactID),
		}, 0, ""

	case mediaType == "multipart/form-data":
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			return chatService.TurnRequest{}, http.StatusBadRequest, "Invalid form body"
		}

	default:
		if err := r.ParseForm(); err != nil {
			return chatService.TurnRequest{}, http.StatusBadRequest, "Invalid form body"
		}
	}

	return chatService.TurnRequest{
		UserID:     r.PostFormValue("user_id"),
		Message:    r.PostFormValue("message"),
		ArtifactID: r.PostFormValue("artifact_id"),
	}, 0, ""
}

// statusFor 오류를 상태 코드와 메시지로 변환
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, chatService.ErrUnknownArtifact):
		return http.StatusUnprocessableEntity, "Unknown artifact_id"
	case errors.Is(err, chatService.ErrInvalidInput):
		return http.StatusUnprocessableEntity, "Missing required fields: user_id, message, artifact_id"
	case errors.Is(err, chatService.ErrHistory):
		return http.StatusInternalServerError, "Failed to load chat history"
	case errors.Is(err, chatService.ErrCompletion):
		return http.StatusInternalServerError, "Failed to generate reply"
	case errors.Is(err, chatService.ErrPersist):
		return http.StatusInternalServerError, "Failed to save chat turns"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
