package persona

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/artifact-chatbot/backend/internal/model/persona"
	"github.com/artifact-chatbot/backend/pkg/utils"
)

// Handler 페르소나 HTTP 처리기
type Handler struct {
	personas persona.Store
}

// New 페르소나 처리기 생성
func New(personas persona.Store) *Handler {
	return &Handler{
		personas: personas,
	}
}

// RegisterRoutes 페르소나 라우트 등록
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/personas", h.handleListPersonas)
	r.Get("/personas/{artifactID}", h.handleGetPersona)
}

// handleListPersonas 전체 페르소나 목록
func (h *Handler) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, r, http.StatusOK, h.personas.List())
}

// handleGetPersona 단일 페르소나 조회
func (h *Handler) handleGetPersona(w http.ResponseWriter, r *http.Request) {
	p, ok := h.personas.FindByID(chi.URLParam(r, "artifactID"))
	if !ok {
		utils.RespondError(w, r, http.StatusNotFound, "persona not found")
		return
	}
	utils.RespondJSON(w, r, http.StatusOK, p)
}
