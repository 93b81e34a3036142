// Package storage serves published audio when objects live in NATS.
package storage

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	storageService "github.com/artifact-chatbot/backend/internal/service/storage"
	"github.com/artifact-chatbot/backend/pkg/utils"
)

// ObjectReader reads objects from one bucket.
type ObjectReader interface {
	Bucket() string
	Download(ctx context.Context, key string) ([]byte, string, error)
}

// Handler serves GET /storage/v1/object/public/{bucket}/{key...}.
type Handler struct {
	objects ObjectReader
}

// New creates the public object handler.
func New(objects ObjectReader) *Handler {
	return &Handler{objects: objects}
}

// RegisterRoutes mounts the public object path.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/storage/v1/object/public/{bucket}/*", h.handleGetObject)
}

func (h *Handler) handleGetObject(w http.ResponseWriter, r *http.Request) {
	bucket := chi.URLParam(r, "bucket")
	key := chi.URLParam(r, "*")
	// chi routes on RawPath when the request carries one, leaving the key escaped.
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(key)
		if err != nil {
			utils.RespondError(w, r, http.StatusNotFound, "Object not found")
			return
		}
		key = unescaped
	}
	if bucket != h.objects.Bucket() || key == "" {
		utils.RespondError(w, r, http.StatusNotFound, "Object not found")
		return
	}

	data, contentType, err := h.objects.Download(r.Context(), key)
	if err != nil {
		if errors.Is(err, storageService.ErrNotFound) {
			utils.RespondError(w, r, http.StatusNotFound, "Object not found")
			return
		}
		hlog.FromRequest(r).Error().Err(err).Str("key", key).Msg("failed to read object")
		utils.RespondError(w, r, http.StatusInternalServerError, "Failed to read object")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
