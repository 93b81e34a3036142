package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/artifact-chatbot/backend/internal/config"
	"github.com/artifact-chatbot/backend/internal/handler/chat"
	"github.com/artifact-chatbot/backend/internal/handler/persona"
	"github.com/artifact-chatbot/backend/internal/handler/storage"
	middlewarePkg "github.com/artifact-chatbot/backend/internal/middleware"
	personaModel "github.com/artifact-chatbot/backend/internal/model/persona"
	"github.com/artifact-chatbot/backend/pkg/utils"
)

// Pinger reports whether the history database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services the routes are wired to. Objects is only set when
// audio is kept in NATS and must be served by this API.
type Deps struct {
	Personas personaModel.Store
	Turns    chat.TurnRunner
	Health   Pinger
	Objects  storage.ObjectReader
}

// NewRouter wires HTTP routes to core services.
func NewRouter(cfg config.CORSConfig, deps Deps, log zerolog.Logger) (http.Handler, error) {
	cors, err := middlewarePkg.CORS(cfg)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.Logging(log))
	r.Use(middleware.Recoverer)
	r.Use(cors)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("접속 경로: /a 또는 /b"))
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if deps.Health != nil {
			if err := deps.Health.Ping(r.Context()); err != nil {
				hlog.FromRequest(r).Error().Err(err).Msg("health check failed")
				utils.RespondJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		utils.RespondJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	chat.New(deps.Turns).RegisterRoutes(r)

	r.Route("/api", func(api chi.Router) {
		persona.New(deps.Personas).RegisterRoutes(api)
	})

	if deps.Objects != nil {
		storage.New(deps.Objects).RegisterRoutes(r)
	}

	return r, nil
}
