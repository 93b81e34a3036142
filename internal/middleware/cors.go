package middleware

import (
	"fmt"
	"net/http"
	"regexp"

	"github.com/go-chi/cors"

	"github.com/artifact-chatbot/backend/internal/config"
)

// CORS allows the listed origins plus any origin matching the configured
// pattern. Credentials are allowed, so "*" is never echoed back.
func CORS(cfg config.CORSConfig) (func(http.Handler) http.Handler, error) {
	var pattern *regexp.Regexp
	if cfg.OriginPattern != "" {
		re, err := regexp.Compile(cfg.OriginPattern)
		if err != nil {
			return nil, fmt.Errorf("invalid CORS origin pattern: %w", err)
		}
		pattern = re
	}

	allowed := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		allowed[origin] = struct{}{}
	}

	return cors.Handler(cors.Options{
		AllowOriginFunc: func(_ *http.Request, origin string) bool {
			if _, ok := allowed[origin]; ok {
				return true
			}
			return pattern != nil && pattern.MatchString(origin)
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}), nil
}
