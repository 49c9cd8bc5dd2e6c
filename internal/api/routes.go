// Package api provides HTTP handlers for the SE-Atlas server.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/se-atlas/server/internal/auth"
	"github.com/se-atlas/server/internal/cache"
	"github.com/se-atlas/server/internal/geo"
	"github.com/se-atlas/server/internal/metrics"
	"github.com/se-atlas/server/internal/render"
	"github.com/se-atlas/server/internal/service"
)

// RouterConfig contains router configuration.
type RouterConfig struct {
	Registry    *Registry
	Dashboard   *service.Dashboard
	Cache       *cache.Manager
	Charts      *render.Charts
	MapView     *render.MapView
	Verifier    auth.Verifier
	Sessions    *auth.Store
	Tokens      *auth.Tokens
	Cookie      CookieConfig
	CORSOrigins []string
}

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) *chi.Mux {
	if cfg.Cookie.Name == "" {
		cfg.Cookie.Name = "se_atlas_session"
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5, "application/json", "application/geo+json", "text/plain"))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/info", infoHandler(cfg.Registry))
		r.Post("/login", loginHandler(cfg))
		r.Post("/logout", logoutHandler(cfg))

		r.Group(func(r chi.Router) {
			r.Use(sessionMiddleware(cfg))

			r.Get("/session", sessionHandler)
			r.Get("/filters", filtersHandler(cfg.Dashboard))
			r.Put("/selection", selectionHandler(cfg))
			r.Get("/zones", zonesHandler(cfg.Dashboard, cfg.Cache))
			r.Get("/points", pointsHandler(cfg.Dashboard, cfg.Cache))

			r.Get("/stats/zone", zoneStatsHandler(cfg.Dashboard))
			r.Get("/stats/drawn", drawnStatsHandler(cfg.Dashboard))
			r.Post("/stats/drawn", drawnSubmitHandler(cfg))
			r.Delete("/stats/drawn", drawnClearHandler(cfg))

			r.Get("/charts/population.png", populationChartHandler(cfg))
			r.Get("/charts/sex.png", sexChartHandler(cfg))
			r.Get("/map.png", mapHandler(cfg))
		})
	})

	return r
}

// infoHandler returns what the login screen needs before authentication.
func infoHandler(registry *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"title":     registry.Title(),
			"usernames": registry.Usernames(),
			"datasets":  registry.Datasets(),
		})
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError maps pipeline errors to status codes.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidSelection), errors.Is(err, geo.ErrInvalidGeometry):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, render.ErrNoData):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, auth.ErrSessionNotFound):
		writeError(w, http.StatusUnauthorized, "session expired")
	default:
		log.Printf("[API] %s %s: %v", r.Method, r.URL.Path, err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writePNG(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=60")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
