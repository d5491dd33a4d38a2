// Package httpapi exposes a small read-only ops surface: health, the current
// directory snapshot, and the recent action audit trail. All mutations flow
// through chat commands, never through HTTP.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcsmops/panelbot/internal/audit"
	"github.com/mcsmops/panelbot/internal/registry"
)

type Handler struct {
	directory *registry.Directory
	audit     *audit.Log
	tokenHash string // bcrypt hash of the ops token; empty locks the API
}

func NewHandler(directory *registry.Directory, auditLog *audit.Log, tokenHash string) *Handler {
	return &Handler{directory: directory, audit: auditLog, tokenHash: tokenHash}
}

func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization"},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.requireToken)
		r.Get("/instances", h.Instances)
		r.Get("/actions", h.Actions)
	})

	return r
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"refreshed_at": h.directory.RefreshedAt().Format(time.RFC3339),
		"instances":    len(h.directory.Records()),
	})
}

func (h *Handler) Instances(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"refreshed_at": h.directory.RefreshedAt().Format(time.RFC3339),
		"nodes":        h.directory.Nodes(),
		"records":      h.directory.Records(),
	})
}

func (h *Handler) Actions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	entries, err := h.audit.Recent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query actions")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// requireToken checks the bearer token against the configured bcrypt hash.
// With no hash configured the API stays locked.
func (h *Handler) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.tokenHash == "" {
			writeError(w, http.StatusServiceUnavailable, "ops token not configured")
			return
		}
		token := r.Header.Get("Authorization")
		if !strings.HasPrefix(token, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		token = strings.TrimPrefix(token, "Bearer ")
		if bcrypt.CompareHashAndPassword([]byte(h.tokenHash), []byte(token)) != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().Str("method", r.Method).Str("path", r.URL.Path).
			Int("status", ww.Status()).Dur("elapsed", time.Since(start)).Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode response failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
