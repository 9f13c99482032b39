// Package server exposes the HTTP API.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"studybuddy/internal/app"
	"studybuddy/internal/ratelimit"
	"studybuddy/internal/util"
	"studybuddy/pkg/domain"
)

const maxJSONBody = 1 << 20

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	Limiter        *ratelimit.FixedWindowLimiter
	TrustedProxies *util.TrustedProxies
	MaxUploadBytes int64
}

// Server exposes the HTTP endpoints.
type Server struct {
	app            *app.App
	limiter        *ratelimit.FixedWindowLimiter
	trusted        *util.TrustedProxies
	mux            *http.ServeMux
	maxUploadBytes int64
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	maxUploadBytes := cfg.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	s := &Server{
		app:            cfg.App,
		limiter:        cfg.Limiter,
		trusted:        cfg.TrustedProxies,
		mux:            http.NewServeMux(),
		maxUploadBytes: maxUploadBytes,
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog(util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	s.mux.HandleFunc("/api/auth/register", s.rateLimited("register", s.handleRegister))
	s.mux.HandleFunc("/api/auth/login", s.rateLimited("login", s.handleLogin))
	s.mux.HandleFunc("/api/auth/check-username", s.handleCheckUsername)
	s.mux.HandleFunc("/api/auth/resetpassword", s.rateLimited("reset", s.handleResetPassword))

	s.mux.Handle("/api/account/password", s.authenticated(s.handleChangePassword))
	s.mux.Handle("/api/account/gemini-key", s.authenticated(s.handleSetGeminiKey))
	s.mux.Handle("/api/account/status", s.authenticated(s.handleAccountStatus))
	s.mux.Handle("/api/models", s.authenticated(s.handleModels))

	s.mux.Handle("/api/notebooks", s.authenticated(s.handleNotebooks))
	s.mux.Handle("/api/notebooks/", s.authenticated(s.handleNotebookByID))

	s.mux.Handle("/api/documents/", s.authenticated(s.handleDocuments))
	s.mux.Handle("/api/chat/", s.authenticated(s.handleChat))
	s.mux.Handle("/api/flashcards/", s.authenticated(s.handleFlashcards))
	s.mux.Handle("/api/quizzes/", s.authenticated(s.handleQuizzes))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		user, ok := s.app.UserFromToken(token)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

// rateLimited applies the per-IP fixed-window limiter when one is configured.
func (s *Server) rateLimited(name string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil {
			key := name + ":" + util.ClientIP(r, s.trusted)
			if !s.limiter.Allow(key) {
				writeError(w, http.StatusTooManyRequests, "too many requests")
				return
			}
		}
		next(w, r)
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func decodeJSON(r *http.Request, out any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(out)
}

// audit logs a security-relevant handler outcome with the caller context.
func (s *Server) audit(r *http.Request, event string, attrs ...any) {
	attrs = append(attrs,
		"ip", util.ClientIP(r, s.trusted),
		"request_id", util.RequestIDFromRequest(r),
	)
	slog.Info("audit_"+event, attrs...)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}

type successResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, successResponse{Success: true, Data: data})
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, successResponse{Success: true, Message: msg})
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
	})
}

// writeAppError maps application errors onto HTTP statuses.
func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, app.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, app.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, app.ErrConflict):
		writeError(w, http.StatusConflict, "already exists")
	case app.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrUpstream):
		writeError(w, http.StatusBadGateway, "model request failed")
	default:
		slog.Error("handler error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
