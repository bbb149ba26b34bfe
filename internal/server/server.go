// Package server exposes the chat application over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"autodiag/internal/app"
	"autodiag/internal/identity"
	"autodiag/internal/ratelimit"
	"autodiag/internal/util"
)

const (
	userCookieName = "user_id"
	cookieMaxAge   = int(365 * 24 * time.Hour / time.Second)
	maxBodyBytes   = 1 << 20
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App      *app.App
	Identity *identity.Manager
	// Limiter is optional; requests pass unthrottled when nil.
	Limiter *ratelimit.FixedWindowLimiter
}

// Server exposes HTTP endpoints for the diagnosis chat service.
type Server struct {
	app      *app.App
	identity *identity.Manager
	limiter  *ratelimit.FixedWindowLimiter
	mux      *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app is required")
	}
	if cfg.Identity == nil {
		return nil, errors.New("identity manager is required")
	}
	s := &Server{
		app:      cfg.App,
		identity: cfg.Identity,
		limiter:  cfg.Limiter,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler with the middleware chain applied.
func (s *Server) Router() http.Handler {
	var h http.Handler = s.mux
	h = util.WithRequestLog(h)
	h = util.WithRequestID(h)
	h = util.WithCORS(h)
	h = util.WithSecurityHeaders(h)
	return s.withRecovery(h)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.Handle("/api/start-chat", s.rateLimited(s.handleStartChat))
	s.mux.Handle("/api/chat", s.rateLimited(s.handleChat))
	s.mux.HandleFunc("/api/history", s.handleHistory)
	s.mux.HandleFunc("/api/history/", s.handleSessionByID)
	s.mux.HandleFunc("/api/clear-history", s.handleClearHistory)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type startChatRequest struct {
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	Year         int    `json:"year"`
}

func (s *Server) handleStartChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req startChatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	userID := s.userIDFromRequest(r)
	if userID == "" {
		// First contact: mint an id and hand it back as a signed cookie
		// so follow-up history calls can find this session.
		userID = identity.NewUserID()
		token, err := s.identity.Issue(userID)
		if err != nil {
			slog.Error("issue identity token", "err", err)
			writeError(w, http.StatusInternalServerError, "failed to start chat")
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     userCookieName,
			Value:    token,
			Path:     "/",
			MaxAge:   cookieMaxAge,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}

	result, err := s.app.StartSession(userID, req.Manufacturer, req.Model, req.Year)
	if err != nil {
		if errors.Is(err, app.ErrInvalidVehicle) {
			writeError(w, http.StatusBadRequest, "missing required fields")
			return
		}
		slog.Error("start session", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to start chat")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req chatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SessionID == "" || strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}
	result, err := s.app.PostTurn(r.Context(), req.SessionID, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrSessionNotFound):
			writeError(w, http.StatusNotFound, "session not found")
		case errors.Is(err, app.ErrEmptyMessage):
			writeError(w, http.StatusBadRequest, "missing required fields")
		default:
			slog.Error("process turn", "session_id", req.SessionID, "err", err)
			writeError(w, http.StatusInternalServerError, "failed to process message")
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	userID := s.userIDFromRequest(r)
	sessions, err := s.app.ListSessions(userID)
	if err != nil {
		slog.Error("list sessions", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to get history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) handleSessionByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	sessionID := strings.TrimPrefix(r.URL.Path, "/api/history/")
	if sessionID == "" || strings.Contains(sessionID, "/") {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	userID := s.userIDFromRequest(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "user not authenticated")
		return
	}
	session, err := s.app.GetSession(userID, sessionID)
	if err != nil {
		// An owner mismatch is reported the same way as an unknown id so
		// session ids cannot be probed.
		if errors.Is(err, app.ErrSessionNotFound) || errors.Is(err, app.ErrSessionForbidden) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		slog.Error("get session", "session_id", sessionID, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to get session")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	userID := s.userIDFromRequest(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "user not authenticated")
		return
	}
	cleared, err := s.app.ClearHistory(userID)
	if err != nil {
		slog.Error("clear history", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to clear history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "cleared": cleared})
}

// userIDFromRequest returns the verified cookie identity, or "" when the
// cookie is absent or fails verification.
func (s *Server) userIDFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(userCookieName)
	if err != nil {
		return ""
	}
	userID, err := s.identity.Verify(cookie.Value)
	if err != nil {
		return ""
	}
	return userID
}

func (s *Server) rateLimited(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow(util.ClientIP(r)) {
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next(w, r)
	})
}

func (s *Server) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("panic recovered", "path", r.URL.Path, "panic", rec)
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
