// Package server exposes the Goal Journal HTTP API.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"goaljournal/internal/ratelimit"
	"goaljournal/internal/util"
	"goaljournal/pkg/domain"
	"goaljournal/services/api/internal/app"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App     *app.App
	Status  *app.StatusRecorder
	Limiter *ratelimit.FixedWindowLimiter
}

// Server exposes HTTP endpoints for the API service.
type Server struct {
	app     *app.App
	status  *app.StatusRecorder
	limiter *ratelimit.FixedWindowLimiter
	mux     *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:     cfg.App,
		status:  cfg.Status,
		limiter: cfg.Limiter,
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog(util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("POST /auth/register", s.handleRegister)
	s.mux.HandleFunc("POST /auth/login", s.handleLogin)
	s.mux.HandleFunc("POST /auth/logout", s.handleLogout)

	s.mux.Handle("POST /goals", s.withUser(s.handleCreateGoal))
	s.mux.Handle("GET /goals", s.withUser(s.handleListGoals))
	s.mux.Handle("GET /goals/{id}", s.withUser(s.handleGetGoal))
	s.mux.Handle("DELETE /goals/{id}", s.withUser(s.handleDeleteGoal))
	s.mux.Handle("GET /goals/{id}/cooldown", s.withUser(s.handleCooldown))

	s.mux.Handle("POST /journals", s.withUser(s.handleCreateJournal))
	s.mux.Handle("GET /journals", s.withUser(s.handleListJournals))
	s.mux.Handle("DELETE /journals/{id}", s.withUser(s.handleDeleteJournal))

	s.mux.Handle("POST /collects", s.withUser(s.handleCreateCollect))
	s.mux.Handle("GET /collects", s.withUser(s.handleListCollects))
	s.mux.Handle("DELETE /collects/{id}", s.withUser(s.handleDeleteCollect))

	s.mux.Handle("POST /letters", s.withUser(s.handleGenerateLetter))
	s.mux.Handle("GET /letters", s.withUser(s.handleListLetters))
	s.mux.Handle("GET /letters/status", s.withUser(s.handleLetterStatus))
	s.mux.Handle("GET /letters/{id}", s.withUser(s.handleGetLetter))
	s.mux.Handle("POST /letters/{id}/read", s.withUser(s.handleMarkLetterRead))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- auth ---

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, token, err := s.app.Register(req.Email, req.Password)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{Token: token, User: user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, token, err := s.app.Login(req.Email, req.Password)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Token: token, User: user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := s.app.Logout(token); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type userHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) withUser(next userHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, app.ErrAuthRequired.Error())
			return
		}
		user, found, err := s.app.UserByToken(token)
		if err != nil || !found {
			writeError(w, http.StatusUnauthorized, app.ErrAuthRequired.Error())
			return
		}
		next(w, r, user)
	})
}

// --- goals ---

type goalRequest struct {
	Title string `json:"title"`
	Image string `json:"image"`
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req goalRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	goal, err := s.app.CreateGoal(user.ID, req.Title, req.Image)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, goal)
}

func (s *Server) handleListGoals(w http.ResponseWriter, _ *http.Request, user domain.User) {
	goals, err := s.app.ListGoals(user.ID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, goals)
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request, user domain.User) {
	goal, err := s.app.GetGoal(user.ID, r.PathValue("id"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request, user domain.User) {
	if err := s.app.DeleteGoal(r.Context(), user.ID, r.PathValue("id")); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleCooldown(w http.ResponseWriter, r *http.Request, user domain.User) {
	goalID := r.PathValue("id")
	if _, err := s.app.GetGoal(user.ID, goalID); err != nil {
		writeAppError(w, err)
		return
	}
	remaining := s.app.TimeUntilNextGeneration(goalID)
	writeJSON(w, http.StatusOK, map[string]int64{
		"remainingMs": remaining.Milliseconds(),
	})
}

// --- journals ---

type journalRequest struct {
	Title        string               `json:"title"`
	Content      string               `json:"content"`
	MediaURLs    []string             `json:"mediaUrls"`
	TextCollects []domain.TextCollect `json:"textCollects"`
	GoalID       string               `json:"goalId"`
	LetterID     string               `json:"letterId"`
	CollectID    string               `json:"collectId"`
}

func (s *Server) handleCreateJournal(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req journalRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	entry, err := s.app.CreateJournalEntry(r.Context(), user.ID, domain.JournalEntry{
		Title:        req.Title,
		Content:      req.Content,
		MediaURLs:    req.MediaURLs,
		TextCollects: req.TextCollects,
		GoalID:       req.GoalID,
		LetterID:     req.LetterID,
		CollectID:    req.CollectID,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleListJournals(w http.ResponseWriter, r *http.Request, user domain.User) {
	goalID := r.URL.Query().Get("goalId")
	if goalID == "" {
		writeError(w, http.StatusBadRequest, "goalId is required")
		return
	}
	entries, err := s.app.ListJournalEntries(user.ID, goalID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleDeleteJournal(w http.ResponseWriter, r *http.Request, user domain.User) {
	if err := s.app.DeleteJournalEntry(user.ID, r.PathValue("id")); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// --- collects ---

type collectRequest struct {
	Type         string `json:"type"`
	Content      string `json:"content"`
	Caption      string `json:"caption"`
	Title        string `json:"title"`
	PreviewImage string `json:"previewImage"`
	Color        string `json:"color"`
	GoalID       string `json:"goalId"`
}

func (s *Server) handleCreateCollect(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req collectRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	collect, err := s.app.CreateCollect(user.ID, domain.Collect{
		Type:         domain.CollectType(req.Type),
		Content:      req.Content,
		Caption:      req.Caption,
		Title:        req.Title,
		PreviewImage: req.PreviewImage,
		Color:        req.Color,
		GoalID:       req.GoalID,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, collect)
}

func (s *Server) handleListCollects(w http.ResponseWriter, r *http.Request, user domain.User) {
	goalID := r.URL.Query().Get("goalId")
	if goalID == "" {
		writeError(w, http.StatusBadRequest, "goalId is required")
		return
	}
	collects, err := s.app.ListCollects(user.ID, goalID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, collects)
}

func (s *Server) handleDeleteCollect(w http.ResponseWriter, r *http.Request, user domain.User) {
	if err := s.app.DeleteCollect(user.ID, r.PathValue("id")); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// --- letters ---

type generateLetterRequest struct {
	GoalID string `json:"goalId"`
	Type   string `json:"type"`
}

func (s *Server) handleGenerateLetter(w http.ResponseWriter, r *http.Request, user domain.User) {
	if s.limiter != nil && !s.limiter.Allow("generate:"+user.ID) {
		writeError(w, http.StatusTooManyRequests, "too many requests")
		return
	}
	var req generateLetterRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	letterType := domain.LetterType(req.Type)
	if !domain.ValidLetterType(letterType) {
		writeError(w, http.StatusBadRequest, "unknown letter type")
		return
	}
	// API calls are always user gestures; automatic runs come in through
	// the job queue.
	letter, err := s.app.GenerateLetter(r.Context(), user.ID, app.GenerateLetterOptions{
		GoalID:   req.GoalID,
		Type:     letterType,
		IsManual: true,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, letter)
}

func (s *Server) handleListLetters(w http.ResponseWriter, r *http.Request, user domain.User) {
	goalID := r.URL.Query().Get("goalId")
	if goalID == "" {
		writeError(w, http.StatusBadRequest, "goalId is required")
		return
	}
	letters, err := s.app.ListLetters(user.ID, goalID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, letters)
}

func (s *Server) handleGetLetter(w http.ResponseWriter, r *http.Request, user domain.User) {
	letter, err := s.app.GetLetter(user.ID, r.PathValue("id"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, letter)
}

func (s *Server) handleMarkLetterRead(w http.ResponseWriter, r *http.Request, user domain.User) {
	if err := s.app.MarkLetterAsRead(user.ID, r.PathValue("id")); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLetterStatus(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if s.status == nil {
		writeError(w, http.StatusNotFound, "status recorder not configured")
		return
	}
	type statusResponse struct {
		Current *app.LetterStatus  `json:"current"`
		History []app.LetterStatus `json:"history"`
	}
	resp := statusResponse{History: s.status.History()}
	if current, ok := s.status.Current(); ok {
		resp.Current = &current
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- helpers ---

func decodeBody(r *http.Request, out any) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(out)
}

func writeAppError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, app.ErrAuthRequired), errors.Is(err, app.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, app.ErrGoalNotFound), errors.Is(err, app.ErrLetterNotFound),
		errors.Is(err, app.ErrJournalNotFound), errors.Is(err, app.ErrCollectNotFound):
		status = http.StatusNotFound
	case errors.Is(err, app.ErrCooldownActive):
		status = http.StatusTooManyRequests
	case errors.Is(err, app.ErrEmailTaken):
		status = http.StatusConflict
	case errors.Is(err, app.ErrMalformedAIResponse):
		status = http.StatusBadGateway
	case errors.Is(err, app.ErrPersistence):
		status = http.StatusInternalServerError
	default:
		status = http.StatusBadRequest
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}
