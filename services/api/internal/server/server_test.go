package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"goaljournal/pkg/cooldown"
	"goaljournal/pkg/domain"
	"goaljournal/pkg/store"
	"goaljournal/services/api/internal/app"
)

const testLetterJSON = `{
	"title": "新的篇章",
	"greeting": "親愛的自己",
	"content": "你已經走了很遠。",
	"reflection_question": "你為什麼出發？",
	"signature": "未來的你"
}`

type fixedTextGen struct{}

func (fixedTextGen) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return testLetterJSON, nil
}

func newTestServer(t *testing.T) (*Server, *app.StatusRecorder) {
	t.Helper()
	sessions, err := store.NewJWTSessionStore("0123456789abcdef0123456789abcdef", time.Hour)
	if err != nil {
		t.Fatalf("jwt sessions: %v", err)
	}
	tracker, err := cooldown.NewTracker(nil)
	if err != nil {
		t.Fatalf("tracker: %v", err)
	}
	status := app.NewStatusRecorder()
	a, err := app.New(app.Config{
		Store:    store.NewMemoryStore(),
		Sessions: sessions,
		TextGen:  fixedTextGen{},
		Cooldown: tracker,
		Status:   status,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return New(Config{App: a, Status: status}), status
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func registerUser(t *testing.T, handler http.Handler) string {
	t.Helper()
	rec := doJSON(t, handler, http.MethodPost, "/auth/register", "", map[string]string{
		"email":    "u1@example.com",
		"password": "secret-password",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: status %d body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	return resp.Token
}

func createGoal(t *testing.T, handler http.Handler, token, title string) string {
	t.Helper()
	rec := doJSON(t, handler, http.MethodPost, "/goals", token, map[string]string{"title": title})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create goal: status %d body %s", rec.Code, rec.Body.String())
	}
	var goal domain.Goal
	if err := json.Unmarshal(rec.Body.Bytes(), &goal); err != nil {
		t.Fatalf("decode goal: %v", err)
	}
	return goal.ID
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Router(), http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: status %d", rec.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Router(), http.MethodGet, "/goals", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRegisterLoginFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Router()
	registerUser(t, handler)

	// Duplicate email conflicts.
	rec := doJSON(t, handler, http.MethodPost, "/auth/register", "", map[string]string{
		"email": "u1@example.com", "password": "another",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register: status %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "u1@example.com", "password": "secret-password",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "u1@example.com", "password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: status %d", rec.Code)
	}
}

func TestGenerateLetterEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Router()
	token := registerUser(t, handler)
	goalID := createGoal(t, handler, token, "學習日文")

	rec := doJSON(t, handler, http.MethodPost, "/letters", token, map[string]string{
		"goalId": goalID, "type": "goal_created",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("generate: status %d body %s", rec.Code, rec.Body.String())
	}
	var letter domain.Letter
	if err := json.Unmarshal(rec.Body.Bytes(), &letter); err != nil {
		t.Fatalf("decode letter: %v", err)
	}
	if letter.Title != "來自未來的問候" {
		t.Fatalf("unexpected title: %q", letter.Title)
	}

	// Second generation within the window hits the cooldown.
	rec = doJSON(t, handler, http.MethodPost, "/letters", token, map[string]string{
		"goalId": goalID, "type": "daily_feedback",
	})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, fmt.Sprintf("/goals/%s/cooldown", goalID), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cooldown: status %d", rec.Code)
	}
	var cooldownResp struct {
		RemainingMs int64 `json:"remainingMs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &cooldownResp); err != nil {
		t.Fatalf("decode cooldown: %v", err)
	}
	if cooldownResp.RemainingMs <= 0 {
		t.Fatalf("expected positive remaining cooldown, got %d", cooldownResp.RemainingMs)
	}

	// Mark read and fetch.
	rec = doJSON(t, handler, http.MethodPost, fmt.Sprintf("/letters/%s/read", letter.ID), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("mark read: status %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodGet, fmt.Sprintf("/letters/%s", letter.ID), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get letter: status %d", rec.Code)
	}
	var fetched domain.Letter
	if err := json.Unmarshal(rec.Body.Bytes(), &fetched); err != nil {
		t.Fatalf("decode letter: %v", err)
	}
	if fetched.ReadAt == nil {
		t.Fatalf("expected readAt set")
	}
}

func TestGenerateLetterUnknownType(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Router()
	token := registerUser(t, handler)
	rec := doJSON(t, handler, http.MethodPost, "/letters", token, map[string]string{
		"goalId": "g1", "type": "bogus",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestLetterStatusEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Router()
	token := registerUser(t, handler)
	goalID := createGoal(t, handler, token, "學習日文")

	doJSON(t, handler, http.MethodPost, "/letters", token, map[string]string{
		"goalId": goalID, "type": "goal_created",
	})

	rec := doJSON(t, handler, http.MethodGet, "/letters/status", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	var resp struct {
		Current *app.LetterStatus  `json:"current"`
		History []app.LetterStatus `json:"history"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if resp.Current == nil || resp.Current.Status != "success" {
		t.Fatalf("unexpected current status: %+v", resp.Current)
	}
	if len(resp.History) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(resp.History))
	}
}

func TestJournalsAndCollects(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Router()
	token := registerUser(t, handler)
	goalID := createGoal(t, handler, token, "學習日文")

	rec := doJSON(t, handler, http.MethodPost, "/journals", token, map[string]any{
		"title": "第一天", "content": "開始了。", "goalId": goalID,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create journal: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPost, "/collects", token, map[string]any{
		"type": "link", "content": "https://example.com", "caption": "參考", "goalId": goalID,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create collect: status %d body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/journals?goalId="+goalID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list journals: status %d", rec.Code)
	}
	var entries []domain.JournalEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode journals: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	rec = doJSON(t, handler, http.MethodGet, "/collects?goalId="+goalID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list collects: status %d", rec.Code)
	}
}
