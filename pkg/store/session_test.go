package store

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestJWTSessionRoundTrip(t *testing.T) {
	sessions, err := NewJWTSessionStore("0123456789abcdef0123456789abcdef", time.Hour)
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	token, err := sessions.NewSession("u1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	userID, ok, err := sessions.GetUserIDByToken(token)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !ok || userID != "u1" {
		t.Fatalf("unexpected session lookup: ok=%v userID=%s", ok, userID)
	}
}

func TestJWTSessionRejectsGarbage(t *testing.T) {
	sessions, err := NewJWTSessionStore("0123456789abcdef0123456789abcdef", time.Hour)
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	if _, ok, _ := sessions.GetUserIDByToken("not-a-token"); ok {
		t.Fatalf("garbage token accepted")
	}
}

func TestJWTSessionSecretTooShort(t *testing.T) {
	if _, err := NewJWTSessionStore("short", time.Hour); err == nil {
		t.Fatalf("expected error for short secret")
	}
}

func TestRedisSessionRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	sessions := NewRedisSessionStore(mr.Addr(), "", time.Hour)

	token, err := sessions.NewSession("u1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	userID, ok, err := sessions.GetUserIDByToken(token)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !ok || userID != "u1" {
		t.Fatalf("unexpected session lookup: ok=%v userID=%s", ok, userID)
	}

	if err := sessions.DeleteSession(token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, ok, _ := sessions.GetUserIDByToken(token); ok {
		t.Fatalf("deleted session still resolves")
	}
}

func TestRedisSessionExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	sessions := NewRedisSessionStore(mr.Addr(), "", time.Minute)

	token, err := sessions.NewSession("u1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, ok, _ := sessions.GetUserIDByToken(token); ok {
		t.Fatalf("expired session still resolves")
	}
}
