package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/v1gneshkum4r21/face-clustering/internal/database/mock"
)

func TestNewSessionManager(t *testing.T) {
	sm := NewSessionManager("test-secret", nil)
	if sm == nil {
		t.Fatal("NewSessionManager returned nil")
	}
	if sm.sessions == nil {
		t.Error("sessions map is nil")
	}

	generated := NewSessionManager("", nil)
	if len(generated.secret) == 0 {
		t.Error("expected a generated secret")
	}
}

func TestCheckPassword(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		given      string
		want       bool
	}{
		{"match", "hunter2", "hunter2", true},
		{"mismatch", "hunter2", "hunter3", false},
		{"prefix", "hunter2", "hunter", false},
		{"empty configured", "", "", false},
		{"empty given", "hunter2", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CheckPassword(tt.configured, tt.given); got != tt.want {
				t.Errorf("CheckPassword() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSessionManager_CreateAndGetSession(t *testing.T) {
	sm := NewSessionManager("test-secret", nil)
	ctx := context.Background()

	session, err := sm.CreateSession(ctx)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if session.ID == "" {
		t.Error("session ID is empty")
	}
	if session.ExpiresAt.Before(time.Now()) {
		t.Error("session expires in the past")
	}

	if sm.GetSession(ctx, session.ID) == nil {
		t.Fatal("GetSession() returned nil for existing session")
	}
	if sm.GetSession(ctx, "nonexistent-id") != nil {
		t.Error("GetSession() should return nil for non-existing session")
	}
}

func TestSessionManager_ExpiredSession(t *testing.T) {
	sm := NewSessionManager("test-secret", nil)
	ctx := context.Background()
	sm.sessions["old"] = &Session{ID: "old", ExpiresAt: time.Now().Add(-time.Minute)}

	if sm.GetSession(ctx, "old") != nil {
		t.Error("expired session should not be returned")
	}
	if _, ok := sm.sessions["old"]; ok {
		t.Error("expired session should be evicted")
	}
}

func TestSessionManager_DeleteSession(t *testing.T) {
	sm := NewSessionManager("test-secret", nil)
	ctx := context.Background()
	session, _ := sm.CreateSession(ctx)

	sm.DeleteSession(ctx, session.ID)

	if sm.GetSession(ctx, session.ID) != nil {
		t.Error("GetSession() should return nil after deletion")
	}
}

func TestSessionManager_PersistsAcrossRestart(t *testing.T) {
	store := mock.NewMockLedger()
	ctx := context.Background()

	first := NewSessionManager("test-secret", store)
	session, err := first.CreateSession(ctx)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	restarted := NewSessionManager("test-secret", store)
	if restarted.GetSession(ctx, session.ID) == nil {
		t.Fatal("session should be loaded from the store after restart")
	}

	restarted.DeleteSession(ctx, session.ID)
	stored, _ := store.GetSession(ctx, session.ID)
	if stored != nil {
		t.Error("session should be removed from the store")
	}
}

func TestSessionManager_StoreFailure(t *testing.T) {
	store := mock.NewMockLedger()
	store.SessionError = context.DeadlineExceeded
	sm := NewSessionManager("test-secret", store)

	if _, err := sm.CreateSession(context.Background()); err == nil {
		t.Error("CreateSession() should fail when the store fails")
	}
	if sm.GetSession(context.Background(), "any") != nil {
		t.Error("GetSession() should return nil when the store fails")
	}
}

func TestSessionManager_CookieFlags(t *testing.T) {
	sm := NewSessionManager("test-secret", nil)
	session, _ := sm.CreateSession(context.Background())

	w := httptest.NewRecorder()
	sm.SetSessionCookie(w, httptest.NewRequest(http.MethodGet, "/", nil), session)

	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != sessionCookieName {
		t.Fatalf("expected one session cookie, got %v", cookies)
	}
	if c := cookies[0]; !c.HttpOnly || c.SameSite != http.SameSiteLaxMode || c.MaxAge != int(sessionDuration.Seconds()) {
		t.Errorf("unexpected cookie attributes %+v", c)
	}

	w = httptest.NewRecorder()
	sm.ClearSessionCookie(w)
	if c := w.Result().Cookies(); len(c) != 1 || c[0].MaxAge >= 0 {
		t.Errorf("expected an expiring cookie, got %v", c)
	}
}

func TestSessionManager_GetSessionFromRequest(t *testing.T) {
	sm := NewSessionManager("test-secret", nil)
	session, _ := sm.CreateSession(context.Background())
	other := NewSessionManager("other-secret", nil)

	tests := []struct {
		name   string
		cookie string
		bearer string
		want   bool
	}{
		{name: "signed cookie", cookie: session.ID + "." + sm.sign(session.ID), want: true},
		{name: "bearer token", bearer: session.ID, want: true},
		{name: "nothing"},
		{name: "unknown id", cookie: "nope." + sm.sign("nope")},
		{name: "forged signature", cookie: session.ID + ".forged"},
		{name: "signed with another secret", cookie: session.ID + "." + other.sign(session.ID)},
		{name: "unsigned cookie", cookie: session.ID},
		{name: "unknown bearer", bearer: "nope"},
		{name: "bad cookie falls back to bearer", cookie: session.ID + ".forged", bearer: session.ID, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: tt.cookie})
			}
			if tt.bearer != "" {
				req.Header.Set("Authorization", "Bearer "+tt.bearer)
			}

			got := sm.GetSessionFromRequest(req)
			if (got != nil) != tt.want {
				t.Fatalf("GetSessionFromRequest() = %v, want session: %v", got, tt.want)
			}
			if got != nil && got.ID != session.ID {
				t.Errorf("session ID = %s, want %s", got.ID, session.ID)
			}
		})
	}
}
