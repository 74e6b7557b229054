package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/v1gneshkum4r21/face-clustering/internal/database"
)

const (
	sessionCookieName = "face_clustering_session"
	sessionDuration   = 24 * time.Hour
	sessionIDBytes    = 32
)

// Session is an authenticated admin login.
type Session struct {
	ID        string    `json:"session_id"`
	CreatedAt time.Time `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Session) expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionManager issues admin sessions. Live sessions are kept in memory;
// with a store they are also written through so a restart does not log
// admins out.
type SessionManager struct {
	secret []byte
	store  database.SessionStore // optional

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionManager signs cookies with secret. An empty secret gets a random
// one, which invalidates cookies on every restart.
func NewSessionManager(secret string, store database.SessionStore) *SessionManager {
	key := []byte(secret)
	if len(key) == 0 {
		key = randomToken()
	}
	return &SessionManager{secret: key, store: store, sessions: map[string]*Session{}}
}

func randomToken() []byte {
	b := make([]byte, sessionIDBytes)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand: " + err.Error())
	}
	return b
}

// CheckPassword reports whether given matches the configured admin password
// without leaking timing. Nothing matches an unset password.
func CheckPassword(configured, given string) bool {
	if configured == "" {
		return false
	}
	want, got := sha256.Sum256([]byte(configured)), sha256.Sum256([]byte(given))
	return subtle.ConstantTimeCompare(want[:], got[:]) == 1
}

func (sm *SessionManager) remember(s *Session) {
	sm.mu.Lock()
	sm.sessions[s.ID] = s
	sm.mu.Unlock()
}

func (sm *SessionManager) CreateSession(ctx context.Context) (*Session, error) {
	now := time.Now().UTC()
	s := &Session{
		ID:        base64.RawURLEncoding.EncodeToString(randomToken()),
		CreatedAt: now,
		ExpiresAt: now.Add(sessionDuration),
	}
	if sm.store != nil {
		stored := database.StoredSession{ID: s.ID, CreatedAt: s.CreatedAt, ExpiresAt: s.ExpiresAt}
		if err := sm.store.SaveSession(ctx, stored); err != nil {
			return nil, err
		}
	}
	sm.remember(s)
	return s, nil
}

// GetSession returns the live session with id, or nil. Sessions missing from
// memory are looked up in the store.
func (sm *SessionManager) GetSession(ctx context.Context, id string) *Session {
	sm.mu.RLock()
	s := sm.sessions[id]
	sm.mu.RUnlock()

	switch {
	case s != nil && s.expired(time.Now()):
		sm.DeleteSession(ctx, id)
		return nil
	case s != nil:
		return s
	case sm.store == nil:
		return nil
	}

	stored, err := sm.store.GetSession(ctx, id)
	if err != nil {
		log.Printf("loading admin session: %v", err)
		return nil
	}
	if stored == nil {
		return nil
	}
	s = &Session{ID: stored.ID, CreatedAt: stored.CreatedAt, ExpiresAt: stored.ExpiresAt}
	sm.remember(s)
	return s
}

func (sm *SessionManager) DeleteSession(ctx context.Context, id string) {
	sm.mu.Lock()
	delete(sm.sessions, id)
	sm.mu.Unlock()

	if sm.store == nil {
		return
	}
	if err := sm.store.DeleteSession(ctx, id); err != nil {
		log.Printf("deleting admin session: %v", err)
	}
}

// sign returns the cookie signature for a session id.
func (sm *SessionManager) sign(id string) string {
	mac := hmac.New(sha256.New, sm.secret)
	mac.Write([]byte(id))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// SetSessionCookie writes the cookie "<id>.<hmac>".
func (sm *SessionManager) SetSessionCookie(w http.ResponseWriter, r *http.Request, s *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    s.ID + "." + sm.sign(s.ID),
		Path:     "/",
		MaxAge:   int(sessionDuration / time.Second),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func (sm *SessionManager) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: sessionCookieName, Path: "/", MaxAge: -1, HttpOnly: true})
}

// sessionIDFromCookie returns the id from a correctly signed cookie.
func (sm *SessionManager) sessionIDFromCookie(r *http.Request) (string, bool) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil {
		return "", false
	}
	id, sig, ok := strings.Cut(c.Value, ".")
	if !ok || !hmac.Equal([]byte(sig), []byte(sm.sign(id))) {
		return "", false
	}
	return id, true
}

// GetSessionFromRequest authenticates r by its session cookie or, for API
// clients, an "Authorization: Bearer <session id>" header.
func (sm *SessionManager) GetSessionFromRequest(r *http.Request) *Session {
	if id, ok := sm.sessionIDFromCookie(r); ok {
		if s := sm.GetSession(r.Context(), id); s != nil {
			return s
		}
	}
	if id, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && id != "" {
		return sm.GetSession(r.Context(), id)
	}
	return nil
}
