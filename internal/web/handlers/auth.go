package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/v1gneshkum4r21/face-clustering/internal/web/middleware"
)

// AuthHandler exchanges the admin password for a session.
type AuthHandler struct {
	password string
	sessions *middleware.SessionManager
}

func NewAuthHandler(adminPassword string, sm *middleware.SessionManager) *AuthHandler {
	return &AuthHandler{password: adminPassword, sessions: sm}
}

// LoginResponse is returned by POST /auth/login. A wrong password still
// yields a LoginResponse, with Success false.
type LoginResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"session_id,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
	Error     string `json:"error,omitempty"`
}

// StatusResponse is returned by GET /auth/status.
type StatusResponse struct {
	Authenticated bool   `json:"authenticated"`
	ExpiresAt     string `json:"expires_at,omitempty"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	switch {
	case body.Password == "":
		respondError(w, http.StatusBadRequest, "password is required")
		return
	case !middleware.CheckPassword(h.password, body.Password):
		log.Printf("rejected admin login from %s", sanitizeForLog(r.RemoteAddr))
		respondJSON(w, http.StatusUnauthorized, LoginResponse{Error: "Invalid password"})
		return
	}

	session, err := h.sessions.CreateSession(r.Context())
	if err != nil {
		log.Printf("opening admin session: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	h.sessions.SetSessionCookie(w, r, session)
	respondJSON(w, http.StatusOK, LoginResponse{
		Success:   true,
		SessionID: session.ID,
		ExpiresAt: session.ExpiresAt.Format(time.RFC3339),
	})
}

// Logout drops the caller's session, if any, and clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if s := h.sessions.GetSessionFromRequest(r); s != nil {
		h.sessions.DeleteSession(r.Context(), s.ID)
	}
	h.sessions.ClearSessionCookie(w)
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	var resp StatusResponse
	if s := h.sessions.GetSessionFromRequest(r); s != nil {
		resp = StatusResponse{Authenticated: true, ExpiresAt: s.ExpiresAt.Format(time.RFC3339)}
	}
	respondJSON(w, http.StatusOK, resp)
}
