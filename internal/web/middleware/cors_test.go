package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOriginAllowlist(t *testing.T) {
	list := newOriginAllowlist(" https://photos.example.com/, ,https://admin.example.com")

	tests := []struct {
		origin string
		want   bool
	}{
		{"https://photos.example.com", true},
		{"https://admin.example.com", true},
		{"https://evil.example.com", false},
		{"http://localhost:5173", true},
		{"http://127.0.0.1:8080", true},
		{"http://localhost.evil.com", false},
		{"file://localhost", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := list.permits(tt.origin); got != tt.want {
			t.Errorf("permits(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestCORS_Preflight(t *testing.T) {
	called := false
	handler := CORS("https://photos.example.com")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/clusters", nil)
	req.Header.Set("Origin", "https://photos.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if called {
		t.Error("preflight must not reach the handler")
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("expected credentials allowed, got %q", got)
	}
}
