package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSecurityHeadersMiddlewareMasksServerHeader(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "go-http-server")
		w.Header().Set("X-Powered-By", "net/http")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	handler := SecurityHeadersMiddleware(inner)

	req := httptest.NewRequest(http.MethodGet, "/starbus/state", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if got := w.Header().Get("Server"); got != "starbus" {
		t.Errorf("expected Server header to be masked, got %q", got)
	}
	if got := w.Header().Get("X-Powered-By"); got != "" {
		t.Errorf("expected X-Powered-By to be stripped, got %q", got)
	}
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestSecurityHeadersMiddlewareHandlesNoExplicitWrite(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Handler never calls WriteHeader explicitly.
	})

	handler := SecurityHeadersMiddleware(inner)

	req := httptest.NewRequest(http.MethodGet, "/starbus/state", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if got := w.Header().Get("Server"); got != "starbus" {
		t.Errorf("expected Server header to be set even without explicit write, got %q", got)
	}
}
