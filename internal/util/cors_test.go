package util

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWithCORSAllowlist(t *testing.T) {
	policy := NewCORSPolicy([]string{"https://wzhenkai.com/", "http://localhost:3000"})
	called := false
	h := WithCORS(policy, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/commands", nil)
	req.Header.Set("Origin", "https://wzhenkai.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://wzhenkai.com" {
		t.Fatalf("allow origin mismatch: %q", got)
	}
	if !called {
		t.Fatal("expected next handler to run")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/commands", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("did not expect allow origin for unknown origin, got %q", got)
	}
}

func TestWithCORSPreflight(t *testing.T) {
	h := WithCORS(NewCORSPolicy(nil), http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("preflight must not reach handler")
	}))
	req := httptest.NewRequest(http.MethodOptions, "/api/commands/execute", nil)
	req.Header.Set("Origin", "http://anywhere.test")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected wildcard origin, got %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got != corsAllowHeaders {
		t.Fatalf("allow headers mismatch: %q", got)
	}
}
