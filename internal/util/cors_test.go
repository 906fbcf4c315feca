package util

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWithCORSAllowlist(t *testing.T) {
	h := WithCORS([]string{"https://journal.example"}, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/tags", nil)
	req.Header.Set("Origin", "https://journal.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://journal.example" {
		t.Fatalf("allowed origin mismatch: %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/tags", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow origin for unknown origin: %q", got)
	}
}

func TestWithCORSPreflight(t *testing.T) {
	called := false
	h := WithCORS(nil, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
	}))
	req := httptest.NewRequest(http.MethodOptions, "/api/journal/entries", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", rec.Code)
	}
	if called {
		t.Fatal("preflight should not reach handler")
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected wildcard origin, got %q", got)
	}
}
