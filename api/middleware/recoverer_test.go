package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRecovererWritesInternalError(t *testing.T) {
	handler := Recoverer(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("shelf collapsed")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "shelf collapsed") {
		t.Fatalf("panic value leaked to client: %s", rec.Body.String())
	}
}

func TestRequestIDEchoesOrMints(t *testing.T) {
	var seen, fromCtx string
	handler := RequestID(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = w.Header().Get(requestIDHeader)
		fromCtx = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "req-123")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "req-123" || fromCtx != "req-123" {
		t.Fatalf("expected echoed id, got %q / %q", seen, fromCtx)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "bad\x01id")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if seen == "bad\x01id" || seen == "" {
		t.Fatalf("expected control bytes to be rejected, got %q", seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, strings.Repeat("x", maxRequestIDLen+1))
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if seen == "" || len(seen) > maxRequestIDLen {
		t.Fatalf("expected minted id, got %q", seen)
	}
}
