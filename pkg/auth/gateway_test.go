package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"transrelay/pkg/httpx"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestWebhookMiddlewareSecret(t *testing.T) {
	h := WebhookMiddleware(SecConfig{RPS: 100, Burst: 100, WebhookSecret: "s3cret"})(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing secret: got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/telegram/webhook", nil)
	req.Header.Set(SecretHeader, "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong secret: got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/telegram/webhook", nil)
	req.Header.Set(SecretHeader, "s3cret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("good secret: got %d", rec.Code)
	}
}

func TestGateGuardEngineNeutral(t *testing.T) {
	g := NewGate(SecConfig{RPS: 100, Burst: 100, WebhookSecret: "x"})
	called := 0
	h := httpx.NetHTTPAdapter(g.Guard(func(w httpx.ResponseWriter, r *httpx.Request) {
		called++
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/telegram/webhook", nil))
	if rec.Code != http.StatusUnauthorized || called != 0 {
		t.Fatalf("expected 401 without calling next, got %d (called=%d)", rec.Code, called)
	}

	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", nil)
	req.Header.Set(SecretHeader, "x")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || called != 1 {
		t.Fatalf("expected 200, got %d (called=%d)", rec.Code, called)
	}
}

func TestGateCheckOrder(t *testing.T) {
	g := NewGate(SecConfig{IPWhitelist: []string{"10.0.0.1"}, WebhookSecret: "x"})
	if status, _ := g.Check("192.0.2.1:1", "wrong"); status != http.StatusForbidden {
		t.Fatalf("whitelist should be checked before the secret, got %d", status)
	}
	if status, _ := g.Check("10.0.0.1:1", "wrong"); status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
	if status, _ := g.Check("10.0.0.1", "x"); status != 0 {
		t.Fatalf("bare ip should pass, got %d", status)
	}
}

func TestWebhookMiddlewareWhitelist(t *testing.T) {
	h := WebhookMiddleware(SecConfig{IPWhitelist: []string{"10.0.0.1"}})(okHandler())
	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/telegram/webhook", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestWebhookMiddlewareRateLimit(t *testing.T) {
	h := WebhookMiddleware(SecConfig{RPS: 0.001, Burst: 2})(okHandler())
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/telegram/webhook", nil))
		codes = append(codes, rec.Code)
	}
	if codes[0] != 200 || codes[1] != 200 || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected codes %v", codes)
	}
}

func TestLimitersKeysIndependent(t *testing.T) {
	p := NewLimiters(0.001, 1)
	if !p.Allow("a") || p.Allow("a") {
		t.Fatalf("bucket a should allow exactly one")
	}
	if !p.Allow("b") {
		t.Fatalf("bucket b should be independent")
	}
	if p.Len() != 2 {
		t.Fatalf("expected 2 keys, got %d", p.Len())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := p.Wait(ctx, "a"); err == nil {
		t.Fatalf("expected wait on an empty bucket to fail")
	}
}
