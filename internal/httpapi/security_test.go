package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"stockroom/backend/internal/domain"
	"stockroom/backend/internal/store"
)

func TestMiddlewareSetsSecurityHeaders(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	if got := res.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected X-Content-Type-Options nosniff, got %q", got)
	}
	if got := res.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("expected X-Frame-Options DENY, got %q", got)
	}
	if got := res.Header().Get("Referrer-Policy"); got == "" {
		t.Fatalf("expected Referrer-Policy to be set")
	}
}

func TestLoginRateLimitReturns429(t *testing.T) {
	api := newTestAPI(t)
	body, _ := json.Marshal(domain.LoginRequest{Username: "admin", Password: "wrong-pass"})

	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "127.0.0.1:5000"
		res := httptest.NewRecorder()

		api.Handler().ServeHTTP(res, req)

		if i < 5 && res.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d expected 401 before limit, got %d", i+1, res.Code)
		}
		if i == 5 && res.Code != http.StatusTooManyRequests {
			t.Fatalf("attempt 6 expected 429, got %d", res.Code)
		}
	}
}

func TestJSONBodyTooLargeRejected(t *testing.T) {
	api := newTestAPI(t)
	veryLong := strings.Repeat("a", (1<<20)+1024)
	body := fmt.Sprintf(`{"username":"%s","password":"x"}`, veryLong)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for too large body, got %d", res.Code)
	}
}

func TestUnknownFieldsRejected(t *testing.T) {
	handler := newTestAPI(t).Handler()
	token := login(t, handler, "keeper", "keeper123")

	rec := call(t, handler, token, http.MethodPost, "/api/v1/stock/issues", map[string]any{
		"item_id": "x", "quantity": 1, "performed_by": "someone-else",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestMissingBearerTokenReturns401(t *testing.T) {
	handler := newTestAPI(t).Handler()
	rec := call(t, handler, "", http.MethodGet, "/api/v1/items", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestTokenSignedWithOtherSecretRejected(t *testing.T) {
	handler := newTestAPI(t).Handler()

	claims := stockroomClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   "admin",
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: domain.RoleAdmin,
	}
	forged, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("not-the-server-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	rec := call(t, handler, forged, http.MethodGet, "/api/v1/items", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for forged token, got %d", rec.Code)
	}
}

func TestWrongMethodReturns405(t *testing.T) {
	handler := newTestAPI(t).Handler()
	rec := call(t, handler, "", http.MethodPut, "/api/v1/items", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestServerErrorsHideDetails(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	api := &API{log: zap.New(core).Named("http")}

	rec := httptest.NewRecorder()
	api.writeError(rec, http.StatusInternalServerError, fmt.Errorf("pq: relation \"items\" does not exist"))

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "internal server error" {
		t.Fatalf("expected generic message, got %q", body["error"])
	}

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}
	if entries[0].LoggerName != "http" {
		t.Fatalf("expected cause on the http logger, got %q", entries[0].LoggerName)
	}
	if cause := entries[0].ContextMap()["error"]; !strings.Contains(fmt.Sprint(cause), "does not exist") {
		t.Fatalf("expected cause in log entry, got %v", cause)
	}
}

func TestClientErrorsAreNotLogged(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	api := &API{log: zap.New(core)}

	rec := httptest.NewRecorder()
	api.writeServiceError(rec, store.ErrBusy)
	if rec.Code != http.StatusServiceUnavailable || rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected 503 with Retry-After, got %d", rec.Code)
	}
	if logs.Len() != 0 {
		t.Fatalf("expected no error log for busy, got %d entries", logs.Len())
	}
}
