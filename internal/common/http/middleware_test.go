package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	commonerrors "github.com/AlibekovAA/fincore/internal/common/errors"
	"github.com/AlibekovAA/fincore/internal/common/logger"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) ErrorEnvelope {
	t.Helper()
	var env ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v (%s)", err, rec.Body.String())
	}
	return env
}

func TestBuildBaseHandler_SetsTraceAndSecurityHeaders(t *testing.T) {
	var traceID string
	h := BuildBaseHandler(logger.NewDiscard(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = TraceIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if traceID == "" {
		t.Error("expected a trace id in the request context")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" || rec.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("missing security headers: %v", rec.Header())
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(logger.NewDiscard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if decode(t, rec).Code != CodeUnknown {
		t.Error("expected unknown error code")
	}
}

func TestMaxRequestSizeMiddleware(t *testing.T) {
	var readErr error
	h := MaxRequestSizeMiddleware(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 64)
		for readErr == nil {
			_, readErr = r.Body.Read(buf)
		}
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(strings.Repeat("x", 32))))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 for declared length, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(strings.Repeat("x", 32)))
	req.ContentLength = -1
	h.ServeHTTP(httptest.NewRecorder(), req)
	var maxErr *http.MaxBytesError
	if !errors.As(readErr, &maxErr) {
		t.Errorf("expected body to be capped, got %v", readErr)
	}
}

func TestGetClientIP(t *testing.T) {
	cases := []struct {
		name      string
		remote    string
		forwarded string
		realIP    string
		want      string
	}{
		{"direct public peer", "203.0.113.7:5000", "", "", "203.0.113.7"},
		{"public peer cannot spoof", "203.0.113.7:5000", "1.2.3.4", "5.6.7.8", "203.0.113.7"},
		{"proxy real ip", "10.0.0.2:5000", "", "198.51.100.1", "198.51.100.1"},
		{"proxy forwarded chain", "127.0.0.1:5000", "198.51.100.9, 10.0.0.3", "", "198.51.100.9"},
		{"proxy without headers", "10.0.0.2:5000", "", "", "10.0.0.2"},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tc.remote
		if tc.forwarded != "" {
			req.Header.Set("X-Forwarded-For", tc.forwarded)
		}
		if tc.realIP != "" {
			req.Header.Set("X-Real-IP", tc.realIP)
		}
		if got := GetClientIP(req); got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

type bindTarget struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

func TestBindJSON(t *testing.T) {
	cases := []struct {
		name     string
		body     string
		ok       bool
		code     string
		detailOn string
	}{
		{"valid", `{"email":"a@example.com","otp":"123456"}`, true, "", ""},
		{"malformed", `{"email":`, false, CodeInvalidJSON, ""},
		{"unknown field", `{"email":"a@example.com","otp":"123456","x":1}`, false, CodeInvalidJSON, ""},
		{"bad otp", `{"email":"a@example.com","otp":"12ab"}`, false, CodeValidationFailed, "otp"},
	}

	for _, tc := range cases {
		var dst bindTarget
		rec := httptest.NewRecorder()
		ok := BindJSON(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body)), &dst)
		if ok != tc.ok {
			t.Errorf("%s: ok = %v, want %v", tc.name, ok, tc.ok)
			continue
		}
		if tc.ok {
			continue
		}
		env := decode(t, rec)
		if env.Code != tc.code {
			t.Errorf("%s: code = %s, want %s", tc.name, env.Code, tc.code)
		}
		if tc.detailOn != "" {
			if _, found := env.Details[tc.detailOn]; !found {
				t.Errorf("%s: expected detail on %s, got %v", tc.name, tc.detailOn, env.Details)
			}
		}
	}
}

func TestHandleError_UnauthorizedCodeIsUniform(t *testing.T) {
	specific := commonerrors.NewDomainError("REFRESH_TOKEN_NOT_FOUND", commonerrors.CategoryUnauthorized, http.StatusUnauthorized, "unauthorized")

	rec := httptest.NewRecorder()
	HandleError(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil), specific, logger.NewDiscard())

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if env := decode(t, rec); env.Code != "UNAUTHORIZED" {
		t.Errorf("expected public code UNAUTHORIZED, got %s", env.Code)
	}

	rec = httptest.NewRecorder()
	HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("raw"), logger.NewDiscard())
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 for a raw error, got %d", rec.Code)
	}
}

func TestRequireMethod(t *testing.T) {
	h := RequireMethod(http.MethodPost)(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusMethodNotAllowed || rec.Header().Get("Allow") != http.MethodPost {
		t.Errorf("expected 405 with Allow header, got %d %q", rec.Code, rec.Header().Get("Allow"))
	}
}

func TestEndpointRateLimiter(t *testing.T) {
	limiter := NewEndpointRateLimiter()
	h := limiter.Middleware("resend")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/resend", nil))
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("unexpected status sequence %v", codes)
	}

	other := httptest.NewRequest(http.MethodPost, "/api/v1/auth/resend", nil)
	other.RemoteAddr = "203.0.113.50:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	if rec.Code != http.StatusOK {
		t.Errorf("a different client has its own budget, got %d", rec.Code)
	}
}
