// Copyright (c) 2026 Helios. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware_test

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/helios/internal/platform/ctxutil"
	"github.com/taibuivan/helios/internal/platform/middleware"
	"github.com/taibuivan/helios/internal/platform/sec"
)

type stubVerifier struct {
	claims *sec.AuthClaims
	err    error
}

func (v stubVerifier) VerifyToken(string) (*sec.AuthClaims, error) {
	return v.claims, v.err
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if claims := ctxutil.GetAuthUser(request.Context()); claims != nil {
			writer.Header().Set("X-User", claims.UserID)
		}
		writer.WriteHeader(http.StatusOK)
	})
}

/*
TestAuthenticate covers anonymous, malformed, rejected and accepted headers.
*/
func TestAuthenticate(t *testing.T) {
	claims := &sec.AuthClaims{UserID: "u1", Role: string(sec.RoleUser), SessionID: "s1"}

	tests := []struct {
		name     string
		header   string
		verifier stubVerifier
		status   int
		user     string
	}{
		{"anonymous", "", stubVerifier{}, http.StatusOK, ""},
		{"bad_scheme", "Basic abc", stubVerifier{}, http.StatusUnauthorized, ""},
		{"no_token", "Bearer", stubVerifier{}, http.StatusUnauthorized, ""},
		{"rejected", "Bearer abc", stubVerifier{err: errors.New("expired")}, http.StatusUnauthorized, ""},
		{"accepted", "bearer abc", stubVerifier{claims: claims}, http.StatusOK, "u1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				request.Header.Set("Authorization", tt.header)
			}
			recorder := httptest.NewRecorder()

			middleware.Authenticate(tt.verifier)(okHandler()).ServeHTTP(recorder, request)

			assert.Equal(t, tt.status, recorder.Code)
			assert.Equal(t, tt.user, recorder.Header().Get("X-User"))
		})
	}
}

func TestRequireRole(t *testing.T) {
	handler := middleware.RequireRole(sec.RoleAdmin)(okHandler())

	anonymous := httptest.NewRecorder()
	handler.ServeHTTP(anonymous, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, anonymous.Code)

	asUser := httptest.NewRequest(http.MethodGet, "/", nil)
	asUser = asUser.WithContext(ctxutil.WithAuthUser(asUser.Context(), &sec.AuthClaims{UserID: "u", Role: string(sec.RoleUser)}))
	forbidden := httptest.NewRecorder()
	handler.ServeHTTP(forbidden, asUser)
	assert.Equal(t, http.StatusForbidden, forbidden.Code)

	asAdmin := httptest.NewRequest(http.MethodGet, "/", nil)
	asAdmin = asAdmin.WithContext(ctxutil.WithAuthUser(asAdmin.Context(), &sec.AuthClaims{UserID: "a", Role: string(sec.RoleSuperAdmin)}))
	allowed := httptest.NewRecorder()
	handler.ServeHTTP(allowed, asAdmin)
	assert.Equal(t, http.StatusOK, allowed.Code)
}

/*
TestRateLimiter verifies that the burst is enforced per client IP.
*/
func TestRateLimiter(t *testing.T) {
	limiter := middleware.NewRateLimiter(0.001, 2)
	handler := limiter.Handler(okHandler())

	call := func(ip string) int {
		request := httptest.NewRequest(http.MethodGet, "/", nil)
		request.Header.Set("X-Real-IP", ip)
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)
		return recorder.Code
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1"))
	assert.Equal(t, http.StatusOK, call("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1"))
	assert.Equal(t, http.StatusOK, call("10.0.0.2"))
}

func TestRateLimiter_ErrorEnvelope(t *testing.T) {
	limiter := middleware.NewRateLimiter(0.001, 1)
	handler := limiter.Handler(okHandler())

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set("X-Real-IP", "10.0.0.9")
	handler.ServeHTTP(httptest.NewRecorder(), request)

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusTooManyRequests, recorder.Code)
	assert.Equal(t, "1", recorder.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"Too many requests. Try again in 1s.","code":"RATE_LIMITED"}`, recorder.Body.String())
}

func TestPanicRecovery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := middleware.PanicRecovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	recorder := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.JSONEq(t, `{"error":"An unexpected error occurred","code":"INTERNAL_ERROR"}`, recorder.Body.String())
}

func TestCORS(t *testing.T) {
	handler := middleware.CORS(false, "helios.energy")(okHandler())

	allowed := httptest.NewRequest(http.MethodGet, "/", nil)
	allowed.Header.Set("Origin", "https://app.helios.energy")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, allowed)
	assert.Equal(t, "https://app.helios.energy", recorder.Header().Get("Access-Control-Allow-Origin"))

	denied := httptest.NewRequest(http.MethodGet, "/", nil)
	denied.Header.Set("Origin", "https://evil.example")
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, denied)
	assert.Empty(t, recorder.Header().Get("Access-Control-Allow-Origin"))

	preflight := httptest.NewRequest(http.MethodOptions, "/", nil)
	preflight.Header.Set("Origin", "https://app.helios.energy")
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, preflight)
	assert.Equal(t, http.StatusNoContent, recorder.Code)
}

func TestRealIP(t *testing.T) {
	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", middleware.RealIP(request))

	request.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	assert.Equal(t, "203.0.113.5", middleware.RealIP(request))

	request.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", middleware.RealIP(request))
}
