package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/MrSnakeDoc/folio/internal/logger"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRateLimit(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	h := RateLimit(RateLimitConfig{Burst: 2, RefillPerMin: 1, Now: func() time.Time { return now }})(okHandler)

	call := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth", nil)
		req.RemoteAddr = ip + ":1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, call("1.1.1.1").Code)
	assert.Equal(t, http.StatusOK, call("1.1.1.1").Code)

	rec := call("1.1.1.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"Too many attempts, try again later"}`, rec.Body.String())

	assert.Equal(t, http.StatusOK, call("2.2.2.2").Code, "other clients have their own bucket")

	now = now.Add(2 * time.Minute)
	assert.Equal(t, http.StatusOK, call("1.1.1.1").Code, "bucket refilled")
}

func TestRateLimitFailuresOnly(t *testing.T) {
	status := http.StatusOK
	h := RateLimit(RateLimitConfig{
		Name:         "test",
		Burst:        1,
		RefillPerMin: 1,
		FailuresOnly: true,
		Now:          func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) },
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))

	call := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth", nil)
		req.RemoteAddr = "3.3.3.3:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	for range 3 {
		assert.Equal(t, http.StatusOK, call(), "successes are refunded")
	}

	status = http.StatusUnauthorized
	assert.Equal(t, http.StatusUnauthorized, call())
	assert.Equal(t, http.StatusTooManyRequests, call())
}

type staticChecker string

func (s staticChecker) CheckHeader(h string) bool { return h == "Bearer "+string(s) }

func TestBearerAuth(t *testing.T) {
	h := BearerAuth(staticChecker("s3cret"), false, logger.Nop())(okHandler)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "valid", header: "Bearer s3cret", want: http.StatusOK},
		{name: "wrong", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "missing", header: "", want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodDelete, "/api/gallery/x", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnauthorized {
				assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())
			}
		})
	}
}

func TestAllowOnlyCIDRS(t *testing.T) {
	h := AllowOnlyCIDRS([]string{"10.0.0.0/8"}, false, logger.Nop())(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.RemoteAddr = "10.1.1.1:80"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req.RemoteAddr = "8.8.8.8:80"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	pass := AllowOnlyCIDRS(nil, false, logger.Nop())(okHandler)
	rec = httptest.NewRecorder()
	pass.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMatchHost(t *testing.T) {
	tests := []struct {
		host, pattern string
		want          bool
	}{
		{"folio.example.com", "folio.example.com", true},
		{"FOLIO.example.com", "folio.example.com", true},
		{"api.example.com", "*.example.com", true},
		{"example.com", "*.example.com", false},
		{"evil.com", "*.example.com", false},
		{"localhost", "localhost:8080", true},
	}
	for _, tt := range tests {
		if got := matchHost(tt.host, tt.pattern); got != tt.want {
			t.Errorf("matchHost(%q, %q) = %v, want %v", tt.host, tt.pattern, got, tt.want)
		}
	}
}

func TestEnforceHostStripsPort(t *testing.T) {
	h := EnforceHost([]string{"folio.example.com"}, logger.Nop())(okHandler)

	req := httptest.NewRequest(http.MethodGet, "http://folio.example.com:8080/api/gallery", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "http://other.example.com/api/gallery", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
