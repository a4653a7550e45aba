package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/shelf/pkg/logging"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(mark("a"), mark("b"), mark("c"))(okHandler())
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestLoggerRecordsStatus(t *testing.T) {
	tl := logging.NewTestLogger(t)
	h := Logger(tl.Logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotNil(t, logging.FromContext(r.Context()))
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/records", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	tl.AssertContains(t, "HTTP request")
	tl.AssertContains(t, `"status":418`)
	tl.AssertContains(t, "/api/v1/records")
}

func TestLoggerPreservesFlusher(t *testing.T) {
	tl := logging.NewTestLogger(t)
	h := Logger(tl.Logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, ok := w.(http.Flusher)
		assert.True(t, ok)
		_, ok = w.(http.Hijacker)
		assert.True(t, ok)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestRecovery(t *testing.T) {
	tl := logging.NewTestLogger(t)
	h := Recovery(tl.Logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
	tl.AssertContains(t, "Panic recovered")
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		config     CORSConfig
		origin     string
		method     string
		wantOrigin string
		wantStatus int
	}{
		{"default allows any", DefaultCORSConfig(), "http://a.test", http.MethodGet, "*", http.StatusOK},
		{"listed origin echoed", CORSConfig{AllowedOrigins: []string{"http://a.test"}}, "http://a.test", http.MethodGet, "http://a.test", http.StatusOK},
		{"unlisted origin omitted", CORSConfig{AllowedOrigins: []string{"http://a.test"}}, "http://b.test", http.MethodGet, "", http.StatusOK},
		{"preflight", DefaultCORSConfig(), "http://a.test", http.MethodOptions, "*", http.StatusNoContent},
		{"glob origin echoed", CORSConfig{AllowedOrigins: []string{"https://*.a.test"}}, "https://app.a.test", http.MethodGet, "https://app.a.test", http.StatusOK},
		{"regex origin echoed", CORSConfig{AllowedOrigins: []string{`^http://localhost:\d+$`}}, "http://localhost:5173", http.MethodGet, "http://localhost:5173", http.StatusOK},
		{"invalid pattern skipped", CORSConfig{AllowedOrigins: []string{"http://[", "http://a.test"}}, "http://a.test", http.MethodGet, "http://a.test", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()

			CORS(tt.config)(okHandler()).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestValidateOrigins(t *testing.T) {
	assert.NoError(t, ValidateOrigins([]string{"https://a.test", "https://*.b.test", "^https://c\\.test$"}))
	assert.Error(t, ValidateOrigins([]string{"https://["}))
}

func TestAuth(t *testing.T) {
	cfg := DefaultAuthConfig()
	cfg.Enabled = true
	cfg.APIKey = "secret"

	tests := []struct {
		name   string
		method string
		header map[string]string
		want   int
	}{
		{"read open", http.MethodGet, nil, http.StatusOK},
		{"write without key", http.MethodPut, nil, http.StatusUnauthorized},
		{"write wrong key", http.MethodDelete, map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized},
		{"write with header key", http.MethodPut, map[string]string{"X-API-Key": "secret"}, http.StatusOK},
		{"write with bearer", http.MethodDelete, map[string]string{"Authorization": "Bearer secret"}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl := logging.NewTestLogger(t)
			req := httptest.NewRequest(tt.method, "/api/v1/overrides/local:1", nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()

			Auth(cfg, tl.Logger)(okHandler()).ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestAuthDisabled(t *testing.T) {
	tl := logging.NewTestLogger(t)
	rec := httptest.NewRecorder()
	Auth(DefaultAuthConfig(), tl.Logger)(okHandler()).
		ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit(t *testing.T) {
	tl := logging.NewTestLogger(t)
	rl := NewRateLimiter(2, tl.Logger)
	h := RateLimit(rl)(okHandler())

	do := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1:1000"))
	assert.Equal(t, http.StatusOK, do("10.0.0.1:1001"))
	assert.Equal(t, http.StatusTooManyRequests, do("10.0.0.1:1002"))
	assert.Equal(t, http.StatusOK, do("10.0.0.2:1000"), "other clients have their own bucket")
	tl.AssertContains(t, "Rate limit exceeded")
}

func TestRateLimiterEvict(t *testing.T) {
	rl := NewRateLimiter(60, logging.NewNopLogger())
	rl.Allow("a")
	rl.Allow("b")

	rl.evict(time.Now().Add(rl.idle + time.Second))

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Empty(t, rl.visitors)
}
