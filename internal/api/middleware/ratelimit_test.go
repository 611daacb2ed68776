package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hugh/projectflow/internal/testutil"
	"github.com/hugh/projectflow/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(rl *RateLimiter, start time.Time) *time.Time {
	now := start
	rl.now = func() time.Time { return now }
	return &now
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(2, 10)
	now := fixedClock(rl, time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC))

	ok, remaining, _ := rl.Allow("ip:1.2.3.4")
	assert.True(t, ok)
	assert.Equal(t, 1, remaining)

	ok, remaining, _ = rl.Allow("ip:1.2.3.4")
	assert.True(t, ok)
	assert.Equal(t, 0, remaining)

	ok, _, reset := rl.Allow("ip:1.2.3.4")
	assert.False(t, ok)
	assert.Equal(t, now.Add(10*time.Second), reset)

	ok, _, _ = rl.Allow("ip:5.6.7.8")
	assert.True(t, ok, "clients are limited independently")

	*now = now.Add(11 * time.Second)
	ok, _, _ = rl.Allow("ip:1.2.3.4")
	assert.True(t, ok, "window slid past the earlier requests")
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(5, 10)
	now := fixedClock(rl, time.Now())

	rl.Allow("ip:idle")
	*now = now.Add(15 * time.Second)
	rl.Allow("ip:active")
	*now = now.Add(10 * time.Second)

	rl.Cleanup()

	rl.mu.RLock()
	defer rl.mu.RUnlock()
	assert.NotContains(t, rl.clients, "ip:idle")
	assert.Contains(t, rl.clients, "ip:active")
}

func TestRateLimit_Middleware(t *testing.T) {
	setup := testutil.NewTestContext(t)
	rl := NewRateLimiter(1, 60)
	handler := Session(setup.Sessions, util.NopLogger())(RateLimit(rl)(http.HandlerFunc(okHandler)))

	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	// A signed-in user from the same address has their own budget.
	req = httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	req.AddCookie(setup.Cookie)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.2"}, "10.0.0.3:80", "203.0.113.7"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.4"}, "10.0.0.3:80", "198.51.100.4"},
		{"remote addr", nil, "192.0.2.10:5555", "192.0.2.10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/projects", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"message":"Internal server error"}`, rr.Body.String())
	assert.Contains(t, buf.String(), "panic in handler")
	assert.NotContains(t, rr.Body.String(), "boom")
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("created"))
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/projects", nil))

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Contains(t, buf.String(), "status=201")
	assert.Contains(t, buf.String(), "size=7")
	assert.Contains(t, buf.String(), "path=/api/projects")
}
