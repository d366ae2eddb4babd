package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/auth"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/config"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/observability"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var frozen = time.Date(2025, 10, 31, 0, 0, 0, 0, time.UTC)

func newLimiter(t *testing.T, cfg config.RateLimitConfig) *RateLimiter {
	t.Helper()

	rl, err := NewRateLimiter(observability.DiscardLogger(), cfg)
	require.NoError(t, err)

	rl.now = func() time.Time { return frozen }

	t.Cleanup(func() { _ = rl.Close() })

	return rl
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestNewRateLimiterRejectsBadProxies(t *testing.T) {
	for _, entry := range []string{"not-an-ip", "10.0.0.0/99"} {
		_, err := NewRateLimiter(observability.DiscardLogger(), config.RateLimitConfig{TrustedProxies: []string{entry}})
		assert.Error(t, err, entry)
	}
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	rl := newLimiter(t, config.RateLimitConfig{
		Enabled: true,
		Default: config.RateLimitRule{RequestsPerMinute: 60, BurstSize: 2, BlockDuration: 15 * time.Second},
	})

	handler := rl.Middleware("incidents")(okHandler())

	codes := make([]int, 0, 3)

	for range 3 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/incidents/generate-sop", nil))
		codes = append(codes, rec.Code)

		assert.Equal(t, "1.00", rec.Header().Get(HeaderRateLimitLimit))
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, "15", rec.Header().Get(HeaderRetryAfter))
	assert.Equal(t, "0", rec.Header().Get(HeaderRateLimitRemaining))

	reset, err := strconv.ParseInt(rec.Header().Get(HeaderRateLimitReset), 10, 64)
	require.NoError(t, err)
	assert.Equal(t, frozen.Add(2*time.Second).Unix(), reset)
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := newLimiter(t, config.RateLimitConfig{
		Enabled: false,
		Default: config.RateLimitRule{RequestsPerMinute: 1, BurstSize: 1},
	})

	handler := rl.Middleware("incidents")(okHandler())

	for range 20 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get(HeaderRateLimitLimit))
	}
}

func TestRateLimiterSeparatesRoutesAndClients(t *testing.T) {
	rl := newLimiter(t, config.RateLimitConfig{
		Enabled: true,
		Default: config.RateLimitRule{RequestsPerMinute: 60, BurstSize: 1},
	})

	incidents := rl.Middleware("incidents")(okHandler())
	onboarding := rl.Middleware("onboarding")(okHandler())

	serve := func(h http.Handler, remote, subject string) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = remote

		if subject != "" {
			req = req.WithContext(auth.WithSubject(req.Context(), subject))
		}

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		return rec.Code
	}

	assert.Equal(t, http.StatusOK, serve(incidents, "192.0.2.1:1000", ""))
	assert.Equal(t, http.StatusTooManyRequests, serve(incidents, "192.0.2.1:1001", ""))
	assert.Equal(t, http.StatusOK, serve(onboarding, "192.0.2.1:1000", ""))
	assert.Equal(t, http.StatusOK, serve(incidents, "192.0.2.2:1000", ""))

	// An authenticated subject keeps its own bucket regardless of address.
	assert.Equal(t, http.StatusOK, serve(incidents, "192.0.2.1:1000", "gravekeeper"))
	assert.Equal(t, http.StatusTooManyRequests, serve(incidents, "192.0.2.9:1000", "gravekeeper"))
}

func TestRule(t *testing.T) {
	rl := newLimiter(t, config.RateLimitConfig{
		Default: config.RateLimitRule{RequestsPerMinute: 30, BurstSize: 10},
		PerRoute: map[string]config.RateLimitRule{
			"pipeline": {RequestsPerMinute: 6, BurstSize: 2},
		},
	})

	assert.Equal(t, config.RateLimitRule{RequestsPerMinute: 6, BurstSize: 2}, rl.rule("pipeline"))
	assert.Equal(t, config.RateLimitRule{RequestsPerMinute: 30, BurstSize: 10}, rl.rule("incidents"))
	assert.Equal(t, config.RateLimitRule{RequestsPerMinute: 30, BurstSize: 10}, rl.rule(""))
}

func TestRuleChangeResetsBucket(t *testing.T) {
	rl := newLimiter(t, config.RateLimitConfig{})

	tight := config.RateLimitRule{RequestsPerMinute: 60, BurstSize: 1}
	loose := config.RateLimitRule{RequestsPerMinute: 60, BurstSize: 5}

	allowed, _ := rl.allow("k", tight)
	assert.True(t, allowed)

	allowed, _ = rl.allow("k", tight)
	assert.False(t, allowed)

	allowed, info := rl.allow("k", loose)
	assert.True(t, allowed)
	assert.Equal(t, 4, info.Remaining)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		trusted    []string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "direct connection",
			remoteAddr: "192.168.1.1:12345",
			want:       "192.168.1.1",
		},
		{
			name:       "trusted proxy with X-Forwarded-For",
			trusted:    []string{"10.0.0.1"},
			remoteAddr: "10.0.0.1:12345",
			headers:    map[string]string{"X-Forwarded-For": "192.168.1.1, 10.0.0.2"},
			want:       "192.168.1.1",
		},
		{
			name:       "trusted proxy with X-Real-IP",
			trusted:    []string{"10.0.0.1"},
			remoteAddr: "10.0.0.1:12345",
			headers:    map[string]string{"X-Real-IP": "192.168.1.2"},
			want:       "192.168.1.2",
		},
		{
			name:       "untrusted proxy ignores headers",
			trusted:    []string{"10.0.0.1"},
			remoteAddr: "10.0.0.2:12345",
			headers:    map[string]string{"X-Forwarded-For": "192.168.1.1"},
			want:       "10.0.0.2",
		},
		{
			name:       "trusted CIDR range",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "10.20.30.40:12345",
			headers:    map[string]string{"X-Forwarded-For": "192.168.1.1"},
			want:       "192.168.1.1",
		},
		{
			name:       "trusted IPv6 range",
			trusted:    []string{"fd00::/8"},
			remoteAddr: "[fd00::1]:443",
			headers:    map[string]string{"X-Real-IP": "2001:db8::7"},
			want:       "2001:db8::7",
		},
		{
			name:       "address without port",
			remoteAddr: "192.168.1.5",
			want:       "192.168.1.5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := newLimiter(t, config.RateLimitConfig{TrustedProxies: tt.trusted})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr

			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			assert.Equal(t, tt.want, rl.clientIP(req))
		})
	}
}

func TestCleanup(t *testing.T) {
	rl := newLimiter(t, config.RateLimitConfig{})

	rule := config.RateLimitRule{RequestsPerMinute: 60}
	rl.allow("old", rule)

	rl.now = func() time.Time { return frozen.Add(10 * time.Minute) }
	rl.allow("fresh", rule)

	rl.cleanup(5 * time.Minute)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	assert.Len(t, rl.buckets, 1)
	assert.Contains(t, rl.buckets, "fresh")
}

func TestCloseIsIdempotent(t *testing.T) {
	rl, err := NewRateLimiter(observability.DiscardLogger(), config.RateLimitConfig{})
	require.NoError(t, err)

	require.NoError(t, rl.Close())
	require.NoError(t, rl.Close())
}
