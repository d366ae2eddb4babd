// Package middleware provides HTTP middleware for the bone API.
package middleware

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/auth"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/config"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/observability"
)

const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderRetryAfter         = "Retry-After"

	defaultCleanupInterval = 5 * time.Minute
)

// RateLimitInfo describes the bucket state after a request.
type RateLimitInfo struct {
	// Limit is the refill rate in requests per second.
	Limit     float64
	Remaining int
	// ResetAt is the Unix time at which an idle bucket is full again.
	ResetAt int64
}

// RateLimiter enforces token bucket limits per client and route. Clients
// are identified by their authenticated subject when there is one and by
// IP address otherwise.
type RateLimiter struct {
	log     logrus.FieldLogger
	cfg     config.RateLimitConfig
	trusted []netip.Prefix

	mu      sync.Mutex
	buckets map[string]*bucket
	stopCh  chan struct{}
	stopped sync.Once
	now     func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	rule     config.RateLimitRule
	lastUsed time.Time
}

// NewRateLimiter creates a RateLimiter and starts its cleanup loop. Close
// must be called to stop it.
func NewRateLimiter(log logrus.FieldLogger, cfg config.RateLimitConfig) (*RateLimiter, error) {
	trusted, err := parseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}

	rl := &RateLimiter{
		log:     log.WithField("component", "rate-limiter"),
		cfg:     cfg,
		trusted: trusted,
		buckets: make(map[string]*bucket, 64),
		stopCh:  make(chan struct{}),
		now:     time.Now,
	}

	go rl.cleanupLoop(defaultCleanupInterval)

	return rl, nil
}

func parseTrustedProxies(entries []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(entries))

	for _, entry := range entries {
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
			}

			prefixes = append(prefixes, prefix.Masked())

			continue
		}

		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}

		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}

	return prefixes, nil
}

// Middleware limits requests to the named route. Routes without their own
// rule share the default rule but keep separate buckets.
func (rl *RateLimiter) Middleware(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.cfg.Enabled {
				next.ServeHTTP(w, r)

				return
			}

			rule := rl.rule(route)
			client := rl.clientKey(r)

			allowed, info := rl.allow(client+"|"+route, rule)

			w.Header().Set(HeaderRateLimitLimit, strconv.FormatFloat(info.Limit, 'f', 2, 64))
			w.Header().Set(HeaderRateLimitRemaining, strconv.Itoa(info.Remaining))
			w.Header().Set(HeaderRateLimitReset, strconv.FormatInt(info.ResetAt, 10))

			if !allowed {
				rl.log.WithFields(logrus.Fields{
					"client": client,
					"route":  route,
				}).Debug("Rate limit exceeded")

				observability.RateLimitedTotal.WithLabelValues(route).Inc()

				w.Header().Set(HeaderRetryAfter, strconv.Itoa(int(rule.RetryAfter().Seconds())))
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) rule(route string) config.RateLimitRule {
	if rule, ok := rl.cfg.PerRoute[route]; ok {
		return rule
	}

	return rl.cfg.Default
}

// clientKey returns "sub:<subject>" for authenticated requests and
// "ip:<address>" otherwise.
func (rl *RateLimiter) clientKey(r *http.Request) string {
	if subject := auth.Subject(r.Context()); subject != "" {
		return "sub:" + subject
	}

	return "ip:" + rl.clientIP(r)
}

// clientIP honours X-Forwarded-For and X-Real-IP only when the direct peer
// is a trusted proxy.
func (rl *RateLimiter) clientIP(r *http.Request) string {
	remote, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		remote = r.RemoteAddr
	}

	if !rl.isTrustedProxy(remote) {
		return remote
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	return remote
}

func (rl *RateLimiter) isTrustedProxy(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}

	addr = addr.Unmap()

	for _, prefix := range rl.trusted {
		if prefix.Contains(addr) {
			return true
		}
	}

	return false
}

func (rl *RateLimiter) allow(key string, rule config.RateLimitRule) (bool, RateLimitInfo) {
	now := rl.now()

	rl.mu.Lock()

	b, ok := rl.buckets[key]
	if !ok || b.rule != rule {
		b = &bucket{
			limiter: rate.NewLimiter(rate.Limit(rule.PerSecond()), rule.Burst()),
			rule:    rule,
		}
		rl.buckets[key] = b
	}

	b.lastUsed = now
	allowed := b.limiter.AllowN(now, 1)
	tokens := b.limiter.TokensAt(now)

	rl.mu.Unlock()

	missing := float64(rule.Burst()) - tokens
	resetIn := time.Duration(missing / rule.PerSecond() * float64(time.Second))

	return allowed, RateLimitInfo{
		Limit:     rule.PerSecond(),
		Remaining: max(0, int(tokens)),
		ResetAt:   now.Add(resetIn).Unix(),
	}
}

func (rl *RateLimiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			rl.cleanup(interval)
		}
	}
}

// cleanup drops buckets idle for longer than maxIdle.
func (rl *RateLimiter) cleanup(maxIdle time.Duration) {
	cutoff := rl.now().Add(-maxIdle)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0

	for key, b := range rl.buckets {
		if b.lastUsed.Before(cutoff) {
			delete(rl.buckets, key)
			removed++
		}
	}

	if removed > 0 {
		rl.log.WithFields(logrus.Fields{
			"removed":   removed,
			"remaining": len(rl.buckets),
		}).Debug("Rate limiter cleanup completed")
	}
}

// Close stops the cleanup loop. It is safe to call more than once.
func (rl *RateLimiter) Close() error {
	rl.stopped.Do(func() {
		close(rl.stopCh)
	})

	return nil
}
