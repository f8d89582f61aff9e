package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"techwire-be/internal/transport"
	"techwire-be/internal/utils"

	"golang.org/x/time/rate"
)

// Rate Limit Tiers
const (
	// Payment and auth actions
	limitStrict = rate.Limit(1.0 / 30)
	burstStrict = 10

	// General (Default)
	limitGeneral = rate.Limit(10)
	burstGeneral = 20

	// Frontend-heavy apps
	limitFrontend = rate.Limit(20)
	burstFrontend = 40

	// Internal / trusted services
	limitInternal = rate.Limit(100)
	burstInternal = 200
)

const (
	visitorTTL      = 3 * time.Minute
	cleanupInterval = time.Minute
)

type tier struct {
	name  string
	limit rate.Limit
	burst int
}

var (
	tierStrict   = tier{"strict", limitStrict, burstStrict}
	tierGeneral  = tier{"general", limitGeneral, burstGeneral}
	tierFrontend = tier{"frontend", limitFrontend, burstFrontend}
	tierInternal = tier{"internal", limitInternal, burstInternal}
)

// visitor holds the rate limiter and the last time it was seen.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per caller identity and tier.
type RateLimiter struct {
	mu          sync.Mutex
	visitors    map[string]*visitor
	internalKey string
	now         func() time.Time
}

// NewRateLimiter returns a limiter. Requests carrying internalKey in
// X-Service-Auth get the internal tier; an empty key disables that tier.
func NewRateLimiter(internalKey string) *RateLimiter {
	return &RateLimiter{
		visitors:    make(map[string]*visitor),
		internalKey: internalKey,
		now:         time.Now,
	}
}

// Run evicts idle visitors until ctx is done.
func (l *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

func (l *RateLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > visitorTTL {
			delete(l.visitors, key)
		}
	}
}

func (l *RateLimiter) get(key string, t tier) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, exists := l.visitors[key]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(t.limit, t.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = l.now()
	return v.limiter
}

// Strict limits payment and auth actions.
func (l *RateLimiter) Strict(next http.Handler) http.Handler {
	return l.handler(next, func(*http.Request) tier { return tierStrict })
}

// General applies the default, frontend or internal tier by request headers.
func (l *RateLimiter) General(next http.Handler) http.Handler {
	return l.handler(next, l.resolveTier)
}

func (l *RateLimiter) handler(next http.Handler, pick func(*http.Request) tier) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t := pick(r)

		// Same caller gets separate quotas per tier, e.g. "user:abc:strict".
		key := fmt.Sprintf("%s:%s", identity(r), t.name)
		if !l.get(key, t).Allow() {
			transport.Error(w, http.StatusTooManyRequests, "Too many requests. Please try again later.")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (l *RateLimiter) resolveTier(r *http.Request) tier {
	if l.internalKey != "" && r.Header.Get("X-Service-Auth") == l.internalKey {
		return tierInternal
	}
	if r.Header.Get("X-Client-Type") == "frontend-heavy" {
		return tierFrontend
	}
	return tierGeneral
}

func identity(r *http.Request) string {
	ctx := r.Context()
	if adminID, ok := utils.GetAdminIDFromContext(ctx); ok {
		return fmt.Sprintf("admin:%d", adminID)
	}
	if userID, ok := utils.GetUserIDFromContext(ctx); ok {
		return "user:" + userID
	}
	if deviceID := r.Header.Get("X-Device-ID"); deviceID != "" {
		return "device:" + deviceID
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	return "ip:" + ip
}
