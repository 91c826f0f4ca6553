package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/hms/hms/internal/platform/auth"
)

// DefaultLimiterIdleTTL is how long a caller's limiter survives without
// requests before it is dropped.
const DefaultLimiterIdleTTL = 10 * time.Minute

type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	// IdleTTL defaults to DefaultLimiterIdleTTL.
	IdleTTL time.Duration
}

type callerLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// callerLimiters keeps one limiter per caller key. Entries idle longer than
// ttl are swept whenever a new caller is added, at most once per ttl.
type callerLimiters struct {
	mu        sync.Mutex
	entries   map[string]*callerLimiter
	limit     rate.Limit
	burst     int
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newCallerLimiters(cfg RateLimitConfig, now func() time.Time) *callerLimiters {
	ttl := cfg.IdleTTL
	if ttl <= 0 {
		ttl = DefaultLimiterIdleTTL
	}
	return &callerLimiters{
		entries:   make(map[string]*callerLimiter),
		limit:     rate.Limit(cfg.RequestsPerSecond),
		burst:     cfg.BurstSize,
		ttl:       ttl,
		lastSweep: now(),
		now:       now,
	}
}

// reserve takes one token for key. It returns zero when the request may
// proceed and otherwise how long the caller has to wait.
func (l *callerLimiters) reserve(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[key]
	if !ok {
		if now.Sub(l.lastSweep) >= l.ttl {
			l.sweep(now)
		}
		e = &callerLimiter{lim: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = e
	}
	e.lastSeen = now

	r := e.lim.ReserveN(now, 1)
	if !r.OK() {
		return time.Second
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return d
	}
	return 0
}

func (l *callerLimiters) sweep(now time.Time) {
	for k, e := range l.entries {
		if now.Sub(e.lastSeen) >= l.ttl {
			delete(l.entries, k)
		}
	}
	l.lastSweep = now
}

func (l *callerLimiters) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// RateLimit limits each caller to cfg.RequestsPerSecond with bursts of
// cfg.BurstSize. Authenticated callers are keyed by user id, others by IP.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	return rateLimit(newCallerLimiters(cfg, time.Now), cfg)
}

func rateLimit(limiters *callerLimiters, cfg RateLimitConfig) echo.MiddlewareFunc {
	limit := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', 0, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := "ip:" + c.RealIP()
			if uid := auth.UserIDFromContext(c.Request().Context()); uid != "" {
				key = "user:" + uid
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)

			if wait := limiters.reserve(key); wait > 0 {
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				h.Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
