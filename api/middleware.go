package api

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"sitaraServer/config"
	"sitaraServer/crypto"

	"golang.org/x/time/rate"
)

type ctxKey int

const (
	adminIDKey ctxKey = iota
	userClaimsKey
)

const sessionAdminID = "admin_id"

func adminIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(adminIDKey).(string)
	return id
}

func userClaimsFrom(ctx context.Context) *crypto.Claims {
	c, _ := ctx.Value(userClaimsKey).(*crypto.Claims)
	return c
}

func userIDFrom(ctx context.Context) string {
	if c := userClaimsFrom(ctx); c != nil {
		return c.Subject
	}
	return ""
}

// requireAdmin rejects requests without a logged-in admin session
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, _ := s.sessions.Get(r, config.AdminSessionName)
		adminID, _ := session.Values[sessionAdminID].(string)
		if adminID == "" {
			sendError(w, http.StatusUnauthorized, "Login required")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), adminIDKey, adminID)))
	})
}

// requireUser validates the bearer token of an app user
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			sendError(w, http.StatusUnauthorized, "Missing bearer token")
			return
		}

		claims, err := s.tokens.Parse(token)
		if err != nil {
			sendError(w, http.StatusUnauthorized, err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userClaimsKey, claims)))
	})
}

// ipLimiter hands out one token bucket per client IP. Idle buckets are
// swept on access.
type ipLimiter struct {
	mu        sync.Mutex
	every     rate.Limit
	burst     int
	idleTTL   time.Duration
	visitors  map[string]*visitor
	lastSweep time.Time
	now       func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPLimiter(interval time.Duration, burst int) *ipLimiter {
	return &ipLimiter{
		every:    rate.Every(interval),
		burst:    burst,
		idleTTL:  config.LimiterIdleTTL,
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > l.idleTTL {
		for k, v := range l.visitors {
			if now.Sub(v.lastSeen) > l.idleTTL {
				delete(l.visitors, k)
			}
		}
		l.lastSweep = now
	}

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.every, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (l *ipLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientIP(r)) {
			w.Header().Set("Retry-After", "60")
			sendError(w, http.StatusTooManyRequests, "Too many attempts, try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}
