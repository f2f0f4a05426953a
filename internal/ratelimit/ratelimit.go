package ratelimit

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/esp-pix/authserver/types"
	"golang.org/x/time/rate"
)

// DefaultIdleTTL is how long an untouched client bucket is kept.
const DefaultIdleTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// PerIP hands out one token bucket per client address. Buckets idle for
// longer than idleTTL are dropped.
type PerIP struct {
	perMinute int
	idleTTL   time.Duration

	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time

	now func() time.Time
}

// New returns nil when perMinute is not positive, which disables limiting.
func New(perMinute int) *PerIP {
	if perMinute <= 0 {
		return nil
	}
	return &PerIP{
		perMinute: perMinute,
		idleTTL:   DefaultIdleTTL,
		visitors:  make(map[string]*visitor),
		now:       time.Now,
	}
}

func (p *PerIP) limiter(client string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if now.Sub(p.lastSweep) >= p.idleTTL {
		p.sweep(now)
	}

	v, ok := p.visitors[client]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(p.perMinute)/60, p.perMinute)}
		p.visitors[client] = v
	}
	v.lastSeen = now
	return v.limiter
}

// sweep must be called with p.mu held.
func (p *PerIP) sweep(now time.Time) {
	for client, v := range p.visitors {
		if now.Sub(v.lastSeen) >= p.idleTTL {
			delete(p.visitors, client)
		}
	}
	p.lastSweep = now
}

// Allow reports whether client may make another request now.
func (p *PerIP) Allow(client string) bool {
	return p.limiter(client).Allow()
}

// Len returns the number of tracked clients.
func (p *PerIP) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.visitors)
}

// Middleware rejects over-limit clients with 429. A nil receiver passes everything.
func (p *PerIP) Middleware(next http.Handler) http.Handler {
	if p == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !p.Allow(clientIP(r)) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "60")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(types.Fail("too many requests"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
