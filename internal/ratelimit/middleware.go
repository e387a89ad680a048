package ratelimit

import (
	"context"
	"math"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"time"

	"github.com/noah-isme/pcquote-api/internal/common"
	"github.com/noah-isme/pcquote-api/internal/obs"
)

// CodeRateLimited is returned with 429 responses.
const CodeRateLimited = "RATE_LIMITED"

// Allower decides whether one more event for key fits within limit per window.
type Allower interface {
	Allow(ctx context.Context, key string, window time.Duration, limit int) (allowed bool, remaining int, reset time.Time, err error)
}

// Policy throttles one group of routes. Keys are "<Name>:<client>", so
// policies sharing a backend do not share budgets.
type Policy struct {
	Name    string
	Limiter Allower
	Limit   int
	Window  time.Duration
	// Key identifies the client; ClientKey when nil.
	Key func(*http.Request) string
	// OnError is told about backend failures. The request is served anyway:
	// a Redis outage must not take quoting down with it.
	OnError func(error)
}

// ClientKey identifies the caller by the address chi's RealIP middleware left
// in RemoteAddr. IPv6 clients are grouped by /64 since a single host
// usually owns the whole prefix.
func ClientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return host
	}
	addr = addr.Unmap()
	if addr.Is6() {
		if prefix, err := addr.Prefix(64); err == nil {
			return prefix.String()
		}
	}
	return addr.String()
}

// Middleware enforces the policy. A policy without a limiter or with a
// non-positive limit is a no-op.
func (p Policy) Middleware(next http.Handler) http.Handler {
	if p.Limiter == nil || p.Limit <= 0 {
		return next
	}
	key := p.Key
	if key == nil {
		key = ClientKey
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, remaining, reset, err := p.Limiter.Allow(r.Context(), p.Name+":"+key(r), p.Window, p.Limit)
		if err != nil {
			if p.OnError != nil {
				p.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(p.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
		if allowed {
			next.ServeHTTP(w, r)
			return
		}

		wait := retryAfter(reset)
		h.Set("Retry-After", strconv.Itoa(wait))
		obs.IncRateLimitRejection(p.Name)
		common.JSONError(w, http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded", map[string]any{
			"policy":     p.Name,
			"retryAfter": wait,
		})
	})
}

// retryAfter rounds up so clients never retry before capacity returns.
func retryAfter(reset time.Time) int {
	secs := int(math.Ceil(time.Until(reset).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
