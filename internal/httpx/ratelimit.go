package httpx

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// DefaultLimiterCacheSize bounds how many client limiters are remembered.
const DefaultLimiterCacheSize = 10000

// ClientLimiter hands out one token bucket per client address. The least
// recently seen clients are forgotten once the cache is full.
type ClientLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters *lru.Cache[string, *rate.Limiter]
}

// NewClientLimiter allows each client limit requests per second with the given burst.
func NewClientLimiter(limit rate.Limit, burst, cacheSize int) (*ClientLimiter, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultLimiterCacheSize
	}
	cache, err := lru.New[string, *rate.Limiter](cacheSize)
	if err != nil {
		return nil, err
	}
	return &ClientLimiter{limit: limit, burst: burst, limiters: cache}, nil
}

func (c *ClientLimiter) limiterFor(client string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	if l, ok := c.limiters.Get(client); ok {
		return l
	}
	l := rate.NewLimiter(c.limit, c.burst)
	c.limiters.Add(client, l)
	return l
}

// Allow reports whether client may make a request now. When it may not, the
// returned duration is how long until a token is available.
func (c *ClientLimiter) Allow(client string) (bool, time.Duration) {
	r := c.limiterFor(client).Reserve()
	if !r.OK() {
		return false, 0
	}
	if d := r.Delay(); d > 0 {
		r.Cancel()
		return false, d
	}
	return true, 0
}

// RateLimit rejects requests over the client's budget with 429.
func RateLimit(limiter *ClientLimiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, retryAfter := limiter.Allow(ClientIP(r))
			if !ok {
				secs := int(math.Ceil(retryAfter.Seconds()))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many requests", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the host part of the request's remote address.
// Forwarding headers are ignored since they are client controlled.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
