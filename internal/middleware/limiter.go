package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Rate Limit Tiers
const (
	// checkout (Strict)
	limitStrict = rate.Limit(2)
	burstStrict = 5

	// General (Default)
	limitGeneral = rate.Limit(10)
	burstGeneral = 20

	// Public catalog reads
	limitBrowse = rate.Limit(20)
	burstBrowse = 40
)

const (
	sweepEvery = time.Minute
	idleAfter  = 3 * time.Minute
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// bucketStore keeps one token bucket per caller and tier.
type bucketStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

func newBucketStore() *bucketStore {
	return &bucketStore{buckets: map[string]*bucket{}, now: time.Now}
}

func (s *bucketStore) limiter(key string, r rate.Limit, burst int) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, found := s.buckets[key]
	if !found {
		b = &bucket{limiter: rate.NewLimiter(r, burst)}
		s.buckets[key] = b
	}
	b.lastSeen = s.now()
	return b.limiter
}

// sweep forgets buckets untouched for longer than idle and reports how many went.
func (s *bucketStore) sweep(idle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-idle)
	dropped := 0
	for key, b := range s.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(s.buckets, key)
			dropped++
		}
	}
	return dropped
}

func (s *bucketStore) sweepLoop() {
	t := time.NewTicker(sweepEvery)
	defer t.Stop()
	for range t.C {
		s.sweep(idleAfter)
	}
}

var (
	buckets   = newBucketStore()
	sweepOnce sync.Once
)

// RateLimit throttles per caller and tier. Authenticated callers are keyed by
// user, anonymous ones by device header or client IP.
func RateLimit() gin.HandlerFunc {
	sweepOnce.Do(func() { go buckets.sweepLoop() })

	return func(c *gin.Context) {
		limit, burst, tier := resolveRateTier(c)

		var identity string
		if claims, ok := CurrentUser(c); ok {
			identity = "user:" + claims.UserID
		} else if deviceID := c.GetHeader("X-Device-ID"); deviceID != "" {
			identity = "device:" + deviceID
		} else {
			identity = "ip:" + c.ClientIP()
		}

		// same caller gets separate quotas per tier
		key := fmt.Sprintf("%s:%s", identity, tier)

		if !buckets.limiter(key, limit, burst).Allow() {
			abort(c, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests))
			return
		}
		c.Next()
	}
}

// resolveRateTier picks the quota for a route: checkout is tight, catalog reads loose.
func resolveRateTier(c *gin.Context) (rate.Limit, int, string) {
	if c.Request.Method == http.MethodPost && c.Request.URL.Path == "/orders/checkout" {
		return limitStrict, burstStrict, "strict"
	}
	if c.Request.Method == http.MethodGet && (c.Request.URL.Path == "/books" || c.FullPath() == "/books/:id") {
		return limitBrowse, burstBrowse, "browse"
	}
	return limitGeneral, burstGeneral, "general"
}
