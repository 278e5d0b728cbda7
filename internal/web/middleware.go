package web

import (
	"bytes"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/sweeney/group-controller/internal/log"
)

type cachedResponse struct {
	status  int
	headers http.Header
	body    []byte
}

type bodyCacheWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyCacheWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w bodyCacheWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// cacheResponse serves repeated GETs from store for up to ttl.
func cacheResponse(store *cache.Cache, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := c.Request.RequestURI
		if v, found := store.Get(key); found {
			cached := v.(cachedResponse)
			for k, vals := range cached.headers {
				c.Writer.Header()[k] = vals
			}
			c.Writer.WriteHeader(cached.status)
			c.Writer.Write(cached.body)
			c.Abort()
			return
		}

		w := &bodyCacheWriter{body: bytes.NewBuffer(nil), ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		if w.Status() >= 200 && w.Status() < 300 {
			store.Set(key, cachedResponse{
				status:  w.Status(),
				headers: w.Header().Clone(),
				body:    w.body.Bytes(),
			}, ttl)
		}
	}
}

// limiterIdle is how long a client's bucket survives without requests.
const limiterIdle = 10 * time.Minute

// clientLimiters holds one token bucket per client IP. Buckets of clients
// that stay quiet for the idle period are evicted.
type clientLimiters struct {
	buckets *cache.Cache
	r       rate.Limit
	b       int
}

func newClientLimiters(r rate.Limit, b int, idle time.Duration) *clientLimiters {
	return &clientLimiters{buckets: cache.New(idle, idle), r: r, b: b}
}

func (l *clientLimiters) get(ip string) *rate.Limiter {
	if v, ok := l.buckets.Get(ip); ok {
		lim := v.(*rate.Limiter)
		l.buckets.Set(ip, lim, cache.DefaultExpiration)
		return lim
	}
	lim := rate.NewLimiter(l.r, l.b)
	if err := l.buckets.Add(ip, lim, cache.DefaultExpiration); err != nil {
		// A concurrent request created the bucket first.
		if v, ok := l.buckets.Get(ip); ok {
			return v.(*rate.Limiter)
		}
	}
	return lim
}

func (l *clientLimiters) len() int {
	return l.buckets.ItemCount()
}

func rateLimiter(r rate.Limit, b int) gin.HandlerFunc {
	limiters := newClientLimiters(r, b, limiterIdle)
	return func(c *gin.Context) {
		if !limiters.get(c.ClientIP()).Allow() {
			c.AbortWithStatus(http.StatusTooManyRequests)
			return
		}
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug(c.Request.Context(), "http: request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			log.Since("took", start, time.Now()),
		)
	}
}
