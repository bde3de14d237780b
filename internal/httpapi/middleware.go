package httpapi

import (
	"context"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/BrandonDHaskell/medledger/internal/medledger/types"
	"github.com/BrandonDHaskell/medledger/internal/metrics"
)

const requestIDHeader = "X-Request-ID"

type ctxKey int

const (
	ctxKeyRequestID ctxKey = iota
	ctxKeyCaller
)

// RequestID returns the id assigned to the request by requestIDMiddleware.
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID).(string)
	return v
}

// Caller returns the identity extracted by callerMiddleware.  Empty when the
// header was absent.
func Caller(ctx context.Context) types.Identity {
	v, _ := ctx.Value(ctxKeyCaller).(types.Identity)
	return v
}

// statusWriter remembers the status code written by the handler.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) code() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyRequestID, id)))
	})
}

func loggingMiddleware(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now().UTC()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		logger.Printf("%s %s from=%s dur=%s status=%d req_id=%s",
			r.Method, r.URL.Path, r.RemoteAddr, time.Since(start), sw.code(), RequestID(r.Context()))
	})
}

// callerMiddleware copies the authenticated identity header into the
// request context.  Whether it is required is decided by the service.
func callerMiddleware(header string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := types.Identity(strings.TrimSpace(r.Header.Get(header)))
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyCaller, caller)))
	})
}

// metricsMiddleware must wrap the mux directly so r.Pattern is visible
// after routing.
func metricsMiddleware(m *metrics.Metrics, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(route, strconv.Itoa(sw.code()), time.Since(start))
	})
}

// callerLimiter hands out one token bucket per caller identity, falling
// back to the remote host for anonymous requests.
type callerLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

const (
	limiterSweepSize = 10000
	limiterIdle      = 10 * time.Minute
)

func newCallerLimiter(perSecond float64, burst int) *callerLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &callerLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		buckets: make(map[string]*bucket),
	}
}

func (c *callerLimiter) allow(key string) bool {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.buckets[key]
	if !ok {
		if len(c.buckets) >= limiterSweepSize {
			for k, v := range c.buckets {
				if now.Sub(v.lastSeen) > limiterIdle {
					delete(c.buckets, k)
				}
			}
		}
		b = &bucket{lim: rate.NewLimiter(c.limit, c.burst)}
		c.buckets[key] = b
	}
	b.lastSeen = now
	return b.lim.AllowN(now, 1)
}

func rateLimitMiddleware(l *callerLimiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := string(Caller(r.Context()))
		if key == "" {
			key = remoteHost(r)
		}
		if !l.allow(key) {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
