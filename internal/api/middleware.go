package api

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"fleetcmd/internal/metrics"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok { f.Flush() }
}

// LogMiddleware logs each request and records HTTP metrics.
func (s *Server) LogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		dur := time.Since(start)
		path := metricPath(r.URL.Path)
		status := strconv.Itoa(rec.status)
		metrics.HTTPRequests.WithLabelValues(r.Method, path, status).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, path, status).Observe(dur.Seconds())
		s.Log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("dur", dur).
			Str("remote", r.RemoteAddr).
			Msg("request")
	})
}

// metricPath collapses IDs so the path label stays low-cardinality.
func metricPath(p string) string {
	parts := strings.Split(p, "/")
	for i, seg := range parts {
		if i >= 3 && seg != "" {
			switch seg {
			case "start", "complete", "cancel", "close", "events", "stream":
			default:
				parts[i] = ":id"
			}
		}
	}
	return strings.Join(parts, "/")
}

type clientLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimiter applies a per-client token bucket keyed by remote IP.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	rps     rate.Limit
	burst   int
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if rps <= 0 { rps = 50 }
	if burst <= 0 { burst = 100 }
	return &RateLimiter{clients: map[string]*clientLimiter{}, rps: rate.Limit(rps), burst: burst}
}

func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cl, ok := rl.clients[key]
	if !ok {
		cl = &clientLimiter{lim: rate.NewLimiter(rl.rps, rl.burst)}
		rl.clients[key] = cl
	}
	cl.seen = time.Now()
	if len(rl.clients) > 10000 {
		for k, c := range rl.clients {
			if time.Since(c.seen) > 10*time.Minute { delete(rl.clients, k) }
		}
	}
	return cl.lim.Allow()
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil { host = r.RemoteAddr }
		if !rl.allow(host) {
			writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "rate limit exceeded", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}
