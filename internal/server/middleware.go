package server

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Rate limit defaults applied when the config carries zero values.
const (
	defaultRequestsPerSecond = 10.0
	defaultBurst             = 20
)

// clientLimiters hands out one token bucket per client address.
type clientLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newClientLimiters(requestsPerSecond float64, burst int) *clientLimiters {
	if requestsPerSecond <= 0 {
		requestsPerSecond = defaultRequestsPerSecond
	}

	if burst <= 0 {
		burst = defaultBurst
	}

	return &clientLimiters{
		mu:       sync.Mutex{},
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(requestsPerSecond),
		burst:    burst,
	}
}

func (c *clientLimiters) allow(clientAddr string) bool {
	host, _, err := net.SplitHostPort(clientAddr)
	if err != nil {
		host = clientAddr
	}

	c.mu.Lock()
	limiter, ok := c.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(c.limit, c.burst)
		c.limiters[host] = limiter
	}
	c.mu.Unlock()

	return limiter.Allow()
}

// withRateLimit rejects clients that exceed their per-address budget. The
// health endpoint stays reachable for probes.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/health" && !s.limiters.allow(request.RemoteAddr) {
			writeError(responseWriter, http.StatusTooManyRequests, "rate limit exceeded")

			return
		}

		next.ServeHTTP(responseWriter, request)
	})
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withLogging logs one line per request.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		started := time.Now()
		recorder := &statusRecorder{ResponseWriter: responseWriter, status: http.StatusOK}

		next.ServeHTTP(recorder, request)

		if s.log != nil {
			s.log.Info("%s %s -> %d (%s)",
				request.Method, request.URL.Path, recorder.status, time.Since(started))
		}
	})
}
