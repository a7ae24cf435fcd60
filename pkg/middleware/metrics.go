// Package middleware holds the HTTP middleware shared by every service:
// request IDs, CORS, rate limiting, Prometheus instrumentation and timeouts.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/sentence-ranker/pkg/metrics"
)

// parameterized routes whose last segment is a path value.
var routeTemplates = map[string]string{
	"/api/v1/tokens/":  "/api/v1/tokens/{token}",
	"/api/v1/corpora/": "/api/v1/corpora/{name}",
}

// Metrics counts requests and observes handler latency. Path values are
// folded into their route template to keep label cardinality fixed.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.HTTPRequestsInFlight.Inc()
			rec := &statusRecorder{ResponseWriter: w}
			began := time.Now()
			defer func() {
				m.HTTPRequestsInFlight.Dec()
				path := route(r.URL.Path)
				m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(began).Seconds())
				m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.statusCode())).Inc()
			}()
			next.ServeHTTP(rec, r)
		})
	}
}

func route(path string) string {
	for prefix, tmpl := range routeTemplates {
		if rest, ok := strings.CutPrefix(path, prefix); ok && rest != "" && !strings.Contains(rest, "/") {
			return tmpl
		}
	}
	return path
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (s *statusRecorder) statusCode() int {
	if s.code == 0 {
		return http.StatusOK
	}
	return s.code
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.code == 0 {
		s.code = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.code == 0 {
		s.code = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}
