package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/qaiserfcc/helpDesk-sub001/internal/infrastructure/metrics"
)

// Metrics records request counts and latency per route pattern. Unmatched
// requests are grouped under "unmatched" to bound label cardinality.
func Metrics(m *metrics.HTTP) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)

			next.ServeHTTP(rec, r)

			route := routePattern(r)
			if route == "" {
				route = "unmatched"
			}

			m.Requests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
			m.Duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}
