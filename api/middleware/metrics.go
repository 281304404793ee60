package middleware

import (
	"net/http"
	"time"

	"github.com/epicerie-app/epicerie-backend/pkg/metrics"
)

// Metrics records request counts, latency, and in-flight gauges per route.
// The chi route pattern keeps cardinality bounded; requests that match no
// route are reported under the raw path after normalization.
func Metrics(m *metrics.HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.IncInFlight()
			defer m.DecInFlight()

			rec := &statusRecorder{ResponseWriter: w}
			start := time.Now()

			next.ServeHTTP(rec, r)

			if rec.status == 0 {
				rec.status = http.StatusOK
			}
			m.ObserveRequest(r.Method, routePattern(r), rec.status, time.Since(start))
		})
	}
}
