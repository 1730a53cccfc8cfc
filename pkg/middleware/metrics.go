package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/kavyarao/streamfilter/pkg/metrics"
)

// Metrics records request count, latency, and an in-flight gauge for
// every request passing through it. The path label uses the raw URL
// path; the route set is small and fixed, so cardinality stays bounded.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.HTTPRequestsInFlight.Inc()
			defer m.HTTPRequestsInFlight.Dec()

			rec := newStatusRecorder(w)
			start := time.Now()
			next.ServeHTTP(rec, r)
			elapsed := time.Since(start)

			m.HTTPRequestsTotal.
				WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rec.Status())).
				Inc()
			m.HTTPRequestDuration.
				WithLabelValues(r.Method, r.URL.Path).
				Observe(elapsed.Seconds())
		})
	}
}

// statusRecorder captures the status code written by the handler.
// Handlers that never call WriteHeader are counted as 200.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w}
}

// Status returns the recorded code, defaulting to 200 OK.
func (rec *statusRecorder) Status() int {
	if rec.status == 0 {
		return http.StatusOK
	}
	return rec.status
}

func (rec *statusRecorder) WriteHeader(code int) {
	if rec.status == 0 {
		rec.status = code
	}
	rec.ResponseWriter.WriteHeader(code)
}
