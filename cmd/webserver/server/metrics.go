package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics is per-Server so several servers can run in one test binary.
type metrics struct {
	registry    *prometheus.Registry
	requests    *prometheus.CounterVec
	rootChanges prometheus.Counter
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &metrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webserver",
			Name:      "requests_total",
			Help:      "HTTP responses served, by status code and content type.",
		}, []string{"code", "content_type"}),
		rootChanges: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "webserver",
			Name:      "root_changes_total",
			Help:      "Files changed under the served root while watching.",
		}),
	}
}

// observe logs each request and counts it by status and content type.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.requests.WithLabelValues(strconv.Itoa(status), ww.Header().Get("Content-Type")).Inc()
		s.logger.Debug("Request served",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}
