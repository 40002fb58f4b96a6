package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/rookmem/rook/pkg/logging"
	"github.com/rookmem/rook/pkg/metrics"
)

// loggingMiddleware logs one line per request, grounded on 2lar-b2's
// middleware.Logger: wrap the ResponseWriter to capture status/bytes, log
// after the handler returns.
func loggingMiddleware(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", chimiddleware.GetReqID(r.Context()),
			)
		})
	}
}

// metricsMiddleware records HTTPRequests/HTTPDuration for every request,
// keyed by the matched chi route pattern rather than the raw path so
// cardinality stays bounded.
func metricsMiddleware(m *metrics.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := chimiddleware.GetRouteContext(r.Context())
			pattern := r.URL.Path
			if route != nil && route.RoutePattern() != "" {
				pattern = route.RoutePattern()
			}
			m.HTTPRequests.WithLabelValues(r.Method, pattern, strconv.Itoa(ww.Status())).Inc()
			m.HTTPDuration.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
		})
	}
}

// authMiddleware enforces the optional bearer/token auth documented in §6:
// "Authorization: Bearer <key>" or "Token <key>"; any mismatch is 401. When
// apiKey is empty the middleware is a no-op (auth disabled).
func authMiddleware(apiKey string, logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if apiKey == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := bearerOrToken(header)
			if !ok || token != apiKey {
				respondError(w, logger, http.StatusUnauthorized, "missing or invalid Authorization header")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerOrToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", false
	}
	switch parts[0] {
	case "Bearer", "Token":
		return parts[1], true
	default:
		return "", false
	}
}
